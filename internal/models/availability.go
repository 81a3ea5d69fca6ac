package models

// BusyReason explains why a teacher cannot take a cell.
type BusyReason string

const (
	BusyScheduledClass  BusyReason = "scheduled_class"
	BusyUnavailableDay  BusyReason = "unavailable_day"
	BusyUnavailableSlot BusyReason = "unavailable_slot"
)

// AvailabilityConstraints narrows a common free slot search.
type AvailabilityConstraints struct {
	MinDuration int   `json:"minDuration"`
	ExcludeDays []int `json:"excludeDays"`
}

// CommitmentRef summarises the class that keeps a teacher busy.
type CommitmentRef struct {
	ID         string            `json:"id"`
	SubjectID  string            `json:"subjectId"`
	RoomID     string            `json:"roomId"`
	ProgramID  string            `json:"programId"`
	Semester   int               `json:"semester"`
	Section    string            `json:"section"`
	ClassType  ClassType         `json:"classType"`
	Recurrence RecurrencePattern `json:"recurrence"`
}

// RefFor builds a commitment reference from a scheduled class.
func RefFor(c ScheduledClass) *CommitmentRef {
	return &CommitmentRef{
		ID:         c.ID,
		SubjectID:  c.SubjectID,
		RoomID:     c.RoomID,
		ProgramID:  c.ProgramID,
		Semester:   c.Semester,
		Section:    c.Section,
		ClassType:  c.ClassType,
		Recurrence: c.Recurrence,
	}
}

// BusyTeacher attributes one cause of unavailability to a teacher.
type BusyTeacher struct {
	TeacherID  string         `json:"teacherId"`
	Reason     BusyReason     `json:"reason"`
	Message    string         `json:"message"`
	Commitment *CommitmentRef `json:"commitment,omitempty"`
}

// BusySlot lists who is busy in a cell and why.
type BusySlot struct {
	Day          int           `json:"day"`
	Slot         int           `json:"slot"`
	BusyTeachers []BusyTeacher `json:"busyTeachers"`
}

// FreeSlotRun is a maximal run of contiguous common free slots on one day.
type FreeSlotRun struct {
	Day      int `json:"day"`
	Slot     int `json:"slot"`
	Duration int `json:"duration"`
}

// AvailabilityCell is the raw per-cell breakdown.
type AvailabilityCell struct {
	Day            int      `json:"day"`
	Slot           int      `json:"slot"`
	Free           bool     `json:"free"`
	BusyTeacherIDs []string `json:"busyTeacherIds"`
}

// AvailabilityStatistics summarises a search.
type AvailabilityStatistics struct {
	TeachersRequested   int            `json:"teachersRequested"`
	DaysEvaluated       int            `json:"daysEvaluated"`
	CellsEvaluated      int            `json:"cellsEvaluated"`
	FreeCells           int            `json:"freeCells"`
	BusyCells           int            `json:"busyCells"`
	FreeRuns            int            `json:"freeRuns"`
	RecommendedRuns     int            `json:"recommendedRuns"`
	DroppedRuns         int            `json:"droppedRuns"`
	BusyCellsPerTeacher map[string]int `json:"busyCellsPerTeacher"`
}

// AvailabilityReport is the answer to a common free slot search.
type AvailabilityReport struct {
	AcademicYearID  string                  `json:"academicYearId"`
	TeacherIDs      []string                `json:"teacherIds"`
	Constraints     AvailabilityConstraints `json:"constraints"`
	CommonFreeSlots []FreeSlotRun           `json:"commonFreeSlots"`
	BusySlots       []BusySlot              `json:"busySlots"`
	Cells           []AvailabilityCell      `json:"cells"`
	Statistics      AvailabilityStatistics  `json:"statistics"`

	// Cached is set when the report was served from the availability cache.
	Cached bool `json:"-"`
}
