package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
)

// ClassType classifies what happens in a scheduled cell.
type ClassType string

const (
	ClassTypeLecture   ClassType = "lecture"
	ClassTypePractical ClassType = "practical"
	ClassTypeTutorial  ClassType = "tutorial"
	ClassTypeBreak     ClassType = "break"
)

// ScheduledClass is a committed or proposed occupancy of one grid cell for a program-semester-section.
type ScheduledClass struct {
	ID              string            `db:"id" json:"id"`
	AcademicYearID  string            `db:"academic_year_id" json:"academicYearId"`
	ProgramID       string            `db:"program_id" json:"programId"`
	Semester        int               `db:"semester" json:"semester"`
	Section         string            `db:"section" json:"section"`
	DayIndex        int               `db:"day_index" json:"dayIndex"`
	SlotIndex       int               `db:"slot_index" json:"slotIndex"`
	ClassType       ClassType         `db:"class_type" json:"classType"`
	SubjectID       string            `db:"subject_id" json:"subjectId"`
	TeacherIDs      pq.StringArray    `db:"teacher_ids" json:"teacherIds"`
	RoomID          string            `db:"room_id" json:"roomId"`
	Recurrence      RecurrencePattern `db:"recurrence" json:"recurrence"`
	SpanID          *string           `db:"span_id" json:"spanId,omitempty"`
	SpanMaster      bool              `db:"span_master" json:"spanMaster"`
	SpanPosition    int               `db:"span_position" json:"spanPosition,omitempty"`
	SpanTotal       int               `db:"span_total" json:"spanTotal,omitempty"`
	ElectiveGroupID *string           `db:"elective_group_id" json:"electiveGroupId,omitempty"`
	TargetSections  pq.StringArray    `db:"target_sections" json:"targetSections,omitempty"`
	IsActive        bool              `db:"is_active" json:"isActive"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// IsElective reports whether the class belongs to an elective group.
func (c ScheduledClass) IsElective() bool {
	return c.ElectiveGroupID != nil && *c.ElectiveGroupID != ""
}

// IsSpanned reports whether the class is one period of a multi-period span.
func (c ScheduledClass) IsSpanned() bool {
	return c.SpanID != nil && *c.SpanID != ""
}

// DefaultSection files an elective without a section under its first target section.
func (c *ScheduledClass) DefaultSection() {
	if c.Section == "" && len(c.TargetSections) > 0 {
		c.Section = c.TargetSections[0]
	}
}

// Sections lists every section whose timetable shows this class.
func (c ScheduledClass) Sections() []string {
	if c.IsElective() && len(c.TargetSections) > 0 {
		return lo.Uniq([]string(c.TargetSections))
	}
	return []string{c.Section}
}

// OccupiesSection reports whether the class appears in the given section's view.
func (c ScheduledClass) OccupiesSection(section string) bool {
	return c.Section == section || lo.Contains([]string(c.TargetSections), section)
}

// HasTeacher reports whether teacherID teaches this class.
func (c ScheduledClass) HasTeacher(teacherID string) bool {
	return lo.Contains([]string(c.TeacherIDs), teacherID)
}

// Cell returns the grid coordinates of the class.
func (c ScheduledClass) Cell() GridCell {
	return GridCell{Day: c.DayIndex, Slot: c.SlotIndex}
}

// SemesterParity returns the semester group the class belongs to.
func (c ScheduledClass) SemesterParity() int {
	return Parity(c.Semester)
}

// CommitmentFilter narrows the active commitments read through the store.
// Zero values mean "no constraint"; Section matches a class's own section or any broadcast target.
type CommitmentFilter struct {
	AcademicYearID         string
	TeacherID              string
	RoomID                 string
	ProgramID              string
	Semester               *int
	Section                string
	DayIndex               *int
	SlotIndex              *int
	SpanID                 string
	CoreOnly               bool
	ElectiveOnly           bool
	ExcludeElectiveGroupID string
	IncludeInactive        bool
}

// AtCell restricts the filter to a single grid cell.
func (f CommitmentFilter) AtCell(day, slot int) CommitmentFilter {
	f.DayIndex = &day
	f.SlotIndex = &slot
	return f
}

// Matches applies the filter to an in-memory class with the same semantics as the store query.
func (f CommitmentFilter) Matches(c ScheduledClass) bool {
	switch {
	case f.AcademicYearID != "" && c.AcademicYearID != f.AcademicYearID:
		return false
	case !f.IncludeInactive && !c.IsActive:
		return false
	case f.TeacherID != "" && !c.HasTeacher(f.TeacherID):
		return false
	case f.RoomID != "" && c.RoomID != f.RoomID:
		return false
	case f.ProgramID != "" && c.ProgramID != f.ProgramID:
		return false
	case f.Semester != nil && c.Semester != *f.Semester:
		return false
	case f.Section != "" && !c.OccupiesSection(f.Section):
		return false
	case f.DayIndex != nil && c.DayIndex != *f.DayIndex:
		return false
	case f.SlotIndex != nil && c.SlotIndex != *f.SlotIndex:
		return false
	case f.SpanID != "" && (c.SpanID == nil || *c.SpanID != f.SpanID):
		return false
	case f.CoreOnly && c.IsElective():
		return false
	case f.ElectiveOnly && !c.IsElective():
		return false
	case f.ExcludeElectiveGroupID != "" && c.IsElective() && *c.ElectiveGroupID == f.ExcludeElectiveGroupID:
		return false
	}
	return true
}
