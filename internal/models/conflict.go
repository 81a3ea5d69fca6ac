package models

import (
	"encoding/json"
	"fmt"
)

// ConflictType tags each ConflictRecord variant.
type ConflictType string

const (
	ConflictTeacherUnavailableDay  ConflictType = "teacher_unavailable_day"
	ConflictTeacherUnavailableSlot ConflictType = "teacher_unavailable_slot"
	ConflictTeacherSchedule        ConflictType = "teacher_schedule_conflict"
	ConflictRoom                   ConflictType = "room_conflict"
	ConflictSection                ConflictType = "section_conflict"
	ConflictElectiveCore           ConflictType = "elective_core_conflict"
	ConflictElectiveOverlap        ConflictType = "elective_overlap_conflict"
)

// ConflictTypes lists every variant in report order.
var ConflictTypes = []ConflictType{
	ConflictTeacherUnavailableDay,
	ConflictTeacherUnavailableSlot,
	ConflictTeacherSchedule,
	ConflictRoom,
	ConflictSection,
	ConflictElectiveCore,
	ConflictElectiveOverlap,
}

// ConflictDetail is implemented only by the variant payloads below, which keeps the set closed.
type ConflictDetail interface {
	ConflictType() ConflictType
	sealedConflict()
}

// TeacherDayDetail: the teacher does not work on the proposed day.
type TeacherDayDetail struct {
	TeacherID string `json:"teacherId"`
	DayIndex  int    `json:"dayIndex"`
}

// TeacherSlotDetail: the teacher declared the cell unavailable.
type TeacherSlotDetail struct {
	TeacherID string `json:"teacherId"`
	DayIndex  int    `json:"dayIndex"`
	SlotIndex int    `json:"slotIndex"`
	Reason    string `json:"reason,omitempty"`
}

// TeacherScheduleDetail: the teacher already teaches an overlapping same-parity class.
type TeacherScheduleDetail struct {
	TeacherID  string            `json:"teacherId"`
	DayIndex   int               `json:"dayIndex"`
	SlotIndex  int               `json:"slotIndex"`
	ProgramID  string            `json:"programId,omitempty"`
	Semester   int               `json:"semester,omitempty"`
	Section    string            `json:"section,omitempty"`
	SubjectID  string            `json:"subjectId,omitempty"`
	Recurrence RecurrencePattern `json:"recurrence"`
}

// RoomDetail: the room is already booked by an overlapping same-parity class.
type RoomDetail struct {
	RoomID     string            `json:"roomId"`
	RoomName   string            `json:"roomName,omitempty"`
	DayIndex   int               `json:"dayIndex"`
	SlotIndex  int               `json:"slotIndex"`
	ProgramID  string            `json:"programId,omitempty"`
	Semester   int               `json:"semester,omitempty"`
	Section    string            `json:"section,omitempty"`
	SubjectID  string            `json:"subjectId,omitempty"`
	Recurrence RecurrencePattern `json:"recurrence"`
}

// SectionDetail: the section already has an overlapping class in the cell.
type SectionDetail struct {
	ProgramID  string            `json:"programId"`
	Semester   int               `json:"semester"`
	Section    string            `json:"section"`
	DayIndex   int               `json:"dayIndex"`
	SlotIndex  int               `json:"slotIndex"`
	SubjectID  string            `json:"subjectId,omitempty"`
	Recurrence RecurrencePattern `json:"recurrence"`
}

// ElectiveCoreDetail: a broadcast target section already has a core class in the cell.
type ElectiveCoreDetail struct {
	ElectiveGroupID string `json:"electiveGroupId"`
	Section         string `json:"section"`
	DayIndex        int    `json:"dayIndex"`
	SlotIndex       int    `json:"slotIndex"`
	SubjectID       string `json:"subjectId,omitempty"`
}

// ElectiveOverlapDetail: another elective group already targets the section in the cell.
type ElectiveOverlapDetail struct {
	ElectiveGroupID         string `json:"electiveGroupId"`
	ExistingElectiveGroupID string `json:"existingElectiveGroupId"`
	Section                 string `json:"section"`
	DayIndex                int    `json:"dayIndex"`
	SlotIndex               int    `json:"slotIndex"`
	SubjectID               string `json:"subjectId,omitempty"`
}

func (TeacherDayDetail) ConflictType() ConflictType      { return ConflictTeacherUnavailableDay }
func (TeacherSlotDetail) ConflictType() ConflictType     { return ConflictTeacherUnavailableSlot }
func (TeacherScheduleDetail) ConflictType() ConflictType { return ConflictTeacherSchedule }
func (RoomDetail) ConflictType() ConflictType            { return ConflictRoom }
func (SectionDetail) ConflictType() ConflictType         { return ConflictSection }
func (ElectiveCoreDetail) ConflictType() ConflictType    { return ConflictElectiveCore }
func (ElectiveOverlapDetail) ConflictType() ConflictType { return ConflictElectiveOverlap }

func (TeacherDayDetail) sealedConflict()      {}
func (TeacherSlotDetail) sealedConflict()     {}
func (TeacherScheduleDetail) sealedConflict() {}
func (RoomDetail) sealedConflict()            {}
func (SectionDetail) sealedConflict()         {}
func (ElectiveCoreDetail) sealedConflict()    {}
func (ElectiveOverlapDetail) sealedConflict() {}

// ConflictRecord is one explainable collision. Type always matches Detail's variant.
type ConflictRecord struct {
	Type                 ConflictType   `json:"type"`
	Message              string         `json:"message"`
	ExistingCommitmentID string         `json:"existingCommitmentId,omitempty"`
	Detail               ConflictDetail `json:"detail"`
}

// NewConflictRecord builds a record whose tag is derived from the detail variant.
func NewConflictRecord(detail ConflictDetail, existingID, message string) ConflictRecord {
	return ConflictRecord{
		Type:                 detail.ConflictType(),
		Message:              message,
		ExistingCommitmentID: existingID,
		Detail:               detail,
	}
}

// UnmarshalJSON restores the concrete detail variant from the type tag.
func (r *ConflictRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type                 ConflictType    `json:"type"`
		Message              string          `json:"message"`
		ExistingCommitmentID string          `json:"existingCommitmentId"`
		Detail               json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var detail ConflictDetail
	switch raw.Type {
	case ConflictTeacherUnavailableDay:
		detail = &TeacherDayDetail{}
	case ConflictTeacherUnavailableSlot:
		detail = &TeacherSlotDetail{}
	case ConflictTeacherSchedule:
		detail = &TeacherScheduleDetail{}
	case ConflictRoom:
		detail = &RoomDetail{}
	case ConflictSection:
		detail = &SectionDetail{}
	case ConflictElectiveCore:
		detail = &ElectiveCoreDetail{}
	case ConflictElectiveOverlap:
		detail = &ElectiveOverlapDetail{}
	default:
		return fmt.Errorf("unknown conflict type %q", raw.Type)
	}
	if len(raw.Detail) > 0 && string(raw.Detail) != "null" {
		if err := json.Unmarshal(raw.Detail, detail); err != nil {
			return fmt.Errorf("decode %s detail: %w", raw.Type, err)
		}
	}

	r.Type = raw.Type
	r.Message = raw.Message
	r.ExistingCommitmentID = raw.ExistingCommitmentID
	r.Detail = derefDetail(detail)
	return nil
}

func derefDetail(detail ConflictDetail) ConflictDetail {
	switch d := detail.(type) {
	case *TeacherDayDetail:
		return *d
	case *TeacherSlotDetail:
		return *d
	case *TeacherScheduleDetail:
		return *d
	case *RoomDetail:
		return *d
	case *SectionDetail:
		return *d
	case *ElectiveCoreDetail:
		return *d
	case *ElectiveOverlapDetail:
		return *d
	}
	return detail
}

// ConflictReport is the ordered outcome of a validation run.
type ConflictReport struct {
	HasConflicts bool             `json:"hasConflicts"`
	Conflicts    []ConflictRecord `json:"conflicts"`
}

// NewConflictReport wraps records, keeping an empty list as [] on the wire.
func NewConflictReport(records ...ConflictRecord) *ConflictReport {
	if records == nil {
		records = []ConflictRecord{}
	}
	return &ConflictReport{HasConflicts: len(records) > 0, Conflicts: records}
}

// Append adds records and refreshes HasConflicts.
func (r *ConflictReport) Append(records ...ConflictRecord) {
	if r.Conflicts == nil {
		r.Conflicts = []ConflictRecord{}
	}
	r.Conflicts = append(r.Conflicts, records...)
	r.HasConflicts = len(r.Conflicts) > 0
}

// Merge appends another report's records.
func (r *ConflictReport) Merge(other *ConflictReport) {
	if other == nil {
		return
	}
	r.Append(other.Conflicts...)
}

// CountByType tallies the records per variant.
func (r *ConflictReport) CountByType() map[ConflictType]int {
	counts := make(map[ConflictType]int)
	if r == nil {
		return counts
	}
	for _, record := range r.Conflicts {
		counts[record.Type]++
	}
	return counts
}
