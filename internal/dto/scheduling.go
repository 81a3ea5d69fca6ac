package dto

import (
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// RecurrenceRequest selects the weeks a class runs in. An empty type means weekly.
type RecurrenceRequest struct {
	Type    string `json:"type" validate:"omitempty,oneof=weekly alternate custom"`
	Pattern string `json:"pattern" validate:"omitempty,oneof=odd even"`
	Weeks   []int  `json:"weeks" validate:"omitempty,dive,min=1,max=16"`
}

// ProposedClassRequest is a scheduled class as submitted for validation or commit.
type ProposedClassRequest struct {
	ID              string             `json:"id"`
	ProgramID       string             `json:"programId" validate:"required"`
	Semester        int                `json:"semester" validate:"required,min=1"`
	Section         string             `json:"section" validate:"required_without=TargetSections"`
	DayIndex        *int               `json:"dayIndex" validate:"required,min=0,max=6"`
	SlotIndex       *int               `json:"slotIndex" validate:"required,min=0"`
	ClassType       string             `json:"classType" validate:"required,oneof=lecture practical tutorial break"`
	SubjectID       string             `json:"subjectId"`
	TeacherIDs      []string           `json:"teacherIds" validate:"omitempty,dive,required"`
	RoomID          string             `json:"roomId"`
	Recurrence      *RecurrenceRequest `json:"recurrence"`
	SpanID          string             `json:"spanId"`
	ElectiveGroupID string             `json:"electiveGroupId"`
	TargetSections  []string           `json:"targetSections" validate:"omitempty,dive,required"`
}

// ToModel converts the request into a ScheduledClass of academicYearID.
func (r ProposedClassRequest) ToModel(academicYearID string) models.ScheduledClass {
	class := models.ScheduledClass{
		ID:             r.ID,
		AcademicYearID: academicYearID,
		ProgramID:      r.ProgramID,
		Semester:       r.Semester,
		Section:        r.Section,
		DayIndex:       lo.FromPtr(r.DayIndex),
		SlotIndex:      lo.FromPtr(r.SlotIndex),
		ClassType:      models.ClassType(r.ClassType),
		SubjectID:      r.SubjectID,
		TeacherIDs:     pq.StringArray(r.TeacherIDs),
		RoomID:         r.RoomID,
		Recurrence:     models.Weekly(),
		IsActive:       true,
	}
	if class.TeacherIDs == nil {
		class.TeacherIDs = pq.StringArray{}
	}
	if r.Recurrence != nil {
		class.Recurrence = models.RecurrencePattern{
			Type:    models.RecurrenceType(r.Recurrence.Type),
			Pattern: models.WeekParity(r.Recurrence.Pattern),
			Weeks:   r.Recurrence.Weeks,
		}
	}
	if r.SpanID != "" {
		class.SpanID = lo.ToPtr(r.SpanID)
	}
	if r.ElectiveGroupID != "" {
		class.ElectiveGroupID = lo.ToPtr(r.ElectiveGroupID)
		class.TargetSections = pq.StringArray(r.TargetSections)
	}
	return class
}

// ValidateProposalRequest asks whether a single proposal would conflict.
type ValidateProposalRequest struct {
	AcademicYearID string               `json:"academicYearId" validate:"required"`
	Proposal       ProposedClassRequest `json:"proposal"`
}

// CommitSpanRequest carries every member of a multi-period class.
type CommitSpanRequest struct {
	AcademicYearID string                 `json:"academicYearId" validate:"required"`
	Slots          []ProposedClassRequest `json:"slots" validate:"required,min=1,max=16,dive"`
}

// AvailabilityConstraintsRequest narrows a free slot search.
type AvailabilityConstraintsRequest struct {
	MinDuration int   `json:"minDuration" validate:"min=0,max=16"`
	ExcludeDays []int `json:"excludeDays" validate:"omitempty,dive,min=0,max=6"`
}

// AvailabilityRequest asks for slots where every listed teacher is free.
type AvailabilityRequest struct {
	AcademicYearID string                         `json:"academicYearId" validate:"required"`
	TeacherIDs     []string                       `json:"teacherIds" validate:"required,min=1,dive,required"`
	Constraints    AvailabilityConstraintsRequest `json:"constraints"`
}

// ToConstraints converts the request constraints.
func (r AvailabilityRequest) ToConstraints() models.AvailabilityConstraints {
	return models.AvailabilityConstraints{
		MinDuration: r.Constraints.MinDuration,
		ExcludeDays: r.Constraints.ExcludeDays,
	}
}

// ScheduledClassQuery filters scheduled class listings.
type ScheduledClassQuery struct {
	AcademicYearID  string `form:"academicYearId"`
	ProgramID       string `form:"programId"`
	Semester        *int   `form:"semester"`
	Section         string `form:"section"`
	TeacherID       string `form:"teacherId"`
	RoomID          string `form:"roomId"`
	DayIndex        *int   `form:"dayIndex"`
	SpanID          string `form:"spanId"`
	IncludeInactive bool   `form:"includeInactive"`
	Page            int    `form:"page"`
	PageSize        int    `form:"pageSize"`
}

// ToFilter converts the query into a commitment filter.
func (q ScheduledClassQuery) ToFilter() models.CommitmentFilter {
	return models.CommitmentFilter{
		AcademicYearID:  q.AcademicYearID,
		ProgramID:       q.ProgramID,
		Semester:        q.Semester,
		Section:         q.Section,
		TeacherID:       q.TeacherID,
		RoomID:          q.RoomID,
		DayIndex:        q.DayIndex,
		SpanID:          q.SpanID,
		IncludeInactive: q.IncludeInactive,
	}
}

// CancelResult lists the classes deactivated by a cancellation.
type CancelResult struct {
	Cancelled []string `json:"cancelled"`
	SpanID    string   `json:"spanId,omitempty"`
}
