package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// ExplainViolation reports a store uniqueness violation in the same vocabulary as a pre-check conflict.
// The boolean is false when the constraint is not one of the scheduling indexes.
func (v *ConflictValidator) ExplainViolation(ctx context.Context, academicYearID string, proposed models.ScheduledClass, violation *models.UniquenessViolationError) (*models.ConflictReport, bool) {
	if violation == nil {
		return nil, false
	}
	wanted, ok := conflictTypeForConstraint(violation.Constraint)
	if !ok {
		return nil, false
	}

	report, err := v.validate(ctx, academicYearID, proposed, nil)
	if err != nil {
		v.logger.Warn("revalidation after uniqueness violation failed",
			zap.String("constraint", violation.Constraint), zap.Error(err))
	} else {
		matches := lo.Filter(report.Conflicts, func(record models.ConflictRecord, _ int) bool {
			return record.Type == wanted
		})
		if len(matches) > 0 {
			return models.NewConflictReport(matches...), true
		}
	}

	return models.NewConflictReport(violationRecord(proposed, wanted)), true
}

func conflictTypeForConstraint(constraint string) (models.ConflictType, bool) {
	switch constraint {
	case models.ConstraintTeacherCell:
		return models.ConflictTeacherSchedule, true
	case models.ConstraintRoomCell:
		return models.ConflictRoom, true
	case models.ConstraintSectionCell:
		return models.ConflictSection, true
	}
	return "", false
}

// violationRecord is used when the competing commitment is no longer visible on revalidation.
func violationRecord(proposed models.ScheduledClass, conflictType models.ConflictType) models.ConflictRecord {
	day := models.DayName(proposed.DayIndex)
	switch conflictType {
	case models.ConflictRoom:
		return models.NewConflictRecord(models.RoomDetail{
			RoomID:     proposed.RoomID,
			DayIndex:   proposed.DayIndex,
			SlotIndex:  proposed.SlotIndex,
			Recurrence: proposed.Recurrence,
		}, "", fmt.Sprintf("Room %s was booked concurrently for %s slot %d", proposed.RoomID, day, proposed.SlotIndex))
	case models.ConflictSection:
		return models.NewConflictRecord(models.SectionDetail{
			ProgramID:  proposed.ProgramID,
			Semester:   proposed.Semester,
			Section:    proposed.Section,
			DayIndex:   proposed.DayIndex,
			SlotIndex:  proposed.SlotIndex,
			Recurrence: proposed.Recurrence,
		}, "", fmt.Sprintf("Section %s was scheduled concurrently for %s slot %d", proposed.Section, day, proposed.SlotIndex))
	default:
		teacherID := ""
		if len(proposed.TeacherIDs) > 0 {
			teacherID = proposed.TeacherIDs[0]
		}
		return models.NewConflictRecord(models.TeacherScheduleDetail{
			TeacherID:  teacherID,
			DayIndex:   proposed.DayIndex,
			SlotIndex:  proposed.SlotIndex,
			Recurrence: proposed.Recurrence,
		}, "", fmt.Sprintf("A teacher on this class was scheduled concurrently for %s slot %d", day, proposed.SlotIndex))
	}
}
