package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

// ElectiveValidator checks an elective broadcast against every target section at once.
type ElectiveValidator struct {
	conflicts *ConflictValidator
	logger    *zap.Logger
}

// NewElectiveValidator builds an ElectiveValidator on top of the shared teacher and room checks.
func NewElectiveValidator(conflicts *ConflictValidator, logger *zap.Logger) *ElectiveValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElectiveValidator{conflicts: conflicts, logger: logger}
}

// ValidateElective returns the combined report over all target sections.
// Any conflict rejects the whole broadcast.
func (v *ElectiveValidator) ValidateElective(ctx context.Context, academicYearID string, proposed models.ScheduledClass) (*models.ConflictReport, error) {
	start := time.Now()
	report, err := v.validateElective(ctx, academicYearID, proposed, nil)
	v.conflicts.metrics.ObserveValidation("validate_elective", report, err, time.Since(start))
	return report, err
}

func (v *ElectiveValidator) validateElective(ctx context.Context, academicYearID string, proposed models.ScheduledClass, pending []models.ScheduledClass) (*models.ConflictReport, error) {
	proposed.DefaultSection()
	if err := checkProposal(academicYearID, proposed); err != nil {
		return nil, err
	}
	if !proposed.IsElective() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "elective group is required for a broadcast")
	}
	sections := lo.Uniq(lo.Filter([]string(proposed.TargetSections), func(section string, _ int) bool {
		return section != ""
	}))
	if len(sections) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one target section is required for a broadcast")
	}
	proposed.Recurrence = proposed.Recurrence.Normalize()

	var teacherRecords, roomRecords, sectionRecords []models.ConflictRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := v.conflicts.checkTeachers(gctx, academicYearID, proposed, pending)
		teacherRecords = records
		return err
	})
	g.Go(func() error {
		records, err := v.conflicts.checkRoom(gctx, academicYearID, proposed, pending)
		roomRecords = records
		return err
	})
	g.Go(func() error {
		for _, section := range sections {
			records, err := v.checkTargetSection(gctx, academicYearID, proposed, section, pending)
			if err != nil {
				return err
			}
			sectionRecords = append(sectionRecords, records...)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := models.NewConflictReport()
	report.Append(teacherRecords...)
	report.Append(roomRecords...)
	report.Append(sectionRecords...)
	v.conflicts.logOutcome("validate_elective", proposed, report)
	return report, nil
}

func (v *ElectiveValidator) checkTargetSection(ctx context.Context, academicYearID string, proposed models.ScheduledClass, section string, pending []models.ScheduledClass) ([]models.ConflictRecord, error) {
	groupID := *proposed.ElectiveGroupID
	semester := proposed.Semester
	base := models.CommitmentFilter{
		AcademicYearID: academicYearID,
		ProgramID:      proposed.ProgramID,
		Semester:       &semester,
		Section:        section,
	}.AtCell(proposed.DayIndex, proposed.SlotIndex)

	coreFilter := base
	coreFilter.CoreOnly = true
	core, err := v.conflicts.existing(ctx, coreFilter, proposed, pending)
	if err != nil {
		return nil, err
	}

	var records []models.ConflictRecord
	for _, other := range core {
		if !collides(proposed, other, false) {
			continue
		}
		records = append(records, models.NewConflictRecord(
			models.ElectiveCoreDetail{
				ElectiveGroupID: groupID,
				Section:         section,
				DayIndex:        other.DayIndex,
				SlotIndex:       other.SlotIndex,
				SubjectID:       other.SubjectID,
			},
			other.ID,
			fmt.Sprintf("Section %s already has core class %s on %s slot %d (%s)",
				section, other.SubjectID, models.DayName(other.DayIndex), other.SlotIndex, other.Recurrence),
		))
	}

	electiveFilter := base
	electiveFilter.ElectiveOnly = true
	electiveFilter.ExcludeElectiveGroupID = groupID
	electives, err := v.conflicts.existing(ctx, electiveFilter, proposed, pending)
	if err != nil {
		return nil, err
	}
	for _, other := range electives {
		if !collides(proposed, other, false) {
			continue
		}
		records = append(records, models.NewConflictRecord(
			models.ElectiveOverlapDetail{
				ElectiveGroupID:         groupID,
				ExistingElectiveGroupID: *other.ElectiveGroupID,
				Section:                 section,
				DayIndex:                other.DayIndex,
				SlotIndex:               other.SlotIndex,
				SubjectID:               other.SubjectID,
			},
			other.ID,
			fmt.Sprintf("Section %s is already covered by elective group %s on %s slot %d (%s)",
				section, *other.ElectiveGroupID, models.DayName(other.DayIndex), other.SlotIndex, other.Recurrence),
		))
	}
	return records, nil
}
