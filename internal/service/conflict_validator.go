package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type teacherDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type roomDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type commitmentStore interface {
	Query(ctx context.Context, filter models.CommitmentFilter) ([]models.ScheduledClass, error)
}

// ConflictValidator decides whether a proposed scheduled class collides with existing commitments.
type ConflictValidator struct {
	teachers teacherDirectory
	rooms    roomDirectory
	store    commitmentStore
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewConflictValidator constructs a ConflictValidator.
func NewConflictValidator(teachers teacherDirectory, rooms roomDirectory, store commitmentStore, metrics *MetricsService, logger *zap.Logger) *ConflictValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictValidator{teachers: teachers, rooms: rooms, store: store, metrics: metrics, logger: logger}
}

// Validate runs the teacher, room and section checks for proposed in academicYearID.
// Conflicts are returned in the report; errors are reserved for bad input, unknown resources and store failures.
func (v *ConflictValidator) Validate(ctx context.Context, academicYearID string, proposed models.ScheduledClass) (*models.ConflictReport, error) {
	start := time.Now()
	report, err := v.validate(ctx, academicYearID, proposed, nil)
	v.metrics.ObserveValidation("validate", report, err, time.Since(start))
	return report, err
}

func (v *ConflictValidator) validate(ctx context.Context, academicYearID string, proposed models.ScheduledClass, pending []models.ScheduledClass) (*models.ConflictReport, error) {
	proposed.DefaultSection()
	if err := checkProposal(academicYearID, proposed); err != nil {
		return nil, err
	}
	proposed.Recurrence = proposed.Recurrence.Normalize()

	var teacherRecords, roomRecords, sectionRecords []models.ConflictRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := v.checkTeachers(gctx, academicYearID, proposed, pending)
		teacherRecords = records
		return err
	})
	g.Go(func() error {
		records, err := v.checkRoom(gctx, academicYearID, proposed, pending)
		roomRecords = records
		return err
	})
	g.Go(func() error {
		records, err := v.checkSection(gctx, academicYearID, proposed, pending)
		sectionRecords = records
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := models.NewConflictReport()
	report.Append(teacherRecords...)
	report.Append(roomRecords...)
	report.Append(sectionRecords...)
	v.logOutcome("validate", proposed, report)
	return report, nil
}

func (v *ConflictValidator) checkTeachers(ctx context.Context, academicYearID string, proposed models.ScheduledClass, pending []models.ScheduledClass) ([]models.ConflictRecord, error) {
	var records []models.ConflictRecord
	for _, teacherID := range lo.Uniq([]string(proposed.TeacherIDs)) {
		teacher, err := v.teachers.FindByID(ctx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", teacherID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		name := displayName(teacher.FullName, teacher.ID)

		if !teacher.AvailableOn(proposed.DayIndex) {
			records = append(records, models.NewConflictRecord(
				models.TeacherDayDetail{TeacherID: teacher.ID, DayIndex: proposed.DayIndex},
				"",
				fmt.Sprintf("Teacher %s does not work on %s", name, models.DayName(proposed.DayIndex)),
			))
		}

		blocked, isBlocked, err := teacher.BlockedAt(proposed.DayIndex, proposed.SlotIndex)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read teacher availability")
		}
		if isBlocked {
			message := fmt.Sprintf("Teacher %s is unavailable on %s slot %d", name, models.DayName(proposed.DayIndex), proposed.SlotIndex)
			if blocked.Reason != "" {
				message += ": " + blocked.Reason
			}
			records = append(records, models.NewConflictRecord(
				models.TeacherSlotDetail{TeacherID: teacher.ID, DayIndex: proposed.DayIndex, SlotIndex: proposed.SlotIndex, Reason: blocked.Reason},
				"",
				message,
			))
		}

		filter := models.CommitmentFilter{AcademicYearID: academicYearID, TeacherID: teacher.ID}.AtCell(proposed.DayIndex, proposed.SlotIndex)
		existing, err := v.existing(ctx, filter, proposed, pending)
		if err != nil {
			return nil, err
		}
		for _, other := range existing {
			if !collides(proposed, other, true) {
				continue
			}
			records = append(records, models.NewConflictRecord(
				models.TeacherScheduleDetail{
					TeacherID:  teacher.ID,
					DayIndex:   other.DayIndex,
					SlotIndex:  other.SlotIndex,
					ProgramID:  other.ProgramID,
					Semester:   other.Semester,
					Section:    other.Section,
					SubjectID:  other.SubjectID,
					Recurrence: other.Recurrence,
				},
				other.ID,
				fmt.Sprintf("Teacher %s already teaches %s for %s semester %d section %s on %s slot %d (%s)",
					name, other.SubjectID, other.ProgramID, other.Semester, other.Section,
					models.DayName(other.DayIndex), other.SlotIndex, other.Recurrence),
			))
		}
	}
	return records, nil
}

func (v *ConflictValidator) checkRoom(ctx context.Context, academicYearID string, proposed models.ScheduledClass, pending []models.ScheduledClass) ([]models.ConflictRecord, error) {
	if proposed.RoomID == "" {
		return nil, nil
	}
	room, err := v.rooms.FindByID(ctx, proposed.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("room %s not found", proposed.RoomID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	filter := models.CommitmentFilter{AcademicYearID: academicYearID, RoomID: room.ID}.AtCell(proposed.DayIndex, proposed.SlotIndex)
	existing, err := v.existing(ctx, filter, proposed, pending)
	if err != nil {
		return nil, err
	}

	var records []models.ConflictRecord
	for _, other := range existing {
		if !collides(proposed, other, true) {
			continue
		}
		records = append(records, models.NewConflictRecord(
			models.RoomDetail{
				RoomID:     room.ID,
				RoomName:   room.Name,
				DayIndex:   other.DayIndex,
				SlotIndex:  other.SlotIndex,
				ProgramID:  other.ProgramID,
				Semester:   other.Semester,
				Section:    other.Section,
				SubjectID:  other.SubjectID,
				Recurrence: other.Recurrence,
			},
			other.ID,
			fmt.Sprintf("Room %s is already booked for %s (%s semester %d section %s) on %s slot %d (%s)",
				displayName(room.Name, room.ID), other.SubjectID, other.ProgramID, other.Semester, other.Section,
				models.DayName(other.DayIndex), other.SlotIndex, other.Recurrence),
		))
	}
	return records, nil
}

func (v *ConflictValidator) checkSection(ctx context.Context, academicYearID string, proposed models.ScheduledClass, pending []models.ScheduledClass) ([]models.ConflictRecord, error) {
	semester := proposed.Semester
	filter := models.CommitmentFilter{
		AcademicYearID: academicYearID,
		ProgramID:      proposed.ProgramID,
		Semester:       &semester,
		Section:        proposed.Section,
	}.AtCell(proposed.DayIndex, proposed.SlotIndex)
	existing, err := v.existing(ctx, filter, proposed, pending)
	if err != nil {
		return nil, err
	}

	var records []models.ConflictRecord
	for _, other := range existing {
		if !collides(proposed, other, false) {
			continue
		}
		records = append(records, models.NewConflictRecord(
			models.SectionDetail{
				ProgramID:  proposed.ProgramID,
				Semester:   proposed.Semester,
				Section:    proposed.Section,
				DayIndex:   other.DayIndex,
				SlotIndex:  other.SlotIndex,
				SubjectID:  other.SubjectID,
				Recurrence: other.Recurrence,
			},
			other.ID,
			fmt.Sprintf("Section %s of %s semester %d already has %s on %s slot %d (%s)",
				proposed.Section, proposed.ProgramID, proposed.Semester, other.SubjectID,
				models.DayName(other.DayIndex), other.SlotIndex, other.Recurrence),
		))
	}
	return records, nil
}

// existing reads active commitments through the store, adds matching pending ones and drops the proposal itself.
func (v *ConflictValidator) existing(ctx context.Context, filter models.CommitmentFilter, proposed models.ScheduledClass, pending []models.ScheduledClass) ([]models.ScheduledClass, error) {
	found, err := v.store.Query(ctx, filter)
	if err != nil {
		v.logger.Warn("commitment query failed", zap.String("academic_year_id", filter.AcademicYearID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query commitments")
	}
	for _, member := range pending {
		if filter.Matches(member) {
			found = append(found, member)
		}
	}
	if proposed.ID == "" {
		return found, nil
	}
	return lo.Filter(found, func(other models.ScheduledClass, _ int) bool {
		return other.ID != proposed.ID
	}), nil
}

func (v *ConflictValidator) logOutcome(operation string, proposed models.ScheduledClass, report *models.ConflictReport) {
	if !report.HasConflicts {
		return
	}
	v.logger.Debug("scheduling conflicts detected",
		zap.String("operation", operation),
		zap.String("academic_year_id", proposed.AcademicYearID),
		zap.String("program_id", proposed.ProgramID),
		zap.String("section", proposed.Section),
		zap.Int("day_index", proposed.DayIndex),
		zap.Int("slot_index", proposed.SlotIndex),
		zap.Int("conflicts", len(report.Conflicts)),
	)
}

// collides applies the recurrence overlap rule and, for teacher and room checks, the semester parity gate.
func collides(proposed, other models.ScheduledClass, parityGated bool) bool {
	if !models.Overlaps(proposed.Recurrence, other.Recurrence) {
		return false
	}
	if parityGated && !models.SameParity(proposed.Semester, other.Semester) {
		return false
	}
	return true
}

func checkProposal(academicYearID string, proposed models.ScheduledClass) error {
	var problems []string
	if strings.TrimSpace(academicYearID) == "" {
		problems = append(problems, "academic year is required")
	}
	if proposed.AcademicYearID != "" && proposed.AcademicYearID != academicYearID {
		problems = append(problems, "proposal belongs to a different academic year")
	}
	if proposed.ProgramID == "" || proposed.Section == "" {
		problems = append(problems, "program and section are required")
	}
	if proposed.Semester < 1 {
		problems = append(problems, "semester must be positive")
	}
	if !models.ValidDay(proposed.DayIndex) {
		problems = append(problems, fmt.Sprintf("day index %d outside 0-6", proposed.DayIndex))
	}
	if proposed.SlotIndex < 0 {
		problems = append(problems, "slot index must not be negative")
	}
	if proposed.ClassType != models.ClassTypeBreak && len(proposed.TeacherIDs) == 0 {
		problems = append(problems, "at least one teacher is required")
	}
	if err := proposed.Recurrence.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "invalid proposal: "+strings.Join(problems, "; "))
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
