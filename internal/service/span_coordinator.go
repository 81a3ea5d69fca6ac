package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
	"github.com/noah-isme/uni-timetable-api/pkg/middleware/requestid"
)

// JobTypeSpanCleanup removes span members a failed rollback left behind.
const JobTypeSpanCleanup = "span_cleanup"

type commitmentWriter interface {
	Create(ctx context.Context, class *models.ScheduledClass) error
	Delete(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// SpanCleanupPayload lists the orphaned members of one span.
type SpanCleanupPayload struct {
	AcademicYearID string
	SpanID         string
	MemberIDs      []string
}

// SpanCoordinator validates and commits multi-period spans as a unit.
type SpanCoordinator struct {
	conflicts *ConflictValidator
	electives *ElectiveValidator
	writer    commitmentWriter
	cleanup   jobDispatcher
	cache     *AvailabilityCache
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSpanCoordinator constructs a SpanCoordinator. cleanup and cache may be nil.
func NewSpanCoordinator(conflicts *ConflictValidator, electives *ElectiveValidator, writer commitmentWriter, cleanup jobDispatcher, cache *AvailabilityCache, metrics *MetricsService, logger *zap.Logger) *SpanCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpanCoordinator{
		conflicts: conflicts,
		electives: electives,
		writer:    writer,
		cleanup:   cleanup,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// ValidateAndCommit validates every member against the store and its earlier siblings, then persists them in slot order.
// A conflicting span yields a result carrying the report and nothing is persisted.
func (c *SpanCoordinator) ValidateAndCommit(ctx context.Context, academicYearID string, slots []models.ScheduledClass) (*models.SpanCommitResult, error) {
	members, err := prepareSpan(academicYearID, slots)
	if err != nil {
		return nil, err
	}
	spanID := *members[0].SpanID

	for i := range members {
		report, err := c.validateMember(ctx, academicYearID, members[i], members[:i])
		if err != nil {
			return nil, err
		}
		if report.HasConflicts {
			c.metrics.ObserveSpan(SpanRejected)
			c.logger.Debug("span rejected", zap.String("span_id", spanID), zap.Int("position", members[i].SpanPosition), zap.Int("conflicts", len(report.Conflicts)))
			return &models.SpanCommitResult{SpanID: spanID, Created: []string{}, Report: report}, nil
		}
	}

	created := make([]string, 0, len(members))
	for i := range members {
		if err := c.writer.Create(ctx, &members[i]); err != nil {
			return c.rollback(ctx, academicYearID, members[i], created, err)
		}
		created = append(created, members[i].ID)
	}

	c.metrics.ObserveSpan(SpanCommitted)
	c.cache.Invalidate(ctx, academicYearID)
	c.logger.Info("span committed", zap.String("span_id", spanID), zap.Int("members", len(created)))
	return &models.SpanCommitResult{SpanID: spanID, Created: created, Members: members}, nil
}

func (c *SpanCoordinator) validateMember(ctx context.Context, academicYearID string, member models.ScheduledClass, reserved []models.ScheduledClass) (*models.ConflictReport, error) {
	if member.IsElective() {
		return c.electives.validateElective(ctx, academicYearID, member, reserved)
	}
	return c.conflicts.validate(ctx, academicYearID, member, reserved)
}

// rollback deletes the created members newest first. Deletion ignores cancellation of the request context.
func (c *SpanCoordinator) rollback(ctx context.Context, academicYearID string, failed models.ScheduledClass, created []string, cause error) (*models.SpanCommitResult, error) {
	spanID := *failed.SpanID
	compensateCtx := context.WithoutCancel(ctx)

	var orphaned []string
	var rollbackErrs []error
	for i := len(created) - 1; i >= 0; i-- {
		if err := c.writer.Delete(compensateCtx, created[i]); err != nil {
			orphaned = append(orphaned, created[i])
			rollbackErrs = append(rollbackErrs, fmt.Errorf("delete %s: %w", created[i], err))
		}
	}

	if len(orphaned) > 0 {
		c.metrics.ObserveSpan(SpanPartialFailure)
		partial := &models.PartialSpanFailureError{
			SpanID:      spanID,
			Orphaned:    orphaned,
			Cause:       cause,
			RollbackErr: errors.Join(rollbackErrs...),
		}
		c.logger.Error("span rollback incomplete",
			zap.String("span_id", spanID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Strings("orphaned", orphaned),
			zap.NamedError("cause", cause),
			zap.NamedError("rollback_error", partial.RollbackErr),
		)
		c.enqueueCleanup(academicYearID, spanID, orphaned)
		c.cache.Invalidate(compensateCtx, academicYearID)
		return nil, appErrors.Wrap(partial, appErrors.ErrPartialSpanFailure.Code, appErrors.ErrPartialSpanFailure.Status,
			fmt.Sprintf("span %s rollback incomplete; orphaned members: %s", spanID, strings.Join(orphaned, ", ")))
	}

	c.metrics.ObserveSpan(SpanRolledBack)
	c.logger.Warn("span rolled back", zap.String("span_id", spanID), zap.Int("deleted", len(created)), zap.Error(cause))

	var violation *models.UniquenessViolationError
	if errors.As(cause, &violation) {
		if report, ok := c.conflicts.ExplainViolation(compensateCtx, academicYearID, failed, violation); ok {
			return &models.SpanCommitResult{SpanID: spanID, Created: []string{}, Report: report}, nil
		}
	}
	return nil, appErrors.Wrap(cause, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist span")
}

func (c *SpanCoordinator) enqueueCleanup(academicYearID, spanID string, orphaned []string) {
	if c.cleanup == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeSpanCleanup,
		Payload: SpanCleanupPayload{AcademicYearID: academicYearID, SpanID: spanID, MemberIDs: orphaned},
	}
	if err := c.cleanup.Enqueue(job); err != nil {
		c.logger.Error("failed to enqueue span cleanup", zap.String("span_id", spanID), zap.Error(err))
	}
}

// prepareSpan orders the members by slot, checks they form one contiguous block and stamps the span fields.
func prepareSpan(academicYearID string, slots []models.ScheduledClass) ([]models.ScheduledClass, error) {
	if len(slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a span needs at least one slot")
	}

	members := make([]models.ScheduledClass, len(slots))
	copy(members, slots)
	for i := range members {
		members[i].DefaultSection()
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].SlotIndex < members[j].SlotIndex
	})

	first := members[0]
	spanIDs := lo.Uniq(lo.FilterMap(members, func(member models.ScheduledClass, _ int) (string, bool) {
		if member.SpanID == nil || *member.SpanID == "" {
			return "", false
		}
		return *member.SpanID, true
	}))
	if len(spanIDs) > 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "span members carry different span ids")
	}
	spanID := uuid.NewString()
	if len(spanIDs) == 1 {
		spanID = spanIDs[0]
	}

	for i := range members {
		member := &members[i]
		if i > 0 {
			if problem := spanMismatch(first, *member); problem != "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("span member %d %s", i+1, problem))
			}
			if member.SlotIndex != members[i-1].SlotIndex+1 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("span slots must be contiguous, found %d after %d", member.SlotIndex, members[i-1].SlotIndex))
			}
		}
		member.ID = ""
		member.AcademicYearID = academicYearID
		member.SpanID = &spanID
		member.SpanMaster = i == 0
		member.SpanPosition = i + 1
		member.SpanTotal = len(members)
		member.Recurrence = member.Recurrence.Normalize()
		member.IsActive = true
	}
	return members, nil
}

func spanMismatch(first, member models.ScheduledClass) string {
	switch {
	case member.DayIndex != first.DayIndex:
		return "is on a different day"
	case member.ProgramID != first.ProgramID || member.Semester != first.Semester || member.Section != first.Section:
		return "belongs to a different section"
	case member.SubjectID != first.SubjectID:
		return "has a different subject"
	case member.ClassType != first.ClassType:
		return "has a different class type"
	case member.RoomID != first.RoomID:
		return "uses a different room"
	case !sameSet(first.TeacherIDs, member.TeacherIDs):
		return "has different teachers"
	case member.Recurrence.Key() != first.Recurrence.Key():
		return "has a different recurrence"
	case lo.FromPtr(member.ElectiveGroupID) != lo.FromPtr(first.ElectiveGroupID):
		return "belongs to a different elective group"
	case !sameSet(first.TargetSections, member.TargetSections):
		return "targets different sections"
	}
	return ""
}

func sameSet(a, b pq.StringArray) bool {
	left, right := lo.Uniq([]string(a)), lo.Uniq([]string(b))
	if len(left) != len(right) {
		return false
	}
	return len(lo.Intersect(left, right)) == len(left)
}
