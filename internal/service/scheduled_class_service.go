package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type scheduledClassStore interface {
	Query(ctx context.Context, filter models.CommitmentFilter) ([]models.ScheduledClass, error)
	List(ctx context.Context, filter models.CommitmentFilter, page, pageSize int) ([]models.ScheduledClass, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduledClass, error)
	Create(ctx context.Context, class *models.ScheduledClass) error
	Update(ctx context.Context, class *models.ScheduledClass) error
	Deactivate(ctx context.Context, id string) error
	DeactivateSpan(ctx context.Context, spanID string) ([]string, error)
}

// ScheduledClassResult carries either the persisted class or the conflicts that blocked it.
type ScheduledClassResult struct {
	Class  *models.ScheduledClass `json:"class,omitempty"`
	Report *models.ConflictReport `json:"report,omitempty"`
}

// Rejected reports whether the write was blocked by conflicts.
func (r *ScheduledClassResult) Rejected() bool {
	return r != nil && r.Report != nil && r.Report.HasConflicts
}

// ScheduledClassService manages the lifecycle of single scheduled classes.
type ScheduledClassService struct {
	store     scheduledClassStore
	conflicts *ConflictValidator
	electives *ElectiveValidator
	cache     *AvailabilityCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduledClassService instantiates ScheduledClassService.
func NewScheduledClassService(store scheduledClassStore, conflicts *ConflictValidator, electives *ElectiveValidator, cache *AvailabilityCache, validate *validator.Validate, logger *zap.Logger) *ScheduledClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduledClassService{
		store:     store,
		conflicts: conflicts,
		electives: electives,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns scheduled classes with pagination metadata.
func (s *ScheduledClassService) List(ctx context.Context, query dto.ScheduledClassQuery) ([]models.ScheduledClass, *models.Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	classes, total, err := s.store.List(ctx, query.ToFilter(), page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scheduled classes")
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a scheduled class by id.
func (s *ScheduledClassService) Get(ctx context.Context, id string) (*models.ScheduledClass, error) {
	class, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled class")
	}
	return class, nil
}

// GetSpan returns the active members of a span ordered by position.
func (s *ScheduledClassService) GetSpan(ctx context.Context, spanID string) ([]models.ScheduledClass, error) {
	members, err := s.store.Query(ctx, models.CommitmentFilter{SpanID: spanID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load span")
	}
	if len(members) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "span not found")
	}
	return members, nil
}

// Create validates a single class and persists it when it is conflict free.
func (s *ScheduledClassService) Create(ctx context.Context, req dto.ValidateProposalRequest) (*ScheduledClassResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduled class payload")
	}
	class := req.Proposal.ToModel(req.AcademicYearID)
	if class.IsSpanned() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spanned classes must be committed through the span endpoint")
	}
	class.ID = ""
	class.DefaultSection()

	report, err := s.check(ctx, req.AcademicYearID, class)
	if err != nil {
		return nil, err
	}
	if report.HasConflicts {
		return &ScheduledClassResult{Report: report}, nil
	}

	if err := s.store.Create(ctx, &class); err != nil {
		return s.writeFailed(ctx, req.AcademicYearID, class, err, "failed to create scheduled class")
	}
	s.cache.Invalidate(ctx, class.AcademicYearID)
	s.logger.Info("scheduled class created", zap.String("id", class.ID), zap.String("section", class.Section), zap.Int("day", class.DayIndex), zap.Int("slot", class.SlotIndex))
	return &ScheduledClassResult{Class: &class}, nil
}

// Update re-validates a class at its new position, ignoring its own current reservation.
// Span members can only be changed by cancelling and recommitting the span.
func (s *ScheduledClassService) Update(ctx context.Context, id string, req dto.ValidateProposalRequest) (*ScheduledClassResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduled class payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "scheduled class has been cancelled")
	}
	if current.IsSpanned() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("scheduled class belongs to span %s; cancel and recommit the span instead", *current.SpanID))
	}
	if current.AcademicYearID != req.AcademicYearID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic year cannot be changed")
	}

	class := req.Proposal.ToModel(req.AcademicYearID)
	if class.IsSpanned() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "span id cannot be assigned through an update")
	}
	class.ID = id
	class.CreatedAt = current.CreatedAt
	class.DefaultSection()

	report, err := s.check(ctx, req.AcademicYearID, class)
	if err != nil {
		return nil, err
	}
	if report.HasConflicts {
		return &ScheduledClassResult{Report: report}, nil
	}

	if err := s.store.Update(ctx, &class); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
		}
		return s.writeFailed(ctx, req.AcademicYearID, class, err, "failed to update scheduled class")
	}
	s.cache.Invalidate(ctx, class.AcademicYearID)
	s.logger.Info("scheduled class updated", zap.String("id", class.ID))
	return &ScheduledClassResult{Class: &class}, nil
}

// Cancel deactivates a class. Cancelling any member of a span cancels the whole span.
func (s *ScheduledClassService) Cancel(ctx context.Context, id string) (*dto.CancelResult, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
	}

	if current.IsSpanned() {
		spanID := *current.SpanID
		ids, err := s.store.DeactivateSpan(ctx, spanID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel span")
		}
		s.cache.Invalidate(ctx, current.AcademicYearID)
		s.logger.Info("span cancelled", zap.String("span_id", spanID), zap.Strings("ids", ids))
		return &dto.CancelResult{Cancelled: ids, SpanID: spanID}, nil
	}

	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel scheduled class")
	}
	s.cache.Invalidate(ctx, current.AcademicYearID)
	s.logger.Info("scheduled class cancelled", zap.String("id", id))
	return &dto.CancelResult{Cancelled: []string{id}}, nil
}

func (s *ScheduledClassService) check(ctx context.Context, academicYearID string, class models.ScheduledClass) (*models.ConflictReport, error) {
	if class.IsElective() {
		return s.electives.ValidateElective(ctx, academicYearID, class)
	}
	return s.conflicts.Validate(ctx, academicYearID, class)
}

// writeFailed turns a lost uniqueness race into a conflict report.
func (s *ScheduledClassService) writeFailed(ctx context.Context, academicYearID string, class models.ScheduledClass, err error, message string) (*ScheduledClassResult, error) {
	var violation *models.UniquenessViolationError
	if errors.As(err, &violation) {
		if report, ok := s.conflicts.ExplainViolation(ctx, academicYearID, class, violation); ok {
			s.logger.Warn("scheduled class lost a reservation race", zap.String("constraint", violation.Constraint))
			return &ScheduledClassResult{Report: report}, nil
		}
	}
	return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
