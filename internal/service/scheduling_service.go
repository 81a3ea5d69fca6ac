package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

// SchedulingService exposes the conflict, elective, span and availability engines to request payloads.
type SchedulingService struct {
	conflicts    *ConflictValidator
	electives    *ElectiveValidator
	spans        *SpanCoordinator
	availability *AvailabilityService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSchedulingService instantiates SchedulingService.
func NewSchedulingService(conflicts *ConflictValidator, electives *ElectiveValidator, spans *SpanCoordinator, availability *AvailabilityService, validate *validator.Validate, logger *zap.Logger) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingService{
		conflicts:    conflicts,
		electives:    electives,
		spans:        spans,
		availability: availability,
		validator:    validate,
		logger:       logger,
	}
}

// Validate dry-runs a single proposal.
func (s *SchedulingService) Validate(ctx context.Context, req dto.ValidateProposalRequest) (*models.ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}
	return s.conflicts.Validate(ctx, req.AcademicYearID, req.Proposal.ToModel(req.AcademicYearID))
}

// ValidateElective dry-runs an elective broadcast over its target sections.
func (s *SchedulingService) ValidateElective(ctx context.Context, req dto.ValidateProposalRequest) (*models.ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid elective payload")
	}
	return s.electives.ValidateElective(ctx, req.AcademicYearID, req.Proposal.ToModel(req.AcademicYearID))
}

// CommitSpan validates and persists a multi-period class as one unit.
func (s *SchedulingService) CommitSpan(ctx context.Context, req dto.CommitSpanRequest) (*models.SpanCommitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid span payload")
	}
	slots := lo.Map(req.Slots, func(slot dto.ProposedClassRequest, _ int) models.ScheduledClass {
		return slot.ToModel(req.AcademicYearID)
	})
	return s.spans.ValidateAndCommit(ctx, req.AcademicYearID, slots)
}

// FindAvailability lists the slots in which every requested teacher is free.
func (s *SchedulingService) FindAvailability(ctx context.Context, req dto.AvailabilityRequest) (*models.AvailabilityReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	return s.availability.FindCommonFreeSlots(ctx, req.AcademicYearID, req.TeacherIDs, req.ToConstraints())
}
