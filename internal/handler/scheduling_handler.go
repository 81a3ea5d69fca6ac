package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

type schedulingEngine interface {
	Validate(ctx context.Context, req dto.ValidateProposalRequest) (*models.ConflictReport, error)
	ValidateElective(ctx context.Context, req dto.ValidateProposalRequest) (*models.ConflictReport, error)
	CommitSpan(ctx context.Context, req dto.CommitSpanRequest) (*models.SpanCommitResult, error)
	FindAvailability(ctx context.Context, req dto.AvailabilityRequest) (*models.AvailabilityReport, error)
}

// SchedulingHandler exposes conflict checks, span commits and availability search.
type SchedulingHandler struct {
	service schedulingEngine
}

// NewSchedulingHandler constructs the handler.
func NewSchedulingHandler(svc *service.SchedulingService) *SchedulingHandler {
	return &SchedulingHandler{service: svc}
}

// Validate godoc
// @Summary Check a proposed class for conflicts
// @Description Always answers 200; a rejected proposal has hasConflicts set.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.ValidateProposalRequest true "Proposal"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduling/validate [post]
func (h *SchedulingHandler) Validate(c *gin.Context) {
	var req dto.ValidateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ValidateElective godoc
// @Summary Check an elective broadcast across its target sections
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.ValidateProposalRequest true "Elective proposal"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scheduling/validate-elective [post]
func (h *SchedulingHandler) ValidateElective(c *gin.Context) {
	var req dto.ValidateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.service.ValidateElective(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CommitSpan godoc
// @Summary Commit a multi-period class atomically
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.CommitSpanRequest true "Span members"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /scheduling/spans [post]
func (h *SchedulingHandler) CommitSpan(c *gin.Context) {
	var req dto.CommitSpanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.CommitSpan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Rejected() {
		response.Conflict(c, result.Report)
		return
	}
	response.Created(c, result)
}

// FindAvailability godoc
// @Summary Find slots where every listed teacher is free
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.AvailabilityRequest true "Teachers and constraints"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduling/availability [post]
func (h *SchedulingHandler) FindAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	start := time.Now()
	report, err := h.service.FindAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	middleware.SetProcessingTime(c, start)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}
