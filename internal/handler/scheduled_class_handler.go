package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

type scheduledClassManager interface {
	List(ctx context.Context, query dto.ScheduledClassQuery) ([]models.ScheduledClass, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ScheduledClass, error)
	GetSpan(ctx context.Context, spanID string) ([]models.ScheduledClass, error)
	Create(ctx context.Context, req dto.ValidateProposalRequest) (*service.ScheduledClassResult, error)
	Update(ctx context.Context, id string, req dto.ValidateProposalRequest) (*service.ScheduledClassResult, error)
	Cancel(ctx context.Context, id string) (*dto.CancelResult, error)
}

// ScheduledClassHandler manages committed timetable entries.
type ScheduledClassHandler struct {
	service scheduledClassManager
}

// NewScheduledClassHandler constructs the handler.
func NewScheduledClassHandler(svc *service.ScheduledClassService) *ScheduledClassHandler {
	return &ScheduledClassHandler{service: svc}
}

// List godoc
// @Summary List scheduled classes
// @Tags Scheduled Classes
// @Produce json
// @Param academicYearId query string false "Academic year"
// @Param programId query string false "Program"
// @Param semester query int false "Semester"
// @Param section query string false "Section"
// @Param teacherId query string false "Teacher"
// @Param roomId query string false "Room"
// @Param dayIndex query int false "Day index, 0 is Monday"
// @Param spanId query string false "Span"
// @Param includeInactive query bool false "Include cancelled classes"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /scheduled-classes [get]
func (h *ScheduledClassHandler) List(c *gin.Context) {
	var query dto.ScheduledClassQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	classes, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get scheduled class
// @Tags Scheduled Classes
// @Produce json
// @Param id path string true "Scheduled class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduled-classes/{id} [get]
func (h *ScheduledClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// GetSpan godoc
// @Summary List the members of a span
// @Tags Scheduled Classes
// @Produce json
// @Param id path string true "Span ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /spans/{id} [get]
func (h *ScheduledClassHandler) GetSpan(c *gin.Context) {
	members, err := h.service.GetSpan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// Create godoc
// @Summary Validate and commit a single scheduled class
// @Tags Scheduled Classes
// @Accept json
// @Produce json
// @Param payload body dto.ValidateProposalRequest true "Proposal"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduled-classes [post]
func (h *ScheduledClassHandler) Create(c *gin.Context) {
	var req dto.ValidateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Rejected() {
		response.Conflict(c, result.Report)
		return
	}
	response.Created(c, result.Class)
}

// Update godoc
// @Summary Move or edit a scheduled class
// @Tags Scheduled Classes
// @Accept json
// @Produce json
// @Param id path string true "Scheduled class ID"
// @Param payload body dto.ValidateProposalRequest true "Proposal"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /scheduled-classes/{id} [put]
func (h *ScheduledClassHandler) Update(c *gin.Context) {
	var req dto.ValidateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Rejected() {
		response.Conflict(c, result.Report)
		return
	}
	response.JSON(c, http.StatusOK, result.Class, nil)
}

// Cancel godoc
// @Summary Cancel a scheduled class, or its whole span
// @Tags Scheduled Classes
// @Produce json
// @Param id path string true "Scheduled class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduled-classes/{id} [delete]
func (h *ScheduledClassHandler) Cancel(c *gin.Context) {
	result, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
