package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type schedulingEngineMock struct {
	report       *models.ConflictReport
	span         *models.SpanCommitResult
	availability *models.AvailabilityReport
	err          error

	validated dto.ValidateProposalRequest
	committed dto.CommitSpanRequest
	searched  dto.AvailabilityRequest
}

func (m *schedulingEngineMock) Validate(ctx context.Context, req dto.ValidateProposalRequest) (*models.ConflictReport, error) {
	m.validated = req
	return m.report, m.err
}

func (m *schedulingEngineMock) ValidateElective(ctx context.Context, req dto.ValidateProposalRequest) (*models.ConflictReport, error) {
	m.validated = req
	return m.report, m.err
}

func (m *schedulingEngineMock) CommitSpan(ctx context.Context, req dto.CommitSpanRequest) (*models.SpanCommitResult, error) {
	m.committed = req
	return m.span, m.err
}

func (m *schedulingEngineMock) FindAvailability(ctx context.Context, req dto.AvailabilityRequest) (*models.AvailabilityReport, error) {
	m.searched = req
	return m.availability, m.err
}

func newSchedulingRouter(mock *schedulingEngineMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := &SchedulingHandler{service: mock}
	router := gin.New()
	router.POST("/scheduling/validate", handler.Validate)
	router.POST("/scheduling/validate-elective", handler.ValidateElective)
	router.POST("/scheduling/spans", handler.CommitSpan)
	router.POST("/scheduling/availability", handler.FindAvailability)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func teacherConflictReport() *models.ConflictReport {
	detail := models.TeacherScheduleDetail{TeacherID: "t1", DayIndex: 0, SlotIndex: 1, Recurrence: models.Weekly()}
	return models.NewConflictReport(models.NewConflictRecord(detail, "sc-1", "Teacher is already teaching at this time"))
}

const proposalBody = `{"academicYearId":"ay-2025","proposal":{"programId":"cs","semester":3,"section":"A","dayIndex":0,"slotIndex":1,"classType":"lecture","teacherIds":["t1"],"recurrence":{"type":"alternate","pattern":"odd"}}}`

func TestSchedulingHandlerValidateReturnsReport(t *testing.T) {
	mock := &schedulingEngineMock{report: teacherConflictReport()}
	w := postJSON(newSchedulingRouter(mock), "/scheduling/validate", proposalBody)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ay-2025", mock.validated.AcademicYearID)
	require.NotNil(t, mock.validated.Proposal.DayIndex)
	assert.Equal(t, 0, *mock.validated.Proposal.DayIndex)
	assert.Equal(t, "odd", mock.validated.Proposal.Recurrence.Pattern)

	var report models.ConflictReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.True(t, report.HasConflicts)
	assert.Equal(t, "sc-1", report.Conflicts[0].ExistingCommitmentID)
}

func TestSchedulingHandlerRejectsMalformedJSON(t *testing.T) {
	router := newSchedulingRouter(&schedulingEngineMock{})
	for _, path := range []string{"/scheduling/validate", "/scheduling/validate-elective", "/scheduling/spans", "/scheduling/availability"} {
		w := postJSON(router, path, `{"academicYearId":`)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
	}
}

func TestSchedulingHandlerValidateElectiveMapsServiceErrors(t *testing.T) {
	mock := &schedulingEngineMock{err: appErrors.Clone(appErrors.ErrNotFound, "teacher t9 not found")}
	w := postJSON(newSchedulingRouter(mock), "/scheduling/validate-elective", proposalBody)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "teacher t9 not found", decodeEnvelope(t, w).Error.Message)
}

func TestSchedulingHandlerCommitSpan(t *testing.T) {
	body := `{"academicYearId":"ay-2025","slots":[{"programId":"cs","semester":3,"section":"A","dayIndex":2,"slotIndex":0,"classType":"practical"},{"programId":"cs","semester":3,"section":"A","dayIndex":2,"slotIndex":1,"classType":"practical"}]}`

	mock := &schedulingEngineMock{span: &models.SpanCommitResult{SpanID: "span-1", Created: []string{"sc-1", "sc-2"}}}
	w := postJSON(newSchedulingRouter(mock), "/scheduling/spans", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, mock.committed.Slots, 2)

	var result models.SpanCommitResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, []string{"sc-1", "sc-2"}, result.Created)

	mock = &schedulingEngineMock{span: &models.SpanCommitResult{Created: []string{}, Report: teacherConflictReport()}}
	w = postJSON(newSchedulingRouter(mock), "/scheduling/spans", body)
	require.Equal(t, http.StatusConflict, w.Code)
	var report models.ConflictReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.Equal(t, models.ConflictTeacherSchedule, report.Conflicts[0].Type)
}

func TestSchedulingHandlerCommitSpanPartialFailure(t *testing.T) {
	partial := &models.PartialSpanFailureError{SpanID: "span-1", Orphaned: []string{"sc-1"}, Cause: errors.New("timeout")}
	mock := &schedulingEngineMock{err: appErrors.Wrap(partial, appErrors.ErrPartialSpanFailure.Code, appErrors.ErrPartialSpanFailure.Status, "span rollback incomplete")}

	w := postJSON(newSchedulingRouter(mock), "/scheduling/spans", `{"academicYearId":"ay-2025","slots":[]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.ErrPartialSpanFailure.Code, env.Error.Code)
	assert.Equal(t, "span-1", env.Meta["spanId"])
	assert.Equal(t, []interface{}{"sc-1"}, env.Meta["orphaned"])
}

func TestSchedulingHandlerFindAvailability(t *testing.T) {
	mock := &schedulingEngineMock{availability: &models.AvailabilityReport{
		TeacherIDs:      []string{"t1", "t2"},
		CommonFreeSlots: []models.FreeSlotRun{{Day: 1, Slot: 2, Duration: 3}},
		Cached:          true,
	}}
	w := postJSON(newSchedulingRouter(mock), "/scheduling/availability",
		`{"academicYearId":"ay-2025","teacherIds":["t1","t2"],"constraints":{"minDuration":2,"excludeDays":[5]}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"t1", "t2"}, mock.searched.TeacherIDs)
	assert.Equal(t, 2, mock.searched.Constraints.MinDuration)
	assert.Equal(t, []int{5}, mock.searched.Constraints.ExcludeDays)

	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
	var report models.AvailabilityReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, []models.FreeSlotRun{{Day: 1, Slot: 2, Duration: 3}}, report.CommonFreeSlots)
}
