package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	router := gin.New()
	router.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy, "redis": nil}).Ready)
	w := serve(router, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, w.Code)

	router = gin.New()
	router.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy, "redis": down}).Ready)
	w = serve(router, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveSpan(service.SpanCommitted)

	router := gin.New()
	router.GET("/metrics", NewMetricsHandler(metrics, nil).Prometheus)
	w := serve(router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `scheduling_span_commits_total{outcome="committed"} 1`))

	router = gin.New()
	router.GET("/metrics", NewMetricsHandler(nil, nil).Prometheus)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodGet, "/metrics", "").Code)
}
