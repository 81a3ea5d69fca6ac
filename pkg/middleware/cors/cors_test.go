package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serveWithOrigin(allowed []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New(allowed))
	router.Any("/scheduling/validate", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(method, "/scheduling/validate", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	allowed := []string{"https://timetable.example.edu/"}

	w := serveWithOrigin(allowed, http.MethodPost, "https://timetable.example.edu")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://timetable.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))

	w = serveWithOrigin(allowed, http.MethodOptions, "https://timetable.example.edu")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestCORSUnknownOrigin(t *testing.T) {
	allowed := []string{"https://timetable.example.edu"}

	w := serveWithOrigin(allowed, http.MethodGet, "https://evil.example.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serveWithOrigin(allowed, http.MethodOptions, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSAllowsAnyOriginWhenUnconfigured(t *testing.T) {
	w := serveWithOrigin(nil, http.MethodGet, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = serveWithOrigin(nil, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
