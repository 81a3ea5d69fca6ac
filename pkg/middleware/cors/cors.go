package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/noah-isme/uni-timetable-api/pkg/middleware/requestid"
)

var (
	allowMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", ")
	allowHeaders = strings.Join([]string{"Content-Type", requestid.Header}, ", ")
)

const maxAge = "600"

// New returns a CORS middleware. An empty list allows any origin.
// Preflights from origins outside the list are refused with 403.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := lo.Associate(allowedOrigins, func(origin string) (string, struct{}) {
		return normalize(origin), struct{}{}
	})

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")
		preflight := c.Request.Method == http.MethodOptions

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := origins[normalize(origin)]; len(origins) > 0 && !ok {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Expose-Headers", requestid.Header)
		if preflight {
			header.Set("Access-Control-Allow-Methods", allowMethods)
			header.Set("Access-Control-Allow-Headers", allowHeaders)
			header.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
