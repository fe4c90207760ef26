package httpserver

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lessonshop/internal/domain"
	"lessonshop/internal/storeclient"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody(msg))
}

// toLessonResponse resolves relative icon paths against fileURLHost.
func toLessonResponse(l domain.Lesson, fileURLHost string) domain.Lesson {
	if fileURLHost != "" {
		l.Icon = storeclient.ImageURL(fileURLHost, l.Icon)
	}
	return l
}

func etag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

// parseIfMatch returns the expected version from an If-Match header. Absent
// and "*" mean unconditional (0).
func parseIfMatch(header string) (int64, bool) {
	v := strings.TrimSpace(header)
	if v == "" || v == "*" {
		return 0, true
	}
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
