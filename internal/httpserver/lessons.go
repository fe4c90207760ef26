package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lessonshop/internal/domain"
	"lessonshop/internal/metrics"
	lessonsvc "lessonshop/internal/service/lesson"
)

type lessonHandler struct {
	svc         LessonService
	metrics     *metrics.ServerMetrics
	fileURLHost string
}

type spacesRequest struct {
	Spaces *int `json:"spaces" binding:"required,min=0"`
}

func (h *lessonHandler) list(c *gin.Context) {
	lessons, err := h.svc.List(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "failed to list lessons")
		return
	}
	out := make([]domain.Lesson, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, toLessonResponse(l, h.fileURLHost))
	}
	c.JSON(http.StatusOK, out)
}

func (h *lessonHandler) get(c *gin.Context) {
	l, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "lesson not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "failed to load lesson")
		return
	}
	c.Header("ETag", etag(l.Version))
	c.JSON(http.StatusOK, toLessonResponse(*l, h.fileURLHost))
}

// updateSpaces overwrites a lesson's spaces. With If-Match the write only
// applies when the stored version still matches.
func (h *lessonHandler) updateSpaces(c *gin.Context) {
	expected, ok := parseIfMatch(c.GetHeader("If-Match"))
	if !ok {
		abortWithError(c, http.StatusBadRequest, "invalid If-Match header")
		return
	}
	var req spacesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "spaces must be a non-negative integer")
		return
	}

	l, err := h.svc.UpdateSpaces(c.Request.Context(), c.Param("id"), *req.Spaces, expected)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.countWrite("not_found")
			abortWithError(c, http.StatusNotFound, "lesson not found")
		case errors.Is(err, domain.ErrVersionConflict):
			h.countWrite("conflict")
			abortWithError(c, http.StatusPreconditionFailed, "lesson was modified")
		case errors.Is(err, lessonsvc.ErrInvalidSpaces):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			h.countWrite("error")
			abortWithError(c, http.StatusInternalServerError, "failed to update lesson")
		}
		return
	}
	h.countWrite("ok")
	c.Header("ETag", etag(l.Version))
	c.JSON(http.StatusOK, toLessonResponse(*l, h.fileURLHost))
}

func (h *lessonHandler) countWrite(outcome string) {
	if h.metrics != nil {
		h.metrics.SpacesWrites.WithLabelValues(outcome).Inc()
	}
}
