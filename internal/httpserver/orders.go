package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lessonshop/internal/domain"
	"lessonshop/internal/metrics"
	"lessonshop/internal/requestid"
	ordersvc "lessonshop/internal/service/order"
)

type orderHandler struct {
	svc     OrderService
	metrics *metrics.ServerMetrics
}

type orderLineRequest struct {
	LessonID string `json:"lessonId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type orderRequest struct {
	FirstName string             `json:"firstName" binding:"required"`
	LastName  string             `json:"lastName" binding:"required"`
	Address   string             `json:"address" binding:"required"`
	City      string             `json:"city" binding:"required"`
	Method    string             `json:"method" binding:"required,oneof=delivery pickup"`
	Phone     string             `json:"phone" binding:"required"`
	Gift      bool               `json:"gift"`
	Lines     []orderLineRequest `json:"lines" binding:"omitempty,dive"`
	LessonIDs []string           `json:"lessonIDs" binding:"omitempty,dive,required"`
}

func (r orderRequest) toDomain() domain.OrderRequest {
	out := domain.OrderRequest{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Address:   r.Address,
		City:      r.City,
		Method:    r.Method,
		Phone:     r.Phone,
		Gift:      r.Gift,
		LessonIDs: r.LessonIDs,
	}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, domain.OrderLine{LessonID: l.LessonID, Quantity: l.Quantity})
	}
	return out
}

// create stores an order. Lesson spaces are left untouched; clients
// decrement them with PUT /lessons/:id.
func (h *orderHandler) create(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid order: "+err.Error())
		return
	}

	order, err := h.svc.Create(c.Request.Context(), req.toDomain(), requestid.From(c.Request.Context()))
	if err != nil {
		switch {
		case errors.Is(err, ordersvc.ErrInvalidOrder):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, ordersvc.ErrUnknownLesson):
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "failed to create order")
		}
		return
	}
	if h.metrics != nil {
		h.metrics.OrdersCreated.Inc()
	}
	c.JSON(http.StatusCreated, order)
}

func (h *orderHandler) get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "order not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "failed to load order")
		return
	}
	c.JSON(http.StatusOK, order)
}
