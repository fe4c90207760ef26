package order

import (
	"context"

	"lessonshop/internal/domain"
)

type CreateOrderInput struct {
	FirstName string
	LastName  string
	Address   string
	City      string
	Method    string
	Phone     string
	Gift      bool
	Lines     []domain.OrderLine
	RequestID string
}

type Repository interface {
	Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}
