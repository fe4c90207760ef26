package domain

import "time"

const (
	MethodDelivery = "delivery"
	MethodPickup   = "pickup"
)

// OrderLine is one distinct lesson and how many spaces of it are bought.
type OrderLine struct {
	LessonID string `json:"lessonId"`
	Quantity int    `json:"quantity"`
}

// OrderRequest is what a storefront submits to create an order.
type OrderRequest struct {
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Address   string      `json:"address"`
	City      string      `json:"city"`
	Method    string      `json:"method"`
	Phone     string      `json:"phone"`
	Gift      bool        `json:"gift"`
	Lines     []OrderLine `json:"lines"`
	LessonIDs []string    `json:"lessonIDs,omitempty"`
}

// Order is a created order record.
type Order struct {
	ID        string      `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Address   string      `json:"address"`
	City      string      `json:"city"`
	Method    string      `json:"method"`
	Phone     string      `json:"phone"`
	Gift      bool        `json:"gift"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Quantity returns the total number of spaces across all lines.
func (o Order) Quantity() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}
