package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"lessonshop/internal/domain"
	orderrepo "lessonshop/internal/repository/order"
)

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrUnknownLesson = errors.New("unknown lesson")
)

type lessonLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Lesson, error)
}

type Service struct {
	repo    orderrepo.Repository
	lessons lessonLookup
	logger  zerolog.Logger
}

func New(repo orderrepo.Repository, lessons lessonLookup, logger zerolog.Logger) *Service {
	return &Service{repo: repo, lessons: lessons, logger: logger}
}

// Create validates and stores an order. It does not touch lesson spaces;
// the storefront decrements capacity with separate writes.
func (s *Service) Create(ctx context.Context, req domain.OrderRequest, requestID string) (*domain.Order, error) {
	in := orderrepo.CreateOrderInput{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Address:   strings.TrimSpace(req.Address),
		City:      strings.TrimSpace(req.City),
		Method:    strings.ToLower(strings.TrimSpace(req.Method)),
		Phone:     strings.TrimSpace(req.Phone),
		Gift:      req.Gift,
		RequestID: requestID,
	}
	for _, f := range []struct{ name, value string }{
		{"first name", in.FirstName},
		{"last name", in.LastName},
		{"address", in.Address},
		{"city", in.City},
		{"phone", in.Phone},
	} {
		if f.value == "" {
			return nil, fmt.Errorf("%w: %s required", ErrInvalidOrder, f.name)
		}
	}
	if in.Method != domain.MethodDelivery && in.Method != domain.MethodPickup {
		return nil, fmt.Errorf("%w: method must be %s or %s", ErrInvalidOrder, domain.MethodDelivery, domain.MethodPickup)
	}

	lines, err := normalizeLines(req)
	if err != nil {
		return nil, err
	}
	if s.lessons != nil {
		for _, line := range lines {
			if _, err := s.lessons.GetByID(ctx, line.LessonID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, fmt.Errorf("%w: %s", ErrUnknownLesson, line.LessonID)
				}
				return nil, err
			}
		}
	}
	in.Lines = lines

	order, err := s.repo.Create(ctx, in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnknownLesson
		}
		return nil, err
	}
	s.logger.Info().Str("order_id", order.ID).Int("quantity", order.Quantity()).Str("request_id", requestID).Msg("order accepted")
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

// normalizeLines prefers explicit lines and otherwise folds the flat id list.
// Repeated lessons are merged in first-seen order.
func normalizeLines(req domain.OrderRequest) ([]domain.OrderLine, error) {
	raw := req.Lines
	if len(raw) == 0 {
		for _, id := range req.LessonIDs {
			raw = append(raw, domain.OrderLine{LessonID: id, Quantity: 1})
		}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one lesson required", ErrInvalidOrder)
	}

	index := make(map[string]int, len(raw))
	lines := make([]domain.OrderLine, 0, len(raw))
	for _, line := range raw {
		id := strings.TrimSpace(line.LessonID)
		if id == "" {
			return nil, fmt.Errorf("%w: lesson id required", ErrInvalidOrder)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for %s", ErrInvalidOrder, id)
		}
		if i, ok := index[id]; ok {
			lines[i].Quantity += line.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, domain.OrderLine{LessonID: id, Quantity: line.Quantity})
	}
	return lines, nil
}
