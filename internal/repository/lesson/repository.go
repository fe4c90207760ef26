package lesson

import (
	"context"

	"lessonshop/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Lesson, error)
	GetByID(ctx context.Context, id string) (*domain.Lesson, error)
	// UpdateSpaces sets spaces and bumps the version. expectedVersion 0 skips the version check.
	UpdateSpaces(ctx context.Context, id string, spaces int, expectedVersion int64) (*domain.Lesson, error)
	Upsert(ctx context.Context, lesson domain.Lesson) (*domain.Lesson, error)
}
