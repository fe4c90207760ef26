package cache

import (
	"context"
	"errors"

	"lessonshop/internal/domain"
)

// LessonCache stores the full lesson listing the store serves on GET /lessons.
type LessonCache interface {
	GetLessons(ctx context.Context) ([]domain.Lesson, error)
	SetLessons(ctx context.Context, lessons []domain.Lesson) error
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop is used when no redis is configured; every read misses.
type Nop struct{}

func (Nop) GetLessons(context.Context) ([]domain.Lesson, error) { return nil, ErrCacheMiss }

func (Nop) SetLessons(context.Context, []domain.Lesson) error { return nil }

func (Nop) Invalidate(context.Context) error { return nil }
