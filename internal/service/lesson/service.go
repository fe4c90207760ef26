package lesson

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"lessonshop/internal/cache"
	"lessonshop/internal/domain"
	lessonrepo "lessonshop/internal/repository/lesson"
)

var ErrInvalidSpaces = errors.New("spaces must not be negative")

type Service struct {
	repo  lessonrepo.Repository
	cache cache.LessonCache
	sfg   singleflight.Group
	// gen counts writes; a read that straddles one does not fill the cache
	gen    atomic.Uint64
	logger zerolog.Logger
}

// New wires the lesson service. A nil cache disables caching.
func New(repo lessonrepo.Repository, c cache.LessonCache, logger zerolog.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{repo: repo, cache: c, logger: logger}
}

// List returns every lesson. Concurrent misses share one database read.
func (s *Service) List(ctx context.Context) ([]domain.Lesson, error) {
	v, err, _ := s.sfg.Do("lessons", func() (any, error) {
		lessons, err := s.cache.GetLessons(ctx)
		if err == nil {
			return lessons, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("lesson cache get failed")
		}

		gen := s.gen.Load()
		lessons, err = s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		if s.gen.Load() != gen {
			s.logger.Debug().Msg("lessons changed during read, skipping cache fill")
			return lessons, nil
		}
		if err := s.cache.SetLessons(ctx, lessons); err != nil {
			s.logger.Warn().Err(err).Msg("lesson cache set failed")
		}
		return lessons, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Lesson), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Lesson, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateSpaces writes a lesson's capacity. expectedVersion 0 is unconditional.
func (s *Service) UpdateSpaces(ctx context.Context, id string, spaces int, expectedVersion int64) (*domain.Lesson, error) {
	if spaces < 0 {
		return nil, ErrInvalidSpaces
	}
	l, err := s.repo.UpdateSpaces(ctx, strings.TrimSpace(id), spaces, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return l, nil
}

// Upsert creates or replaces a lesson by subject and location.
func (s *Service) Upsert(ctx context.Context, l domain.Lesson) (*domain.Lesson, error) {
	if strings.TrimSpace(l.Subject) == "" {
		return nil, errors.New("subject required")
	}
	if strings.TrimSpace(l.Location) == "" {
		return nil, errors.New("location required")
	}
	if l.Spaces < 0 {
		return nil, ErrInvalidSpaces
	}
	if l.Price.IsNegative() {
		return nil, errors.New("price must not be negative")
	}
	res, err := s.repo.Upsert(ctx, l)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return res, nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.gen.Add(1)
	s.sfg.Forget("lessons")
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("lesson cache invalidate failed")
	}
}
