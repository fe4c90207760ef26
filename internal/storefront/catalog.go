package storefront

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lessonshop/internal/domain"
)

// SortField selects the lesson attribute a view is ordered by.
type SortField string

const (
	SortBySubject  SortField = "subject"
	SortByLocation SortField = "location"
	SortByPrice    SortField = "price"
	SortBySpaces   SortField = "spaces"
)

// SortFields lists the fields in the order a UI cycles through them.
var SortFields = []SortField{SortBySubject, SortByLocation, SortByPrice, SortBySpaces}

// Direction is ascending or descending.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseSortField maps user input to a SortField.
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(SortFields, f) {
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// ParseDirection maps user input to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// LessonSource yields a full snapshot of the remote lesson collection.
type LessonSource interface {
	ListLessons(ctx context.Context) ([]domain.Lesson, error)
}

// Catalog holds the last known remote snapshot of all lessons.
type Catalog struct {
	mu       sync.RWMutex
	source   LessonSource
	lessons  []domain.Lesson
	loadedAt time.Time
	logger   zerolog.Logger
}

func NewCatalog(source LessonSource, logger zerolog.Logger) *Catalog {
	return &Catalog{source: source, logger: logger}
}

// Load replaces the whole collection with a fresh snapshot. On failure the
// previous snapshot is left untouched.
func (c *Catalog) Load(ctx context.Context) error {
	lessons, err := c.source.ListLessons(ctx)
	if err == nil {
		err = checkSnapshot(lessons)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("catalog load failed, keeping previous snapshot")
		return &FetchError{Err: err}
	}

	snapshot := slices.Clone(lessons)
	c.mu.Lock()
	c.lessons = snapshot
	c.loadedAt = time.Now()
	c.mu.Unlock()
	c.logger.Debug().Int("count", len(snapshot)).Msg("catalog loaded")
	return nil
}

func checkSnapshot(lessons []domain.Lesson) error {
	seen := make(map[string]struct{}, len(lessons))
	for _, l := range lessons {
		if l.ID == "" {
			return errors.New("lesson without id")
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("duplicate lesson id %s", l.ID)
		}
		seen[l.ID] = struct{}{}
		if l.Spaces < 0 {
			return fmt.Errorf("lesson %s has negative spaces", l.ID)
		}
		if l.Price.IsNegative() {
			return fmt.Errorf("lesson %s has negative price", l.ID)
		}
	}
	return nil
}

// Lessons returns a copy of the current snapshot in store order.
func (c *Catalog) Lessons() []domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lessons)
}

// LoadedAt is the time of the last successful Load.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Catalog) Lookup(id string) (domain.Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.lessons {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Lesson{}, false
}

// Filtered returns the lessons whose subject or location contains term,
// ignoring case. A blank term returns the full collection in order.
func (c *Catalog) Filtered(term string) []domain.Lesson {
	return FilterLessons(c.Lessons(), term)
}

// View is the composed catalog view: filter first, then sort the reduced set.
func (c *Catalog) View(term string, field SortField, dir Direction) []domain.Lesson {
	return SortLessons(c.Filtered(term), field, dir)
}

// ApplyDecrement records an acknowledged remote capacity write locally.
// A zero version leaves the cached version unchanged.
func (c *Catalog) ApplyDecrement(id string, spaces int, version int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lessons {
		if c.lessons[i].ID != id {
			continue
		}
		c.lessons[i].Spaces = spaces
		if version != 0 {
			c.lessons[i].Version = version
		}
		return true
	}
	return false
}

// FilterLessons is the pure form of Catalog.Filtered.
func FilterLessons(lessons []domain.Lesson, term string) []domain.Lesson {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return slices.Clone(lessons)
	}
	out := make([]domain.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if strings.Contains(strings.ToLower(l.Subject), term) || strings.Contains(strings.ToLower(l.Location), term) {
			out = append(out, l)
		}
	}
	return out
}

// SortLessons returns a stably sorted copy of lessons; the input is not modified.
func SortLessons(lessons []domain.Lesson, field SortField, dir Direction) []domain.Lesson {
	out := slices.Clone(lessons)
	slices.SortStableFunc(out, func(a, b domain.Lesson) int {
		c := compareLessons(a, b, field)
		if dir == Descending {
			return -c
		}
		return c
	})
	return out
}

func compareLessons(a, b domain.Lesson, field SortField) int {
	switch field {
	case SortByLocation:
		return strings.Compare(strings.ToLower(a.Location), strings.ToLower(b.Location))
	case SortByPrice:
		return a.Price.Cmp(b.Price)
	case SortBySpaces:
		return cmp.Compare(a.Spaces, b.Spaces)
	default:
		return strings.Compare(strings.ToLower(a.Subject), strings.ToLower(b.Subject))
	}
}
