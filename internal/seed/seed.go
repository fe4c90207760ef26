package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"lessonshop/internal/domain"
)

// LessonWriter persists a lesson keyed by subject and location.
type LessonWriter interface {
	Upsert(ctx context.Context, lesson domain.Lesson) (*domain.Lesson, error)
}

type lessonSeed struct {
	Subject  string
	Location string
	Price    string
	Spaces   int
	Icon     string
}

var lessons = []lessonSeed{
	{Subject: "Math", Location: "London", Price: "100", Spaces: 5, Icon: "images/math.png"},
	{Subject: "Math", Location: "Oxford", Price: "90", Spaces: 5, Icon: "images/math.png"},
	{Subject: "English", Location: "London", Price: "80", Spaces: 5, Icon: "images/english.png"},
	{Subject: "English", Location: "York", Price: "75", Spaces: 5, Icon: "images/english.png"},
	{Subject: "Science", Location: "Bristol", Price: "120", Spaces: 5, Icon: "images/science.png"},
	{Subject: "Art", Location: "Brighton", Price: "60", Spaces: 5, Icon: "images/art.png"},
	{Subject: "Music", Location: "Manchester", Price: "95", Spaces: 5, Icon: "images/music.png"},
	{Subject: "Coding", Location: "Cambridge", Price: "150", Spaces: 5, Icon: "images/coding.png"},
	{Subject: "Drama", Location: "Leeds", Price: "70", Spaces: 5, Icon: "images/drama.png"},
	{Subject: "Chess", Location: "Edinburgh", Price: "55", Spaces: 5, Icon: "images/chess.png"},
}

// Apply upserts the demo lesson catalog. Re-running it resets prices, spaces
// and icons to the seeded values.
func Apply(ctx context.Context, w LessonWriter) (int, error) {
	for i, s := range lessons {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return i, fmt.Errorf("seed price for %s/%s: %w", s.Subject, s.Location, err)
		}
		l := domain.Lesson{
			Subject:  s.Subject,
			Location: s.Location,
			Price:    price,
			Spaces:   s.Spaces,
			Icon:     s.Icon,
		}
		if _, err := w.Upsert(ctx, l); err != nil {
			return i, fmt.Errorf("upsert lesson %s/%s: %w", s.Subject, s.Location, err)
		}
	}
	return len(lessons), nil
}
