package storefront

import (
	"slices"

	"github.com/shopspring/decimal"

	"lessonshop/internal/domain"
)

// CartLedger is the ordered multiset of lesson ids a user intends to buy.
// It references lessons by id only and is never persisted.
type CartLedger struct {
	ids []string
}

func NewCartLedger() *CartLedger {
	return &CartLedger{}
}

// CartItem is one ledger position resolved against the catalog.
type CartItem struct {
	Position int
	LessonID string
	Lesson   domain.Lesson
	Found    bool
}

func (l *CartLedger) CountOf(lessonID string) int {
	n := 0
	for _, id := range l.ids {
		if id == lessonID {
			n++
		}
	}
	return n
}

// Remaining is lesson.Spaces minus what the ledger already holds. It can go
// negative when a refresh lowered spaces below what was reserved.
func (l *CartLedger) Remaining(lesson domain.Lesson) int {
	return lesson.Spaces - l.CountOf(lesson.ID)
}

// DisplayRemaining clamps Remaining at zero for presentation.
func (l *CartLedger) DisplayRemaining(lesson domain.Lesson) int {
	return max(0, l.Remaining(lesson))
}

func (l *CartLedger) CanAdd(lesson domain.Lesson) bool {
	return lesson.ID != "" && l.Remaining(lesson) > 0
}

// Add appends lesson.ID when there is room and reports whether it did.
func (l *CartLedger) Add(lesson domain.Lesson) bool {
	if !l.CanAdd(lesson) {
		return false
	}
	l.ids = append(l.ids, lesson.ID)
	return true
}

// RemoveAt drops the entry at position.
func (l *CartLedger) RemoveAt(position int) error {
	if position < 0 || position >= len(l.ids) {
		return &IndexError{Index: position, Len: len(l.ids)}
	}
	l.ids = slices.Delete(l.ids, position, position+1)
	return nil
}

// Aggregate folds the ledger into one line per distinct lesson, in first-seen order.
func (l *CartLedger) Aggregate() []domain.OrderLine {
	index := make(map[string]int, len(l.ids))
	lines := make([]domain.OrderLine, 0, len(l.ids))
	for _, id := range l.ids {
		if i, ok := index[id]; ok {
			lines[i].Quantity++
			continue
		}
		index[id] = len(lines)
		lines = append(lines, domain.OrderLine{LessonID: id, Quantity: 1})
	}
	return lines
}

func (l *CartLedger) Len() int { return len(l.ids) }

// IDs returns a copy of the ledger in insertion order.
func (l *CartLedger) IDs() []string { return slices.Clone(l.ids) }

func (l *CartLedger) Clear() { l.ids = nil }

// Items resolves each position against the catalog snapshot.
func (l *CartLedger) Items(c *Catalog) []CartItem {
	items := make([]CartItem, 0, len(l.ids))
	for i, id := range l.ids {
		lesson, ok := c.Lookup(id)
		items = append(items, CartItem{Position: i, LessonID: id, Lesson: lesson, Found: ok})
	}
	return items
}

// Total sums the catalog price of every entry. Entries missing from the catalog count as zero.
func (l *CartLedger) Total(c *Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, id := range l.ids {
		if lesson, ok := c.Lookup(id); ok {
			total = total.Add(lesson.Price)
		}
	}
	return total
}
