package storefront

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lessonshop/internal/domain"
)

type spacesWrite struct {
	LessonID string
	Spaces   int
	Version  int64
}

// fakeStore is an in-memory Store. Writes are unconditional unless a version is passed.
type fakeStore struct {
	mu        sync.Mutex
	lessons   []domain.Lesson
	listErr   error
	createErr error
	updateErr map[string]error
	// blockCreate, when set, holds CreateOrder until closed
	blockCreate chan struct{}
	created     chan struct{}
	// blockList, when set, holds ListLessons until closed after signalling listing
	blockList chan struct{}
	listing   chan struct{}

	listCalls int
	orders    []domain.OrderRequest
	writes    []spacesWrite
}

func newFakeStore(lessons ...domain.Lesson) *fakeStore {
	return &fakeStore{lessons: lessons, updateErr: map[string]error{}}
}

func (f *fakeStore) ListLessons(_ context.Context) ([]domain.Lesson, error) {
	f.mu.Lock()
	block, listing := f.blockList, f.listing
	f.mu.Unlock()
	if listing != nil {
		close(listing)
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Lesson, len(f.lessons))
	copy(out, f.lessons)
	return out, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if f.created != nil {
		close(f.created)
	}
	if f.blockCreate != nil {
		<-f.blockCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.orders = append(f.orders, req)
	return &domain.Order{ID: "order-1", FirstName: req.FirstName, Lines: req.Lines}, nil
}

func (f *fakeStore) UpdateSpaces(_ context.Context, lessonID string, spaces int, version int64) (*domain.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, spacesWrite{LessonID: lessonID, Spaces: spaces, Version: version})
	if err := f.updateErr[lessonID]; err != nil {
		return nil, err
	}
	for i := range f.lessons {
		if f.lessons[i].ID != lessonID {
			continue
		}
		if version != 0 && f.lessons[i].Version != version {
			return nil, domain.ErrVersionConflict
		}
		f.lessons[i].Spaces = spaces
		f.lessons[i].Version++
		l := f.lessons[i]
		return &l, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) setSpaces(id string, spaces int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.lessons {
		if f.lessons[i].ID == id {
			f.lessons[i].Spaces = spaces
			f.lessons[i].Version++
		}
	}
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func lesson(id, subject, location string, price int64, spaces int) domain.Lesson {
	return domain.Lesson{ID: id, Subject: subject, Location: location, Price: decimal.NewFromInt(price), Spaces: spaces, Version: 1}
}

func sampleLessons() []domain.Lesson {
	return []domain.Lesson{
		lesson("m1", "Math", "London", 100, 5),
		lesson("e1", "English", "Oxford", 80, 3),
		lesson("a1", "Art", "london", 90, 0),
		lesson("m2", "math", "Bristol", 100, 2),
		lesson("s1", "Science", "York", 120, 4),
	}
}

func validForm() OrderForm {
	return OrderForm{
		FirstName: "John",
		LastName:  "Smith",
		Address:   "1 High Street",
		City:      "London",
		Method:    domain.MethodDelivery,
		Phone:     "07123456789",
	}
}

func newTestSession(store *fakeStore) *Session {
	return NewSession(store, Options{
		Policy:               StrictPolicy,
		DecrementConcurrency: 4,
		OptimisticInventory:  true,
		Logger:               zerolog.Nop(),
	})
}

var errBoom = errors.New("boom")
