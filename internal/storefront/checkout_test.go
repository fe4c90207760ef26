package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonshop/internal/domain"
)

func readySession(t *testing.T, store *fakeStore, adds ...string) *Session {
	t.Helper()
	s := newTestSession(store)
	require.NoError(t, s.Load(context.Background()))
	for _, id := range adds {
		require.True(t, s.AddToCart(id), "add %s", id)
	}
	require.NoError(t, s.UpdateForm(func(f *OrderForm) { *f = validForm() }))
	return s
}

func TestSubmitCommitted(t *testing.T) {
	store := newFakeStore(lesson("a", "Art", "York", 50, 2), lesson("m", "Math", "Leeds", 70, 5))
	s := readySession(t, store, "a", "m", "a")

	out, err := s.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateCommitted, out.State)
	assert.Equal(t, "order-1", out.Order.ID)
	assert.NoError(t, out.RefreshErr)
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.CartLen())
	assert.Equal(t, DefaultOrderForm(), s.Form())
	assert.False(t, s.RetryWouldDuplicate())

	a, _ := s.Catalog().Lookup("a")
	m, _ := s.Catalog().Lookup("m")
	assert.Equal(t, 0, a.Spaces)
	assert.Equal(t, 4, m.Spaces)
	assert.Equal(t, 2, store.listCalls)

	require.Len(t, store.orders, 1)
	req := store.orders[0]
	assert.Equal(t, []domain.OrderLine{{LessonID: "a", Quantity: 2}, {LessonID: "m", Quantity: 1}}, req.Lines)
	assert.Equal(t, []string{"a", "m", "a"}, req.LessonIDs)
	assert.Equal(t, "John", req.FirstName)

	last, ok := s.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, out.SubmissionID, last.SubmissionID)
}

func TestSubmitPartiallyFailed(t *testing.T) {
	store := newFakeStore(lesson("a", "Art", "York", 50, 4), lesson("b", "Biology", "Hull", 60, 4))
	store.updateErr["b"] = errBoom
	s := readySession(t, store, "a", "b")

	out, err := s.Submit(context.Background())

	var invErr *InventoryUpdateError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "order-1", invErr.OrderID)
	require.Len(t, invErr.Failed, 1)
	assert.Equal(t, "b", invErr.Failed[0].LessonID)
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, StatePartiallyFailed, out.State)
	assert.NotEqual(t, msgCommitted, out.Message)
	assert.Contains(t, out.Message, "order-1")
	assert.Contains(t, out.Message, "b")
	assert.Len(t, out.Decrements, 2)

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 2, s.CartLen())
	assert.True(t, s.RetryWouldDuplicate())
	assert.Len(t, store.orders, 1)

	a, _ := s.Catalog().Lookup("a")
	b, _ := s.Catalog().Lookup("b")
	assert.Equal(t, 3, a.Spaces)
	assert.Equal(t, 4, b.Spaces)
	assert.Equal(t, 1, store.listCalls)

	// changing the cart clears the duplicate warning
	require.NoError(t, s.RemoveFromCart(1))
	assert.False(t, s.RetryWouldDuplicate())
}

func TestSubmitRejectedLeavesEverythingUntouched(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	store.createErr = errBoom
	s := readySession(t, store, "m1", "e1")

	out, err := s.Submit(context.Background())

	var createErr *OrderCreateError
	require.ErrorAs(t, err, &createErr)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, msgRejected, out.Message)
	assert.Zero(t, store.writeCount())
	assert.Equal(t, 2, s.CartLen())
	assert.Equal(t, validForm(), s.Form())
	assert.False(t, s.RetryWouldDuplicate())
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitValidationMakesNoNetworkCall(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1")
	require.NoError(t, s.UpdateForm(func(f *OrderForm) { f.FirstName = "John123" }))

	out, err := s.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("firstName"))
	assert.Equal(t, StateIdle, out.State)
	assert.Empty(t, store.orders)
	assert.Zero(t, store.writeCount())
	_, recorded := s.LastOutcome()
	assert.False(t, recorded)
}

func TestSubmitEmptyCart(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store)

	_, err := s.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("cart"))
	assert.False(t, s.IsSubmittable())
	assert.Empty(t, store.orders)
}

func TestSubmitRejectsLessonsMissingFromCatalog(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1", "e1")
	store.lessons = store.lessons[1:]
	require.NoError(t, s.Load(context.Background()))

	_, err := s.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("cart"))
	assert.Contains(t, err.Error(), "m1")
	assert.Empty(t, store.orders)
}

func TestDecrementTargetsCachedSpacesMinusQuantity(t *testing.T) {
	store := newFakeStore(lesson("m", "Math", "Leeds", 70, 5))
	s := NewSession(store, Options{Policy: StrictPolicy, DecrementConcurrency: 1})
	require.NoError(t, s.Load(context.Background()))
	require.True(t, s.AddToCart("m"))
	require.True(t, s.AddToCart("m"))
	require.NoError(t, s.UpdateForm(func(f *OrderForm) { *f = validForm() }))

	// another shopper took a seat after our snapshot
	store.setSpaces("m", 4)

	out, err := s.Submit(context.Background())

	require.NoError(t, err)
	require.Len(t, out.Decrements, 1)
	d := out.Decrements[0]
	assert.Equal(t, 5, d.From)
	assert.Equal(t, 3, d.To)
	require.Len(t, store.writes, 1)
	assert.Equal(t, spacesWrite{LessonID: "m", Spaces: 3}, store.writes[0])
}

func TestOptimisticDecrementDetectsStaleSnapshot(t *testing.T) {
	store := newFakeStore(lesson("m", "Math", "Leeds", 70, 5), lesson("a", "Art", "York", 50, 2))
	s := readySession(t, store, "m", "a")
	store.setSpaces("m", 4)

	out, err := s.Submit(context.Background())

	var invErr *InventoryUpdateError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, []string{"m"}, invErr.Stale())
	assert.Equal(t, StatePartiallyFailed, out.State)
	assert.Equal(t, 4, store.lessons[0].Spaces)
	assert.Equal(t, 1, store.lessons[1].Spaces)
}

func TestSubmitWhileSubmittingIsRefused(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1")
	store.blockCreate = make(chan struct{})
	store.created = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-store.created

	assert.Equal(t, StateSubmitting, s.State())
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.ErrorIs(t, s.Cancel(), ErrSubmissionInProgress)
	assert.ErrorIs(t, s.RemoveFromCart(0), ErrSubmissionInProgress)
	assert.ErrorIs(t, s.UpdateForm(func(*OrderForm) {}), ErrSubmissionInProgress)
	assert.False(t, s.AddToCart("e1"))

	close(store.blockCreate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not settle")
	}
	assert.Len(t, store.orders, 1)
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitRefusedWhileCommittedRefreshRuns(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1")
	store.mu.Lock()
	store.blockList = make(chan struct{})
	store.listing = make(chan struct{})
	store.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		out, _ := s.Submit(context.Background())
		done <- out
	}()
	<-store.listing

	assert.Equal(t, StateSubmitting, s.State())
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.False(t, s.AddToCart("e1"))
	assert.ErrorIs(t, s.Cancel(), ErrSubmissionInProgress)
	assert.ErrorIs(t, s.UpdateForm(func(f *OrderForm) { f.FirstName = "Jane" }), ErrSubmissionInProgress)

	close(store.blockList)
	select {
	case out := <-done:
		assert.Equal(t, StateCommitted, out.State)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not settle")
	}
	assert.Len(t, store.orders, 1)
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.CartLen())
	assert.Equal(t, DefaultOrderForm(), s.Form())
}

func TestSubmitRejectsCartBeyondCachedSpaces(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m2", "m2")
	store.setSpaces("m2", 1)
	require.NoError(t, s.Load(context.Background()))

	out, err := s.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("cart"))
	assert.Contains(t, err.Error(), "m2")
	assert.Equal(t, StateIdle, out.State)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, store.orders)
	assert.Zero(t, store.writeCount())
	assert.Equal(t, 2, s.CartLen())
}

func TestIllegalTransitionIsAnError(t *testing.T) {
	s := newTestSession(newFakeStore())
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.transition(StateCommitted, "sub-1")

	var terr *IllegalTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StateIdle, terr.From)
	assert.Equal(t, StateCommitted, terr.To)
	assert.Equal(t, StateIdle, s.state)
	require.NoError(t, s.transition(StateSubmitting, "sub-1"))
	assert.Equal(t, StateSubmitting, s.state)
}

func TestCancelClearsCartAndForm(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1", "m1")

	require.NoError(t, s.Cancel())

	assert.Zero(t, s.CartLen())
	assert.Equal(t, DefaultOrderForm(), s.Form())
	assert.Empty(t, store.orders)
	assert.Zero(t, store.writeCount())
	m1, _ := s.Catalog().Lookup("m1")
	assert.Equal(t, 5, m1.Spaces)
}

func TestCommittedWithFailedRefresh(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1")
	store.listErr = errBoom

	out, err := s.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateCommitted, out.State)
	var fetchErr *FetchError
	require.ErrorAs(t, out.RefreshErr, &fetchErr)
	m1, _ := s.Catalog().Lookup("m1")
	assert.Equal(t, 4, m1.Spaces)
	assert.Zero(t, s.CartLen())
}

func TestSessionRemainingAndTotal(t *testing.T) {
	store := newFakeStore(sampleLessons()...)
	s := readySession(t, store, "m1", "e1", "m1")

	m1, _ := s.Catalog().Lookup("m1")
	assert.Equal(t, 3, s.Remaining(m1))
	assert.Equal(t, 2, s.CountOf("m1"))
	assert.True(t, s.CanAdd(m1))
	assert.Equal(t, "280.00", s.CartTotal())

	a1, _ := s.Catalog().Lookup("a1")
	assert.False(t, s.AddToCart("a1"))
	assert.Equal(t, 0, s.Remaining(a1))
	assert.False(t, s.AddToCart("missing"))
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(StateIdle, StateSubmitting))
	assert.False(t, CanTransitionTo(StateIdle, StateCommitted))
	assert.True(t, CanTransitionTo(StateSubmitting, StatePartiallyFailed))
	assert.False(t, CanTransitionTo(StateCommitted, StateSubmitting))
	for _, st := range []CheckoutState{StateCommitted, StatePartiallyFailed, StateRejected} {
		assert.True(t, st.IsTerminal())
		assert.True(t, CanTransitionTo(st, StateIdle))
	}
	assert.False(t, StateSubmitting.IsTerminal())
}
