package storefront

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"lessonshop/internal/domain"
)

// Store is the remote lesson store a session submits against. It exposes
// only single-lesson writes; nothing spans lessons transactionally.
type Store interface {
	LessonSource
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
	// UpdateSpaces sets a lesson's spaces. A non-zero version makes the
	// write conditional and a mismatch returns domain.ErrVersionConflict.
	UpdateSpaces(ctx context.Context, lessonID string, spaces int, version int64) (*domain.Lesson, error)
}

// CheckoutState is a step of the submission state machine.
type CheckoutState string

const (
	StateIdle            CheckoutState = "IDLE"
	StateSubmitting      CheckoutState = "SUBMITTING"
	StateCommitted       CheckoutState = "COMMITTED"
	StatePartiallyFailed CheckoutState = "PARTIALLY_FAILED"
	StateRejected        CheckoutState = "REJECTED"
)

// IsTerminal reports whether s ends a submission.
func (s CheckoutState) IsTerminal() bool {
	return s == StateCommitted || s == StatePartiallyFailed || s == StateRejected
}

func (s CheckoutState) String() string {
	return string(s)
}

var transitions = map[CheckoutState][]CheckoutState{
	StateIdle:            {StateSubmitting},
	StateSubmitting:      {StateIdle, StateCommitted, StatePartiallyFailed, StateRejected},
	StateCommitted:       {StateIdle},
	StatePartiallyFailed: {StateIdle},
	StateRejected:        {StateIdle},
}

// CanTransitionTo reports whether the machine allows from -> to.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Options configures a Session.
type Options struct {
	Policy ValidationPolicy
	// DecrementConcurrency bounds parallel phase-2 writes; values below 1 mean unbounded.
	DecrementConcurrency int
	// OptimisticInventory sends the cached lesson version with every decrement.
	OptimisticInventory bool
	Logger              zerolog.Logger
}

// Session is one shopper's storefront state: catalog snapshot, cart, form
// and the checkout state machine. Nothing in it is process-global.
type Session struct {
	mu        sync.Mutex
	store     Store
	catalog   *Catalog
	cart      *CartLedger
	form      OrderForm
	validator *FormValidator
	state     CheckoutState
	last      *Outcome
	// set after a partial failure; cleared once the cart changes or a submit commits
	duplicateHazard bool

	concurrency int
	optimistic  bool
	logger      zerolog.Logger
}

func NewSession(store Store, opts Options) *Session {
	policy := opts.Policy
	if policy.NamePattern == nil || policy.PhonePattern == nil {
		policy = StrictPolicy
	}
	return &Session{
		store:       store,
		catalog:     NewCatalog(store, opts.Logger),
		cart:        NewCartLedger(),
		form:        DefaultOrderForm(),
		validator:   NewFormValidator(policy),
		state:       StateIdle,
		concurrency: opts.DecrementConcurrency,
		optimistic:  opts.OptimisticInventory,
		logger:      opts.Logger,
	}
}

// Catalog exposes the session's catalog for read-only views.
func (s *Session) Catalog() *Catalog { return s.catalog }

// Load refreshes the catalog snapshot.
func (s *Session) Load(ctx context.Context) error {
	return s.catalog.Load(ctx)
}

func (s *Session) State() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastOutcome returns the result of the most recent submission, if any.
func (s *Session) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// RetryWouldDuplicate is true after a partial failure while the cart is
// unchanged: submitting again would create a second order.
func (s *Session) RetryWouldDuplicate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplicateHazard
}

// AddToCart reserves one space of lessonID locally. It is a no-op when the
// lesson is unknown, full, or a submission has not settled.
func (s *Session) AddToCart(lessonID string) bool {
	lesson, ok := s.catalog.Lookup(lessonID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return false
	}
	if !s.cart.Add(lesson) {
		return false
	}
	s.duplicateHazard = false
	return true
}

func (s *Session) RemoveFromCart(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrSubmissionInProgress
	}
	if err := s.cart.RemoveAt(position); err != nil {
		return err
	}
	s.duplicateHazard = false
	return nil
}

func (s *Session) CartLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Len()
}

func (s *Session) CartItems() []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items(s.catalog)
}

// CountOf returns how many spaces of lessonID the cart holds.
func (s *Session) CountOf(lessonID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.CountOf(lessonID)
}

// Remaining is the lesson's spaces left after local reservations, clamped at zero.
func (s *Session) Remaining(lesson domain.Lesson) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.DisplayRemaining(lesson)
}

func (s *Session) CanAdd(lesson domain.Lesson) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.CanAdd(lesson)
}

// CartTotal prices the cart against the current snapshot.
func (s *Session) CartTotal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total(s.catalog).StringFixed(2)
}

func (s *Session) Form() OrderForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// UpdateForm applies edit to the form unless a submission has not settled.
func (s *Session) UpdateForm(edit func(*OrderForm)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrSubmissionInProgress
	}
	edit(&s.form)
	return nil
}

// Validate evaluates the submission gate against the current cart and form.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validator.Validate(s.cart.Len(), s.form)
}

func (s *Session) IsSubmittable() bool {
	return s.Validate() == nil
}

// Cancel abandons the checkout: the cart is cleared and the form reset.
// It has no remote side effects and is refused until a submission settles.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrSubmissionInProgress
	}
	s.cart.Clear()
	s.form = DefaultOrderForm()
	s.duplicateHazard = false
	return nil
}

// transition moves the machine; callers hold s.mu. An illegal move leaves
// the state untouched and returns *IllegalTransitionError.
func (s *Session) transition(to CheckoutState, submissionID string) error {
	from := s.state
	if !CanTransitionTo(from, to) {
		s.logger.Error().Str("submission_id", submissionID).Str("from", from.String()).Str("to", to.String()).Msg("illegal checkout transition")
		return &IllegalTransitionError{From: from, To: to}
	}
	s.state = to
	s.logger.Debug().Str("submission_id", submissionID).Str("from", from.String()).Str("to", to.String()).Msg("checkout transition")
	return nil
}

// busy reports whether a submission has not yet settled; callers hold s.mu.
func (s *Session) busy() bool {
	return s.state != StateIdle
}
