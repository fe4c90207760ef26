package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lessonshop/internal/domain"
	"lessonshop/internal/requestid"
)

const (
	msgCommitted       = "Your order has been submitted!"
	msgRejected        = "Error submitting order. Nothing was placed; you can try again."
	msgPartiallyFailed = "Order %s was placed, but seat reservation could not be confirmed for: %s. Do not resubmit; the order already exists."
)

// Outcome describes how a submission settled.
type Outcome struct {
	State        CheckoutState
	SubmissionID string
	Order        *domain.Order
	Decrements   []DecrementResult
	// RefreshErr is set when a committed order could not reload the catalog.
	RefreshErr error
	Message    string
}

// decrementPlan is one phase-2 write computed from the snapshot captured at submit time.
type decrementPlan struct {
	lessonID string
	quantity int
	base     int
	version  int64
}

// Submit runs the checkout: validate, create the order (phase 1), then
// decrement every lesson's spaces (phase 2). Phase-2 writes run
// concurrently and are all awaited before the terminal state is decided.
// Nothing is retried.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	submissionID := uuid.NewString()

	s.mu.Lock()
	if s.busy() {
		state := s.state
		s.mu.Unlock()
		return Outcome{State: state, SubmissionID: submissionID}, ErrSubmissionInProgress
	}
	if err := s.transition(StateSubmitting, submissionID); err != nil {
		s.mu.Unlock()
		return Outcome{State: s.state, SubmissionID: submissionID}, err
	}

	form := s.form
	if err := s.validator.Validate(s.cart.Len(), form); err != nil {
		return s.abandon(submissionID, err)
	}
	lines := s.cart.Aggregate()
	ids := s.cart.IDs()
	plans, err := s.planDecrements(lines)
	if err != nil {
		return s.abandon(submissionID, err)
	}
	s.mu.Unlock()

	ctx = requestid.With(ctx, submissionID)
	log := s.logger.With().Str("submission_id", submissionID).Logger()

	req := buildOrderRequest(form, lines, ids)
	order, err := s.store.CreateOrder(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("order creation failed")
		out := Outcome{State: StateRejected, SubmissionID: submissionID, Message: msgRejected}
		s.settle(&out)
		return out, &OrderCreateError{Err: err}
	}
	log.Info().Str("order_id", order.ID).Int("lines", len(lines)).Msg("order created")

	results := s.decrementAll(ctx, plans)
	var failed []DecrementResult
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
			log.Warn().Err(r.Err).Str("lesson_id", r.LessonID).Int("to", r.To).Bool("stale", r.Stale()).Msg("decrement failed")
		}
	}

	out := Outcome{SubmissionID: submissionID, Order: order, Decrements: results}
	if len(failed) > 0 {
		failedIDs := make([]string, 0, len(failed))
		for _, f := range failed {
			failedIDs = append(failedIDs, f.LessonID)
		}
		out.State = StatePartiallyFailed
		out.Message = fmt.Sprintf(msgPartiallyFailed, order.ID, strings.Join(failedIDs, ", "))
		s.settle(&out)
		return out, &InventoryUpdateError{OrderID: order.ID, Failed: failed}
	}

	out.State = StateCommitted
	out.Message = msgCommitted
	// still Submitting until settle, so the refresh below cannot overlap a new submission
	s.mu.Lock()
	s.cart.Clear()
	s.form = DefaultOrderForm()
	s.duplicateHazard = false
	s.mu.Unlock()

	if err := s.catalog.Load(ctx); err != nil {
		out.RefreshErr = err
	}
	s.settle(&out)
	log.Info().Str("order_id", order.ID).Msg("checkout committed")
	return out, nil
}

// planDecrements captures the cached spaces for every line; callers hold s.mu.
// Lines whose lesson left the catalog, or whose cached spaces no longer cover
// the quantity, block the submission before any remote call. The ledger is
// left as it is.
func (s *Session) planDecrements(lines []domain.OrderLine) ([]decrementPlan, error) {
	plans := make([]decrementPlan, 0, len(lines))
	var missing, short []string
	for _, line := range lines {
		lesson, ok := s.catalog.Lookup(line.LessonID)
		if !ok {
			missing = append(missing, line.LessonID)
			continue
		}
		if lesson.Spaces < line.Quantity {
			short = append(short, fmt.Sprintf("%s (%d left, %d in cart)", line.LessonID, lesson.Spaces, line.Quantity))
			continue
		}
		p := decrementPlan{lessonID: line.LessonID, quantity: line.Quantity, base: lesson.Spaces}
		if s.optimistic {
			p.version = lesson.Version
		}
		plans = append(plans, p)
	}

	var fields []FieldError
	if len(missing) > 0 {
		fields = append(fields, FieldError{Field: "cart", Reason: "no longer in catalog: " + strings.Join(missing, ", ")})
	}
	if len(short) > 0 {
		fields = append(fields, FieldError{Field: "cart", Reason: "not enough spaces: " + strings.Join(short, ", ")})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return plans, nil
}

// abandon returns a submission that failed local checks to Idle; callers
// hold s.mu and abandon releases it.
func (s *Session) abandon(submissionID string, err error) (Outcome, error) {
	defer s.mu.Unlock()
	if terr := s.transition(StateIdle, submissionID); terr != nil {
		return Outcome{State: s.state, SubmissionID: submissionID}, terr
	}
	return Outcome{State: StateIdle, SubmissionID: submissionID, Message: err.Error()}, err
}

// decrementAll issues every write and waits for all of them. Acknowledged
// writes are applied to the local snapshot as they settle.
func (s *Session) decrementAll(ctx context.Context, plans []decrementPlan) []DecrementResult {
	results := make([]DecrementResult, len(plans))
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, p := range plans {
		g.Go(func() error {
			to := p.base - p.quantity
			res := DecrementResult{LessonID: p.lessonID, Quantity: p.quantity, From: p.base, To: to}
			updated, err := s.store.UpdateSpaces(ctx, p.lessonID, to, p.version)
			if err != nil {
				res.Err = err
			} else {
				var version int64
				if updated != nil {
					version = updated.Version
				}
				s.catalog.ApplyDecrement(p.lessonID, to, version)
			}
			results[i] = res
			// failures are collected in results, never short-circuited
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// settle records the outcome and returns the machine to Idle. The terminal
// state is only held while s.mu is, so no entry point ever observes it.
func (s *Session) settle(out *Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(out.State, out.SubmissionID); err != nil {
		return
	}
	if out.State == StatePartiallyFailed {
		s.duplicateHazard = true
	}
	recorded := *out
	s.last = &recorded
	_ = s.transition(StateIdle, out.SubmissionID)
}

func buildOrderRequest(form OrderForm, lines []domain.OrderLine, ids []string) domain.OrderRequest {
	return domain.OrderRequest{
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Address:   strings.TrimSpace(form.Address),
		City:      strings.TrimSpace(form.City),
		Method:    form.Method,
		Phone:     form.Phone,
		Gift:      form.Gift,
		Lines:     lines,
		LessonIDs: ids,
	}
}
