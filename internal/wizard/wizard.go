// Package wizard implements a linear multi-step form with per-step
// validation.
//
// Steps are numbered 1..N. Forward navigation is gated on the current
// step's validator; backward navigation and jumping via the step indicator
// are not. Submission happens only from the last step, after re-validating
// it. Which steps show as complete is decided by a CompletionPolicy.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledgerdesk/internal/core"
)

var (
	ErrNoSteps          = errors.New("wizard has no steps")
	ErrStepOutOfRange   = errors.New("step out of range")
	ErrNotFinalStep     = errors.New("submit is only allowed from the final step")
	ErrAlreadySubmitted = errors.New("wizard already submitted")
)

// FieldErrors maps a field name to a message; see core.FieldErrors.
type FieldErrors = core.FieldErrors

// Step is one page of the wizard. Validate must be pure: the same data
// always yields the same errors.
type Step[T any] struct {
	Key      string
	Title    string
	Validate func(T) FieldErrors
}

// Submitter receives the form data once the final step passes.
type Submitter[T any] interface {
	Submit(ctx context.Context, data T) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc[T any] func(ctx context.Context, data T) error

func (f SubmitterFunc[T]) Submit(ctx context.Context, data T) error { return f(ctx, data) }

// Wizard is safe for concurrent use.
type Wizard[T any] struct {
	mu        sync.Mutex
	steps     []Step[T]
	data      T
	current   int
	passed    map[int]bool
	policy    CompletionPolicy
	submitted bool
}

type Option func(*options)

type options struct {
	policy CompletionPolicy
}

// WithCompletion selects how completion markers are computed.
func WithCompletion(p CompletionPolicy) Option {
	return func(o *options) { o.policy = p }
}

// New creates a wizard positioned on step 1.
func New[T any](steps []Step[T], data T, opts ...Option) (*Wizard[T], error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	o := options{policy: StickyCompletion{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Wizard[T]{
		steps:   append([]Step[T](nil), steps...),
		data:    data,
		current: 1,
		passed:  make(map[int]bool, len(steps)),
		policy:  o.policy,
	}, nil
}

func (w *Wizard[T]) Len() int { return len(w.steps) }

// Current returns the 1-based current step.
func (w *Wizard[T]) Current() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Data returns a copy of the form data as seen by validators.
func (w *Wizard[T]) Data() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data
}

// Update mutates the form data in place. Navigation state is untouched;
// an error from fn is returned as is.
func (w *Wizard[T]) Update(fn func(*T) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitted {
		return ErrAlreadySubmitted
	}
	return fn(&w.data)
}

// ValidateStep runs the validator of step n against the current data.
func (w *Wizard[T]) ValidateStep(n int) (FieldErrors, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 1 || n > len(w.steps) {
		return nil, fmt.Errorf("%w: %d", ErrStepOutOfRange, n)
	}
	return w.validate(n), nil
}

func (w *Wizard[T]) validate(n int) FieldErrors {
	v := w.steps[n-1].Validate
	if v == nil {
		return nil
	}
	errs := v(w.data)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Next validates the current step. On failure it stays put and returns the
// errors; otherwise the step is marked passed and the wizard advances,
// staying on the last step when already there.
func (w *Wizard[T]) Next() FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	if errs := w.validate(w.current); errs != nil {
		return errs
	}
	w.passed[w.current] = true
	if w.current < len(w.steps) {
		w.current++
	}
	return nil
}

// Previous moves back one step without validating.
func (w *Wizard[T]) Previous() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current > 1 {
		w.current--
	}
}

// JumpTo moves to any step without validating.
func (w *Wizard[T]) JumpTo(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 1 || n > len(w.steps) {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, n)
	}
	w.current = n
	return nil
}

// IsComplete reports whether step n carries a completion marker.
func (w *Wizard[T]) IsComplete(n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 1 || n > len(w.steps) {
		return false
	}
	return w.complete(n)
}

func (w *Wizard[T]) complete(n int) bool {
	return w.policy.Complete(w.passed[n], func() FieldErrors { return w.validate(n) })
}

// Completed lists the steps that carry a completion marker, ascending.
func (w *Wizard[T]) Completed() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []int
	for n := 1; n <= len(w.steps); n++ {
		if w.complete(n) {
			out = append(out, n)
		}
	}
	return out
}

// Submit re-validates the final step then hands the data to s. The
// submitter runs at most once per successful submission; a failing
// submitter leaves the wizard open for another attempt.
func (w *Wizard[T]) Submit(ctx context.Context, s Submitter[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitted {
		return ErrAlreadySubmitted
	}
	if w.current != len(w.steps) {
		return ErrNotFinalStep
	}
	if errs := w.validate(w.current); errs != nil {
		return errs
	}
	w.passed[w.current] = true
	if err := s.Submit(ctx, w.data); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	w.submitted = true
	return nil
}

func (w *Wizard[T]) Submitted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitted
}

// StepState describes one step for rendering the step indicator.
type StepState struct {
	Number   int    `json:"number"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
	Current  bool   `json:"current"`
}

// State is a point-in-time view of the wizard.
type State struct {
	Current   int         `json:"current"`
	Steps     []StepState `json:"steps"`
	Submitted bool        `json:"submitted"`
	Policy    string      `json:"completion_policy"`
}

func (w *Wizard[T]) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := State{Current: w.current, Submitted: w.submitted, Policy: w.policy.Name()}
	for i, s := range w.steps {
		n := i + 1
		st.Steps = append(st.Steps, StepState{
			Number:   n,
			Key:      s.Key,
			Title:    s.Title,
			Complete: w.complete(n),
			Current:  n == w.current,
		})
	}
	return st
}
