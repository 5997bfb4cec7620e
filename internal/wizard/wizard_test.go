package wizard

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type form struct {
	Name  string
	Email string
	Notes string
}

func testSteps() []Step[form] {
	return []Step[form]{
		{Key: "name", Title: "Name", Validate: func(f form) FieldErrors {
			errs := FieldErrors{}
			if f.Name == "" {
				errs.Add("name", "Name is required")
			}
			return errs
		}},
		{Key: "email", Title: "Email", Validate: func(f form) FieldErrors {
			if f.Email == "" {
				return FieldErrors{"email": "Email is required"}
			}
			return nil
		}},
		{Key: "notes", Title: "Notes"},
	}
}

func newWizard(t *testing.T, f form, opts ...Option) *Wizard[form] {
	t.Helper()
	w, err := New(testSteps(), f, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestNewRequiresSteps(t *testing.T) {
	if _, err := New[form](nil, form{}); !errors.Is(err, ErrNoSteps) {
		t.Fatalf("expected ErrNoSteps, got %v", err)
	}
}

func TestNextStaysOnInvalidStep(t *testing.T) {
	w := newWizard(t, form{})
	errs := w.Next()
	if len(errs) != 1 || errs["name"] == "" {
		t.Fatalf("expected name error, got %v", errs)
	}
	if w.Current() != 1 {
		t.Fatalf("expected to stay on step 1, got %d", w.Current())
	}
	if w.IsComplete(1) {
		t.Fatalf("failed step must not be complete")
	}
}

func TestValidateStepIsIdempotent(t *testing.T) {
	w := newWizard(t, form{Email: "x@example.com"})
	for n := 1; n <= w.Len(); n++ {
		a, err := w.ValidateStep(n)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := w.ValidateStep(n)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("step %d: %v != %v", n, a, b)
		}
	}
	if _, err := w.ValidateStep(0); !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("expected ErrStepOutOfRange, got %v", err)
	}
}

func TestNavigation(t *testing.T) {
	w := newWizard(t, form{Name: "Ada", Email: "ada@example.com"})
	w.Previous()
	if w.Current() != 1 {
		t.Fatalf("previous at step 1 should be a no-op")
	}
	if errs := w.Next(); errs != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if errs := w.Next(); errs != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if w.Current() != 3 {
		t.Fatalf("expected step 3, got %d", w.Current())
	}
	if errs := w.Next(); errs != nil || w.Current() != 3 {
		t.Fatalf("next on the last step should stay, got %d %v", w.Current(), errs)
	}
	w.Previous()
	if w.Current() != 2 {
		t.Fatalf("expected step 2, got %d", w.Current())
	}
	if err := w.JumpTo(1); err != nil || w.Current() != 1 {
		t.Fatalf("jump failed: %v", err)
	}
	if err := w.JumpTo(4); !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("expected ErrStepOutOfRange, got %v", err)
	}
}

func TestJumpSkipsValidation(t *testing.T) {
	w := newWizard(t, form{})
	if err := w.JumpTo(3); err != nil {
		t.Fatal(err)
	}
	if w.Current() != 3 {
		t.Fatalf("expected step 3")
	}
	if got := w.Completed(); len(got) != 0 {
		t.Fatalf("jumping must not complete steps, got %v", got)
	}
}

func TestStickyCompletionSurvivesInvalidation(t *testing.T) {
	w := newWizard(t, form{Name: "Ada"})
	w.Next()
	_ = w.Update(func(f *form) error { f.Name = ""; return nil })
	if !w.IsComplete(1) {
		t.Fatalf("sticky policy should keep step 1 complete")
	}
	if got := w.Completed(); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("got %v", got)
	}
}

func TestRevalidateCompletionDropsInvalidStep(t *testing.T) {
	w := newWizard(t, form{Name: "Ada"}, WithCompletion(RevalidateCompletion{}))
	w.Next()
	if !w.IsComplete(1) {
		t.Fatalf("expected step 1 complete")
	}
	_ = w.Update(func(f *form) error { f.Name = ""; return nil })
	if w.IsComplete(1) {
		t.Fatalf("revalidate policy should drop the marker")
	}
	if st := w.State(); st.Policy != "revalidate" || st.Steps[0].Complete {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	calls := 0
	var got form
	sub := SubmitterFunc[form](func(_ context.Context, f form) error {
		calls++
		got = f
		return nil
	})

	w := newWizard(t, form{Name: "Ada", Email: "ada@example.com", Notes: "hi"})
	if err := w.Submit(ctx, sub); !errors.Is(err, ErrNotFinalStep) {
		t.Fatalf("expected ErrNotFinalStep, got %v", err)
	}
	_ = w.JumpTo(3)
	if err := w.Submit(ctx, sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if calls != 1 || got.Notes != "hi" || !w.Submitted() {
		t.Fatalf("calls=%d got=%+v", calls, got)
	}
	if err := w.Submit(ctx, sub); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("submitter called %d times", calls)
	}
	if err := w.Update(func(*form) error { return nil }); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("updates after submit should fail, got %v", err)
	}
}

func TestSubmitRevalidatesFinalStep(t *testing.T) {
	steps := testSteps()
	steps[2].Validate = func(f form) FieldErrors {
		if f.Notes == "" {
			return FieldErrors{"notes": "Notes are required"}
		}
		return nil
	}
	w, _ := New(steps, form{})
	_ = w.JumpTo(3)
	called := false
	err := w.Submit(context.Background(), SubmitterFunc[form](func(context.Context, form) error {
		called = true
		return nil
	}))
	var fe FieldErrors
	if !errors.As(err, &fe) || fe["notes"] == "" {
		t.Fatalf("expected field errors, got %v", err)
	}
	if called {
		t.Fatalf("submitter must not run on invalid final step")
	}
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	w := newWizard(t, form{})
	_ = w.JumpTo(3)
	boom := errors.New("boom")
	if err := w.Submit(context.Background(), SubmitterFunc[form](func(context.Context, form) error { return boom })); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if w.Submitted() {
		t.Fatalf("failed submit must not mark submitted")
	}
	if err := w.Submit(context.Background(), SubmitterFunc[form](func(context.Context, form) error { return nil })); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestFieldErrorsError(t *testing.T) {
	e := FieldErrors{"b": "second", "a": "first"}
	e.Add("a", "ignored")
	if got := e.Error(); got != "validation failed: a: first; b: second" {
		t.Fatalf("got %q", got)
	}
}

func TestPolicyByName(t *testing.T) {
	if p, ok := PolicyByName("Revalidate"); !ok || p.Name() != "revalidate" {
		t.Fatalf("got %v %v", p, ok)
	}
	if p, ok := PolicyByName("bogus"); ok || p.Name() != "sticky" {
		t.Fatalf("got %v %v", p, ok)
	}
}
