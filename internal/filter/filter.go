// Package filter narrows in-memory collections by a conjunction of
// optional criteria. A criterion left empty matches everything, so an
// empty filter returns the input unchanged.
package filter

import (
	"strings"

	"ledgerdesk/internal/core"
)

// Filter is an AND of predicates over T.
type Filter[T any] struct {
	preds []func(T) bool
}

func New[T any]() *Filter[T] { return &Filter[T]{} }

// Where adds an arbitrary predicate. A nil predicate is ignored.
func (f *Filter[T]) Where(p func(T) bool) *Filter[T] {
	if p != nil {
		f.preds = append(f.preds, p)
	}
	return f
}

// Text matches when q is a case-insensitive substring of any field.
func (f *Filter[T]) Text(q string, fields ...func(T) string) *Filter[T] {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || len(fields) == 0 {
		return f
	}
	return f.Where(func(v T) bool {
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field(v)), q) {
				return true
			}
		}
		return false
	})
}

// Equals matches an enumerated field exactly.
func (f *Filter[T]) Equals(want string, field func(T) string) *Filter[T] {
	want = strings.TrimSpace(want)
	if want == "" || want == "all" {
		return f
	}
	return f.Where(func(v T) bool { return field(v) == want })
}

// DateRange matches dates within [from, to]; a zero bound is open.
func (f *Filter[T]) DateRange(from, to core.Date, field func(T) core.Date) *Filter[T] {
	if from.IsEmpty() && to.IsEmpty() {
		return f
	}
	return f.Where(func(v T) bool {
		d := field(v)
		if !from.IsEmpty() && d.Before(from.Time) {
			return false
		}
		if !to.IsEmpty() && d.After(to.Time) {
			return false
		}
		return true
	})
}

// AmountRange matches amounts within [lo, hi]; a nil bound is open.
func (f *Filter[T]) AmountRange(lo, hi *core.Money, field func(T) core.Money) *Filter[T] {
	if lo == nil && hi == nil {
		return f
	}
	return f.Where(func(v T) bool {
		c := field(v).Cents
		if lo != nil && c < lo.Cents {
			return false
		}
		if hi != nil && c > hi.Cents {
			return false
		}
		return true
	})
}

// Active counts the criteria that actually constrain the result.
func (f *Filter[T]) Active() int { return len(f.preds) }

func (f *Filter[T]) Match(v T) bool {
	for _, p := range f.preds {
		if !p(v) {
			return false
		}
	}
	return true
}

// Apply returns the matching items in input order. The result never
// aliases items.
func (f *Filter[T]) Apply(items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Count returns how many items match without allocating.
func (f *Filter[T]) Count(items []T) int {
	n := 0
	for _, it := range items {
		if f.Match(it) {
			n++
		}
	}
	return n
}
