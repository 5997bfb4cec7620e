package core

// Selection is a set of selected entity ids: cleared transactions, bills
// picked for payment, invoices a credit is applied to.
type Selection[K comparable] struct {
	ids map[K]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection[K comparable](ids ...K) *Selection[K] {
	s := &Selection[K]{ids: make(map[K]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Toggle flips membership of id and reports whether it is now selected.
// Toggling the same id twice restores the original set.
func (s *Selection[K]) Toggle(id K) bool {
	if s.ids == nil {
		s.ids = make(map[K]struct{})
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selection[K]) Has(id K) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

func (s *Selection[K]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Clear deselects everything.
func (s *Selection[K]) Clear() {
	s.ids = make(map[K]struct{})
}

// Equal reports whether both selections hold the same ids.
func (s *Selection[K]) Equal(o *Selection[K]) bool {
	if s.Len() != o.Len() {
		return false
	}
	for id := range s.ids {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// SumSelected totals amount(item) over the items whose key is selected.
// Order of items does not matter.
func SumSelected[T any, K comparable](items []T, sel *Selection[K], key func(T) K, amount func(T) Money) Money {
	var total Money
	for _, it := range items {
		if sel.Has(key(it)) {
			total = total.Add(amount(it))
		}
	}
	return total
}
