package core

import "testing"

func TestSelectionToggleIsInvolution(t *testing.T) {
	cases := [][]string{nil, {"a"}, {"a", "b", "c"}}
	for _, start := range cases {
		for _, id := range []string{"a", "z"} {
			s := NewSelection(start...)
			orig := NewSelection(start...)
			s.Toggle(id)
			s.Toggle(id)
			if !s.Equal(orig) {
				t.Fatalf("start=%v id=%s: toggle twice changed the set", start, id)
			}
		}
	}
}

func TestSelectionZeroValue(t *testing.T) {
	var s Selection[int]
	if s.Has(1) || s.Len() != 0 {
		t.Fatalf("zero selection should be empty")
	}
	if !s.Toggle(1) || !s.Has(1) {
		t.Fatalf("toggle on zero value should select")
	}
	var nilSel *Selection[int]
	if nilSel.Has(1) || nilSel.Len() != 0 {
		t.Fatalf("nil selection should be empty")
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("clear left %d ids", s.Len())
	}
}

func TestSumSelected(t *testing.T) {
	bills := []Bill{
		{ID: "b1", Balance: Cents(1000)},
		{ID: "b2", Balance: Cents(250)},
		{ID: "b3", Balance: Cents(5)},
	}
	key := func(b Bill) string { return b.ID }
	amt := func(b Bill) Money { return b.Balance }

	sel := NewSelection("b1", "b3", "missing")
	if got := SumSelected(bills, sel, key, amt); got.Cents != 1005 {
		t.Fatalf("got %d", got.Cents)
	}
	sel.Toggle("b2")
	if got := SumSelected(bills, sel, key, amt); got.Cents != 1255 {
		t.Fatalf("got %d", got.Cents)
	}
	reversed := []Bill{bills[2], bills[1], bills[0]}
	if SumSelected(reversed, sel, key, amt) != SumSelected(bills, sel, key, amt) {
		t.Fatalf("sum should not depend on order")
	}
}
