package core

import (
	"testing"
	"time"
)

func TestBucketFor(t *testing.T) {
	cases := []struct {
		days int
		want Bucket
	}{
		{-10, BucketCurrent},
		{0, BucketCurrent},
		{1, Bucket1To30},
		{30, Bucket1To30},
		{31, Bucket31To60},
		{60, Bucket31To60},
		{61, Bucket61To90},
		{90, Bucket61To90},
		{91, BucketOver90},
	}
	for _, tc := range cases {
		if got := BucketFor(tc.days); got != tc.want {
			t.Errorf("BucketFor(%d) = %s want %s", tc.days, got, tc.want)
		}
	}
}

func TestAgeInvoices(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
	invs := []Invoice{
		{ID: "1", Status: InvoiceOpen, Balance: Cents(100), DueDate: NewDate(2025, 7, 15)},
		{ID: "2", Status: InvoiceOpen, Balance: Cents(200), DueDate: NewDate(2025, 6, 20)},
		{ID: "3", Status: InvoiceOverdue, Balance: Cents(300), DueDate: NewDate(2025, 5, 15)},
		{ID: "4", Status: InvoiceOpen, Balance: Cents(400), DueDate: NewDate(2025, 4, 15)},
		{ID: "5", Status: InvoiceOpen, Balance: Cents(500), DueDate: NewDate(2025, 1, 1)},
		{ID: "6", Status: InvoicePaid, Balance: Cents(600), DueDate: NewDate(2025, 1, 1)},
	}
	got := AgeInvoices(invs, asOf)
	want := AgingBuckets{
		Current:    Cents(100),
		Days1To30:  Cents(200),
		Days31To60: Cents(300),
		Days61To90: Cents(400),
		Over90:     Cents(500),
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if got.Total().Cents != 1500 {
		t.Fatalf("total = %d", got.Total().Cents)
	}
	for _, b := range Buckets {
		if got.Get(b) != want.Get(b) {
			t.Fatalf("Get(%s) mismatch", b)
		}
	}
}

func TestAgingDetailOrder(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	invs := []Invoice{
		{ID: "a", Status: InvoiceOpen, Balance: Cents(1), DueDate: NewDate(2025, 6, 1)},
		{ID: "b", Status: InvoiceOpen, Balance: Cents(1), DueDate: NewDate(2025, 3, 1)},
		{ID: "c", Status: InvoiceOpen, Balance: Cents(1), DueDate: NewDate(2025, 6, 1)},
		{ID: "d", Status: InvoiceVoid, Balance: Cents(1), DueDate: NewDate(2024, 1, 1)},
	}
	rows := AgingDetail(invs, asOf)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	order := rows[0].Invoice.ID + rows[1].Invoice.ID + rows[2].Invoice.ID
	if order != "bac" {
		t.Fatalf("unexpected order %s", order)
	}
	if rows[1].DaysOverdue != 29 || rows[1].Bucket != Bucket1To30 {
		t.Fatalf("unexpected row %+v", rows[1])
	}
}
