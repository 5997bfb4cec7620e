package core

import (
	"sort"
	"time"
)

// Bucket is a time-since-due classification.
type Bucket string

const (
	BucketCurrent Bucket = "current"
	Bucket1To30   Bucket = "days_1_30"
	Bucket31To60  Bucket = "days_31_60"
	Bucket61To90  Bucket = "days_61_90"
	BucketOver90  Bucket = "over_90_days"
)

// Buckets lists every bucket from youngest to oldest.
var Buckets = []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// AgingBuckets holds open balances per bucket.
type AgingBuckets struct {
	Current    Money `json:"current"`
	Days1To30  Money `json:"days_1_30"`
	Days31To60 Money `json:"days_31_60"`
	Days61To90 Money `json:"days_61_90"`
	Over90     Money `json:"over_90_days"`
}

// Total sums every bucket.
func (b AgingBuckets) Total() Money {
	return Sum(b.Current, b.Days1To30, b.Days31To60, b.Days61To90, b.Over90)
}

// Get returns the balance held in one bucket.
func (b AgingBuckets) Get(k Bucket) Money {
	switch k {
	case BucketCurrent:
		return b.Current
	case Bucket1To30:
		return b.Days1To30
	case Bucket31To60:
		return b.Days31To60
	case Bucket61To90:
		return b.Days61To90
	default:
		return b.Over90
	}
}

func (b *AgingBuckets) add(k Bucket, m Money) {
	switch k {
	case BucketCurrent:
		b.Current = b.Current.Add(m)
	case Bucket1To30:
		b.Days1To30 = b.Days1To30.Add(m)
	case Bucket31To60:
		b.Days31To60 = b.Days31To60.Add(m)
	case Bucket61To90:
		b.Days61To90 = b.Days61To90.Add(m)
	default:
		b.Over90 = b.Over90.Add(m)
	}
}

// DaysOverdue counts whole days between due and asOf; zero or negative
// means not yet due.
func DaysOverdue(due Date, asOf time.Time) int {
	return int(DateOf(asOf).Sub(due.Time).Hours() / 24)
}

// BucketFor classifies a days-overdue count.
func BucketFor(days int) Bucket {
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// AgeInvoices buckets the open balance of outstanding invoices as of asOf.
func AgeInvoices(invoices []Invoice, asOf time.Time) AgingBuckets {
	var b AgingBuckets
	for _, inv := range invoices {
		if !inv.Outstanding() {
			continue
		}
		b.add(BucketFor(DaysOverdue(inv.DueDate, asOf)), inv.Balance)
	}
	return b
}

// AgingRow is one line of the aging detail report.
type AgingRow struct {
	Invoice     Invoice `json:"invoice"`
	DaysOverdue int     `json:"days_overdue"`
	Bucket      Bucket  `json:"bucket"`
}

// AgingDetail lists outstanding invoices, oldest first. Ties keep input order.
func AgingDetail(invoices []Invoice, asOf time.Time) []AgingRow {
	rows := make([]AgingRow, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Outstanding() {
			continue
		}
		d := DaysOverdue(inv.DueDate, asOf)
		rows = append(rows, AgingRow{Invoice: inv, DaysOverdue: d, Bucket: BucketFor(d)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DaysOverdue > rows[j].DaysOverdue })
	return rows
}
