package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Named ranges offered by the dashboard selector.
const (
	RangeThisMonth   = "this_month"
	RangeLastMonth   = "last_month"
	RangeThisQuarter = "this_quarter"
	RangeThisYear    = "this_year"
	RangeLast30Days  = "last_30_days"
)

var ErrUnknownRange = errors.New("unknown date range")

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Name string `json:"name"`
	From Date   `json:"from"`
	To   Date   `json:"to"`
}

// ParseDateRange resolves a named range relative to now. An empty name
// means this_month.
func ParseDateRange(name string, now time.Time) (DateRange, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		name = RangeThisMonth
	}
	today := DateOf(now)
	y, m, _ := today.Date()
	switch name {
	case RangeThisMonth:
		return monthRange(name, y, m), nil
	case RangeLastMonth:
		first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return monthRange(name, first.Year(), first.Month()), nil
	case RangeThisQuarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		from := time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
		return DateRange{Name: name, From: Date{from}, To: Date{from.AddDate(0, 3, -1)}}, nil
	case RangeThisYear:
		return DateRange{Name: name, From: NewDate(y, 1, 1), To: NewDate(y, 12, 31)}, nil
	case RangeLast30Days:
		return DateRange{Name: name, From: Date{today.AddDate(0, 0, -29)}, To: today}, nil
	default:
		return DateRange{}, fmt.Errorf("%w %q", ErrUnknownRange, name)
	}
}

func monthRange(name string, y int, m time.Month) DateRange {
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Name: name, From: Date{from}, To: Date{from.AddDate(0, 1, -1)}}
}

// Previous returns the comparison period immediately before r: the prior
// calendar month, quarter or year for calendar ranges, otherwise a span of
// equal length.
func (r DateRange) Previous() DateRange {
	switch r.Name {
	case RangeThisMonth, RangeLastMonth:
		first := r.From.AddDate(0, -1, 0)
		return monthRange("previous", first.Year(), first.Month())
	case RangeThisQuarter:
		from := r.From.AddDate(0, -3, 0)
		return DateRange{Name: "previous", From: Date{from}, To: Date{from.AddDate(0, 3, -1)}}
	case RangeThisYear:
		return DateRange{Name: "previous", From: Date{r.From.AddDate(-1, 0, 0)}, To: Date{r.To.AddDate(-1, 0, 0)}}
	default:
		days := r.Days()
		return DateRange{Name: "previous", From: Date{r.From.AddDate(0, 0, -days)}, To: Date{r.From.AddDate(0, 0, -1)}}
	}
}

// Days counts the days in the range, both ends included.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From.Time).Hours()/24) + 1
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}
