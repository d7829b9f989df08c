package domain

import "time"

const DateLayout = "2006-01-02"

// Date is a calendar day. The zero hour UTC instant of that day is the
// canonical representation so values are comparable with ==.
type Date struct{ t time.Time }

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time      { return d.t }
func (d Date) String() string       { return d.t.Format(DateLayout) }
func (d Date) IsZero() bool         { return d.t.IsZero() }
func (d Date) Before(o Date) bool   { return d.t.Before(o.t) }
func (d Date) After(o Date) bool    { return d.t.After(o.t) }
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) DaysUntil(o Date) int { return int(o.t.Sub(d.t).Hours() / 24) }
func (d Date) Compare(o Date) int   { return d.t.Compare(o.t) }

// AddMonths moves by n calendar months, clamping to the last day of the
// target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// DatesUntil returns every day in [d, end) in ascending order.
func (d Date) DatesUntil(end Date) []Date {
	if !d.Before(end) {
		return nil
	}
	out := make([]Date, 0, d.DaysUntil(end))
	for cur := d; cur.Before(end); cur = cur.AddDays(1) {
		out = append(out, cur)
	}
	return out
}

// Horizon is the bookable window relative to today: the first bookable day is
// tomorrow and the last one is tomorrow plus the given number of months,
// both inclusive.
func Horizon(today Date, months int) (first, last Date) {
	first = today.AddDays(1)
	return first, first.AddMonths(months)
}
