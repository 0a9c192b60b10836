// Package ledger holds the money arithmetic: Lakawon class pay and the
// bi-monthly pay periods, and the monthly personal finance summary. All
// amounts are decimals in a single currency.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClassType string

const (
	Regular ClassType = "regular"
	Demo    ClassType = "demo"
)

func (t ClassType) Valid() bool { return t == Regular || t == Demo }

var (
	regularRate = decimal.NewFromInt(5)
	demoRate    = decimal.NewFromInt(3)

	// DeductionAmount is charged when a class is cancelled.
	DeductionAmount = decimal.NewFromInt(5)
)

// ClassAmount is the pay for one class of type t. It is always derived from
// the type, never taken from the client.
func ClassAmount(t ClassType) decimal.Decimal {
	if t == Demo {
		return demoRate
	}
	return regularRate
}

// Class is the part of a class row the summary needs.
type Class struct {
	Date      time.Time
	Type      ClassType
	Amount    decimal.Decimal
	Cancelled bool
}

// Deduction is the part of a deduction row the summary needs.
type Deduction struct {
	Date   time.Time
	Amount decimal.Decimal
}

// PeriodSummary totals one pay period.
type PeriodSummary struct {
	Start          string          `json:"start"`
	End            string          `json:"end"`
	RegularCount   int             `json:"regular_count"`
	RegularTotal   decimal.Decimal `json:"regular_total"`
	DemoCount      int             `json:"demo_count"`
	DemoTotal      decimal.Decimal `json:"demo_total"`
	DeductionCount int             `json:"deduction_count"`
	DeductionTotal decimal.Decimal `json:"deduction_total"`
	TotalCount     int             `json:"total_count"`
	Total          decimal.Decimal `json:"total"`
}

// SalarySummary is a month split into two pay periods: days 1-15 and 16 to
// the end of the month.
type SalarySummary struct {
	Year    int           `json:"year"`
	Month   int           `json:"month"`
	Period1 PeriodSummary `json:"period1"`
	Period2 PeriodSummary `json:"period2"`
	Monthly PeriodSummary `json:"monthly"`
}

// MonthRange returns the first and last calendar day of year/month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// SummarizeSalary totals classes and deductions for year/month. Rows outside
// the month are ignored; cancelled classes earn nothing.
func SummarizeSalary(year int, month time.Month, classes []Class, deductions []Deduction) SalarySummary {
	first, last := MonthRange(year, month)
	mid := first.AddDate(0, 0, 14)

	s := SalarySummary{
		Year:    year,
		Month:   int(month),
		Period1: newPeriod(first, mid),
		Period2: newPeriod(mid.AddDate(0, 0, 1), last),
		Monthly: newPeriod(first, last),
	}
	pick := func(d time.Time) *PeriodSummary {
		if d.After(mid) {
			return &s.Period2
		}
		return &s.Period1
	}

	for _, c := range classes {
		if c.Cancelled || c.Date.Before(first) || c.Date.After(last) {
			continue
		}
		for _, p := range []*PeriodSummary{pick(c.Date), &s.Monthly} {
			if c.Type == Demo {
				p.DemoCount++
				p.DemoTotal = p.DemoTotal.Add(c.Amount)
			} else {
				p.RegularCount++
				p.RegularTotal = p.RegularTotal.Add(c.Amount)
			}
		}
	}
	for _, d := range deductions {
		if d.Date.Before(first) || d.Date.After(last) {
			continue
		}
		for _, p := range []*PeriodSummary{pick(d.Date), &s.Monthly} {
			p.DeductionCount++
			p.DeductionTotal = p.DeductionTotal.Add(d.Amount)
		}
	}

	for _, p := range []*PeriodSummary{&s.Period1, &s.Period2, &s.Monthly} {
		p.TotalCount = p.RegularCount + p.DemoCount
		p.Total = p.RegularTotal.Add(p.DemoTotal).Sub(p.DeductionTotal)
	}
	return s
}

func newPeriod(start, end time.Time) PeriodSummary {
	return PeriodSummary{
		Start:          start.Format("2006-01-02"),
		End:            end.Format("2006-01-02"),
		RegularTotal:   decimal.Zero,
		DemoTotal:      decimal.Zero,
		DeductionTotal: decimal.Zero,
		Total:          decimal.Zero,
	}
}
