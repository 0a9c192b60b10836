package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the only currency amounts are recorded in.
const Currency = "USD"

// Entry is a dated income or expense amount.
type Entry struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Obligation is a debt owed or a loan given.
type Obligation struct {
	Amount   decimal.Decimal
	Returned bool
}

// FinanceSummary is the monthly overview of the salary section.
type FinanceSummary struct {
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	MonthlyIncome    decimal.Decimal `json:"monthly_income"`
	YearlyIncome     decimal.Decimal `json:"yearly_income"`
	MonthlyExpenses  decimal.Decimal `json:"monthly_expenses"`
	OutstandingDebts decimal.Decimal `json:"outstanding_debts"`
	TotalDebts       decimal.Decimal `json:"total_debts"`
	OutstandingLoans decimal.Decimal `json:"outstanding_loans"`
	TotalLoans       decimal.Decimal `json:"total_loans"`
	Savings          decimal.Decimal `json:"savings"`
	Net              decimal.Decimal `json:"net"`
}

// SummarizeFinance computes the overview for year/month. Net is the month's
// income minus its expenses plus savings.
func SummarizeFinance(year int, month time.Month, incomes, expenses []Entry, debts, loans []Obligation, savings decimal.Decimal) FinanceSummary {
	s := FinanceSummary{
		Year:    year,
		Month:   int(month),
		Savings: savings,
	}
	inMonth := func(d time.Time) bool { return d.Year() == year && d.Month() == month }

	for _, e := range incomes {
		if e.Date.Year() != year {
			continue
		}
		s.YearlyIncome = s.YearlyIncome.Add(e.Amount)
		if inMonth(e.Date) {
			s.MonthlyIncome = s.MonthlyIncome.Add(e.Amount)
		}
	}
	for _, e := range expenses {
		if inMonth(e.Date) {
			s.MonthlyExpenses = s.MonthlyExpenses.Add(e.Amount)
		}
	}
	s.TotalDebts, s.OutstandingDebts = sumObligations(debts)
	s.TotalLoans, s.OutstandingLoans = sumObligations(loans)
	s.Net = s.MonthlyIncome.Sub(s.MonthlyExpenses).Add(savings)
	return s
}

func sumObligations(obs []Obligation) (total, outstanding decimal.Decimal) {
	for _, o := range obs {
		total = total.Add(o.Amount)
		if !o.Returned {
			outstanding = outstanding.Add(o.Amount)
		}
	}
	return total, outstanding
}
