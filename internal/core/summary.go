package core

import "sort"

// MonthlySummary is the compact income/expense/balance view for one month.
type MonthlySummary struct {
	Month   string // YYYY-MM
	Income  Money
	Expense Money
	Balance Money
	Count   int
}

// SubjectAmount is an amount aggregated per (category, subject) pair.
type SubjectAmount struct {
	Category Category
	Subject  string
	Amount   Money
}

// MonthlyStatistics is the detailed per-month report: counts, totals,
// averages, extremes and the subject breakdown.
type MonthlyStatistics struct {
	Month        string
	TotalRecords int
	IncomeCount  int
	ExpenseCount int
	IncomeTotal  Money
	ExpenseTotal Money
	Balance      Money
	AvgIncome    Money
	AvgExpense   Money
	MaxIncome    Money
	MaxExpense   Money
	MinIncome    Money
	MinExpense   Money

	SubjectBreakdown []SubjectAmount
}

// Summarize computes the monthly totals over the given entries. Entries are
// assumed to already belong to the month.
func Summarize(month string, entries []Entry) MonthlySummary {
	s := MonthlySummary{Month: month, Count: len(entries)}
	for _, e := range entries {
		switch e.Category {
		case Income:
			s.Income.Cents += e.Amount.Cents
		case Expense:
			s.Expense.Cents += e.Amount.Cents
		}
	}
	s.Balance.Cents = s.Income.Cents - s.Expense.Cents
	return s
}

// ComputeStatistics computes the detailed monthly report over the given
// entries. The subject breakdown is sorted by category then subject so the
// output is stable.
func ComputeStatistics(month string, entries []Entry) MonthlyStatistics {
	st := MonthlyStatistics{Month: month, TotalRecords: len(entries)}

	bySubject := make(map[[2]string]int64)
	for _, e := range entries {
		switch e.Category {
		case Income:
			st.IncomeCount++
			st.IncomeTotal.Cents += e.Amount.Cents
			if e.Amount.Cents > st.MaxIncome.Cents {
				st.MaxIncome = e.Amount
			}
			if st.MinIncome.Cents == 0 || e.Amount.Cents < st.MinIncome.Cents {
				st.MinIncome = e.Amount
			}
		case Expense:
			st.ExpenseCount++
			st.ExpenseTotal.Cents += e.Amount.Cents
			if e.Amount.Cents > st.MaxExpense.Cents {
				st.MaxExpense = e.Amount
			}
			if st.MinExpense.Cents == 0 || e.Amount.Cents < st.MinExpense.Cents {
				st.MinExpense = e.Amount
			}
		}
		bySubject[[2]string{string(e.Category), e.Subject}] += e.Amount.Cents
	}

	st.Balance.Cents = st.IncomeTotal.Cents - st.ExpenseTotal.Cents
	if st.IncomeCount > 0 {
		st.AvgIncome.Cents = st.IncomeTotal.Cents / int64(st.IncomeCount)
	}
	if st.ExpenseCount > 0 {
		st.AvgExpense.Cents = st.ExpenseTotal.Cents / int64(st.ExpenseCount)
	}

	for key, cents := range bySubject {
		st.SubjectBreakdown = append(st.SubjectBreakdown, SubjectAmount{
			Category: Category(key[0]),
			Subject:  key[1],
			Amount:   Money{Cents: cents},
		})
	}
	sort.Slice(st.SubjectBreakdown, func(i, j int) bool {
		a, b := st.SubjectBreakdown[i], st.SubjectBreakdown[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Subject < b.Subject
	})

	return st
}
