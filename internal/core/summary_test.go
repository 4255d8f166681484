package core

import "testing"

func fixtureEntries() []Entry {
	return []Entry{
		{Date: NewDate(2024, 3, 1), Category: Income, Subject: "salary", Amount: Money{Cents: 300000}},
		{Date: NewDate(2024, 3, 10), Category: Income, Subject: "bonus", Amount: Money{Cents: 50000}},
		{Date: NewDate(2024, 3, 2), Category: Expense, Subject: "rent", Amount: Money{Cents: 90000}},
		{Date: NewDate(2024, 3, 5), Category: Expense, Subject: "groceries", Amount: Money{Cents: 4200}},
		{Date: NewDate(2024, 3, 20), Category: Expense, Subject: "groceries", Amount: Money{Cents: 5800}},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("2024-03", fixtureEntries())
	if s.Income.Cents != 350000 {
		t.Errorf("income = %d, want 350000", s.Income.Cents)
	}
	if s.Expense.Cents != 100000 {
		t.Errorf("expense = %d, want 100000", s.Expense.Cents)
	}
	if s.Balance.Cents != 250000 {
		t.Errorf("balance = %d, want 250000", s.Balance.Cents)
	}
	if s.Count != 5 {
		t.Errorf("count = %d, want 5", s.Count)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("2024-04", nil)
	if s.Income.Cents != 0 || s.Expense.Cents != 0 || s.Balance.Cents != 0 || s.Count != 0 {
		t.Errorf("empty month summary not zero: %+v", s)
	}
}

func TestComputeStatistics(t *testing.T) {
	st := ComputeStatistics("2024-03", fixtureEntries())

	if st.TotalRecords != 5 || st.IncomeCount != 2 || st.ExpenseCount != 3 {
		t.Fatalf("counts = %d/%d/%d", st.TotalRecords, st.IncomeCount, st.ExpenseCount)
	}
	if st.IncomeTotal.Cents != 350000 || st.ExpenseTotal.Cents != 100000 || st.Balance.Cents != 250000 {
		t.Fatalf("totals = %d/%d/%d", st.IncomeTotal.Cents, st.ExpenseTotal.Cents, st.Balance.Cents)
	}
	if st.AvgIncome.Cents != 175000 {
		t.Errorf("avg income = %d, want 175000", st.AvgIncome.Cents)
	}
	if st.AvgExpense.Cents != 33333 {
		t.Errorf("avg expense = %d, want 33333", st.AvgExpense.Cents)
	}
	if st.MaxIncome.Cents != 300000 || st.MinIncome.Cents != 50000 {
		t.Errorf("income extremes = %d/%d", st.MaxIncome.Cents, st.MinIncome.Cents)
	}
	if st.MaxExpense.Cents != 90000 || st.MinExpense.Cents != 4200 {
		t.Errorf("expense extremes = %d/%d", st.MaxExpense.Cents, st.MinExpense.Cents)
	}

	// Breakdown merges the two grocery rows and is sorted.
	want := []SubjectAmount{
		{Expense, "groceries", Money{Cents: 10000}},
		{Expense, "rent", Money{Cents: 90000}},
		{Income, "bonus", Money{Cents: 50000}},
		{Income, "salary", Money{Cents: 300000}},
	}
	if len(st.SubjectBreakdown) != len(want) {
		t.Fatalf("breakdown len = %d, want %d", len(st.SubjectBreakdown), len(want))
	}
	for i, w := range want {
		if st.SubjectBreakdown[i] != w {
			t.Errorf("breakdown[%d] = %+v, want %+v", i, st.SubjectBreakdown[i], w)
		}
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	st := ComputeStatistics("2024-04", nil)
	if st.AvgIncome.Cents != 0 || st.AvgExpense.Cents != 0 {
		t.Errorf("averages over empty month should be zero: %+v", st)
	}
	if len(st.SubjectBreakdown) != 0 {
		t.Errorf("breakdown should be empty")
	}
}
