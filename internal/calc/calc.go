// Package calc derives the financial totals of a draft. Every function is a
// pure function of the session's field values and the form definition.
package calc

import (
	"github.com/shopspring/decimal"
	"github.com/susu3304/tripledger/internal/ledger"
)

type Totals struct {
	CashCollection   decimal.Decimal
	OnlineCollection decimal.Decimal
	CashExpenses     decimal.Decimal
	TotalExpenses    decimal.Decimal
}

func Sum(f *ledger.Form, s *ledger.Session) Totals {
	t := Totals{
		CashCollection:   decimal.Zero,
		OnlineCollection: decimal.Zero,
		CashExpenses:     decimal.Zero,
		TotalExpenses:    decimal.Zero,
	}
	addExpense := func(amount decimal.Decimal, mode ledger.Mode) {
		t.TotalExpenses = t.TotalExpenses.Add(amount)
		if mode != ledger.Online {
			t.CashExpenses = t.CashExpenses.Add(amount)
		}
	}

	for _, fd := range f.Fields {
		if fd.Kind != ledger.KindAmount {
			continue
		}
		e, ok := s.Amounts[fd.ID]
		if !ok {
			continue
		}
		switch fd.Role {
		case ledger.RoleCollection:
			if e.Mode == ledger.Online {
				t.OnlineCollection = t.OnlineCollection.Add(e.Amount)
			} else {
				t.CashCollection = t.CashCollection.Add(e.Amount)
			}
		case ledger.RoleExpense:
			addExpense(e.Amount, e.Mode)
		}
	}
	for _, l := range s.Expenses {
		addExpense(l.Amount, l.Mode)
	}
	for _, l := range s.Staff {
		addExpense(l.Amount, l.Mode)
	}
	return t
}

// NetCash is the physical cash left after cash-mode expenses.
func NetCash(f *ledger.Form, s *ledger.Session) decimal.Decimal {
	t := Sum(f, s)
	return t.CashCollection.Sub(t.CashExpenses)
}

// Profit counts every collection and every expense regardless of mode.
func Profit(f *ledger.Form, s *ledger.Session) decimal.Decimal {
	t := Sum(f, s)
	return t.CashCollection.Add(t.OnlineCollection).Sub(t.TotalExpenses)
}

// IsComplete lists the labels of required fields that are still empty.
func IsComplete(f *ledger.Form, s *ledger.Session) (bool, []string) {
	var missing []string
	for _, fd := range f.Fields {
		if fd.Required && !s.Has(fd) {
			missing = append(missing, fd.Label)
		}
	}
	return len(missing) == 0, missing
}

type Change int

const (
	NoChange Change = iota
	BecameReady
	Regressed
)

// Recompute refreshes the derived totals and the ready flag after a mutation.
func Recompute(f *ledger.Form, s *ledger.Session) Change {
	t := Sum(f, s)
	s.NetCash = t.CashCollection.Sub(t.CashExpenses)
	s.Profit = t.CashCollection.Add(t.OnlineCollection).Sub(t.TotalExpenses)

	complete, _ := IsComplete(f, s)
	switch {
	case complete && !s.ReadyToSubmit:
		s.ReadyToSubmit = true
		return BecameReady
	case !complete && s.ReadyToSubmit:
		s.ReadyToSubmit = false
		return Regressed
	}
	return NoChange
}
