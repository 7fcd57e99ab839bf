package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/tripledger/internal/ledger"
)

func newExtractor(t *testing.T, form string) (*Extractor, *ledger.Form) {
	t.Helper()
	forms, err := ledger.DefaultForms()
	require.NoError(t, err)
	f, ok := forms.Lookup(form)
	require.True(t, ok)
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	ex, err := New(f, WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	require.NoError(t, err)
	return ex, f
}

func amount(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func assignedIDs(res Result) []string {
	var ids []string
	for _, a := range res.Assignments {
		ids = append(ids, a.Field.ID)
	}
	return ids
}

func TestExtractAssignments(t *testing.T) {
	ex, _ := newExtractor(t, "daily")

	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, res Result)
	}{
		{
			name: "single amount",
			text: "Diesel 500",
			check: func(t *testing.T, res Result) {
				require.Len(t, res.Assignments, 1)
				e := res.Assignments[0].Value.Entry
				assert.True(t, e.Amount.Equal(amount(500)))
				assert.Equal(t, ledger.Cash, e.Mode)
				assert.Empty(t, e.Remark)
			},
		},
		{
			name: "several fields on one line",
			text: "vehicle mh12ab1234 date 05/03/2025 diesel 500",
			check: func(t *testing.T, res Result) {
				assert.Equal(t, []string{"entity", "date", "diesel"}, assignedIDs(res))
				assert.Equal(t, "MH12AB1234", res.Assignments[0].Value.Text)
				assert.Equal(t, "05/03/2025", res.Assignments[1].Value.Text)
			},
		},
		{
			name: "longest synonym wins",
			text: "total cash collection 5,000\nonline collection 1200",
			check: func(t *testing.T, res Result) {
				require.Equal(t, []string{"cash_collection", "online_collection"}, assignedIDs(res))
				assert.True(t, res.Assignments[0].Value.Entry.Amount.Equal(amount(5000)))
				assert.Equal(t, ledger.Cash, res.Assignments[0].Value.Entry.Mode)
				assert.Equal(t, ledger.Online, res.Assignments[1].Value.Entry.Mode, "online collection defaults to online")
			},
		},
		{
			name: "mode word and remark",
			text: "diesel rs 450.50 upi paid at pump",
			check: func(t *testing.T, res Result) {
				require.Len(t, res.Assignments, 1)
				e := res.Assignments[0].Value.Entry
				assert.True(t, e.Amount.Equal(decimal.RequireFromString("450.5")))
				assert.Equal(t, ledger.Online, e.Mode)
				assert.Equal(t, "paid at pump", e.Remark)
			},
		},
		{
			name: "field words inside a remark are not fields",
			text: "adda 200 paid near bus stand",
			check: func(t *testing.T, res Result) {
				require.Equal(t, []string{"adda"}, assignedIDs(res))
				assert.Equal(t, "paid near bus stand", res.Assignments[0].Value.Entry.Remark)
			},
		},
		{
			name: "text field takes the whole line",
			text: "remarks tyre puncture, diesel 500 was late",
			check: func(t *testing.T, res Result) {
				require.Equal(t, []string{"remarks"}, assignedIDs(res))
				assert.Equal(t, "tyre puncture, diesel 500 was late", res.Assignments[0].Value.Text)
			},
		},
		{
			name: "expense lines",
			text: "expense tea 50\nexpense tea 40 online\nother expense puncture 300",
			check: func(t *testing.T, res Result) {
				require.Len(t, res.Assignments, 3)
				tea := res.Assignments[0].Value.Expense
				require.NotNil(t, tea)
				assert.Equal(t, "tea", tea.Name)
				assert.Equal(t, ledger.Cash, tea.Mode)
				assert.Equal(t, ledger.Online, res.Assignments[1].Value.Expense.Mode)
				assert.Equal(t, "puncture", res.Assignments[2].Value.Expense.Name)
			},
		},
		{
			name: "staff lines",
			text: "driver Ramesh 800\nhelper Suresh Kumar 300 online oneoff",
			check: func(t *testing.T, res Result) {
				require.Len(t, res.Assignments, 2)
				d := res.Assignments[0].Value.Staff
				require.NotNil(t, d)
				assert.Equal(t, ledger.StaffLine{Name: "Ramesh", Role: "driver", Type: ledger.Recurring, Amount: d.Amount, Mode: ledger.Cash}, *d)
				assert.True(t, d.Amount.Equal(amount(800)))
				h := res.Assignments[1].Value.Staff
				assert.Equal(t, "Suresh Kumar", h.Name)
				assert.Equal(t, ledger.Online, h.Mode)
				assert.Equal(t, ledger.OneOff, h.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ex.Extract(tt.text, ledger.NewSession("u", "daily"))
			assert.True(t, res.AnyFieldFound)
			assert.False(t, res.HandledEarly)
			assert.Empty(t, res.Errors)
			assert.Empty(t, res.Conflicts)
			tt.check(t, res)
		})
	}
}

func TestExtractNothingRecognised(t *testing.T) {
	ex, _ := newExtractor(t, "daily")
	res := ex.Extract("hello there, how are you", ledger.NewSession("u", "daily"))
	assert.False(t, res.AnyFieldFound)
	assert.Empty(t, res.Assignments)
}

func TestExtractBadDateRejectsMessage(t *testing.T) {
	ex, _ := newExtractor(t, "daily")
	for _, text := range []string{"diesel 500 date 32/13/2025", "date someday\ndiesel 500", "diesel 500 date someday"} {
		res := ex.Extract(text, ledger.NewSession("u", "daily"))
		assert.True(t, res.HandledEarly, text)
		assert.Contains(t, res.Message, "Nothing from this message was saved")
		assert.Empty(t, res.Assignments, text)
	}
}

func TestExtractParseError(t *testing.T) {
	ex, _ := newExtractor(t, "daily")
	res := ex.Extract("diesel full tank", ledger.NewSession("u", "daily"))
	assert.True(t, res.AnyFieldFound)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "diesel", res.Errors[0].Field.ID)
	assert.Equal(t, "full tank", res.Errors[0].Input)
	assert.Contains(t, res.Errors[0].Reason, "diesel 500")
}

func TestExtractNegativeAmount(t *testing.T) {
	ex, _ := newExtractor(t, "daily")
	for _, text := range []string{"diesel -500", "diesel: -500", "adda 300 diesel rs -500"} {
		res := ex.Extract(text, ledger.NewSession("u", "daily"))
		require.Len(t, res.Errors, 1, text)
		assert.Equal(t, "diesel", res.Errors[0].Field.ID)
		assert.Equal(t, "amounts cannot be negative", res.Errors[0].Reason)
		for _, a := range res.Assignments {
			assert.NotEqual(t, "diesel", a.Field.ID, text)
		}
	}

	res := ex.Extract("diesel - 500", ledger.NewSession("u", "daily"))
	assert.Empty(t, res.Errors, "a spaced dash is a separator")
	require.Len(t, res.Assignments, 1)
	assert.True(t, res.Assignments[0].Value.Entry.Amount.Equal(amount(500)))
}

func TestExtractConflicts(t *testing.T) {
	ex, f := newExtractor(t, "daily")
	s := ledger.NewSession("u", "daily")
	diesel, _ := f.Field("diesel")
	adda, _ := f.Field("adda")
	s.Apply(diesel, ledger.Value{Entry: ledger.Entry{Amount: amount(500), Mode: ledger.Cash}})
	s.Apply(adda, ledger.Value{Entry: ledger.Entry{Amount: amount(200), Mode: ledger.Cash}})
	tea := ledger.ExpenseLine{Name: "tea", Amount: amount(50), Mode: ledger.Cash}
	expenses, _ := f.Field("expenses")
	s.Apply(expenses, ledger.Value{Expense: &tea})
	staff, _ := f.Field("staff")
	s.Apply(staff, ledger.Value{Staff: &ledger.StaffLine{Name: "Ramesh", Role: "driver", Type: ledger.Recurring, Amount: amount(800), Mode: ledger.Cash}})
	s.Apply(f.Fields[0], ledger.Value{Text: "MH12AB1234"})

	t.Run("registration order", func(t *testing.T) {
		res := ex.Extract("Adda 300 Diesel 700", s)
		require.Len(t, res.Conflicts, 2)
		assert.Equal(t, "diesel", res.Conflicts[0].FieldID)
		assert.Equal(t, "Diesel already has 500 (cash). Update to 700 (cash)? (yes/no)", res.Conflicts[0].Prompt)
		assert.Equal(t, "adda", res.Conflicts[1].FieldID)
		assert.Equal(t, ledger.UpdatePlain, res.Conflicts[1].Kind)
		assert.Empty(t, res.Assignments)
	})

	t.Run("same value is unchanged", func(t *testing.T) {
		res := ex.Extract("diesel 500.00", s)
		assert.Empty(t, res.Conflicts)
		assert.Empty(t, res.Assignments)
		require.Len(t, res.Unchanged, 1)
		assert.Equal(t, "diesel", res.Unchanged[0].ID)
	})

	t.Run("adding a remark is an assignment", func(t *testing.T) {
		res := ex.Extract("diesel 500 filled at depot", s)
		assert.Empty(t, res.Conflicts)
		require.Len(t, res.Assignments, 1)
		assert.Equal(t, "filled at depot", res.Assignments[0].Value.Entry.Remark)
	})

	t.Run("entity change needs confirmation", func(t *testing.T) {
		res := ex.Extract("vehicle KA01X9999", s)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, "Vehicle already has MH12AB1234. Update to KA01X9999? (yes/no)", res.Conflicts[0].Prompt)
	})

	t.Run("expense line upsert", func(t *testing.T) {
		res := ex.Extract("expense Tea 60\nexpense tea 30 online", s)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, ledger.UpdateListUpsert, res.Conflicts[0].Kind)
		assert.Equal(t, `Expense "tea" already has 50 (cash). Update to 60 (cash)? (yes/no)`, res.Conflicts[0].Prompt)
		require.Len(t, res.Assignments, 1, "the online line is a different line")
		assert.Equal(t, ledger.Online, res.Assignments[0].Value.Expense.Mode)
	})

	t.Run("staff line upsert", func(t *testing.T) {
		res := ex.Extract("driver ramesh 900", s)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, "Driver Ramesh (cash, recurring) already has 800. Update to 900? (yes/no)", res.Conflicts[0].Prompt)
	})

	t.Run("later value in the same message compares with the earlier one", func(t *testing.T) {
		res := ex.Extract("expense snacks 40\nexpense snacks 45", s)
		require.Len(t, res.Assignments, 1)
		require.Len(t, res.Conflicts, 1)
		assert.Contains(t, res.Conflicts[0].Prompt, "already has 40 (cash)")
	})

	t.Run("session is not modified", func(t *testing.T) {
		ex.Extract("union 100\nexpense water 20", s)
		_, has := s.Amounts["union"]
		assert.False(t, has)
		assert.Len(t, s.Expenses, 1)
	})
}

func TestExtractDeletions(t *testing.T) {
	ex, _ := newExtractor(t, "daily")
	res := ex.Extract("expense delete tea\ndriver remove Ramesh", ledger.NewSession("u", "daily"))
	require.Len(t, res.Deletions, 2)
	assert.Equal(t, "tea", res.Deletions[0].Name)
	assert.Equal(t, ledger.KindExpenses, res.Deletions[0].Field.Kind)
	assert.Equal(t, "driver", res.Deletions[1].Role)
	assert.Equal(t, "Ramesh", res.Deletions[1].Name)
}

func TestExtractBookingForm(t *testing.T) {
	ex, _ := newExtractor(t, "booking")
	res := ex.Extract("customer Sharma family\ndriver bata 300\nfare 12000 online", ledger.NewSession("u", "booking"))
	assert.Equal(t, []string{"customer", "fare", "bata"}, assignedIDs(res))
	assert.Equal(t, "Sharma family", res.Assignments[0].Value.Text)
	assert.Equal(t, ledger.Online, res.Assignments[1].Value.Entry.Mode)
}

func TestNewRejectsSharedSynonym(t *testing.T) {
	forms, err := ledger.ParseForms([]byte(`
forms:
  - name: x
    fields:
      - {id: entity, kind: entity, synonyms: [bus]}
      - {id: date, kind: date, synonyms: [date]}
      - {id: a, kind: amount, synonyms: [fuel]}
      - {id: b, kind: amount, synonyms: [fuel]}
`))
	require.NoError(t, err)
	f, _ := forms.Lookup("x")
	_, err = New(f)
	assert.Error(t, err)
}
