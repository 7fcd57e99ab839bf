package lifecycle

import (
	"fmt"
	"strings"

	"github.com/susu3304/tripledger/internal/calc"
	"github.com/susu3304/tripledger/internal/confirm"
	"github.com/susu3304/tripledger/internal/extract"
	"github.com/susu3304/tripledger/internal/ledger"
)

const (
	msgSubmitPrompt   = "Submit? (yes/no)"
	msgNotSubmitted   = "Not submitted. Keep editing, or send submit when you are ready."
	msgCleared        = "Draft cleared."
	msgDiscarded      = "Discarded the loaded record. Nothing was changed."
	msgContinueEdit   = "OK, editing the saved record. Send the fields you want to change."
	msgAskOtherDate   = "OK, the saved record was not loaded. Send a different date for this draft."
	msgRecordGone     = "The saved record is no longer there, so your draft continues as a new record."
	msgQueueBroken    = "Something went wrong with the pending confirmations, so they were dropped. Please resend those changes."
	msgStoreRead      = "I couldn't reach the records right now, so nothing was changed. Please try again."
	msgStoreWrite     = "Saving failed, your draft is unchanged. Please send submit again in a moment."
	msgOverwriteNo    = "OK, the other record was kept. Your draft is still here; send submit to try again."
	msgSwitchNotEmpty = "Clear the current draft before switching forms."
)

func fetchPrompt(r ledger.Record) string {
	return fmt.Sprintf("A record for %s on %s already exists. Load it for editing? (yes/no)", r.EntityCode, r.Date)
}

func cancelPrompt(s *ledger.Session) string {
	return fmt.Sprintf("Loaded the saved record for %s on %s. Continue editing it? (yes to continue, no to discard)", s.EntityCode, s.Date)
}

func overwritePrompt(s *ledger.Session) string {
	return fmt.Sprintf("Someone else saved a record for %s on %s after you started. Overwrite it with your draft? (yes/no)", s.EntityCode, s.Date)
}

func readyMessage(s *ledger.Session) string {
	return fmt.Sprintf("All required fields are filled. Net cash %s, profit %s. %s", s.NetCash, s.Profit, msgSubmitPrompt)
}

func missingMessage(missing []string) string {
	return "Still needed: " + strings.Join(missing, ", ") + "."
}

func savedMessage(r ledger.Record) string {
	return fmt.Sprintf("Saved %s for %s on %s (%s). Net cash %s, profit %s.",
		r.Form, r.EntityCode, r.Date, r.Status, r.NetCash, r.Profit)
}

func assignedMessage(as []extract.Assignment) string {
	parts := make([]string, 0, len(as))
	for _, a := range as {
		parts = append(parts, describe(a.Field, a.Value))
	}
	return "Noted: " + strings.Join(parts, "; ") + "."
}

func describe(f ledger.Field, v ledger.Value) string {
	switch f.Kind {
	case ledger.KindAmount:
		return fmt.Sprintf("%s %s", f.Label, v.Entry)
	case ledger.KindExpenses:
		if v.Expense != nil {
			return fmt.Sprintf("%s %s %s", f.Label, v.Expense.Name, ledger.Entry{Amount: v.Expense.Amount, Mode: v.Expense.Mode, Remark: v.Expense.Remark})
		}
	case ledger.KindStaff:
		if v.Staff != nil {
			return fmt.Sprintf("%s %s %s (%s, %s)", v.Staff.Role, v.Staff.Name, v.Staff.Amount, v.Staff.Mode, v.Staff.Type)
		}
	case ledger.KindText:
		return fmt.Sprintf("%s %q", f.Label, v.Text)
	}
	return fmt.Sprintf("%s %s", f.Label, v.Text)
}

func unchangedMessage(fs []ledger.Field) string {
	seen := make(map[string]bool)
	var labels []string
	for _, f := range fs {
		if !seen[f.ID] {
			seen[f.ID] = true
			labels = append(labels, f.Label)
		}
	}
	return "Already recorded, no change: " + strings.Join(labels, ", ") + "."
}

func deletedMessage(d extract.Deletion, n int) string {
	what := d.Name
	if d.Role != "" {
		what = d.Role + " " + d.Name
	}
	if n == 0 {
		return fmt.Sprintf("Nothing to remove for %s.", what)
	}
	return fmt.Sprintf("Removed %s (%d line(s)).", what, n)
}

func parseErrorMessage(err *extract.ParseError) string {
	return fmt.Sprintf("Couldn't read %s from %q: %s.", err.Field.Label, err.Input, err.Reason)
}

// Summary renders the draft's current values, derived totals and what is
// still missing.
func Summary(form *ledger.Form, s *ledger.Session) string {
	var b strings.Builder
	title := form.Title
	if title == "" {
		title = form.Name
	}
	fmt.Fprintf(&b, "%s draft\n", title)
	for _, f := range form.Fields {
		switch f.Kind {
		case ledger.KindEntity:
			fmt.Fprintf(&b, "%s: %s\n", f.Label, orDash(s.EntityCode))
		case ledger.KindDate:
			fmt.Fprintf(&b, "%s: %s\n", f.Label, orDash(s.Date))
		case ledger.KindAmount:
			if e, ok := s.Amounts[f.ID]; ok {
				fmt.Fprintf(&b, "%s: %s\n", f.Label, e)
			} else {
				fmt.Fprintf(&b, "%s: -\n", f.Label)
			}
		case ledger.KindText:
			fmt.Fprintf(&b, "%s: %s\n", f.Label, orDash(s.Texts[f.ID]))
		case ledger.KindExpenses:
			for _, l := range s.Expenses {
				fmt.Fprintf(&b, "%s %s: %s\n", f.Label, l.Name, ledger.Entry{Amount: l.Amount, Mode: l.Mode, Remark: l.Remark})
			}
		case ledger.KindStaff:
			for _, l := range s.Staff {
				fmt.Fprintf(&b, "%s %s: %s (%s, %s)\n", l.Role, l.Name, l.Amount, l.Mode, l.Type)
			}
		}
	}
	fmt.Fprintf(&b, "Net cash: %s\nProfit: %s", calc.NetCash(form, s), calc.Profit(form, s))
	if ok, missing := calc.IsComplete(form, s); !ok {
		fmt.Fprintf(&b, "\n%s", missingMessage(missing))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func answeredMessage(out confirm.Outcome) string {
	if out.Field.ID == "" {
		return ""
	}
	if out.Applied {
		return fmt.Sprintf("Updated %s.", out.Field.Label)
	}
	return fmt.Sprintf("Kept %s as it was.", out.Field.Label)
}
