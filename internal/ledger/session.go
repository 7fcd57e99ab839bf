package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateNew              State = "new"
	StateCollecting       State = "collecting"
	StateConfirmingFetch  State = "confirming_fetch"
	StateConfirmingUpdate State = "confirming_update"
	StateAwaitingCancel   State = "awaiting_cancel"
	StateReadyToSubmit    State = "ready_to_submit"
	StateSubmitted        State = "submitted"
	StateCleared          State = "cleared"
)

// Session is one sender's in-progress draft.
type Session struct {
	SenderID   string            `json:"sender_id"`
	Form       string            `json:"form"`
	EntityCode string            `json:"entity_code,omitempty"`
	Date       string            `json:"date,omitempty"`
	Amounts    map[string]Entry  `json:"amounts"`
	Texts      map[string]string `json:"texts"`
	Expenses   []ExpenseLine     `json:"expenses"`
	Staff      []StaffLine       `json:"staff"`
	Status     string            `json:"status,omitempty"`

	// Written only by the calculation engine.
	NetCash decimal.Decimal `json:"net_cash"`
	Profit  decimal.Decimal `json:"profit"`

	State           State `json:"state"`
	ReadyToSubmit   bool  `json:"ready_to_submit"`
	EditingExisting bool  `json:"editing_existing"`
	// BaseVersion is the stored version this draft was started from; zero
	// means the key was free when last checked.
	BaseVersion int64 `json:"base_version"`
	// CheckedKey is the record key last looked up in the store.
	CheckedKey string `json:"checked_key,omitempty"`

	Pending *PendingUpdate  `json:"pending,omitempty"`
	Backlog []PendingUpdate `json:"backlog,omitempty"`

	UpdatedAt  time.Time `json:"updated_at"`
	RemindedAt time.Time `json:"-"`
}

func NewSession(senderID, form string) *Session {
	return &Session{
		SenderID: senderID,
		Form:     form,
		Amounts:  make(map[string]Entry),
		Texts:    make(map[string]string),
		Status:   "draft",
		State:    StateNew,
	}
}

func (s *Session) ConfirmingFetch() bool  { return s.State == StateConfirmingFetch }
func (s *Session) ConfirmingUpdate() bool { return s.State == StateConfirmingUpdate }
func (s *Session) AwaitingCancel() bool   { return s.State == StateAwaitingCancel }

func (s *Session) KeyComplete() bool {
	return s.EntityCode != "" && s.Date != ""
}

func (s *Session) Key() string {
	return RecordKey(s.EntityCode, s.Date)
}

// IsEmpty reports whether no field holds a value yet.
func (s *Session) IsEmpty() bool {
	return s.EntityCode == "" && s.Date == "" && len(s.Amounts) == 0 &&
		len(s.Texts) == 0 && len(s.Expenses) == 0 && len(s.Staff) == 0
}

func (s *Session) Clone() *Session {
	c := *s
	c.Amounts = make(map[string]Entry, len(s.Amounts))
	for k, v := range s.Amounts {
		c.Amounts[k] = v
	}
	c.Texts = make(map[string]string, len(s.Texts))
	for k, v := range s.Texts {
		c.Texts[k] = v
	}
	c.Expenses = append([]ExpenseLine(nil), s.Expenses...)
	c.Staff = append([]StaffLine(nil), s.Staff...)
	c.Backlog = append([]PendingUpdate(nil), s.Backlog...)
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return &c
}

// Has reports whether the field's slot already holds a value.
func (s *Session) Has(f Field) bool {
	switch f.Kind {
	case KindDate:
		return s.Date != ""
	case KindEntity:
		return s.EntityCode != ""
	case KindAmount:
		_, ok := s.Amounts[f.ID]
		return ok
	case KindText:
		return s.Texts[f.ID] != ""
	case KindExpenses:
		return len(s.Expenses) > 0
	case KindStaff:
		return len(s.Staff) > 0
	}
	return false
}

// FindExpense returns the line sharing l's key.
func (s *Session) FindExpense(l ExpenseLine) (ExpenseLine, bool) {
	for _, e := range s.Expenses {
		if e.SameKey(l) {
			return e, true
		}
	}
	return ExpenseLine{}, false
}

func (s *Session) FindStaff(l StaffLine) (StaffLine, bool) {
	for _, e := range s.Staff {
		if e.SameKey(l) {
			return e, true
		}
	}
	return StaffLine{}, false
}

// Apply writes v into the field: a plain replace for scalar fields and a
// find-or-insert by key for list fields. Derived totals are not touched.
func (s *Session) Apply(f Field, v Value) {
	switch f.Kind {
	case KindDate:
		s.Date = v.Text
	case KindEntity:
		s.EntityCode = v.Text
	case KindAmount:
		s.Amounts[f.ID] = v.Entry
	case KindText:
		s.Texts[f.ID] = v.Text
	case KindExpenses:
		if v.Expense == nil {
			return
		}
		for i := range s.Expenses {
			if s.Expenses[i].SameKey(*v.Expense) {
				s.Expenses[i] = *v.Expense
				return
			}
		}
		s.Expenses = append(s.Expenses, *v.Expense)
	case KindStaff:
		if v.Staff == nil {
			return
		}
		for i := range s.Staff {
			if s.Staff[i].SameKey(*v.Staff) {
				s.Staff[i] = *v.Staff
				return
			}
		}
		s.Staff = append(s.Staff, *v.Staff)
	}
}

// Unset empties a scalar field.
func (s *Session) Unset(f Field) {
	switch f.Kind {
	case KindDate:
		s.Date = ""
	case KindEntity:
		s.EntityCode = ""
	case KindAmount:
		delete(s.Amounts, f.ID)
	case KindText:
		delete(s.Texts, f.ID)
	}
}

// DeleteExpenses removes every line named name, in any mode.
func (s *Session) DeleteExpenses(name string) int {
	kept := s.Expenses[:0]
	removed := 0
	for _, e := range s.Expenses {
		if strings.EqualFold(e.Name, name) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.Expenses = kept
	return removed
}

// DeleteStaff removes every line for name under role.
func (s *Session) DeleteStaff(role, name string) int {
	kept := s.Staff[:0]
	removed := 0
	for _, e := range s.Staff {
		if strings.EqualFold(e.Role, role) && strings.EqualFold(e.Name, name) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.Staff = kept
	return removed
}

// ClearQueue drops the active confirmation and the backlog.
func (s *Session) ClearQueue() {
	s.Pending = nil
	s.Backlog = nil
}
