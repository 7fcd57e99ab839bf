package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	Cash   Mode = "cash"
	Online Mode = "online"
)

// Kind decides how a field's argument is read and how it is stored.
type Kind string

const (
	KindDate     Kind = "date"
	KindEntity   Kind = "entity"
	KindAmount   Kind = "amount"
	KindText     Kind = "text"
	KindExpenses Kind = "expense_list"
	KindStaff    Kind = "staff_list"
)

// Role places an amount field on one side of the calculations.
type Role string

const (
	RoleNone       Role = ""
	RoleCollection Role = "collection"
	RoleExpense    Role = "expense"
)

type LineType string

const (
	Recurring LineType = "recurring"
	OneOff    LineType = "oneoff"
)

type Entry struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   Mode            `json:"mode"`
	Remark string          `json:"remark,omitempty"`
}

func (e Entry) String() string {
	if e.Remark != "" {
		return fmt.Sprintf("%s (%s, %s)", e.Amount.String(), e.Mode, e.Remark)
	}
	return fmt.Sprintf("%s (%s)", e.Amount.String(), e.Mode)
}

// Differs reports whether replacing e with other would change anything the
// user can see. Remarks only count when both sides carry one.
func (e Entry) Differs(other Entry) bool {
	if !e.Amount.Equal(other.Amount) || e.Mode != other.Mode {
		return true
	}
	return e.Remark != "" && other.Remark != "" && e.Remark != other.Remark
}

type ExpenseLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Mode   Mode            `json:"mode"`
	Remark string          `json:"remark,omitempty"`
}

func (l ExpenseLine) SameKey(other ExpenseLine) bool {
	return strings.EqualFold(l.Name, other.Name) && l.Mode == other.Mode
}

type StaffLine struct {
	Name   string          `json:"name"`
	Role   string          `json:"role"`
	Type   LineType        `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Mode   Mode            `json:"mode"`
}

func (l StaffLine) SameKey(other StaffLine) bool {
	return strings.EqualFold(l.Name, other.Name) &&
		strings.EqualFold(l.Role, other.Role) &&
		l.Mode == other.Mode &&
		l.Type == other.Type
}

// Value carries a proposed field value. Which member is meaningful depends on
// the field kind.
type Value struct {
	Entry   Entry        `json:"entry"`
	Text    string       `json:"text,omitempty"`
	Expense *ExpenseLine `json:"expense,omitempty"`
	Staff   *StaffLine   `json:"staff,omitempty"`
}

type UpdateKind string

const (
	UpdatePlain      UpdateKind = "plain"
	UpdateListUpsert UpdateKind = "listUpsert"
)

type PendingUpdate struct {
	FieldID string     `json:"field_id"`
	Value   Value      `json:"value"`
	Kind    UpdateKind `json:"kind"`
	Prompt  string     `json:"prompt"`
}
