package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrVersionConflict is returned by stores when the record under a key has
// moved past the version the writer expected.
var ErrVersionConflict = errors.New("record was modified by someone else")

// Record is a finalised, persisted report.
type Record struct {
	Form        string            `json:"form"`
	Key         string            `json:"key"`
	EntityCode  string            `json:"entity_code"`
	Date        string            `json:"date"`
	Amounts     map[string]Entry  `json:"amounts"`
	Texts       map[string]string `json:"texts"`
	Expenses    []ExpenseLine     `json:"expenses"`
	Staff       []StaffLine       `json:"staff"`
	NetCash     decimal.Decimal   `json:"net_cash"`
	Profit      decimal.Decimal   `json:"profit"`
	Status      string            `json:"status"`
	Version     int64             `json:"version"`
	SubmittedBy string            `json:"submitted_by"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// RecordKey builds the store key "<entity>_<DD/MM/YYYY>".
func RecordKey(entityCode, date string) string {
	return entityCode + "_" + date
}

// ToRecord snapshots the draft's field values. Derived totals are copied as
// last computed; callers recompute first.
func (s *Session) ToRecord(at time.Time) Record {
	c := s.Clone()
	status := "submitted"
	if s.EditingExisting || s.BaseVersion > 0 {
		status = "updated"
	}
	return Record{
		Form:        s.Form,
		Key:         s.Key(),
		EntityCode:  s.EntityCode,
		Date:        s.Date,
		Amounts:     c.Amounts,
		Texts:       c.Texts,
		Expenses:    c.Expenses,
		Staff:       c.Staff,
		NetCash:     s.NetCash,
		Profit:      s.Profit,
		Status:      status,
		Version:     s.BaseVersion,
		SubmittedBy: s.SenderID,
		SubmittedAt: at,
	}
}

// Load replaces every field value in the draft with the record's. Control
// flags and the confirmation queue are left to the caller.
func (s *Session) Load(r Record) {
	s.Form = r.Form
	s.EntityCode = r.EntityCode
	s.Date = r.Date
	s.Amounts = make(map[string]Entry, len(r.Amounts))
	for k, v := range r.Amounts {
		s.Amounts[k] = v
	}
	s.Texts = make(map[string]string, len(r.Texts))
	for k, v := range r.Texts {
		s.Texts[k] = v
	}
	s.Expenses = append([]ExpenseLine(nil), r.Expenses...)
	s.Staff = append([]StaffLine(nil), r.Staff...)
	s.Status = r.Status
	s.BaseVersion = r.Version
}
