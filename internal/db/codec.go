package db

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/susu3304/tripledger/internal/ledger"
)

// payload is the part of a record stored as one JSON document.
type payload struct {
	Amounts  map[string]ledger.Entry `json:"amounts"`
	Texts    map[string]string       `json:"texts"`
	Expenses []ledger.ExpenseLine    `json:"expenses"`
	Staff    []ledger.StaffLine      `json:"staff"`
}

func encodePayload(r ledger.Record) ([]byte, error) {
	data, err := json.Marshal(payload{
		Amounts:  r.Amounts,
		Texts:    r.Texts,
		Expenses: r.Expenses,
		Staff:    r.Staff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", r.Key, err)
	}
	return data, nil
}

func decodeInto(r *ledger.Record, data []byte, netCash, profit string) error {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", r.Key, err)
	}
	r.Amounts, r.Texts, r.Expenses, r.Staff = p.Amounts, p.Texts, p.Expenses, p.Staff
	if r.Amounts == nil {
		r.Amounts = make(map[string]ledger.Entry)
	}
	if r.Texts == nil {
		r.Texts = make(map[string]string)
	}

	var err error
	if r.NetCash, err = decimal.NewFromString(netCash); err != nil {
		return fmt.Errorf("record %s: bad net cash %q: %w", r.Key, netCash, err)
	}
	if r.Profit, err = decimal.NewFromString(profit); err != nil {
		return fmt.Errorf("record %s: bad profit %q: %w", r.Key, profit, err)
	}
	return nil
}
