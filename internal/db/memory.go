package db

import (
	"context"
	"sync"

	"github.com/susu3304/tripledger/internal/ledger"
)

// Memory keeps records in process. It is the store for tests and the
// console.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]ledger.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]ledger.Record)}
}

func (m *Memory) ReadAll(_ context.Context, form string) (map[string]ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ledger.Record, len(m.records[form]))
	for k, r := range m.records[form] {
		out[k] = copyRecord(r)
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, form, key string) (ledger.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[form][key]
	if !ok {
		return ledger.Record{}, false, nil
	}
	return copyRecord(r), true, nil
}

func (m *Memory) Upsert(_ context.Context, rec ledger.Record, expectedVersion int64) (ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.records[rec.Form]
	if !ok {
		byKey = make(map[string]ledger.Record)
		m.records[rec.Form] = byKey
	}
	if byKey[rec.Key].Version != expectedVersion {
		return ledger.Record{}, ledger.ErrVersionConflict
	}
	rec = copyRecord(rec)
	rec.Version = expectedVersion + 1
	byKey[rec.Key] = rec
	return copyRecord(rec), nil
}

func copyRecord(r ledger.Record) ledger.Record {
	s := ledger.NewSession(r.SubmittedBy, r.Form)
	s.Load(r)
	c := r
	c.Amounts, c.Texts, c.Expenses, c.Staff = s.Amounts, s.Texts, s.Expenses, s.Staff
	return c
}
