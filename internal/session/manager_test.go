package session

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/susu3304/tripledger/internal/ledger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGetOrCreateDoesNotStore(t *testing.T) {
	m := NewManager()
	sess, created := m.GetOrCreate("a", "daily")
	require.True(t, created)
	assert.Equal(t, ledger.StateNew, sess.State)
	assert.Nil(t, m.Get("a"))

	m.Put(sess)
	got, created := m.GetOrCreate("a", "booking")
	assert.False(t, created)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, m.Len())

	m.Remove("a")
	assert.Nil(t, m.Get("a"))
	assert.Equal(t, 0, m.Len())
}

func TestLockSerialisesOneSender(t *testing.T) {
	m := NewManager()
	const turns = 50

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("a")
			defer unlock()

			sess, _ := m.GetOrCreate("a", "daily")
			next := sess.Clone()
			e := next.Amounts["diesel"]
			next.Amounts["diesel"] = ledger.Entry{Amount: e.Amount.Add(decimal.NewFromInt(1)), Mode: ledger.Cash}
			m.Put(next)
		}()
	}
	wg.Wait()

	assert.True(t, m.Get("a").Amounts["diesel"].Amount.Equal(decimal.NewFromInt(turns)))
}

func TestLockDoesNotBlockOtherSenders(t *testing.T) {
	m := NewManager()
	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock := m.Lock("b")
		unlock()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender b waited on sender a")
	}
}

func TestIdleAndMarkReminded(t *testing.T) {
	m := NewManager()
	base := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)

	put := func(id string, updated time.Time, withField bool) {
		s := ledger.NewSession(id, "daily")
		if withField {
			s.EntityCode = "MH12AB1234"
		}
		s.UpdatedAt = updated
		m.Put(s)
	}
	put("old", base, true)
	put("older", base.Add(-time.Hour), true)
	put("fresh", base.Add(5*time.Hour), true)
	put("empty", base.Add(-2*time.Hour), false)

	cutoff := base.Add(time.Hour)
	idle := m.Idle(cutoff)
	require.Len(t, idle, 2)
	assert.Equal(t, "older", idle[0].SenderID)
	assert.Equal(t, "old", idle[1].SenderID)

	m.MarkReminded("older", idle[0].UpdatedAt, base.Add(2*time.Hour))
	idle = m.Idle(cutoff)
	require.Len(t, idle, 1)
	assert.Equal(t, "old", idle[0].SenderID)

	// Touched after the reminder was decided: not marked.
	touched := m.Get("old").Clone()
	touched.UpdatedAt = base.Add(30 * time.Minute)
	m.Put(touched)
	m.MarkReminded("old", base, base.Add(2*time.Hour))
	assert.True(t, m.Get("old").RemindedAt.IsZero())

	// A new edit after a reminder makes the draft eligible again.
	again := m.Get("older").Clone()
	again.UpdatedAt = base.Add(3 * time.Hour)
	m.Put(again)
	assert.Len(t, m.Idle(base.Add(4*time.Hour)), 2)
}
