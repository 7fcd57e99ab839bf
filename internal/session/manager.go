// Package session owns the in-memory drafts, one per sender.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/susu3304/tripledger/internal/ledger"
)

type slot struct {
	turn sync.Mutex
	sess *ledger.Session
}

// Manager maps sender ids to their drafts. Stored sessions are never mutated
// in place: a turn works on a clone and stores the result with Put.
type Manager struct {
	slots map[string]*slot
	mu    sync.RWMutex
	now   func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		slots: make(map[string]*slot),
		now:   time.Now,
	}
}

func (m *Manager) slot(senderID string) *slot {
	m.mu.RLock()
	s, ok := m.slots[senderID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.slots[senderID]; !ok {
		s = &slot{}
		m.slots[senderID] = s
	}
	return s
}

// Lock serialises turns for one sender. Turns from other senders are not
// blocked.
func (m *Manager) Lock(senderID string) (unlock func()) {
	s := m.slot(senderID)
	s.turn.Lock()
	return s.turn.Unlock
}

// Get returns the sender's draft or nil.
func (m *Manager) Get(senderID string) *ledger.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.slots[senderID]; ok {
		return s.sess
	}
	return nil
}

// GetOrCreate returns the sender's draft, starting one on form when there is
// none. The second result reports whether the draft is new.
func (m *Manager) GetOrCreate(senderID, form string) (*ledger.Session, bool) {
	if sess := m.Get(senderID); sess != nil {
		return sess, false
	}
	sess := ledger.NewSession(senderID, form)
	sess.UpdatedAt = m.now()
	return sess, true
}

func (m *Manager) Put(sess *ledger.Session) {
	s := m.slot(sess.SenderID)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.sess = sess
}

func (m *Manager) Remove(senderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// The slot stays so a waiting turn keeps the same lock.
	if s, ok := m.slots[senderID]; ok {
		s.sess = nil
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.slots {
		if s.sess != nil {
			n++
		}
	}
	return n
}

// Idle lists non-empty drafts last touched before cutoff that have not been
// reminded since, oldest first.
func (m *Manager) Idle(cutoff time.Time) []*ledger.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ledger.Session
	for _, s := range m.slots {
		sess := s.sess
		if sess == nil || sess.IsEmpty() {
			continue
		}
		if sess.UpdatedAt.Before(cutoff) && sess.RemindedAt.Before(sess.UpdatedAt) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}

// MarkReminded records a reminder for the draft if it has not been touched
// since the reminder was decided.
func (m *Manager) MarkReminded(senderID string, updatedAt, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[senderID]
	if !ok || s.sess == nil || !s.sess.UpdatedAt.Equal(updatedAt) {
		return
	}
	c := s.sess.Clone()
	c.RemindedAt = at
	s.sess = c
}
