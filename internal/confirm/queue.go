// Package confirm serialises yes/no confirmations for conflicting field
// updates. A session has at most one active confirmation; the rest wait in
// the backlog in the order they were extracted.
package confirm

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/susu3304/tripledger/internal/ledger"
)

// ErrInvariant means the session's queue held something it never should,
// such as an update for a field the form does not define.
var ErrInvariant = errors.New("confirmation queue is inconsistent")

type Reply int

const (
	Unknown Reply = iota
	Yes
	No
)

// ParseReply accepts yes/y/no/n in any case, ignoring surrounding
// punctuation.
func ParseReply(text string) Reply {
	s := strings.TrimFunc(strings.ToLower(strings.TrimSpace(text)), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	switch s {
	case "yes", "y":
		return Yes
	case "no", "n":
		return No
	}
	return Unknown
}

type Outcome struct {
	// Applied is true when the active update was written into the session.
	Applied bool
	// Finished is true when the last queued confirmation was answered.
	Finished bool
	// Rejected is true when the reply was neither yes nor no.
	Rejected   bool
	NextPrompt string
	// Field is the field the answered confirmation was about.
	Field ledger.Field
}

// Queue is stateless; everything it tracks lives on the session.
type Queue struct {
	form      *ledger.Form
	recompute func(*ledger.Session)
}

func New(form *ledger.Form, recompute func(*ledger.Session)) *Queue {
	if recompute == nil {
		recompute = func(*ledger.Session) {}
	}
	return &Queue{form: form, recompute: recompute}
}

// Enqueue adds conflicts to the session's queue and returns the prompt the
// user should see now, or "" when nothing was queued.
func (q *Queue) Enqueue(s *ledger.Session, conflicts []ledger.PendingUpdate) string {
	if len(conflicts) == 0 {
		if s.Pending != nil {
			return s.Pending.Prompt
		}
		return ""
	}
	if s.Pending == nil {
		first := conflicts[0]
		s.Pending = &first
		conflicts = conflicts[1:]
	}
	s.Backlog = append(s.Backlog, conflicts...)
	return s.Pending.Prompt
}

// Resolve answers the active confirmation. With no active confirmation it
// reports Finished and does nothing.
func (q *Queue) Resolve(s *ledger.Session, reply string) (Outcome, error) {
	if s.Pending == nil {
		return Outcome{Finished: true}, nil
	}

	var out Outcome
	switch ParseReply(reply) {
	case Yes:
		p := *s.Pending
		f, ok := q.form.Field(p.FieldID)
		if !ok {
			s.ClearQueue()
			return Outcome{}, fmt.Errorf("%w: pending update for unknown field %q", ErrInvariant, p.FieldID)
		}
		// Cleared first so a repeated yes finds the next item, not this one.
		s.Pending = nil
		s.Apply(f, p.Value)
		q.recompute(s)
		out.Applied = true
		out.Field = f
	case No:
		if f, ok := q.form.Field(s.Pending.FieldID); ok {
			out.Field = f
		}
		s.Pending = nil
	default:
		return Outcome{Rejected: true, NextPrompt: s.Pending.Prompt}, nil
	}

	if len(s.Backlog) == 0 {
		s.Backlog = nil
		out.Finished = true
		return out, nil
	}
	next := s.Backlog[0]
	s.Backlog = s.Backlog[1:]
	s.Pending = &next
	out.NextPrompt = next.Prompt
	return out, nil
}
