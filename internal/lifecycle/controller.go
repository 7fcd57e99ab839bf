// Package lifecycle drives a draft from its first field through fetching an
// existing record, confirmations and submission.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"
	"github.com/susu3304/tripledger/internal/calc"
	"github.com/susu3304/tripledger/internal/confirm"
	"github.com/susu3304/tripledger/internal/extract"
	"github.com/susu3304/tripledger/internal/ledger"
)

const (
	evEdit             = "edit"
	evFoundExisting    = "found_existing"
	evLoad             = "load"
	evSkipLoad         = "skip_load"
	evKeep             = "keep"
	evComplete         = "complete"
	evIncomplete       = "incomplete"
	evStale            = "stale"
	evDeclineOverwrite = "decline_overwrite"
	evSubmit           = "submit"
	evClear            = "clear"
)

var (
	live = []string{
		string(ledger.StateNew),
		string(ledger.StateCollecting),
		string(ledger.StateConfirmingFetch),
		string(ledger.StateConfirmingUpdate),
		string(ledger.StateAwaitingCancel),
		string(ledger.StateReadyToSubmit),
	}

	transitions = fsm.Events{
		{Name: evEdit, Src: []string{string(ledger.StateNew)}, Dst: string(ledger.StateCollecting)},
		{Name: evFoundExisting, Src: []string{string(ledger.StateNew), string(ledger.StateCollecting), string(ledger.StateReadyToSubmit)}, Dst: string(ledger.StateConfirmingFetch)},
		{Name: evLoad, Src: []string{string(ledger.StateConfirmingFetch)}, Dst: string(ledger.StateAwaitingCancel)},
		{Name: evSkipLoad, Src: []string{string(ledger.StateConfirmingFetch)}, Dst: string(ledger.StateCollecting)},
		{Name: evKeep, Src: []string{string(ledger.StateAwaitingCancel)}, Dst: string(ledger.StateCollecting)},
		{Name: evComplete, Src: []string{string(ledger.StateNew), string(ledger.StateCollecting)}, Dst: string(ledger.StateReadyToSubmit)},
		{Name: evIncomplete, Src: []string{string(ledger.StateReadyToSubmit)}, Dst: string(ledger.StateCollecting)},
		{Name: evStale, Src: []string{string(ledger.StateReadyToSubmit), string(ledger.StateConfirmingUpdate)}, Dst: string(ledger.StateConfirmingUpdate)},
		{Name: evDeclineOverwrite, Src: []string{string(ledger.StateConfirmingUpdate)}, Dst: string(ledger.StateReadyToSubmit)},
		{Name: evSubmit, Src: []string{string(ledger.StateReadyToSubmit), string(ledger.StateConfirmingUpdate)}, Dst: string(ledger.StateSubmitted)},
		{Name: evClear, Src: live, Dst: string(ledger.StateCleared)},
	}
)

// StoreOp is a write the caller must perform after a step.
type StoreOp struct {
	Record          ledger.Record
	ExpectedVersion int64
}

// Result is the outcome of one turn. Session is a new value; the input
// session is never modified.
type Result struct {
	Session  *ledger.Session
	Messages []string
	Ops      []StoreOp
	// Destroy means the draft ends with this turn.
	Destroy bool
	// Answer is yes, no or rejected when the turn answered a field
	// confirmation.
	Answer string
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

type engine struct {
	form    *ledger.Form
	extract *extract.Extractor
	queue   *confirm.Queue
}

type Controller struct {
	forms       *ledger.Forms
	defaultForm string
	engines     map[string]engine
	now         func() time.Time
	loc         *time.Location
}

func NewController(forms *ledger.Forms, defaultForm string, opts ...Option) (*Controller, error) {
	c := &Controller{
		forms:       forms,
		defaultForm: defaultForm,
		engines:     make(map[string]engine),
		now:         time.Now,
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, ok := forms.Lookup(defaultForm); !ok {
		return nil, fmt.Errorf("default form %q is not defined", defaultForm)
	}

	for _, name := range forms.Names() {
		form, _ := forms.Lookup(name)
		ex, err := extract.New(form, extract.WithClock(c.now), extract.WithLocation(c.loc))
		if err != nil {
			return nil, err
		}
		f := form
		c.engines[name] = engine{
			form:    form,
			extract: ex,
			queue:   confirm.New(form, func(s *ledger.Session) { calc.Recompute(f, s) }),
		}
	}
	return c, nil
}

func (c *Controller) DefaultForm() string { return c.defaultForm }

func (c *Controller) Form(name string) (*ledger.Form, bool) {
	e, ok := c.engines[strings.ToLower(name)]
	return e.form, ok
}

// Forms lists the form definitions in declaration order.
func (c *Controller) Forms() []*ledger.Form {
	out := make([]*ledger.Form, 0, len(c.engines))
	for _, name := range c.forms.Names() {
		out = append(out, c.engines[name].form)
	}
	return out
}

// turn is the working state of one Step.
type turn struct {
	engine
	sess     *ledger.Session
	machine  *fsm.FSM
	snapshot map[string]ledger.Record
	res      Result
}

func (t *turn) say(msgs ...string) {
	for _, m := range msgs {
		if m != "" {
			t.res.Messages = append(t.res.Messages, m)
		}
	}
}

// fire moves the state machine and mirrors its state onto the session.
// Events that are not allowed from the current state are ignored.
func (t *turn) fire(event string) bool {
	err := t.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return false
	}
	t.sess.State = ledger.State(t.machine.Current())
	return true
}

func (t *turn) key() string {
	if !t.sess.KeyComplete() {
		return ""
	}
	return t.sess.Key()
}

func (c *Controller) begin(sess *ledger.Session, snapshot map[string]ledger.Record) (*turn, error) {
	s := sess.Clone()
	if s.Form == "" {
		s.Form = c.defaultForm
	}
	if s.State == "" {
		s.State = ledger.StateNew
	}
	e, ok := c.engines[s.Form]
	if !ok {
		return nil, fmt.Errorf("session for %s uses unknown form %q", s.SenderID, s.Form)
	}
	t := &turn{
		engine:   e,
		sess:     s,
		machine:  fsm.NewFSM(string(s.State), transitions, fsm.Callbacks{}),
		snapshot: snapshot,
	}
	t.res.Session = s
	return t, nil
}

// Step handles one inbound message. snapshot holds every stored record of the
// session's form, keyed by record key.
func (c *Controller) Step(sess *ledger.Session, text string, snapshot map[string]ledger.Record) (Result, error) {
	t, err := c.begin(sess, snapshot)
	if err != nil {
		return Result{}, err
	}
	s := t.sess
	cmd := strings.ToLower(strings.Join(strings.Fields(text), " "))
	reply := confirm.ParseReply(text)

	switch {
	case cmd == "clear":
		t.fire(evClear)
		t.res.Destroy = true
		t.say(msgCleared)
		return t.res, nil

	case s.ConfirmingFetch():
		c.answerFetch(t, reply)
		return t.res, nil

	case s.AwaitingCancel():
		switch reply {
		case confirm.Yes:
			t.fire(evKeep)
			t.say(msgContinueEdit)
			c.settle(t)
		case confirm.No:
			t.fire(evClear)
			t.res.Destroy = true
			t.say(msgDiscarded)
		default:
			t.say(cancelPrompt(s))
		}
		return t.res, nil

	case s.ConfirmingUpdate():
		switch reply {
		case confirm.Yes:
			current := t.snapshot[s.Key()]
			s.BaseVersion = current.Version
			s.EditingExisting = true
			c.submit(t)
		case confirm.No:
			t.fire(evDeclineOverwrite)
			t.say(msgOverwriteNo)
		default:
			t.say(overwritePrompt(s))
		}
		return t.res, nil

	case s.Pending != nil:
		out, err := t.queue.Resolve(s, text)
		if err != nil {
			t.say(msgQueueBroken)
			c.settle(t)
			return t.res, nil
		}
		if out.Rejected {
			t.res.Answer = "rejected"
			t.say(out.NextPrompt)
			return t.res, nil
		}
		t.res.Answer = "no"
		if out.Applied {
			t.res.Answer = "yes"
		}
		t.say(answeredMessage(out))
		if out.NextPrompt != "" {
			t.say(out.NextPrompt)
			return t.res, nil
		}
		c.settle(t)
		return t.res, nil

	case cmd == "submit" || (s.ReadyToSubmit && reply != confirm.Unknown):
		if reply == confirm.No {
			t.say(msgNotSubmitted)
			return t.res, nil
		}
		calc.Recompute(t.form, s)
		if !s.ReadyToSubmit {
			_, missing := calc.IsComplete(t.form, s)
			t.say(missingMessage(missing))
			return t.res, nil
		}
		c.submit(t)
		return t.res, nil

	case strings.HasPrefix(cmd, "form "):
		c.switchForm(t, strings.TrimPrefix(cmd, "form "))
		return t.res, nil

	case cmd == "status" || cmd == "show":
		t.say(Summary(t.form, s))
		return t.res, nil
	}

	c.edit(t, text)
	return t.res, nil
}

func (c *Controller) answerFetch(t *turn, reply confirm.Reply) {
	s := t.sess
	rec, ok := t.snapshot[s.Key()]
	switch {
	case reply == confirm.Yes && ok:
		s.Load(rec)
		s.ClearQueue()
		s.EditingExisting = true
		s.ReadyToSubmit = false
		calc.Recompute(t.form, s)
		t.fire(evLoad)
		t.say(cancelPrompt(s))
	case reply == confirm.Yes:
		// Removed since we asked; carry on with the draft as a new record.
		s.BaseVersion = 0
		t.fire(evSkipLoad)
		t.say(msgRecordGone)
		c.settle(t)
	case reply == confirm.No:
		date, _ := t.form.FieldOfKind(ledger.KindDate)
		s.Unset(date)
		s.BaseVersion = 0
		s.CheckedKey = ""
		t.fire(evSkipLoad)
		calc.Recompute(t.form, s)
		t.say(msgAskOtherDate)
	case ok:
		t.say(fetchPrompt(rec))
	default:
		s.BaseVersion = 0
		t.fire(evSkipLoad)
		c.settle(t)
	}
}

func (c *Controller) switchForm(t *turn, name string) {
	s := t.sess
	if !s.IsEmpty() {
		t.say(msgSwitchNotEmpty)
		return
	}
	e, ok := c.engines[strings.TrimSpace(name)]
	if !ok {
		t.say(fmt.Sprintf("Unknown form %q. Available: %s.", name, strings.Join(c.forms.Names(), ", ")))
		return
	}
	s.Form = e.form.Name
	s.ClearQueue()
	t.engine = e
	title := e.form.Title
	if title == "" {
		title = e.form.Name
	}
	t.say(fmt.Sprintf("Switched to %s.", title))
}

func (c *Controller) edit(t *turn, text string) {
	s := t.sess
	ex := t.extract.Extract(text, s)
	if !ex.AnyFieldFound {
		return
	}
	if ex.HandledEarly {
		t.say(ex.Message)
		return
	}
	t.fire(evEdit)

	for _, err := range ex.Errors {
		t.say(parseErrorMessage(err))
	}
	for _, a := range ex.Assignments {
		s.Apply(a.Field, a.Value)
	}
	if len(ex.Assignments) > 0 {
		t.say(assignedMessage(ex.Assignments))
	}
	for _, d := range ex.Deletions {
		var n int
		switch d.Field.Kind {
		case ledger.KindExpenses:
			n = s.DeleteExpenses(d.Name)
		case ledger.KindStaff:
			n = s.DeleteStaff(d.Role, d.Name)
		}
		t.say(deletedMessage(d, n))
	}
	if len(ex.Unchanged) > 0 && len(ex.Assignments) == 0 && len(ex.Conflicts) == 0 {
		t.say(unchangedMessage(ex.Unchanged))
	}

	calc.Recompute(t.form, s)
	if len(ex.Conflicts) > 0 {
		t.say(t.queue.Enqueue(s, ex.Conflicts))
		return
	}
	c.settle(t)
}

// settle runs once no confirmation is pending: it checks for an existing
// record under a key the draft has not looked up yet and moves between
// collecting and ready_to_submit.
func (c *Controller) settle(t *turn) {
	s := t.sess
	wasReady := s.State == ledger.StateReadyToSubmit
	change := calc.Recompute(t.form, s)
	if s.Pending != nil {
		return
	}

	if k := t.key(); k != s.CheckedKey {
		// A different key is a different record.
		s.CheckedKey = k
		s.EditingExisting = false
		s.BaseVersion = 0
		if rec, ok := t.snapshot[k]; ok && k != "" {
			s.BaseVersion = rec.Version
			t.fire(evFoundExisting)
			t.say(fetchPrompt(rec))
			return
		}
	}

	complete, missing := calc.IsComplete(t.form, s)
	switch {
	case complete:
		t.fire(evComplete)
		if change == calc.BecameReady || !wasReady || len(t.res.Messages) > 0 {
			t.say(readyMessage(s))
		}
	default:
		t.fire(evIncomplete)
		if len(t.res.Messages) > 0 || change == calc.Regressed {
			t.say(missingMessage(missing))
		}
	}
}

func (c *Controller) submit(t *turn) {
	s := t.sess
	calc.Recompute(t.form, s)
	rec := s.ToRecord(c.now().In(c.loc))
	t.res.Ops = append(t.res.Ops, StoreOp{Record: rec, ExpectedVersion: s.BaseVersion})
	t.fire(evSubmit)
}

// Persisted reports a successful write of the step's op and ends the draft.
func (c *Controller) Persisted(rec ledger.Record) Result {
	return Result{Messages: []string{savedMessage(rec)}, Destroy: true}
}

// StaleWrite handles an upsert rejected because the stored version moved on.
// before is the session as it was at the start of the turn.
func (c *Controller) StaleWrite(before *ledger.Session) (Result, error) {
	t, err := c.begin(before, nil)
	if err != nil {
		return Result{}, err
	}
	calc.Recompute(t.form, t.sess)
	if !t.fire(evStale) {
		return Result{}, fmt.Errorf("cannot detour to confirming_update from %s", t.sess.State)
	}
	t.say(overwritePrompt(t.sess))
	return t.res, nil
}

// WriteFailed keeps the pre-turn session and tells the user to retry.
func (c *Controller) WriteFailed(before *ledger.Session) Result {
	return Result{Session: before, Messages: []string{msgStoreWrite}}
}

// ReadFailed is the reply when the store snapshot could not be read.
func (c *Controller) ReadFailed(before *ledger.Session) Result {
	return Result{Session: before, Messages: []string{msgStoreRead}}
}
