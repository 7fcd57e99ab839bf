// Package extract turns free-form chat text into field assignments and
// conflicts for a draft session.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/susu3304/tripledger/internal/ledger"
)

var (
	reAmountArg = regexp.MustCompile(`(?is)^\s*[:=\-]?\s*(?:rs\.?|inr|₹)?\s*(\d[\d,]*(?:\.\d+)?)(.*)$`)
	reEntityArg = regexp.MustCompile(`^\s*[:=\-]?\s*([A-Za-z0-9][A-Za-z0-9\-]*)`)
	reSignedArg = regexp.MustCompile(`(?i)^\s*[:=]?\s*(?:rs\.?|inr|₹)?\s*-\d`)
	reDeleteArg = regexp.MustCompile(`(?is)^\s*(?:delete|remove|del)\s+(.+)$`)
	reLineArg   = regexp.MustCompile(`(?is)^\s*[:=\-]?\s*(.+?)\s+(?:rs\.?|inr|₹)?\s*(\d[\d,]*(?:\.\d+)?)(.*)$`)
	reDigit     = regexp.MustCompile(`\d`)
)

// ParseError reports a recognised field whose value could not be read.
type ParseError struct {
	Field  ledger.Field
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field.Label, e.Reason)
}

type Assignment struct {
	Field ledger.Field
	Value ledger.Value
}

// Deletion removes list lines by name (and role for staff lines).
type Deletion struct {
	Field ledger.Field
	Name  string
	Role  string
}

type Result struct {
	AnyFieldFound bool
	// HandledEarly means the whole message was rejected; Message explains why.
	HandledEarly bool
	Message      string
	Assignments  []Assignment
	Conflicts    []ledger.PendingUpdate
	Deletions    []Deletion
	Unchanged    []ledger.Field
	Errors       []*ParseError
}

type Option func(*Extractor)

func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Extractor holds the compiled pattern table for one form.
type Extractor struct {
	form     *ledger.Form
	now      func() time.Time
	loc      *time.Location
	anchors  *regexp.Regexp
	synonyms map[string]int
}

func New(form *ledger.Form, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		form:     form,
		now:      time.Now,
		loc:      time.Local,
		synonyms: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}

	var syns []string
	for i, f := range form.Fields {
		for _, syn := range f.Synonyms {
			if prev, dup := e.synonyms[syn]; dup && prev != i {
				return nil, fmt.Errorf("form %s: synonym %q used by %s and %s", form.Name, syn, form.Fields[prev].ID, f.ID)
			}
			e.synonyms[syn] = i
			syns = append(syns, syn)
		}
	}
	// Longest first so "online collection" wins over "collection".
	sort.SliceStable(syns, func(i, j int) bool { return len(syns[i]) > len(syns[j]) })

	alts := make([]string, len(syns))
	for i, syn := range syns {
		words := strings.Fields(syn)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		alts[i] = strings.Join(words, `\s+`)
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("form %s: failed to compile field patterns: %w", form.Name, err)
	}
	e.anchors = re
	return e, nil
}

func (e *Extractor) Form() *ledger.Form { return e.form }

type occurrence struct {
	arg string
}

// Extract scans text against the session. The session is not modified;
// assignments are for the caller to apply.
func (e *Extractor) Extract(text string, s *ledger.Session) Result {
	found := e.scan(text)
	var res Result
	if len(found) == 0 {
		return res
	}
	res.AnyFieldFound = true

	// A bad date rejects the whole message.
	for i, f := range e.form.Fields {
		if f.Kind != ledger.KindDate || len(found[i]) == 0 {
			continue
		}
		if _, err := ParseDate(found[i][0].arg, e.now().In(e.loc)); err != nil {
			res.HandledEarly = true
			res.Message = fmt.Sprintf(
				"I couldn't understand the date %q. Use today, yesterday, tomorrow, DD/MM/YYYY or a date like 5 March 2025. Nothing from this message was saved.",
				strings.TrimSpace(found[i][0].arg))
			return res
		}
	}

	// Later values in the same message compare against earlier ones.
	scratch := s.Clone()
	for i, f := range e.form.Fields {
		occs := found[i]
		if len(occs) == 0 {
			continue
		}
		if f.Kind != ledger.KindExpenses && f.Kind != ledger.KindStaff {
			occs = occs[:1]
		}
		for _, occ := range occs {
			e.extractOne(f, occ, scratch, &res)
		}
	}
	return res
}

// scan finds field anchors line by line and returns the arguments per field
// index in order of appearance.
func (e *Extractor) scan(text string) map[int][]occurrence {
	found := make(map[int][]occurrence)
	for _, raw := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		locs := e.anchors.FindAllStringIndex(line, -1)
		if len(locs) == 0 {
			continue
		}

		if locs[0][0] == 0 {
			i := e.fieldIndex(line[locs[0][0]:locs[0][1]])
			switch e.form.Fields[i].Kind {
			case ledger.KindText, ledger.KindExpenses, ledger.KindStaff:
				arg := line[locs[0][1]:]
				if e.form.Fields[i].Kind == ledger.KindStaff {
					// The role word is part of the line's value.
					arg = line
				}
				found[i] = append(found[i], occurrence{arg: arg})
				continue
			}
		}

		type anchor struct {
			field      int
			start, end int
		}
		var accepted []anchor
		for _, loc := range locs {
			i := e.fieldIndex(line[loc[0]:loc[1]])
			f := e.form.Fields[i]
			lineStart := loc[0] == 0
			switch f.Kind {
			case ledger.KindText, ledger.KindExpenses, ledger.KindStaff:
				continue
			}
			// A date anchor always counts so a bad date stops the message.
			if !lineStart && f.Kind != ledger.KindDate && !looksLike(f.Kind, line[loc[1]:]) {
				continue
			}
			accepted = append(accepted, anchor{field: i, start: loc[0], end: loc[1]})
		}
		for k, a := range accepted {
			end := len(line)
			if k+1 < len(accepted) {
				end = accepted[k+1].start
			}
			found[a.field] = append(found[a.field], occurrence{arg: line[a.end:end]})
		}
	}
	return found
}

func (e *Extractor) fieldIndex(match string) int {
	return e.synonyms[strings.ToLower(strings.Join(strings.Fields(match), " "))]
}

func looksLike(k ledger.Kind, arg string) bool {
	switch k {
	case ledger.KindAmount:
		return reAmountArg.MatchString(arg) || reSignedArg.MatchString(arg)
	case ledger.KindEntity:
		m := reEntityArg.FindStringSubmatch(arg)
		return m != nil && reDigit.MatchString(m[1])
	}
	return false
}

func (e *Extractor) extractOne(f ledger.Field, occ occurrence, scratch *ledger.Session, res *Result) {
	fail := func(reason string) {
		res.Errors = append(res.Errors, &ParseError{Field: f, Input: strings.TrimSpace(occ.arg), Reason: reason})
	}

	switch f.Kind {
	case ledger.KindDate:
		date, err := ParseDate(occ.arg, e.now().In(e.loc))
		if err != nil {
			fail(err.Error())
			return
		}
		e.decideScalar(f, ledger.Value{Text: date}, scratch.Date, scratch, res)

	case ledger.KindEntity:
		m := reEntityArg.FindStringSubmatch(occ.arg)
		if m == nil {
			fail("expected a vehicle code")
			return
		}
		e.decideScalar(f, ledger.Value{Text: strings.ToUpper(m[1])}, scratch.EntityCode, scratch, res)

	case ledger.KindText:
		text := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(occ.arg), ":=-"))
		if text == "" {
			fail("no text given")
			return
		}
		e.decideScalar(f, ledger.Value{Text: text}, scratch.Texts[f.ID], scratch, res)

	case ledger.KindAmount:
		if reSignedArg.MatchString(occ.arg) {
			fail("amounts cannot be negative")
			return
		}
		entry, ok := parseEntry(occ.arg, f.DefaultMode)
		if !ok {
			fail("expected an amount, e.g. " + f.Synonyms[0] + " 500")
			return
		}
		v := ledger.Value{Entry: entry}
		old, had := scratch.Amounts[f.ID]
		switch {
		case !had:
			e.assign(f, v, scratch, res)
		case old.Differs(entry):
			res.Conflicts = append(res.Conflicts, ledger.PendingUpdate{
				FieldID: f.ID,
				Value:   v,
				Kind:    ledger.UpdatePlain,
				Prompt:  fmt.Sprintf("%s already has %s. Update to %s? (yes/no)", f.Label, old, entry),
			})
		case old.Remark == "" && entry.Remark != "":
			e.assign(f, v, scratch, res)
		default:
			res.Unchanged = append(res.Unchanged, f)
		}

	case ledger.KindExpenses:
		if m := reDeleteArg.FindStringSubmatch(occ.arg); m != nil {
			res.Deletions = append(res.Deletions, Deletion{Field: f, Name: cleanName(m[1])})
			return
		}
		m := reLineArg.FindStringSubmatch(occ.arg)
		if m == nil {
			fail("expected: " + f.Synonyms[0] + " <name> <amount> [online]")
			return
		}
		amount, err := parseAmount(m[2])
		if err != nil {
			fail(err.Error())
			return
		}
		mode, remark := splitTail(m[3], f.DefaultMode)
		line := ledger.ExpenseLine{Name: cleanName(m[1]), Amount: amount, Mode: mode, Remark: remark}
		v := ledger.Value{Expense: &line}
		old, had := scratch.FindExpense(line)
		oldEntry := ledger.Entry{Amount: old.Amount, Mode: old.Mode, Remark: old.Remark}
		newEntry := ledger.Entry{Amount: line.Amount, Mode: line.Mode, Remark: line.Remark}
		switch {
		case !had:
			e.assign(f, v, scratch, res)
		case oldEntry.Differs(newEntry):
			res.Conflicts = append(res.Conflicts, ledger.PendingUpdate{
				FieldID: f.ID,
				Value:   v,
				Kind:    ledger.UpdateListUpsert,
				Prompt: fmt.Sprintf("%s %q already has %s. Update to %s? (yes/no)",
					f.Label, old.Name, oldEntry, newEntry),
			})
		case old.Remark == "" && line.Remark != "":
			e.assign(f, v, scratch, res)
		default:
			res.Unchanged = append(res.Unchanged, f)
		}

	case ledger.KindStaff:
		role, rest := splitRole(occ.arg)
		if m := reDeleteArg.FindStringSubmatch(rest); m != nil {
			res.Deletions = append(res.Deletions, Deletion{Field: f, Role: role, Name: cleanName(m[1])})
			return
		}
		m := reLineArg.FindStringSubmatch(rest)
		if m == nil {
			fail("expected: " + role + " <name> <amount> [online] [oneoff]")
			return
		}
		amount, err := parseAmount(m[2])
		if err != nil {
			fail(err.Error())
			return
		}
		mode, typ := staffTail(m[3], f.DefaultMode)
		line := ledger.StaffLine{Name: cleanName(m[1]), Role: role, Type: typ, Amount: amount, Mode: mode}
		v := ledger.Value{Staff: &line}
		old, had := scratch.FindStaff(line)
		switch {
		case !had:
			e.assign(f, v, scratch, res)
		case !old.Amount.Equal(line.Amount):
			res.Conflicts = append(res.Conflicts, ledger.PendingUpdate{
				FieldID: f.ID,
				Value:   v,
				Kind:    ledger.UpdateListUpsert,
				Prompt: fmt.Sprintf("%s %s (%s, %s) already has %s. Update to %s? (yes/no)",
					titleCase(role), old.Name, old.Mode, old.Type, old.Amount, line.Amount),
			})
		default:
			res.Unchanged = append(res.Unchanged, f)
		}
	}
}

// decideScalar handles date, entity and text fields, which compare by value.
func (e *Extractor) decideScalar(f ledger.Field, v ledger.Value, current string, scratch *ledger.Session, res *Result) {
	switch {
	case current == "":
		e.assign(f, v, scratch, res)
	case current == v.Text:
		res.Unchanged = append(res.Unchanged, f)
	default:
		res.Conflicts = append(res.Conflicts, ledger.PendingUpdate{
			FieldID: f.ID,
			Value:   v,
			Kind:    ledger.UpdatePlain,
			Prompt:  fmt.Sprintf("%s already has %s. Update to %s? (yes/no)", f.Label, quoteText(f, current), quoteText(f, v.Text)),
		})
	}
}

func (e *Extractor) assign(f ledger.Field, v ledger.Value, scratch *ledger.Session, res *Result) {
	scratch.Apply(f, v)
	res.Assignments = append(res.Assignments, Assignment{Field: f, Value: v})
}

func quoteText(f ledger.Field, s string) string {
	if f.Kind == ledger.KindText {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func parseEntry(arg string, defaultMode ledger.Mode) (ledger.Entry, bool) {
	m := reAmountArg.FindStringSubmatch(arg)
	if m == nil {
		return ledger.Entry{}, false
	}
	amount, err := parseAmount(m[1])
	if err != nil {
		return ledger.Entry{}, false
	}
	mode, remark := splitTail(m[2], defaultMode)
	return ledger.Entry{Amount: amount, Mode: mode, Remark: remark}, true
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not an amount", s)
	}
	return d, nil
}

// splitTail reads an optional payment mode word followed by a free-text
// remark.
func splitTail(rest string, defaultMode ledger.Mode) (ledger.Mode, string) {
	mode := defaultMode
	words := strings.Fields(rest)
	if len(words) > 0 {
		if m, ok := modeWord(words[0]); ok {
			mode = m
			words = words[1:]
		}
	}
	remark := strings.Trim(strings.Join(words, " "), " -:,;()")
	return mode, remark
}

func staffTail(rest string, defaultMode ledger.Mode) (ledger.Mode, ledger.LineType) {
	mode, typ := defaultMode, ledger.Recurring
	for _, w := range strings.Fields(strings.ToLower(rest)) {
		if m, ok := modeWord(w); ok {
			mode = m
			continue
		}
		switch strings.Trim(w, ",;()") {
		case "oneoff", "one-off", "once", "adhoc":
			typ = ledger.OneOff
		case "recurring", "regular", "daily", "monthly":
			typ = ledger.Recurring
		}
	}
	return mode, typ
}

func modeWord(w string) (ledger.Mode, bool) {
	switch strings.ToLower(strings.Trim(w, ",;()")) {
	case "online", "upi", "gpay", "phonepe", "paytm", "bank":
		return ledger.Online, true
	case "cash":
		return ledger.Cash, true
	}
	return "", false
}

func splitRole(line string) (role, rest string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	role = strings.ToLower(parts[0])
	if len(parts) == 2 {
		rest = parts[1]
	}
	return role, rest
}

func cleanName(s string) string {
	return strings.Join(strings.Fields(strings.Trim(s, " -:,;")), " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
