package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/susu3304/tripledger/internal/ledger"
	"github.com/susu3304/tripledger/internal/metrics"
	"github.com/susu3304/tripledger/internal/session"
)

// Store is the persisted side of the records. Upsert must be atomic per key:
// it writes only when the stored version still equals expectedVersion (zero
// meaning no record yet) and returns ledger.ErrVersionConflict otherwise.
type Store interface {
	ReadAll(ctx context.Context, form string) (map[string]ledger.Record, error)
	Upsert(ctx context.Context, rec ledger.Record, expectedVersion int64) (ledger.Record, error)
}

// Service binds the controller to the session manager and the store. It is
// what transports call.
type Service struct {
	ctrl         *Controller
	sessions     *session.Manager
	store        Store
	log          *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewService(ctrl *Controller, sessions *session.Manager, store Store, log *zap.Logger, storeTimeout time.Duration) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}
	return &Service{
		ctrl:         ctrl,
		sessions:     sessions,
		store:        store,
		log:          log,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

func (s *Service) Controller() *Controller { return s.ctrl }

func (s *Service) Store() Store { return s.store }

// HandleTurn processes one message from senderID and returns the replies.
// It never fails: every problem is logged and answered with a message.
func (s *Service) HandleTurn(ctx context.Context, senderID, text string) []string {
	started := s.now()
	defer func() { metrics.TurnDuration.Observe(time.Since(started).Seconds()) }()

	log := s.log.With(zap.String("turn_id", uuid.NewString()), zap.String("sender", senderID))

	unlock := s.sessions.Lock(senderID)
	defer unlock()

	before, created := s.sessions.GetOrCreate(senderID, s.ctrl.DefaultForm())

	readCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	snapshot, err := s.store.ReadAll(readCtx, before.Form)
	cancel()
	if err != nil {
		log.Warn("failed to read records", zap.String("form", before.Form), zap.Error(err))
		metrics.StoreErrors.WithLabelValues("read_all").Inc()
		metrics.Turns.WithLabelValues("store_read_error").Inc()
		return s.ctrl.ReadFailed(before).Messages
	}

	res, err := s.ctrl.Step(before, text, snapshot)
	if err != nil {
		log.Error("turn failed", zap.Error(err))
		metrics.Turns.WithLabelValues("error").Inc()
		return nil
	}
	if res.Answer != "" {
		metrics.Confirmations.WithLabelValues(res.Answer).Inc()
	}

	if len(res.Ops) > 0 {
		return s.persist(ctx, log, before, res)
	}

	switch {
	case res.Destroy:
		s.sessions.Remove(senderID)
		metrics.Turns.WithLabelValues("cleared").Inc()
		log.Info("draft ended", zap.String("state", string(res.Session.State)))
	case len(res.Messages) == 0 && created:
		// Nothing recognised from a sender with no draft; keep no state.
		metrics.Turns.WithLabelValues("ignored").Inc()
	default:
		if len(res.Messages) == 0 {
			metrics.Turns.WithLabelValues("ignored").Inc()
		} else {
			metrics.Turns.WithLabelValues("ok").Inc()
		}
		res.Session.UpdatedAt = s.now()
		s.sessions.Put(res.Session)
	}
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	log.Debug("turn handled", zap.String("state", string(res.Session.State)), zap.Int("messages", len(res.Messages)))
	return res.Messages
}

func (s *Service) persist(ctx context.Context, log *zap.Logger, before *ledger.Session, res Result) []string {
	msgs := res.Messages
	for _, op := range res.Ops {
		writeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		saved, err := s.store.Upsert(writeCtx, op.Record, op.ExpectedVersion)
		cancel()

		switch {
		case err == nil:
			log.Info("record saved",
				zap.String("form", saved.Form),
				zap.String("key", saved.Key),
				zap.String("status", saved.Status),
				zap.Int64("version", saved.Version))
			metrics.Submissions.WithLabelValues(saved.Form, saved.Status).Inc()
			msgs = append(msgs, s.ctrl.Persisted(saved).Messages...)

		case errors.Is(err, ledger.ErrVersionConflict):
			log.Info("record changed since read", zap.String("key", op.Record.Key), zap.Int64("expected", op.ExpectedVersion))
			metrics.Turns.WithLabelValues("stale").Inc()
			stale, serr := s.ctrl.StaleWrite(before)
			if serr != nil {
				log.Error("failed to detour after stale write", zap.Error(serr))
				return append(msgs, s.ctrl.WriteFailed(before).Messages...)
			}
			stale.Session.UpdatedAt = s.now()
			s.sessions.Put(stale.Session)
			return append(msgs, stale.Messages...)

		default:
			log.Warn("failed to save record", zap.String("key", op.Record.Key), zap.Error(err))
			metrics.StoreErrors.WithLabelValues("upsert").Inc()
			metrics.Turns.WithLabelValues("store_write_error").Inc()
			return append(msgs, s.ctrl.WriteFailed(before).Messages...)
		}
	}

	s.sessions.Remove(before.SenderID)
	metrics.Turns.WithLabelValues("submitted").Inc()
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return msgs
}

// Session returns a copy of the sender's draft, or nil.
func (s *Service) Session(senderID string) *ledger.Session {
	unlock := s.sessions.Lock(senderID)
	defer unlock()
	if sess := s.sessions.Get(senderID); sess != nil {
		return sess.Clone()
	}
	return nil
}

// Summary renders the sender's draft, or "" when there is none.
func (s *Service) Summary(senderID string) string {
	sess := s.Session(senderID)
	if sess == nil {
		return ""
	}
	form, ok := s.ctrl.Form(sess.Form)
	if !ok {
		return ""
	}
	return Summary(form, sess)
}

// Clear drops the sender's draft. It reports whether there was one.
func (s *Service) Clear(senderID string) bool {
	unlock := s.sessions.Lock(senderID)
	defer unlock()
	had := s.sessions.Get(senderID) != nil
	s.sessions.Remove(senderID)
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return had
}

// IdleDrafts lists drafts untouched since cutoff that have not been reminded.
func (s *Service) IdleDrafts(cutoff time.Time) []*ledger.Session {
	return s.sessions.Idle(cutoff)
}

func (s *Service) MarkReminded(sess *ledger.Session, at time.Time) {
	s.sessions.MarkReminded(sess.SenderID, sess.UpdatedAt, at)
}
