package bot

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/tripledger/internal/commands"
	"github.com/susu3304/tripledger/internal/ledger"
	"github.com/susu3304/tripledger/internal/metrics"
	"go.uber.org/zap"
)

// reminderWorker periodically DMs senders whose draft has gone idle.
type reminderWorker struct {
	drafts   idleDrafts
	session  reminderSession
	log      *zap.Logger
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
	// retryAt delays senders whose last reminder could not be sent.
	retryAt map[string]time.Time

	stopChan chan struct{}
	done     chan struct{}
	ticker   *time.Ticker
}

// Minimal session interface for opening DM channels and sending messages.
type reminderSession interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type idleDrafts interface {
	IdleDrafts(cutoff time.Time) []*ledger.Session
	MarkReminded(sess *ledger.Session, at time.Time)
	Summary(senderID string) string
}

func newReminderWorker(session reminderSession, drafts idleDrafts, idle time.Duration, log *zap.Logger) *reminderWorker {
	return &reminderWorker{
		drafts:   drafts,
		session:  session,
		log:      log,
		idle:     idle,
		interval: time.Minute,
		now:      time.Now,
		retryAt:  make(map[string]time.Time),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *reminderWorker) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *reminderWorker) stop() {
	if w == nil || w.ticker == nil {
		return
	}
	close(w.stopChan)
	w.ticker.Stop()
	<-w.done
}

func (w *reminderWorker) loop() {
	defer close(w.done)
	ctx := context.Background()
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

func (w *reminderWorker) tick(ctx context.Context) {
	now := w.now()
	for _, sess := range w.drafts.IdleDrafts(now.Add(-w.idle)) {
		userID, ok := commands.UserIDFromSender(sess.SenderID)
		if !ok {
			continue
		}
		if at, waiting := w.retryAt[sess.SenderID]; waiting && now.Before(at) {
			continue
		}

		summary := w.drafts.Summary(sess.SenderID)
		if summary == "" {
			continue
		}
		msg := "Your draft has not been submitted yet.\n\n" + summary +
			"\n\nSend the missing fields, submit when ready, or clear to discard it."

		if err := w.remind(ctx, userID, msg); err != nil {
			w.log.Warn("reminder: failed to send", zap.String("sender", sess.SenderID), zap.Error(err))
			metrics.Reminders.WithLabelValues("failed").Inc()
			// Back off so we don't hammer Discord every minute.
			w.retryAt[sess.SenderID] = now.Add(2 * time.Minute)
			continue
		}
		delete(w.retryAt, sess.SenderID)
		w.drafts.MarkReminded(sess, now)
		metrics.Reminders.WithLabelValues("sent").Inc()
	}
}

func (w *reminderWorker) remind(ctx context.Context, userID, content string) error {
	ch, err := w.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	return w.sendWithRetry(ctx, ch.ID, content)
}

func (w *reminderWorker) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}
