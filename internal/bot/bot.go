package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/tripledger/internal/commands"
	"github.com/susu3304/tripledger/internal/lifecycle"
	"go.uber.org/zap"
)

type Bot struct {
	session  *discordgo.Session
	svc      *lifecycle.Service
	commands *commands.Handler
	reminder *reminderWorker
	log      *zap.Logger
}

// New prepares the Discord session. reminderIdle of zero disables idle draft
// reminders.
func New(token string, svc *lifecycle.Service, reminderIdle time.Duration, log *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:  session,
		svc:      svc,
		commands: commands.NewHandler(svc, log),
		log:      log,
	}
	if reminderIdle > 0 {
		bot.reminder = newReminderWorker(session, svc, reminderIdle, log)
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.reminder.start()
	b.log.Info("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.reminder.stop()
	return b.session.Close()
}
