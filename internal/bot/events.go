package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/tripledger/internal/commands"
	"go.uber.org/zap"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("connected", zap.String("user", event.User.Username))

	// Global commands so they also work in DMs.
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commands.GetCommands()); err != nil {
		b.log.Warn("failed to register global commands", zap.Error(err))
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	b.log.Info("guild available", zap.String("guild", event.Name), zap.String("guild_id", event.ID))
}

// channelSender is the part of a discordgo session used to reply.
type channelSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author == nil || m.Author.Bot {
		return
	}
	// Drafts are filled in direct messages only.
	if m.GuildID != "" {
		return
	}
	b.handleDirectMessage(context.Background(), s, m.ChannelID, m.Author.ID, m.Content)
}

func (b *Bot) handleDirectMessage(ctx context.Context, s channelSender, channelID, userID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	msgs := b.svc.HandleTurn(ctx, commands.SenderID(userID), content)
	for _, chunk := range commands.JoinMessages(msgs) {
		if _, err := s.ChannelMessageSend(channelID, chunk); err != nil {
			b.log.Warn("failed to send reply", zap.String("channel", channelID), zap.Error(err))
			return
		}
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if !b.commands.Handle(s, i) {
		b.log.Debug("unknown command", zap.String("command", i.ApplicationCommandData().Name))
	}
}
