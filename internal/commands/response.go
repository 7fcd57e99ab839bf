package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Responder is the part of a discordgo session the handlers use.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Drafts is the turn service as seen from slash commands.
type Drafts interface {
	HandleTurn(ctx context.Context, senderID, text string) []string
	Summary(senderID string) string
	Clear(senderID string) bool
}

type Handler struct {
	drafts Drafts
	log    *zap.Logger
}

func NewHandler(drafts Drafts, log *zap.Logger) *Handler {
	return &Handler{drafts: drafts, log: log}
}

// Handle dispatches an application command. It reports false for commands it
// does not own.
func (h *Handler) Handle(s Responder, i *discordgo.InteractionCreate) bool {
	data := i.ApplicationCommandData()
	userID := interactionUserID(i)
	if userID == "" {
		return false
	}
	sender := SenderID(userID)

	switch data.Name {
	case "draft":
		h.handleDraft(s, i, sender)
	case "entry":
		var text string
		for _, opt := range data.Options {
			if opt.Name == "text" {
				text = opt.StringValue()
			}
		}
		h.handleTurn(s, i, sender, text)
	case "submit":
		h.handleTurn(s, i, sender, "submit")
	case "clear":
		h.handleClear(s, i, sender)
	default:
		return false
	}
	return true
}

func (h *Handler) handleDraft(s Responder, i *discordgo.InteractionCreate, sender string) {
	summary := h.drafts.Summary(sender)
	if summary == "" {
		summary = "You have no draft. Send a field such as \"vehicle MH12AB1234\" to start one."
	}
	h.respondText(s, i, summary)
}

func (h *Handler) handleTurn(s Responder, i *discordgo.InteractionCreate, sender, text string) {
	msgs := h.drafts.HandleTurn(context.Background(), sender, text)
	if len(msgs) == 0 {
		h.respondText(s, i, "Nothing recognised in that message.")
		return
	}
	h.respondText(s, i, msgs...)
}

func (h *Handler) handleClear(s Responder, i *discordgo.InteractionCreate, sender string) {
	if h.drafts.Clear(sender) {
		h.respondText(s, i, "Draft cleared.")
		return
	}
	h.respondText(s, i, "You have no draft.")
}

// respondText answers ephemerally. Replies past one Discord message go out
// as follow-ups.
func (h *Handler) respondText(s Responder, i *discordgo.InteractionCreate, msgs ...string) {
	chunks := JoinMessages(msgs)
	if len(chunks) == 0 {
		return
	}
	name := i.ApplicationCommandData().Name
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: chunks[0],
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.log.Warn("failed to respond to interaction", zap.String("command", name), zap.Error(err))
		return
	}
	for _, chunk := range chunks[1:] {
		_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Content: chunk,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			h.log.Warn("failed to send follow-up", zap.String("command", name), zap.Error(err))
			return
		}
	}
}
