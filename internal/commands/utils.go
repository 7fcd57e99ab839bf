package commands

import (
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// maxMessageLen is Discord's message size limit.
const maxMessageLen = 2000

// SenderID is the draft owner for a Discord user, shared by DMs and slash
// commands.
func SenderID(userID string) string {
	return "discord:" + userID
}

// UserIDFromSender reverses SenderID. ok is false for non-Discord senders.
func UserIDFromSender(senderID string) (string, bool) {
	return strings.CutPrefix(senderID, "discord:")
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// JoinMessages packs replies into as few Discord messages as possible.
func JoinMessages(msgs []string) []string {
	var out []string
	var buffer strings.Builder
	for _, m := range msgs {
		for len(m) > maxMessageLen {
			if buffer.Len() > 0 {
				out = append(out, buffer.String())
				buffer.Reset()
			}
			var head string
			head, m = cut(m)
			out = append(out, head)
		}
		if buffer.Len() > 0 && buffer.Len()+len(m)+1 > maxMessageLen {
			out = append(out, buffer.String())
			buffer.Reset()
		}
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(m)
	}
	if buffer.Len() > 0 {
		out = append(out, buffer.String())
	}
	return out
}

// cut splits m at the last rune boundary within the message limit.
func cut(m string) (head, tail string) {
	n := maxMessageLen
	for n > 0 && !utf8.RuneStart(m[n]) {
		n--
	}
	return m[:n], m[n:]
}
