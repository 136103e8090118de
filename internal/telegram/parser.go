package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/orderbot/internal/command"
	"github.com/matheus3301/orderbot/internal/intake"
)

// Inbound is a normalized text message from an update.
type Inbound struct {
	Message intake.Message
	Command string
	Args    string
}

// IsCommand reports whether the message is a bot command.
func (in *Inbound) IsCommand() bool {
	return in.Command != ""
}

// Invocation converts a command message for the command surface.
func (in *Inbound) Invocation() command.Invocation {
	return command.Invocation{
		Verb:           in.Command,
		Args:           in.Args,
		SenderUsername: in.Message.SenderUsername,
		ChatID:         in.Message.ChatID,
		MessageID:      in.Message.MessageID,
	}
}

// Parse extracts a text message from upd. Updates without message text
// (joins, photos, edits, channel posts) yield ok=false.
func Parse(upd tgbotapi.Update) (in *Inbound, ok bool) {
	m := upd.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return nil, false
	}

	in = &Inbound{
		Message: intake.Message{
			Text:      m.Text,
			ChatID:    m.Chat.ID,
			ChatTitle: m.Chat.Title,
			MessageID: int64(m.MessageID),
		},
	}
	if m.From != nil {
		in.Message.SenderID = m.From.ID
		in.Message.SenderUsername = m.From.UserName
		in.Message.SenderFirstName = m.From.FirstName
	}
	if m.IsCommand() {
		in.Command = m.Command()
		in.Args = m.CommandArguments()
	}
	return in, true
}
