package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/orderbot/internal/command"
	"github.com/matheus3301/orderbot/internal/intake"
	"go.uber.org/zap"
)

// MessageHandler consumes non-command chat messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg *intake.Message) (intake.Outcome, error)
}

// CommandExecutor runs bot commands.
type CommandExecutor interface {
	Execute(ctx context.Context, inv command.Invocation) (string, bool)
}

// Replier sends a reply to a chat message.
type Replier interface {
	Reply(ctx context.Context, chatID, replyTo int64, text string) error
}

// Router dispatches updates: known commands go to the command surface,
// everything else to the order intake pipeline.
type Router struct {
	messages MessageHandler
	commands CommandExecutor
	replier  Replier
	logger   *zap.Logger
}

// NewRouter creates a router.
func NewRouter(messages MessageHandler, commands CommandExecutor, replier Replier, logger *zap.Logger) *Router {
	return &Router{messages: messages, commands: commands, replier: replier, logger: logger}
}

// Handle processes one update. Failures are logged; nothing is returned to
// the polling loop.
func (r *Router) Handle(ctx context.Context, upd tgbotapi.Update) {
	in, ok := Parse(upd)
	if !ok {
		return
	}

	if in.IsCommand() {
		reply, handled := r.commands.Execute(ctx, in.Invocation())
		if handled {
			if err := r.replier.Reply(ctx, in.Message.ChatID, in.Message.MessageID, reply); err != nil {
				r.logger.Error("command reply failed", zap.String("verb", in.Command), zap.Error(err))
			}
			return
		}
	}

	// Errors are logged by the pipeline with its trace id.
	_, _ = r.messages.Handle(ctx, &in.Message)
}
