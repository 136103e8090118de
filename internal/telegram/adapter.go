package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/orderbot/internal/command"
	"go.uber.org/zap"
)

// BotAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UpdateHandler processes one update from the long-poll loop.
type UpdateHandler func(ctx context.Context, upd tgbotapi.Update)

// Adapter owns the Telegram Bot API connection.
type Adapter struct {
	bot    BotAPI
	name   string
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter authenticates token against the Bot API.
func NewAdapter(token string, logger *zap.Logger) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("bot", bot.Self.UserName))
	return NewAdapterWithBot(bot, bot.Self.UserName, logger), nil
}

// NewAdapterWithBot wraps an existing BotAPI implementation.
func NewAdapterWithBot(bot BotAPI, name string, logger *zap.Logger) *Adapter {
	return &Adapter{bot: bot, name: name, logger: logger}
}

// Name returns the bot's username.
func (a *Adapter) Name() string {
	return a.name
}

// RegisterCommands publishes the command list shown in Telegram clients.
func (a *Adapter) RegisterCommands(descriptors []command.Descriptor) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(descriptors))
	for _, d := range descriptors {
		cmds = append(cmds, tgbotapi.BotCommand{Command: d.Verb, Description: d.Description})
	}
	if _, err := a.bot.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}

// Start long-polls for updates and hands each one to handle, in order, on a
// single goroutine.
func (a *Adapter) Start(ctx context.Context, handle UpdateHandler) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	cfg.AllowedUpdates = []string{"message"}
	updates := a.bot.GetUpdatesChan(cfg)

	go func() {
		defer close(a.done)
		for {
			select {
			case upd, ok := <-updates:
				if !ok {
					return
				}
				handle(ctx, upd)
			case <-ctx.Done():
				return
			}
		}
	}()
	a.logger.Info("telegram polling started")
}

// Stop ends polling and waits for the in-flight update to finish.
func (a *Adapter) Stop() {
	if a.cancel == nil {
		return
	}
	a.bot.StopReceivingUpdates()
	a.cancel()
	<-a.done
	a.logger.Info("telegram polling stopped")
}

// Reply sends text as a reply to message replyTo in chatID.
func (a *Adapter) Reply(ctx context.Context, chatID, replyTo int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = int(replyTo)
	msg.AllowSendingWithoutReply = true
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
