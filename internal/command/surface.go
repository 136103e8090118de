package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/orderbot/internal/config"
	"github.com/matheus3301/orderbot/internal/status"
	"go.uber.org/zap"
)

// Command verbs understood by the bot.
const (
	VerbStart        = "start"
	VerbStop         = "stop"
	VerbKeyword      = "keyword"
	VerbListCommands = "listcommands"
)

// Replies sent by the command surface. A denied /keyword gets the shorter
// ReplyKeywordUnauthorized.
const (
	ReplyUnauthorized        = "Sorry! You are not authorized to use this command."
	ReplyKeywordUnauthorized = "You are not authorized to use this command."
	ReplyStarted             = "This little helper is ready to work!"
	ReplyStopped             = "This little helper is going to bed!"
	ReplyStartFailed         = "An error occurred while starting the bot. Please try again later."
	ReplyStopFailed          = "An error occurred while stopping the bot. Please try again later."
	ReplyKeywordError        = "An error occurred while updating keyword. Please try again later."
)

// Descriptor names a verb and its help text.
type Descriptor struct {
	Verb        string
	Usage       string
	Description string
}

// Descriptors lists every command in help order.
var Descriptors = []Descriptor{
	{VerbStart, "/start", "Start the bot and handle incoming messages."},
	{VerbStop, "/stop", "Stop the bot from handling incoming messages."},
	{VerbKeyword, "/keyword [new_keyword]", "Update bot's keyword."},
	{VerbListCommands, "/listcommands", "List all available commands."},
}

// Invocation is a command sent by a chat user.
type Invocation struct {
	Verb           string
	Args           string
	SenderUsername string
	ChatID         int64
	MessageID      int64
}

// Surface executes operator commands against the activity machine and the
// settings service.
type Surface struct {
	machine  *status.Machine
	settings config.Service
	logger   *zap.Logger
}

// NewSurface creates a command surface.
func NewSurface(machine *status.Machine, settings config.Service, logger *zap.Logger) *Surface {
	return &Surface{machine: machine, settings: settings, logger: logger}
}

// Execute runs inv and returns the reply text. ok is false for verbs the
// surface does not know; those get no reply.
func (s *Surface) Execute(ctx context.Context, inv Invocation) (reply string, ok bool) {
	log := s.logger.With(zap.String("verb", inv.Verb), zap.String("sender", inv.SenderUsername))

	switch inv.Verb {
	case VerbStart:
		return s.transition(ctx, inv, log, status.Active, ReplyStarted, ReplyStartFailed), true
	case VerbStop:
		return s.transition(ctx, inv, log, status.Inactive, ReplyStopped, ReplyStopFailed), true
	case VerbKeyword:
		return s.keyword(ctx, inv, log), true
	case VerbListCommands:
		return Help(), true
	default:
		return "", false
	}
}

func (s *Surface) transition(ctx context.Context, inv Invocation, log *zap.Logger, to status.State, okReply, failReply string) string {
	allowed, err := config.IsAdmin(ctx, s.settings, inv.SenderUsername)
	if err != nil {
		log.Error("read admin list", zap.Error(err))
		return failReply
	}
	if !allowed {
		log.Warn("unauthorized command")
		return ReplyUnauthorized
	}
	if _, err := s.machine.Transition(to, inv.SenderUsername); err != nil {
		log.Error("change bot state", zap.Error(err))
		return failReply
	}
	log.Info("bot state set", zap.String("state", string(s.machine.Current())))
	return okReply
}

func (s *Surface) keyword(ctx context.Context, inv Invocation, log *zap.Logger) string {
	value := strings.TrimSpace(inv.Args)
	if value == "" {
		current, err := s.settings.Keyword(ctx)
		if err != nil {
			log.Error("read keyword", zap.Error(err))
			return ReplyKeywordError
		}
		log.Info("reporting current keyword")
		return fmt.Sprintf("The current keyword is \"%s\". Use /keyword new_keyword to update keyword.", current)
	}

	allowed, err := config.IsAdmin(ctx, s.settings, inv.SenderUsername)
	if err != nil {
		log.Error("read admin list", zap.Error(err))
		return ReplyKeywordError
	}
	if !allowed {
		log.Warn("unauthorized command")
		return ReplyKeywordUnauthorized
	}
	if err := s.settings.SetKeyword(ctx, value); err != nil {
		log.Error("update keyword", zap.Error(err))
		return ReplyKeywordError
	}
	log.Info("keyword updated", zap.String("keyword", value))
	return fmt.Sprintf("Keyword \"%s\" updated successfully.", value)
}

// Help renders the command list.
func Help() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, d := range Descriptors {
		fmt.Fprintf(&b, "\n%s - %s", d.Usage, d.Description)
	}
	return b.String()
}
