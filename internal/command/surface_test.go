package command

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/orderbot/internal/config"
	"github.com/matheus3301/orderbot/internal/status"
	"go.uber.org/zap"
)

func newSurface(t *testing.T) (*Surface, *status.Machine, config.Service) {
	t.Helper()
	svc, err := config.NewFileService(filepath.Join(t.TempDir(), "settings.toml"),
		config.Config{Keyword: "order", Admins: []string{"alice"}})
	if err != nil {
		t.Fatal(err)
	}
	m := status.NewMachine(nil)
	return NewSurface(m, svc, zap.NewNop()), m, svc
}

func TestStartStopByAdmin(t *testing.T) {
	s, m, _ := newSurface(t)
	ctx := context.Background()

	reply, ok := s.Execute(ctx, Invocation{Verb: VerbStart, SenderUsername: "alice"})
	if !ok || reply != ReplyStarted {
		t.Errorf("start reply = %q, %v", reply, ok)
	}
	if !m.Active() {
		t.Error("bot not active after /start")
	}

	// Starting twice is harmless.
	if reply, _ := s.Execute(ctx, Invocation{Verb: VerbStart, SenderUsername: "alice"}); reply != ReplyStarted {
		t.Errorf("second start reply = %q", reply)
	}

	reply, _ = s.Execute(ctx, Invocation{Verb: VerbStop, SenderUsername: "alice"})
	if reply != ReplyStopped {
		t.Errorf("stop reply = %q", reply)
	}
	if m.Active() {
		t.Error("bot still active after /stop")
	}
}

func TestStartStopDeniedForOthers(t *testing.T) {
	s, m, _ := newSurface(t)
	ctx := context.Background()

	for _, verb := range []string{VerbStart, VerbStop} {
		reply, _ := s.Execute(ctx, Invocation{Verb: verb, SenderUsername: "mallory"})
		if reply != ReplyUnauthorized {
			t.Errorf("/%s reply = %q, want denial", verb, reply)
		}
		if m.Current() != status.Inactive {
			t.Errorf("/%s by non-admin changed state to %s", verb, m.Current())
		}
	}

	// Users without a username never match the allow-list.
	if reply, _ := s.Execute(ctx, Invocation{Verb: VerbStart}); reply != ReplyUnauthorized {
		t.Errorf("anonymous /start reply = %q", reply)
	}
}

func TestStopDeniedLeavesActiveBotRunning(t *testing.T) {
	s, m, _ := newSurface(t)
	ctx := context.Background()

	s.Execute(ctx, Invocation{Verb: VerbStart, SenderUsername: "alice"})
	s.Execute(ctx, Invocation{Verb: VerbStop, SenderUsername: "mallory"})
	if !m.Active() {
		t.Error("non-admin /stop deactivated the bot")
	}
}

func TestKeywordQueryNeedsNoAuth(t *testing.T) {
	s, _, _ := newSurface(t)

	reply, ok := s.Execute(context.Background(), Invocation{Verb: VerbKeyword, SenderUsername: "mallory"})
	if !ok {
		t.Fatal("keyword not handled")
	}
	want := `The current keyword is "order". Use /keyword new_keyword to update keyword.`
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
}

func TestKeywordUpdate(t *testing.T) {
	s, _, svc := newSurface(t)
	ctx := context.Background()

	reply, _ := s.Execute(ctx, Invocation{Verb: VerbKeyword, Args: "  preorder ", SenderUsername: "alice"})
	if reply != `Keyword "preorder" updated successfully.` {
		t.Errorf("reply = %q", reply)
	}
	if kw, _ := svc.Keyword(ctx); kw != "preorder" {
		t.Errorf("keyword = %q, want preorder", kw)
	}

	reply, _ = s.Execute(ctx, Invocation{Verb: VerbKeyword, Args: "steal", SenderUsername: "mallory"})
	if reply != "You are not authorized to use this command." {
		t.Errorf("non-admin reply = %q", reply)
	}
	if kw, _ := svc.Keyword(ctx); kw != "preorder" {
		t.Errorf("keyword changed by non-admin to %q", kw)
	}
}

type brokenSettings struct{ config.Service }

func (brokenSettings) Admins(context.Context) ([]string, error) {
	return nil, errors.New("settings unreadable")
}

func TestStartWithUnreadableSettings(t *testing.T) {
	m := status.NewMachine(nil)
	s := NewSurface(m, brokenSettings{}, zap.NewNop())

	reply, _ := s.Execute(context.Background(), Invocation{Verb: VerbStart, SenderUsername: "alice"})
	if reply != ReplyStartFailed {
		t.Errorf("reply = %q, want %q", reply, ReplyStartFailed)
	}
	if m.Active() {
		t.Error("bot activated despite settings failure")
	}
}

func TestListCommandsAndUnknownVerb(t *testing.T) {
	s, _, _ := newSurface(t)
	ctx := context.Background()

	reply, ok := s.Execute(ctx, Invocation{Verb: VerbListCommands})
	if !ok || !strings.HasPrefix(reply, "Available commands:") || !strings.Contains(reply, "/keyword [new_keyword]") {
		t.Errorf("listcommands reply = %q", reply)
	}

	if _, ok := s.Execute(ctx, Invocation{Verb: "help"}); ok {
		t.Error("unknown verb reported as handled")
	}
}
