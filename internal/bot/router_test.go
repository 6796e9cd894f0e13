package bot

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

func newRouter(t *testing.T) (*Router, *platformtest.Fake, *service.TicketService) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	fake := platformtest.New()
	fake.AddChannel("general")
	fake.AddRole("support")
	counter := persistence.NewFileCounterStore(filepath.Join(t.TempDir(), "counter.json"), logger)
	svc := service.NewTicketService(service.TicketDependencies{
		Registry:  repository.NewTicketRepository(),
		Allocator: service.NewAllocator(context.Background(), counter, logger),
		Platform:  fake,
		Logger:    logger,
		Settings:  service.TicketSettings{SupportRoleID: "support"},
	})
	return NewRouter("!", svc, fake, logger), fake, svc
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{"!close", "close", []string{}, true},
		{"!  CLOSE   now  please", "close", []string{"now", "please"}, true},
		{"!Setup-Tickets", "setup-tickets", []string{}, true},
		{"close", "", nil, false},
		{"!", "", nil, false},
		{"!   ", "", nil, false},
	}
	for _, tc := range cases {
		name, args, ok := ParseCommand("!", tc.content)
		if name != tc.name || ok != tc.ok {
			t.Errorf("ParseCommand(%q) = %q, %v; want %q, %v", tc.content, name, ok, tc.name, tc.ok)
		}
		if ok && !reflect.DeepEqual(args, tc.args) {
			t.Errorf("ParseCommand(%q) args = %#v, want %#v", tc.content, args, tc.args)
		}
	}
}

func TestSetupTickets_AdminOnly(t *testing.T) {
	r, fake, _ := newRouter(t)
	ctx := context.Background()

	r.HandleMessage(ctx, platform.MessageEvent{ChannelID: "general", MessageID: "m1", Content: "!setup-tickets",
		Author: domain.Actor{ID: "u1"}})
	if len(fake.Sent()) != 0 {
		t.Fatal("non-admins must be ignored silently")
	}

	r.HandleMessage(ctx, platform.MessageEvent{ChannelID: "general", MessageID: "m2", Content: "!SETUP-TICKETS",
		Author: domain.Actor{ID: "admin", IsAdmin: true}})
	sent := fake.SentTo("general")
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	panel := sent[0]
	if panel.Embed == nil || panel.Embed.Title != "Support Tickets" {
		t.Fatalf("panel embed = %+v", panel.Embed)
	}
	if len(panel.Buttons) != 1 || panel.Buttons[0].CustomID != platform.ButtonCreateTicket {
		t.Fatalf("panel buttons = %+v", panel.Buttons)
	}
	if got := fake.DeletedMessages(); !reflect.DeepEqual(got, []string{"m2"}) {
		t.Fatalf("deleted = %v, want [m2]", got)
	}
}

func TestSetupTickets_FailureReply(t *testing.T) {
	r, fake, _ := newRouter(t)
	fake.FailEmbeds = true

	r.HandleMessage(context.Background(), platform.MessageEvent{ChannelID: "general", MessageID: "m1", Content: "!setup-tickets",
		Author: domain.Actor{ID: "admin", IsAdmin: true}})
	sent := fake.SentTo("general")
	if len(sent) != 1 || !strings.HasPrefix(sent[0].Content, "An error occurred while setting up the ticket system") {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestBotAuthorsIgnored(t *testing.T) {
	r, fake, _ := newRouter(t)
	r.HandleMessage(context.Background(), platform.MessageEvent{ChannelID: "general", Content: "!close",
		Author: domain.Actor{ID: "b", IsBot: true}})
	if len(fake.Sent()) != 0 {
		t.Fatal("bot messages must be ignored")
	}
}

func TestCloseCommand_OutsideTicket(t *testing.T) {
	r, fake, _ := newRouter(t)
	r.HandleMessage(context.Background(), platform.MessageEvent{ChannelID: "general", Content: "!close",
		Author: domain.Actor{ID: "u1"}})
	sent := fake.SentTo("general")
	if len(sent) != 1 || sent[0].Content != "This command can only be used in ticket channels." {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestButtons_CreateThenClose(t *testing.T) {
	r, _, svc := newRouter(t)
	ctx := context.Background()
	owner := domain.Actor{ID: "u1", DisplayName: "alice"}

	first := &platformtest.Responder{}
	r.HandleButton(ctx, platform.ButtonEvent{GuildID: "g", ChannelID: "general", CustomID: platform.ButtonCreateTicket, Actor: owner, Responder: first})
	if !first.Deferred {
		t.Fatal("create should defer the interaction")
	}
	if !strings.HasPrefix(first.LastReply(), "Your ticket has been created: <#") || !first.Ephemeral[0] {
		t.Fatalf("reply = %q", first.LastReply())
	}

	open := svc.OpenTickets()
	if len(open) != 1 {
		t.Fatalf("open tickets = %d, want 1", len(open))
	}
	ch := open[0].ChannelID

	second := &platformtest.Responder{}
	r.HandleButton(ctx, platform.ButtonEvent{GuildID: "g", ChannelID: "general", CustomID: platform.ButtonCreateTicket, Actor: owner, Responder: second})
	if want := "You already have an open ticket at <#" + ch + ">"; second.LastReply() != want {
		t.Fatalf("reply = %q, want %q", second.LastReply(), want)
	}

	denied := &platformtest.Responder{}
	r.HandleButton(ctx, platform.ButtonEvent{GuildID: "g", ChannelID: ch, CustomID: platform.ButtonCloseTicket,
		Actor: domain.Actor{ID: "u2"}, Responder: denied})
	if denied.LastReply() != "You do not have permission to close this ticket." {
		t.Fatalf("reply = %q", denied.LastReply())
	}

	closer := &platformtest.Responder{}
	r.HandleButton(ctx, platform.ButtonEvent{GuildID: "g", ChannelID: ch, CustomID: platform.ButtonCloseTicket, Actor: owner, Responder: closer})
	if !closer.Deferred || closer.LastReply() != closeStartedReply || !closer.Ephemeral[0] {
		t.Fatalf("close should defer then confirm privately: %+v", closer)
	}
	if len(svc.OpenTickets()) != 0 {
		t.Fatal("ticket should be closed")
	}
}

func TestCloseButton_NonTicketChannel(t *testing.T) {
	r, _, _ := newRouter(t)
	resp := &platformtest.Responder{}
	r.HandleButton(context.Background(), platform.ButtonEvent{ChannelID: "general", CustomID: platform.ButtonCloseTicket,
		Actor: domain.Actor{ID: "u1"}, Responder: resp})
	if !resp.Deferred {
		t.Fatal("close should defer before any lookup")
	}
	if resp.LastReply() != "This command can only be used in ticket channels." || !resp.Ephemeral[0] {
		t.Fatalf("reply = %q", resp.LastReply())
	}
}
