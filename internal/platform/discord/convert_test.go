package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

func TestToMessageSend_EmbedAndButtons(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	send := toMessageSend(platform.Message{
		Embed: &platform.Embed{Title: "Ticket #0007", Description: "hi", Footer: "Ticket created by bob", Color: 0x3498db, Timestamp: true},
		Buttons: []platform.Button{
			{CustomID: platform.ButtonCloseTicket, Label: "Close Ticket", Emoji: "🔒", Style: platform.ButtonDanger},
		},
	}, now)

	if len(send.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(send.Embeds))
	}
	e := send.Embeds[0]
	if e.Title != "Ticket #0007" || e.Color != 0x3498db || e.Footer == nil || e.Footer.Text != "Ticket created by bob" {
		t.Errorf("embed = %+v", e)
	}
	if e.Timestamp != "2024-05-01T10:00:00Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}

	if len(send.Components) != 1 {
		t.Fatalf("components = %d, want 1 row", len(send.Components))
	}
	row, ok := send.Components[0].(discordgo.ActionsRow)
	if !ok || len(row.Components) != 1 {
		t.Fatalf("row = %#v", send.Components[0])
	}
	btn, ok := row.Components[0].(discordgo.Button)
	if !ok {
		t.Fatalf("component is %T", row.Components[0])
	}
	if btn.CustomID != "close_ticket" || btn.Style != discordgo.DangerButton || btn.Emoji == nil || btn.Emoji.Name != "🔒" {
		t.Errorf("button = %+v", btn)
	}
}

func TestToMessageSend_PlainText(t *testing.T) {
	send := toMessageSend(platform.Message{Content: "A new ticket has been created."}, time.Now())
	if send.Content != "A new ticket has been created." || len(send.Embeds) != 0 || len(send.Components) != 0 {
		t.Fatalf("send = %+v", send)
	}
}

func TestToTicketMessages_PreservesOrder(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msgs := []*discordgo.Message{
		{ID: "3", Content: "C", Timestamp: ts.Add(2 * time.Minute), Author: &discordgo.User{Username: "carol", Discriminator: "0"}},
		{ID: "2", Content: "B", Timestamp: ts.Add(time.Minute), Author: &discordgo.User{Username: "bob", Discriminator: "0"}},
		nil,
		{ID: "1", Content: "A", Timestamp: ts},
	}
	got := toTicketMessages(msgs)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "3" || got[0].Author != "carol" || got[2].Author != "unknown" {
		t.Errorf("messages = %+v", got)
	}
}

func TestInteractionActor(t *testing.T) {
	i := &discordgo.Interaction{Member: &discordgo.Member{
		User:        &discordgo.User{ID: "u1", Username: "alice", Discriminator: "0"},
		Roles:       []string{"r1"},
		Permissions: discordgo.PermissionAdministrator,
	}}
	actor := interactionActor(i)
	if actor.ID != "u1" || actor.DisplayName != "alice" || !actor.IsAdmin || !actor.HasRole("r1") {
		t.Errorf("actor = %+v", actor)
	}

	dm := interactionActor(&discordgo.Interaction{User: &discordgo.User{ID: "u2", Username: "bob", Discriminator: "0"}})
	if dm.ID != "u2" || dm.IsAdmin {
		t.Errorf("dm actor = %+v", dm)
	}
}

func TestMentions(t *testing.T) {
	s := &Session{}
	if got := s.MentionUser("1"); got != "<@1>" {
		t.Errorf("MentionUser = %q", got)
	}
	if got := s.MentionRole("2"); got != "<@&2>" {
		t.Errorf("MentionRole = %q", got)
	}
	if got := s.ChannelRef("3"); got != "<#3>" {
		t.Errorf("ChannelRef = %q", got)
	}
}
