// Package platform abstracts the chat service the bot runs on.
package platform

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Button identifiers shared by every adapter.
const (
	ButtonCreateTicket = "create_ticket"
	ButtonCloseTicket  = "close_ticket"
)

// ErrNotFound is returned when a referenced channel, role or message does
// not exist on the platform.
var ErrNotFound = errors.New("platform: not found")

// ButtonStyle selects how a button is rendered.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonDanger
)

// Button is an interactive control attached to a message.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Style    ButtonStyle
}

// Embed is a rich message block. Color is 0xRRGGBB.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
	Timestamp   bool
}

// Message is an outbound message. Content, Embed or both may be set.
type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// ChannelSpec describes a ticket channel to provision.
type ChannelSpec struct {
	GuildID  string
	Name     string
	ParentID string
}

// Channel is a provisioned channel.
type Channel struct {
	ID       string
	Name     string
	GuildID  string
	ParentID string
}

// Client is the outbound surface used by the ticket manager.
type Client interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// ChannelExists reports false with a nil error only when the platform
	// confirms the channel is gone. Lookup failures return the error.
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	CategoryExists(ctx context.Context, guildID, categoryID string) bool
	RoleExists(ctx context.Context, guildID, roleID string) bool

	// DenyEveryone hides the channel from the general membership.
	DenyEveryone(ctx context.Context, guildID, channelID string) error
	// GrantMember lets a user view, send and read history.
	GrantMember(ctx context.Context, channelID, userID string) error
	// GrantRole grants the same access to every holder of a role.
	GrantRole(ctx context.Context, guildID, channelID, roleID string) error

	SendMessage(ctx context.Context, channelID string, msg Message) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// FetchMessages returns up to limit recent messages, newest first.
	FetchMessages(ctx context.Context, channelID string, limit int) ([]domain.TicketMessage, error)

	MentionUser(userID string) string
	MentionRole(roleID string) string
	ChannelRef(channelID string) string
}

// MessageEvent is an inbound plain chat message.
type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	Content   string
	Author    domain.Actor
}

// Responder answers a button interaction.
type Responder interface {
	// Defer acknowledges the interaction; later Reply calls edit the
	// deferred response. Ephemeral replies are visible to the actor only.
	Defer(ctx context.Context, ephemeral bool) error
	Reply(ctx context.Context, content string, ephemeral bool) error
}

// ButtonEvent is an inbound button press.
type ButtonEvent struct {
	GuildID   string
	ChannelID string
	CustomID  string
	Actor     domain.Actor
	Responder Responder
}

// Handler receives inbound events. Adapters invoke it from their own
// goroutines, so implementations must be safe for concurrent use.
type Handler interface {
	HandleMessage(ctx context.Context, ev MessageEvent)
	HandleButton(ctx context.Context, ev ButtonEvent)
}

// Session is a connected platform client.
type Session interface {
	Client
	Name() string
	Open(ctx context.Context, handler Handler) error
	Connected() bool
	Close() error
}
