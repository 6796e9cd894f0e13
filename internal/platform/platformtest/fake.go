// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Sent is a message recorded by Fake.SendMessage.
type Sent struct {
	ChannelID string
	Message   platform.Message
}

// Grant records a permission overwrite applied to a channel.
type Grant struct {
	ChannelID string
	Kind      string // everyone, member or role
	TargetID  string
}

// Fake is a concurrency-safe in-memory chat platform.
type Fake struct {
	mu         sync.Mutex
	seq        int
	channels   map[string]platform.Channel
	categories map[string]bool
	roles      map[string]bool
	history    map[string][]domain.TicketMessage
	sent       []Sent
	grants     []Grant
	deletedMsg []string
	deletedCh  []string

	// Fail maps a method name to the error it returns.
	Fail map[string]error
	// FailEmbeds makes SendMessage reject messages carrying an embed.
	FailEmbeds bool
}

// New returns an empty platform.
func New() *Fake {
	return &Fake{
		channels:   make(map[string]platform.Channel),
		categories: make(map[string]bool),
		roles:      make(map[string]bool),
		history:    make(map[string][]domain.TicketMessage),
		Fail:       make(map[string]error),
	}
}

var _ platform.Client = (*Fake)(nil)

// AddChannel registers a pre-existing channel such as a log channel.
func (f *Fake) AddChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = platform.Channel{ID: id, Name: id}
}

// AddCategory registers a category id.
func (f *Fake) AddCategory(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[id] = true
}

// AddRole registers a role id.
func (f *Fake) AddRole(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = true
}

// SetHistory sets the messages FetchMessages returns, newest first.
func (f *Fake) SetHistory(channelID string, msgs []domain.TicketMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[channelID] = msgs
}

// RemoveChannel drops a channel as if it had been deleted out of band.
func (f *Fake) RemoveChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, id)
}

// SetFail configures a method failure; a nil err clears it.
func (f *Fake) SetFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Fail, method)
		return
	}
	f.Fail[method] = err
}

func (f *Fake) failure(method string) error {
	return f.Fail[method]
}

// Channels returns the live channels.
func (f *Fake) Channels() []platform.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out
}

// Sent returns a copy of every message sent.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// SentTo returns the messages sent to one channel.
func (f *Fake) SentTo(channelID string) []platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Message
	for _, s := range f.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Message)
		}
	}
	return out
}

// Grants returns the recorded permission overwrites.
func (f *Fake) Grants() []Grant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Grant(nil), f.grants...)
}

// DeletedChannels returns ids passed to DeleteChannel.
func (f *Fake) DeletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletedCh...)
}

// DeletedMessages returns ids passed to DeleteMessage.
func (f *Fake) DeletedMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletedMsg...)
}

func (f *Fake) CreateChannel(_ context.Context, spec platform.ChannelSpec) (platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateChannel"); err != nil {
		return platform.Channel{}, err
	}
	f.seq++
	ch := platform.Channel{
		ID:       fmt.Sprintf("ch-%d", f.seq),
		Name:     spec.Name,
		GuildID:  spec.GuildID,
		ParentID: spec.ParentID,
	}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("DeleteChannel"); err != nil {
		return err
	}
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	f.deletedCh = append(f.deletedCh, channelID)
	return nil
}

func (f *Fake) ChannelExists(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ChannelExists"); err != nil {
		return false, err
	}
	_, ok := f.channels[channelID]
	return ok, nil
}

func (f *Fake) CategoryExists(_ context.Context, _, categoryID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories[categoryID]
}

func (f *Fake) RoleExists(_ context.Context, _, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[roleID]
}

func (f *Fake) DenyEveryone(_ context.Context, _, channelID string) error {
	return f.grant("DenyEveryone", Grant{ChannelID: channelID, Kind: "everyone"})
}

func (f *Fake) GrantMember(_ context.Context, channelID, userID string) error {
	return f.grant("GrantMember", Grant{ChannelID: channelID, Kind: "member", TargetID: userID})
}

func (f *Fake) GrantRole(_ context.Context, _, channelID, roleID string) error {
	return f.grant("GrantRole", Grant{ChannelID: channelID, Kind: "role", TargetID: roleID})
}

func (f *Fake) grant(method string, g Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure(method); err != nil {
		return err
	}
	f.grants = append(f.grants, g)
	return nil
}

func (f *Fake) SendMessage(_ context.Context, channelID string, msg platform.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("SendMessage"); err != nil {
		return "", err
	}
	if f.FailEmbeds && msg.Embed != nil {
		return "", fmt.Errorf("embeds rejected")
	}
	if _, ok := f.channels[channelID]; !ok {
		return "", platform.ErrNotFound
	}
	f.sent = append(f.sent, Sent{ChannelID: channelID, Message: msg})
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *Fake) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("DeleteMessage"); err != nil {
		return err
	}
	f.deletedMsg = append(f.deletedMsg, messageID)
	return nil
}

func (f *Fake) FetchMessages(_ context.Context, channelID string, limit int) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("FetchMessages"); err != nil {
		return nil, err
	}
	msgs := f.history[channelID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]domain.TicketMessage(nil), msgs...), nil
}

func (f *Fake) MentionUser(userID string) string { return "<@" + userID + ">" }

func (f *Fake) MentionRole(roleID string) string { return "<@&" + roleID + ">" }

func (f *Fake) ChannelRef(channelID string) string { return "<#" + channelID + ">" }

// Responder records replies to a button interaction.
type Responder struct {
	mu       sync.Mutex
	Deferred bool
	Replies  []string
	// Ephemeral holds the visibility flag of each reply.
	Ephemeral []bool
}

var _ platform.Responder = (*Responder)(nil)

func (r *Responder) Defer(_ context.Context, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deferred = true
	return nil
}

func (r *Responder) Reply(_ context.Context, content string, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, content)
	r.Ephemeral = append(r.Ephemeral, ephemeral)
	return nil
}

// LastReply returns the most recent reply or "".
func (r *Responder) LastReply() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Replies) == 0 {
		return ""
	}
	return r.Replies[len(r.Replies)-1]
}
