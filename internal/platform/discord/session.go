// Package discord adapts a discordgo session to the platform interfaces.
package discord

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const visibleAccess = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory

// Session implements platform.Session on top of the Discord gateway.
type Session struct {
	dg        *discordgo.Session
	logger    *zap.Logger
	connected atomic.Bool
	handler   platform.Handler
	removers  []func()
}

var _ platform.Session = (*Session)(nil)

// New builds an unopened session authenticated with a bot token.
func New(token string, logger *zap.Logger) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "create discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	dg.StateEnabled = true
	return &Session{dg: dg, logger: logger.Named("discord")}, nil
}

func (s *Session) Name() string { return "discord" }

// Open connects to the gateway. An authentication failure is returned.
func (s *Session) Open(ctx context.Context, handler platform.Handler) error {
	s.handler = handler
	s.removers = append(s.removers,
		s.dg.AddHandler(s.onReady),
		s.dg.AddHandler(s.onDisconnect),
		s.dg.AddHandler(s.onMessageCreate),
		s.dg.AddHandler(s.onInteractionCreate),
	)
	if err := s.dg.Open(); err != nil {
		return errors.Wrap(err, "open discord gateway")
	}
	return nil
}

func (s *Session) Connected() bool { return s.connected.Load() }

func (s *Session) Close() error {
	for _, remove := range s.removers {
		remove()
	}
	s.connected.Store(false)
	return s.dg.Close()
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.connected.Store(true)
	s.logger.Info("bot is online",
		zap.String("user", r.User.String()),
		zap.Int("guilds", len(r.Guilds)))
}

func (s *Session) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	s.connected.Store(false)
	s.logger.Warn("gateway disconnected")
}

func (s *Session) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || s.handler == nil {
		return
	}
	actor := domain.Actor{
		ID:          m.Author.ID,
		DisplayName: m.Author.String(),
		IsBot:       m.Author.Bot,
	}
	if m.Member != nil {
		actor.RoleIDs = append(actor.RoleIDs, m.Member.Roles...)
	}
	if !actor.IsBot && m.GuildID != "" {
		perms, err := s.dg.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			perms, err = s.dg.UserChannelPermissions(m.Author.ID, m.ChannelID)
		}
		if err == nil {
			actor.IsAdmin = perms&discordgo.PermissionAdministrator != 0
		}
	}
	s.handler.HandleMessage(context.Background(), platform.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
		Author:    actor,
	})
}

func (s *Session) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent || s.handler == nil {
		return
	}
	data := i.MessageComponentData()
	s.handler.HandleButton(context.Background(), platform.ButtonEvent{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		CustomID:  data.CustomID,
		Actor:     interactionActor(i.Interaction),
		Responder: &responder{dg: s.dg, interaction: i.Interaction},
	})
}

func interactionActor(i *discordgo.Interaction) domain.Actor {
	if i.Member != nil && i.Member.User != nil {
		return domain.Actor{
			ID:          i.Member.User.ID,
			DisplayName: i.Member.User.String(),
			RoleIDs:     append([]string(nil), i.Member.Roles...),
			IsAdmin:     i.Member.Permissions&discordgo.PermissionAdministrator != 0,
			IsBot:       i.Member.User.Bot,
		}
	}
	if i.User != nil {
		return domain.Actor{ID: i.User.ID, DisplayName: i.User.String(), IsBot: i.User.Bot}
	}
	return domain.Actor{}
}

func (s *Session) CreateChannel(ctx context.Context, spec platform.ChannelSpec) (platform.Channel, error) {
	ch, err := s.dg.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:     spec.Name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: spec.ParentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Channel{}, errors.Wrapf(err, "create channel %s", spec.Name)
	}
	return platform.Channel{ID: ch.ID, Name: ch.Name, GuildID: ch.GuildID, ParentID: ch.ParentID}, nil
}

func (s *Session) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := s.dg.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return errors.Wrapf(wrapNotFound(err), "delete channel %s", channelID)
	}
	return nil
}

func (s *Session) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	if channelID == "" {
		return false, nil
	}
	if _, err := s.dg.State.Channel(channelID); err == nil {
		return true, nil
	}
	_, err := s.dg.Channel(channelID, discordgo.WithContext(ctx))
	return lookupResult(channelID, err)
}

// lookupResult maps a channel fetch error: 404 means gone, anything else
// is returned so callers do not mistake an outage for a deleted channel.
func lookupResult(channelID string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(wrapNotFound(err), platform.ErrNotFound) {
		return false, nil
	}
	return false, errors.Wrapf(err, "look up channel %s", channelID)
}

func (s *Session) CategoryExists(ctx context.Context, guildID, categoryID string) bool {
	if categoryID == "" {
		return false
	}
	ch, err := s.dg.State.Channel(categoryID)
	if err != nil {
		ch, err = s.dg.Channel(categoryID, discordgo.WithContext(ctx))
	}
	if err != nil {
		return false
	}
	return ch.Type == discordgo.ChannelTypeGuildCategory && (guildID == "" || ch.GuildID == guildID)
}

func (s *Session) RoleExists(ctx context.Context, guildID, roleID string) bool {
	if roleID == "" || guildID == "" {
		return false
	}
	if _, err := s.dg.State.Role(guildID, roleID); err == nil {
		return true
	}
	roles, err := s.dg.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false
	}
	for _, r := range roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// DenyEveryone overwrites the @everyone role, whose id equals the guild id.
func (s *Session) DenyEveryone(ctx context.Context, guildID, channelID string) error {
	err := s.dg.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole,
		0, discordgo.PermissionViewChannel, discordgo.WithContext(ctx))
	return errors.Wrap(err, "deny @everyone")
}

func (s *Session) GrantMember(ctx context.Context, channelID, userID string) error {
	err := s.dg.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		visibleAccess, 0, discordgo.WithContext(ctx))
	return errors.Wrap(err, "grant member")
}

func (s *Session) GrantRole(ctx context.Context, _, channelID, roleID string) error {
	err := s.dg.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole,
		visibleAccess, 0, discordgo.WithContext(ctx))
	return errors.Wrap(err, "grant role")
}

func (s *Session) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	m, err := s.dg.ChannelMessageSendComplex(channelID, toMessageSend(msg, time.Now()), discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrapf(wrapNotFound(err), "send message to %s", channelID)
	}
	return m.ID, nil
}

func (s *Session) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := s.dg.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	return errors.Wrap(wrapNotFound(err), "delete message")
}

// FetchMessages returns at most 100 messages, the gateway's page size.
func (s *Session) FetchMessages(ctx context.Context, channelID string, limit int) ([]domain.TicketMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	msgs, err := s.dg.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrapf(wrapNotFound(err), "fetch messages from %s", channelID)
	}
	return toTicketMessages(msgs), nil
}

func (s *Session) MentionUser(userID string) string { return "<@" + userID + ">" }

func (s *Session) MentionRole(roleID string) string { return "<@&" + roleID + ">" }

func (s *Session) ChannelRef(channelID string) string { return "<#" + channelID + ">" }

func wrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return errors.WithMessage(platform.ErrNotFound, err.Error())
	}
	return err
}
