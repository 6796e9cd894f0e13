// Package slackbot adapts a Slack Socket Mode app to the platform interfaces.
//
// Slack has no channel categories, so tickets are always uncategorized.
// Support roles map to user groups; a private channel already hides the
// ticket from the workspace, so DenyEveryone is a no-op.
package slackbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Config holds the Slack credentials.
type Config struct {
	BotToken string // xoxb-...
	AppToken string // xapp-..., Socket Mode
	Debug    bool
	// CommandPrefix gates which messages are resolved and dispatched.
	// Defaults to "!".
	CommandPrefix string
	// GroupCacheTTL bounds how long user group memberships are reused.
	// Defaults to one minute.
	GroupCacheTTL time.Duration
	// APIURL overrides the Web API base, used by tests.
	APIURL string
}

const defaultGroupCacheTTL = time.Minute

// Session implements platform.Session for Slack.
type Session struct {
	api       *slack.Client
	socket    *socketmode.Client
	logger    *zap.Logger
	connected atomic.Bool
	botUserID string
	prefix    string
	cancel    context.CancelFunc
	done      chan struct{}

	groupsMu  sync.Mutex
	groups    []slack.UserGroup
	groupsAt  time.Time
	groupsTTL time.Duration
	now       func() time.Time
}

var _ platform.Session = (*Session)(nil)

// New builds an unopened session.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}
	opts := []slack.Option{
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	api := slack.New(cfg.BotToken, opts...)
	prefix := cfg.CommandPrefix
	if prefix == "" {
		prefix = "!"
	}
	ttl := cfg.GroupCacheTTL
	if ttl <= 0 {
		ttl = defaultGroupCacheTTL
	}
	return &Session{
		api:       api,
		socket:    socketmode.New(api, socketmode.OptionDebug(cfg.Debug)),
		logger:    logger.Named("slack"),
		prefix:    prefix,
		groupsTTL: ttl,
		now:       time.Now,
	}, nil
}

func (s *Session) Name() string { return "slack" }

// Open verifies the bot token and starts the Socket Mode loop in the
// background. A rejected token is returned as an error.
func (s *Session) Open(ctx context.Context, handler platform.Handler) error {
	auth, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return errors.Wrap(err, "slack auth test")
	}
	s.botUserID = auth.UserID
	s.logger.Info("bot is online", zap.String("user", auth.User), zap.String("team", auth.Team))

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.pump(runCtx, s.socket.Events, handler)
	go func() {
		defer close(s.done)
		if err := s.socket.RunContext(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("socket mode stopped", zap.Error(err))
		}
		s.connected.Store(false)
	}()
	return nil
}

func (s *Session) Connected() bool { return s.connected.Load() }

func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// pump drains socket events until ctx is cancelled or events is closed.
func (s *Session) pump(ctx context.Context, events <-chan socketmode.Event, handler platform.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, evt, handler)
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, evt socketmode.Event, handler platform.Handler) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		s.logger.Info("connecting to socket mode")
	case socketmode.EventTypeConnected:
		s.connected.Store(true)
		s.logger.Info("connected to socket mode")
	case socketmode.EventTypeConnectionError, socketmode.EventTypeDisconnect:
		s.connected.Store(false)
		s.logger.Warn("socket mode connection lost", zap.Any("data", evt.Data))
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			s.socket.Ack(*evt.Request)
		}
		if apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		if msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			go s.dispatchMessage(ctx, apiEvent.TeamID, msg, handler)
		}
	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		if evt.Request != nil {
			s.socket.Ack(*evt.Request)
		}
		if callback.Type != slack.InteractionTypeBlockActions {
			return
		}
		for _, action := range callback.ActionCallback.BlockActions {
			go s.dispatchButton(ctx, callback, action.ActionID, handler)
		}
	}
}

func (s *Session) dispatchMessage(ctx context.Context, teamID string, ev *slackevents.MessageEvent, handler platform.Handler) {
	// edits, joins and other subtypes are not commands
	if ev.SubType != "" || ev.BotID != "" || ev.User == s.botUserID {
		return
	}
	if !strings.HasPrefix(ev.Text, s.prefix) {
		return
	}
	actor := s.resolveActor(ctx, ev.User)
	handler.HandleMessage(ctx, platform.MessageEvent{
		GuildID:   teamID,
		ChannelID: ev.Channel,
		MessageID: ev.TimeStamp,
		Content:   ev.Text,
		Author:    actor,
	})
}

func (s *Session) dispatchButton(ctx context.Context, cb slack.InteractionCallback, actionID string, handler platform.Handler) {
	handler.HandleButton(ctx, platform.ButtonEvent{
		GuildID:   cb.Team.ID,
		ChannelID: cb.Channel.ID,
		CustomID:  actionID,
		Actor:     s.resolveActor(ctx, cb.User.ID),
		Responder: &responder{api: s.api, channelID: cb.Channel.ID, userID: cb.User.ID},
	})
}

// resolveActor loads the user's profile and user group memberships.
// Lookup failures degrade to an actor with no roles.
func (s *Session) resolveActor(ctx context.Context, userID string) domain.Actor {
	actor := domain.Actor{ID: userID, DisplayName: userID}
	if userID == "" {
		return actor
	}
	if user, err := s.api.GetUserInfoContext(ctx, userID); err == nil {
		actor.DisplayName = displayName(user)
		actor.IsAdmin = user.IsAdmin || user.IsOwner
		actor.IsBot = user.IsBot
	} else {
		s.logger.Debug("user lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	groups, err := s.userGroups(ctx)
	if err != nil {
		s.logger.Debug("user group lookup failed", zap.Error(err))
		return actor
	}
	for _, g := range groups {
		for _, member := range g.Users {
			if member == userID {
				actor.RoleIDs = append(actor.RoleIDs, g.ID)
				break
			}
		}
	}
	return actor
}

// userGroups returns the workspace user groups with members, refreshed at
// most once per groupsTTL. A failed refresh falls back to the last list.
func (s *Session) userGroups(ctx context.Context) ([]slack.UserGroup, error) {
	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()
	if s.groups != nil && s.now().Sub(s.groupsAt) < s.groupsTTL {
		return s.groups, nil
	}
	groups, err := s.api.GetUserGroupsContext(ctx, slack.GetUserGroupsOptionIncludeUsers(true))
	if err != nil {
		if s.groups != nil {
			s.logger.Warn("user group refresh failed; using cached list", zap.Error(err))
			return s.groups, nil
		}
		return nil, err
	}
	if groups == nil {
		groups = []slack.UserGroup{}
	}
	s.groups = groups
	s.groupsAt = s.now()
	return groups, nil
}

func displayName(u *slack.User) string {
	switch {
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName
	case u.RealName != "":
		return u.RealName
	default:
		return u.Name
	}
}

func (s *Session) CreateChannel(ctx context.Context, spec platform.ChannelSpec) (platform.Channel, error) {
	ch, err := s.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: spec.Name,
		IsPrivate:   true,
	})
	if err != nil {
		return platform.Channel{}, errors.Wrapf(err, "create channel %s", spec.Name)
	}
	return platform.Channel{ID: ch.ID, Name: ch.Name, GuildID: spec.GuildID}, nil
}

// DeleteChannel archives the conversation; bot tokens cannot delete.
func (s *Session) DeleteChannel(ctx context.Context, channelID string) error {
	return errors.Wrapf(s.api.ArchiveConversationContext(ctx, channelID), "archive channel %s", channelID)
}

func (s *Session) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	if channelID == "" {
		return false, nil
	}
	ch, err := s.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) && slackErr.Err == "channel_not_found" {
			return false, nil
		}
		return false, errors.Wrapf(err, "look up channel %s", channelID)
	}
	return !ch.IsArchived, nil
}

func (s *Session) CategoryExists(context.Context, string, string) bool { return false }

func (s *Session) RoleExists(ctx context.Context, _, roleID string) bool {
	if roleID == "" {
		return false
	}
	groups, err := s.userGroups(ctx)
	if err != nil {
		return false
	}
	for _, g := range groups {
		if g.ID == roleID {
			return true
		}
	}
	return false
}

func (s *Session) DenyEveryone(context.Context, string, string) error { return nil }

func (s *Session) GrantMember(ctx context.Context, channelID, userID string) error {
	_, err := s.api.InviteUsersToConversationContext(ctx, channelID, userID)
	if err != nil && !isAlreadyInChannel(err) {
		return errors.Wrap(err, "invite member")
	}
	return nil
}

func (s *Session) GrantRole(ctx context.Context, _, channelID, roleID string) error {
	members, err := s.api.GetUserGroupMembersContext(ctx, roleID)
	if err != nil {
		return errors.Wrapf(err, "list members of %s", roleID)
	}
	if len(members) == 0 {
		return nil
	}
	_, err = s.api.InviteUsersToConversationContext(ctx, channelID, members...)
	if err != nil && !isAlreadyInChannel(err) {
		return errors.Wrap(err, "invite role members")
	}
	return nil
}

func isAlreadyInChannel(err error) bool {
	return strings.Contains(err.Error(), "already_in_channel") || strings.Contains(err.Error(), "cant_invite_self")
}

func (s *Session) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	_, ts, err := s.api.PostMessageContext(ctx, channelID, messageOptions(msg, time.Now())...)
	if err != nil {
		return "", errors.Wrapf(err, "post message to %s", channelID)
	}
	return ts, nil
}

func (s *Session) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, _, err := s.api.DeleteMessageContext(ctx, channelID, messageID)
	return errors.Wrap(err, "delete message")
}

// FetchMessages returns the channel history newest first.
func (s *Session) FetchMessages(ctx context.Context, channelID string, limit int) ([]domain.TicketMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	resp, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch history of %s", channelID)
	}
	names := make(map[string]string)
	out := make([]domain.TicketMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		author := m.Username
		if m.User != "" {
			name, ok := names[m.User]
			if !ok {
				name = m.User
				if u, err := s.api.GetUserInfoContext(ctx, m.User); err == nil {
					name = displayName(u)
				}
				names[m.User] = name
			}
			author = name
		}
		out = append(out, domain.TicketMessage{
			ID:        m.Timestamp,
			Author:    author,
			Content:   m.Text,
			Timestamp: parseTimestamp(m.Timestamp),
		})
	}
	return out, nil
}

func (s *Session) MentionUser(userID string) string { return "<@" + userID + ">" }

func (s *Session) MentionRole(roleID string) string { return "<!subteam^" + roleID + ">" }

func (s *Session) ChannelRef(channelID string) string { return "<#" + channelID + ">" }

// parseTimestamp converts a Slack "seconds.micros" ts.
func parseTimestamp(ts string) time.Time {
	secs, frac, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nsec int64
	if frac != "" {
		for len(frac) < 9 {
			frac += "0"
		}
		nsec, _ = strconv.ParseInt(frac[:9], 10, 64)
	}
	return time.Unix(sec, nsec).UTC()
}
