package slackbot

import (
	"context"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

// responder replies to a block action. Socket Mode requests are acked on
// receipt, so Defer has nothing left to do; replies are posted as
// ephemeral messages to the actor, or publicly when not ephemeral.
type responder struct {
	api       *slack.Client
	channelID string
	userID    string
}

func (r *responder) Defer(context.Context, bool) error { return nil }

func (r *responder) Reply(ctx context.Context, content string, ephemeral bool) error {
	if ephemeral {
		_, err := r.api.PostEphemeralContext(ctx, r.channelID, r.userID, slack.MsgOptionText(content, false))
		return errors.Wrap(err, "post ephemeral reply")
	}
	_, _, err := r.api.PostMessageContext(ctx, r.channelID, slack.MsgOptionText(content, false))
	return errors.Wrap(err, "post reply")
}
