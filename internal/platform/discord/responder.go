package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// responder answers one component interaction. After Defer, Reply edits
// the deferred response instead of creating a new one.
type responder struct {
	dg          *discordgo.Session
	interaction *discordgo.Interaction

	mu       sync.Mutex
	deferred bool
	answered bool
}

func (r *responder) Defer(ctx context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{},
	}
	if ephemeral {
		resp.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := r.dg.InteractionRespond(r.interaction, resp, discordgo.WithContext(ctx)); err != nil {
		return errors.Wrap(err, "defer interaction")
	}
	r.deferred = true
	r.answered = true
	return nil
}

func (r *responder) Reply(ctx context.Context, content string, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferred {
		_, err := r.dg.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx))
		return errors.Wrap(err, "edit deferred reply")
	}
	if r.answered {
		params := &discordgo.WebhookParams{Content: content}
		if ephemeral {
			params.Flags = discordgo.MessageFlagsEphemeral
		}
		_, err := r.dg.FollowupMessageCreate(r.interaction, true, params, discordgo.WithContext(ctx))
		return errors.Wrap(err, "follow up interaction")
	}
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.dg.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "reply to interaction")
	}
	r.answered = true
	return nil
}
