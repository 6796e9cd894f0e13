package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

func toMessageSend(msg platform.Message, now time.Time) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(*msg.Embed, now)}
	}
	if len(msg.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range msg.Buttons {
			btn := discordgo.Button{
				Label:    b.Label,
				CustomID: b.CustomID,
				Style:    discordgo.PrimaryButton,
			}
			if b.Style == platform.ButtonDanger {
				btn.Style = discordgo.DangerButton
			}
			if b.Emoji != "" {
				btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
			}
			row.Components = append(row.Components, btn)
		}
		send.Components = []discordgo.MessageComponent{row}
	}
	return send
}

func toEmbed(e platform.Embed, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.Timestamp {
		embed.Timestamp = now.UTC().Format(time.RFC3339)
	}
	return embed
}

func toTicketMessages(msgs []*discordgo.Message) []domain.TicketMessage {
	out := make([]domain.TicketMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		author := "unknown"
		if m.Author != nil {
			author = m.Author.String()
		}
		out = append(out, domain.TicketMessage{
			ID:        m.ID,
			Author:    author,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return out
}
