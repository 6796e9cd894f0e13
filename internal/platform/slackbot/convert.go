package slackbot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

func messageOptions(msg platform.Message, now time.Time) []slack.MsgOption {
	fallback := msg.Content
	if fallback == "" && msg.Embed != nil {
		fallback = msg.Embed.Title
	}
	opts := []slack.MsgOption{slack.MsgOptionText(fallback, false)}
	if msg.Embed != nil {
		opts = append(opts, slack.MsgOptionAttachments(toAttachment(*msg.Embed, now)))
	}
	if len(msg.Buttons) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(toBlocks(msg)...))
	}
	return opts
}

func toAttachment(e platform.Embed, now time.Time) slack.Attachment {
	att := slack.Attachment{
		Title:  e.Title,
		Text:   e.Description,
		Footer: e.Footer,
		Color:  fmt.Sprintf("#%06x", e.Color),
	}
	if e.Timestamp {
		att.Ts = json.Number(strconv.FormatInt(now.Unix(), 10))
	}
	return att
}

// toBlocks renders the text part as a section and buttons as one action row.
func toBlocks(msg platform.Message) []slack.Block {
	var blocks []slack.Block
	if msg.Content != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, msg.Content, false, false), nil, nil))
	}
	elements := make([]slack.BlockElement, 0, len(msg.Buttons))
	for _, b := range msg.Buttons {
		label := b.Label
		if b.Emoji != "" {
			label = b.Emoji + " " + label
		}
		btn := slack.NewButtonBlockElement(b.CustomID, b.CustomID,
			slack.NewTextBlockObject(slack.PlainTextType, label, true, false))
		if b.Style == platform.ButtonDanger {
			btn = btn.WithStyle(slack.StyleDanger)
		} else {
			btn = btn.WithStyle(slack.StylePrimary)
		}
		elements = append(elements, btn)
	}
	return append(blocks, slack.NewActionBlock("ticket_actions", elements...))
}
