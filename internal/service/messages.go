package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Embed colors.
const (
	ColorInfo    = 0x3498db
	ColorCreated = 0x2ecc71
	ColorClosed  = 0xe74c3c
)

func closeButton() platform.Button {
	return platform.Button{CustomID: platform.ButtonCloseTicket, Label: "Close Ticket", Emoji: "🔒", Style: platform.ButtonDanger}
}

func welcomeMessage(ticket domain.Ticket, ownerMention string) platform.Message {
	return platform.Message{
		Embed: &platform.Embed{
			Title:       "Ticket #" + ticket.Number(),
			Description: fmt.Sprintf("Hello, %s! Please describe your issue and a staff member will assist you shortly.", ownerMention),
			Footer:      "Ticket created by " + ticket.OwnerDisplayName,
			Color:       ColorInfo,
			Timestamp:   true,
		},
		Buttons: []platform.Button{closeButton()},
	}
}

func welcomeFallback(ticket domain.Ticket) platform.Message {
	return platform.Message{Content: fmt.Sprintf("Ticket created for %s. Please describe your issue.", ticket.OwnerDisplayName)}
}

func rolePing(roleMention string) platform.Message {
	if roleMention == "" {
		return platform.Message{Content: "A new ticket has been created."}
	}
	return platform.Message{Content: roleMention + " A new ticket has been created."}
}

func closingMessage(closer string, delay time.Duration) platform.Message {
	return platform.Message{Embed: &platform.Embed{
		Title:       "Ticket Closing",
		Description: fmt.Sprintf("This ticket will be closed in %s.", formatDelay(delay)),
		Footer:      "Closed by " + closer,
		Color:       ColorClosed,
		Timestamp:   true,
	}}
}

func auditMessage(action domain.TicketAction, ticketID int, actor string) platform.Message {
	color := ColorCreated
	if action == domain.TicketActionClosed {
		color = ColorClosed
	}
	return platform.Message{Embed: &platform.Embed{
		Title:       fmt.Sprintf("Ticket %s", action),
		Description: fmt.Sprintf("Ticket #%s was %s by %s", domain.FormatTicketNumber(ticketID), action, actor),
		Color:       color,
		Timestamp:   true,
	}}
}

// formatDelay renders whole seconds as "5 seconds" and anything else with
// time.Duration formatting.
func formatDelay(d time.Duration) string {
	if d%time.Second != 0 {
		return d.String()
	}
	secs := int(d / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}
