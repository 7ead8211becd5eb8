// Package notify delivers reminder messages over email and WhatsApp.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"acp_dues/internal/ports"
)

// Notifier routes each message to the adapter for its channel.
type Notifier struct {
	email    *Email
	whatsapp *WhatsApp
	log      zerolog.Logger
}

func New(email *Email, whatsapp *WhatsApp, log zerolog.Logger) *Notifier {
	return &Notifier{email: email, whatsapp: whatsapp, log: log.With().Str("component", "notify").Logger()}
}

var _ ports.Notifier = (*Notifier)(nil)

func (n *Notifier) Send(ctx context.Context, ch ports.Channel, recipient, subject, body string) (bool, string) {
	var (
		ok   bool
		info string
	)
	switch {
	case ch == ports.ChannelEmail && n.email != nil:
		ok, info = n.email.Send(ctx, recipient, subject, body)
	case ch == ports.ChannelWhatsApp && n.whatsapp != nil:
		ok, info = n.whatsapp.Send(ctx, recipient, body)
	default:
		return false, "channel " + string(ch) + " not available"
	}

	if !ok {
		n.log.Warn().Str("channel", string(ch)).Str("info", info).Msg("notification failed")
	}
	return ok, info
}
