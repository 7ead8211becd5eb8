package ports

import "context"

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

// Notifier delivers one message. It never returns an error: failures,
// including a missing configuration, come back as ok=false with info.
type Notifier interface {
	Send(ctx context.Context, ch Channel, recipient, subject, body string) (ok bool, info string)
}
