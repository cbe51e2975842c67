package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/BTreeMap/CatalogRelay/internal/twiliowhatsapp"
)

// TwilioSender delivers messages through Twilio. Twilio has no threading context and no
// product-list messages, so catalogs are rendered as a text list of items.
type TwilioSender struct {
	client twiliowhatsapp.Sender
}

// NewTwilioSender wraps a Twilio client (real or mock).
func NewTwilioSender(client twiliowhatsapp.Sender) *TwilioSender {
	return &TwilioSender{client: client}
}

// Send delivers one message and returns the Twilio message SID.
func (s *TwilioSender) Send(ctx context.Context, msg models.OutboundMessage) (string, error) {
	to, err := CanonicalizeRecipient(msg.To)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSendFailed, err)
	}
	to = "+" + to

	var sid string
	switch {
	case msg.Kind == models.OutboundKindText && msg.Text != nil:
		sid, err = s.client.SendMessage(ctx, to, msg.Text.Body)
	case msg.Kind == models.OutboundKindImage && msg.Image != nil:
		sid, err = s.client.SendMedia(ctx, to, msg.Image.Caption, msg.Image.URL)
	case msg.Kind == models.OutboundKindCatalog && msg.Catalog != nil:
		sid, err = s.client.SendMessage(ctx, to, renderCatalogText(msg.Catalog))
	default:
		return "", fmt.Errorf("%w: unsupported message kind %q", models.ErrSendFailed, msg.Kind)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSendFailed, err)
	}
	return sid, nil
}

func renderCatalogText(c *models.CatalogContent) string {
	var b strings.Builder
	b.WriteString(c.Header)
	b.WriteString("\n")
	b.WriteString(c.Body)
	for _, item := range c.Items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	if c.Footer != "" {
		b.WriteString("\n")
		b.WriteString(c.Footer)
	}
	return b.String()
}
