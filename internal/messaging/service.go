// Package messaging composes outbound WhatsApp messages and delivers them through a pluggable
// transport.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// phoneNumberRegex matches every non-digit character.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// Sender delivers a single outbound message and returns the platform message id.
// Implementations perform exactly one bounded attempt; retries are never made here.
type Sender interface {
	Send(ctx context.Context, msg models.OutboundMessage) (string, error)
}

// CanonicalizeRecipient strips every non-digit character from a WhatsApp recipient and checks
// the result has at least 6 digits.
func CanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if canonical != recipient {
		slog.Debug("messaging.CanonicalizeRecipient: canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
