// Package models defines the core data structures for CatalogRelay.
//
// It includes the normalized inbound message, outbound message variants, and delivery
// receipts, which are shared across modules.
package models

import (
	"errors"
	"strings"
)

// MessageType classifies a normalized inbound message.
type MessageType string

const (
	// MessageTypeText is a plain text message (or any non-interactive message).
	MessageTypeText MessageType = "text"
	// MessageTypeInteractive is a reply to an interactive button or list.
	MessageTypeInteractive MessageType = "interactive"
)

// Error variables for better error handling and testability
var (
	// ErrMalformedPayload means the webhook body was not parseable JSON.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrInvalidPayload means the body parsed but is not a recognized message event.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrMissingVerifyParams means the verification handshake lacked mode or token.
	ErrMissingVerifyParams = errors.New("missing verification parameters")
	// ErrVerificationFailed means the verification token or mode did not match.
	ErrVerificationFailed = errors.New("webhook verification failed")
	// ErrSendFailed wraps any failure of the messaging-send API.
	ErrSendFailed = errors.New("message send failed")
	// ErrEmptyRecipient means an outbound message has no recipient.
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
)

// InboundMessage is the normalized shape of a single inbound webhook message.
type InboundMessage struct {
	UserID        string      `json:"user_id"`
	Type          MessageType `json:"type"`
	Body          string      `json:"body"`
	ButtonID      string      `json:"button_id,omitempty"`
	CorrelationID string      `json:"correlation_id"`
	MessageID     string      `json:"message_id"`
	ContactName   string      `json:"contact_name,omitempty"`
}

// IsInteractive reports whether the message is an interactive reply.
func (m InboundMessage) IsInteractive() bool {
	return m.Type == MessageTypeInteractive
}

// NormalizedBody returns the body lower-cased with surrounding whitespace removed.
func (m InboundMessage) NormalizedBody() string {
	return strings.ToLower(strings.TrimSpace(m.Body))
}

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// IsValidMessageStatus checks if the given status is one the relay records.
func IsValidMessageStatus(s MessageStatus) bool {
	switch s {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead, MessageStatusFailed:
		return true
	default:
		return false
	}
}

// StatusUpdate is a delivery/read notification reported by the platform for a message we sent.
type StatusUpdate struct {
	MessageID   string        `json:"message_id"`
	RecipientID string        `json:"recipient_id"`
	Status      MessageStatus `json:"status"`
	Timestamp   int64         `json:"timestamp"`
}

// Receipt records an outbound dispatch outcome or a platform status update.
type Receipt struct {
	To        string        `json:"to"`
	Status    MessageStatus `json:"status"`
	Time      int64         `json:"time"`
	MessageID string        `json:"message_id,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}
