// Package testutil provides common test utilities and helpers for CatalogRelay tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// messagePayload wraps a single message object in a full webhook envelope.
func messagePayload(userID, name string, message map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"object": "whatsapp_business_account",
		"entry": []interface{}{
			map[string]interface{}{
				"id": "WABA_ID",
				"changes": []interface{}{
					map[string]interface{}{
						"field": "messages",
						"value": map[string]interface{}{
							"messaging_product": "whatsapp",
							"metadata": map[string]interface{}{
								"display_phone_number": "15550000000",
								"phone_number_id":      "PHONE_NUMBER_ID",
							},
							"contacts": []interface{}{
								map[string]interface{}{"profile": map[string]interface{}{"name": name}, "wa_id": userID},
							},
							"messages": []interface{}{message},
						},
					},
				},
			},
		},
	}
}

// TextMessagePayload builds a webhook body carrying one text message.
func TextMessagePayload(t *testing.T, userID, messageID, body string) []byte {
	t.Helper()
	return MustMarshalJSON(t, messagePayload(userID, "Test User", map[string]interface{}{
		"from":      userID,
		"id":        messageID,
		"timestamp": "1700000000",
		"type":      "text",
		"text":      map[string]interface{}{"body": body},
	}))
}

// ReplyTextPayload builds a text message that replies to replyToID.
func ReplyTextPayload(t *testing.T, userID, messageID, replyToID, body string) []byte {
	t.Helper()
	return MustMarshalJSON(t, messagePayload(userID, "Test User", map[string]interface{}{
		"from":      userID,
		"id":        messageID,
		"timestamp": "1700000000",
		"type":      "text",
		"text":      map[string]interface{}{"body": body},
		"context":   map[string]interface{}{"from": "15550000000", "id": replyToID},
	}))
}

// ButtonReplyPayload builds an interactive button_reply message.
func ButtonReplyPayload(t *testing.T, userID, messageID, buttonID string) []byte {
	t.Helper()
	return MustMarshalJSON(t, messagePayload(userID, "Test User", map[string]interface{}{
		"from":      userID,
		"id":        messageID,
		"timestamp": "1700000000",
		"type":      "interactive",
		"interactive": map[string]interface{}{
			"type":         "button_reply",
			"button_reply": map[string]interface{}{"id": buttonID, "title": "Button " + buttonID},
		},
	}))
}

// StatusPayload builds a delivery/read status webhook body.
func StatusPayload(t *testing.T, recipientID, messageID, status string) []byte {
	t.Helper()
	return MustMarshalJSON(t, map[string]interface{}{
		"object": "whatsapp_business_account",
		"entry": []interface{}{
			map[string]interface{}{
				"id": "WABA_ID",
				"changes": []interface{}{
					map[string]interface{}{
						"field": "messages",
						"value": map[string]interface{}{
							"messaging_product": "whatsapp",
							"statuses": []interface{}{
								map[string]interface{}{
									"id":           messageID,
									"status":       status,
									"timestamp":    "1700000001",
									"recipient_id": recipientID,
								},
							},
						},
					},
				},
			},
		},
	})
}

// SentMessage is one call observed by RecordingSender.
type SentMessage struct {
	Message models.OutboundMessage
	At      time.Time
}

// RecordingSender is a concurrency-safe fake messaging sender.
type RecordingSender struct {
	mu   sync.Mutex
	sent []SentMessage
	// FailKinds makes Send fail for the listed outbound kinds.
	FailKinds map[models.OutboundKind]bool
	// Latency is slept inside each Send to simulate a round trip.
	Latency time.Duration
}

// NewRecordingSender creates an empty RecordingSender.
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{FailKinds: map[models.OutboundKind]bool{}}
}

// Send records the message and returns a synthetic platform message id.
func (s *RecordingSender) Send(ctx context.Context, msg models.OutboundMessage) (string, error) {
	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentMessage{Message: msg, At: time.Now()})
	if s.FailKinds[msg.Kind] {
		return "", errors.New("simulated send failure")
	}
	return fmt.Sprintf("wamid.test.%d", len(s.sent)), nil
}

// Sent returns a copy of the recorded sends in call order.
func (s *RecordingSender) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

// Kinds returns the kinds of recorded sends in call order.
func (s *RecordingSender) Kinds() []models.OutboundKind {
	sent := s.Sent()
	kinds := make([]models.OutboundKind, len(sent))
	for i, m := range sent {
		kinds[i] = m.Message.Kind
	}
	return kinds
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}
