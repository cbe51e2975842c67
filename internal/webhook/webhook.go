// Package webhook validates and normalizes inbound Cloud API webhook deliveries.
//
// Validate is pure: it never performs I/O and never mutates shared state. The HTTP layer maps
// its errors onto status codes (malformed -> 400, unrecognized -> 404).
package webhook

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// EventKind classifies a validated webhook delivery.
type EventKind string

const (
	// EventMessage is a genuine inbound message that must be routed.
	EventMessage EventKind = "message"
	// EventStatus is a delivery/read notification for a message we sent.
	EventStatus EventKind = "status"
)

// Event is the validated form of a webhook delivery.
type Event struct {
	Kind     EventKind
	Message  models.InboundMessage
	Statuses []models.StatusUpdate
}

//go:embed envelope_schema.json
var envelopeSchemaJSON string

var envelopeSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("webhook: invalid embedded envelope schema: %v", err))
	}
	envelopeSchema = schema
}

// Validate parses a raw webhook body and returns the normalized event.
//
// It returns models.ErrMalformedPayload when the body is not JSON and models.ErrInvalidPayload
// when the body does not describe a status update or a message event.
func Validate(body []byte) (Event, error) {
	if !json.Valid(body) {
		return Event{}, models.ErrMalformedPayload
	}

	// Statuses are recognized before the message schema applies; such a body need not be a
	// well-formed message event.
	var payload Payload
	if err := json.Unmarshal(body, &payload); err == nil {
		if statuses := firstStatuses(payload); len(statuses) > 0 {
			return Event{Kind: EventStatus, Statuses: normalizeStatuses(statuses)}, nil
		}
	}

	result, err := envelopeSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return Event{}, fmt.Errorf("%w: %s", models.ErrInvalidPayload, strings.Join(errs, "; "))
	}

	payload = Payload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	value := payload.Entry[0].Changes[0].Value

	if len(value.Messages) == 0 {
		return Event{}, fmt.Errorf("%w: no messages in change value", models.ErrInvalidPayload)
	}

	msg := normalizeMessage(value.Messages[0], value.Contacts)
	if msg.UserID == "" {
		return Event{}, fmt.Errorf("%w: message has no sender", models.ErrInvalidPayload)
	}
	return Event{Kind: EventMessage, Message: msg}, nil
}

// firstStatuses returns entry[0].changes[0].value.statuses, or nil when the path is absent.
func firstStatuses(p Payload) []Status {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil
	}
	return p.Entry[0].Changes[0].Value.Statuses
}

func normalizeMessage(m Message, contacts []Contact) models.InboundMessage {
	out := models.InboundMessage{
		UserID:        m.From,
		Type:          models.MessageTypeText,
		MessageID:     m.ID,
		CorrelationID: m.ID,
	}
	if len(contacts) > 0 {
		if contacts[0].WaID != "" {
			out.UserID = contacts[0].WaID
		}
		out.ContactName = contacts[0].Profile.Name
	}
	// Replies thread onto the message being replied to.
	if m.Context != nil && m.Context.ID != "" {
		out.CorrelationID = m.Context.ID
	}

	switch m.Type {
	case "text":
		if m.Text != nil {
			out.Body = m.Text.Body
		}
	case "interactive":
		out.Type = models.MessageTypeInteractive
		if m.Interactive != nil {
			reply := m.Interactive.ButtonReply
			if reply == nil {
				reply = m.Interactive.ListReply
			}
			if reply != nil {
				out.ButtonID = reply.ID
				out.Body = reply.Title
			}
		}
	case "button":
		out.Type = models.MessageTypeInteractive
		if m.Button != nil {
			out.ButtonID = m.Button.Payload
			out.Body = m.Button.Text
		}
	}
	// Media, location and other types keep an empty text body.
	return out
}

func normalizeStatuses(statuses []Status) []models.StatusUpdate {
	out := make([]models.StatusUpdate, 0, len(statuses))
	for _, s := range statuses {
		ts, _ := strconv.ParseInt(s.Timestamp, 10, 64)
		out = append(out, models.StatusUpdate{
			MessageID:   s.ID,
			RecipientID: s.RecipientID,
			Status:      models.MessageStatus(s.Status),
			Timestamp:   ts,
		})
	}
	return out
}
