package messaging

import (
	"fmt"

	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// Wire constants of the Cloud API send endpoint.
const (
	messagingProduct    = "whatsapp"
	recipientIndividual = "individual"
	interactiveProducts = "product_list"
)

// Envelope is the JSON body accepted by the Cloud API send endpoint.
type Envelope struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *EnvelopeText    `json:"text,omitempty"`
	Image            *EnvelopeImage   `json:"image,omitempty"`
	Interactive      *EnvelopeProduct `json:"interactive,omitempty"`
	Context          *EnvelopeContext `json:"context,omitempty"`
}

// EnvelopeText is the body of a text message.
type EnvelopeText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// EnvelopeImage references an image by public link.
type EnvelopeImage struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

// EnvelopeProduct is an interactive product_list message.
type EnvelopeProduct struct {
	Type   string            `json:"type"`
	Header EnvelopeHeader    `json:"header"`
	Body   EnvelopeTextBlock `json:"body"`
	Footer EnvelopeTextBlock `json:"footer"`
	Action EnvelopeAction    `json:"action"`
}

// EnvelopeHeader is the header of a product list.
type EnvelopeHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EnvelopeTextBlock is a body or footer text.
type EnvelopeTextBlock struct {
	Text string `json:"text"`
}

// EnvelopeAction names the catalog and the sections to show.
type EnvelopeAction struct {
	CatalogID string            `json:"catalog_id"`
	Sections  []EnvelopeSection `json:"sections"`
}

// EnvelopeSection groups products under a title.
type EnvelopeSection struct {
	Title        string                `json:"title"`
	ProductItems []EnvelopeProductItem `json:"product_items"`
}

// EnvelopeProductItem is one product by retailer id.
type EnvelopeProductItem struct {
	ProductRetailerID string `json:"product_retailer_id"`
}

// EnvelopeContext threads a message onto an earlier one.
type EnvelopeContext struct {
	MessageID string `json:"message_id"`
}

// BuildEnvelope maps an OutboundMessage onto its Cloud API wire form.
func BuildEnvelope(msg models.OutboundMessage) (Envelope, error) {
	if msg.To == "" {
		return Envelope{}, models.ErrEmptyRecipient
	}
	env := Envelope{
		MessagingProduct: messagingProduct,
		To:               msg.To,
		Type:             string(msg.Kind),
	}
	if msg.CorrelationID != "" {
		env.Context = &EnvelopeContext{MessageID: msg.CorrelationID}
	}

	switch msg.Kind {
	case models.OutboundKindText:
		if msg.Text == nil {
			return Envelope{}, fmt.Errorf("text message without text content")
		}
		env.RecipientType = recipientIndividual
		env.Text = &EnvelopeText{PreviewURL: msg.Text.PreviewURL, Body: msg.Text.Body}
	case models.OutboundKindImage:
		if msg.Image == nil {
			return Envelope{}, fmt.Errorf("image message without image content")
		}
		env.RecipientType = recipientIndividual
		env.Image = &EnvelopeImage{Link: msg.Image.URL, Caption: msg.Image.Caption}
	case models.OutboundKindCatalog:
		if msg.Catalog == nil {
			return Envelope{}, fmt.Errorf("catalog message without catalog content")
		}
		c := msg.Catalog
		items := make([]EnvelopeProductItem, len(c.Items))
		for i, id := range c.Items {
			items[i] = EnvelopeProductItem{ProductRetailerID: id}
		}
		env.Type = "interactive"
		env.Interactive = &EnvelopeProduct{
			Type:   interactiveProducts,
			Header: EnvelopeHeader{Type: "text", Text: c.Header},
			Body:   EnvelopeTextBlock{Text: c.Body},
			Footer: EnvelopeTextBlock{Text: c.Footer},
			Action: EnvelopeAction{
				CatalogID: c.CatalogID,
				Sections:  []EnvelopeSection{{Title: c.SectionTitle, ProductItems: items}},
			},
		}
	default:
		return Envelope{}, fmt.Errorf("unknown outbound kind %q", msg.Kind)
	}
	return env, nil
}
