package models

// OutboundKind tags the variant carried by an OutboundMessage.
type OutboundKind string

const (
	OutboundKindText    OutboundKind = "text"
	OutboundKindImage   OutboundKind = "image"
	OutboundKindCatalog OutboundKind = "catalog"
)

// DefaultRetailerID is the sentinel product identifier used when catalog resolution yields nothing.
const DefaultRetailerID = "default_id"

// TextContent is the payload of a text message.
type TextContent struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// ImageContent is the payload of an image message.
type ImageContent struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// CatalogContent is the payload of an interactive product-list message.
type CatalogContent struct {
	Header       string   `json:"header"`
	Body         string   `json:"body"`
	Footer       string   `json:"footer"`
	CatalogID    string   `json:"catalog_id"`
	SectionTitle string   `json:"section_title"`
	Items        []string `json:"items"`
}

// OutboundMessage is a single message to send. Exactly one of Text, Image or Catalog is set,
// matching Kind. Values are built once and never mutated afterwards.
type OutboundMessage struct {
	Kind          OutboundKind    `json:"kind"`
	To            string          `json:"to"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Text          *TextContent    `json:"text,omitempty"`
	Image         *ImageContent   `json:"image,omitempty"`
	Catalog       *CatalogContent `json:"catalog,omitempty"`
}

// ActionKind names what a router action is for.
type ActionKind string

const (
	ActionWelcome ActionKind = "welcome"
	ActionCatalog ActionKind = "catalog"
	ActionInfo    ActionKind = "info"
	ActionEmpty   ActionKind = "empty"
	ActionReply   ActionKind = "reply"
)

// Action is one step of a conversation turn. Parts are sent in order; a multi-part action is a
// paired send subject to the dispatcher's inter-part delay.
type Action struct {
	Kind  ActionKind        `json:"kind"`
	Parts []OutboundMessage `json:"parts"`
}

// IsPaired reports whether the action sends more than one message.
func (a Action) IsPaired() bool {
	return len(a.Parts) > 1
}
