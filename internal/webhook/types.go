package webhook

// Cloud API webhook delivery types. Only the fields the relay reads are declared.

// Payload is the top-level webhook delivery.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents one business account entry.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps a single change notification.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the message or status data.
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata about the receiving phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the remote participant.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

// ContactProfile has the display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// Message represents an incoming message.
type Message struct {
	From        string          `json:"from"`
	ID          string          `json:"id"`
	Timestamp   string          `json:"timestamp"`
	Type        string          `json:"type"`
	Text        *TextBody       `json:"text,omitempty"`
	Interactive *Interactive    `json:"interactive,omitempty"`
	Button      *QuickReply     `json:"button,omitempty"`
	Context     *MessageContext `json:"context,omitempty"`
}

// TextBody holds a text message body.
type TextBody struct {
	Body string `json:"body"`
}

// Interactive is the user's reply to an interactive message.
type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
	ListReply   *Reply `json:"list_reply,omitempty"`
}

// Reply identifies the button or list row the user picked.
type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// QuickReply is a template quick-reply button press.
type QuickReply struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// MessageContext is present when the user replied to a specific message.
type MessageContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Status represents a message delivery status update.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
