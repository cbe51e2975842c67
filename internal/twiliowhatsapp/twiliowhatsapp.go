// Package twiliowhatsapp wraps the Twilio API as an alternative WhatsApp transport.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// whatsappPrefix is the address scheme Twilio uses for WhatsApp numbers.
const whatsappPrefix = "whatsapp:"

// Sender sends WhatsApp messages through Twilio and returns the message SID.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) (string, error)
	SendMedia(ctx context.Context, to string, body string, mediaURL string) (string, error)
}

// messageCreator is the subset of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending number, with or without the "whatsapp:" prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Client wraps Twilio REST API for WhatsApp
type Client struct {
	api       messageCreator
	fromWhats string // WhatsApp number in "whatsapp:+1234567890" format
}

// NewClient creates a Client. Missing options fall back to TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("twiliowhatsapp.NewClient: config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newClientWithAPI(rest.Api, cfg.FromWhats), nil
}

func newClientWithAPI(api messageCreator, from string) *Client {
	return &Client{api: api, fromWhats: whatsappAddress(from)}
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

// SendMessage sends a text message.
func (c *Client) SendMessage(ctx context.Context, to string, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(c.fromWhats)
	params.SetBody(body)
	return c.create(to, params)
}

// SendMedia sends a media message with an optional caption body.
func (c *Client) SendMedia(ctx context.Context, to string, body string, mediaURL string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(c.fromWhats)
	if body != "" {
		params.SetBody(body)
	}
	params.SetMediaUrl([]string{mediaURL})
	return c.create(to, params)
}

func (c *Client) create(to string, params *twilioApi.CreateMessageParams) (string, error) {
	resp, err := c.api.CreateMessage(params)
	if err != nil {
		slog.Error("Client.create: Twilio CreateMessage failed", "to", to, "error", err)
		return "", fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Client.create: Twilio message sent", "to", to, "sid", sid)
	return sid, nil
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

// SentMessage is one message captured by MockClient.
type SentMessage struct {
	To       string
	Body     string
	MediaURL string
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) (string, error) {
	return m.record(SentMessage{To: to, Body: body})
}

func (m *MockClient) SendMedia(ctx context.Context, to string, body string, mediaURL string) (string, error) {
	return m.record(SentMessage{To: to, Body: body, MediaURL: mediaURL})
}

func (m *MockClient) record(msg SentMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.SentMessages = append(m.SentMessages, msg)
	return fmt.Sprintf("SM%d", len(m.SentMessages)), nil
}

// Messages returns a copy of the captured messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
