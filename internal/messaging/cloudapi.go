package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// Defaults for the Cloud API sender.
const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	DefaultGraphVersion = "v20.0"
	DefaultSendTimeout  = 10 * time.Second
	// maxErrorBodyBytes caps how much of an error response is kept for logging.
	maxErrorBodyBytes = 2048
)

// CloudAPIOpts holds configuration options for the Cloud API sender.
type CloudAPIOpts struct {
	BaseURL       string
	Version       string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// CloudAPIOption defines a configuration option for the Cloud API sender.
type CloudAPIOption func(*CloudAPIOpts)

// WithGraphBaseURL overrides the Graph API host.
func WithGraphBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.BaseURL = url }
}

// WithGraphVersion sets the Graph API version path segment.
func WithGraphVersion(version string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.Version = version }
}

// WithPhoneNumberID sets the sender phone number id.
func WithPhoneNumberID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.PhoneNumberID = id }
}

// WithAccessToken sets the bearer token.
func WithAccessToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.AccessToken = token }
}

// WithSendTimeout bounds each send call.
func WithSendTimeout(d time.Duration) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.Timeout = d }
}

// WithSendHTTPClient injects the HTTP client used for sends.
func WithSendHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.HTTPClient = c }
}

// CloudAPISender posts envelopes to the WhatsApp Cloud API.
type CloudAPISender struct {
	endpoint    string
	accessToken string
	timeout     time.Duration
	client      *http.Client
}

// NewCloudAPISender creates a CloudAPISender. Missing options fall back to GRAPH_BASE_URL,
// VERSION, PHONE_NUMBER_ID and ACCESS_TOKEN.
func NewCloudAPISender(opts ...CloudAPIOption) (*CloudAPISender, error) {
	var cfg CloudAPIOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("GRAPH_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = os.Getenv("VERSION")
	}
	if cfg.Version == "" {
		cfg.Version = DefaultGraphVersion
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = os.Getenv("PHONE_NUMBER_ID")
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv("ACCESS_TOKEN")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	slog.Debug("messaging.NewCloudAPISender: config loaded",
		"base_url", cfg.BaseURL, "version", cfg.Version,
		"PhoneNumberID_set", cfg.PhoneNumberID != "", "AccessToken_set", cfg.AccessToken != "")

	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("phone number id must be provided")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token must be provided")
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(cfg.BaseURL, "/"), cfg.Version, cfg.PhoneNumberID)
	return &CloudAPISender{
		endpoint:    endpoint,
		accessToken: cfg.AccessToken,
		timeout:     cfg.Timeout,
		client:      cfg.HTTPClient,
	}, nil
}

// Endpoint returns the messages URL the sender posts to.
func (s *CloudAPISender) Endpoint() string {
	return s.endpoint
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts one envelope and returns the platform message id.
func (s *CloudAPISender) Send(ctx context.Context, msg models.OutboundMessage) (string, error) {
	env, err := BuildEnvelope(msg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSendFailed, err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("%w: encode envelope: %v", models.ErrSendFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ExternalCallDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("%w: status %d: %s", models.ErrSendFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Warn("CloudAPISender.Send: could not decode send response", "to", msg.To, "error", err)
		return "", nil
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	slog.Debug("CloudAPISender.Send: message sent", "to", msg.To, "kind", msg.Kind, "message_id", out.Messages[0].ID)
	return out.Messages[0].ID, nil
}
