// Package catalog resolves product retailer identifiers from the external catalog-lookup service.
//
// Resolution never fails from the caller's point of view: any error degrades to the single
// sentinel snapshot ["default_id"].
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// Constants for catalog lookup configuration
const (
	// DefaultLookupURL is the catalog-lookup endpoint used when none is configured.
	DefaultLookupURL = "https://backend-whatsapp-bp79.onrender.com/ConsultaProductos"
	// DefaultTimeout bounds each lookup call.
	DefaultTimeout = 10 * time.Second
	// maxResponseBytes caps how much of a lookup response is read.
	maxResponseBytes = 4 << 20
)

// Snapshot is the ordered list of retailer identifiers for one catalog message. Never empty.
type Snapshot []string

// FallbackSnapshot returns the single-item sentinel snapshot.
func FallbackSnapshot() Snapshot {
	return Snapshot{models.DefaultRetailerID}
}

// IsFallback reports whether s is the sentinel snapshot.
func (s Snapshot) IsFallback() bool {
	return len(s) == 1 && s[0] == models.DefaultRetailerID
}

// Opts holds configuration options for the catalog resolver.
type Opts struct {
	LookupURL  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Option defines a configuration option for the catalog resolver.
type Option func(*Opts)

// WithLookupURL sets the catalog-lookup endpoint.
func WithLookupURL(url string) Option {
	return func(o *Opts) { o.LookupURL = url }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient injects the HTTP client used for lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Resolver calls the catalog-lookup service.
type Resolver struct {
	lookupURL string
	timeout   time.Duration
	client    *http.Client
}

// NewResolver creates a Resolver. The lookup URL falls back to $CATALOG_LOOKUP_URL and then
// DefaultLookupURL.
func NewResolver(opts ...Option) *Resolver {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.LookupURL == "" {
		cfg.LookupURL = os.Getenv("CATALOG_LOOKUP_URL")
	}
	if cfg.LookupURL == "" {
		cfg.LookupURL = DefaultLookupURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	slog.Debug("catalog.NewResolver: configured", "lookup_url", cfg.LookupURL, "timeout", cfg.Timeout)
	return &Resolver{lookupURL: cfg.LookupURL, timeout: cfg.Timeout, client: cfg.HTTPClient}
}

type lookupRequest struct {
	CatalogID string `json:"catalog_id"`
}

// Resolve returns the retailer identifiers of catalogID, or the fallback snapshot on any failure.
func (r *Resolver) Resolve(ctx context.Context, catalogID string) Snapshot {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("catalog").Observe(time.Since(start).Seconds())
	}()

	ids, reason, err := r.lookup(ctx, catalogID)
	if err != nil {
		slog.Error("Resolver.Resolve: catalog lookup failed, using fallback item", "catalogID", catalogID, "reason", reason, "error", err)
		metrics.CatalogFallbacks.WithLabelValues(reason).Inc()
		return FallbackSnapshot()
	}
	if len(ids) == 0 {
		slog.Error("Resolver.Resolve: no products found in catalog response, using fallback item", "catalogID", catalogID)
		metrics.CatalogFallbacks.WithLabelValues("empty").Inc()
		return FallbackSnapshot()
	}
	slog.Debug("Resolver.Resolve: catalog resolved", "catalogID", catalogID, "items", len(ids), "duration_ms", time.Since(start).Milliseconds())
	return Snapshot(ids)
}

// lookup performs the HTTP call. The returned reason labels the failure for metrics.
func (r *Resolver) lookup(ctx context.Context, catalogID string) ([]string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(lookupRequest{CatalogID: catalogID})
	if err != nil {
		return nil, "request", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.lookupURL, bytes.NewReader(payload))
	if err != nil {
		return nil, "request", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "network", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "network", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "status", fmt.Errorf("catalog lookup returned status %d", resp.StatusCode)
	}

	products, ok := normalizeProducts(body)
	if !ok {
		return nil, "malformed", fmt.Errorf("unrecognized catalog response shape")
	}
	return retailerIDs(products), "", nil
}

// product is one catalog record. RetailerID is kept raw because services emit strings or numbers.
type product struct {
	RetailerID json.RawMessage `json:"retailer_id"`
}

// normalizeProducts accepts either a bare array of records or an object carrying the array
// under "data". ok is false for any other shape.
func normalizeProducts(body []byte) ([]product, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '[':
		var list []product
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, false
		}
		return list, true
	case '{':
		var wrapped struct {
			Data *json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil || wrapped.Data == nil {
			return nil, false
		}
		var list []product
		if err := json.Unmarshal(*wrapped.Data, &list); err != nil {
			return nil, false
		}
		return list, true
	default:
		return nil, false
	}
}

// retailerIDs extracts identifiers in order, skipping records without one.
func retailerIDs(products []product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if id := rawToID(p.RetailerID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func rawToID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String()
		}
	}
	return ""
}
