package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/BTreeMap/CatalogRelay/internal/store"
)

// DefaultPartDelay separates the parts of a multi-part action.
const DefaultPartDelay = 500 * time.Millisecond

// DispatchResult is the outcome of one send.
type DispatchResult struct {
	Action    models.ActionKind
	Message   models.OutboundMessage
	MessageID string
	Err       error
	SentAt    time.Time
}

// OK reports whether the send succeeded.
func (r DispatchResult) OK() bool {
	return r.Err == nil
}

// DispatcherOpts holds configuration options for the Dispatcher.
type DispatcherOpts struct {
	PartDelay time.Duration
	Receipts  store.Store
}

// DispatcherOption defines a configuration option for the Dispatcher.
type DispatcherOption func(*DispatcherOpts)

// WithPartDelay sets the minimum gap between the parts of a multi-part action. A negative value
// is treated as zero.
func WithPartDelay(d time.Duration) DispatcherOption {
	return func(o *DispatcherOpts) { o.PartDelay = d }
}

// WithReceiptStore records every dispatch outcome in st.
func WithReceiptStore(st store.Store) DispatcherOption {
	return func(o *DispatcherOpts) { o.Receipts = st }
}

// Dispatcher sends composed messages in order. It never retries, and a failed send never stops
// later sends.
type Dispatcher struct {
	sender    Sender
	partDelay time.Duration
	receipts  store.Store
}

// NewDispatcher creates a Dispatcher over sender.
func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	cfg := DispatcherOpts{PartDelay: DefaultPartDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PartDelay < 0 {
		cfg.PartDelay = 0
	}
	return &Dispatcher{sender: sender, partDelay: cfg.PartDelay, receipts: cfg.Receipts}
}

// PartDelay returns the configured inter-part delay.
func (d *Dispatcher) PartDelay() time.Duration {
	return d.partDelay
}

// Send performs one send and records its outcome.
func (d *Dispatcher) Send(ctx context.Context, msg models.OutboundMessage) DispatchResult {
	id, err := d.sender.Send(ctx, msg)
	res := DispatchResult{Message: msg, MessageID: id, Err: err, SentAt: time.Now()}

	result := "sent"
	if err != nil {
		result = "failed"
		slog.Error("Dispatcher.Send: send failed", "to", msg.To, "kind", msg.Kind, "correlationID", msg.CorrelationID, "error", err)
	} else {
		slog.Info("Dispatcher.Send: message sent", "to", msg.To, "kind", msg.Kind, "message_id", id)
	}
	metrics.Dispatches.WithLabelValues(string(msg.Kind), result).Inc()
	d.record(res)
	return res
}

// DispatchAll sends every part of every action in order. Within an action each part after the
// first is sent at least PartDelay after the previous send returned.
func (d *Dispatcher) DispatchAll(ctx context.Context, actions []models.Action) []DispatchResult {
	var results []DispatchResult
	for _, action := range actions {
		for i, part := range action.Parts {
			if i > 0 {
				d.wait()
			}
			res := d.Send(ctx, part)
			res.Action = action.Kind
			results = append(results, res)
		}
	}
	return results
}

// wait holds for the full part delay; cancellation of the turn's context does not shorten it.
func (d *Dispatcher) wait() {
	if d.partDelay > 0 {
		time.Sleep(d.partDelay)
	}
}

func (d *Dispatcher) record(res DispatchResult) {
	if d.receipts == nil {
		return
	}
	receipt := models.Receipt{
		To:        res.Message.To,
		Status:    models.MessageStatusSent,
		Time:      res.SentAt.Unix(),
		MessageID: res.MessageID,
		Kind:      string(res.Message.Kind),
	}
	if res.Err != nil {
		receipt.Status = models.MessageStatusFailed
		receipt.Detail = res.Err.Error()
	}
	if err := d.receipts.AddReceipt(receipt); err != nil {
		slog.Warn("Dispatcher.record: failed to store receipt", "to", receipt.To, "error", err)
	}
}
