// Package store provides storage backends for CatalogRelay.
//
// It holds two independent concerns: receipt stores (dispatch outcomes and platform status
// updates, backed by memory, SQLite or PostgreSQL) and greeting repositories (which users have
// already received the welcome sequence, backed by memory or Redis).
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// Store defines the interface for receipt storage backends.
type Store interface {
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string for SQLite or PostgreSQL
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a simple in-memory store for receipts.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts []models.Receipt
}

// NewInMemoryStore creates a new in-memory receipt store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating in-memory receipt store")
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
