package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/BTreeMap/CatalogRelay/internal/api"
	"github.com/BTreeMap/CatalogRelay/internal/catalog"
	"github.com/BTreeMap/CatalogRelay/internal/flow"
	"github.com/BTreeMap/CatalogRelay/internal/genai"
	"github.com/BTreeMap/CatalogRelay/internal/lockfile"
	"github.com/BTreeMap/CatalogRelay/internal/messaging"
	"github.com/BTreeMap/CatalogRelay/internal/store"
	"github.com/BTreeMap/CatalogRelay/internal/twiliowhatsapp"
)

// run wires every module and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	receipts, release, err := openReceiptStore(flags)
	if err != nil {
		return err
	}
	defer release()

	greetings, closeGreetings, err := openGreetingRepo(ctx, flags)
	if err != nil {
		return err
	}
	defer closeGreetings()

	resolver := catalog.NewResolver(buildCatalogOptions(flags)...)
	responder := buildResponder(flags)
	composer := messaging.NewComposer(resolver, buildComposerOptions(flags)...)

	sender, err := buildSender(flags)
	if err != nil {
		return err
	}
	dispatcher := messaging.NewDispatcher(sender, append(buildDispatcherOptions(flags), messaging.WithReceiptStore(receipts))...)
	router := flow.NewRouter(greetings, composer, responder, dispatcher, buildRouterOptions(flags)...)

	server := api.NewServer(router, receipts, greetings, buildAPIOptions(flags)...)
	slog.Info("CatalogRelay ready", "addr", server.Addr(), "transport", *flags.transport, "part_delay", dispatcher.PartDelay())
	return server.Run(ctx)
}

// openReceiptStore builds the receipt store. A SQLite file is guarded by a lock in its directory
// so two processes never share it.
func openReceiptStore(flags Flags) (store.Store, func(), error) {
	storeOpts := buildStoreOptions(flags)
	if len(storeOpts) == 0 {
		slog.Info("Using in-memory receipt store")
		st := store.NewInMemoryStore()
		return st, func() { _ = st.Close() }, nil
	}

	if !usesSQLite(flags) {
		st, err := store.NewPostgresStore(storeOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres receipt store: %w", err)
		}
		slog.Info("Using PostgreSQL receipt store")
		return st, func() { closeStore(st) }, nil
	}

	dbPath := resolveReceiptsDSN(flags)
	lock, err := lockfile.AcquireLock(filepath.Dir(dbPath), *flags.apiAddr)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.NewSQLiteStore(storeOpts...)
	if err != nil {
		_ = lock.Release()
		return nil, nil, fmt.Errorf("failed to open sqlite receipt store: %w", err)
	}
	slog.Info("Using SQLite receipt store", "path", dbPath, "lock", lock.Path())
	return st, func() {
		closeStore(st)
		if err := lock.Release(); err != nil {
			slog.Warn("failed to release state lock", "error", err)
		}
	}, nil
}

func closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		slog.Warn("failed to close receipt store", "error", err)
	}
}

// openGreetingRepo builds the greeting store selected by --greeting-store.
func openGreetingRepo(ctx context.Context, flags Flags) (store.GreetingRepo, func(), error) {
	switch *flags.greetingStore {
	case GreetingStoreRedis:
		repo, client, err := store.NewRedisGreetingRepo(ctx, buildRedisOptions(flags)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect greeting store: %w", err)
		}
		slog.Info("Using Redis greeting store", "addr", *flags.redisAddr, "db", *flags.redisDB)
		return repo, func() {
			if err := client.Close(); err != nil {
				slog.Warn("failed to close redis client", "error", err)
			}
		}, nil
	case GreetingStoreMemory, "":
		slog.Info("Using in-memory greeting store")
		return store.NewInMemoryGreetingRepo(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown greeting store %q", *flags.greetingStore)
	}
}

// buildResponder returns a responder that answers with the apology when no OpenAI key is configured.
func buildResponder(flags Flags) *genai.Responder {
	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Warn("GenAI client unavailable, free-text replies will use the fallback text", "error", err)
		return genai.NewResponder(nil, buildResponderOptions(flags)...)
	}
	slog.Info("GenAI client initialized", "model", client.Model())
	return genai.NewResponder(client, buildResponderOptions(flags)...)
}

// buildSender returns the transport selected by --transport.
func buildSender(flags Flags) (messaging.Sender, error) {
	switch *flags.transport {
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create twilio client: %w", err)
		}
		return messaging.NewTwilioSender(client), nil
	case TransportCloudAPI, "":
		sender, err := messaging.NewCloudAPISender(buildCloudAPIOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud api sender: %w", err)
		}
		slog.Debug("Cloud API sender configured", "endpoint", sender.Endpoint())
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown send transport %q", *flags.transport)
	}
}
