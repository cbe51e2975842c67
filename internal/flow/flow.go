// Package flow decides how CatalogRelay answers each inbound message.
//
// The Router turns one normalized message into an ordered list of actions (welcome, catalog,
// info, empty notice, AI reply) and hands them to the dispatcher. It keeps no state of its own;
// the only shared state is the greeting repository.
package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CatalogRelay/internal/messaging"
	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/BTreeMap/CatalogRelay/internal/store"
)

// Button identifiers handled by the router.
const (
	ButtonCatalog = "catalog"
	ButtonInfo    = "info"
)

// DefaultCatalogAliases are the text commands that open the catalog.
var DefaultCatalogAliases = []string{"/catalogo", "/productos"}

// DefaultImageKeywords trigger a product image after an AI reply when enabled.
var DefaultImageKeywords = []string{"imagen", "foto", "muestra", "ver", "producto", "catalogo", "catálogo"}

// DefaultInfoPrompt is sent to the responder when informational replies are generated.
const DefaultInfoPrompt = "Describe brevemente a qué se dedica la empresa."

// Responder generates free-form replies. It must not fail; *genai.Responder satisfies it.
type Responder interface {
	Generate(ctx context.Context, userText string) string
}

// Dispatcher sends actions in order. *messaging.Dispatcher satisfies it.
type Dispatcher interface {
	DispatchAll(ctx context.Context, actions []models.Action) []messaging.DispatchResult
}

// Opts holds configuration options for the Router.
type Opts struct {
	CatalogAliases  []string
	GenerateInfo    bool
	InfoPrompt      string
	ImageOnKeywords bool
	ImageKeywords   []string
}

// Option defines a configuration option for the Router.
type Option func(*Opts)

// WithCatalogAliases replaces the text commands that open the catalog.
func WithCatalogAliases(aliases ...string) Option {
	return func(o *Opts) { o.CatalogAliases = aliases }
}

// WithGenerateInfo makes the info button answer with a generated reply instead of the fixed text.
func WithGenerateInfo(enabled bool) Option {
	return func(o *Opts) { o.GenerateInfo = enabled }
}

// WithInfoPrompt sets the question sent to the responder for generated info replies.
func WithInfoPrompt(prompt string) Option {
	return func(o *Opts) { o.InfoPrompt = prompt }
}

// WithImageOnKeywords attaches the product image to AI replies whose text mentions a keyword.
func WithImageOnKeywords(enabled bool) Option {
	return func(o *Opts) { o.ImageOnKeywords = enabled }
}

// WithImageKeywords replaces the keyword list used by WithImageOnKeywords.
func WithImageKeywords(keywords ...string) Option {
	return func(o *Opts) { o.ImageKeywords = keywords }
}

// Router orchestrates one conversation turn.
type Router struct {
	greetings  store.GreetingRepo
	composer   *messaging.Composer
	responder  Responder
	dispatcher Dispatcher

	aliases         map[string]struct{}
	generateInfo    bool
	infoPrompt      string
	imageOnKeywords bool
	imageKeywords   []string
}

// NewRouter creates a Router. responder and dispatcher may be nil; a nil responder yields no
// reply actions and a nil dispatcher makes Handle a no-op after routing.
func NewRouter(greetings store.GreetingRepo, composer *messaging.Composer, responder Responder, dispatcher Dispatcher, opts ...Option) *Router {
	cfg := Opts{
		CatalogAliases: DefaultCatalogAliases,
		InfoPrompt:     DefaultInfoPrompt,
		ImageKeywords:  DefaultImageKeywords,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	aliases := make(map[string]struct{}, len(cfg.CatalogAliases))
	for _, a := range cfg.CatalogAliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			aliases[a] = struct{}{}
		}
	}
	keywords := make([]string, 0, len(cfg.ImageKeywords))
	for _, k := range cfg.ImageKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	if greetings == nil {
		greetings = store.NewInMemoryGreetingRepo()
	}
	if composer == nil {
		composer = messaging.NewComposer(nil)
	}

	slog.Debug("flow.NewRouter: configured", "aliases", len(aliases), "generate_info", cfg.GenerateInfo, "image_on_keywords", cfg.ImageOnKeywords)
	return &Router{
		greetings:       greetings,
		composer:        composer,
		responder:       responder,
		dispatcher:      dispatcher,
		aliases:         aliases,
		generateInfo:    cfg.GenerateInfo,
		infoPrompt:      cfg.InfoPrompt,
		imageOnKeywords: cfg.ImageOnKeywords,
		imageKeywords:   keywords,
	}
}

// Handle routes msg and dispatches the resulting actions in order.
func (r *Router) Handle(ctx context.Context, msg models.InboundMessage) []messaging.DispatchResult {
	actions := r.Route(ctx, msg)
	if r.dispatcher == nil || len(actions) == 0 {
		return nil
	}
	return r.dispatcher.DispatchAll(ctx, actions)
}

// Route decides the ordered actions for msg. A newly seen user always gets the welcome pair
// first; every outbound part carries msg.CorrelationID.
func (r *Router) Route(ctx context.Context, msg models.InboundMessage) []models.Action {
	var actions []models.Action
	enqueue := func(kind models.ActionKind, parts ...models.OutboundMessage) {
		actions = append(actions, models.Action{Kind: kind, Parts: parts})
		metrics.RouterActions.WithLabelValues(string(kind)).Inc()
	}

	to, corr := msg.UserID, msg.CorrelationID

	newUser, err := r.greetings.GreetIfNeeded(ctx, msg.UserID)
	if err != nil {
		slog.Error("Router.Route: greeting check failed, skipping welcome", "userID", msg.UserID, "error", err)
	}
	if newUser {
		slog.Info("Router.Route: new user, sending welcome", "userID", msg.UserID)
		enqueue(models.ActionWelcome, r.composer.Welcome(to, corr)...)
	}

	if msg.IsInteractive() {
		switch msg.ButtonID {
		case ButtonCatalog:
			enqueue(models.ActionCatalog, r.composer.Catalog(ctx, to, corr))
		case ButtonInfo:
			enqueue(models.ActionInfo, r.info(ctx, to, corr))
		default:
			slog.Warn("Router.Route: unrecognized button, no action", "userID", msg.UserID, "buttonID", msg.ButtonID)
		}
		return actions
	}

	normalized := msg.NormalizedBody()
	switch {
	case r.isCatalogAlias(normalized):
		enqueue(models.ActionCatalog, r.composer.Catalog(ctx, to, corr))
	case normalized == "":
		enqueue(models.ActionEmpty, r.composer.Empty(to, corr))
	case r.responder == nil:
		slog.Warn("Router.Route: no responder configured, dropping free-form message", "userID", msg.UserID)
	default:
		reply := r.responder.Generate(ctx, msg.Body)
		if r.imageOnKeywords && r.mentionsImageKeyword(normalized) {
			enqueue(models.ActionReply, r.composer.Text(to, reply, corr), r.composer.ProductImage(to, corr))
		} else {
			enqueue(models.ActionReply, r.composer.Text(to, reply, corr))
		}
	}
	return actions
}

func (r *Router) info(ctx context.Context, to, corr string) models.OutboundMessage {
	if r.generateInfo && r.responder != nil {
		return r.composer.Text(to, r.responder.Generate(ctx, r.infoPrompt), corr)
	}
	return r.composer.Info(to, corr)
}

func (r *Router) isCatalogAlias(normalized string) bool {
	_, ok := r.aliases[normalized]
	return ok
}

// mentionsImageKeyword uses substring matching, so "ver" also matches "verde".
func (r *Router) mentionsImageKeyword(normalized string) bool {
	for _, k := range r.imageKeywords {
		if strings.Contains(normalized, k) {
			return true
		}
	}
	return false
}
