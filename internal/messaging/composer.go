package messaging

import (
	"context"

	"github.com/BTreeMap/CatalogRelay/internal/catalog"
	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// Default customer-facing content.
const (
	DefaultWelcomeText     = "¡Hola! Bienvenido a nuestro servicio de WhatsApp. ¿En qué podemos ayudarte hoy?"
	DefaultWelcomeImageURL = "https://t4.ftcdn.net/jpg/04/46/40/87/360_F_446408796_sO3c3ZIuWMgvXNbfXM4Hyqt7pLtGzKQo.jpg"
	DefaultInfoText        = "Somos una empresa dedicada a..."
	DefaultEmptyText       = "No recibimos ningún mensaje. Escríbenos tu consulta o envía /catalogo para ver nuestros productos."
	DefaultProductImageURL = "https://jumpseller.mx/generated/images/learn/los-10-productos-mas-vendidos-en-mexico/online-shopping-mexico-800-3423d44e0.png"
	DefaultCatalogHeader   = "Catálogo completo"
	DefaultCatalogBody     = "Explora nuestro catálogo completo de productos:"
	DefaultCatalogFooter   = "Selecciona un producto para más detalles"
	DefaultCatalogSection  = "Sección 1"
)

// CatalogResolver resolves the items of a catalog. *catalog.Resolver satisfies it.
type CatalogResolver interface {
	Resolve(ctx context.Context, catalogID string) catalog.Snapshot
}

// ComposerOpts holds configuration options for the Composer.
type ComposerOpts struct {
	CatalogID       string
	MaxItems        int
	WelcomeText     string
	WelcomeImageURL string
	InfoText        string
	EmptyText       string
	ProductImageURL string
	CatalogHeader   string
	CatalogBody     string
	CatalogFooter   string
	CatalogSection  string
}

// ComposerOption defines a configuration option for the Composer.
type ComposerOption func(*ComposerOpts)

// WithCatalogID sets the catalog referenced by catalog messages.
func WithCatalogID(id string) ComposerOption {
	return func(o *ComposerOpts) { o.CatalogID = id }
}

// WithMaxItems caps the number of products in a catalog message. Zero or less means no cap.
func WithMaxItems(n int) ComposerOption {
	return func(o *ComposerOpts) { o.MaxItems = n }
}

// WithWelcome overrides the welcome text and image.
func WithWelcome(text, imageURL string) ComposerOption {
	return func(o *ComposerOpts) {
		o.WelcomeText = text
		o.WelcomeImageURL = imageURL
	}
}

// WithInfoText overrides the fixed informational reply.
func WithInfoText(text string) ComposerOption {
	return func(o *ComposerOpts) { o.InfoText = text }
}

// WithEmptyText overrides the notice sent for empty messages.
func WithEmptyText(text string) ComposerOption {
	return func(o *ComposerOpts) { o.EmptyText = text }
}

// WithProductImageURL overrides the image attached to keyword replies.
func WithProductImageURL(url string) ComposerOption {
	return func(o *ComposerOpts) { o.ProductImageURL = url }
}

// WithSectionTitle overrides the catalog section title.
func WithSectionTitle(title string) ComposerOption {
	return func(o *ComposerOpts) { o.CatalogSection = title }
}

// Composer builds outbound messages. Apart from Catalog, every method is a pure function of
// its inputs and the configured content.
type Composer struct {
	resolver CatalogResolver
	cfg      ComposerOpts
}

// NewComposer creates a Composer. resolver may be nil, in which case catalog messages carry the
// fallback item.
func NewComposer(resolver CatalogResolver, opts ...ComposerOption) *Composer {
	cfg := ComposerOpts{
		WelcomeText:     DefaultWelcomeText,
		WelcomeImageURL: DefaultWelcomeImageURL,
		InfoText:        DefaultInfoText,
		EmptyText:       DefaultEmptyText,
		ProductImageURL: DefaultProductImageURL,
		CatalogHeader:   DefaultCatalogHeader,
		CatalogBody:     DefaultCatalogBody,
		CatalogFooter:   DefaultCatalogFooter,
		CatalogSection:  DefaultCatalogSection,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Composer{resolver: resolver, cfg: cfg}
}

// Text builds a text message.
func (c *Composer) Text(to, body, correlationID string) models.OutboundMessage {
	return models.OutboundMessage{
		Kind:          models.OutboundKindText,
		To:            to,
		CorrelationID: correlationID,
		Text:          &models.TextContent{Body: body},
	}
}

// Image builds an image message; caption may be empty.
func (c *Composer) Image(to, url, caption, correlationID string) models.OutboundMessage {
	return models.OutboundMessage{
		Kind:          models.OutboundKindImage,
		To:            to,
		CorrelationID: correlationID,
		Image:         &models.ImageContent{URL: url, Caption: caption},
	}
}

// Catalog resolves the configured catalog and builds a product-list message.
func (c *Composer) Catalog(ctx context.Context, to, correlationID string) models.OutboundMessage {
	snapshot := catalog.FallbackSnapshot()
	if c.resolver != nil {
		snapshot = c.resolver.Resolve(ctx, c.cfg.CatalogID)
	}
	return c.CatalogFromSnapshot(to, correlationID, snapshot)
}

// CatalogFromSnapshot builds a product-list message from already resolved items.
func (c *Composer) CatalogFromSnapshot(to, correlationID string, snapshot catalog.Snapshot) models.OutboundMessage {
	if len(snapshot) == 0 {
		snapshot = catalog.FallbackSnapshot()
	}
	items := []string(snapshot)
	if c.cfg.MaxItems > 0 && len(items) > c.cfg.MaxItems {
		items = items[:c.cfg.MaxItems]
	}
	return models.OutboundMessage{
		Kind:          models.OutboundKindCatalog,
		To:            to,
		CorrelationID: correlationID,
		Catalog: &models.CatalogContent{
			Header:       c.cfg.CatalogHeader,
			Body:         c.cfg.CatalogBody,
			Footer:       c.cfg.CatalogFooter,
			CatalogID:    c.cfg.CatalogID,
			SectionTitle: c.cfg.CatalogSection,
			Items:        append([]string(nil), items...),
		},
	}
}

// Welcome builds the greeting pair: text first, then image.
func (c *Composer) Welcome(to, correlationID string) []models.OutboundMessage {
	return []models.OutboundMessage{
		c.Text(to, c.cfg.WelcomeText, correlationID),
		c.Image(to, c.cfg.WelcomeImageURL, "", correlationID),
	}
}

// Info builds the fixed informational reply.
func (c *Composer) Info(to, correlationID string) models.OutboundMessage {
	return c.Text(to, c.cfg.InfoText, correlationID)
}

// Empty builds the notice sent when a message has no text.
func (c *Composer) Empty(to, correlationID string) models.OutboundMessage {
	return c.Text(to, c.cfg.EmptyText, correlationID)
}

// ProductImage builds the image attached to keyword replies.
func (c *Composer) ProductImage(to, correlationID string) models.OutboundMessage {
	return c.Image(to, c.cfg.ProductImageURL, "", correlationID)
}

// InfoText returns the configured informational text.
func (c *Composer) InfoText() string {
	return c.cfg.InfoText
}
