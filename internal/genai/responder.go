package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
)

// PromptMode selects the system prompt used for customer replies.
type PromptMode string

const (
	// PromptModeStrict answers only from the provided information and refuses otherwise.
	PromptModeStrict PromptMode = "strict"
	// PromptModeOpen lets the model answer as a general helpful assistant.
	PromptModeOpen PromptMode = "open"
)

// Fixed customer-facing texts.
const (
	RefusalText  = "Lo siento, no tengo la información solicitada"
	FallbackText = "Lo siento, hubo un problema generando la respuesta."
)

const strictSystemPrompt = "Eres un asistente que responde únicamente en base a la información disponible. " +
	"Si la consulta no puede responderse con la información proporcionada, di: '" + RefusalText + "'.\n"

const openSystemPrompt = "Eres un asistente amable de atención a clientes por WhatsApp. " +
	"Responde de forma breve y clara en el idioma del cliente.\n"

// errEmptyCompletion marks a completion that trimmed down to nothing.
var errEmptyCompletion = errors.New("empty completion")

// ParsePromptMode maps a configuration value onto a PromptMode, defaulting to strict.
func ParsePromptMode(s string) PromptMode {
	switch PromptMode(strings.ToLower(strings.TrimSpace(s))) {
	case PromptModeOpen:
		return PromptModeOpen
	default:
		return PromptModeStrict
	}
}

// promptGenerator is satisfied by *Client.
type promptGenerator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ResponderOpts holds configuration options for the Responder.
type ResponderOpts struct {
	Mode     PromptMode
	Location string
	Hours    string
	Fallback string
}

// ResponderOption defines a configuration option for the Responder.
type ResponderOption func(*ResponderOpts)

// WithPromptMode selects strict or open prompting.
func WithPromptMode(mode PromptMode) ResponderOption {
	return func(o *ResponderOpts) { o.Mode = mode }
}

// WithBusinessFacts adds the business location and opening hours to the prompt.
func WithBusinessFacts(location, hours string) ResponderOption {
	return func(o *ResponderOpts) {
		o.Location = location
		o.Hours = hours
	}
}

// WithFallbackText overrides the apology sent when generation fails.
func WithFallbackText(text string) ResponderOption {
	return func(o *ResponderOpts) { o.Fallback = text }
}

// Responder produces free-form customer replies. It never returns an error.
type Responder struct {
	gen          promptGenerator
	systemPrompt string
	fallback     string
}

// NewResponder creates a Responder over gen.
func NewResponder(gen promptGenerator, opts ...ResponderOption) *Responder {
	cfg := ResponderOpts{Mode: PromptModeStrict, Fallback: FallbackText}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Responder{
		gen:          gen,
		systemPrompt: buildSystemPrompt(cfg),
		fallback:     cfg.Fallback,
	}
}

func buildSystemPrompt(cfg ResponderOpts) string {
	var b strings.Builder
	if cfg.Mode == PromptModeOpen {
		b.WriteString(openSystemPrompt)
	} else {
		b.WriteString(strictSystemPrompt)
	}
	if cfg.Location != "" || cfg.Hours != "" {
		b.WriteString("Información disponible:\n")
		if cfg.Location != "" {
			fmt.Fprintf(&b, "- Ubicación: %s\n", cfg.Location)
		}
		if cfg.Hours != "" {
			fmt.Fprintf(&b, "- Horario: %s\n", cfg.Hours)
		}
	}
	b.WriteString("Responde la siguiente consulta:\n")
	return b.String()
}

// SystemPrompt returns the prompt sent with every request.
func (r *Responder) SystemPrompt() string {
	return r.systemPrompt
}

// Generate returns the model's reply to userText, or the fallback apology on any failure.
func (r *Responder) Generate(ctx context.Context, userText string) string {
	if r.gen == nil {
		slog.Warn("Responder.Generate: no completion client configured, using fallback")
		metrics.AIFallbacks.Inc()
		return r.fallback
	}

	reply, err := r.gen.GeneratePrompt(ctx, r.systemPrompt, userText)
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			err = errEmptyCompletion
		}
	}
	if err != nil {
		slog.Error("Responder.Generate: completion failed, using fallback", "error", err)
		metrics.AIFallbacks.Inc()
		return r.fallback
	}
	return reply
}
