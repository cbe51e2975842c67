package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type stubGenerator struct {
	reply  string
	err    error
	system string
	user   string
	calls  int
}

func (s *stubGenerator) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	s.system = systemPrompt
	s.user = userPrompt
	return s.reply, s.err
}

func TestResponder_Generate(t *testing.T) {
	gen := &stubGenerator{reply: " Abrimos a las 9. "}
	r := NewResponder(gen)

	out := r.Generate(context.Background(), "¿A qué hora abren?")
	assert.Equal(t, "Abrimos a las 9.", out)
	assert.Equal(t, "¿A qué hora abren?", gen.user, "user text is passed through unmodified")
	assert.Contains(t, gen.system, RefusalText)
}

func TestResponder_FallbackOnError(t *testing.T) {
	before := testutil.ToFloat64(metrics.AIFallbacks)
	r := NewResponder(&stubGenerator{err: errors.New("timeout")})

	assert.Equal(t, FallbackText, r.Generate(context.Background(), "hola"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AIFallbacks))
}

func TestResponder_FallbackOnEmptyReply(t *testing.T) {
	r := NewResponder(&stubGenerator{reply: "   "}, WithFallbackText("intenta más tarde"))
	assert.Equal(t, "intenta más tarde", r.Generate(context.Background(), "hola"))
}

func TestResponder_NilGenerator(t *testing.T) {
	r := NewResponder(nil)
	assert.Equal(t, FallbackText, r.Generate(context.Background(), "hola"))
}

func TestResponder_PromptModes(t *testing.T) {
	strict := NewResponder(nil).SystemPrompt()
	assert.Contains(t, strict, "únicamente")
	assert.NotContains(t, strict, "Ubicación")

	open := NewResponder(nil, WithPromptMode(PromptModeOpen), WithBusinessFacts("Av. Reforma 1", "9-18h")).SystemPrompt()
	assert.NotContains(t, open, RefusalText)
	assert.Contains(t, open, "Ubicación: Av. Reforma 1")
	assert.Contains(t, open, "Horario: 9-18h")
}

func TestParsePromptMode(t *testing.T) {
	assert.Equal(t, PromptModeOpen, ParsePromptMode(" OPEN "))
	assert.Equal(t, PromptModeStrict, ParsePromptMode("strict"))
	assert.Equal(t, PromptModeStrict, ParsePromptMode(""))
	assert.Equal(t, PromptModeStrict, ParsePromptMode("bogus"))
}
