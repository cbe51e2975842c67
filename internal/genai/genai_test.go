package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/metrics"
	"github.com/openai/openai-go"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
	ctx    context.Context
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	m.ctx = ctx
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func newTestClient(chat chatService) *Client {
	return &Client{
		chat:                chat,
		model:               DefaultModel,
		temperature:         DefaultTemperature,
		maxCompletionTokens: DefaultMaxCompletionTokens,
		timeout:             DefaultTimeout,
	}
}

func TestGeneratePrompt_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("  Hello World \n")}
	client := newTestClient(mock)

	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", out)

	assert.Equal(t, openai.ChatModel(DefaultModel), mock.params.Model)
	assert.Equal(t, 0.7, mock.params.Temperature.Value)
	assert.Equal(t, int64(400), mock.params.MaxTokens.Value)
	assert.Len(t, mock.params.Messages, 2)

	deadline, ok := mock.ctx.Deadline()
	require.True(t, ok, "request context must carry the timeout")
	assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := newTestClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service failure")
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := newTestClient(&mockChatService{resp: openai.ChatCompletion{}})
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	assert.ErrorIs(t, err, ErrNoChoicesReturned)
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewClient_WithKey(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")
	cli, err := NewClient(WithAPIKey("test-key"), WithTimeout(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cli.Model())
	assert.Equal(t, 3*time.Second, cli.timeout)
}

func TestNewClient_ModelFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	cli, err := NewClient()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cli.Model())

	cli, err = NewClient(WithModel("custom"))
	require.NoError(t, err)
	assert.Equal(t, "custom", cli.Model())
}

func completionSamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	obs := metrics.ExternalCallDuration.WithLabelValues("completion")
	require.NoError(t, obs.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestGeneratePrompt_ObservesCompletionLatency(t *testing.T) {
	before := completionSamples(t)

	_, err := newTestClient(&mockChatService{resp: completion("ok")}).GeneratePrompt(context.Background(), "sys", "usr")
	require.NoError(t, err)
	_, err = newTestClient(&mockChatService{err: errors.New("down")}).GeneratePrompt(context.Background(), "sys", "usr")
	require.Error(t, err)

	assert.Equal(t, before+2, completionSamples(t), "failed calls are timed too")
}
