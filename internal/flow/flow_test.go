package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/catalog"
	"github.com/BTreeMap/CatalogRelay/internal/messaging"
	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/BTreeMap/CatalogRelay/internal/store"
	"github.com/BTreeMap/CatalogRelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResponder struct {
	mu    sync.Mutex
	reply string
	got   []string
}

func (s *stubResponder) Generate(ctx context.Context, userText string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, userText)
	return s.reply
}

func (s *stubResponder) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

type stubResolver struct {
	snapshot catalog.Snapshot
	calls    int32
}

func (s *stubResolver) Resolve(ctx context.Context, catalogID string) catalog.Snapshot {
	atomic.AddInt32(&s.calls, 1)
	return s.snapshot
}

type failingGreetings struct{ store.GreetingRepo }

func (failingGreetings) GreetIfNeeded(ctx context.Context, userID string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

type harness struct {
	router    *Router
	greetings *store.InMemoryGreetingRepo
	responder *stubResponder
	resolver  *stubResolver
	sender    *testutil.RecordingSender
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		greetings: store.NewInMemoryGreetingRepo(),
		responder: &stubResponder{reply: "respuesta generada"},
		resolver:  &stubResolver{snapshot: catalog.Snapshot{"sku-1", "sku-2"}},
		sender:    testutil.NewRecordingSender(),
	}
	composer := messaging.NewComposer(h.resolver, messaging.WithCatalogID("CAT"))
	dispatcher := messaging.NewDispatcher(h.sender, messaging.WithPartDelay(0))
	h.router = NewRouter(h.greetings, composer, h.responder, dispatcher, opts...)
	return h
}

// greeted marks the user so routing tests can ignore the welcome pair.
func (h *harness) greeted(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, h.greetings.MarkGreeted(context.Background(), userID))
}

func textMsg(userID, body, corr string) models.InboundMessage {
	return models.InboundMessage{UserID: userID, Type: models.MessageTypeText, Body: body, CorrelationID: corr, MessageID: corr}
}

func buttonMsg(userID, buttonID, corr string) models.InboundMessage {
	return models.InboundMessage{UserID: userID, Type: models.MessageTypeInteractive, ButtonID: buttonID, CorrelationID: corr, MessageID: corr}
}

func actionKinds(actions []models.Action) []models.ActionKind {
	kinds := make([]models.ActionKind, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind
	}
	return kinds
}

func TestRoute_NewUserGetsWelcomeFirst(t *testing.T) {
	h := newHarness(t)

	actions := h.router.Route(context.Background(), textMsg("521", "hola", "wamid.1"))
	require.Equal(t, []models.ActionKind{models.ActionWelcome, models.ActionReply}, actionKinds(actions))

	welcome := actions[0]
	require.True(t, welcome.IsPaired())
	assert.Equal(t, models.OutboundKindText, welcome.Parts[0].Kind)
	assert.Equal(t, messaging.DefaultWelcomeText, welcome.Parts[0].Text.Body)
	assert.Equal(t, models.OutboundKindImage, welcome.Parts[1].Kind)
	assert.Equal(t, messaging.DefaultWelcomeImageURL, welcome.Parts[1].Image.URL)

	again := h.router.Route(context.Background(), textMsg("521", "hola", "wamid.2"))
	assert.Equal(t, []models.ActionKind{models.ActionReply}, actionKinds(again))
}

func TestRoute_ConcurrentFirstMessagesGreetOnce(t *testing.T) {
	h := newHarness(t)

	const n = 8
	var wg sync.WaitGroup
	var welcomes int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, a := range h.router.Route(context.Background(), textMsg("521", "hola", "wamid.x")) {
				if a.Kind == models.ActionWelcome {
					atomic.AddInt32(&welcomes, 1)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), welcomes)
}

func TestRoute_GreetingErrorSkipsWelcome(t *testing.T) {
	h := newHarness(t)
	h.router.greetings = failingGreetings{}

	actions := h.router.Route(context.Background(), textMsg("521", "hola", "wamid.1"))
	assert.Equal(t, []models.ActionKind{models.ActionReply}, actionKinds(actions))
}

func TestRoute_CatalogAliases(t *testing.T) {
	for _, body := range []string{"/catalogo", "/PRODUCTOS", "  /Catalogo \n"} {
		t.Run(body, func(t *testing.T) {
			h := newHarness(t)
			h.greeted(t, "521")

			actions := h.router.Route(context.Background(), textMsg("521", body, "wamid.c"))
			require.Equal(t, []models.ActionKind{models.ActionCatalog}, actionKinds(actions))
			assert.Equal(t, []string{"sku-1", "sku-2"}, actions[0].Parts[0].Catalog.Items)
			assert.Empty(t, h.responder.calls(), "catalog commands never reach the responder")
		})
	}
}

func TestRoute_CustomAliases(t *testing.T) {
	h := newHarness(t, WithCatalogAliases("menu"))
	h.greeted(t, "521")

	assert.Equal(t, []models.ActionKind{models.ActionCatalog}, actionKinds(h.router.Route(context.Background(), textMsg("521", "MENU", "c"))))
	assert.Equal(t, []models.ActionKind{models.ActionReply}, actionKinds(h.router.Route(context.Background(), textMsg("521", "/catalogo", "c"))))
}

func TestRoute_WhitespaceOnlyGetsEmptyNotice(t *testing.T) {
	h := newHarness(t)
	h.greeted(t, "521")

	for _, body := range []string{"", "   ", "\n\t"} {
		actions := h.router.Route(context.Background(), textMsg("521", body, "wamid.e"))
		require.Equal(t, []models.ActionKind{models.ActionEmpty}, actionKinds(actions))
		assert.Equal(t, messaging.DefaultEmptyText, actions[0].Parts[0].Text.Body)
	}
	assert.Empty(t, h.responder.calls())
}

func TestRoute_FreeformUsesRawText(t *testing.T) {
	h := newHarness(t)
	h.greeted(t, "521")

	actions := h.router.Route(context.Background(), textMsg("521", "  ¿Dónde Están?  ", "wamid.f"))
	require.Equal(t, []models.ActionKind{models.ActionReply}, actionKinds(actions))
	assert.Equal(t, "respuesta generada", actions[0].Parts[0].Text.Body)
	assert.Equal(t, []string{"  ¿Dónde Están?  "}, h.responder.calls())
}

func TestRoute_Buttons(t *testing.T) {
	h := newHarness(t)
	h.greeted(t, "521")
	ctx := context.Background()

	catalogActions := h.router.Route(ctx, buttonMsg("521", ButtonCatalog, "b1"))
	assert.Equal(t, []models.ActionKind{models.ActionCatalog}, actionKinds(catalogActions))

	info := h.router.Route(ctx, buttonMsg("521", ButtonInfo, "b2"))
	require.Equal(t, []models.ActionKind{models.ActionInfo}, actionKinds(info))
	assert.Equal(t, messaging.DefaultInfoText, info[0].Parts[0].Text.Body)

	assert.Empty(t, h.router.Route(ctx, buttonMsg("521", "unknown", "b3")))
	assert.Empty(t, h.responder.calls())
}

func TestRoute_UnknownButtonFromNewUserOnlyWelcomes(t *testing.T) {
	h := newHarness(t)
	actions := h.router.Route(context.Background(), buttonMsg("521", "whatever", "b"))
	assert.Equal(t, []models.ActionKind{models.ActionWelcome}, actionKinds(actions))
}

func TestRoute_GenerateInfo(t *testing.T) {
	h := newHarness(t, WithGenerateInfo(true), WithInfoPrompt("¿Quiénes son?"))
	h.greeted(t, "521")

	info := h.router.Route(context.Background(), buttonMsg("521", ButtonInfo, "b"))
	require.Len(t, info, 1)
	assert.Equal(t, "respuesta generada", info[0].Parts[0].Text.Body)
	assert.Equal(t, []string{"¿Quiénes son?"}, h.responder.calls())
}

func TestRoute_ImageOnKeywords(t *testing.T) {
	h := newHarness(t, WithImageOnKeywords(true))
	h.greeted(t, "521")
	ctx := context.Background()

	withImage := h.router.Route(ctx, textMsg("521", "Quiero ver una FOTO", "k1"))
	require.Len(t, withImage, 1)
	require.True(t, withImage[0].IsPaired())
	assert.Equal(t, models.OutboundKindText, withImage[0].Parts[0].Kind)
	assert.Equal(t, messaging.DefaultProductImageURL, withImage[0].Parts[1].Image.URL)

	plain := h.router.Route(ctx, textMsg("521", "hola", "k2"))
	require.Len(t, plain, 1)
	assert.False(t, plain[0].IsPaired())
}

func TestRoute_KeywordsIgnoredByDefault(t *testing.T) {
	h := newHarness(t)
	h.greeted(t, "521")

	actions := h.router.Route(context.Background(), textMsg("521", "muestra una foto", "k"))
	require.Len(t, actions, 1)
	assert.False(t, actions[0].IsPaired())
}

func TestRoute_CorrelationIDOnEveryPart(t *testing.T) {
	h := newHarness(t, WithImageOnKeywords(true))
	ctx := context.Background()

	msgs := []models.InboundMessage{
		textMsg("521", "ver producto", "wamid.reply-to"),
		buttonMsg("522", ButtonCatalog, "wamid.btn"),
		buttonMsg("523", ButtonInfo, "wamid.info"),
		textMsg("524", " ", "wamid.empty"),
		textMsg("525", "/productos", "wamid.cmd"),
	}
	for _, m := range msgs {
		actions := h.router.Route(ctx, m)
		require.NotEmpty(t, actions)
		for _, a := range actions {
			for _, p := range a.Parts {
				assert.Equal(t, m.CorrelationID, p.CorrelationID, "action %s", a.Kind)
				assert.Equal(t, m.UserID, p.To)
			}
		}
	}
}

func TestRoute_NilResponderDropsFreeform(t *testing.T) {
	r := NewRouter(store.NewInMemoryGreetingRepo(), nil, nil, nil)
	actions := r.Route(context.Background(), textMsg("521", "hola", "c"))
	assert.Equal(t, []models.ActionKind{models.ActionWelcome}, actionKinds(actions))
}

func TestHandle_DispatchesInOrder(t *testing.T) {
	h := newHarness(t)

	results := h.router.Handle(context.Background(), textMsg("521", "/catalogo", "wamid.1"))
	require.Len(t, results, 3)
	assert.Equal(t, []models.OutboundKind{models.OutboundKindText, models.OutboundKindImage, models.OutboundKindCatalog}, h.sender.Kinds())
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.resolver.calls))
	for _, r := range results {
		assert.True(t, r.OK())
	}
}

func TestHandle_WelcomePairRespectsDelay(t *testing.T) {
	sender := testutil.NewRecordingSender()
	delay := 30 * time.Millisecond
	r := NewRouter(store.NewInMemoryGreetingRepo(), messaging.NewComposer(nil), &stubResponder{reply: "ok"},
		messaging.NewDispatcher(sender, messaging.WithPartDelay(delay)))

	r.Handle(context.Background(), textMsg("521", "hola", "c"))
	sent := sender.Sent()
	require.Len(t, sent, 3)
	assert.GreaterOrEqual(t, sent[1].At.Sub(sent[0].At), delay)
}

func TestHandle_SendFailureContinues(t *testing.T) {
	h := newHarness(t)
	h.sender.FailKinds[models.OutboundKindImage] = true

	results := h.router.Handle(context.Background(), textMsg("521", "hola", "c"))
	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
}

func TestHandle_NoDispatcher(t *testing.T) {
	r := NewRouter(nil, nil, &stubResponder{}, nil)
	assert.Nil(t, r.Handle(context.Background(), textMsg("521", "hola", "c")))
}
