package messaging

import (
	"encoding/json"
	"testing"

	"github.com/BTreeMap/CatalogRelay/internal/catalog"
	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelopeJSON(t *testing.T, msg models.OutboundMessage) map[string]interface{} {
	t.Helper()
	env, err := BuildEnvelope(msg)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestBuildEnvelope_Text(t *testing.T) {
	out := envelopeJSON(t, NewComposer(nil).Text("521", "hola", "wamid.1"))

	assert.Equal(t, "whatsapp", out["messaging_product"])
	assert.Equal(t, "individual", out["recipient_type"])
	assert.Equal(t, "521", out["to"])
	assert.Equal(t, "text", out["type"])
	assert.Equal(t, map[string]interface{}{"preview_url": false, "body": "hola"}, out["text"])
	assert.Equal(t, map[string]interface{}{"message_id": "wamid.1"}, out["context"])
}

func TestBuildEnvelope_ImageWithoutCaptionOrContext(t *testing.T) {
	out := envelopeJSON(t, NewComposer(nil).Image("521", "https://x/y.png", "", ""))

	assert.Equal(t, "image", out["type"])
	assert.Equal(t, map[string]interface{}{"link": "https://x/y.png"}, out["image"])
	assert.NotContains(t, out, "context")
}

func TestBuildEnvelope_FallbackCatalog(t *testing.T) {
	msg := NewComposer(nil, WithCatalogID("CAT")).CatalogFromSnapshot("521", "wamid.2", catalog.FallbackSnapshot())
	out := envelopeJSON(t, msg)

	assert.Equal(t, "interactive", out["type"])
	assert.NotContains(t, out, "recipient_type")
	interactive := out["interactive"].(map[string]interface{})
	assert.Equal(t, "product_list", interactive["type"])
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "Catálogo completo"}, interactive["header"])

	action := interactive["action"].(map[string]interface{})
	assert.Equal(t, "CAT", action["catalog_id"])
	sections := action["sections"].([]interface{})
	require.Len(t, sections, 1)
	items := sections[0].(map[string]interface{})["product_items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, map[string]interface{}{"product_retailer_id": "default_id"}, items[0])
}

func TestBuildEnvelope_Errors(t *testing.T) {
	_, err := BuildEnvelope(models.OutboundMessage{Kind: models.OutboundKindText, Text: &models.TextContent{Body: "x"}})
	assert.ErrorIs(t, err, models.ErrEmptyRecipient)

	_, err = BuildEnvelope(models.OutboundMessage{Kind: models.OutboundKindImage, To: "1"})
	assert.Error(t, err)

	_, err = BuildEnvelope(models.OutboundMessage{Kind: "sticker", To: "1"})
	assert.Error(t, err)
}
