package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestClient_SendMessage(t *testing.T) {
	api := &fakeAPI{}
	c := newClientWithAPI(api, "+15550001111")

	sid, err := c.SendMessage(context.Background(), "+5215512345678", "Hola")
	require.NoError(t, err)
	assert.Equal(t, "SM123", sid)

	require.Len(t, api.params, 1)
	p := api.params[0]
	assert.Equal(t, "whatsapp:+5215512345678", *p.To)
	assert.Equal(t, "whatsapp:+15550001111", *p.From)
	assert.Equal(t, "Hola", *p.Body)
	assert.Nil(t, p.MediaUrl)
}

func TestClient_SendMedia(t *testing.T) {
	api := &fakeAPI{}
	c := newClientWithAPI(api, "whatsapp:+15550001111")

	_, err := c.SendMedia(context.Background(), "whatsapp:+521", "", "https://example.com/p.png")
	require.NoError(t, err)

	p := api.params[0]
	assert.Equal(t, "whatsapp:+521", *p.To)
	assert.Equal(t, "whatsapp:+15550001111", *p.From)
	assert.Nil(t, p.Body, "empty caption is omitted")
	require.NotNil(t, p.MediaUrl)
	assert.Equal(t, []string{"https://example.com/p.png"}, *p.MediaUrl)
}

func TestClient_SendError(t *testing.T) {
	c := newClientWithAPI(&fakeAPI{err: errors.New("401 unauthorized")}, "+1")
	_, err := c.SendMessage(context.Background(), "+2", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	_, err := NewClient()
	assert.Error(t, err)

	_, err = NewClient(WithAccountSID("AC1"), WithAuthToken("tok"))
	assert.Error(t, err, "from number is required")

	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("+1555"))
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+1555", c.fromWhats)
}

func TestMockClient(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	sid, err := mock.SendMessage(ctx, "12345", "Hello Test")
	require.NoError(t, err)
	assert.Equal(t, "SM1", sid)
	_, err = mock.SendMedia(ctx, "12345", "cap", "https://x/y.png")
	require.NoError(t, err)

	msgs := mock.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello Test", msgs[0].Body)
	assert.Equal(t, "https://x/y.png", msgs[1].MediaURL)

	mock.Err = errors.New("boom")
	_, err = mock.SendMessage(ctx, "1", "x")
	assert.Error(t, err)
}
