package messaging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudAPISender_Send(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, `{"messaging_product":"whatsapp","contacts":[{"input":"521","wa_id":"521"}],"messages":[{"id":"wamid.out.1"}]}`)
	}))
	defer srv.Close()

	s, err := NewCloudAPISender(
		WithGraphBaseURL(srv.URL+"/"),
		WithGraphVersion("v21.0"),
		WithPhoneNumberID("PNID"),
		WithAccessToken("tok"),
	)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/v21.0/PNID/messages", s.Endpoint())

	id, err := s.Send(context.Background(), NewComposer(nil).Text("521", "hola", "wamid.in"))
	require.NoError(t, err)
	assert.Equal(t, "wamid.out.1", id)
	assert.Equal(t, "/v21.0/PNID/messages", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "text", gotBody["type"])
}

func TestCloudAPISender_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid OAuth access token."}}`)
	}))
	defer srv.Close()

	s, err := NewCloudAPISender(WithGraphBaseURL(srv.URL), WithPhoneNumberID("P"), WithAccessToken("bad"))
	require.NoError(t, err)

	_, err = s.Send(context.Background(), NewComposer(nil).Text("521", "x", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSendFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestCloudAPISender_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewCloudAPISender(WithGraphBaseURL(srv.URL), WithPhoneNumberID("P"), WithAccessToken("t"), WithSendTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = s.Send(context.Background(), NewComposer(nil).Text("521", "x", ""))
	assert.ErrorIs(t, err, models.ErrSendFailed)
}

func TestCloudAPISender_InvalidMessage(t *testing.T) {
	s, err := NewCloudAPISender(WithPhoneNumberID("P"), WithAccessToken("t"))
	require.NoError(t, err)
	_, err = s.Send(context.Background(), models.OutboundMessage{Kind: models.OutboundKindText})
	assert.ErrorIs(t, err, models.ErrSendFailed)
}

func TestNewCloudAPISender_Config(t *testing.T) {
	t.Setenv("GRAPH_BASE_URL", "")
	t.Setenv("VERSION", "")
	t.Setenv("PHONE_NUMBER_ID", "")
	t.Setenv("ACCESS_TOKEN", "")

	_, err := NewCloudAPISender()
	assert.Error(t, err)

	_, err = NewCloudAPISender(WithPhoneNumberID("P"))
	assert.Error(t, err, "access token is required")

	t.Setenv("PHONE_NUMBER_ID", "12345")
	t.Setenv("ACCESS_TOKEN", "env-token")
	s, err := NewCloudAPISender()
	require.NoError(t, err)
	assert.Equal(t, "https://graph.facebook.com/v20.0/12345/messages", s.Endpoint())
	assert.Equal(t, "env-token", s.accessToken)
}
