package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogFallbacksCounter(t *testing.T) {
	before := testutil.ToFloat64(CatalogFallbacks.WithLabelValues("empty"))
	CatalogFallbacks.WithLabelValues("empty").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CatalogFallbacks.WithLabelValues("empty")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	Dispatches.WithLabelValues("text", "sent").Inc()

	rr := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "catalogrelay_dispatch_total")
}
