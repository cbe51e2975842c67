package messaging

import (
	"testing"

	"github.com/BTreeMap/CatalogRelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeRecipient(t *testing.T) {
	got, err := CanonicalizeRecipient("+52 (155) 1234-5678")
	require.NoError(t, err)
	assert.Equal(t, "5215512345678", got)

	_, err = CanonicalizeRecipient("")
	assert.ErrorIs(t, err, models.ErrEmptyRecipient)

	_, err = CanonicalizeRecipient("abc")
	assert.Error(t, err)

	_, err = CanonicalizeRecipient("12345")
	assert.Error(t, err)
}
