package postgres

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBytes(t *testing.T) {
	b, err := responseBytes(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = responseBytes([]byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(b))

	b, err = responseBytes(map[string]int{"deletedCount": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"deletedCount":2}`, string(b))

	_, err = responseBytes(func() {})
	assert.Error(t, err)
}

func TestNormalizeReplay(t *testing.T) {
	assert.Equal(t, http.StatusOK, normalizeReplayStatus(0))
	assert.Equal(t, http.StatusCreated, normalizeReplayStatus(http.StatusCreated))
	assert.Equal(t, "application/json", normalizeReplayContentType(""))
	assert.Equal(t, "text/csv", normalizeReplayContentType("text/csv"))
}
