package history_repo

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *HistoryRepo {
	t.Helper()
	repo, err := NewHistoryRepo(nil)
	require.NoError(t, err)
	return repo
}

func TestEncodeChanges_SmallPayloadStaysPlainJSON(t *testing.T) {
	repo := newTestRepo(t)

	data, err := repo.encodeChanges(map[string]any{"status": "confirmed"})
	require.NoError(t, err)

	assert.False(t, bytes.HasPrefix(data, zstdMagic))
	assert.True(t, json.Valid(data))

	decoded, err := repo.decodeChanges(data)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", decoded["status"])
}

func TestEncodeChanges_LargePayloadCompressed(t *testing.T) {
	repo := newTestRepo(t)

	changes := map[string]any{
		"shipping_address": strings.Repeat("22 Acacia Avenue, Floor 3; ", 100),
		"comment":          strings.Repeat("rescheduled ", 50),
	}

	data, err := repo.encodeChanges(changes)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, zstdMagic))

	raw, err := json.Marshal(changes)
	require.NoError(t, err)
	assert.Less(t, len(data), len(raw))

	decoded, err := repo.decodeChanges(data)
	require.NoError(t, err)
	assert.Equal(t, changes["comment"], decoded["comment"])
	assert.Equal(t, changes["shipping_address"], decoded["shipping_address"])
}

func TestEncodeChanges_EmptyPayloadIsNil(t *testing.T) {
	repo := newTestRepo(t)

	data, err := repo.encodeChanges(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	decoded, err := repo.decodeChanges(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
