package billing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryMetadataRoundTrip(t *testing.T) {
	var e HistoryEntry
	assert.Nil(t, e.Metadata(), "no metadata means null, not empty object")

	e.EncodeMetadata(map[string]any{"invoice_id": "in_1", "downgrade_to": "basic"})
	raw := e.Metadata()
	require.NotNil(t, raw)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "in_1", decoded["invoice_id"])
	assert.Equal(t, "basic", decoded["downgrade_to"])
}

func TestHistoryMetadataEmptyMapIsOmitted(t *testing.T) {
	var e HistoryEntry
	e.EncodeMetadata(nil)
	assert.Empty(t, e.MetadataJSON)
	e.EncodeMetadata(map[string]any{})
	assert.Empty(t, e.MetadataJSON)
}
