package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSenderStructured(t *testing.T) {
	raw := map[string]any{
		"from": map[string]any{
			"uid":        "u42",
			"collection": "provider_business",
		},
	}

	ref := ResolveSender(raw)
	require.NotNil(t, ref)
	assert.Equal(t, "u42", ref.ID)
	assert.Equal(t, CategoryProviderBusiness, ref.Category)
	assert.False(t, ref.Legacy)
}

func TestResolveSenderLegacyFlat(t *testing.T) {
	raw := map[string]any{
		"fromId":         "u7",
		"fromCollection": "client_profile",
	}

	ref := ResolveSender(raw)
	require.NotNil(t, ref)
	assert.Equal(t, "u7", ref.ID)
	assert.Equal(t, CategoryClientProfile, ref.Category)
	assert.True(t, ref.Legacy)
}

func TestResolveSenderPayloadEmbedded(t *testing.T) {
	raw := map[string]any{
		"payload": map[string]any{
			"fromId":         "u9",
			"fromCollection": "provider_individual",
			"description":    "tile work",
		},
	}

	ref := ResolveSender(raw)
	require.NotNil(t, ref)
	assert.Equal(t, "u9", ref.ID)
	assert.True(t, ref.Legacy)
}

func TestResolveSenderStructuredWinsOverLegacy(t *testing.T) {
	raw := map[string]any{
		"from": map[string]any{
			"uid":        "structured",
			"collection": "client_profile",
		},
		"fromId":         "legacy",
		"fromCollection": "client_profile",
	}

	ref := ResolveSender(raw)
	require.NotNil(t, ref)
	assert.Equal(t, "structured", ref.ID)
}

func TestResolveSenderMalformedIsNil(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"missing uid", map[string]any{"from": map[string]any{"collection": "client_profile"}}},
		{"unknown collection", map[string]any{"from": map[string]any{"uid": "u1", "collection": "aliens"}}},
		{"uid wrong type", map[string]any{"from": map[string]any{"uid": 42, "collection": "client_profile"}}},
		{"legacy missing collection", map[string]any{"fromId": "u1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, ResolveSender(tc.raw))
		})
	}
}
