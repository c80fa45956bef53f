package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKV() map[string]string {
	return map[string]string{
		KeyName:       "aspirin-demo",
		KeyVersion:    "3",
		KeyBackend:    "harmonic",
		KeyCutoff:     "4.5",
		KeyNumSpecies: "3",
		KeyTypeNames:  "H C O",
		KeyAllowTF32:  "0",
		"custom":      "kept",
	}
}

func TestParseMetadata(t *testing.T) {
	meta, err := ParseMetadata(validKV())
	require.NoError(t, err)

	assert.Equal(t, "aspirin-demo", meta.Name)
	assert.Equal(t, "3", meta.Version)
	assert.Equal(t, "harmonic", meta.Backend)
	assert.Equal(t, 4.5, meta.Cutoff)
	assert.Equal(t, 3, meta.NumSpecies)
	assert.Equal(t, []string{"H", "C", "O"}, meta.TypeNames)
	assert.False(t, meta.AllowTF32)
	assert.Equal(t, map[string]string{"custom": "kept"}, meta.Extra)
}

func TestParseMetadataErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(kv map[string]string)
	}{
		{"missing r_max", func(kv map[string]string) { delete(kv, KeyCutoff) }},
		{"missing n_species", func(kv map[string]string) { delete(kv, KeyNumSpecies) }},
		{"missing type_names", func(kv map[string]string) { delete(kv, KeyTypeNames) }},
		{"malformed r_max", func(kv map[string]string) { kv[KeyCutoff] = "four" }},
		{"negative r_max", func(kv map[string]string) { kv[KeyCutoff] = "-1" }},
		{"zero n_species", func(kv map[string]string) { kv[KeyNumSpecies] = "0" }},
		{"malformed allow_tf32", func(kv map[string]string) { kv[KeyAllowTF32] = "maybe" }},
		{"species count mismatch", func(kv map[string]string) { kv[KeyTypeNames] = "H C" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kv := validKV()
			tc.mutate(kv)
			_, err := ParseMetadata(kv)
			require.ErrorIs(t, err, ErrMetadata)
		})
	}
}

func TestMetadataKVRoundTrip(t *testing.T) {
	meta, err := ParseMetadata(validKV())
	require.NoError(t, err)

	back, err := ParseMetadata(meta.KV())
	require.NoError(t, err)
	// allow_tf32=0 renders as absent; everything else survives.
	assert.Equal(t, meta, back)
}

func TestMetadataKVExtraNeverClobbers(t *testing.T) {
	meta := &Metadata{
		Cutoff:     2.0,
		NumSpecies: 1,
		TypeNames:  []string{"Si"},
		Extra:      map[string]string{KeyCutoff: "999"},
	}
	kv := meta.KV()
	assert.Equal(t, "2", kv[KeyCutoff])
}
