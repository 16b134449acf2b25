package backup

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Extension(t *testing.T) {
	plain, err := NewCodec("")
	require.NoError(t, err)
	assert.Equal(t, ".json", plain.Extension())

	zst, err := NewCodec(CompressionZstd)
	require.NoError(t, err)
	assert.Equal(t, ".json.zst", zst.Extension())
}

func TestCodec_PlainIsIndentedJSON(t *testing.T) {
	codec, err := NewCodec(CompressionNone)
	require.NoError(t, err)

	data, err := codec.Encode(Snapshot{
		ID:        "id",
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Sections:  map[string]json.RawMessage{"herramientas": json.RawMessage(`[]`)},
	})
	require.NoError(t, err)

	assert.True(t, bytes.Contains(data, []byte("\n  \"sections\"")))
	assert.NotContains(t, string(data), `"error"`, "error is omitted when empty")
}

func TestCodec_ZstdCompressesRepetitiveData(t *testing.T) {
	codec, err := NewCodec(CompressionZstd)
	require.NoError(t, err)

	items := make([]map[string]any, 500)
	for i := range items {
		items[i] = map[string]any{"nombre": "Martillo", "estado": "disponible"}
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	snap := Snapshot{ID: "id", Sections: map[string]json.RawMessage{"herramientas": raw}}
	data, err := codec.Encode(snap)
	require.NoError(t, err)
	assert.Less(t, len(data), len(raw))

	decoded, err := Decode("backup_20250301_000000_000000000.json.zst", data)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(decoded.Sections["herramientas"]))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode("backup_20250301_000000_000000000.json", []byte("nope"))
	assert.Error(t, err)

	_, err = Decode("backup_20250301_000000_000000000.json.zst", []byte("nope"))
	assert.Error(t, err)
}

func TestCodec_WritesMarkupCharactersVerbatim(t *testing.T) {
	codec, err := NewCodec(CompressionNone)
	require.NoError(t, err)

	data, err := codec.Encode(Snapshot{
		ID:       "id",
		Sections: map[string]json.RawMessage{"herramientas": json.RawMessage(`[{"nombre":"Llave <12mm> & dado"}]`)},
	})
	require.NoError(t, err)

	assert.Contains(t, string(data), `Llave <12mm> & dado`)
	assert.NotContains(t, string(data), `\u003c`)
	assert.False(t, bytes.HasSuffix(data, []byte("\n")))
}
