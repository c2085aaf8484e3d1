package upload_test

import (
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex/internal/upload"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestIdentity_Deterministic(t *testing.T) {
	md := upload.Metadata{
		"source": upload.String("data/Medical_book.pdf"),
		"page":   upload.Int(12),
	}
	first, err := upload.Identity("Acne is a common skin condition.", md)
	require.NoError(t, err)
	second, err := upload.Identity("Acne is a common skin condition.", md)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Regexp(t, hexID, first)
}

func TestIdentity_KeyOrderIndependent(t *testing.T) {
	a := upload.Metadata{}
	a["source"] = upload.String("a.pdf")
	a["page"] = upload.Int(1)
	a["scanned"] = upload.Bool(false)

	b := upload.Metadata{}
	b["scanned"] = upload.Bool(false)
	b["page"] = upload.Int(1)
	b["source"] = upload.String("a.pdf")

	idA, err := upload.Identity("text", a)
	require.NoError(t, err)
	idB, err := upload.Identity("text", b)
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
}

func TestIdentity_DiffersByContent(t *testing.T) {
	base := upload.Metadata{"source": upload.String("a.pdf"), "page": upload.Int(1)}

	tests := []struct {
		name string
		text string
		md   upload.Metadata
	}{
		{"Other text", "other text", base},
		{"Other page", "text", upload.Metadata{"source": upload.String("a.pdf"), "page": upload.Int(2)}},
		{"Other source", "text", upload.Metadata{"source": upload.String("b.pdf"), "page": upload.Int(1)}},
		{"String vs int", "text", upload.Metadata{"source": upload.String("a.pdf"), "page": upload.String("1")}},
		{"Extra key", "text", upload.Metadata{"source": upload.String("a.pdf"), "page": upload.Int(1), "lang": upload.String("en")}},
		{"No metadata", "text", nil},
	}

	baseID, err := upload.Identity("text", base)
	require.NoError(t, err)

	seen := map[string]string{baseID: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := upload.Identity(tt.text, tt.md)
			require.NoError(t, err)
			prev, dup := seen[id]
			assert.False(t, dup, "collides with %s", prev)
			seen[id] = tt.name
		})
	}
}

func TestIdentity_TextMetadataBoundary(t *testing.T) {
	// Moving characters between text and metadata must not produce the same id.
	a, err := upload.Identity("ab", upload.Metadata{})
	require.NoError(t, err)
	b, err := upload.Identity("a", upload.Metadata{"b": upload.String("")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestIdentity_NilAndEmptyMetadataMatch(t *testing.T) {
	a, err := upload.Identity("text", nil)
	require.NoError(t, err)
	b, err := upload.Identity("text", upload.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIdentity_MalformedMetadata(t *testing.T) {
	_, err := upload.Identity("text", upload.Metadata{"score": upload.Float(math.NaN())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, upload.ErrMalformedMetadata))

	_, err = upload.Identity("text", upload.Metadata{"empty": {}})
	assert.ErrorIs(t, err, upload.ErrMalformedMetadata)
}

func TestMetadataFrom(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		md, err := upload.MetadataFrom(map[string]any{
			"source": "a.pdf",
			"page":   3,
			"score":  0.5,
			"ocr":    true,
			"small":  uint8(7),
		})
		require.NoError(t, err)
		assert.Equal(t, upload.String("a.pdf"), md["source"])
		assert.Equal(t, upload.Int(3), md["page"])
		assert.Equal(t, upload.Float(0.5), md["score"])
		assert.Equal(t, upload.Bool(true), md["ocr"])
		assert.Equal(t, upload.Int(7), md["small"])
	})

	t.Run("Unsupported type", func(t *testing.T) {
		_, err := upload.MetadataFrom(map[string]any{"tags": []string{"a"}})
		var mErr *upload.MalformedMetadataError
		require.ErrorAs(t, err, &mErr)
		assert.Equal(t, "tags", mErr.Key)
	})

	t.Run("Non-finite float", func(t *testing.T) {
		_, err := upload.MetadataFrom(map[string]any{"x": math.Inf(1)})
		assert.ErrorIs(t, err, upload.ErrMalformedMetadata)
	})

	t.Run("Uint64 overflow", func(t *testing.T) {
		_, err := upload.MetadataFrom(map[string]any{"x": uint64(math.MaxUint64)})
		assert.ErrorIs(t, err, upload.ErrMalformedMetadata)
	})
}

func TestNewRecord(t *testing.T) {
	chunk := upload.Chunk{
		Text:     "Anemia is a deficiency of red blood cells.",
		Metadata: upload.Metadata{"source": upload.String("a.pdf"), "page": upload.Int(4)},
	}
	rec, err := upload.NewRecord(chunk, []float32{0.1, 0.2})
	require.NoError(t, err)

	wantID, err := upload.Identity(chunk.Text, chunk.Metadata)
	require.NoError(t, err)
	assert.Equal(t, wantID, rec.ID)
	assert.Equal(t, []float32{0.1, 0.2}, rec.Values)
	assert.Equal(t, upload.String(chunk.Text), rec.Metadata[upload.TextKey])
	assert.Equal(t, upload.Int(4), rec.Metadata["page"])

	_, ok := chunk.Metadata[upload.TextKey]
	assert.False(t, ok, "chunk metadata must not be mutated")
}

func TestIdentity_InvalidUTF8(t *testing.T) {
	// "\xff" and "\xfe" would both be encoded as U+FFFD and collide.
	_, err := upload.Identity("text", upload.Metadata{"source": upload.String("a\xff.pdf")})
	var mErr *upload.MalformedMetadataError
	require.ErrorAs(t, err, &mErr)
	assert.Contains(t, mErr.Reason, "UTF-8")

	_, err = upload.Identity("text", upload.Metadata{"sou\xferce": upload.String("a.pdf")})
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "sou\xferce", mErr.Key)

	_, err = upload.EstimateSize([]upload.Record{{ID: "x", Metadata: upload.Metadata{upload.TextKey: upload.String("\xfe")}}})
	assert.ErrorIs(t, err, upload.ErrMalformedMetadata)
}

func TestMetadataFrom_InvalidUTF8(t *testing.T) {
	_, err := upload.MetadataFrom(map[string]any{"source": "a\xff.pdf"})
	var mErr *upload.MalformedMetadataError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "source", mErr.Key)

	_, err = upload.MetadataFrom(map[string]any{"\xff": "a.pdf"})
	assert.ErrorIs(t, err, upload.ErrMalformedMetadata)
}
