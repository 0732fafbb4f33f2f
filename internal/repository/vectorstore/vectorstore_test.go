package vectorstore

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto keyword counts so similarity is predictable.
type keywordEmbedder struct {
	keywords []string
	err      error
	calls    int
}

func (k *keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float64, len(k.keywords))
		for j, kw := range k.keywords {
			v[j] = float64(strings.Count(lower, kw)) + 0.01
		}
		out[i] = v
	}
	return out, nil
}

func newEmbedder() *keywordEmbedder {
	return &keywordEmbedder{keywords: []string{"concentration", "risk", "cash"}}
}

func regulationDocs() []*schema.Document {
	return []*schema.Document{
		{ID: "a", Content: "Concentration limits apply to any single stock concentration.", MetaData: map[string]any{"source": "a.txt"}},
		{ID: "b", Content: "High risk assets carry a risk limit.", MetaData: map[string]any{"source": "b.txt"}},
		{ID: "c", Content: "Cash buffers must be held.", MetaData: map[string]any{"source": "c.txt"}},
	}
}

func TestMemory_StoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(newEmbedder(), "")
	require.NoError(t, err)

	ids, err := m.Store(ctx, regulationDocs())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := m.Retrieve(ctx, "what is the concentration rule", retriever.WithTopK(2))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "a.txt", docs[0].MetaData["source"])
	assert.Greater(t, docs[0].Score(), docs[1].Score())
	assert.LessOrEqual(t, docs[0].Score(), 1.0+1e-9)
}

func TestMemory_RetrieveDefaultsAndThreshold(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(newEmbedder(), "")
	require.NoError(t, err)

	docs, err := m.Retrieve(ctx, "anything")
	require.NoError(t, err)
	assert.Empty(t, docs, "empty index returns nothing")

	_, err = m.Store(ctx, regulationDocs())
	require.NoError(t, err)

	docs, err = m.Retrieve(ctx, "risk")
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, "b", docs[0].ID)

	docs, err = m.Retrieve(ctx, "risk", retriever.WithScoreThreshold(0.9))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	emb := newEmbedder()
	m, err := NewMemory(emb, "")
	require.NoError(t, err)
	_, err = m.Store(ctx, regulationDocs())
	require.NoError(t, err)

	emb.err = errors.New("provider down")
	_, err = m.Retrieve(ctx, "risk")
	require.Error(t, err)
	_, err = m.Store(ctx, regulationDocs())
	require.Error(t, err)

	emb.err = nil
	emb.keywords = []string{"risk"}
	_, err = m.Retrieve(ctx, "risk")
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemory_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := NewMemory(newEmbedder(), dir)
	require.NoError(t, err)
	_, err = m.Store(ctx, regulationDocs())
	require.NoError(t, err)

	reopened, err := NewMemory(newEmbedder(), dir)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := reopened.Retrieve(ctx, "cash", retriever.WithTopK(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c", docs[0].ID)
	assert.Equal(t, "c.txt", docs[0].MetaData["source"])

	require.NoError(t, reopened.Reset(ctx))
	n, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	afterReset, err := NewMemory(newEmbedder(), dir)
	require.NoError(t, err)
	n, err = afterReset.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEncodeVector(t *testing.T) {
	v := []float64{0.5, -1.25, 3}
	b := encodeVector(v)
	require.Len(t, b, 12)
	for i, want := range v {
		got := math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		assert.Equal(t, float32(want), got)
	}
}

func TestIsUnknownIndex(t *testing.T) {
	assert.True(t, isUnknownIndex(errors.New("Unknown Index name")))
	assert.True(t, isUnknownIndex(errors.New("regulations: no such index")))
	assert.False(t, isUnknownIndex(errors.New("connection refused")))
	assert.False(t, isUnknownIndex(nil))
}
