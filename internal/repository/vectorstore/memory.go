// Package vectorstore holds the regulation chunk indexes.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"RiskApprove/internal/domain/repository"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultTopK  = 5
	snapshotFile = "regulations_index.json"
)

// ErrDimensionMismatch means the query and the stored vectors come from
// different embedding models.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

var _ repository.VectorStore = (*Memory)(nil)

type entry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	MetaData map[string]any `json:"metadata,omitempty"`
	Vector   []float64      `json:"vector"`
}

type snapshot struct {
	SavedAt time.Time `json:"saved_at"`
	Dim     int       `json:"dim"`
	Entries []entry   `json:"entries"`
}

// Memory is an exact cosine-similarity index held in memory. When dir is set
// every change is written to a JSON snapshot that NewMemory loads back.
type Memory struct {
	embedder embedding.Embedder
	path     string

	mu      sync.RWMutex
	entries []entry
	dim     int
}

// NewMemory returns an index backed by emb. An empty dir disables persistence.
func NewMemory(emb embedding.Embedder, dir string) (*Memory, error) {
	m := &Memory{embedder: emb}
	if dir == "" {
		return m, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create embeddings dir: %w", err)
	}
	m.path = filepath.Join(dir, snapshotFile)
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) load() error {
	b, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", m.path, err)
	}
	m.entries = snap.Entries
	m.dim = snap.Dim
	return nil
}

// persist writes the snapshot atomically. Callers hold mu.
func (m *Memory) persist() error {
	if m.path == "" {
		return nil
	}
	b, err := json.Marshal(snapshot{SavedAt: time.Now().UTC(), Dim: m.dim, Entries: m.entries})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Store embeds docs and appends them to the index.
func (m *Memory) Store(ctx context.Context, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	emb := indexer.GetCommonOptions(&indexer.Options{Embedding: m.embedder}, opts...).Embedding
	if emb == nil {
		return nil, errors.New("no embedder configured")
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := emb.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(docs))
	for i, d := range docs {
		if m.dim == 0 {
			m.dim = len(vectors[i])
		}
		if len(vectors[i]) != m.dim {
			return nil, fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(vectors[i]), m.dim)
		}
		m.entries = append(m.entries, entry{ID: d.ID, Content: d.Content, MetaData: d.MetaData, Vector: vectors[i]})
		ids[i] = d.ID
	}
	if err := m.persist(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Retrieve returns the TopK entries closest to query, best first, with the
// cosine similarity as score.
func (m *Memory) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := DefaultTopK
	o := retriever.GetCommonOptions(&retriever.Options{TopK: &topK, Embedding: m.embedder}, opts...)
	if o.TopK != nil {
		topK = *o.TopK
	}
	if o.Embedding == nil {
		return nil, errors.New("no embedder configured")
	}

	m.mu.RLock()
	empty := len(m.entries) == 0
	m.mu.RUnlock()
	if empty || topK <= 0 {
		return nil, nil
	}

	vectors, err := o.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	q := vectors[0]

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(q) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), m.dim)
	}

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(m.entries))
	for i := range m.entries {
		hits = append(hits, hit{idx: i, score: Cosine(q, m.entries[i].Vector)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	if o.ScoreThreshold != nil {
		kept := hits[:0]
		for _, h := range hits {
			if h.score >= *o.ScoreThreshold {
				kept = append(kept, h)
			}
		}
		hits = kept
	}

	out := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		e := m.entries[h.idx]
		meta := make(map[string]any, len(e.MetaData))
		for k, v := range e.MetaData {
			meta[k] = v
		}
		doc := &schema.Document{ID: e.ID, Content: e.Content, MetaData: meta}
		out = append(out, doc.WithScore(h.score))
	}
	return out, nil
}

// Reset drops every entry and the snapshot.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.dim = 0
	if m.path == "" {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *Memory) Close() error { return nil }

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
