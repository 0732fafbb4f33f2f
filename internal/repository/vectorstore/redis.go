package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"RiskApprove/internal/domain/repository"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldContent  = "content"
	fieldSource   = "source"
	fieldMetadata = "metadata"
	fieldVector   = "embedding"
	fieldDistance = "vector_distance"
)

var _ repository.VectorStore = (*Redis)(nil)

// Redis stores chunks as hashes under "<index>:<id>" and searches them with a
// RediSearch HNSW index using cosine distance. The index is created on the
// first Store, sized by the embedding dimension. The client must speak RESP2.
type Redis struct {
	client   redis.UniversalClient
	embedder embedding.Embedder
	index    string
	prefix   string

	mu      sync.Mutex
	created bool
}

func NewRedis(client redis.UniversalClient, emb embedding.Embedder, index string) *Redis {
	return &Redis{
		client:   client,
		embedder: emb,
		index:    index,
		prefix:   index + ":",
	}
}

func (r *Redis) ensureIndex(ctx context.Context, dim int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.created {
		return nil
	}
	if _, err := r.client.FTInfo(ctx, r.index).Result(); err == nil {
		r.created = true
		return nil
	} else if !isUnknownIndex(err) {
		return fmt.Errorf("ft.info %s: %w", r.index, err)
	}

	err := r.client.FTCreate(ctx, r.index,
		&redis.FTCreateOptions{OnHash: true, Prefix: []interface{}{r.prefix}},
		&redis.FieldSchema{FieldName: fieldContent, FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: fieldSource, FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{
			FieldName: fieldVector,
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{HNSWOptions: &redis.FTHNSWOptions{
				Type:           "FLOAT32",
				Dim:            dim,
				DistanceMetric: "COSINE",
			}},
		},
	).Err()
	if err != nil {
		return fmt.Errorf("ft.create %s: %w", r.index, err)
	}
	r.created = true
	return nil
}

// Store embeds docs and writes one hash per document in a single pipeline.
func (r *Redis) Store(ctx context.Context, docs []*schema.Document, opts ...indexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	emb := indexer.GetCommonOptions(&indexer.Options{Embedding: r.embedder}, opts...).Embedding
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
	if err := r.ensureIndex(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	pipe := r.client.Pipeline()
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		meta, err := json.Marshal(d.MetaData)
		if err != nil {
			return nil, fmt.Errorf("encode metadata of %s: %w", id, err)
		}
		source, _ := d.MetaData[fieldSource].(string)
		pipe.HSet(ctx, r.prefix+id, map[string]interface{}{
			fieldContent:  d.Content,
			fieldSource:   source,
			fieldMetadata: string(meta),
			fieldVector:   encodeVector(vectors[i]),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("write documents: %w", err)
	}
	return ids, nil
}

// Retrieve runs a KNN query. The score is 1 - cosine distance.
func (r *Redis) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := DefaultTopK
	o := retriever.GetCommonOptions(&retriever.Options{TopK: &topK, Embedding: r.embedder}, opts...)
	if o.TopK != nil {
		topK = *o.TopK
	}
	if o.Embedding == nil {
		return nil, errors.New("no embedder configured")
	}
	if topK <= 0 {
		return nil, nil
	}

	vectors, err := o.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	res, err := r.client.FTSearchWithArgs(ctx, r.index,
		fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, fieldVector, fieldDistance),
		&redis.FTSearchOptions{
			Params:         map[string]interface{}{"vec": encodeVector(vectors[0])},
			DialectVersion: 2,
			Return: []redis.FTSearchReturn{
				{FieldName: fieldContent},
				{FieldName: fieldMetadata},
				{FieldName: fieldDistance},
			},
			SortBy: []redis.FTSearchSortBy{{FieldName: fieldDistance, Asc: true}},
			Limit:  topK,
		},
	).Result()
	if err != nil {
		return nil, fmt.Errorf("ft.search %s: %w", r.index, err)
	}

	out := make([]*schema.Document, 0, len(res.Docs))
	for _, d := range res.Docs {
		doc := &schema.Document{
			ID:       strings.TrimPrefix(d.ID, r.prefix),
			Content:  d.Fields[fieldContent],
			MetaData: map[string]any{},
		}
		if raw := d.Fields[fieldMetadata]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &doc.MetaData); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", d.ID, err)
			}
		}
		distance, err := strconv.ParseFloat(d.Fields[fieldDistance], 64)
		if err != nil {
			return nil, fmt.Errorf("parse distance of %s: %w", d.ID, err)
		}
		score := 1 - distance
		if o.ScoreThreshold != nil && score < *o.ScoreThreshold {
			continue
		}
		out = append(out, doc.WithScore(score))
	}
	return out, nil
}

// Reset drops the index together with its documents.
func (r *Redis) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.client.FTDropIndexWithArgs(ctx, r.index, &redis.FTDropIndexOptions{DeleteDocs: true}).Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("ft.dropindex %s: %w", r.index, err)
	}
	r.created = false
	return nil
}

// Count returns the number of indexed documents, 0 when the index is absent.
func (r *Redis) Count(ctx context.Context) (int, error) {
	info, err := r.client.FTInfo(ctx, r.index).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("ft.info %s: %w", r.index, err)
	}
	return info.NumDocs, nil
}

// Close is a no-op; the client is owned by the caller.
func (r *Redis) Close() error { return nil }

func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// encodeVector packs v as little-endian float32, the layout RediSearch expects.
func encodeVector(v []float64) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(float32(f)))
	}
	return b
}
