package documents

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 80
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

var _ document.Transformer = (*Splitter)(nil)

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(n int) SplitterOption {
	return func(s *Splitter) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithOverlap sets how many characters consecutive chunks share.
func WithOverlap(n int) SplitterOption {
	return func(s *Splitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// withIDs replaces the chunk id generator in tests.
func withIDs(gen func() string) SplitterOption {
	return func(s *Splitter) { s.newID = gen }
}

// Splitter breaks documents into overlapping chunks, trying paragraph, line
// and word boundaries before falling back to single characters.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
	newID      func() string
}

func NewSplitter(opts ...SplitterOption) (*Splitter, error) {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: defaultSeparators,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", s.overlap, s.chunkSize)
	}
	return s, nil
}

// Transform splits every document. Chunks inherit the parent's metadata and
// get a chunk ordinal.
func (s *Splitter) Transform(ctx context.Context, src []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	out := make([]*schema.Document, 0, len(src))
	for _, doc := range src {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		for i, text := range s.SplitText(doc.Content) {
			meta := make(map[string]any, len(doc.MetaData)+1)
			maps.Copy(meta, doc.MetaData)
			meta[MetaChunk] = i
			out = append(out, &schema.Document{
				ID:       s.newID(),
				Content:  text,
				MetaData: meta,
			})
		}
	}
	return out, nil
}

// SplitText returns the chunks of text.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if length(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, sep)...)
	}
	return chunks
}

// merge joins small pieces into chunks of at most chunkSize characters,
// carrying up to overlap characters of the previous chunk forward.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := length(sep)
	var (
		chunks  []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, piece := range pieces {
		n := length(piece)
		if total+n+joinLen() > s.chunkSize {
			if len(current) > 0 {
				if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
					chunks = append(chunks, chunk)
				}
				for total > s.overlap || (total > 0 && total+n+joinLen() > s.chunkSize) {
					drop := length(current[0])
					if len(current) > 1 {
						drop += sepLen
					}
					total -= drop
					current = current[1:]
				}
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func length(s string) int { return utf8.RuneCountInString(s) }
