package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"RiskApprove/internal/domain/models"
	domrepo "RiskApprove/internal/domain/repository"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
)

type historyResponse struct {
	bars []models.Bar
	err  error
}

// fakeHistory answers calls in order, repeating the last response.
type fakeHistory struct {
	mu        sync.Mutex
	bySymbol  map[string][]historyResponse
	responses []historyResponse
	queries   []domrepo.HistoryQuery
}

func (f *fakeHistory) Name() string { return "fake" }

func (f *fakeHistory) History(_ context.Context, symbol string, q domrepo.HistoryQuery) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	rs := f.responses
	if f.bySymbol != nil {
		rs = f.bySymbol[symbol]
	}
	if len(rs) == 0 {
		return nil, errors.New("no response configured")
	}
	r := rs[0]
	if len(rs) > 1 {
		rs = rs[1:]
	}
	if f.bySymbol != nil {
		f.bySymbol[symbol] = rs
	} else {
		f.responses = rs
	}
	return r.bars, r.err
}

type fakeMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	checks      map[bool]int
	violations  map[string]int
	chunks      int
	rebuilds    map[bool]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		predictions: map[string]int{},
		checks:      map[bool]int{},
		violations:  map[string]int{},
		rebuilds:    map[bool]int{},
	}
}

func (m *fakeMetrics) RecordPrediction(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[source]++
}

func (m *fakeMetrics) RecordHistoryFetch(string, bool, float64) {}

func (m *fakeMetrics) RecordComplianceCheck(compliant bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[compliant]++
}

func (m *fakeMetrics) RecordViolation(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[kind]++
}

func (m *fakeMetrics) SetIndexedChunks(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = n
}

func (m *fakeMetrics) RecordIndexRebuild(ok bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds[ok]++
}

type memPredictions struct {
	mu    sync.Mutex
	saved []*models.Prediction
}

func (s *memPredictions) Save(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
	return nil
}

func (s *memPredictions) Recent(_ context.Context, symbol string, limit int) ([]models.StoredPrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StoredPrediction
	for i := len(s.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if s.saved[i].Symbol == symbol {
			out = append(out, models.StoredPrediction{Prediction: *s.saved[i], SourceLabel: string(s.saved[i].Source)})
		}
	}
	return out, nil
}

func (s *memPredictions) Close() error { return nil }

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *memAudit) Record(_ context.Context, e *models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *e)
	return nil
}

func (a *memAudit) Recent(_ context.Context, limit int) ([]models.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit > len(a.entries) {
		limit = len(a.entries)
	}
	return a.entries[:limit], nil
}

func (a *memAudit) Close() error { return nil }

type publishedEvent struct {
	topic   string
	key     string
	payload interface{}
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, topic, key string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{topic: topic, key: key, payload: payload})
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type fakeLoader struct {
	mu    sync.Mutex
	docs  []*schema.Document
	err   error
	calls int
}

func (f *fakeLoader) Load(_ context.Context, _ document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.docs, f.err
}

func (f *fakeLoader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// keywordEmbedder maps text onto keyword counts.
type keywordEmbedder struct {
	keywords []string
}

func (k keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
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
