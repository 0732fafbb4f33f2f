package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"
	"RiskApprove/pkg/cache"
	xhttp "RiskApprove/pkg/http"
	applogger "RiskApprove/pkg/logger"
	"RiskApprove/pkg/metrics"
)

type stubProvider struct {
	name  string
	bars  []models.Bar
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) History(context.Context, string, repository.HistoryQuery) ([]models.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func someBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{Time: time.Unix(int64(i)*86400, 0).UTC(), Close: float64(100 + i)}
	}
	return bars
}

func query() repository.HistoryQuery {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return repository.HistoryQuery{Start: end.AddDate(-1, 0, 0), End: end}
}

func TestChain(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		providers []*stubProvider
		wantLen   int
		wantErr   bool
		wantCalls []int
	}{
		{
			name:      "first provider wins",
			providers: []*stubProvider{{name: "a", bars: someBars(3)}, {name: "b", bars: someBars(5)}},
			wantLen:   3,
			wantCalls: []int{1, 0},
		},
		{
			name:      "falls through on error",
			providers: []*stubProvider{{name: "a", err: boom}, {name: "b", bars: someBars(5)}},
			wantLen:   5,
			wantCalls: []int{1, 1},
		},
		{
			name:      "falls through on empty",
			providers: []*stubProvider{{name: "a"}, {name: "b", bars: someBars(2)}},
			wantLen:   2,
			wantCalls: []int{1, 1},
		},
		{
			name:      "all failing is an error",
			providers: []*stubProvider{{name: "a", err: boom}, {name: "b", err: boom}},
			wantErr:   true,
			wantCalls: []int{1, 1},
		},
		{
			name:      "error then empty is empty",
			providers: []*stubProvider{{name: "a", err: boom}, {name: "b"}},
			wantLen:   0,
			wantCalls: []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := make([]repository.PriceHistory, len(tt.providers))
			for i, p := range tt.providers {
				ps[i] = p
			}
			chain := NewChain(applogger.Nop(), metrics.Nop{}, ps...)

			bars, err := chain.History(context.Background(), "AAPL", query())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, boom)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, bars, tt.wantLen)
			for i, p := range tt.providers {
				assert.Equal(t, tt.wantCalls[i], p.calls, "provider %s", p.name)
			}
		})
	}
}

func TestCached(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()

	inner := &stubProvider{name: "stub", bars: someBars(4)}
	c := NewCached(inner, mc, time.Minute)

	for i := 0; i < 3; i++ {
		bars, err := c.History(context.Background(), "AAPL", query())
		require.NoError(t, err)
		require.Len(t, bars, 4)
		assert.Equal(t, 103.0, bars[3].Close)
	}
	assert.Equal(t, 1, inner.calls)

	empty := &stubProvider{name: "empty"}
	ce := NewCached(empty, mc, time.Minute)
	for i := 0; i < 2; i++ {
		bars, err := ce.History(context.Background(), "ZZZZ", query())
		require.NoError(t, err)
		assert.Empty(t, bars)
	}
	assert.Equal(t, 2, empty.calls, "empty results are not cached")
}

func TestYahooChart(t *testing.T) {
	const body = `{"chart":{"result":[{"timestamp":[1700086400,1700000000,1700172800],
		"indicators":{"quote":[{"open":[11,10,null],"high":[12,11,null],"low":[10,9,null],
		"close":[11.5,10.5,null],"volume":[2000,1000,null]}]}}],"error":null}}`

	var gotPath, gotInterval, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := xhttp.NewClient(xhttp.WithTimeout(time.Second), xhttp.WithHeader("User-Agent", "Mozilla/5.0"))
	p := NewYahooChart(client, srv.URL+"/")

	bars, err := p.History(context.Background(), "BRK.B", query())
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/BRK.B", gotPath)
	assert.Equal(t, "1d", gotInterval)
	assert.Equal(t, "Mozilla/5.0", gotUA)

	require.Len(t, bars, 2, "null close is skipped")
	assert.Equal(t, 10.5, bars[0].Close, "bars are sorted oldest first")
	assert.Equal(t, 11.5, bars[1].Close)
	assert.Equal(t, int64(2000), bars[1].Volume)
}

func TestYahooChart_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	p := NewYahooChart(xhttp.NewClient(), srv.URL)
	_, err := p.History(context.Background(), "NOPE", query())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found")
}

func TestYahooChart_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewYahooChart(xhttp.NewClient(), srv.URL)
	_, err := p.History(context.Background(), "AAPL", query())

	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}
