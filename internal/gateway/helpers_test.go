package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wombat2006/techdev-sub003/internal/consult"
	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
	"github.com/wombat2006/techdev-sub003/internal/store"
	"github.com/wombat2006/techdev-sub003/internal/tool/tooltest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubConsulter records consult requests and replays a canned response.
type stubConsulter struct {
	mu   sync.Mutex
	got  []consult.Request
	resp consult.Response
	err  error
}

func (s *stubConsulter) Consult(_ context.Context, req consult.Request) (consult.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, req)
	return s.resp, s.err
}

func (s *stubConsulter) last(t *testing.T) consult.Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		t.Fatal("no consult request captured")
	}
	return s.got[len(s.got)-1]
}

// stubHistory is an in-memory HistoryStore.
type stubHistory struct {
	pingErr   error
	records   []store.Record
	recentErr error

	mu       sync.Mutex
	gotLimit int
}

func (s *stubHistory) Ping(context.Context) error { return s.pingErr }

func (s *stubHistory) Recent(_ context.Context, n int) ([]store.Record, error) {
	s.mu.Lock()
	s.gotLimit = n
	s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.records, nil
}

func (s *stubHistory) lastLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gotLimit
}

// newTestGateway builds a gateway over stub collaborators and the shared
// test catalog. mut may adjust settings and collaborators before
// construction.
func newTestGateway(t *testing.T, mut func(*Config, *Deps)) (*Gateway, *stubConsulter) {
	t.Helper()

	stub := &stubConsulter{
		resp: consult.Response{
			Engine:   "claude",
			Tool:     "claude_code",
			Text:     "stub answer",
			Usage:    stream.Usage{InputTokens: 100, OutputTokens: 40, TotalTokens: 140, Exact: true},
			Duration: 1200 * time.Millisecond,
		},
	}

	cfg := Config{}
	deps := Deps{
		Consulter:  stub,
		Tools:      tooltest.NewRegistry(t),
		History:    &stubHistory{},
		Hub:        NewHub(discardLogger()),
		Prometheus: prometheus.NewRegistry(),
		Logger:     discardLogger(),
	}
	if mut != nil {
		mut(&cfg, &deps)
	}

	return New(cfg, deps), stub
}

// serve routes one request through the gateway mux without binding a
// listener.
func serve(t *testing.T, g *Gateway, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rec, req)
	return rec
}
