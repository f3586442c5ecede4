package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/taskboard/internal/channel"
	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/internal/runtime"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
	logpkg "github.com/rzbill/taskboard/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *channelsvc.Service) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{Config: cfgpkg.Default().Relay})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	svc := channelsvc.New(rt, logger)
	return New(rt, svc, logger), svc
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("status: %d body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("cors header missing")
	}
}

func TestPublishAndStats(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"channel":"board","event":"new-task","sender":"cli","data":{"id":"a"}}`
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/channels/publish", strings.NewReader(body)))
	if w.Code != http.StatusAccepted {
		t.Fatalf("publish status %d: %s", w.Code, w.Body.String())
	}
	var pub struct{ Seq uint64 }
	_ = json.Unmarshal(w.Body.Bytes(), &pub)
	if pub.Seq != 1 {
		t.Fatalf("seq = %d", pub.Seq)
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats status %d", w.Code)
	}
	var stats struct {
		Channels []channelsvc.ChannelStats `json:"channels"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats.Channels) != 1 || stats.Channels[0].Name != "board" || stats.Channels[0].LastSeq != 1 {
		t.Fatalf("unexpected stats: %s", w.Body.String())
	}
}

func TestPublishRejects(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		method, body string
		want         int
	}{
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, "{", http.StatusBadRequest},
		{http.MethodPost, `{"channel":"board"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, "/v1/channels/publish", strings.NewReader(tt.body)))
		if w.Code != tt.want {
			t.Fatalf("%s %q: status %d want %d", tt.method, tt.body, w.Code, tt.want)
		}
	}
}

func TestSubscribeBadFilter(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/channels/subscribe?channel=board&filter=event%3D%3D", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestSubscribeSSE(t *testing.T) {
	s, svc := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/channels/subscribe?channel=board", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	// headers arrive once the subscription is pinned
	if _, err := svc.Publish(ctx, channel.Message{Channel: "board", Event: "edit-task", Sender: "p", Data: json.RawMessage(`"a"`)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	sc := bufio.NewScanner(res.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		m, err := channel.Decode([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.Event != "edit-task" || string(m.Data) != `"a"` {
			t.Fatalf("unexpected event %+v", m)
		}
		return
	}
	t.Fatalf("stream ended: %v", sc.Err())
}
