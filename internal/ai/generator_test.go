package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"tradesxbt/config"
	"tradesxbt/logger"
)

func testLogger() *logger.Log {
	l, _ := test.NewNullLogger()
	return &logger.Log{Logger: l}
}

func testConfig(url string) config.AIConfig {
	cfg := config.Default().AI
	cfg.Timeout = 2 * time.Second
	cfg.FallbackChunkDelay = 0
	cfg.Perplexity.URL = url
	cfg.Perplexity.APIKey = "pplx"
	cfg.Groq.URL = url
	cfg.Groq.APIKey = "groq"
	return cfg
}

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !body.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, strings.Join(chunks, ""))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	}))
}

func TestFallbackWithoutCredentials(t *testing.T) {
	cfg := config.Default().AI
	cfg.FallbackChunkDelay = 0
	g := New(cfg, testLogger())
	if len(g.Available()) != 0 {
		t.Fatalf("expected no backends, got %v", g.Available())
	}

	var chunks []string
	reply := g.Generate(context.Background(), "Analyze BTC", Options{
		Stream:  true,
		OnChunk: func(s string) { chunks = append(chunks, s) },
	})
	if !strings.HasPrefix(reply, `I don't have access to real-time data at the moment, but here's some general guidance on your query: "Analyze BTC"`) {
		t.Fatalf("unexpected reply start: %q", reply[:80])
	}
	if strings.Join(chunks, "") != reply {
		t.Fatalf("streamed chunks do not add up to the reply")
	}
	for _, c := range chunks {
		if !strings.HasSuffix(c, " ") {
			t.Fatalf("chunk %q lacks trailing space", c)
		}
		if n := len(strings.Split(strings.TrimSuffix(c, " "), " ")); n > 3 {
			t.Fatalf("chunk %q has %d words", c, n)
		}
	}

	plain := g.Generate(context.Background(), "hi", Options{})
	if !strings.HasSuffix(plain, "Would you like me to explain any of these concepts in more detail?") {
		t.Fatalf("non-streaming fallback should be the full template")
	}
}

func TestStreamingFromFirstBackend(t *testing.T) {
	srv := sseServer(t, []string{"Bitcoin ", "looks ", "strong"})
	defer srv.Close()

	cfg := testConfig(srv.URL)
	g := New(cfg, testLogger())
	if got := g.Available(); len(got) != 2 || got[0] != "perplexity" || got[1] != "groq" {
		t.Fatalf("unexpected priority order %v", got)
	}

	var streamed strings.Builder
	reply := g.Generate(context.Background(), "btc?", Options{Stream: true, OnChunk: func(s string) { streamed.WriteString(s) }})
	if reply != "Bitcoin looks strong" || streamed.String() != reply {
		t.Fatalf("reply %q streamed %q", reply, streamed.String())
	}
}

func TestNonStreamingReply(t *testing.T) {
	srv := sseServer(t, []string{"flat ", "market"})
	defer srv.Close()

	g := New(testConfig(srv.URL), testLogger())
	if reply := g.Generate(context.Background(), "eth?", Options{}); reply != "flat market" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestEmptyReplyFallsBackToTemplate(t *testing.T) {
	srv := sseServer(t, nil)
	defer srv.Close()

	g := New(testConfig(srv.URL), testLogger())
	want := `I don't have access to real-time data at the moment, but here's some general guidance on your query: "Analyze BTC"`
	if reply := g.Generate(context.Background(), "Analyze BTC", Options{}); !strings.HasPrefix(reply, want) {
		t.Fatalf("non-streaming empty reply not replaced: %q", reply)
	}
	var streamed strings.Builder
	reply := g.Generate(context.Background(), "Analyze BTC", Options{Stream: true, OnChunk: func(s string) { streamed.WriteString(s) }})
	if !strings.HasPrefix(reply, want) || streamed.String() != reply {
		t.Fatalf("streaming empty reply not replaced: %q", reply)
	}
}

func TestFallsThroughToSecondBackend(t *testing.T) {
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		var body chatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model == "sonar" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if body.Messages[0].Content != groqSystemPrompt || body.TopP != 0.95 || body.MaxCompletionTokens != 4096 {
			t.Errorf("unexpected groq request %+v", body)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"from groq"}}]}`)
	}))
	defer srv.Close()

	g := New(testConfig(srv.URL), testLogger())
	if reply := g.Generate(context.Background(), "sol?", Options{}); reply != "from groq" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(auths) != 2 || auths[0] != "Bearer pplx" || auths[1] != "Bearer groq" {
		t.Fatalf("unexpected auth headers %v", auths)
	}
}

func TestWebSearchPrompt(t *testing.T) {
	var system string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		system = body.Messages[0].Content
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Groq.APIKey = ""
	g := New(cfg, testLogger())
	g.Generate(context.Background(), "news?", Options{WebSearch: true})
	if system != webSearchPrompt {
		t.Fatalf("expected web search prompt, got %q", system)
	}
	g.Generate(context.Background(), "news?", Options{})
	if system != analystPrompt {
		t.Fatalf("expected analyst prompt, got %q", system)
	}
}

func TestOpenCircuitSkipsBackend(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Groq.APIKey = ""
	cfg.CircuitBreaker.FailureThreshold = 1
	cfg.CircuitBreaker.RecoveryTimeout = time.Hour
	g := New(cfg, testLogger())

	for i := 0; i < 3; i++ {
		reply := g.Generate(context.Background(), "x", Options{})
		if !strings.HasPrefix(reply, "I don't have access to real-time data") {
			t.Fatalf("expected canned reply, got %q", reply)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call before the circuit opened, got %d", got)
	}
	if st := g.Status(); st[0].Circuit != "open" {
		t.Fatalf("expected open circuit, got %+v", st)
	}
}

type brokenStream struct{}

func (brokenStream) Name() string { return "broken" }

func (brokenStream) Complete(_ context.Context, _ Request, onDelta func(string)) (string, error) {
	onDelta("partial ")
	return "partial ", &StreamError{Delivered: 8, Err: errors.New("connection reset")}
}

func TestInterruptedStreamKeepsText(t *testing.T) {
	g := NewWithBackends([]Backend{brokenStream{}}, config.Default().AI, testLogger())
	var streamed strings.Builder
	reply := g.Generate(context.Background(), "x", Options{Stream: true, OnChunk: func(s string) { streamed.WriteString(s) }})
	if !strings.HasPrefix(reply, "partial \n\nI apologize, but I encountered an error: connection reset") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if streamed.String() != reply {
		t.Fatalf("apology should be streamed too")
	}
}

func TestBreakerRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	b := newBreaker("x", 2, time.Minute, testLogger().WithComponent("test"))
	b.now = func() time.Time { return now }

	b.failure()
	if !b.allow() {
		t.Fatalf("one failure should not open the circuit")
	}
	b.failure()
	if b.allow() {
		t.Fatalf("circuit should be open")
	}
	now = now.Add(2 * time.Minute)
	if !b.allow() {
		t.Fatalf("trial request should be allowed after recovery timeout")
	}
	if b.allow() {
		t.Fatalf("only one trial request at a time")
	}
	b.success()
	if b.current() != stateClosed || !b.allow() {
		t.Fatalf("successful trial request should close the circuit")
	}
}

func TestAvailabilityProbe(t *testing.T) {
	srv := sseServer(t, []string{"pong"})
	defer srv.Close()

	if !New(testConfig(srv.URL), testLogger()).Test(context.Background()) {
		t.Fatalf("expected trial request to succeed")
	}
	if New(config.Default().AI, testLogger()).Test(context.Background()) {
		t.Fatalf("trial request without backends should fail")
	}
}
