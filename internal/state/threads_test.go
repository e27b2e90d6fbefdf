package state

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/ai"
	"tradesxbt/internal/storage"
	"tradesxbt/models"
)

type echoResponder struct {
	prompts []string
	opts    []ai.Options
}

func (e *echoResponder) Generate(ctx context.Context, prompt string, opts ai.Options) string {
	e.prompts = append(e.prompts, prompt)
	e.opts = append(e.opts, opts)
	if opts.OnChunk != nil {
		opts.OnChunk("echo: ")
		opts.OnChunk(prompt)
	}
	return "echo: " + prompt
}

func newTestThreads(t *testing.T, store storage.Store, r Responder) *ThreadService {
	t.Helper()
	log, _ := testLogger()
	svc := NewThreadService(store, r, log)
	svc.clock = fixedClock()
	svc.Load(context.Background())
	return svc
}

func TestCreateThreadTitle(t *testing.T) {
	svc := newTestThreads(t, storage.NewMemory(), &echoResponder{})
	if len(svc.Threads()) != 0 {
		t.Fatalf("threads have no sample data")
	}

	short := svc.CreateThread(context.Background(), "What is BTC doing?")
	if short.Title != "What is BTC doing?" || !short.IsRead || len(short.Messages) != 1 {
		t.Fatalf("unexpected thread %+v", short)
	}
	long := svc.CreateThread(context.Background(), "Give me a full technical analysis of Solana please")
	if long.Title != "Give me a full technical analy..." {
		t.Fatalf("unexpected title %q", long.Title)
	}
	if threads := svc.Threads(); threads[0].ID != long.ID {
		t.Fatalf("new threads should be listed first")
	}
}

func TestSendCreatesAndContinuesThread(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	r := &echoResponder{}
	svc := newTestThreads(t, store, r)

	var streamed strings.Builder
	th, err := svc.Send(ctx, "hello", SendOptions{Viewing: true, OnChunk: func(s string) { streamed.WriteString(s) }})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(th.Messages) != 2 || th.Messages[0].Sender != models.SenderUser || th.Messages[1].Sender != models.SenderAI {
		t.Fatalf("unexpected messages %+v", th.Messages)
	}
	if th.Messages[1].Content != "echo: hello" || streamed.String() != "echo: hello" {
		t.Fatalf("reply %q streamed %q", th.Messages[1].Content, streamed.String())
	}
	if !r.opts[0].Stream || !th.IsRead {
		t.Fatalf("streaming send while viewing should be read")
	}

	th, err = svc.Send(ctx, "again", SendOptions{ThreadID: th.ID, WebSearch: true})
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if len(th.Messages) != 4 || th.IsRead {
		t.Fatalf("continued thread should have 4 messages and be unread: %+v", th)
	}
	if r.opts[1].Stream || !r.opts[1].WebSearch {
		t.Fatalf("unexpected options %+v", r.opts[1])
	}
	if svc.UnreadCount() != 1 {
		t.Fatalf("unread = %d", svc.UnreadCount())
	}

	reloaded := newTestThreads(t, store, r)
	got, ok := reloaded.Thread(th.ID)
	if !ok || len(got.Messages) != 4 {
		t.Fatalf("thread not persisted: %+v", got)
	}
	if !reloaded.MarkRead(ctx, th.ID) || reloaded.UnreadCount() != 0 {
		t.Fatalf("mark read failed")
	}
	if !reloaded.Delete(ctx, th.ID) || len(reloaded.Threads()) != 0 {
		t.Fatalf("delete failed")
	}
}

func TestThreadsOrderedByLastUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestThreads(t, storage.NewMemory(), &echoResponder{})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	older := svc.CreateThread(ctx, "first")
	now = now.Add(time.Minute)
	newer := svc.CreateThread(ctx, "second")
	if threads := svc.Threads(); threads[0].ID != newer.ID {
		t.Fatalf("newest thread should lead, got %q", threads[0].Title)
	}

	now = now.Add(time.Minute)
	if _, err := svc.Send(ctx, "reply please", SendOptions{ThreadID: older.ID, Viewing: true}); err != nil {
		t.Fatalf("send: %v", err)
	}
	threads := svc.Threads()
	if threads[0].ID != older.ID || threads[1].ID != newer.ID {
		t.Fatalf("replied thread should move to the front, got %q then %q", threads[0].Title, threads[1].Title)
	}
}

func TestSendUnknownThreadStartsNewOne(t *testing.T) {
	svc := newTestThreads(t, storage.NewMemory(), &echoResponder{})
	th, err := svc.Send(context.Background(), "hi", SendOptions{ThreadID: "gone"})
	if err != nil || th.ID == "gone" || len(svc.Threads()) != 1 {
		t.Fatalf("expected a fresh thread, got %+v, %v", th, err)
	}
	if _, err := svc.Send(context.Background(), "   ", SendOptions{}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank message should be rejected, got %v", err)
	}
}

func TestSendWithFallbackGenerator(t *testing.T) {
	log, _ := testLogger()
	cfg := config.Default().AI
	cfg.FallbackChunkDelay = 0
	gen := ai.New(cfg, log)
	svc := newTestThreads(t, storage.NewMemory(), gen)

	th, err := svc.Send(context.Background(), "price of ETH?", SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(th.Messages[1].Content, `"price of ETH?"`) {
		t.Fatalf("fallback reply should quote the prompt: %q", th.Messages[1].Content)
	}
}
