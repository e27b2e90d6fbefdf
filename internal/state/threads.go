package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"tradesxbt/internal/ai"
	"tradesxbt/internal/storage"
	"tradesxbt/logger"
	"tradesxbt/models"
)

const titleLimit = 30

var ErrEmptyMessage = errors.New("message is empty")

// Responder produces an assistant reply. It never fails; degraded answers
// are returned as text.
type Responder interface {
	Generate(ctx context.Context, prompt string, opts ai.Options) string
}

// SendOptions controls a single chat turn.
type SendOptions struct {
	ThreadID  string
	WebSearch bool
	// Viewing marks the reply as read because the thread is on screen.
	Viewing bool
	// OnChunk receives streamed reply fragments; nil disables streaming.
	OnChunk func(string)
}

type ThreadService struct {
	store     storage.Store
	responder Responder
	log       *logger.Log
	clock     Clock

	mu      sync.RWMutex
	threads []models.Thread
	version uint64
}

func NewThreadService(store storage.Store, responder Responder, log *logger.Log) *ThreadService {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ThreadService{
		store:     store,
		responder: responder,
		log:       log,
		clock:     time.Now,
		threads:   []models.Thread{},
	}
}

func (s *ThreadService) entry() *logger.Entry {
	return s.log.WithComponent("thread_service")
}

// Load restores saved threads. There is no sample conversation.
func (s *ThreadService) Load(ctx context.Context) {
	threads := loadJSON(ctx, s.store, storage.KeyChatThreads, s.entry(), func() []models.Thread { return []models.Thread{} })
	if threads == nil {
		threads = []models.Thread{}
	}
	s.mu.Lock()
	s.threads = threads
	s.version++
	s.mu.Unlock()
}

// Threads lists conversations most recently updated first. Ties keep
// creation order, newest first.
func (s *ThreadService) Threads() []models.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Thread, len(s.threads))
	for i, t := range s.threads {
		out[i] = cloneThread(t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out
}

func (s *ThreadService) Thread(id string) (models.Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return cloneThread(s.threads[i]), true
	}
	return models.Thread{}, false
}

func (s *ThreadService) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.threads {
		if !t.IsRead {
			n++
		}
	}
	return n
}

func (s *ThreadService) newMessage(content string, sender models.Sender) models.Message {
	return models.Message{ID: newID(), Content: content, Sender: sender, Timestamp: nowMillis(s.clock)}
}

func threadTitle(first string) string {
	r := []rune(first)
	if len(r) > titleLimit {
		return string(r[:titleLimit]) + "..."
	}
	return first
}

// CreateThread starts a conversation from its first user message.
func (s *ThreadService) CreateThread(ctx context.Context, userMessage string) models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneThread(*s.createLocked(ctx, userMessage))
}

func (s *ThreadService) createLocked(ctx context.Context, userMessage string) *models.Thread {
	now := nowMillis(s.clock)
	t := models.Thread{
		ID:        newID(),
		Title:     threadTitle(userMessage),
		Messages:  []models.Message{s.newMessage(userMessage, models.SenderUser)},
		CreatedAt: now,
		UpdatedAt: now,
		IsRead:    true,
	}
	s.threads = append([]models.Thread{t}, s.threads...)
	s.saveLocked(ctx)
	return &s.threads[0]
}

// Send appends the user's message (creating the thread when opts.ThreadID
// is empty or unknown), generates the reply and appends it. The returned
// thread includes both messages.
func (s *ThreadService) Send(ctx context.Context, message string, opts SendOptions) (models.Thread, error) {
	if strings.TrimSpace(message) == "" {
		return models.Thread{}, ErrEmptyMessage
	}

	s.mu.Lock()
	var threadID string
	if i := s.indexLocked(opts.ThreadID); opts.ThreadID != "" && i >= 0 {
		t := &s.threads[i]
		msg := s.newMessage(message, models.SenderUser)
		t.Messages = append(t.Messages, msg)
		t.UpdatedAt = msg.Timestamp
		threadID = t.ID
		s.saveLocked(ctx)
	} else {
		threadID = s.createLocked(ctx, message).ID
	}
	s.mu.Unlock()

	started := time.Now()
	reply := s.responder.Generate(ctx, message, ai.Options{
		Stream:    opts.OnChunk != nil,
		OnChunk:   opts.OnChunk,
		WebSearch: opts.WebSearch,
	})
	logger.LogPerformanceEntry(s.entry(), "thread_service", "generate_reply", time.Since(started), logger.Fields{"thread_id": threadID})

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(threadID)
	if i < 0 {
		// deleted while the reply was being generated
		return models.Thread{}, ErrThreadNotFound
	}
	t := &s.threads[i]
	msg := s.newMessage(reply, models.SenderAI)
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = msg.Timestamp
	t.IsRead = opts.Viewing
	s.saveLocked(ctx)
	return cloneThread(*t), nil
}

var ErrThreadNotFound = errors.New("thread not found")

func (s *ThreadService) MarkRead(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.threads[i].IsRead = true
	s.saveLocked(ctx)
	return true
}

func (s *ThreadService) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.threads = append(s.threads[:i], s.threads[i+1:]...)
	s.saveLocked(ctx)
	return true
}

func (s *ThreadService) saveLocked(ctx context.Context) {
	s.version++
	saveJSON(ctx, s.store, storage.KeyChatThreads, s.threads, s.entry())
}

func (s *ThreadService) indexLocked(id string) int {
	for i := range s.threads {
		if s.threads[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneThread(t models.Thread) models.Thread {
	t.Messages = append([]models.Message{}, t.Messages...)
	return t
}
