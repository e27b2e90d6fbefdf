package models

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    Sender `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
	IsRead    bool      `json:"isRead"`
}

type StreamEventType string

const (
	StreamStart StreamEventType = "start"
	StreamDelta StreamEventType = "delta"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is pushed to chat clients while a reply is generated.
type StreamEvent struct {
	Type   StreamEventType `json:"type"`
	Data   string          `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Thread *Thread         `json:"thread,omitempty"`
}
