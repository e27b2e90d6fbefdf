package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/apperr"
	"tradesxbt/logger"
)

const (
	groqSystemPrompt = "You are TradesXBT AI, an expert cryptocurrency market analyst. Your role is to provide detailed, actionable market analysis with clear trading signals.\n\n" +
		"When analyzing market data, focus on:\n" +
		"- Current price and market cap\n" +
		"- Volume and liquidity\n" +
		"- Price trends and momentum\n" +
		"- Support and resistance levels\n" +
		"- Risk assessment\n\n" +
		"Always structure your responses with:\n" +
		"1. Market Overview\n" +
		"2. Technical Analysis\n" +
		"3. Trading Signal\n" +
		"4. Risk Assessment\n" +
		"5. Action Items"

	analystPrompt   = "You are TradesXBT AI, an expert cryptocurrency market analyst. Provide detailed, actionable market analysis with clear trading signals."
	webSearchPrompt = "You are TradesXBT AI, an expert cryptocurrency market analyst with access to web search. Provide detailed, accurate information about crypto markets, using web search when appropriate to find current data."
)

// Request is one completion call.
type Request struct {
	Prompt    string
	Stream    bool
	WebSearch bool
}

// Backend is a chat-completion provider. When req.Stream is set, onDelta
// receives each content fragment as it arrives.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request, onDelta func(string)) (string, error)
}

// ErrEmptyReply is returned when a backend answers without any text.
var ErrEmptyReply = errors.New("backend returned an empty reply")

// StreamError reports a stream that broke after Delivered bytes of text
// had already been handed to the caller.
type StreamError struct {
	Delivered int
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted after %d bytes: %v", e.Delivered, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages            []chatMessage `json:"messages"`
	Model               string        `json:"model"`
	Temperature         float64       `json:"temperature"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	TopP                float64       `json:"top_p,omitempty"`
	Stream              bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ChatBackend speaks the OpenAI-compatible chat completions protocol.
type ChatBackend struct {
	name   string
	apiKey string
	cfg    config.AIBackendConfig
	system func(webSearch bool) string
	http   *http.Client
	log    *logger.Entry
}

// NewPerplexity builds the search-capable backend.
func NewPerplexity(cfg config.AIBackendConfig, timeout time.Duration, log *logger.Log) *ChatBackend {
	return newChatBackend("perplexity", cfg, timeout, log, func(webSearch bool) string {
		if webSearch {
			return webSearchPrompt
		}
		return analystPrompt
	})
}

func NewGroq(cfg config.AIBackendConfig, timeout time.Duration, log *logger.Log) *ChatBackend {
	return newChatBackend("groq", cfg, timeout, log, func(bool) string { return groqSystemPrompt })
}

func newChatBackend(name string, cfg config.AIBackendConfig, timeout time.Duration, log *logger.Log, system func(bool) string) *ChatBackend {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ChatBackend{
		name:   name,
		apiKey: cfg.APIKey,
		cfg:    cfg,
		system: system,
		http:   &http.Client{Timeout: timeout},
		log:    log.WithComponent("ai_backend").WithField("backend", name),
	}
}

func (b *ChatBackend) Name() string {
	return b.name
}

func (b *ChatBackend) Complete(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	op := b.name + ".complete"
	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: b.system(req.WebSearch)},
			{Role: "user", Content: req.Prompt},
		},
		Model:               b.cfg.Model,
		Temperature:         b.cfg.Temperature,
		MaxCompletionTokens: b.cfg.MaxCompletionTokens,
		TopP:                b.cfg.TopP,
		Stream:              req.Stream,
	})
	if err != nil {
		return "", apperr.New(apperr.KindValidation, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", apperr.New(apperr.KindClient, op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return "", apperr.New(apperr.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		b.log.WithFields(logger.Fields{
			"status": resp.StatusCode,
			"body":   string(detail),
		}).Warn("completion request rejected")
		return "", &apperr.Error{
			Kind:   apperr.KindForStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("API returned %d", resp.StatusCode),
		}
	}

	if req.Stream {
		return b.readStream(resp.Body, onDelta)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.New(apperr.KindValidation, op, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", apperr.New(apperr.KindServer, op, ErrEmptyReply)
	}
	return out.Choices[0].Message.Content, nil
}

// readStream consumes server-sent events until [DONE] or EOF. Lines that
// do not parse are skipped.
func (b *ChatBackend) readStream(body io.Reader, onDelta func(string)) (string, error) {
	var text strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "data: [DONE]" {
			break
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			b.log.WithError(err).Debug("skipping malformed stream line")
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		text.WriteString(content)
		if onDelta != nil {
			onDelta(content)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return text.String(), &StreamError{Delivered: text.Len(), Err: err}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", apperr.New(apperr.KindServer, b.name+".stream", ErrEmptyReply)
	}
	return text.String(), nil
}
