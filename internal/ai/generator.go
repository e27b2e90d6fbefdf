// Package ai produces assistant replies from a priority list of
// chat-completion backends, degrading to a canned answer when none can
// respond.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/metrics"
	"tradesxbt/logger"
)

const (
	fallbackBackend = "fallback"
	wordsPerChunk   = 3

	interruptedReply = "\n\nI apologize, but I encountered an error: %s\n\n" +
		"Here's what I can tell you based on my general knowledge:\n\n" +
		"1. Always verify information from multiple sources\n" +
		"2. Consider market conditions and risk factors\n" +
		"3. Stay updated with reliable news sources\n" +
		"4. Consider consulting with financial professionals\n\n" +
		"Would you like to know more about any of these topics?"

	// CancelledReply is returned when the caller goes away mid-generation.
	CancelledReply = "I apologize, but I encountered an error while processing your request. Here's what I can tell you based on general knowledge..."

	fallbackReply = "I don't have access to real-time data at the moment, but here's some general guidance on your query: \"%s\"\n\n" +
		"Based on general cryptocurrency principles:\n\n" +
		"1. Market Overview: Cryptocurrency markets are highly volatile and influenced by various factors including regulatory news, technological developments, and market sentiment.\n\n" +
		"2. Technical Analysis: Without current data, I can't provide specific technical analysis. Generally, traders look at moving averages, RSI, MACD, and support/resistance levels.\n\n" +
		"3. Trading Signal: Without real-time data, I cannot provide a specific trading signal. Always do your own research before making trading decisions.\n\n" +
		"4. Risk Assessment: Cryptocurrency trading carries significant risk. Never invest more than you can afford to lose.\n\n" +
		"5. Action Items:\n" +
		"   - Research the asset thoroughly before investing\n" +
		"   - Set strict stop-loss levels\n" +
		"   - Diversify your portfolio\n" +
		"   - Stay updated with reliable news sources\n\n" +
		"Would you like me to explain any of these concepts in more detail?"
)

// Options controls one generation.
type Options struct {
	Stream    bool
	OnChunk   func(string)
	WebSearch bool
}

func (o Options) emit(s string) {
	if o.OnChunk != nil {
		o.OnChunk(s)
	}
}

type guarded struct {
	backend Backend
	breaker *breaker
}

// BackendStatus describes a registered backend for health checks.
type BackendStatus struct {
	Name    string `json:"name"`
	Circuit string `json:"circuit"`
}

type Generator struct {
	backends   []guarded
	chunkDelay time.Duration
	log        *logger.Log
}

// New registers Perplexity then Groq, each only when its key is set.
func New(cfg config.AIConfig, log *logger.Log) *Generator {
	var backends []Backend
	if cfg.Perplexity.APIKey != "" {
		backends = append(backends, NewPerplexity(cfg.Perplexity, cfg.Timeout, log))
	}
	if cfg.Groq.APIKey != "" {
		backends = append(backends, NewGroq(cfg.Groq, cfg.Timeout, log))
	}
	return NewWithBackends(backends, cfg, log)
}

// NewWithBackends uses backends in the given priority order.
func NewWithBackends(backends []Backend, cfg config.AIConfig, log *logger.Log) *Generator {
	if log == nil {
		log = logger.GetLogger()
	}
	g := &Generator{chunkDelay: cfg.FallbackChunkDelay, log: log}
	entry := log.WithComponent("ai_generator")
	for _, b := range backends {
		g.backends = append(g.backends, guarded{
			backend: b,
			breaker: newBreaker(b.Name(), cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.RecoveryTimeout, entry),
		})
	}
	names := g.Available()
	if len(names) == 0 {
		entry.Info("no AI backends configured, using canned replies")
	} else {
		entry.WithField("backends", names).Info("AI backends registered")
	}
	return g
}

// Available lists the configured backend names in priority order.
func (g *Generator) Available() []string {
	names := make([]string, 0, len(g.backends))
	for _, b := range g.backends {
		names = append(names, b.backend.Name())
	}
	return names
}

func (g *Generator) Status() []BackendStatus {
	out := make([]BackendStatus, 0, len(g.backends))
	for _, b := range g.backends {
		out = append(out, BackendStatus{Name: b.backend.Name(), Circuit: b.breaker.current().String()})
	}
	return out
}

// Generate never fails. Backends are tried in order, skipping any whose
// circuit is open. A stream that breaks after delivering text keeps that
// text and gets an apology appended. When no backend answers the canned
// guidance is returned.
func (g *Generator) Generate(ctx context.Context, prompt string, opts Options) string {
	log := g.log.WithComponent("ai_generator")
	req := Request{Prompt: prompt, Stream: opts.Stream, WebSearch: opts.WebSearch}

	for _, b := range g.backends {
		name := b.backend.Name()
		if !b.breaker.allow() {
			log.WithField("backend", name).Debug("skipping backend with open circuit")
			continue
		}

		text, err := b.backend.Complete(ctx, req, opts.OnChunk)
		if err == nil {
			b.breaker.success()
			metrics.ObserveAIGeneration(name, true)
			return text
		}

		b.breaker.failure()
		metrics.ObserveAIGeneration(name, false)

		var se *StreamError
		if errors.As(err, &se) && se.Delivered > 0 {
			log.WithError(err).WithField("backend", name).Warn("stream interrupted")
			apology := fmt.Sprintf(interruptedReply, se.Err.Error())
			opts.emit(apology)
			return text + apology
		}
		if ctx.Err() != nil {
			log.WithError(err).WithField("backend", name).Info("generation cancelled")
			return CancelledReply
		}
		log.WithError(err).WithField("backend", name).Warn("backend failed, trying next")
	}

	metrics.ObserveAIGeneration(fallbackBackend, true)
	return g.fallback(ctx, prompt, opts)
}

// fallback streams the canned guidance in three-word chunks.
func (g *Generator) fallback(ctx context.Context, prompt string, opts Options) string {
	reply := fmt.Sprintf(fallbackReply, prompt)
	if !opts.Stream || opts.OnChunk == nil {
		return reply
	}

	words := strings.Split(reply, " ")
	var out strings.Builder
	for i := 0; i < len(words); i += wordsPerChunk {
		chunk := strings.Join(words[i:min(i+wordsPerChunk, len(words))], " ") + " "
		opts.OnChunk(chunk)
		out.WriteString(chunk)
		if g.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return out.String()
			case <-time.After(g.chunkDelay):
			}
		}
	}
	return out.String()
}

// Test sends a trial request through the first available backend and reports
// whether any text came back.
func (g *Generator) Test(ctx context.Context) bool {
	for _, b := range g.backends {
		if !b.breaker.allow() {
			continue
		}
		received := false
		_, err := b.backend.Complete(ctx, Request{Prompt: "Test message", Stream: true}, func(string) { received = true })
		if err == nil {
			b.breaker.success()
			return received
		}
		b.breaker.failure()
		g.log.WithComponent("ai_generator").WithError(err).WithField("backend", b.backend.Name()).Warn("AI test failed")
	}
	return false
}
