package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tradesxbt/internal/metrics"
)

// ring keeps the newest limit items.
type ring[T any] struct {
	mu    sync.RWMutex
	items []T
	limit int
}

func newRing[T any](limit int) *ring[T] {
	if limit <= 0 {
		limit = 200
	}
	return &ring[T]{limit: limit}
}

func (r *ring[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
	if len(r.items) > r.limit {
		r.items = append([]T(nil), r.items[len(r.items)-r.limit:]...)
	}
}

func (r *ring[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// metricStore collects metrics emitted through the metrics handler registry.
type metricStore struct {
	*ring[metrics.Metric]
}

func newMetricStore(limit int) *metricStore {
	return &metricStore{ring: newRing[metrics.Metric](limit)}
}

func (s *metricStore) handle(m metrics.Metric) {
	s.add(m)
}

type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore is a logrus hook retaining recent entries for /api/logs.
type logStore struct {
	*ring[logRecord]
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	ls := &logStore{ring: newRing[logRecord](limit)}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}
	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}
			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	s.add(record)
	return nil
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
