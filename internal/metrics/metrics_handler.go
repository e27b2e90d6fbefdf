package metrics

import (
	"sync"
	"time"

	"tradesxbt/logger"
)

// Metric is a structured event emitted by a component. The API server keeps
// a bounded history of them for the /api/metrics endpoint.
type Metric struct {
	Timestamp time.Time     `json:"timestamp"`
	Component string        `json:"component"`
	Name      string        `json:"name"`
	Value     interface{}   `json:"value"`
	Type      string        `json:"type"`
	Fields    logger.Fields `json:"fields,omitempty"`
}

type MetricHandler func(Metric)

type MetricHandlerID uint64

var (
	metricHandlersMu    sync.RWMutex
	metricHandlers      = make(map[MetricHandlerID]MetricHandler)
	nextMetricHandlerID MetricHandlerID
)

// RegisterMetricHandler subscribes handler to every emitted metric. A nil
// handler is ignored and yields the zero id.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}

	metricHandlersMu.Lock()
	defer metricHandlersMu.Unlock()

	nextMetricHandlerID++
	id := nextMetricHandlerID
	metricHandlers[id] = handler
	return id
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}

	metricHandlersMu.Lock()
	delete(metricHandlers, id)
	metricHandlersMu.Unlock()
}

// Emit logs the metric through log (or the global logger), forwards it to
// CloudWatch via LogMetric and dispatches it to registered handlers.
func Emit(log *logger.Log, component, name string, value interface{}, fields logger.Fields) {
	if name == "" {
		return
	}
	if log == nil {
		log = logger.GetLogger()
	}

	userFields := cloneFields(fields)
	log.LogMetric(component, name, value, "counter", userFields)

	dispatchMetric(Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      "counter",
		Fields:    userFields,
	})
}

func dispatchMetric(metric Metric) {
	metricHandlersMu.RLock()
	handlers := make([]MetricHandler, 0, len(metricHandlers))
	for _, handler := range metricHandlers {
		handlers = append(handlers, handler)
	}
	metricHandlersMu.RUnlock()

	for _, handler := range handlers {
		handler(metric)
	}
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}
