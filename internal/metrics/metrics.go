// Package metrics owns the prometheus collectors and the in-process metric
// handler registry.
//
// Registers:
//
//	tradesxbt_http_attempts_total{provider,outcome}
//	tradesxbt_market_refresh_total{outcome}
//	tradesxbt_ai_generations_total{backend,outcome}
//	tradesxbt_storage_ops_total{backend,op,outcome}
//	go_* and process_* system metrics
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once          sync.Once
	registry      *prometheus.Registry
	httpAttempts  *prometheus.CounterVec
	marketRefresh *prometheus.CounterVec
	aiGenerations *prometheus.CounterVec
	storageOps    *prometheus.CounterVec
)

// Init creates the collectors on a dedicated registry. It is safe to call
// more than once.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		httpAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesxbt_http_attempts_total",
				Help: "Upstream HTTP attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		)
		marketRefresh = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesxbt_market_refresh_total",
				Help: "Market snapshot refreshes by outcome",
			},
			[]string{"outcome"},
		)
		aiGenerations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesxbt_ai_generations_total",
				Help: "AI responses by backend and outcome",
			},
			[]string{"backend", "outcome"},
		)
		storageOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesxbt_storage_ops_total",
				Help: "Key-value storage operations",
			},
			[]string{"backend", "op", "outcome"},
		)

		registry.MustRegister(
			httpAttempts,
			marketRefresh,
			aiGenerations,
			storageOps,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func ObserveHTTPAttempt(provider string, ok bool) {
	if httpAttempts != nil {
		httpAttempts.WithLabelValues(provider, outcome(ok)).Inc()
	}
}

func ObserveMarketRefresh(result string) {
	if marketRefresh != nil {
		marketRefresh.WithLabelValues(result).Inc()
	}
}

func ObserveAIGeneration(backend string, ok bool) {
	if aiGenerations != nil {
		aiGenerations.WithLabelValues(backend, outcome(ok)).Inc()
	}
}

func ObserveStorage(backend, op string, ok bool) {
	if storageOps != nil {
		storageOps.WithLabelValues(backend, op, outcome(ok)).Inc()
	}
}
