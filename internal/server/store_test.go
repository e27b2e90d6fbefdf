package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tradesxbt/internal/metrics"
	"tradesxbt/logger"
)

func TestMetricStoreLimit(t *testing.T) {
	store := newMetricStore(2)
	for i := 0; i < 5; i++ {
		store.handle(metrics.Metric{Timestamp: time.Unix(int64(i), 0), Name: "metric", Value: i})
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 metrics in snapshot, got %d", len(snapshot))
	}
	if snapshot[0].Value != 3 || snapshot[1].Value != 4 {
		t.Fatalf("unexpected metrics retained: %#v", snapshot)
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "warning"
	entry.Data = logrus.Fields{"component": "market_service", "token": "bitcoin", logrus.ErrorKey: context.Canceled}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}
	rec := snapshot[0]
	if rec.Component != "market_service" || rec.Fields["token"] != "bitcoin" || rec.Level != "warning" {
		t.Fatalf("unexpected snapshot data: %#v", rec)
	}
	if rec.Fields[logrus.ErrorKey] != context.Canceled.Error() {
		t.Fatalf("errors should be stored as strings: %#v", rec.Fields)
	}
	if _, ok := rec.Fields["component"]; ok {
		t.Fatal("component should not be duplicated in fields")
	}
}

func TestLogStoreRespectsLimitAndClose(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 4; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Level = logrus.InfoLevel
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if n := len(store.snapshot()); n != 2 {
		t.Fatalf("expected 2 entries after pruning, got %d", n)
	}

	store.close()
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "ignored"
	if err := store.Fire(entry); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}
	if n := len(store.snapshot()); n != 2 {
		t.Fatalf("store accepted entries after close")
	}
}

func TestResourceSamplerCollectsSamples(t *testing.T) {
	l, _ := test.NewNullLogger()
	sampler := newResourceSampler(3, 10*time.Millisecond, &logger.Log{Logger: l})

	originalCPU := cpuPercentFn
	originalMem := memoryStatsFn
	t.Cleanup(func() {
		cpuPercentFn = originalCPU
		memoryStatsFn = originalMem
	})

	var cpuCalls atomic.Int32
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		cpuCalls.Add(1)
		select {
		case <-ctx.Done():
		case <-time.After(interval):
		}
		return []float64{42.5}, nil
	}
	memoryStatsFn = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Used: 1024, Total: 2048, UsedPercent: 50}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sampler.start(ctx)

	deadline := time.Now().Add(time.Second)
	for len(sampler.samples.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("resource sampler did not collect samples in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	sampler.stop()

	snaps := sampler.samples.snapshot()
	latest := snaps[len(snaps)-1]
	if latest.CPUPercent != 42.5 || latest.MemoryPct != 50 || latest.MemoryTotal != 2048 {
		t.Fatalf("unexpected snapshot data: %#v", latest)
	}
	if len(snaps) > 3 {
		t.Fatalf("sampler kept %d samples, limit is 3", len(snaps))
	}
	if cpuCalls.Load() == 0 {
		t.Fatal("expected cpu sampler to be invoked")
	}
}
