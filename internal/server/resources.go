package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"tradesxbt/logger"
)

// resourceSnapshot is one sample of process host utilisation, served on
// /api/resources next to the application metrics.
type resourceSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
}

var (
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		return cpu.PercentWithContext(ctx, interval, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
)

type resourceSampler struct {
	samples  *ring[resourceSnapshot]
	interval time.Duration
	log      *logger.Log

	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

func newResourceSampler(limit int, interval time.Duration, log *logger.Log) *resourceSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &resourceSampler{samples: newRing[resourceSnapshot](limit), interval: interval, log: log}
}

func (s *resourceSampler) start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		for ctx.Err() == nil {
			s.sample(ctx)
		}
	}()
}

func (s *resourceSampler) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// sample blocks for one interval while measuring cpu.
func (s *resourceSampler) sample(ctx context.Context) {
	log := s.log.WithComponent("resource_sampler")
	cpuSamples, err := cpuPercentFn(ctx, s.interval)
	if err != nil {
		log.WithError(err).Debug("failed to sample cpu usage")
		s.wait(ctx)
		return
	}
	memStats, err := memoryStatsFn(ctx)
	if err != nil {
		log.WithError(err).Debug("failed to sample memory usage")
		s.wait(ctx)
		return
	}
	snap := resourceSnapshot{
		Timestamp:   time.Now(),
		MemoryUsed:  memStats.Used,
		MemoryTotal: memStats.Total,
		MemoryPct:   memStats.UsedPercent,
	}
	if len(cpuSamples) > 0 {
		snap.CPUPercent = cpuSamples[0]
	}
	s.samples.add(snap)
}

func (s *resourceSampler) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.interval):
	}
}
