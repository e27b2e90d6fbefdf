package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// ComponentCounts returns the number of warn and error lines logged through
// Entry for the given component since start-up.
func ComponentCounts(component string) (warns, errors int64) {
	v, ok := components.Load(component)
	if !ok {
		return 0, 0
	}
	cs := v.(*componentStat)
	return atomic.LoadInt64(&cs.warns), atomic.LoadInt64(&cs.errors)
}

// StartReport logs a runtime report every interval until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memMB := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memMB = float64(vm.Used) / 1024 / 1024
	}

	perComponent := map[string]map[string]int64{}
	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(memMB)},
	}
	components.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*componentStat)
		warns, errs := atomic.LoadInt64(&cs.warns), atomic.LoadInt64(&cs.errors)
		perComponent[name] = map[string]int64{"warns": warns, "errors": errs}
		dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(name)}}
		data = append(data,
			cwtypes.MetricDatum{MetricName: aws.String("Warnings"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(warns))},
			cwtypes.MetricDatum{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Dimensions: dims, Value: aws.Float64(float64(errs))},
		)
		return true
	})

	log.WithComponent("report").WithFields(Fields{
		"goroutines":  runtime.NumGoroutine(),
		"cpu_percent": cpuPct,
		"memory_mb":   int64(memMB),
		"components":  perComponent,
	}).Info("runtime report")

	publishMetrics(ctx, data)
}
