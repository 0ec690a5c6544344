package collector

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatsCollector собирает показатели хоста для heartbeat записей
type SystemStatsCollector struct{}

// NewSystemStatsCollector создает новый collector
func NewSystemStatsCollector() *SystemStatsCollector {
	return &SystemStatsCollector{}
}

// Collect возвращает поля для system_stats record. Сбор best-effort:
// недоступный показатель пропускается, ошибка только если нет ни одного
func (c *SystemStatsCollector) Collect(ctx context.Context) (map[string]any, error) {
	fields := map[string]any{
		"goroutines": runtime.NumGoroutine(),
	}
	collected := false

	// Мгновенный срез использования CPU (без блокирующего интервала)
	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		fields["cpu_percent"] = round2(percentages[0])
		collected = true
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fields["mem_used_percent"] = round2(vm.UsedPercent)
		fields["mem_used_mb"] = vm.Used / 1024 / 1024
		collected = true
	}

	if !collected {
		return nil, fmt.Errorf("no system stats available")
	}

	return fields, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
