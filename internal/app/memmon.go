package app

import (
	"log/slog"
	"runtime"
	"sync/atomic"
)

const megabyte = 1024 * 1024

// MemoryMonitor warns each time heap usage crosses a new multiple of the
// reporting threshold. Pure observability; it never acts on what it sees.
type MemoryMonitor struct {
	thresholdMB  uint64
	lastReported atomic.Uint64
	logger       *slog.Logger
	readMemStats func(*runtime.MemStats)
}

func NewMemoryMonitor(thresholdMB uint64, logger *slog.Logger) *MemoryMonitor {
	if thresholdMB == 0 {
		thresholdMB = 50
	}
	return &MemoryMonitor{
		thresholdMB:  thresholdMB,
		logger:       logger,
		readMemStats: runtime.ReadMemStats,
	}
}

// Report is the periodic job body. Cron can fire a trigger before the
// previous one has returned, so lastReported advances with a
// compare-and-swap and each crossing is reported at most once.
func (m *MemoryMonitor) Report() {
	var stats runtime.MemStats
	m.readMemStats(&stats)

	usedMB := stats.HeapInuse / megabyte
	currentThreshold := (usedMB / m.thresholdMB) * m.thresholdMB
	last := m.lastReported.Load()
	if currentThreshold > last && m.lastReported.CompareAndSwap(last, currentThreshold) {
		m.logger.Warn("heap usage crossed reporting threshold",
			"threshold_mb", currentThreshold, "heap_in_use_mb", usedMB)
	}
}
