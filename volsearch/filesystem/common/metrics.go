package common

import (
	"fmt"
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// updateBaseMetricsLocked updates common metrics fields; Mu must be held.
func (bm *BaseMetrics) updateBaseMetricsLocked(success bool) {
	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// BuildMetrics accumulates volume build outcomes across build passes. One
// operation is one volume; it succeeds when the volume became searchable.
type BuildMetrics struct {
	BaseMetrics
	Passes      int64
	Records     int64
	Malformed   int64
	FailedKinds map[Kind]int64
	AverageTime time.Duration
}

// NewBuildMetrics creates empty build metrics.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{FailedKinds: make(map[Kind]int64)}
}

// RecordPass counts one build pass.
func (m *BuildMetrics) RecordPass() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Passes++
}

// RecordVolume adds the outcome of one volume. err is classified for
// unsuccessful volumes only.
func (m *BuildMetrics) RecordVolume(duration time.Duration, records, malformed int64, success bool, err error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.updateBaseMetricsLocked(success)
	m.Records += records
	m.Malformed += malformed
	if !success && err != nil {
		m.FailedKinds[Classify(err)]++
	}

	// Rolling average
	if m.TotalOperations == 1 {
		m.AverageTime = duration
	} else {
		m.AverageTime = (m.AverageTime*time.Duration(m.TotalOperations-1) + duration) / time.Duration(m.TotalOperations)
	}
}

// GetMetrics returns build metrics as a map
func (m *BuildMetrics) GetMetrics() map[string]interface{} {
	metrics := m.GetBaseMetrics()
	m.Mu.RLock()
	defer m.Mu.RUnlock()

	kinds := make(map[string]int64, len(m.FailedKinds))
	for k, n := range m.FailedKinds {
		kinds[string(k)] = n
	}
	metrics["passes"] = m.Passes
	metrics["records"] = m.Records
	metrics["malformed"] = m.Malformed
	metrics["failed_kinds"] = kinds
	metrics["average_time"] = m.AverageTime
	return metrics
}

// FormatDuration formats a duration for human-readable display
func FormatDuration(duration time.Duration) string {
	switch {
	case duration < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(duration.Nanoseconds())/1000)
	case duration < time.Second:
		return fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1000000)
	case duration < time.Minute:
		return fmt.Sprintf("%.2fs", duration.Seconds())
	case duration < time.Hour:
		return fmt.Sprintf("%.2fm", duration.Minutes())
	default:
		return fmt.Sprintf("%.2fh", duration.Hours())
	}
}
