package shared

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Counter names shared by the services that record them
const (
	MetricCallbacksReceived = "callbacks_received"
	MetricTokensMinted      = "tokens_minted"
	MetricDefaultsApplied   = "normalization_defaults_applied"
	MetricLookupHits        = "lookup_hits"
	MetricLookupMisses      = "lookup_misses"
	MetricCapturesOK        = "captures_ok"
	MetricCapturesFailed    = "captures_failed"
	MetricPollsFound        = "polls_found"
	MetricPollsTimedOut     = "polls_timed_out"
	MetricPollsCancelled    = "polls_cancelled"
	MetricEntriesPurged     = "entries_purged"
)

// ServiceMetrics tracks performance and success metrics for services
type ServiceMetrics struct {
	ServiceName           string                 `json:"service_name"`
	TotalRequests         int64                  `json:"total_requests"`
	SuccessfulRequests    int64                  `json:"successful_requests"`
	FailedRequests        int64                  `json:"failed_requests"`
	TotalProcessingTime   time.Duration          `json:"total_processing_time"`
	AverageProcessingTime time.Duration          `json:"average_processing_time"`
	LastUpdated           time.Time              `json:"last_updated"`
	CustomMetrics         map[string]interface{} `json:"custom_metrics"`
	PerformanceMetrics    *PerformanceMetrics    `json:"performance_metrics"`
	mutex                 sync.RWMutex
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		ServiceName:        serviceName,
		LastUpdated:        time.Now(),
		CustomMetrics:      make(map[string]interface{}),
		PerformanceMetrics: NewPerformanceMetrics(),
	}
}

// RecordRequest records a request with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests++
	m.TotalProcessingTime += processingTime
	m.AverageProcessingTime = time.Duration(int64(m.TotalProcessingTime) / m.TotalRequests)

	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}

	m.LastUpdated = time.Now()

	if m.PerformanceMetrics != nil {
		m.PerformanceMetrics.RecordProcessingTime(processingTime)
	}
}

// GetSuccessRate returns the success rate as a percentage
func (m *ServiceMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRequests == 0 {
		return 0.0
	}

	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
}

// IncrementCustomCounter increments a custom counter metric
func (m *ServiceMetrics) IncrementCustomCounter(key string) {
	m.AddToCustomCounter(key, 1)
}

// AddToCustomCounter adds delta to a custom counter metric
func (m *ServiceMetrics) AddToCustomCounter(key string, delta int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	counter, _ := m.CustomMetrics[key].(int64)
	m.CustomMetrics[key] = counter + delta
	m.LastUpdated = time.Now()
}

// Counter returns the current value of a custom counter
func (m *ServiceMetrics) Counter(key string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counter, _ := m.CustomMetrics[key].(int64)
	return counter
}

// MetricsSnapshot is a copy of the metrics safe to serialize
type MetricsSnapshot struct {
	ServiceName           string                 `json:"service_name"`
	TotalRequests         int64                  `json:"total_requests"`
	SuccessfulRequests    int64                  `json:"successful_requests"`
	FailedRequests        int64                  `json:"failed_requests"`
	SuccessRate           float64                `json:"success_rate"`
	AverageProcessingTime time.Duration          `json:"average_processing_time"`
	LastUpdated           time.Time              `json:"last_updated"`
	CustomMetrics         map[string]interface{} `json:"custom_metrics"`
	Performance           PerformanceSnapshot    `json:"performance"`
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	customMetricsCopy := make(map[string]interface{}, len(m.CustomMetrics))
	for k, v := range m.CustomMetrics {
		customMetricsCopy[k] = v
	}

	successRate := 0.0
	if m.TotalRequests > 0 {
		successRate = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
	}

	return MetricsSnapshot{
		ServiceName:           m.ServiceName,
		TotalRequests:         m.TotalRequests,
		SuccessfulRequests:    m.SuccessfulRequests,
		FailedRequests:        m.FailedRequests,
		SuccessRate:           successRate,
		AverageProcessingTime: m.AverageProcessingTime,
		LastUpdated:           m.LastUpdated,
		CustomMetrics:         customMetricsCopy,
		Performance:           m.PerformanceMetrics.GetPerformanceSnapshot(),
	}
}

// LogSummary logs a comprehensive metrics summary
func (m *ServiceMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"service_name":            snapshot.ServiceName,
		"total_requests":          snapshot.TotalRequests,
		"successful_requests":     snapshot.SuccessfulRequests,
		"failed_requests":         snapshot.FailedRequests,
		"success_rate":            snapshot.SuccessRate,
		"average_processing_time": snapshot.AverageProcessingTime,
		"p95_processing_time":     snapshot.Performance.P95ProcessingTime,
		"last_updated":            snapshot.LastUpdated,
		"custom_metrics":          snapshot.CustomMetrics,
	}).Info("Service metrics summary")
}

// Reset resets all metrics to zero
func (m *ServiceMetrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRequests = 0
	m.SuccessfulRequests = 0
	m.FailedRequests = 0
	m.TotalProcessingTime = 0
	m.AverageProcessingTime = 0
	m.LastUpdated = time.Now()
	m.CustomMetrics = make(map[string]interface{})
	m.PerformanceMetrics = NewPerformanceMetrics()

	logrus.WithField("service_name", m.ServiceName).Info("Service metrics reset")
}

// PerformanceMetrics tracks detailed performance measurements
type PerformanceMetrics struct {
	mutex           sync.RWMutex
	min             time.Duration
	max             time.Duration
	p95             time.Duration
	processingTimes []time.Duration
}

// PerformanceSnapshot is a copy of the performance measurements
type PerformanceSnapshot struct {
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	P95ProcessingTime time.Duration `json:"p95_processing_time"`
}

// NewPerformanceMetrics creates a new performance metrics tracker
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		processingTimes: make([]time.Duration, 0, 1000), // Pre-allocate for 1000 samples
	}
}

// RecordProcessingTime records a processing time and updates performance metrics
func (pm *PerformanceMetrics) RecordProcessingTime(duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.min == 0 || duration < pm.min {
		pm.min = duration
	}
	if duration > pm.max {
		pm.max = duration
	}

	// Keep the last 1000 samples
	if len(pm.processingTimes) >= 1000 {
		pm.processingTimes = pm.processingTimes[1:]
	}
	pm.processingTimes = append(pm.processingTimes, duration)

	times := make([]time.Duration, len(pm.processingTimes))
	copy(times, pm.processingTimes)
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	pm.p95 = times[int(float64(len(times)-1)*0.95)]
}

// GetPerformanceSnapshot returns a thread-safe snapshot of performance metrics
func (pm *PerformanceMetrics) GetPerformanceSnapshot() PerformanceSnapshot {
	if pm == nil {
		return PerformanceSnapshot{}
	}

	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	return PerformanceSnapshot{
		MinProcessingTime: pm.min,
		MaxProcessingTime: pm.max,
		P95ProcessingTime: pm.p95,
	}
}
