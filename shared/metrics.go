package shared

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks performance and success metrics for services
type ServiceMetrics struct {
	ServiceName           string
	TotalRequests         int64
	SuccessfulRequests    int64
	FailedRequests        int64
	TotalProcessingTime   time.Duration
	AverageProcessingTime time.Duration
	LastUpdated           time.Time
	CustomMetrics         map[string]interface{}
	PerformanceMetrics    *PerformanceMetrics
	mutex                 sync.RWMutex
}

// ServiceMetricsSnapshot is a lock-free copy of ServiceMetrics
type ServiceMetricsSnapshot struct {
	ServiceName           string                 `json:"service_name"`
	TotalRequests         int64                  `json:"total_requests"`
	SuccessfulRequests    int64                  `json:"successful_requests"`
	FailedRequests        int64                  `json:"failed_requests"`
	SuccessRate           float64                `json:"success_rate"`
	TotalProcessingTime   time.Duration          `json:"total_processing_time"`
	AverageProcessingTime time.Duration          `json:"average_processing_time"`
	LastUpdated           time.Time              `json:"last_updated"`
	CustomMetrics         map[string]interface{} `json:"custom_metrics"`
	Performance           PerformanceSnapshot    `json:"performance"`
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

func (m *ServiceMetrics) successRateLocked() float64 {
	if m.TotalRequests == 0 {
		return 0.0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100.0
}

// SetCustomMetric sets a custom metric value
func (m *ServiceMetrics) SetCustomMetric(key string, value interface{}) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.CustomMetrics[key] = value
	m.LastUpdated = time.Now()
}

// GetCustomMetric gets a custom metric value
func (m *ServiceMetrics) GetCustomMetric(key string) (interface{}, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	value, exists := m.CustomMetrics[key]
	return value, exists
}

// GetCounter returns a counter set by IncrementCustomCounter, or 0
func (m *ServiceMetrics) GetCounter(key string) int64 {
	value, exists := m.GetCustomMetric(key)
	if !exists {
		return 0
	}
	counter, _ := value.(int64)
	return counter
}

// IncrementCustomCounter increments a custom counter metric
func (m *ServiceMetrics) IncrementCustomCounter(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if counter, ok := m.CustomMetrics[key].(int64); ok {
		m.CustomMetrics[key] = counter + 1
	} else {
		m.CustomMetrics[key] = int64(1)
	}

	m.LastUpdated = time.Now()
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() ServiceMetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	customMetricsCopy := make(map[string]interface{}, len(m.CustomMetrics))
	for k, v := range m.CustomMetrics {
		customMetricsCopy[k] = v
	}

	snapshot := ServiceMetricsSnapshot{
		ServiceName:           m.ServiceName,
		TotalRequests:         m.TotalRequests,
		SuccessfulRequests:    m.SuccessfulRequests,
		FailedRequests:        m.FailedRequests,
		SuccessRate:           m.successRateLocked(),
		TotalProcessingTime:   m.TotalProcessingTime,
		AverageProcessingTime: m.AverageProcessingTime,
		LastUpdated:           m.LastUpdated,
		CustomMetrics:         customMetricsCopy,
	}
	if m.PerformanceMetrics != nil {
		snapshot.Performance = m.PerformanceMetrics.GetPerformanceSnapshot()
	}
	return snapshot
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

// DatabaseMetrics tracks database operation performance and success rates
type DatabaseMetrics struct {
	TotalQueries      int64
	SuccessfulQueries int64
	FailedQueries     int64
	SlowQueries       int64
	TotalQueryTime    time.Duration
	AverageQueryTime  time.Duration
	mutex             sync.RWMutex
}

// DatabaseMetricsSnapshot is a lock-free copy of DatabaseMetrics
type DatabaseMetricsSnapshot struct {
	TotalQueries      int64         `json:"total_queries"`
	SuccessfulQueries int64         `json:"successful_queries"`
	FailedQueries     int64         `json:"failed_queries"`
	SlowQueries       int64         `json:"slow_queries"`
	AverageQueryTime  time.Duration `json:"average_query_time"`
}

// NewDatabaseMetrics creates a new database metrics tracker
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// RecordQuery records a database query with its success status and execution time
func (dm *DatabaseMetrics) RecordQuery(success bool, queryTime time.Duration, isSlowQuery bool) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.TotalQueries++
	dm.TotalQueryTime += queryTime
	dm.AverageQueryTime = time.Duration(int64(dm.TotalQueryTime) / dm.TotalQueries)

	if success {
		dm.SuccessfulQueries++
	} else {
		dm.FailedQueries++
	}

	if isSlowQuery {
		dm.SlowQueries++
	}
}

// GetSnapshot returns a thread-safe copy of the counters
func (dm *DatabaseMetrics) GetSnapshot() DatabaseMetricsSnapshot {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	return DatabaseMetricsSnapshot{
		TotalQueries:      dm.TotalQueries,
		SuccessfulQueries: dm.SuccessfulQueries,
		FailedQueries:     dm.FailedQueries,
		SlowQueries:       dm.SlowQueries,
		AverageQueryTime:  dm.AverageQueryTime,
	}
}

// HTTPMetrics tracks HTTP client performance and success rates
type HTTPMetrics struct {
	TotalRequests       int64
	SuccessfulRequests  int64
	FailedRequests      int64
	TimeoutRequests     int64
	RetryAttempts       int64
	TotalResponseTime   time.Duration
	AverageResponseTime time.Duration
	StatusCodeCounts    map[int]int64
	ErrorCounts         map[string]int64
	mutex               sync.RWMutex
}

// HTTPMetricsSnapshot is a lock-free copy of HTTPMetrics
type HTTPMetricsSnapshot struct {
	TotalRequests       int64            `json:"total_requests"`
	SuccessfulRequests  int64            `json:"successful_requests"`
	FailedRequests      int64            `json:"failed_requests"`
	TimeoutRequests     int64            `json:"timeout_requests"`
	RetryAttempts       int64            `json:"retry_attempts"`
	SuccessRate         float64          `json:"http_success_rate"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	StatusCodeCounts    map[int]int64    `json:"status_code_counts"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
}

// NewHTTPMetrics creates a new HTTP metrics tracker
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		StatusCodeCounts: make(map[int]int64),
		ErrorCounts:      make(map[string]int64),
	}
}

// RecordHTTPRequest records an HTTP request with its result
func (hm *HTTPMetrics) RecordHTTPRequest(success bool, statusCode int, responseTime time.Duration, errorType string, isTimeout bool) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.TotalRequests++
	hm.TotalResponseTime += responseTime
	hm.AverageResponseTime = time.Duration(int64(hm.TotalResponseTime) / hm.TotalRequests)

	if success {
		hm.SuccessfulRequests++
	} else {
		hm.FailedRequests++
	}

	if isTimeout {
		hm.TimeoutRequests++
	}

	hm.StatusCodeCounts[statusCode]++

	if errorType != "" {
		hm.ErrorCounts[errorType]++
	}
}

// RecordRetryAttempt records a retry attempt
func (hm *HTTPMetrics) RecordRetryAttempt() {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.RetryAttempts++
}

// GetSnapshot returns a thread-safe copy of the counters
func (hm *HTTPMetrics) GetSnapshot() HTTPMetricsSnapshot {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	statusCodes := make(map[int]int64, len(hm.StatusCodeCounts))
	for code, count := range hm.StatusCodeCounts {
		statusCodes[code] = count
	}
	errorCounts := make(map[string]int64, len(hm.ErrorCounts))
	for errType, count := range hm.ErrorCounts {
		errorCounts[errType] = count
	}

	successRate := 0.0
	if hm.TotalRequests > 0 {
		successRate = float64(hm.SuccessfulRequests) / float64(hm.TotalRequests) * 100.0
	}

	return HTTPMetricsSnapshot{
		TotalRequests:       hm.TotalRequests,
		SuccessfulRequests:  hm.SuccessfulRequests,
		FailedRequests:      hm.FailedRequests,
		TimeoutRequests:     hm.TimeoutRequests,
		RetryAttempts:       hm.RetryAttempts,
		SuccessRate:         successRate,
		AverageResponseTime: hm.AverageResponseTime,
		StatusCodeCounts:    statusCodes,
		ErrorCounts:         errorCounts,
	}
}

// LogHTTPSummary logs comprehensive HTTP metrics
func (hm *HTTPMetrics) LogHTTPSummary() {
	snapshot := hm.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"total_requests":        snapshot.TotalRequests,
		"failed_requests":       snapshot.FailedRequests,
		"timeout_requests":      snapshot.TimeoutRequests,
		"retry_attempts":        snapshot.RetryAttempts,
		"http_success_rate":     snapshot.SuccessRate,
		"average_response_time": snapshot.AverageResponseTime,
		"status_code_counts":    snapshot.StatusCodeCounts,
	}).Info("HTTP metrics summary")
}

// PerformanceMetrics tracks detailed performance measurements
type PerformanceMetrics struct {
	mutex           sync.RWMutex
	minimum         time.Duration
	maximum         time.Duration
	processingTimes []time.Duration
}

// PerformanceSnapshot holds percentile figures of recent samples
type PerformanceSnapshot struct {
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	P95ProcessingTime time.Duration `json:"p95_processing_time"`
	P99ProcessingTime time.Duration `json:"p99_processing_time"`
}

const maxPerformanceSamples = 1000

// NewPerformanceMetrics creates a new performance metrics tracker
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		processingTimes: make([]time.Duration, 0, maxPerformanceSamples),
	}
}

// RecordProcessingTime records a processing time sample, keeping the last 1000
func (pm *PerformanceMetrics) RecordProcessingTime(duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.minimum == 0 || duration < pm.minimum {
		pm.minimum = duration
	}
	if duration > pm.maximum {
		pm.maximum = duration
	}

	if len(pm.processingTimes) >= maxPerformanceSamples {
		pm.processingTimes = pm.processingTimes[1:]
	}
	pm.processingTimes = append(pm.processingTimes, duration)
}

// GetPerformanceSnapshot returns min, max and percentiles of the recorded samples
func (pm *PerformanceMetrics) GetPerformanceSnapshot() PerformanceSnapshot {
	pm.mutex.RLock()
	times := make([]time.Duration, len(pm.processingTimes))
	copy(times, pm.processingTimes)
	snapshot := PerformanceSnapshot{
		MinProcessingTime: pm.minimum,
		MaxProcessingTime: pm.maximum,
	}
	pm.mutex.RUnlock()

	if len(times) == 0 {
		return snapshot
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	p95Index := int(float64(len(times)) * 0.95)
	p99Index := int(float64(len(times)) * 0.99)
	if p95Index >= len(times) {
		p95Index = len(times) - 1
	}
	if p99Index >= len(times) {
		p99Index = len(times) - 1
	}
	snapshot.P95ProcessingTime = times[p95Index]
	snapshot.P99ProcessingTime = times[p99Index]

	return snapshot
}
