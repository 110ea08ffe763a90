package shared

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPClientFactory creates optimized HTTP clients with standardized configuration
type HTTPClientFactory struct {
	defaultTimeout time.Duration
	mutex          sync.RWMutex
	clients        map[string]*http.Client
}

// NewHTTPClientFactory creates a new HTTP client factory
func NewHTTPClientFactory(defaultTimeout time.Duration) *HTTPClientFactory {
	return &HTTPClientFactory{
		defaultTimeout: defaultTimeout,
		clients:        make(map[string]*http.Client),
	}
}

// CreateOptimizedHTTPClient creates an HTTP client with connection pooling and optimized settings
func (f *HTTPClientFactory) CreateOptimizedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	clientKey := fmt.Sprintf("timeout_%d", timeout.Milliseconds())

	f.mutex.RLock()
	if client, exists := f.clients[clientKey]; exists {
		f.mutex.RUnlock()
		return client
	}
	f.mutex.RUnlock()

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	f.mutex.Lock()
	f.clients[clientKey] = client
	f.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"component":  "HTTPClientFactory",
		"timeout":    timeout,
		"client_key": clientKey,
	}).Debug("Created new optimized HTTP client")

	return client
}

// CleanupAllClients closes idle connections of every cached client
func (f *HTTPClientFactory) CleanupAllClients() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for key, client := range f.clients {
		if transport, ok := client.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
		delete(f.clients, key)
	}

	logrus.WithField("component", "HTTPClientFactory").Debug("Cleaned up all cached HTTP clients")
}

// SetBrowserLikeHeaders configures HTTP request headers to mimic browser behavior
func SetBrowserLikeHeaders(request *http.Request, acceptHeader string) {
	request.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	request.Header.Set("Accept", acceptHeader)
	request.Header.Set("Accept-Language", "en-US,en;q=0.9")
	request.Header.Set("Cache-Control", "no-cache")
}

// RetryPolicy controls ExecuteHTTPRequestWithPolicy
type RetryPolicy struct {
	MaxRetryAttempts int
	BaseBackoff      time.Duration
	Metrics          *HTTPMetrics
}

// IsRetryableStatus reports HTTP statuses worth another attempt
func IsRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// ExecuteHTTPRequestWithPolicy retries network errors and retryable statuses.
// Any other response, including 4xx, is returned to the caller with a nil error.
// Backoff waits are cut short when the request context is done.
func ExecuteHTTPRequestWithPolicy(client *http.Client, request *http.Request, policy RetryPolicy) (*http.Response, error) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "HTTPClientFactory",
		"method":    "ExecuteHTTPRequestWithPolicy",
		"url":       request.URL.Redacted(),
	})

	if policy.MaxRetryAttempts < 0 {
		policy.MaxRetryAttempts = 0
	}

	ctx := request.Context()
	var lastExecutionError error

	for attemptNumber := 0; attemptNumber <= policy.MaxRetryAttempts; attemptNumber++ {
		if attemptNumber > 0 {
			baseBackoffDuration := policy.BaseBackoff * time.Duration(1<<uint(attemptNumber-1))
			jitterDuration := time.Duration(float64(baseBackoffDuration) * 0.1 * (0.5 + 0.5*float64(attemptNumber%3)/2))
			totalBackoffDuration := baseBackoffDuration + jitterDuration

			logger.WithFields(logrus.Fields{
				"attempt":          attemptNumber + 1,
				"backoff_duration": totalBackoffDuration,
			}).Debug("Retrying HTTP request after backoff")

			if policy.Metrics != nil {
				policy.Metrics.RecordRetryAttempt()
			}

			timer := time.NewTimer(totalBackoffDuration)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, NewServiceError(ErrorCategoryTimeout, "REQUEST_CANCELLED",
					"request cancelled during retry backoff", "HTTPClientFactory", "ExecuteHTTPRequestWithPolicy", true, ctx.Err())
			case <-timer.C:
			}
		}

		startTime := time.Now()
		httpResponse, err := client.Do(request)
		elapsed := time.Since(startTime)

		if err != nil {
			isTimeout := IsTimeoutError(err)
			if policy.Metrics != nil {
				policy.Metrics.RecordHTTPRequest(false, 0, elapsed, "network", isTimeout)
			}
			category := ErrorCategoryNetwork
			if isTimeout {
				category = ErrorCategoryTimeout
			}
			lastExecutionError = NewServiceError(category, "HTTP_REQUEST_FAILED",
				fmt.Sprintf("attempt %d failed with network error: %v", attemptNumber+1, err),
				"HTTPClientFactory", "ExecuteHTTPRequestWithPolicy", true, err)
			logger.WithError(err).Debug("HTTP request failed with network error")
			if ctx.Err() != nil {
				return nil, lastExecutionError
			}
			continue
		}

		if !IsRetryableStatus(httpResponse.StatusCode) {
			if policy.Metrics != nil {
				policy.Metrics.RecordHTTPRequest(httpResponse.StatusCode == http.StatusOK, httpResponse.StatusCode, elapsed, "", false)
			}
			logger.WithFields(logrus.Fields{
				"attempt":     attemptNumber + 1,
				"status_code": httpResponse.StatusCode,
			}).Debug("HTTP request completed")
			return httpResponse, nil
		}

		if policy.Metrics != nil {
			policy.Metrics.RecordHTTPRequest(false, httpResponse.StatusCode, elapsed, "retryable_status", false)
		}
		lastExecutionError = NewServiceError(ErrorCategoryNetwork, "HTTP_RETRYABLE_STATUS",
			fmt.Sprintf("attempt %d failed with HTTP %d: %s", attemptNumber+1, httpResponse.StatusCode, http.StatusText(httpResponse.StatusCode)),
			"HTTPClientFactory", "ExecuteHTTPRequestWithPolicy", true, nil).WithDetails(map[string]int{"status_code": httpResponse.StatusCode})
		httpResponse.Body.Close()
	}

	totalAttempts := policy.MaxRetryAttempts + 1
	logger.WithFields(logrus.Fields{
		"total_attempts": totalAttempts,
		"final_error":    lastExecutionError,
	}).Warn("HTTP request failed after all retry attempts")

	return nil, WrapError(lastExecutionError, ErrorCategoryNetwork, "HTTP_RETRIES_EXHAUSTED", "HTTPClientFactory", "ExecuteHTTPRequestWithPolicy", true)
}
