package shared

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// HTTPClientConfig configures a resty client for one upstream
type HTTPClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	MaxRetryAttempts int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
}

// HTTPClientFactory creates resty clients with standardized configuration and
// caches them per base URL
type HTTPClientFactory struct {
	defaultTimeout time.Duration
	mutex          sync.RWMutex
	clients        map[string]*resty.Client
}

// NewHTTPClientFactory creates a new HTTP client factory
func NewHTTPClientFactory(defaultTimeout time.Duration) *HTTPClientFactory {
	return &HTTPClientFactory{
		defaultTimeout: defaultTimeout,
		clients:        make(map[string]*resty.Client),
	}
}

// Client returns the cached client for cfg.BaseURL, creating it on first use
func (f *HTTPClientFactory) Client(cfg HTTPClientConfig) *resty.Client {
	f.mutex.RLock()
	if client, exists := f.clients[cfg.BaseURL]; exists {
		f.mutex.RUnlock()
		return client
	}
	f.mutex.RUnlock()

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if client, exists := f.clients[cfg.BaseURL]; exists {
		return client
	}

	client := NewRestyClient(cfg, f.defaultTimeout)
	f.clients[cfg.BaseURL] = client

	logrus.WithFields(logrus.Fields{
		"component": "HTTPClientFactory",
		"base_url":  cfg.BaseURL,
		"timeout":   client.GetClient().Timeout,
	}).Debug("Created new HTTP client")

	return client
}

// NewRestyClient builds a client that retries transport errors and 5xx answers
// with exponential backoff. 4xx answers are never retried.
func NewRestyClient(cfg HTTPClientConfig, defaultTimeout time.Duration) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retryWait := cfg.RetryWaitTime
	if retryWait <= 0 {
		retryWait = 500 * time.Millisecond
	}
	retryMaxWait := cfg.RetryMaxWaitTime
	if retryMaxWait <= 0 {
		retryMaxWait = 4 * time.Second
	}

	logger := logrus.WithFields(logrus.Fields{
		"component": "HTTPClient",
		"base_url":  cfg.BaseURL,
	})

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetLogger(logger).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetryAttempts).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return res.StatusCode() >= http.StatusInternalServerError
		})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.WithFields(logrus.Fields{
			"method":      res.Request.Method,
			"url":         res.Request.URL,
			"status_code": res.StatusCode(),
			"duration":    res.Time(),
		}).Debug("HTTP request completed")
		return nil
	})

	return client
}

// CleanupAllClients closes idle connections of all cached clients
func (f *HTTPClientFactory) CleanupAllClients() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for key, client := range f.clients {
		if transport, ok := client.GetClient().Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
		delete(f.clients, key)
	}

	logrus.WithField("component", "HTTPClientFactory").Debug("Cleaned up all cached HTTP clients")
}
