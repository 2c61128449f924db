package services

import (
	"context"
	"errors"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/go-resty/resty/v2"
)

const checkResultsPath = "/api/check-results"

// RelayLookup reads the server-side relay copy. A hit hands custody to the
// caller and removes the relay entry.
type RelayLookup struct {
	store   ResultStore
	metrics *shared.ServiceMetrics
}

func NewRelayLookup(store ResultStore, metrics *shared.ServiceMetrics) *RelayLookup {
	if metrics == nil {
		metrics = shared.NewServiceMetrics("RelayLookup")
	}
	return &RelayLookup{store: store, metrics: metrics}
}

func (l *RelayLookup) Lookup(ctx context.Context, token string) (*models.ResultEnvelope, bool, error) {
	envelope, err := l.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrResultNotFound) {
			l.metrics.IncrementCustomCounter(shared.MetricLookupMisses)
			return nil, false, nil
		}
		return nil, false, err
	}

	if err := l.store.Delete(ctx, token); err != nil {
		return nil, false, err
	}

	l.metrics.IncrementCustomCounter(shared.MetricLookupHits)
	return envelope, true, nil
}

// HTTPLookupClient polls the lookup endpoint of a kiosk server
type HTTPLookupClient struct {
	client *resty.Client
}

func NewHTTPLookupClient(client *resty.Client) *HTTPLookupClient {
	return &HTTPLookupClient{client: client}
}

func (c *HTTPLookupClient) Lookup(ctx context.Context, token string) (*models.ResultEnvelope, bool, error) {
	var reply models.LookupResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("sessionId", token).
		SetResult(&reply).
		SetError(&reply).
		Get(checkResultsPath)
	if err != nil {
		return nil, false, shared.NewServiceError(shared.ErrorCategoryNetwork, "LOOKUP_UNREACHABLE", "lookup request failed", "HTTPLookupClient", "Lookup", true, err)
	}

	if res.IsError() || !reply.Success {
		message := reply.Error
		if message == "" {
			message = "lookup failed"
		}
		return nil, false, shared.NewServiceError(shared.ErrorCategoryNetwork, "LOOKUP_FAILED", message, "HTTPLookupClient", "Lookup", true, nil).
			WithDetails(map[string]interface{}{"status_code": res.StatusCode()})
	}

	if !reply.HasResults || reply.Results == nil {
		return nil, false, nil
	}
	return reply.Results, true, nil
}
