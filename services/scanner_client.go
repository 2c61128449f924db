package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const scannerCapturePath = "/api/scanner/capture"

// Scanner captures one fingerprint on the attached device
type Scanner interface {
	Capture(ctx context.Context, req models.CaptureRequest) (*models.CaptureData, error)
}

// ScannerClient talks to the scanner's local capture API
type ScannerClient struct {
	client      *resty.Client
	callbackURL string
	RateLimiter *shared.HTTPRequestRateLimiter
}

// NewScannerClient creates a scanner client. callbackURL is sent with every
// capture so the ML backend knows where to post results.
func NewScannerClient(client *resty.Client, callbackURL string, minInterval time.Duration) *ScannerClient {
	return &ScannerClient{
		client:      client,
		callbackURL: callbackURL,
		RateLimiter: shared.NewHTTPRequestRateLimiter(minInterval),
	}
}

// Capture triggers a capture and returns the device's data section. Transport
// errors, non-2xx answers and success:false replies are upstream device errors.
func (c *ScannerClient) Capture(ctx context.Context, req models.CaptureRequest) (*models.CaptureData, error) {
	if err := c.RateLimiter.Wait(ctx); err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryTimeout, "CAPTURE_CANCELLED", "capture cancelled while waiting for the scanner", "ScannerClient", "Capture", true, err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"component":   "ScannerClient",
		"finger_name": req.FingerName,
		"session_id":  req.SessionID,
	})

	var reply models.CaptureResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader(models.CallbackURLHeader, c.callbackURL).
		SetBody(req).
		SetResult(&reply).
		SetError(&reply).
		Post(scannerCapturePath)
	if err != nil {
		logger.WithError(err).Error("Scanner request failed")
		return nil, shared.NewUpstreamDeviceError("SCANNER_UNREACHABLE", "scanner request failed", "ScannerClient", "Capture", err)
	}

	if res.IsError() || !reply.Success || reply.Data == nil {
		message := reply.Message
		if message == "" {
			message = "Scan failed"
		}
		logger.WithFields(logrus.Fields{
			"status_code": res.StatusCode(),
			"message":     message,
		}).Warn("Scanner reported a failed capture")
		return nil, shared.NewUpstreamDeviceError("CAPTURE_FAILED", message, "ScannerClient", "Capture", nil).
			WithDetails(map[string]interface{}{"status_code": res.StatusCode()})
	}

	if len(reply.Data.BackendError) > 0 && string(reply.Data.BackendError) != "null" {
		logger.WithField("backend_error", string(reply.Data.BackendError)).Warn("Scanner could not forward capture to the ML backend")
	}

	return reply.Data, nil
}
