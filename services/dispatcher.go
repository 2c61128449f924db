package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

const capturedContentType = "image/png"

// ScanDispatcher runs the request/response half of a scan: it tags the
// capture with a session token when server-side processing is expected and
// decodes the returned image.
type ScanDispatcher struct {
	scanner Scanner
	tokens  *TokenGenerator
	metrics *shared.ServiceMetrics

	mutex   sync.RWMutex
	current string
}

func NewScanDispatcher(scanner Scanner, tokens *TokenGenerator, metrics *shared.ServiceMetrics) *ScanDispatcher {
	if tokens == nil {
		tokens = defaultTokenGenerator
	}
	if metrics == nil {
		metrics = shared.NewServiceMetrics("ScanDispatcher")
	}
	return &ScanDispatcher{
		scanner: scanner,
		tokens:  tokens,
		metrics: metrics,
	}
}

// Dispatch captures finger. participant may be nil; when present a token is
// minted and becomes the current one. The returned result has Waiting set when
// the scanner forwarded the capture to the ML backend.
func (d *ScanDispatcher) Dispatch(ctx context.Context, finger models.FingerName, participant json.RawMessage) (*models.CaptureResult, error) {
	start := time.Now()

	req := models.CaptureRequest{FingerName: finger}
	if isPresent(participant) {
		req.ParticipantData = participant
		req.SessionID = d.tokens.NewToken()
		d.setCurrent(req.SessionID)
	}

	logger := logrus.WithFields(logrus.Fields{
		"component":   "ScanDispatcher",
		"finger_name": finger,
		"session_id":  req.SessionID,
	})

	data, err := d.scanner.Capture(ctx, req)
	if err != nil {
		d.metrics.IncrementCustomCounter(shared.MetricCapturesFailed)
		d.metrics.RecordRequest(false, time.Since(start))
		return nil, err
	}

	content, err := decodeImage(data.ImageData)
	if err != nil {
		d.metrics.IncrementCustomCounter(shared.MetricCapturesFailed)
		d.metrics.RecordRequest(false, time.Since(start))
		return nil, shared.NewUpstreamDeviceError("IMAGE_DECODE_FAILED", "scanner returned an undecodable image", "ScanDispatcher", "Dispatch", err)
	}

	result := &models.CaptureResult{
		File: models.CapturedFile{
			FingerName:  finger,
			FileName:    finger.FileName(),
			ContentType: capturedContentType,
			Content:     content,
		},
		SessionID: req.SessionID,
		Waiting:   req.SessionID != "" && data.ProcessingStatus == models.ProcessingStatusSentToBackend,
	}

	d.metrics.IncrementCustomCounter(shared.MetricCapturesOK)
	d.metrics.RecordRequest(true, time.Since(start))
	logger.WithFields(logrus.Fields{
		"bytes":             len(content),
		"processing_status": data.ProcessingStatus,
		"waiting":           result.Waiting,
	}).Info("Fingerprint captured")

	return result, nil
}

// Current returns the token of the latest dispatch that carried participant data
func (d *ScanDispatcher) Current() string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.current
}

func (d *ScanDispatcher) setCurrent(token string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.current = token
}

// decodeImage accepts padded or unpadded base64, with or without a data URL prefix
func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	if content, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return content, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
}
