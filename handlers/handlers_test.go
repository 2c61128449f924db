package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testImage = []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0x02}

type testServer struct {
	app      *fiber.App
	relay    *services.MemoryResultStore
	kiosk    *services.KioskService
	callback *services.CallbackService
}

// newTestServer wires the real services against an httptest scanner that
// answers with scannerReply
func newTestServer(t *testing.T, scannerStatus int, scannerReply interface{}) *testServer {
	t.Helper()

	scanner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(scannerStatus)
		_ = json.NewEncoder(w).Encode(scannerReply)
	}))
	t.Cleanup(scanner.Close)

	relay := services.NewMemoryResultStore(100)
	tokens := services.NewTokenGenerator()
	normalizer := services.NewNormalizer()
	callbackMetrics := shared.NewServiceMetrics("CallbackService")

	callback := services.NewCallbackService(relay, normalizer, tokens, time.Hour, callbackMetrics)
	lookup := services.NewRelayLookup(relay, nil)

	scannerClient := services.NewScannerClient(
		shared.NewRestyClient(shared.HTTPClientConfig{BaseURL: scanner.URL, Timeout: 2 * time.Second}, time.Second),
		"http://kiosk.test/api/process-callback",
		0,
	)
	dispatcher := services.NewScanDispatcher(scannerClient, tokens, nil)
	poller := services.NewResultPoller(lookup, 20*time.Millisecond, 2*time.Second, nil)
	kiosk := services.NewKioskService(dispatcher, poller, services.NewClientResultStore(services.NewMemorySessionStorage()), normalizer, 24*time.Hour)
	t.Cleanup(func() { kiosk.EndSession(context.Background()) })

	directory, err := services.LoadFacilityDirectory("")
	require.NoError(t, err)

	app := NewApp()
	routes := &Routes{
		Callback:   NewCallbackHandler(callback),
		Results:    NewResultsHandler(lookup, kiosk, directory),
		Scan:       NewScanHandler(kiosk),
		Facilities: NewFacilityHandler(directory),
		Metrics:    NewMetricsHandler(nil, callbackMetrics),
		Health:     NewHealthHandler("memory", nil),
	}
	routes.Register(app)

	return &testServer{app: app, relay: relay, kiosk: kiosk, callback: callback}
}

func forwardedScannerReply() map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"image_data":        base64.StdEncoding.EncodeToString(testImage),
			"processing_status": models.ProcessingStatusSentToBackend,
		},
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return resp.StatusCode, decoded
}

func TestCheckResults_MissingSessionID(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodGet, "/api/check-results", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Session ID required"}, body)
}

func TestCheckResults_UnknownSession(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodGet, "/api/check-results?sessionId=session_0_never", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["hasResults"])
	assert.Equal(t, "Results not yet available", body["message"])
}

func TestCheckResults_FoundThenConsumed(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodPost, "/api/process-callback?sessionId=session_1_abc",
		`{"processing_results":{"diabetes_prediction":{"risk":"Healthy","confidence":0.92}},"participant_id":7}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "session_1_abc", body["sessionId"])

	status, body = s.do(t, http.MethodGet, "/api/check-results?sessionId=session_1_abc", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["hasResults"])
	assert.Equal(t, true, body["shouldStoreInClient"])
	results, ok := body["results"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "session_1_abc", results["sessionId"])
	assert.Equal(t, "Healthy", results["diabetesResult"].(map[string]interface{})["diabetes_risk"])

	_, body = s.do(t, http.MethodGet, "/api/check-results?sessionId=session_1_abc", "")
	assert.Equal(t, false, body["hasResults"], "relay copy is single-read")
}

// failingStore fails every operation
type failingStore struct{}

func (failingStore) Put(context.Context, string, *models.ResultEnvelope, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Get(context.Context, string) (*models.ResultEnvelope, error) {
	return nil, errors.New("store down")
}
func (failingStore) Delete(context.Context, string) error      { return errors.New("store down") }
func (failingStore) PurgeExpired(context.Context) (int, error) { return 0, errors.New("store down") }

func TestCheckResults_StoreFailure(t *testing.T) {
	app := NewApp()
	(&Routes{Results: NewResultsHandler(services.NewRelayLookup(failingStore{}, nil), nil, nil)}).Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/check-results?sessionId=t1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Failed to check results"}, body)
}

func TestProcessCallback_Success(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodPost, "/api/process-callback", `{
		"session_id": "session_5_xyz",
		"processing_results": {"blood_group_classification": {"predicted_blood_group": "AB-", "confidence": 0.6}},
		"participant_saved": true,
		"participant_id": 7,
		"fingerprint_saved": true,
		"participant_data": {"age": 30}
	}`)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "session_5_xyz", body["sessionId"])
	assert.Equal(t, true, body["shouldStore"])
	assert.Equal(t, true, body["navigateToResults"])
	assert.NotEmpty(t, body["message"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "session_5_xyz", data["sessionId"])
	diabetes := data["diabetesResult"].(map[string]interface{})
	assert.Equal(t, models.UnknownPrediction, diabetes["diabetes_risk"])
	assert.Equal(t, 0.0, diabetes["confidence"])
	assert.Equal(t, "AB-", data["bloodGroupResult"].(map[string]interface{})["predicted_blood_group"])

	stored, err := s.relay.Get(context.Background(), "session_5_xyz")
	require.NoError(t, err)
	assert.Equal(t, "session_5_xyz", stored.SessionID)
}

func TestProcessCallback_HeaderToken(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	req := httptest.NewRequest(http.MethodPost, "/api/process-callback", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionIDHeader, "session_9_hdr")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = s.relay.Get(context.Background(), "session_9_hdr")
	assert.NoError(t, err)
}

func TestProcessCallback_MalformedBody(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodPost, "/api/process-callback", `{"processing_results":`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Failed to process callback"}, body)

	status, body = s.do(t, http.MethodPost, "/api/process-callback", `["not", "an", "object"]`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, 0, s.relay.Size())
}

func TestStartScan_WaitsAndFindsResults(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodPost, "/api/scan", `{"finger_name":"right_thumb","participant_data":{"age":30}}`)
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "right_thumb", data["finger_name"])
	assert.Equal(t, "right_thumb.png", data["file_name"])
	assert.Equal(t, "image/png", data["content_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(testImage), data["image_data"])
	assert.Equal(t, true, data["waiting"])
	sessionID, _ := data["session_id"].(string)
	require.NotEmpty(t, sessionID)

	_, body = s.do(t, http.MethodGet, "/api/scan/"+sessionID, "")
	assert.Equal(t, string(models.PollWaiting), body["state"])

	_, err := s.callback.Receive(context.Background(),
		[]byte(`{"session_id":"`+sessionID+`","processing_results":{"diabetes_prediction":{"risk":"Diabetic","confidence":0.8}}}`))
	require.NoError(t, err)

	poll, ok := s.kiosk.PollSession(sessionID)
	require.True(t, ok)
	select {
	case <-poll.Done():
	case <-time.After(time.Second):
		t.Fatal("poll did not finish")
	}

	_, body = s.do(t, http.MethodGet, "/api/scan/"+sessionID, "")
	assert.Equal(t, string(models.PollFound), body["state"])
	assert.Equal(t, "/result?sid="+sessionID, body["navigateTo"])

	status, body = s.do(t, http.MethodGet, "/api/results?sid="+sessionID, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["hasResults"])

	_, body = s.do(t, http.MethodGet, "/api/results", "")
	assert.Equal(t, true, body["hasResults"], "current pointer resolves without sid")

	status, body = s.do(t, http.MethodGet, "/api/results/"+sessionID+"/referrals?city=Angeles", "")
	assert.Equal(t, http.StatusOK, status)
	referrals := body["referrals"].([]interface{})
	assert.Len(t, referrals, 3)

	_, body = s.do(t, http.MethodDelete, "/api/results", "")
	assert.Equal(t, true, body["success"])
	_, body = s.do(t, http.MethodGet, "/api/results?s="+sessionID, "")
	assert.Equal(t, false, body["hasResults"])
}

func TestStartScan_InvalidFinger(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodPost, "/api/scan", `{"finger_name":"sixth_finger"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid finger name", body["error"])
}

func TestStartScan_DeviceFailure(t *testing.T) {
	s := newTestServer(t, http.StatusOK, map[string]interface{}{"success": false, "message": "No finger detected"})

	status, body := s.do(t, http.MethodPost, "/api/scan", `{"finger_name":"left_index"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Failed to scan fingerprint", "retryable": true}, body)
}

func TestScanStatus_UnknownAndCancel(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, _ := s.do(t, http.MethodGet, "/api/scan/session_0_missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodDelete, "/api/scan/session_0_missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	_, body := s.do(t, http.MethodPost, "/api/scan", `{"finger_name":"left_thumb","participant_data":{"age":41}}`)
	sessionID := body["data"].(map[string]interface{})["session_id"].(string)

	status, body = s.do(t, http.MethodDelete, "/api/scan/"+sessionID, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.PollCancelled), body["state"])

	_, body = s.do(t, http.MethodGet, "/api/scan/"+sessionID, "")
	assert.Equal(t, string(models.PollCancelled), body["state"])
}

func TestReferrals_UnknownSession(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodGet, "/api/results/session_0_none/referrals", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}

func TestListFacilities(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())

	status, body := s.do(t, http.MethodGet, "/api/facilities?kind=diabetes_lab&city=Mabalacat", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	labs := data["diabetes_lab"].([]interface{})
	require.Len(t, labs, 1)
	assert.Equal(t, "Mabalacat", labs[0].(map[string]interface{})["city"])
	assert.Len(t, data, 1)

	_, body = s.do(t, http.MethodGet, "/api/facilities", "")
	assert.Len(t, body["data"].(map[string]interface{}), 4)
	assert.Len(t, body["cities"].([]interface{}), 3)

	status, _ = s.do(t, http.MethodGet, "/api/facilities?kind=pharmacy", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsAndHealth(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())
	s.do(t, http.MethodPost, "/api/process-callback", `{"session_id":"session_2_m"}`)

	status, body := s.do(t, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, status)
	callback := body["services"].(map[string]interface{})["CallbackService"].(map[string]interface{})
	counters := callback["custom_metrics"].(map[string]interface{})
	assert.Equal(t, 1.0, counters[shared.MetricCallbacksReceived])

	status, body = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store_backend"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	app := NewApp()
	(&Routes{Health: NewHealthHandler("postgres", func(context.Context) error { return errors.New("down") })}).Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProcessCallback_TokensSurviveLaterRequests(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())
	ctx := context.Background()

	status, _ := s.do(t, http.MethodPost, "/api/process-callback?sessionId=session_AAAAAAAAAA", `{}`)
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodPost, "/api/process-callback", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionIDHeader, "session_HHHHHHHHHH")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for i := 0; i < 10; i++ {
		s.do(t, http.MethodGet, fmt.Sprintf("/api/check-results?sessionId=session_ZZZZZZZZ%02d", i), "")
		s.do(t, http.MethodPost, fmt.Sprintf("/api/process-callback?sessionId=session_BBBBBBBB%02d", i), `{}`)
	}

	for _, token := range []string{"session_AAAAAAAAAA", "session_HHHHHHHHHH"} {
		stored, err := s.relay.Get(ctx, token)
		require.NoError(t, err, token)
		assert.Equal(t, token, stored.SessionID)
	}
	assert.Equal(t, 12, s.relay.Size())
}

func TestGetResults_ReservedKeyKeepsCurrentPointer(t *testing.T) {
	s := newTestServer(t, http.StatusOK, forwardedScannerReply())
	ctx := context.Background()

	envelope, err := services.NewNormalizer().Normalize("session_7_cur", []byte(`{"processing_results":{"diabetes_prediction":{"risk":"Healthy","confidence":0.8}}}`))
	require.NoError(t, err)
	require.NoError(t, s.kiosk.StoreResults(ctx, envelope))

	status, body := s.do(t, http.MethodGet, "/api/results?sid="+services.CurrentSessionKey, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["hasResults"])

	_, body = s.do(t, http.MethodGet, "/api/results", "")
	assert.Equal(t, true, body["hasResults"], "current pointer still resolves")
	assert.Equal(t, "session_7_cur", body["results"].(map[string]interface{})["sessionId"])
}
