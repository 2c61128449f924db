package services

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

// Normalizer turns a raw backend payload into a ResultEnvelope. It is shared
// by the callback receiver and the kiosk's pending-placeholder path.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize builds the envelope answering token. raw must be a JSON object;
// an empty raw is treated as {}.
func (n *Normalizer) Normalize(token string, raw []byte) (*models.ResultEnvelope, error) {
	envelope, _, err := n.normalize(token, raw)
	return envelope, err
}

// normalize also reports which prediction sections were defaulted
func (n *Normalizer) normalize(token string, raw []byte) (*models.ResultEnvelope, []string, error) {
	payload, err := decodeCallbackPayload(raw)
	if err != nil {
		return nil, nil, err
	}

	var processing models.ProcessingResult
	if isPresent(payload.RawProcessing) {
		if err := json.Unmarshal(payload.RawProcessing, &processing); err != nil {
			processing = models.ProcessingResult{}
		}
	}

	participantID := parseOptionalInt(payload.ParticipantID)
	var defaulted []string

	diabetes := models.DiabetesResult{
		Success:           true,
		DiabetesRisk:      models.UnknownPrediction,
		Saved:             parseBool(payload.ParticipantSaved),
		ParticipantID:     participantID,
		ProcessingResults: payload.RawProcessing,
	}
	if section, ok := decodeDiabetes(processing.DiabetesPrediction); ok {
		if section.Risk != nil && *section.Risk != "" {
			diabetes.DiabetesRisk = *section.Risk
		}
		diabetes.Confidence = clampConfidence(section.Confidence)
		diabetes.ResultID = parseOptionalInt(section.ResultID)
	} else {
		defaulted = append(defaulted, "diabetes_prediction")
	}

	bloodGroup := models.BloodGroupResult{
		Success:           true,
		Saved:             parseBool(payload.FingerprintSaved),
		ParticipantID:     participantID,
		ProcessingResults: payload.RawProcessing,
	}
	if section, ok := decodeBloodGroup(processing.BloodGroupClassification); ok {
		bloodGroup.PredictedBloodGroup = section.PredictedBloodGroup
		bloodGroup.Confidence = clampConfidence(section.Confidence)
		bloodGroup.AllProbabilities = section.AllProbabilities
	} else {
		unknown := models.UnknownPrediction
		bloodGroup.PredictedBloodGroup = &unknown
		defaulted = append(defaulted, "blood_group_classification")
	}

	envelope := &models.ResultEnvelope{
		DiabetesResult:   diabetes,
		BloodGroupResult: bloodGroup,
		BackendResponse:  compactJSON(raw),
		Timestamp:        n.now().UTC(),
		SessionID:        token,
	}
	if isPresent(payload.ParticipantData) {
		envelope.ParticipantData = payload.ParticipantData
	}

	return envelope, defaulted, nil
}

// CallbackReceipt is what the receiver stored and answers with
type CallbackReceipt struct {
	Token    string
	Minted   bool
	Envelope *models.ResultEnvelope
}

// CallbackService receives backend callbacks and writes the relay copy
type CallbackService struct {
	store      ResultStore
	normalizer *Normalizer
	tokens     *TokenGenerator
	ttl        time.Duration
	metrics    *shared.ServiceMetrics
}

func NewCallbackService(store ResultStore, normalizer *Normalizer, tokens *TokenGenerator, ttl time.Duration, metrics *shared.ServiceMetrics) *CallbackService {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	if tokens == nil {
		tokens = defaultTokenGenerator
	}
	if metrics == nil {
		metrics = shared.NewServiceMetrics("CallbackService")
	}
	return &CallbackService{
		store:      store,
		normalizer: normalizer,
		tokens:     tokens,
		ttl:        ttl,
		metrics:    metrics,
	}
}

// Receive normalizes raw and stores it under the dispatch token. Token
// candidates are tried in order: body session_id, body sessionId, then the
// out-of-band candidates (query, header). A token is minted only when none is set.
func (s *CallbackService) Receive(ctx context.Context, raw []byte, outOfBand ...string) (*CallbackReceipt, error) {
	start := time.Now()
	s.metrics.IncrementCustomCounter(shared.MetricCallbacksReceived)

	logger := logrus.WithField("component", "CallbackService")

	payload, err := decodeCallbackPayload(raw)
	if err != nil {
		s.metrics.RecordRequest(false, time.Since(start))
		return nil, err
	}

	candidates := append([]string{payload.SessionID, payload.SessionIDCamel}, outOfBand...)
	token, minted := s.resolveToken(candidates)
	if minted {
		s.metrics.IncrementCustomCounter(shared.MetricTokensMinted)
		logger.WithField("session_id", token).Warn("Callback carried no session token, minted a new one")
	}

	envelope, defaulted, err := s.normalizer.normalize(token, raw)
	if err != nil {
		s.metrics.RecordRequest(false, time.Since(start))
		return nil, err
	}
	if len(defaulted) > 0 {
		s.metrics.AddToCustomCounter(shared.MetricDefaultsApplied, int64(len(defaulted)))
		logger.WithFields(logrus.Fields{
			"session_id": token,
			"defaulted":  defaulted,
		}).Warn("Prediction missing or failed, defaulted to UNKNOWN")
	}

	if err := s.store.Put(ctx, token, envelope, s.ttl); err != nil {
		s.metrics.RecordRequest(false, time.Since(start))
		return nil, err
	}

	s.metrics.RecordRequest(true, time.Since(start))
	logger.WithFields(logrus.Fields{
		"session_id":      token,
		"minted":          minted,
		"diabetes_risk":   envelope.DiabetesResult.DiabetesRisk,
		"has_blood_group": envelope.BloodGroupResult.PredictedBloodGroup != nil,
	}).Info("Stored processing results")

	return &CallbackReceipt{Token: token, Minted: minted, Envelope: envelope}, nil
}

func (s *CallbackService) resolveToken(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if token := strings.TrimSpace(candidate); token != "" {
			return token, false
		}
	}
	return s.tokens.NewToken(), true
}

func decodeCallbackPayload(raw []byte) (*models.CallbackPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}

	if !json.Valid(trimmed) {
		return nil, shared.NewInternalError("CALLBACK_MALFORMED", "callback body is not valid JSON", "CallbackService", "Receive", nil)
	}
	if trimmed[0] != '{' {
		return nil, shared.NewValidationError("CALLBACK_NOT_OBJECT", "callback body must be a JSON object", "CallbackService", "Receive")
	}

	var payload models.CallbackPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		// Well-formed object with unexpected field types, e.g. a numeric session_id
		var loose map[string]json.RawMessage
		if lerr := json.Unmarshal(trimmed, &loose); lerr != nil {
			return nil, shared.NewInternalError("CALLBACK_MALFORMED", "callback body could not be decoded", "CallbackService", "Receive", err)
		}
		payload = models.CallbackPayload{
			SessionID:        parseString(loose["session_id"]),
			SessionIDCamel:   parseString(loose["sessionId"]),
			RawProcessing:    loose["processing_results"],
			ParticipantSaved: loose["participant_saved"],
			ParticipantID:    loose["participant_id"],
			FingerprintSaved: loose["fingerprint_saved"],
			ParticipantData:  loose["participant_data"],
		}
	}
	return &payload, nil
}

// decodeDiabetes reports ok=false when the section is absent, undecodable or
// carries an error marker
func decodeDiabetes(raw json.RawMessage) (*models.DiabetesPrediction, bool) {
	if !isPresent(raw) {
		return nil, false
	}
	var section models.DiabetesPrediction
	if err := json.Unmarshal(raw, &section); err != nil || hasErrorMarker(section.Error) {
		return nil, false
	}
	return &section, true
}

func decodeBloodGroup(raw json.RawMessage) (*models.BloodGroupClassification, bool) {
	if !isPresent(raw) {
		return nil, false
	}
	var section models.BloodGroupClassification
	if err := json.Unmarshal(raw, &section); err != nil || hasErrorMarker(section.Error) {
		return nil, false
	}
	return &section, true
}

func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// hasErrorMarker treats null, false and "" as no error
func hasErrorMarker(raw json.RawMessage) bool {
	if !isPresent(raw) {
		return false
	}
	trimmed := string(bytes.TrimSpace(raw))
	return trimmed != "false" && trimmed != `""`
}

func clampConfidence(value *float64) float64 {
	if value == nil || math.IsNaN(*value) {
		return 0
	}
	return math.Max(0, math.Min(1, *value))
}

func parseBool(raw json.RawMessage) bool {
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}
	return value
}

// parseOptionalInt accepts a JSON integer or a numeric string
func parseOptionalInt(raw json.RawMessage) *int64 {
	if !isPresent(raw) {
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil
		}
		number = json.Number(strings.TrimSpace(text))
	}
	value, err := strconv.ParseInt(number.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseString(raw json.RawMessage) string {
	if !isPresent(raw) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

func compactJSON(raw []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil || buf.Len() == 0 {
		return json.RawMessage("{}")
	}
	return buf.Bytes()
}
