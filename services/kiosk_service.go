package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/sirupsen/logrus"
)

// ErrScanSessionNotFound is returned for tokens the kiosk never dispatched
var ErrScanSessionNotFound = errors.New("scan session not found")

const resultsPath = "/result"

type scanSession struct {
	finger      models.FingerName
	participant json.RawMessage
	poll        *PollSession
	finishedAt  time.Time
}

// ScanStatus describes a dispatched scan as the operator view sees it
type ScanStatus struct {
	SessionID  string            `json:"sessionId"`
	FingerName models.FingerName `json:"fingerName"`
	State      models.PollState  `json:"state"`
	Attempts   int               `json:"attempts"`
	NavigateTo string            `json:"navigateTo,omitempty"`
}

// KioskService drives the kiosk side of a scan: dispatch, polling and the
// durable client-side copy of the results. Only one poll session is active at
// a time; starting a new one tears down the previous view's session.
type KioskService struct {
	dispatcher  *ScanDispatcher
	poller      *ResultPoller
	clientStore *ClientResultStore
	normalizer  *Normalizer
	clientTTL   time.Duration

	mutex    sync.Mutex
	sessions map[string]*scanSession
	active   string
}

func NewKioskService(dispatcher *ScanDispatcher, poller *ResultPoller, clientStore *ClientResultStore, normalizer *Normalizer, clientTTL time.Duration) *KioskService {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &KioskService{
		dispatcher:  dispatcher,
		poller:      poller,
		clientStore: clientStore,
		normalizer:  normalizer,
		clientTTL:   clientTTL,
		sessions:    make(map[string]*scanSession),
	}
}

// StartScan captures finger and, when the capture went to the ML backend,
// starts waiting for its results. Capture errors leave earlier sessions intact.
func (k *KioskService) StartScan(ctx context.Context, finger models.FingerName, participant json.RawMessage) (*models.CaptureResult, error) {
	result, err := k.dispatcher.Dispatch(ctx, finger, participant)
	if err != nil {
		return nil, err
	}
	if !result.Waiting {
		return result, nil
	}

	session := &scanSession{finger: finger, participant: participant}

	k.mutex.Lock()
	previous := k.sessions[k.active]
	k.sessions[result.SessionID] = session
	k.active = result.SessionID
	// The session must be registered before the poll can finish
	session.poll = k.poller.Start(result.SessionID, k.onPollDone)
	k.mutex.Unlock()

	if previous != nil && previous.poll != nil {
		previous.poll.Cancel()
	}

	return result, nil
}

func (k *KioskService) onPollDone(outcome PollOutcome) {
	logger := logrus.WithFields(logrus.Fields{
		"component":  "KioskService",
		"session_id": outcome.Token,
		"state":      outcome.State,
	})

	k.mutex.Lock()
	session := k.sessions[outcome.Token]
	if session != nil {
		session.finishedAt = time.Now()
	}
	k.mutex.Unlock()

	// Ended kiosk sessions keep nothing
	if session == nil {
		return
	}

	ctx := context.Background()
	switch outcome.State {
	case models.PollFound:
		if err := k.StoreResults(ctx, outcome.Envelope); err != nil {
			logger.WithError(err).Error("Failed to keep results on the kiosk")
		}
	case models.PollTimeout:
		placeholder, err := k.pendingPlaceholder(outcome.Token, session.participant)
		if err == nil {
			err = k.StoreResults(ctx, placeholder)
		}
		if err != nil {
			logger.WithError(err).Error("Failed to store pending placeholder")
			return
		}
		logger.Warn("No results arrived in time, continuing with a pending placeholder")
	}
}

// StoreResults keeps envelope on the kiosk and makes it the current results
func (k *KioskService) StoreResults(ctx context.Context, envelope *models.ResultEnvelope) error {
	if err := k.clientStore.Put(ctx, envelope.SessionID, envelope, k.clientTTL); err != nil {
		return err
	}
	if envelope.SessionID != "" {
		k.clientStore.SetCurrent(envelope.SessionID)
	}
	return nil
}

func (k *KioskService) pendingPlaceholder(token string, participant json.RawMessage) (*models.ResultEnvelope, error) {
	raw := []byte("{}")
	if isPresent(participant) {
		encoded, err := json.Marshal(map[string]json.RawMessage{"participant_data": participant})
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	envelope, err := k.normalizer.Normalize(token, raw)
	if err != nil {
		return nil, err
	}
	envelope.Pending = true
	return envelope, nil
}

// ScanStatus reports the poll state of a dispatched scan
func (k *KioskService) ScanStatus(token string) (*ScanStatus, error) {
	k.mutex.Lock()
	session, ok := k.sessions[token]
	k.mutex.Unlock()
	if !ok {
		return nil, ErrScanSessionNotFound
	}

	outcome := session.poll.Outcome()
	status := &ScanStatus{
		SessionID:  token,
		FingerName: session.finger,
		State:      outcome.State,
		Attempts:   outcome.Attempts,
	}
	if outcome.State == models.PollFound {
		status.NavigateTo = ResultsURL(token)
	}
	return status, nil
}

// CancelScan stops waiting for token's results
func (k *KioskService) CancelScan(token string) error {
	k.mutex.Lock()
	session, ok := k.sessions[token]
	if ok && k.active == token {
		k.active = ""
	}
	k.mutex.Unlock()
	if !ok {
		return ErrScanSessionNotFound
	}

	session.poll.Cancel()
	return nil
}

// PollSession returns the poll handle of token, for callers that need to wait on it
func (k *KioskService) PollSession(token string) (*PollSession, bool) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	session, ok := k.sessions[token]
	if !ok {
		return nil, false
	}
	return session.poll, true
}

// LoadResults reads the kiosk copy for sid, or the current results when sid is empty
func (k *KioskService) LoadResults(ctx context.Context, sid string) (*models.ResultEnvelope, error) {
	return k.clientStore.Load(ctx, sid)
}

// EndSession cancels every poll and forgets all results kept on the kiosk
func (k *KioskService) EndSession(_ context.Context) {
	k.mutex.Lock()
	sessions := k.sessions
	k.sessions = make(map[string]*scanSession)
	k.active = ""
	k.mutex.Unlock()

	for _, session := range sessions {
		session.poll.Cancel()
	}
	k.clientStore.Clear()

	logrus.WithFields(logrus.Fields{
		"component": "KioskService",
		"sessions":  len(sessions),
	}).Info("Kiosk session ended")
}

// PruneFinished forgets sessions that finished more than retention ago
func (k *KioskService) PruneFinished(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	k.mutex.Lock()
	defer k.mutex.Unlock()

	pruned := 0
	for token, session := range k.sessions {
		if !session.finishedAt.IsZero() && session.finishedAt.Before(cutoff) {
			delete(k.sessions, token)
			pruned++
		}
	}
	return pruned
}

// ClientStore exposes the kiosk-side store for maintenance jobs
func (k *KioskService) ClientStore() *ClientResultStore {
	return k.clientStore
}

// ResultsURL is where the kiosk navigates once results for token are in
func ResultsURL(token string) string {
	return resultsPath + "?sid=" + url.QueryEscape(token)
}
