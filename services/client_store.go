package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

const (
	// CurrentSessionKey holds the token of the results the kiosk should show
	CurrentSessionKey = "current_session_id"

	// FallbackResultsKey holds results that arrived without a token
	FallbackResultsKey = "health_results_data"
)

// SessionStorage is the kiosk-side key-value storage (browser session storage
// semantics: string values, lifetime of the kiosk session)
type SessionStorage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
	Keys() []string
}

// MemorySessionStorage is a SessionStorage held in process memory
type MemorySessionStorage struct {
	items map[string]string
	mutex sync.RWMutex
}

func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{items: make(map[string]string)}
}

func (m *MemorySessionStorage) GetItem(key string) (string, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.items[key]
	return value, ok
}

func (m *MemorySessionStorage) SetItem(key, value string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.items[key] = value
}

func (m *MemorySessionStorage) RemoveItem(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.items, key)
}

func (m *MemorySessionStorage) Keys() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// storedResult is the encoded value layout: base64(JSON{"data", "expiry"}),
// expiry in unix milliseconds, 0 for none
type storedResult struct {
	Data   *models.ResultEnvelope `json:"data"`
	Expiry int64                  `json:"expiry"`
}

// ClientResultStore is the durable kiosk-side placement of the result store
type ClientResultStore struct {
	storage SessionStorage
	now     func() time.Time
}

func NewClientResultStore(storage SessionStorage) *ClientResultStore {
	return &ClientResultStore{
		storage: storage,
		now:     time.Now,
	}
}

// Put encodes envelope under token. An empty token writes the fallback key.
func (s *ClientResultStore) Put(_ context.Context, token string, envelope *models.ResultEnvelope, ttl time.Duration) error {
	key, ok := storageKey(token)
	if !ok {
		return shared.NewValidationError("RESERVED_SESSION_KEY", "session id names a reserved storage key", "ClientResultStore", "Put")
	}

	record := storedResult{Data: envelope}
	if expiry := expiryFor(s.now(), ttl); !expiry.IsZero() {
		record.Expiry = expiry.UnixMilli()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return shared.NewInternalError("CLIENT_ENCODE_FAILED", "failed to encode result", "ClientResultStore", "Put", err)
	}

	s.storage.SetItem(key, base64.StdEncoding.EncodeToString(payload))
	return nil
}

// Get decodes and expiry-checks the value under token. Undecodable values are
// purged and reported as not found.
func (s *ClientResultStore) Get(_ context.Context, token string) (*models.ResultEnvelope, error) {
	key, ok := storageKey(token)
	if !ok {
		return nil, ErrResultNotFound
	}
	raw, ok := s.storage.GetItem(key)
	if !ok {
		return nil, ErrResultNotFound
	}

	record, err := decodeStoredResult(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "ClientResultStore",
			"key":       key,
		}).WithError(err).Warn("Discarding undecodable stored result")
		s.storage.RemoveItem(key)
		return nil, ErrResultNotFound
	}

	if s.expired(record) {
		s.storage.RemoveItem(key)
		return nil, ErrResultNotFound
	}

	return record.Data, nil
}

func (s *ClientResultStore) Delete(_ context.Context, token string) error {
	if key, ok := storageKey(token); ok {
		s.storage.RemoveItem(key)
	}
	return nil
}

// PurgeExpired removes expired and undecodable result values. The current
// session pointer is left alone.
func (s *ClientResultStore) PurgeExpired(_ context.Context) (int, error) {
	purged := 0
	for _, key := range s.storage.Keys() {
		if key == CurrentSessionKey {
			continue
		}
		raw, ok := s.storage.GetItem(key)
		if !ok {
			continue
		}
		record, err := decodeStoredResult(raw)
		if err != nil || s.expired(record) {
			s.storage.RemoveItem(key)
			purged++
		}
	}
	return purged, nil
}

// SetCurrent points the results view at token
func (s *ClientResultStore) SetCurrent(token string) {
	s.storage.SetItem(CurrentSessionKey, token)
}

// Current returns the token of the current results, if any
func (s *ClientResultStore) Current() (string, bool) {
	token, ok := s.storage.GetItem(CurrentSessionKey)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Load resolves sid, then the current pointer, then the fallback key
func (s *ClientResultStore) Load(ctx context.Context, sid string) (*models.ResultEnvelope, error) {
	if sid != "" {
		return s.Get(ctx, sid)
	}
	if current, ok := s.Current(); ok {
		if envelope, err := s.Get(ctx, current); err == nil {
			return envelope, nil
		}
	}
	return s.Get(ctx, "")
}

// Clear wipes every stored result and the pointer
func (s *ClientResultStore) Clear() {
	for _, key := range s.storage.Keys() {
		s.storage.RemoveItem(key)
	}
}

func (s *ClientResultStore) expired(record *storedResult) bool {
	return record.Expiry > 0 && s.now().UnixMilli() > record.Expiry
}

func decodeStoredResult(raw string) (*storedResult, error) {
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	var record storedResult
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	if record.Data == nil {
		return nil, ErrResultNotFound
	}
	return &record, nil
}

// storageKey maps a token onto its storage key. Tokens naming one of the
// reserved keys have no key of their own.
func storageKey(token string) (string, bool) {
	switch token {
	case "":
		return FallbackResultsKey, true
	case CurrentSessionKey, FallbackResultsKey:
		return "", false
	}
	return token, true
}
