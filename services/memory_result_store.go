package services

import (
	"context"
	"sync"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/sirupsen/logrus"
)

type memoryEntry struct {
	models.StoreEntry
	insertedAt time.Time
}

// MemoryResultStore is a process-wide ResultStore backed by a map.
// It supports:
// - Per-entry TTL with purge-on-read
// - Bounded size with oldest-entry eviction
// - Thread-safe operations with read/write locks
type MemoryResultStore struct {
	entries map[string]*memoryEntry
	mutex   sync.RWMutex
	maxSize int
	now     func() time.Time
}

// NewMemoryResultStore creates an in-memory store holding at most maxSize entries.
// maxSize <= 0 means unbounded.
func NewMemoryResultStore(maxSize int) *MemoryResultStore {
	return &MemoryResultStore{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Put stores a copy of envelope under token
func (s *MemoryResultStore) Put(_ context.Context, token string, envelope *models.ResultEnvelope, ttl time.Duration) error {
	copied := *envelope
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.entries[token]; !exists && s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest(now)
	}

	s.entries[token] = &memoryEntry{
		StoreEntry: models.StoreEntry{
			Envelope:  &copied,
			ExpiresAt: expiryFor(now, ttl),
		},
		insertedAt: now,
	}

	return nil
}

// Get returns a copy of the live envelope for token
func (s *MemoryResultStore) Get(_ context.Context, token string) (*models.ResultEnvelope, error) {
	now := s.now()

	s.mutex.RLock()
	entry, exists := s.entries[token]
	s.mutex.RUnlock()

	if !exists {
		return nil, ErrResultNotFound
	}

	if entry.IsExpired(now) {
		s.mutex.Lock()
		// Re-check: a concurrent Put may have replaced the stale entry
		if current, ok := s.entries[token]; ok && current.IsExpired(now) {
			delete(s.entries, token)
		}
		s.mutex.Unlock()

		logrus.WithFields(logrus.Fields{
			"component":  "MemoryResultStore",
			"session_id": token,
		}).Debug("Purged expired result on read")
		return nil, ErrResultNotFound
	}

	copied := *entry.Envelope
	return &copied, nil
}

// Delete removes the entry for token
func (s *MemoryResultStore) Delete(_ context.Context, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, token)
	return nil
}

// PurgeExpired removes expired entries
func (s *MemoryResultStore) PurgeExpired(_ context.Context) (int, error) {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	purged := 0
	for token, entry := range s.entries {
		if entry.IsExpired(now) {
			delete(s.entries, token)
			purged++
		}
	}

	return purged, nil
}

// Size returns the number of entries, expired ones included
func (s *MemoryResultStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.entries)
}

// evictOldest drops an expired entry if there is one, otherwise the entry
// inserted first. Caller holds the write lock.
func (s *MemoryResultStore) evictOldest(now time.Time) {
	var oldestToken string
	var oldestTime time.Time

	for token, entry := range s.entries {
		if entry.IsExpired(now) {
			delete(s.entries, token)
			return
		}
		if oldestToken == "" || entry.insertedAt.Before(oldestTime) {
			oldestToken = token
			oldestTime = entry.insertedAt
		}
	}

	if oldestToken != "" {
		delete(s.entries, oldestToken)
		logrus.WithFields(logrus.Fields{
			"component":  "MemoryResultStore",
			"session_id": oldestToken,
			"max_size":   s.maxSize,
		}).Warn("Result store full, evicted oldest entry")
	}
}
