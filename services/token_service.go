package services

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sessionTokenPrefix = "session_"
	tokenSuffixLength  = 12
)

// TokenGenerator produces correlation tokens of the form session_<unix ms>_<suffix>.
// The random source is replaceable for tests.
type TokenGenerator struct {
	random   func() (uuid.UUID, error)
	now      func() time.Time
	fallback atomic.Uint64
}

// NewTokenGenerator returns a generator backed by crypto-random UUIDs
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{
		random: uuid.NewRandom,
		now:    time.Now,
	}
}

// NewToken never fails. When the random source errors the token degrades to
// the timestamp plus a process-local sequence number.
func (g *TokenGenerator) NewToken() string {
	millis := strconv.FormatInt(g.now().UnixMilli(), 10)

	id, err := g.random()
	if err != nil {
		seq := g.fallback.Add(1)
		logrus.WithFields(logrus.Fields{
			"component": "TokenGenerator",
			"sequence":  seq,
		}).WithError(err).Warn("Random source unavailable, using timestamp-only token")
		return sessionTokenPrefix + millis + "_" + strconv.FormatUint(seq, 36)
	}

	suffix := strings.ReplaceAll(id.String(), "-", "")
	return sessionTokenPrefix + millis + "_" + suffix[:tokenSuffixLength]
}

var defaultTokenGenerator = NewTokenGenerator()

// NewSessionToken returns a token from the process-wide generator
func NewSessionToken() string {
	return defaultTokenGenerator.NewToken()
}
