package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

// ResultLookup asks whether results for token are available yet. A miss is
// (nil, false, nil), never an error.
type ResultLookup interface {
	Lookup(ctx context.Context, token string) (*models.ResultEnvelope, bool, error)
}

// LookupFunc adapts a function to ResultLookup
type LookupFunc func(ctx context.Context, token string) (*models.ResultEnvelope, bool, error)

func (f LookupFunc) Lookup(ctx context.Context, token string) (*models.ResultEnvelope, bool, error) {
	return f(ctx, token)
}

// PollOutcome is the terminal result of a poll session
type PollOutcome struct {
	Token    string
	State    models.PollState
	Envelope *models.ResultEnvelope
	Attempts int
}

// ResultPoller starts poll sessions with a fixed interval and hard timeout
type ResultPoller struct {
	lookup   ResultLookup
	interval time.Duration
	timeout  time.Duration
	metrics  *shared.ServiceMetrics
}

func NewResultPoller(lookup ResultLookup, interval, timeout time.Duration, metrics *shared.ServiceMetrics) *ResultPoller {
	if metrics == nil {
		metrics = shared.NewServiceMetrics("ResultPoller")
	}
	return &ResultPoller{
		lookup:   lookup,
		interval: interval,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Start arms a poll session for token. onDone, if set, runs exactly once
// after the session reaches a terminal state.
func (p *ResultPoller) Start(token string, onDone func(PollOutcome)) *PollSession {
	ctx, stop := context.WithTimeout(context.Background(), p.timeout)

	session := &PollSession{
		token:  token,
		state:  models.PollWaiting,
		stop:   stop,
		done:   make(chan struct{}),
		onDone: onDone,
	}

	logrus.WithFields(logrus.Fields{
		"component":  "ResultPoller",
		"session_id": token,
		"interval":   p.interval,
		"timeout":    p.timeout,
	}).Info("Waiting for processing results")

	go p.run(ctx, session)
	return session
}

func (p *ResultPoller) run(ctx context.Context, session *PollSession) {
	defer close(session.done)
	defer session.stop()

	logger := logrus.WithFields(logrus.Fields{
		"component":  "ResultPoller",
		"session_id": session.token,
	})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}

		if !session.beginAttempt() {
			break loop
		}

		envelope, found, err := p.lookup.Lookup(ctx, session.token)

		// A result already consumed from the relay wins over the deadline.
		// Cancel finishes the session first, so it still wins over Found.
		switch {
		case found:
			session.finish(models.PollFound, envelope)
			break loop
		case ctx.Err() != nil:
			break loop
		case err != nil:
			logger.WithError(err).Debug("Result lookup failed, will retry")
		}
	}

	// Whatever did not finish the session explicitly ran out of time
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		session.finish(models.PollTimeout, nil)
	}
	session.finish(models.PollCancelled, nil)

	outcome := session.Outcome()
	switch outcome.State {
	case models.PollFound:
		p.metrics.IncrementCustomCounter(shared.MetricPollsFound)
	case models.PollTimeout:
		p.metrics.IncrementCustomCounter(shared.MetricPollsTimedOut)
	case models.PollCancelled:
		p.metrics.IncrementCustomCounter(shared.MetricPollsCancelled)
	}

	logger.WithFields(logrus.Fields{
		"state":    outcome.State,
		"attempts": outcome.Attempts,
	}).Info("Polling finished")

	if session.onDone != nil {
		session.onDone(outcome)
	}
}

// PollSession is a cancellable handle on one polling run. The first terminal
// transition wins; later ones are ignored.
type PollSession struct {
	token    string
	mutex    sync.Mutex
	state    models.PollState
	envelope *models.ResultEnvelope
	attempts int
	stop     context.CancelFunc
	done     chan struct{}
	onDone   func(PollOutcome)
}

// Cancel stops polling immediately. No lookup starts after Cancel returns and
// a cancelled session never reports Found. Safe to call repeatedly.
func (s *PollSession) Cancel() {
	s.finish(models.PollCancelled, nil)
	s.stop()
}

// Done is closed once the polling goroutine has exited
func (s *PollSession) Done() <-chan struct{} {
	return s.done
}

func (s *PollSession) Token() string {
	return s.token
}

func (s *PollSession) State() models.PollState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *PollSession) Attempts() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.attempts
}

func (s *PollSession) Outcome() PollOutcome {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return PollOutcome{
		Token:    s.token,
		State:    s.state,
		Envelope: s.envelope,
		Attempts: s.attempts,
	}
}

func (s *PollSession) finish(state models.PollState, envelope *models.ResultEnvelope) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state.IsTerminal() {
		return false
	}
	s.state = state
	s.envelope = envelope
	return true
}

// beginAttempt counts a lookup unless the session already ended
func (s *PollSession) beginAttempt() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state.IsTerminal() {
		return false
	}
	s.attempts++
	return true
}
