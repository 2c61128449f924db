package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

// finishedSessionRetention is how long finished scans stay queryable
const finishedSessionRetention = time.Hour

// ResultCleanupJob purges expired entries from the result stores and forgets
// finished scan sessions
type ResultCleanupJob struct {
	Stores   map[string]services.ResultStore
	Kiosk    *services.KioskService
	Interval time.Duration
	Metrics  *shared.ServiceMetrics

	stop chan struct{}
	done chan struct{}
}

func NewResultCleanupJob(stores map[string]services.ResultStore, kiosk *services.KioskService, interval time.Duration, metrics *shared.ServiceMetrics) *ResultCleanupJob {
	if metrics == nil {
		metrics = shared.NewServiceMetrics("ResultCleanupJob")
	}
	return &ResultCleanupJob{
		Stores:   stores,
		Kiosk:    kiosk,
		Interval: interval,
		Metrics:  metrics,
	}
}

// Start runs the job every Interval until Stop is called
func (j *ResultCleanupJob) Start() {
	logrus.WithFields(logrus.Fields{
		"component": "ResultCleanupJob",
		"interval":  j.Interval,
	}).Info("Starting result cleanup job")

	j.stop = make(chan struct{})
	j.done = make(chan struct{})
	ticker := time.NewTicker(j.Interval)

	go func() {
		defer close(j.done)
		defer ticker.Stop()

		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				j.Run()
			}
		}
	}()
}

// Stop ends the ticker loop and waits for a running pass to finish
func (j *ResultCleanupJob) Stop() {
	if j.stop == nil {
		return
	}
	close(j.stop)
	<-j.done
	j.stop = nil
}

// Run performs one cleanup pass and returns the number of purged entries
func (j *ResultCleanupJob) Run() int {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := logrus.WithField("component", "ResultCleanupJob")

	total := 0
	success := true
	for name, store := range j.Stores {
		purged, err := store.PurgeExpired(ctx)
		if err != nil {
			success = false
			logger.WithField("store", name).WithError(err).Error("Failed to purge expired results")
			continue
		}
		total += purged
	}

	pruned := 0
	if j.Kiosk != nil {
		pruned = j.Kiosk.PruneFinished(finishedSessionRetention)
	}

	j.Metrics.AddToCustomCounter(shared.MetricEntriesPurged, int64(total))
	j.Metrics.RecordRequest(success, time.Since(start))

	logger.WithFields(logrus.Fields{
		"purged":   total,
		"pruned":   pruned,
		"duration": time.Since(start),
	}).Info("Result cleanup completed")

	return total
}
