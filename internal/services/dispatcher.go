package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/metrics"
)

// AssignmentJob asks for father inference over one mother's pending
// registrations
type AssignmentJob struct {
	CompanyID int64
	MotherID  string
	UserID    int64
}

// AssignmentDispatcher runs father assignment jobs on a bounded worker pool,
// detached from the request that triggered them. Jobs are deduplicated per
// (company, mother) while queued, so bulk uploads fan out one job per
// distinct mother. Job failures are logged, never surfaced to any caller.
type AssignmentDispatcher struct {
	svc       *FatherService
	collector *metrics.Metrics
	jobs      chan AssignmentJob
	queued    map[string]bool
	mu        sync.Mutex
	wg        sync.WaitGroup
	workers   int
	stopped   bool
}

// NewAssignmentDispatcher creates a dispatcher with the given worker count
func NewAssignmentDispatcher(svc *FatherService, collector *metrics.Metrics, workers int) *AssignmentDispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &AssignmentDispatcher{
		svc:       svc,
		collector: collector,
		jobs:      make(chan AssignmentJob, 256),
		queued:    make(map[string]bool),
		workers:   workers,
	}
}

// Start launches the worker pool. Workers exit when the context is cancelled.
func (d *AssignmentDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	log.Info().Int("workers", d.workers).Msg("Assignment dispatcher started")
}

// Enqueue schedules father assignment for a mother. It never blocks: when the
// queue is full, or the dispatcher has been stopped, the job is dropped and
// left for the periodic sweep to pick up. Returns whether the job was
// accepted. The queue send happens under the mutex so it can never race a
// concurrent Stop closing the channel.
func (d *AssignmentDispatcher) Enqueue(job AssignmentJob) bool {
	job.MotherID = domain.NormalizeAnimalNumber(job.MotherID)
	key := jobKey(job)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.collector.IncrementCounter(metrics.AssignmentJobsDropped)
		log.Warn().
			Str("motherID", job.MotherID).
			Int64("companyID", job.CompanyID).
			Msg("Dispatcher stopped, job dropped")
		return false
	}
	if d.queued[key] {
		return true
	}

	select {
	case d.jobs <- job:
		d.queued[key] = true
		d.collector.IncrementCounter(metrics.AssignmentJobsDispatched)
		return true
	default:
		d.collector.IncrementCounter(metrics.AssignmentJobsDropped)
		log.Warn().
			Str("motherID", job.MotherID).
			Int64("companyID", job.CompanyID).
			Msg("Assignment queue full, job dropped")
		return false
	}
}

// Stop waits for in-flight jobs to finish. Late Enqueue calls are rejected
// rather than panicking on the closed queue. Safe to call more than once.
func (d *AssignmentDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	log.Info().Msg("Assignment dispatcher stopped")
}

func (d *AssignmentDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.jobs:
			if !ok {
				return
			}

			d.mu.Lock()
			delete(d.queued, jobKey(job))
			d.mu.Unlock()

			if err := d.svc.ProcessMotherPending(ctx, job.CompanyID, job.UserID, job.MotherID); err != nil {
				log.Error().
					Err(err).
					Str("motherID", job.MotherID).
					Int64("companyID", job.CompanyID).
					Msg("Background father assignment failed")
			}
		}
	}
}

func jobKey(job AssignmentJob) string {
	return fmt.Sprintf("%d|%s", job.CompanyID, job.MotherID)
}
