// Package scheduler runs each subscribed user's daily digest at the hour of
// their chosen slot.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsdigest/internal/domain"
	"newsdigest/internal/metrics"
	"newsdigest/internal/store"

	"github.com/robfig/cron/v3"
)

const dailyDigestTimeout = 15 * time.Minute

// JobFunc delivers the daily digest of one user.
type JobFunc func(ctx context.Context, userID int64) error

type SubscriptionLister interface {
	Subscriptions(ctx context.Context) ([]store.Subscription, error)
}

// Scheduler keeps at most one named daily job per user.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	location *time.Location
	job      JobFunc
	mu       sync.Mutex
	entries  map[string]cron.EntryID
	metrics  *metrics.Collector
	log      *slog.Logger
}

// namedJob lets registered cron entries be found by job name.
type namedJob struct {
	name string
	run  func()
}

func (j namedJob) Run() {
	j.run()
}

// New returns a scheduler that fires jobs in location. ctx bounds every job
// run.
func New(
	ctx context.Context,
	location *time.Location,
	job JobFunc,
	m *metrics.Collector,
	log *slog.Logger,
) *Scheduler {
	if location == nil {
		location = time.Local
	}

	return &Scheduler{
		ctx:      ctx,
		cron:     cron.New(cron.WithLocation(location)),
		location: location,
		job:      job,
		entries:  make(map[string]cron.EntryID),
		metrics:  m,
		log:      log,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops firing new jobs and waits for running ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Location() *time.Location {
	return s.location
}

func JobName(userID int64) string {
	return fmt.Sprintf("digest:%d", userID)
}

// Spec is the daily cron spec for slot.
func Spec(slot domain.Slot) string {
	return fmt.Sprintf("0 %d * * *", slot.Hour())
}

// ScheduleDailyJob replaces the user's job with one firing daily at the
// slot's hour.
func (s *Scheduler) ScheduleDailyJob(userID int64, slot domain.Slot) error {
	name := JobName(userID)
	spec := Spec(slot)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)

	id, err := s.cron.AddJob(spec, namedJob{name: name, run: func() { s.fire(userID) }})
	if err != nil {
		return fmt.Errorf("add job (spec = %s): %w", spec, err)
	}

	s.entries[name] = id
	s.metrics.SetScheduledJobs(len(s.entries))

	s.log.InfoContext(s.ctx, "Daily digest is scheduled",
		"userID", userID,
		"slot", slot,
		"spec", spec,
		"timezone", s.location.String())

	return nil
}

func (s *Scheduler) CancelDailyJob(userID int64) {
	name := JobName(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked(name) {
		s.log.InfoContext(s.ctx, "Daily digest is cancelled",
			"userID", userID)
	}

	s.metrics.SetScheduledJobs(len(s.entries))
}

func (s *Scheduler) removeLocked(name string) bool {
	id, ok := s.entries[name]
	if !ok {
		return false
	}

	s.cron.Remove(id)
	delete(s.entries, name)

	return true
}

// JobCount returns how many registered cron entries carry the user's job
// name.
func (s *Scheduler) JobCount(userID int64) int {
	name := JobName(userID)

	count := 0
	for _, entry := range s.cron.Entries() {
		if job, ok := entry.Job.(namedJob); ok && job.name == name {
			count++
		}
	}

	return count
}

// Reconcile registers a job for every subscribed user found in the store.
// A failure for one user is logged and does not stop the others.
func (s *Scheduler) Reconcile(ctx context.Context, lister SubscriptionLister) int {
	subscriptions, err := lister.Subscriptions(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to list some subscriptions",
			"error", err,
			"subscriptions", len(subscriptions))
	}

	scheduled := 0
	for _, sub := range subscriptions {
		if err = s.ScheduleDailyJob(sub.UserID, sub.Slot); err != nil {
			s.log.ErrorContext(ctx, "Failed to reconcile daily digest",
				"error", err,
				"userID", sub.UserID,
				"slot", sub.Slot)

			continue
		}

		scheduled++
	}

	s.log.InfoContext(ctx, "Daily digests are reconciled",
		"scheduled", scheduled,
		"subscriptions", len(subscriptions))

	return scheduled
}

func (s *Scheduler) fire(userID int64) {
	ctx, cancel := context.WithTimeout(s.ctx, dailyDigestTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	started := time.Now()

	if err := s.job(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "Failed to send daily digest",
			"error", err,
			"userID", userID,
			"durationSeconds", time.Since(started).Seconds())

		return
	}

	s.log.InfoContext(ctx, "Daily digest is sent",
		"userID", userID,
		"durationSeconds", time.Since(started).Seconds())
}
