package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pders01/fwrd-news/internal/debuglog"
)

// Scheduler runs a sync pass on a cron spec such as "@every 6h" or
// "0 */6 * * *".
type Scheduler struct {
	mu    sync.Mutex
	cron  *cron.Cron
	jobID cron.EntryID
	job   func()
}

func NewScheduler(spec string, job func()) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	s := &Scheduler{cron: cron.New(), job: job}
	if err := s.schedule(spec); err != nil {
		return nil, err
	}
	return s, nil
}

// ForSyncer schedules syncer.Run. Each pass gets a fresh context bounded by
// the syncer's own timeout.
func ForSyncer(spec string, syncer *Syncer) (*Scheduler, error) {
	return NewScheduler(spec, func() {
		result := syncer.Run(context.Background())
		debuglog.Infof("scheduled sync: %s", result)
	})
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Reschedule replaces the cron schedule.
func (s *Scheduler) Reschedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobID != 0 {
		s.cron.Remove(s.jobID)
		s.jobID = 0
	}
	return s.scheduleLocked(spec)
}

// Next returns the next activation time, or the zero time when the scheduler
// is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.jobID).Next
}

func (s *Scheduler) schedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(spec)
}

func (s *Scheduler) scheduleLocked(spec string) error {
	id, err := s.cron.AddFunc(spec, s.job)
	if err != nil {
		return fmt.Errorf("add cron: %w", err)
	}
	s.jobID = id
	return nil
}
