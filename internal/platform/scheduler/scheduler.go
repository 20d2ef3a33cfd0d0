// Package scheduler runs delayed and periodic follow-up tasks keyed by crisis
// alert, so that resolving an alert cancels every timer attached to it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Task is the work a timer fires. The context is cancelled when the task is
// cancelled or the scheduler stops.
type Task func(ctx context.Context)

type entry struct {
	id      uuid.UUID
	alertID uuid.UUID
	cancel  context.CancelFunc
	timer   *time.Timer
	ticker  *time.Ticker
	done    chan struct{}
}

// Scheduler owns all pending crisis timers. All methods are safe for
// concurrent use.
type Scheduler struct {
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry             // by task id
	byAlert map[uuid.UUID]map[uuid.UUID]bool // alert id -> task ids
	stopped bool
	wg      sync.WaitGroup
}

// New constructs a Scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		entries: make(map[uuid.UUID]*entry),
		byAlert: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

// After schedules task to run once after delay, attached to alertID. The
// returned id can be used to cancel the task individually.
func (s *Scheduler) After(alertID uuid.UUID, delay time.Duration, task Task) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return uuid.Nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		id:      uuid.New(),
		alertID: alertID,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	e.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		defer close(e.done)
		defer s.remove(e.id)
		select {
		case <-ctx.Done():
			return
		default:
		}
		task(ctx)
	})

	s.track(e)
	return e.id
}

// Every schedules task to run repeatedly at interval, attached to alertID,
// until cancelled. The first run happens after one interval.
func (s *Scheduler) Every(alertID uuid.UUID, interval time.Duration, task Task) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return uuid.Nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		id:      uuid.New(),
		alertID: alertID,
		cancel:  cancel,
		ticker:  time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(e.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.ticker.C:
				task(ctx)
			}
		}
	}()

	s.track(e)
	return e.id
}

// track registers an entry. Caller holds s.mu.
func (s *Scheduler) track(e *entry) {
	s.entries[e.id] = e
	tasks := s.byAlert[e.alertID]
	if tasks == nil {
		tasks = make(map[uuid.UUID]bool)
		s.byAlert[e.alertID] = tasks
	}
	tasks[e.id] = true
}

// remove drops an entry from the indexes after it has fired or been
// cancelled.
func (s *Scheduler) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	if tasks, ok := s.byAlert[e.alertID]; ok {
		delete(tasks, id)
		if len(tasks) == 0 {
			delete(s.byAlert, e.alertID)
		}
	}
}

// Cancel stops a single task. Returns false if the task is unknown or has
// already fired.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cancelEntry(e)
	s.remove(id)
	return true
}

// CancelAlert stops every task attached to an alert. Called when an alert is
// resolved so no stale check-ins or escalation timers fire afterwards.
// Returns the number of tasks cancelled.
func (s *Scheduler) CancelAlert(alertID uuid.UUID) int {
	s.mu.Lock()
	var toCancel []*entry
	for id := range s.byAlert[alertID] {
		if e, ok := s.entries[id]; ok {
			toCancel = append(toCancel, e)
		}
	}
	s.mu.Unlock()

	for _, e := range toCancel {
		s.cancelEntry(e)
		s.remove(e.id)
	}
	if len(toCancel) > 0 {
		s.logger.Debug().
			Str("alert_id", alertID.String()).
			Int("cancelled", len(toCancel)).
			Msg("alert timers cancelled")
	}
	return len(toCancel)
}

func (s *Scheduler) cancelEntry(e *entry) {
	e.cancel()
	if e.timer != nil {
		// A one-shot whose timer is stopped never runs, so release its
		// waitgroup slot here.
		if e.timer.Stop() {
			s.wg.Done()
			close(e.done)
		}
	}
	if e.ticker != nil {
		e.ticker.Stop()
	}
}

// PendingForAlert reports how many tasks are still scheduled for an alert.
func (s *Scheduler) PendingForAlert(alertID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byAlert[alertID])
}

// Pending reports the total number of scheduled tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels all tasks and waits for running ones to finish. The scheduler
// accepts no new tasks afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	var all []*entry
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.Unlock()

	for _, e := range all {
		s.cancelEntry(e)
		s.remove(e.id)
	}
	s.wg.Wait()
}
