package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindwell/crisis/pkg/risk"
)

var (
	// ErrLevelRegression is returned when a caller attempts to move an alert
	// to a lower or equal level. De-escalation has no transition; it
	// indicates a caller bug.
	ErrLevelRegression = errors.New("alert level regression rejected")
	// ErrAlertResolved is returned when mutating a terminal alert.
	ErrAlertResolved = errors.New("alert already resolved")
)

// TimerCanceller tears down pending scheduled work for an alert. Satisfied by
// the platform scheduler.
type TimerCanceller interface {
	CancelAlert(alertID uuid.UUID) int
}

// Service owns the alert state machine. Within one alert, all transitions
// are serialized through a per-alert mutex; distinct alerts proceed in
// parallel.
type Service struct {
	repo   Repository
	timers TimerCanceller
	logger zerolog.Logger
	mu     sync.Mutex
	inUse  map[uuid.UUID]*alertLock
}

type alertLock struct {
	sync.Mutex
	refs int
}

// NewService constructs the lifecycle manager. timers may be nil in tests.
func NewService(repo Repository, timers TimerCanceller, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		timers: timers,
		logger: logger,
		inUse:  make(map[uuid.UUID]*alertLock),
	}
}

// lock acquires the per-alert mutex, creating it on first use and releasing
// the map entry when the last holder unlocks.
func (s *Service) lock(id uuid.UUID) func() {
	s.mu.Lock()
	l := s.inUse[id]
	if l == nil {
		l = &alertLock{}
		s.inUse[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.inUse, id)
		}
		s.mu.Unlock()
	}
}

// Open persists a new alert and records its initial level transition. The
// caller supplies level and score from the risk scorer; levels below Low do
// not open alerts.
func (s *Service) Open(ctx context.Context, a *CrisisAlert) error {
	if a.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if a.Level < risk.LevelLow {
		return fmt.Errorf("level %s does not open an alert", a.Level)
	}
	if a.TriggerSource == "" {
		a.TriggerSource = risk.TriggerBehavioralSignal
	}
	a.ID = uuid.New()
	a.Status = StatusOpen
	a.CreatedAt = time.Now().UTC()
	if a.InterventionsTriggered == nil {
		a.InterventionsTriggered = []risk.InterventionType{}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	if err := s.repo.AppendTransition(ctx, &LevelTransition{
		AlertID:   a.ID,
		FromLevel: risk.LevelNone,
		ToLevel:   a.Level,
		Reason:    "alert created",
		CreatedAt: a.CreatedAt,
	}); err != nil {
		return err
	}

	s.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("user_id", a.UserID.String()).
		Str("level", a.Level.String()).
		Float64("score", a.Score).
		Msg("crisis alert opened")
	return nil
}

// Get returns an alert by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CrisisAlert, error) {
	return s.repo.GetByID(ctx, id)
}

// Escalate moves an alert to a strictly higher level and records the
// transition. Attempts to de-escalate or revisit the current level return
// ErrLevelRegression and are logged as critical, since they indicate a
// caller bug rather than a runtime condition.
func (s *Service) Escalate(ctx context.Context, id uuid.UUID, to risk.CrisisLevel, reason string) (*CrisisAlert, error) {
	unlock := s.lock(id)
	defer unlock()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Resolved() {
		return nil, ErrAlertResolved
	}
	if to <= a.Level {
		s.logger.Error().
			Str("alert_id", id.String()).
			Str("current_level", a.Level.String()).
			Str("requested_level", to.String()).
			Msg("level regression rejected")
		return nil, ErrLevelRegression
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLevel(ctx, id, to, now); err != nil {
		return nil, err
	}
	if err := s.repo.AppendTransition(ctx, &LevelTransition{
		AlertID:   id,
		FromLevel: a.Level,
		ToLevel:   to,
		Reason:    reason,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	a.Level = to
	a.LastEscalatedAt = &now
	s.logger.Warn().
		Str("alert_id", id.String()).
		Str("level", to.String()).
		Str("reason", reason).
		Msg("crisis alert escalated")
	return a, nil
}

// ArmOverride turns on the severity override for an open alert, so the
// Critical protocol resolves to its override row from then on. Arming an
// already armed alert is a no-op.
func (s *Service) ArmOverride(ctx context.Context, id uuid.UUID) (*CrisisAlert, error) {
	unlock := s.lock(id)
	defer unlock()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Resolved() {
		return nil, ErrAlertResolved
	}
	if a.OverrideActive {
		return a, nil
	}
	if err := s.repo.SetOverride(ctx, id, true); err != nil {
		return nil, err
	}

	a.OverrideActive = true
	s.logger.Warn().
		Str("alert_id", id.String()).
		Str("level", a.Level.String()).
		Msg("severity override armed")
	return a, nil
}

// RecordIntervention appends an intervention type to the alert's audit
// trail.
func (s *Service) RecordIntervention(ctx context.Context, id uuid.UUID, t risk.InterventionType) error {
	unlock := s.lock(id)
	defer unlock()
	return s.repo.AppendIntervention(ctx, id, t)
}

// Resolve moves an alert to its terminal state and cancels all pending
// scheduled work, so a resolved alert can never escalate afterwards.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, note string) (*CrisisAlert, error) {
	unlock := s.lock(id)
	defer unlock()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Resolved() {
		return nil, ErrAlertResolved
	}

	now := time.Now().UTC()
	if err := s.repo.Resolve(ctx, id, now, resolvedBy, note); err != nil {
		return nil, err
	}
	if s.timers != nil {
		s.timers.CancelAlert(id)
	}

	a.Status = StatusResolved
	a.ResolvedAt = &now
	a.ResolvedBy = &resolvedBy
	a.ResolutionNote = &note
	s.logger.Info().
		Str("alert_id", id.String()).
		Str("resolved_by", resolvedBy).
		Msg("crisis alert resolved")
	return a, nil
}

// Reopen creates a new alert for a user whose prior alert was already
// resolved, linking it to the prior alert for history. The resolved alert
// itself never transitions back to open.
func (s *Service) Reopen(ctx context.Context, priorID uuid.UUID, a *CrisisAlert) error {
	prior, err := s.repo.GetByID(ctx, priorID)
	if err != nil {
		return err
	}
	if !prior.Resolved() {
		return fmt.Errorf("alert %s is still open", priorID)
	}
	a.PreviousAlertID = &prior.ID
	a.UserID = prior.UserID
	return s.Open(ctx, a)
}

// Transitions returns the append-only level history for an alert.
func (s *Service) Transitions(ctx context.Context, id uuid.UUID) ([]*LevelTransition, error) {
	return s.repo.ListTransitions(ctx, id)
}

// ListByUser returns a user's alerts, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CrisisAlert, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// ActiveForUser returns the user's most recent open alert, if any.
func (s *Service) ActiveForUser(ctx context.Context, userID uuid.UUID) (*CrisisAlert, error) {
	return s.repo.ActiveForUser(ctx, userID)
}

// ListActive returns all open alerts.
func (s *Service) ListActive(ctx context.Context) ([]*CrisisAlert, error) {
	return s.repo.ListActive(ctx)
}

// Counters returns platform-wide aggregates.
func (s *Service) Counters(ctx context.Context) (*PlatformCounters, error) {
	return s.repo.Counters(ctx)
}
