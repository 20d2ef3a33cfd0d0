package counselor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoneAvailable is returned by Assign when every counselor is offline
// or at capacity. Callers fall over to the emergency contact cascade.
var ErrNoneAvailable = errors.New("no counselor available")

const defaultMaxLoad = 5

var validStatuses = map[string]bool{
	StatusAvailable: true,
	StatusBusy:      true,
	StatusOffline:   true,
}

// Service manages the counselor pool. Assignment is serialized under a
// pool-wide mutex so concurrent crises cannot push a counselor past MaxLoad.
type Service struct {
	repo   Repository
	logger zerolog.Logger

	mu sync.Mutex
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, c *CrisisCounselor) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.MaxLoad <= 0 {
		c.MaxLoad = defaultMaxLoad
	}
	if c.Status == "" {
		c.Status = StatusAvailable
	}
	if !validStatuses[c.Status] {
		return fmt.Errorf("invalid status %q", c.Status)
	}
	c.CurrentLoad = 0
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CrisisCounselor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *CrisisCounselor) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.MaxLoad <= 0 {
		return fmt.Errorf("max load must be positive")
	}
	if !validStatuses[c.Status] {
		return fmt.Errorf("invalid status %q", c.Status)
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*CrisisCounselor, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Assign picks the available counselor with the lowest current load,
// breaking ties by fastest average response time, and takes one load slot.
// A counselor who reaches capacity is flipped to busy.
func (s *Service) Assign(ctx context.Context) (*CrisisCounselor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available counselors: %w", err)
	}

	var pick *CrisisCounselor
	for _, c := range pool {
		if c.CurrentLoad >= c.MaxLoad {
			continue
		}
		if pick == nil ||
			c.CurrentLoad < pick.CurrentLoad ||
			(c.CurrentLoad == pick.CurrentLoad && c.AvgResponseSeconds < pick.AvgResponseSeconds) {
			pick = c
		}
	}
	if pick == nil {
		return nil, ErrNoneAvailable
	}

	pick.CurrentLoad++
	if pick.CurrentLoad >= pick.MaxLoad {
		pick.Status = StatusBusy
	}
	if err := s.repo.UpdateLoad(ctx, pick.ID, pick.CurrentLoad, pick.Status); err != nil {
		return nil, fmt.Errorf("update counselor load: %w", err)
	}

	s.logger.Info().
		Str("counselor_id", pick.ID.String()).
		Int("current_load", pick.CurrentLoad).
		Int("max_load", pick.MaxLoad).
		Msg("counselor assigned")
	return pick, nil
}

// Release returns a load slot taken by Assign. A busy counselor whose load
// drops below capacity becomes available again; offline stays offline.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get counselor: %w", err)
	}
	if c.CurrentLoad == 0 {
		return nil
	}
	c.CurrentLoad--
	status := c.Status
	if status == StatusBusy && c.CurrentLoad < c.MaxLoad {
		status = StatusAvailable
	}
	if err := s.repo.UpdateLoad(ctx, c.ID, c.CurrentLoad, status); err != nil {
		return fmt.Errorf("update counselor load: %w", err)
	}

	s.logger.Info().
		Str("counselor_id", c.ID.String()).
		Int("current_load", c.CurrentLoad).
		Msg("counselor released")
	return nil
}

// SetStatus overrides a counselor's availability, e.g. going off shift.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get counselor: %w", err)
	}
	if status == StatusAvailable && c.CurrentLoad >= c.MaxLoad {
		status = StatusBusy
	}
	return s.repo.UpdateLoad(ctx, c.ID, c.CurrentLoad, status)
}

// Stats summarizes the pool for the operations dashboard.
func (s *Service) Stats(ctx context.Context) (*PoolStats, error) {
	items, _, err := s.repo.List(ctx, 1000, 0)
	if err != nil {
		return nil, err
	}
	stats := &PoolStats{}
	for _, c := range items {
		stats.Total++
		stats.TotalLoad += c.CurrentLoad
		switch c.Status {
		case StatusAvailable:
			stats.Available++
		case StatusBusy:
			stats.Busy++
		case StatusOffline:
			stats.Offline++
		}
	}
	return stats, nil
}
