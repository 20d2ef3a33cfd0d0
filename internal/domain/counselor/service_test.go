package counselor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	mu         sync.Mutex
	counselors map[uuid.UUID]*CrisisCounselor
}

func newMockRepo() *mockRepo {
	return &mockRepo{counselors: make(map[uuid.UUID]*CrisisCounselor)}
}

func (m *mockRepo) Create(_ context.Context, c *CrisisCounselor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.counselors[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*CrisisCounselor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counselors[id]
	if !ok {
		return nil, fmt.Errorf("counselor %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, c *CrisisCounselor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.counselors[c.ID]
	if !ok {
		return fmt.Errorf("counselor %s not found", c.ID)
	}
	load := stored.CurrentLoad
	*stored = *c
	stored.CurrentLoad = load
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counselors, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*CrisisCounselor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*CrisisCounselor
	for _, c := range m.counselors {
		cp := *c
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, len(items), nil
}

func (m *mockRepo) ListAvailable(_ context.Context) ([]*CrisisCounselor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*CrisisCounselor
	for _, c := range m.counselors {
		if c.Status == StatusAvailable && c.CurrentLoad < c.MaxLoad {
			cp := *c
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (m *mockRepo) UpdateLoad(_ context.Context, id uuid.UUID, load int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counselors[id]
	if !ok {
		return fmt.Errorf("counselor %s not found", id)
	}
	c.CurrentLoad = load
	c.Status = status
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zerolog.Nop())
}

func addCounselor(t *testing.T, svc *Service, name string, maxLoad int, avgResponse float64) uuid.UUID {
	t.Helper()
	c := CrisisCounselor{Name: name, MaxLoad: maxLoad, AvgResponseSeconds: avgResponse}
	if err := svc.Create(context.Background(), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c.ID
}

func TestService_CreateDefaults(t *testing.T) {
	svc := newTestService(newMockRepo())
	c := CrisisCounselor{Name: "Dana"}
	if err := svc.Create(context.Background(), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MaxLoad != defaultMaxLoad {
		t.Errorf("max load = %d, want %d", c.MaxLoad, defaultMaxLoad)
	}
	if c.Status != StatusAvailable {
		t.Errorf("status = %q, want available", c.Status)
	}
}

func TestService_CreateRequiresName(t *testing.T) {
	svc := newTestService(newMockRepo())
	if err := svc.Create(context.Background(), &CrisisCounselor{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestService_AssignPicksLowestLoad(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	busy := addCounselor(t, svc, "Busy", 5, 10)
	idle := addCounselor(t, svc, "Idle", 5, 60)
	if err := repo.UpdateLoad(context.Background(), busy, 3, StatusAvailable); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Assign(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != idle {
		t.Errorf("assigned %s, want lowest-load counselor %s", got.ID, idle)
	}
	if got.CurrentLoad != 1 {
		t.Errorf("load = %d, want 1", got.CurrentLoad)
	}
}

func TestService_AssignTieBreaksOnResponseTime(t *testing.T) {
	svc := newTestService(newMockRepo())

	addCounselor(t, svc, "Slow", 5, 120)
	fast := addCounselor(t, svc, "Fast", 5, 15)

	got, err := svc.Assign(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != fast {
		t.Errorf("assigned %s, want fastest responder %s", got.ID, fast)
	}
}

func TestService_AssignFlipsBusyAtCapacity(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	id := addCounselor(t, svc, "Solo", 2, 10)

	for i := 0; i < 2; i++ {
		if _, err := svc.Assign(context.Background()); err != nil {
			t.Fatalf("assign %d: unexpected error: %v", i, err)
		}
	}
	c, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusBusy {
		t.Errorf("status = %q, want busy at capacity", c.Status)
	}
	if _, err := svc.Assign(context.Background()); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("err = %v, want ErrNoneAvailable", err)
	}
}

func TestService_AssignEmptyPool(t *testing.T) {
	svc := newTestService(newMockRepo())
	if _, err := svc.Assign(context.Background()); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("err = %v, want ErrNoneAvailable", err)
	}
}

func TestService_ReleaseRestoresAvailability(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	id := addCounselor(t, svc, "Solo", 1, 10)

	if _, err := svc.Assign(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Release(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CurrentLoad != 0 {
		t.Errorf("load = %d, want 0", c.CurrentLoad)
	}
	if c.Status != StatusAvailable {
		t.Errorf("status = %q, want available after release", c.Status)
	}
}

func TestService_ReleaseAtZeroIsNoop(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	id := addCounselor(t, svc, "Solo", 1, 10)

	if err := svc.Release(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ := repo.GetByID(context.Background(), id)
	if c.CurrentLoad != 0 {
		t.Errorf("load = %d, want 0", c.CurrentLoad)
	}
}

func TestService_ConcurrentAssignNeverExceedsCapacity(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	id := addCounselor(t, svc, "Solo", 1, 10)

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Assign(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var success, unavailable int
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrNoneAvailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Errorf("successful assigns = %d, want exactly 1", success)
	}
	if unavailable != attempts-1 {
		t.Errorf("unavailable = %d, want %d", unavailable, attempts-1)
	}
	c, _ := repo.GetByID(context.Background(), id)
	if c.CurrentLoad > c.MaxLoad {
		t.Errorf("load %d exceeds max %d", c.CurrentLoad, c.MaxLoad)
	}
}

func TestService_SetStatusOffline(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	id := addCounselor(t, svc, "Dana", 5, 10)

	if err := svc.SetStatus(context.Background(), id, StatusOffline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Assign(context.Background()); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("err = %v, want ErrNoneAvailable with offline pool", err)
	}
	if err := svc.SetStatus(context.Background(), id, "vacation"); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestService_Stats(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	addCounselor(t, svc, "A", 5, 10)
	b := addCounselor(t, svc, "B", 1, 10)
	c := addCounselor(t, svc, "C", 5, 10)

	if err := repo.UpdateLoad(context.Background(), b, 1, StatusBusy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetStatus(context.Background(), c, StatusOffline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 3 || stats.Available != 1 || stats.Busy != 1 || stats.Offline != 1 {
		t.Errorf("stats = %+v, want 3 total / 1 available / 1 busy / 1 offline", stats)
	}
	if stats.TotalLoad != 1 {
		t.Errorf("total load = %d, want 1", stats.TotalLoad)
	}
}
