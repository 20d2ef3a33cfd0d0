package safetyplan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults holds the emergency numbers baked into synthesized plans.
type Defaults struct {
	Hotline         string
	TextLine        string
	EmergencyNumber string
}

type Service struct {
	repo     Repository
	defaults Defaults
}

func NewService(repo Repository, defaults Defaults) *Service {
	return &Service{repo: repo, defaults: defaults}
}

// Create stores a new plan and supersedes any existing active plan, keeping
// the one-active-plan-per-user invariant. History is never deleted.
func (s *Service) Create(ctx context.Context, p *SafetyPlan) error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if len(p.CopingStrategies) == 0 {
		return fmt.Errorf("at least one coping strategy is required")
	}
	if err := s.repo.SupersedeActive(ctx, p.UserID); err != nil {
		return err
	}
	p.Status = StatusActive
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*SafetyPlan, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetActive(ctx context.Context, userID uuid.UUID) (*SafetyPlan, error) {
	return s.repo.GetActiveByUser(ctx, userID)
}

// Update edits the active plan content and stamps the review time.
func (s *Service) Update(ctx context.Context, p *SafetyPlan) error {
	now := time.Now().UTC()
	p.LastReviewedAt = &now
	return s.repo.Update(ctx, p)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*SafetyPlan, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Activate bumps the activation counter on the user's active plan and stamps
// the review time. The plan is synthesized first when the user has none, so
// activation never fails for lack of a plan.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID) (*SafetyPlan, error) {
	p, err := s.GetOrSynthesize(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.RecordActivation(ctx, p.ID, now); err != nil {
		return nil, err
	}
	p.ActivationCount++
	p.LastActivatedAt = &now
	p.LastReviewedAt = &now
	return p, nil
}

// GetOrSynthesize returns the user's active plan, creating a minimal default
// plan when none exists.
func (s *Service) GetOrSynthesize(ctx context.Context, userID uuid.UUID) (*SafetyPlan, error) {
	if p, err := s.repo.GetActiveByUser(ctx, userID); err == nil {
		return p, nil
	}
	p := s.defaultPlan(userID)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) defaultPlan(userID uuid.UUID) *SafetyPlan {
	numbers := []string{}
	if s.defaults.Hotline != "" {
		numbers = append(numbers, s.defaults.Hotline)
	}
	if s.defaults.TextLine != "" {
		numbers = append(numbers, s.defaults.TextLine)
	}
	if s.defaults.EmergencyNumber != "" {
		numbers = append(numbers, s.defaults.EmergencyNumber)
	}
	return &SafetyPlan{
		UserID: userID,
		Status: StatusActive,
		WarningSigns: []string{
			"Feeling overwhelmed or hopeless",
			"Withdrawing from friends and family",
			"Trouble sleeping or eating",
		},
		CopingStrategies: []string{
			"Slow, deep breathing for five minutes",
			"Step outside or change rooms",
			"Call or message someone you trust",
			"Use a grounding exercise (five things you can see)",
		},
		SupportContacts:      []SupportContact{},
		ProfessionalContacts: []ProfessionalContact{},
		EmergencyNumbers:     numbers,
		Synthesized:          true,
	}
}
