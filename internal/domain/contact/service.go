package contact

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var validChannels = map[string]bool{
	"sms": true, "voice": true, "email": true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, c *EmergencyContact) error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("user_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Phone == nil && c.Email == nil {
		return fmt.Errorf("phone or email is required")
	}
	if c.Priority <= 0 {
		c.Priority = 1
	}
	if c.PreferredChannel == "" {
		c.PreferredChannel = "sms"
	}
	if !validChannels[c.PreferredChannel] {
		return fmt.Errorf("invalid preferred_channel: %s", c.PreferredChannel)
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*EmergencyContact, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *EmergencyContact) error {
	if c.PreferredChannel != "" && !validChannels[c.PreferredChannel] {
		return fmt.Errorf("invalid preferred_channel: %s", c.PreferredChannel)
	}
	return s.repo.Update(ctx, c)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ListByUser returns the user's contacts in cascade order.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*EmergencyContact, error) {
	return s.repo.ListByUser(ctx, userID)
}
