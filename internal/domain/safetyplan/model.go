package safetyplan

import (
	"time"

	"github.com/google/uuid"
)

// Plan statuses.
const (
	StatusActive     = "active"
	StatusSuperseded = "superseded"
)

// SupportContact is one person in the plan's ordered support list.
type SupportContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// ProfessionalContact is a clinician or service in the plan.
type ProfessionalContact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SafetyPlan maps to the safety_plan table. A user has exactly one active
// plan; superseded plans are kept for history, never deleted.
type SafetyPlan struct {
	ID                   uuid.UUID             `db:"id" json:"id"`
	UserID               uuid.UUID             `db:"user_id" json:"user_id"`
	Status               string                `db:"status" json:"status"`
	WarningSigns         []string              `db:"warning_signs" json:"warning_signs"`
	CopingStrategies     []string              `db:"coping_strategies" json:"coping_strategies"`
	SupportContacts      []SupportContact      `db:"support_contacts" json:"support_contacts"`
	ProfessionalContacts []ProfessionalContact `db:"professional_contacts" json:"professional_contacts"`
	EmergencyNumbers     []string              `db:"emergency_numbers" json:"emergency_numbers"`
	ActivationCount      int                   `db:"activation_count" json:"activation_count"`
	Synthesized          bool                  `db:"synthesized" json:"synthesized"`
	LastActivatedAt      *time.Time            `db:"last_activated_at" json:"last_activated_at,omitempty"`
	LastReviewedAt       *time.Time            `db:"last_reviewed_at" json:"last_reviewed_at,omitempty"`
	CreatedAt            time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time             `db:"updated_at" json:"updated_at"`
}
