package intervention

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/crisis/pkg/risk"
)

// Intervention statuses.
const (
	StatusInitiated = "initiated"
	StatusDelivered = "delivered"
	StatusResponded = "responded"
	StatusStaged    = "staged"
	StatusFailed    = "failed"
)

// CrisisIntervention maps to the crisis_intervention table. One row per
// dispatch attempt, success or failure, so the audit trail shows everything
// that was tried.
type CrisisIntervention struct {
	ID               uuid.UUID             `db:"id" json:"id"`
	AlertID          uuid.UUID             `db:"alert_id" json:"alert_id"`
	UserID           uuid.UUID             `db:"user_id" json:"user_id"`
	Type             risk.InterventionType `db:"type" json:"type"`
	Status           string                `db:"status" json:"status"`
	Channel          string                `db:"channel" json:"channel,omitempty"`
	Recipient        string                `db:"recipient" json:"recipient,omitempty"`
	CounselorID      *uuid.UUID            `db:"counselor_id" json:"counselor_id,omitempty"`
	Outcome          *string               `db:"outcome" json:"outcome,omitempty"`
	FollowUpRequired bool                  `db:"follow_up_required" json:"follow_up_required"`
	ContactsReached  []string              `db:"contacts_reached" json:"contacts_reached,omitempty"`
	ResponseText     *string               `db:"response_text" json:"response_text,omitempty"`
	InitiatedAt      time.Time             `db:"initiated_at" json:"initiated_at"`
	RespondedAt      *time.Time            `db:"responded_at" json:"responded_at,omitempty"`
}

// ProtocolExecutionResult summarizes one protocol run for an alert.
type ProtocolExecutionResult struct {
	AlertID                uuid.UUID               `json:"alert_id"`
	Level                  risk.CrisisLevel        `json:"level"`
	InterventionsTriggered []risk.InterventionType `json:"interventions_triggered"`
	EmergencyContactsUsed  int                     `json:"emergency_contacts_used"`
	Records                []*CrisisIntervention   `json:"records"`
}

// FollowUpPlan is returned after classifying a user's check-in response.
type FollowUpPlan struct {
	InterventionID      uuid.UUID `json:"intervention_id"`
	RiskLevel           string    `json:"risk_level"`
	NextCheckInAt       time.Time `json:"next_check_in_at"`
	Resources           []string  `json:"resources"`
	EscalationTriggered bool      `json:"escalation_triggered"`
}
