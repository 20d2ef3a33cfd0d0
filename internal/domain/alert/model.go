package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/crisis/internal/domain/assessment"
	"github.com/mindwell/crisis/pkg/risk"
)

// Alert statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// CrisisAlert maps to the crisis_alert table. An alert has exactly one
// current level at any time; level changes append a transition record rather
// than rewriting history.
type CrisisAlert struct {
	ID                     uuid.UUID               `db:"id" json:"id"`
	UserID                 uuid.UUID               `db:"user_id" json:"user_id"`
	Status                 string                  `db:"status" json:"status"`
	Level                  risk.CrisisLevel        `db:"level" json:"level"`
	Score                  float64                 `db:"score" json:"score"`
	TriggerSource          risk.TriggerSource      `db:"trigger_source" json:"trigger_source"`
	RiskFactors            []assessment.RiskFactor `db:"risk_factors" json:"risk_factors"`
	ProtectiveFactors      []string                `db:"protective_factors" json:"protective_factors,omitempty"`
	InterventionsTriggered []risk.InterventionType `db:"interventions_triggered" json:"interventions_triggered"`
	PreviousAlertID        *uuid.UUID              `db:"previous_alert_id" json:"previous_alert_id,omitempty"`
	OverrideActive         bool                    `db:"override_active" json:"override_active"`
	CreatedAt              time.Time               `db:"created_at" json:"created_at"`
	LastEscalatedAt        *time.Time              `db:"last_escalated_at" json:"last_escalated_at,omitempty"`
	ResolvedAt             *time.Time              `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy             *string                 `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionNote         *string                 `db:"resolution_note" json:"resolution_note,omitempty"`
}

// Resolved reports whether the alert has reached its terminal state.
func (a *CrisisAlert) Resolved() bool {
	return a.Status == StatusResolved
}

// HasTriggered reports whether an intervention type was already dispatched
// for this alert.
func (a *CrisisAlert) HasTriggered(t risk.InterventionType) bool {
	for _, it := range a.InterventionsTriggered {
		if it == t {
			return true
		}
	}
	return false
}

// LevelTransition maps to the crisis_alert_transition table, the append-only
// record of every level change.
type LevelTransition struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	AlertID   uuid.UUID        `db:"alert_id" json:"alert_id"`
	FromLevel risk.CrisisLevel `db:"from_level" json:"from_level"`
	ToLevel   risk.CrisisLevel `db:"to_level" json:"to_level"`
	Reason    string           `db:"reason" json:"reason"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// PlatformCounters are the read-only aggregates behind the statistics
// endpoint.
type PlatformCounters struct {
	TotalAlerts          int     `json:"total_alerts"`
	ActiveAlerts         int     `json:"active_alerts"`
	ActiveHighRisk       int     `json:"active_high_risk"`
	ResolvedAlerts       int     `json:"resolved_alerts"`
	AvgResolutionSeconds float64 `json:"avg_resolution_seconds"`
}
