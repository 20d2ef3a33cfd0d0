package intervention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindwell/crisis/internal/domain/alert"
	"github.com/mindwell/crisis/internal/platform/notification"
)

// Response risk tiers.
const (
	ResponseRiskLow    = "low"
	ResponseRiskMedium = "medium"
	ResponseRiskHigh   = "high"
)

// Follow-up check-in delays by response tier.
var followUpDelay = map[string]time.Duration{
	ResponseRiskHigh:   2 * time.Hour,
	ResponseRiskMedium: 6 * time.Hour,
	ResponseRiskLow:    24 * time.Hour,
}

// Phrases in a check-in reply that indicate worsening state. A match
// escalates the alert one level.
var highRiskResponses = []string{
	"worse",
	"no point",
	"can't go on",
	"cant go on",
	"hurt myself",
	"don't want to be here",
	"dont want to be here",
	"give up",
	"goodbye",
}

// Phrases that indicate continued distress without acute danger.
var mediumRiskResponses = []string{
	"not sure",
	"not good",
	"not great",
	"struggling",
	"alone",
	"scared",
	"anxious",
	"can't sleep",
	"cant sleep",
}

// classifyResponse maps a free-text check-in reply to a risk tier. An empty
// reply counts as medium: silence after outreach is itself a signal.
func classifyResponse(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return ResponseRiskMedium
	}
	for _, phrase := range highRiskResponses {
		if strings.Contains(lowered, phrase) {
			return ResponseRiskHigh
		}
	}
	for _, phrase := range mediumRiskResponses {
		if strings.Contains(lowered, phrase) {
			return ResponseRiskMedium
		}
	}
	return ResponseRiskLow
}

// HandleResponse records a user's reply to a dispatched intervention,
// classifies it, and builds the follow-up plan. High-risk replies escalate
// the alert one level; an alert already at the top stays there. A follow-up
// check-in is scheduled at the tier's delay unless the alert has been
// resolved in the meantime.
func (d *Dispatcher) HandleResponse(ctx context.Context, interventionID uuid.UUID, text string) (*FollowUpPlan, error) {
	iv, err := d.repo.GetByID(ctx, interventionID)
	if err != nil {
		return nil, fmt.Errorf("get intervention: %w", err)
	}

	now := d.now().UTC()
	if err := d.repo.RecordResponse(ctx, interventionID, now, text); err != nil {
		return nil, fmt.Errorf("record response: %w", err)
	}

	tier := classifyResponse(text)
	delay := followUpDelay[tier]
	plan := &FollowUpPlan{
		InterventionID: interventionID,
		RiskLevel:      tier,
		NextCheckInAt:  now.Add(delay),
		Resources:      d.responseResources(),
	}

	a, err := d.alerts.Get(ctx, iv.AlertID)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}

	if tier == ResponseRiskHigh {
		escalated, err := d.alerts.Escalate(ctx, iv.AlertID, a.Level.Next(), "user response escalation")
		switch {
		case err == nil:
			plan.EscalationTriggered = true
			a = escalated
			// The new level's additional interventions must go out now, not
			// wait for a manual execute.
			if _, err := d.ExecuteProtocol(ctx, iv.AlertID); err != nil {
				d.logger.Error().Err(err).
					Str("alert_id", iv.AlertID.String()).
					Msg("post-escalation dispatch failed")
			}
		case errors.Is(err, alert.ErrLevelRegression):
			// Already at the top level.
		case errors.Is(err, alert.ErrAlertResolved):
			return plan, nil
		default:
			return nil, fmt.Errorf("escalate alert: %w", err)
		}
	}

	if a.Resolved() {
		return plan, nil
	}

	alertID := iv.AlertID
	userID := iv.UserID
	d.sched.After(alertID, delay, func(ctx context.Context) {
		current, err := d.alerts.Get(ctx, alertID)
		if err != nil || current.Resolved() {
			return
		}
		if _, err := d.notify.DeliverTemplate(ctx, "followup-checkin", d.templateData(current), userID.String(), notification.ChannelPush, alertID); err != nil {
			d.logger.Warn().Err(err).
				Str("alert_id", alertID.String()).
				Msg("follow-up check-in failed")
		}
	})

	d.logger.Info().
		Str("intervention_id", interventionID.String()).
		Str("alert_id", iv.AlertID.String()).
		Str("response_risk", tier).
		Bool("escalated", plan.EscalationTriggered).
		Msg("intervention response handled")
	return plan, nil
}

func (d *Dispatcher) responseResources() []string {
	var res []string
	if d.cfg.Hotline != "" {
		res = append(res, "Crisis hotline: "+d.cfg.Hotline)
	}
	if d.cfg.TextLine != "" {
		res = append(res, "Crisis text line: "+d.cfg.TextLine)
	}
	if d.cfg.EmergencyNumber != "" {
		res = append(res, "Emergencies: "+d.cfg.EmergencyNumber)
	}
	return res
}
