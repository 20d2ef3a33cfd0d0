// Package crisis is the engine facade: it runs assessments, opens and
// escalates alerts, executes protocols, and serves the monitoring views.
package crisis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindwell/crisis/internal/domain/alert"
	"github.com/mindwell/crisis/internal/domain/assessment"
	"github.com/mindwell/crisis/internal/domain/counselor"
	"github.com/mindwell/crisis/internal/domain/intervention"
	"github.com/mindwell/crisis/internal/domain/safetyplan"
	"github.com/mindwell/crisis/internal/platform/notification"
	"github.com/mindwell/crisis/pkg/risk"
)

// Config carries the crisis line numbers for degraded-mode guidance.
type Config struct {
	Hotline         string
	TextLine        string
	EmergencyNumber string
}

// AssessmentOutcome is what one assessment produced: the scored result, the
// alert it opened or escalated, and the protocol now in force. Degraded is
// set when persistence failed and the engine fell back to worst-case
// guidance.
type AssessmentOutcome struct {
	Result            assessment.CrisisAnalysisResult `json:"result"`
	Alert             *alert.CrisisAlert              `json:"alert,omitempty"`
	Protocol          *alert.Protocol                 `json:"protocol,omitempty"`
	Escalated         bool                            `json:"escalated"`
	Degraded          bool                            `json:"degraded"`
	EmergencyGuidance []string                        `json:"emergency_guidance,omitempty"`
}

// Dashboard is the per-user monitoring view.
type Dashboard struct {
	UserID              uuid.UUID                          `json:"user_id"`
	CurrentRiskLevel    risk.CrisisLevel                   `json:"current_risk_level"`
	ActiveAlert         *alert.CrisisAlert                 `json:"active_alert,omitempty"`
	SafetyPlanStatus    string                             `json:"safety_plan_status"`
	RecentAlerts        []*alert.CrisisAlert               `json:"recent_alerts"`
	RecentInterventions []*intervention.CrisisIntervention `json:"recent_interventions"`
}

// PlatformStatistics aggregates engine-wide operational numbers.
type PlatformStatistics struct {
	Alerts        *alert.PlatformCounters `json:"alerts"`
	CounselorPool *counselor.PoolStats    `json:"counselor_pool"`
	Messages      map[string]int          `json:"messages"`
}

// Engine wires the assessment scorer to the alert lifecycle and the
// intervention dispatcher.
type Engine struct {
	alerts     *alert.Service
	dispatcher *intervention.Dispatcher
	plans      *safetyplan.Service
	counselors *counselor.Service
	notify     *notification.Manager
	cfg        Config
	logger     zerolog.Logger
}

func NewEngine(
	alerts *alert.Service,
	dispatcher *intervention.Dispatcher,
	plans *safetyplan.Service,
	counselors *counselor.Service,
	notify *notification.Manager,
	cfg Config,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		alerts:     alerts,
		dispatcher: dispatcher,
		plans:      plans,
		counselors: counselors,
		notify:     notify,
		cfg:        cfg,
		logger:     logger,
	}
}

// AssessRisk scores the input and manages the user's alert accordingly: no
// alert below Low, a new alert when none is open, an escalation when the new
// level exceeds the open alert's. Persistence failures never drop the
// assessment on the floor; the engine degrades to worst-case guidance
// instead of returning an error to the caller.
func (e *Engine) AssessRisk(ctx context.Context, input assessment.AssessmentInput) (*AssessmentOutcome, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user_id is required")
	}

	result := assessment.Evaluate(input)
	outcome := &AssessmentOutcome{Result: result}
	if result.Level < risk.LevelLow {
		return outcome, nil
	}

	a, escalated, redispatch, err := e.applyToAlert(ctx, input, result)
	if err != nil {
		return e.degrade(outcome, err), nil
	}
	outcome.Alert = a
	outcome.Escalated = escalated

	if p, ok := alert.ProtocolFor(a.Level, a.OverrideActive); ok {
		outcome.Protocol = &p
	}

	if redispatch {
		// The reassessment tightened the protocol row in force; its
		// additional interventions go out now rather than waiting for a
		// manual execute.
		if _, derr := e.dispatcher.ExecuteProtocol(ctx, a.ID); derr != nil {
			e.logger.Error().Err(derr).
				Str("alert_id", a.ID.String()).
				Msg("post-escalation dispatch failed")
		}
	}
	return outcome, nil
}

// applyToAlert opens a new alert or escalates the user's open one. A user
// whose last alert was resolved gets a fresh alert linked to it. The third
// return reports whether the protocol row tightened, meaning the dispatcher
// must re-run.
func (e *Engine) applyToAlert(ctx context.Context, input assessment.AssessmentInput, result assessment.CrisisAnalysisResult) (*alert.CrisisAlert, bool, bool, error) {
	active, err := e.alerts.ActiveForUser(ctx, input.UserID)
	if err == nil {
		armed := false
		if result.SeverityOverride && !active.OverrideActive {
			updated, oerr := e.alerts.ArmOverride(ctx, active.ID)
			switch {
			case oerr == nil:
				active = updated
				armed = true
			case errors.Is(oerr, alert.ErrAlertResolved):
				current, gerr := e.alerts.Get(ctx, active.ID)
				if gerr != nil {
					return nil, false, false, gerr
				}
				return current, false, false, nil
			default:
				return nil, false, false, oerr
			}
		}
		if result.Level <= active.Level {
			// A newly armed override at critical swaps in the override row,
			// so its interventions still need to be dispatched.
			return active, false, armed && active.Level == risk.LevelCritical, nil
		}
		escalated, err := e.alerts.Escalate(ctx, active.ID, result.Level,
			fmt.Sprintf("reassessment scored %.1f", result.Score))
		if err != nil {
			if errors.Is(err, alert.ErrAlertResolved) || errors.Is(err, alert.ErrLevelRegression) {
				// Lost a race with a resolve or a concurrent escalation;
				// re-read and carry on with whatever won.
				current, gerr := e.alerts.Get(ctx, active.ID)
				if gerr != nil {
					return nil, false, false, gerr
				}
				return current, false, false, nil
			}
			return nil, false, false, err
		}
		return escalated, true, true, nil
	}

	a := &alert.CrisisAlert{
		UserID:            input.UserID,
		Level:             result.Level,
		Score:             result.Score,
		TriggerSource:     input.TriggerSource,
		RiskFactors:       result.RiskFactors,
		ProtectiveFactors: result.ProtectiveFactors,
		OverrideActive:    result.SeverityOverride,
	}
	if history, _, herr := e.alerts.ListByUser(ctx, input.UserID, 1, 0); herr == nil && len(history) > 0 && history[0].Resolved() {
		if err := e.alerts.Reopen(ctx, history[0].ID, a); err != nil {
			return nil, false, false, err
		}
		return a, false, false, nil
	}
	if err := e.alerts.Open(ctx, a); err != nil {
		return nil, false, false, err
	}
	return a, false, false, nil
}

// degrade is the fail-safe path: when the alert store is unreachable the
// engine assumes the worst case and hands back emergency guidance directly.
func (e *Engine) degrade(outcome *AssessmentOutcome, cause error) *AssessmentOutcome {
	e.logger.Error().Err(cause).Msg("alert persistence unavailable, degrading to emergency guidance")

	outcome.Degraded = true
	outcome.Result.Level = risk.LevelCritical
	outcome.Result.ImmediateActionRequired = true
	outcome.EmergencyGuidance = []string{
		"We could not reach our response system, so we are treating this as an emergency.",
		"If you are in immediate danger, call " + e.cfg.EmergencyNumber + " now.",
		"You can reach the crisis hotline 24/7 at " + e.cfg.Hotline + ".",
		"Or text the crisis line: " + e.cfg.TextLine + ".",
		"Please do not wait for the app; reach out to someone near you.",
	}
	return outcome
}

// ExecuteProtocol dispatches the intervention set for the alert's level.
func (e *Engine) ExecuteProtocol(ctx context.Context, alertID uuid.UUID) (*intervention.ProtocolExecutionResult, error) {
	return e.dispatcher.ExecuteProtocol(ctx, alertID)
}

// HandleResponse records a user's reply to an intervention and plans the
// follow-up.
func (e *Engine) HandleResponse(ctx context.Context, interventionID uuid.UUID, text string) (*intervention.FollowUpPlan, error) {
	return e.dispatcher.HandleResponse(ctx, interventionID, text)
}

// ConfirmDelivery marks a dispatched intervention as delivered.
func (e *Engine) ConfirmDelivery(ctx context.Context, interventionID uuid.UUID) (*intervention.CrisisIntervention, error) {
	return e.dispatcher.ConfirmDelivery(ctx, interventionID)
}

// ResolveAlert closes an alert and cancels its pending timers.
func (e *Engine) ResolveAlert(ctx context.Context, alertID uuid.UUID, resolvedBy, note string) (*alert.CrisisAlert, error) {
	return e.alerts.Resolve(ctx, alertID, resolvedBy, note)
}

// GetDashboard assembles the per-user monitoring view.
func (e *Engine) GetDashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	d := &Dashboard{
		UserID:           userID,
		CurrentRiskLevel: risk.LevelNone,
		SafetyPlanStatus: "none",
	}

	if active, err := e.alerts.ActiveForUser(ctx, userID); err == nil {
		d.ActiveAlert = active
		d.CurrentRiskLevel = active.Level
	}
	if plan, err := e.plans.GetActive(ctx, userID); err == nil {
		if plan.Synthesized {
			d.SafetyPlanStatus = "synthesized"
		} else {
			d.SafetyPlanStatus = "active"
		}
	}

	recent, _, err := e.alerts.ListByUser(ctx, userID, 5, 0)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	d.RecentAlerts = recent

	ivs, _, err := e.dispatcher.ListByUser(ctx, userID, 10, 0)
	if err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	d.RecentInterventions = ivs
	return d, nil
}

// GetPlatformStatistics returns engine-wide aggregates.
func (e *Engine) GetPlatformStatistics(ctx context.Context) (*PlatformStatistics, error) {
	counters, err := e.alerts.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert counters: %w", err)
	}
	pool, err := e.counselors.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("counselor stats: %w", err)
	}
	return &PlatformStatistics{
		Alerts:        counters,
		CounselorPool: pool,
		Messages:      e.notify.Stats(ctx),
	}, nil
}
