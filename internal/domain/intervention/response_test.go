package intervention

import (
	"context"
	"testing"
	"time"

	"github.com/mindwell/crisis/pkg/risk"
)

func TestClassifyResponse(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"I'm feeling a bit better today, thanks", ResponseRiskLow},
		{"ok", ResponseRiskLow},
		{"I'm still struggling but holding on", ResponseRiskMedium},
		{"not sure how I feel", ResponseRiskMedium},
		{"I feel so alone", ResponseRiskMedium},
		{"it's getting worse", ResponseRiskHigh},
		{"there's no point anymore", ResponseRiskHigh},
		{"I want to hurt myself", ResponseRiskHigh},
		{"goodbye everyone", ResponseRiskHigh},
		{"", ResponseRiskMedium},
		{"   ", ResponseRiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			if got := classifyResponse(tc.text); got != tc.want {
				t.Errorf("classifyResponse(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}
}

func (h *harness) dispatchCheckIn(t *testing.T, level risk.CrisisLevel) *CrisisIntervention {
	t.Helper()
	a := h.openAlert(t, level, false)
	res, err := h.d.ExecuteProtocol(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := recordOfType(res.Records, risk.InterventionCheckIn)
	if rec == nil {
		t.Fatal("no check-in record dispatched")
	}
	return rec
}

func TestHandleResponse_LowRisk(t *testing.T) {
	h := newHarness(t)
	rec := h.dispatchCheckIn(t, risk.LevelLow)

	before := h.sched.PendingForAlert(rec.AlertID)
	plan, err := h.d.HandleResponse(context.Background(), rec.ID, "doing better, thank you")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.RiskLevel != ResponseRiskLow {
		t.Errorf("risk level = %s, want low", plan.RiskLevel)
	}
	if plan.EscalationTriggered {
		t.Error("low-risk response must not escalate")
	}
	wantNext := h.d.now().UTC().Add(24 * time.Hour)
	if !plan.NextCheckInAt.Equal(wantNext) {
		t.Errorf("next check-in = %v, want %v", plan.NextCheckInAt, wantNext)
	}
	if len(plan.Resources) == 0 {
		t.Error("plan has no support resources")
	}
	if h.sched.PendingForAlert(rec.AlertID) != before+1 {
		t.Error("follow-up check-in not scheduled")
	}

	stored, err := h.repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != StatusResponded || stored.ResponseText == nil {
		t.Errorf("stored = %+v, want responded with text", stored)
	}
}

func TestHandleResponse_HighRiskEscalates(t *testing.T) {
	h := newHarness(t)
	rec := h.dispatchCheckIn(t, risk.LevelMedium)

	plan, err := h.d.HandleResponse(context.Background(), rec.ID, "it's getting worse, no point")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.RiskLevel != ResponseRiskHigh {
		t.Errorf("risk level = %s, want high", plan.RiskLevel)
	}
	if !plan.EscalationTriggered {
		t.Error("high-risk response did not escalate the alert")
	}

	a, err := h.alerts.Get(context.Background(), rec.AlertID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Level != risk.LevelHigh {
		t.Errorf("alert level = %s, want high", a.Level)
	}

	trs, err := h.alerts.Transitions(context.Background(), rec.AlertID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := trs[len(trs)-1]
	if last.Reason != "user response escalation" {
		t.Errorf("transition reason = %q, want user response escalation", last.Reason)
	}
}

func TestHandleResponse_EscalationDispatchesNewLevel(t *testing.T) {
	h := newHarness(t)
	counselorID := h.addCounselor(t, "Rosa")
	rec := h.dispatchCheckIn(t, risk.LevelMedium)

	if _, err := h.d.HandleResponse(context.Background(), rec.ID, "it's getting worse, no point"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The reply moved the alert to high; the high-level protocol must run
	// immediately, not sit waiting for a manual execute.
	records, err := h.repo.ListByAlert(context.Background(), rec.AlertID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assigned := recordOfType(records, risk.InterventionCounselor)
	if assigned == nil {
		t.Fatal("no counselor assignment dispatched after escalation to high")
	}
	if assigned.CounselorID == nil || *assigned.CounselorID != counselorID {
		t.Errorf("counselor id = %v, want %s", assigned.CounselorID, counselorID)
	}

	a, err := h.alerts.Get(context.Background(), rec.AlertID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.HasTriggered(risk.InterventionCounselor) {
		t.Error("counselor intervention not recorded on the alert")
	}
}

func TestHandleResponse_HighRiskAtCriticalStaysCritical(t *testing.T) {
	h := newHarness(t)
	a := h.openAlert(t, risk.LevelCritical, false)
	rec := &CrisisIntervention{
		AlertID:     a.ID,
		UserID:      a.UserID,
		Type:        risk.InterventionCheckIn,
		Status:      StatusDelivered,
		InitiatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plan, err := h.d.HandleResponse(context.Background(), rec.ID, "goodbye")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.EscalationTriggered {
		t.Error("alert already at top level, nothing to escalate")
	}
	a, _ = h.alerts.Get(context.Background(), rec.AlertID)
	if a.Level != risk.LevelCritical {
		t.Errorf("level = %s, want critical", a.Level)
	}
}

func TestHandleResponse_MediumRiskSchedulesSixHours(t *testing.T) {
	h := newHarness(t)
	rec := h.dispatchCheckIn(t, risk.LevelLow)

	plan, err := h.d.HandleResponse(context.Background(), rec.ID, "still struggling a bit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.RiskLevel != ResponseRiskMedium {
		t.Errorf("risk level = %s, want medium", plan.RiskLevel)
	}
	wantNext := h.d.now().UTC().Add(6 * time.Hour)
	if !plan.NextCheckInAt.Equal(wantNext) {
		t.Errorf("next check-in = %v, want %v", plan.NextCheckInAt, wantNext)
	}
}
