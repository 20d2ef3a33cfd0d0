package assessment

import (
	"github.com/google/uuid"

	"github.com/mindwell/crisis/pkg/risk"
)

// SignalSource identifies which input channel produced a risk factor.
type SignalSource string

const (
	SourceText      SignalSource = "text"
	SourceBiometric SignalSource = "biometric"
	SourceEmotion   SignalSource = "emotion"
	SourceContext   SignalSource = "context"
)

// RiskFactor is a single scored signal. Immutable once produced; the full
// list is attached to the alert for audit.
type RiskFactor struct {
	Source       SignalSource `json:"source"`
	Label        string       `json:"label"`
	Contribution float64      `json:"contribution"`
}

// BiometricReading is the wearable-derived snapshot accompanying a session.
// Zero-valued vitals mean the sensor did not report them.
type BiometricReading struct {
	HeartRate        float64 `json:"heart_rate,omitempty"`
	HRV              float64 `json:"hrv,omitempty"`
	OxygenSaturation float64 `json:"oxygen_saturation,omitempty"`
	StressCategory   string  `json:"stress_category,omitempty"`
}

// EmotionScore is one derived emotion tag with model confidence in [0,1].
type EmotionScore struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// SessionContext carries what is already known about the session and user
// history at assessment time.
type SessionContext struct {
	SessionType       string `json:"session_type,omitempty"`
	DurationMinutes   int    `json:"duration_minutes,omitempty"`
	PriorCrisisCount  int    `json:"prior_crisis_count,omitempty"`
	SupportPresent    bool   `json:"support_present,omitempty"`
	SafetyPlanEngaged bool   `json:"safety_plan_engaged,omitempty"`
}

// AssessmentInput is one assessment request. Missing channels contribute
// zero rather than failing the assessment.
type AssessmentInput struct {
	UserID        uuid.UUID          `json:"user_id"`
	Text          *string            `json:"text,omitempty"`
	Biometrics    *BiometricReading  `json:"biometrics,omitempty"`
	Emotions      []EmotionScore     `json:"emotions,omitempty"`
	Context       SessionContext     `json:"context"`
	TriggerSource risk.TriggerSource `json:"trigger_source,omitempty"`
}

// ChannelScores holds the pre-weighting per-channel scores, each in [0,100].
type ChannelScores struct {
	Text      float64 `json:"text"`
	Biometric float64 `json:"biometric"`
	Emotion   float64 `json:"emotion"`
	Context   float64 `json:"context"`
}

// CrisisAnalysisResult is the scored outcome of one assessment.
type CrisisAnalysisResult struct {
	Score                   float64          `json:"score"`
	Level                   risk.CrisisLevel `json:"level"`
	Channels                ChannelScores    `json:"channels"`
	RiskFactors             []RiskFactor     `json:"risk_factors"`
	ProtectiveFactors       []string         `json:"protective_factors,omitempty"`
	ImmediateActionRequired bool             `json:"immediate_action_required"`
	SeverityOverride        bool             `json:"severity_override"`
}
