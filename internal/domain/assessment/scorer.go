package assessment

import (
	"strings"

	"github.com/mindwell/crisis/pkg/risk"
)

// Channel weights. They must sum to 1.0.
const (
	TextWeight      = 0.4
	BiometricWeight = 0.3
	EmotionWeight   = 0.2
	ContextWeight   = 0.1
)

// Each protective factor subtracts this many points from the weighted score.
const protectiveReduction = 5.0

// levelFloors maps severity-language factor labels to the minimum level they
// force. Severity language must never be diluted by averaging with calmer
// channels.
var levelFloors = map[string]risk.CrisisLevel{
	LabelExplicitPlan:   risk.LevelCritical,
	LabelActiveAttempt:  risk.LevelHigh,
	LabelImminentDanger: risk.LevelHigh,
	LabelDirectCrisis:   risk.LevelHigh,
}

// LevelForScore maps a clamped score to its band.
func LevelForScore(score float64) risk.CrisisLevel {
	switch {
	case score >= 90:
		return risk.LevelCritical
	case score >= 75:
		return risk.LevelHigh
	case score >= 50:
		return risk.LevelMedium
	case score >= 30:
		return risk.LevelLow
	default:
		return risk.LevelNone
	}
}

// floorFor returns the highest level floor forced by the factor list.
func floorFor(factors []RiskFactor) risk.CrisisLevel {
	floor := risk.LevelNone
	for _, f := range factors {
		for label, lvl := range levelFloors {
			if strings.HasPrefix(f.Label, label) && lvl > floor {
				floor = lvl
			}
		}
	}
	return floor
}

// overrideLabels are the factor labels that arm the emergency-services
// protocol row when the alert reaches critical.
var overrideLabels = []string{LabelExplicitPlan, LabelActiveAttempt, LabelImminentDanger}

// hasOverride reports whether any override-arming factor is present.
func hasOverride(factors []RiskFactor) bool {
	for _, f := range factors {
		for _, label := range overrideLabels {
			if strings.HasPrefix(f.Label, label) {
				return true
			}
		}
	}
	return false
}

// Evaluate normalizes every present channel, combines them with the fixed
// weights, applies protective reductions and severity floors, and returns the
// bounded analysis result. Pure function of its input.
func Evaluate(input AssessmentInput) CrisisAnalysisResult {
	var channels ChannelScores
	var factors []RiskFactor

	if input.Text != nil && *input.Text != "" {
		score, fs := scoreText(*input.Text)
		channels.Text = score
		factors = append(factors, fs...)
	}
	if input.Biometrics != nil {
		score, fs := scoreBiometric(*input.Biometrics)
		channels.Biometric = score
		factors = append(factors, fs...)
	}
	if len(input.Emotions) > 0 {
		score, fs := scoreEmotion(input.Emotions)
		channels.Emotion = score
		factors = append(factors, fs...)
	}
	{
		score, fs := scoreContext(input.Context)
		channels.Context = score
		factors = append(factors, fs...)
	}

	score := TextWeight*channels.Text +
		BiometricWeight*channels.Biometric +
		EmotionWeight*channels.Emotion +
		ContextWeight*channels.Context

	protective := protectiveFactors(input)
	score -= float64(len(protective)) * protectiveReduction
	score = clamp(score)

	level := LevelForScore(score)
	if floor := floorFor(factors); floor > level {
		level = floor
	}

	return CrisisAnalysisResult{
		Score:                   score,
		Level:                   level,
		Channels:                channels,
		RiskFactors:             factors,
		ProtectiveFactors:       protective,
		ImmediateActionRequired: level >= risk.LevelHigh,
		SeverityOverride:        hasOverride(factors),
	}
}
