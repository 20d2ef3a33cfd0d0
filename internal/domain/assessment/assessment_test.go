package assessment

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mindwell/crisis/pkg/risk"
)

func strPtr(s string) *string { return &s }

func TestEvaluate_WeightsSumToOne(t *testing.T) {
	if w := TextWeight + BiometricWeight + EmotionWeight + ContextWeight; w != 1.0 {
		t.Errorf("channel weights sum to %v, want 1.0", w)
	}
}

func TestEvaluate_EmptyInput(t *testing.T) {
	result := Evaluate(AssessmentInput{UserID: uuid.New()})
	if result.Score != 0 {
		t.Errorf("score = %v, want 0", result.Score)
	}
	if result.Level != risk.LevelNone {
		t.Errorf("level = %v, want None", result.Level)
	}
	if result.ImmediateActionRequired {
		t.Error("empty input should not require immediate action")
	}
}

func TestEvaluate_DirectCrisisTextForcesHighFloor(t *testing.T) {
	// Weighted score is only 0.4*40 = 16, but direct crisis language must
	// never be diluted by calm channels.
	result := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   strPtr("I want to end it all"),
	})
	if result.Channels.Text < 40 {
		t.Errorf("text channel = %v, want >= 40", result.Channels.Text)
	}
	if result.Score < 16 {
		t.Errorf("score = %v, want >= 16", result.Score)
	}
	if result.Level < risk.LevelHigh {
		t.Errorf("level = %v, want >= High (override floor)", result.Level)
	}
	if !result.ImmediateActionRequired {
		t.Error("expected immediate action for direct crisis language")
	}
}

func TestEvaluate_ExplicitPlanForcesCritical(t *testing.T) {
	result := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   strPtr("I have a plan and I wrote a note"),
	})
	if result.Level != risk.LevelCritical {
		t.Errorf("level = %v, want Critical", result.Level)
	}
}

func TestEvaluate_BiometricOnlyStaysConservative(t *testing.T) {
	// stress critical (30) + HR 140 (25) = 55, weighted 16.5. Biometric-only
	// signals without corroborating text or emotion stay below the alert
	// threshold.
	result := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Biometrics: &BiometricReading{
			HeartRate:      140,
			StressCategory: "critical",
		},
	})
	if result.Channels.Biometric != 55 {
		t.Errorf("biometric channel = %v, want 55", result.Channels.Biometric)
	}
	if result.Score != 16.5 {
		t.Errorf("score = %v, want 16.5", result.Score)
	}
	if result.Level != risk.LevelNone {
		t.Errorf("level = %v, want None", result.Level)
	}
}

func TestEvaluate_ScoreClamped(t *testing.T) {
	// Saturate every channel.
	text := strings.Repeat("kill myself hopeless worthless trapped hurt myself ", 10)
	result := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   &text,
		Biometrics: &BiometricReading{
			HeartRate:        150,
			HRV:              10,
			OxygenSaturation: 88,
			StressCategory:   "critical",
		},
		Emotions: []EmotionScore{
			{Emotion: "sadness", Confidence: 0.9},
			{Emotion: "fear", Confidence: 0.9},
			{Emotion: "anger", Confidence: 0.9},
			{Emotion: "hopelessness", Confidence: 0.9},
		},
		Context: SessionContext{
			SessionType:      "crisis",
			DurationMinutes:  200,
			PriorCrisisCount: 10,
		},
	})
	if result.Score < 0 || result.Score > 100 {
		t.Errorf("score = %v, want within [0,100]", result.Score)
	}
	for _, ch := range []float64{result.Channels.Text, result.Channels.Biometric, result.Channels.Emotion, result.Channels.Context} {
		if ch < 0 || ch > 100 {
			t.Errorf("channel score %v outside [0,100]", ch)
		}
	}
	if result.Level != risk.LevelCritical {
		t.Errorf("level = %v, want Critical", result.Level)
	}
}

func TestLevelForScore_Bands(t *testing.T) {
	cases := []struct {
		score float64
		want  risk.CrisisLevel
	}{
		{0, risk.LevelNone},
		{29.9, risk.LevelNone},
		{30, risk.LevelLow},
		{49.9, risk.LevelLow},
		{50, risk.LevelMedium},
		{74.9, risk.LevelMedium},
		{75, risk.LevelHigh},
		{89.9, risk.LevelHigh},
		{90, risk.LevelCritical},
		{100, risk.LevelCritical},
	}
	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Errorf("LevelForScore(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestScoreText_KeywordTiers(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"direct crisis", "sometimes I think about suicide", 40},
		{"self harm", "I want to hurt myself", 25},
		{"concerning", "everything feels hopeless", 10},
		{"neutral", "the weather was nice today", 0},
		{"additive tiers", "I feel hopeless and want to hurt myself", 35},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, _ := scoreText(tc.text)
			if score != tc.want {
				t.Errorf("score = %v, want %v", score, tc.want)
			}
		})
	}
}

func TestScoreText_SustainedDistressBonus(t *testing.T) {
	short := "I feel hopeless"
	long := short + " " + strings.Repeat("and it keeps getting worse every single day ", 8)
	if len(long) <= longMessageThreshold {
		t.Fatalf("fixture too short: %d", len(long))
	}

	shortScore, _ := scoreText(short)
	longScore, _ := scoreText(long)
	if longScore != shortScore+sustainedBonus {
		t.Errorf("long score = %v, want %v", longScore, shortScore+sustainedBonus)
	}

	// no bonus without a nonzero base score
	neutral := strings.Repeat("we talked about gardening and the farmers market today ", 8)
	if score, _ := scoreText(neutral); score != 0 {
		t.Errorf("neutral long message scored %v, want 0", score)
	}
}

func TestScoreText_DistressPatterns(t *testing.T) {
	score, factors := scoreText("nobody cares about me and I am completely alone")
	if score != patternPoints*2 {
		t.Errorf("score = %v, want %v", score, patternPoints*2)
	}
	if len(factors) != 2 {
		t.Errorf("factors = %d, want 2", len(factors))
	}
}

func TestScoreBiometric_Thresholds(t *testing.T) {
	cases := []struct {
		name string
		b    BiometricReading
		want float64
	}{
		{"critical stress", BiometricReading{StressCategory: "critical"}, 30},
		{"high stress", BiometricReading{StressCategory: "high"}, 20},
		{"elevated stress", BiometricReading{StressCategory: "elevated"}, 10},
		{"tachycardia", BiometricReading{HeartRate: 135}, 25},
		{"bradycardia", BiometricReading{HeartRate: 45}, 20},
		{"low hrv", BiometricReading{HRV: 15}, 15},
		{"low oxygen", BiometricReading{OxygenSaturation: 90}, 10},
		{"unreported vitals ignored", BiometricReading{}, 0},
		{"normal vitals", BiometricReading{HeartRate: 70, HRV: 55, OxygenSaturation: 98, StressCategory: "normal"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, _ := scoreBiometric(tc.b)
			if score != tc.want {
				t.Errorf("score = %v, want %v", score, tc.want)
			}
		})
	}
}

func TestScoreEmotion_ThresholdsAndInstability(t *testing.T) {
	score, _ := scoreEmotion([]EmotionScore{{Emotion: "hopelessness", Confidence: 0.65}})
	if score != 30 {
		t.Errorf("hopelessness score = %v, want 30", score)
	}

	// below cutoff contributes nothing
	score, _ = scoreEmotion([]EmotionScore{{Emotion: "sadness", Confidence: 0.7}})
	if score != 0 {
		t.Errorf("sub-threshold sadness score = %v, want 0", score)
	}

	// three moderate-confidence emotions trigger the instability bonus
	score, factors := scoreEmotion([]EmotionScore{
		{Emotion: "sadness", Confidence: 0.6},
		{Emotion: "anger", Confidence: 0.55},
		{Emotion: "fear", Confidence: 0.5},
	})
	if score != instabilityBonus {
		t.Errorf("score = %v, want %v", score, instabilityBonus)
	}
	found := false
	for _, f := range factors {
		if f.Label == "emotional-instability" {
			found = true
		}
	}
	if !found {
		t.Error("expected emotional-instability factor")
	}
}

func TestScoreContext_Contributions(t *testing.T) {
	score, _ := scoreContext(SessionContext{PriorCrisisCount: 2})
	if score != 20 {
		t.Errorf("prior crises score = %v, want 20", score)
	}

	// capped contribution
	score, _ = scoreContext(SessionContext{PriorCrisisCount: 8})
	if score != priorCrisisCap {
		t.Errorf("capped score = %v, want %v", score, priorCrisisCap)
	}

	score, _ = scoreContext(SessionContext{SessionType: "crisis", DurationMinutes: 120})
	if score != crisisSessionPoints+longSessionPoints {
		t.Errorf("score = %v, want %v", score, crisisSessionPoints+longSessionPoints)
	}
}

func TestEvaluate_ProtectiveFactorsReduceScore(t *testing.T) {
	base := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   strPtr("everything feels hopeless and I am trapped"),
		Context: SessionContext{
			PriorCrisisCount: 3,
		},
	})
	protected := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   strPtr("everything feels hopeless and I am trapped"),
		Context: SessionContext{
			PriorCrisisCount:  3,
			SupportPresent:    true,
			SafetyPlanEngaged: true,
		},
	})
	if protected.Score != base.Score-2*protectiveReduction {
		t.Errorf("protected score = %v, want %v", protected.Score, base.Score-2*protectiveReduction)
	}
	if len(protected.ProtectiveFactors) != 2 {
		t.Errorf("protective factors = %v, want 2", protected.ProtectiveFactors)
	}
}

func TestEvaluate_ProtectiveFloorZero(t *testing.T) {
	result := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   strPtr("I am looking forward to tomorrow"),
		Context: SessionContext{
			SupportPresent:    true,
			SafetyPlanEngaged: true,
		},
	})
	if result.Score != 0 {
		t.Errorf("score = %v, want floor of 0", result.Score)
	}
}

func TestEvaluate_RiskFactorsCarrySourceAndContribution(t *testing.T) {
	result := Evaluate(AssessmentInput{
		UserID: uuid.New(),
		Text:   strPtr("I feel worthless"),
		Biometrics: &BiometricReading{
			StressCategory: "high",
		},
	})
	sources := map[SignalSource]bool{}
	for _, f := range result.RiskFactors {
		sources[f.Source] = true
		if f.Contribution < 0 {
			t.Errorf("factor %q has negative contribution", f.Label)
		}
	}
	if !sources[SourceText] || !sources[SourceBiometric] {
		t.Errorf("expected factors from text and biometric channels, got %v", result.RiskFactors)
	}
}
