package assessment

import (
	"fmt"
	"regexp"
	"strings"
)

// Per-channel point values. The weighted-sum calibration is carried over as
// configuration constants, a starting default rather than a validated
// clinical model.
const (
	directCrisisPoints = 40
	selfHarmPoints     = 25
	concerningPoints   = 10
	patternPoints      = 8

	longMessageThreshold = 280
	sustainedBonus       = 5

	stressCriticalPoints = 30
	stressHighPoints     = 20
	stressElevatedPoints = 10
	tachycardiaPoints    = 25
	bradycardiaPoints    = 20
	lowHRVPoints         = 15
	lowOxygenPoints      = 10

	instabilityBonus = 15

	priorCrisisPoints   = 10
	priorCrisisCap      = 30
	longSessionPoints   = 10
	crisisSessionPoints = 25
)

// Factor labels the scorer recognizes as level-floor overrides.
const (
	LabelDirectCrisis   = "direct-crisis-language"
	LabelExplicitPlan   = "explicit-plan"
	LabelActiveAttempt  = "active-attempt"
	LabelImminentDanger = "imminent-danger"
)

var directCrisisKeywords = []string{
	"kill myself",
	"end my life",
	"end it all",
	"want to die",
	"suicide",
	"better off dead",
	"no reason to live",
	"don't want to be alive",
}

var selfHarmKeywords = []string{
	"hurt myself",
	"harm myself",
	"cut myself",
	"cutting again",
	"overdose",
	"punish myself",
}

var concerningKeywords = []string{
	"hopeless",
	"worthless",
	"can't go on",
	"give up",
	"giving up",
	"no way out",
	"trapped",
	"unbearable",
	"burden to everyone",
	"empty inside",
}

var explicitPlanPhrases = []string{
	"i have a plan",
	"have a plan to",
	"planned how",
	"wrote a note",
	"wrote my note",
	"goodbye letter",
	"saying goodbye",
}

var activeAttemptPhrases = []string{
	"just took",
	"already took",
	"took all the",
	"about to jump",
	"on the ledge",
}

var imminentDangerPhrases = []string{
	"going to do it tonight",
	"doing it tonight",
	"doing it now",
	"this is goodbye",
	"by the time you read this",
}

var distressPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"despair-pattern", regexp.MustCompile(`(?i)\b(nothing|no one|nobody)\s+(matters|cares|would\s+care|would\s+miss)`)},
	{"despair-pattern", regexp.MustCompile(`(?i)\bwhat'?s\s+the\s+point\b`)},
	{"isolation-pattern", regexp.MustCompile(`(?i)\b(completely|totally|so|all)\s+alone\b`)},
	{"overwhelm-pattern", regexp.MustCompile(`(?i)can'?t\s+(take|handle|do)\s+(this|it)(\s+anymore)?`)},
	{"overwhelm-pattern", regexp.MustCompile(`(?i)\b(drowning|suffocating)\b`)},
}

var futureOrientedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(tomorrow|next\s+week|next\s+month)\b`),
	regexp.MustCompile(`(?i)\blooking\s+forward\b`),
	regexp.MustCompile(`(?i)\bwhen\s+i\s+get\s+better\b`),
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// scoreText scores the free-text channel: additive keyword tiers, distress
// regex patterns, and a sustained-distress bonus for long messages that
// already scored.
func scoreText(text string) (float64, []RiskFactor) {
	var score float64
	var factors []RiskFactor

	lower := strings.ToLower(text)

	for _, kw := range directCrisisKeywords {
		if strings.Contains(lower, kw) {
			score += directCrisisPoints
			factors = append(factors, RiskFactor{
				Source:       SourceText,
				Label:        fmt.Sprintf("%s: %q", LabelDirectCrisis, kw),
				Contribution: directCrisisPoints,
			})
		}
	}
	for _, kw := range selfHarmKeywords {
		if strings.Contains(lower, kw) {
			score += selfHarmPoints
			factors = append(factors, RiskFactor{
				Source:       SourceText,
				Label:        fmt.Sprintf("self-harm-language: %q", kw),
				Contribution: selfHarmPoints,
			})
		}
	}
	for _, kw := range concerningKeywords {
		if strings.Contains(lower, kw) {
			score += concerningPoints
			factors = append(factors, RiskFactor{
				Source:       SourceText,
				Label:        fmt.Sprintf("concerning-language: %q", kw),
				Contribution: concerningPoints,
			})
		}
	}
	for _, p := range distressPatterns {
		if p.re.MatchString(text) {
			score += patternPoints
			factors = append(factors, RiskFactor{
				Source:       SourceText,
				Label:        p.label,
				Contribution: patternPoints,
			})
		}
	}

	// Severity phrase floors. These add no points themselves; the scorer
	// maps the labels to a minimum level.
	for _, p := range explicitPlanPhrases {
		if strings.Contains(lower, p) {
			factors = append(factors, RiskFactor{Source: SourceText, Label: LabelExplicitPlan})
			break
		}
	}
	for _, p := range activeAttemptPhrases {
		if strings.Contains(lower, p) {
			factors = append(factors, RiskFactor{Source: SourceText, Label: LabelActiveAttempt})
			break
		}
	}
	for _, p := range imminentDangerPhrases {
		if strings.Contains(lower, p) {
			factors = append(factors, RiskFactor{Source: SourceText, Label: LabelImminentDanger})
			break
		}
	}

	if len(text) > longMessageThreshold && score > 0 {
		score += sustainedBonus
		factors = append(factors, RiskFactor{
			Source:       SourceText,
			Label:        "sustained-distress",
			Contribution: sustainedBonus,
		})
	}

	return clamp(score), factors
}

// scoreBiometric scores the wearable channel from stress category and vital
// thresholds. Unreported vitals (zero) contribute nothing.
func scoreBiometric(b BiometricReading) (float64, []RiskFactor) {
	var score float64
	var factors []RiskFactor

	add := func(points float64, label string) {
		score += points
		factors = append(factors, RiskFactor{Source: SourceBiometric, Label: label, Contribution: points})
	}

	switch strings.ToLower(b.StressCategory) {
	case "critical":
		add(stressCriticalPoints, "stress-critical")
	case "high":
		add(stressHighPoints, "stress-high")
	case "elevated":
		add(stressElevatedPoints, "stress-elevated")
	}

	if b.HeartRate > 130 {
		add(tachycardiaPoints, "elevated-heart-rate")
	} else if b.HeartRate > 0 && b.HeartRate < 50 {
		add(bradycardiaPoints, "depressed-heart-rate")
	}
	if b.HRV > 0 && b.HRV < 20 {
		add(lowHRVPoints, "low-hrv")
	}
	if b.OxygenSaturation > 0 && b.OxygenSaturation < 92 {
		add(lowOxygenPoints, "low-oxygen-saturation")
	}

	return clamp(score), factors
}

// emotionThresholds maps an emotion tag to the confidence cutoff and points
// it contributes once crossed.
var emotionThresholds = map[string]struct {
	cutoff float64
	points float64
}{
	"sadness":      {0.75, 20},
	"fear":         {0.70, 20},
	"anger":        {0.80, 15},
	"hopelessness": {0.60, 30},
}

const instabilityCutoff = 0.5

// scoreEmotion scores the derived-emotion channel, with an instability bonus
// when three or more emotions fire at moderate confidence simultaneously.
func scoreEmotion(emotions []EmotionScore) (float64, []RiskFactor) {
	var score float64
	var factors []RiskFactor

	moderate := 0
	for _, e := range emotions {
		name := strings.ToLower(e.Emotion)
		if t, ok := emotionThresholds[name]; ok && e.Confidence >= t.cutoff {
			score += t.points
			factors = append(factors, RiskFactor{
				Source:       SourceEmotion,
				Label:        fmt.Sprintf("high-%s", name),
				Contribution: t.points,
			})
		}
		if e.Confidence >= instabilityCutoff {
			moderate++
		}
	}
	if moderate >= 3 {
		score += instabilityBonus
		factors = append(factors, RiskFactor{
			Source:       SourceEmotion,
			Label:        "emotional-instability",
			Contribution: instabilityBonus,
		})
	}

	return clamp(score), factors
}

// scoreContext scores the session-context channel: crisis history, marathon
// sessions, and sessions already flagged as crisis-type.
func scoreContext(c SessionContext) (float64, []RiskFactor) {
	var score float64
	var factors []RiskFactor

	if c.PriorCrisisCount > 0 {
		pts := float64(c.PriorCrisisCount) * priorCrisisPoints
		if pts > priorCrisisCap {
			pts = priorCrisisCap
		}
		score += pts
		factors = append(factors, RiskFactor{
			Source:       SourceContext,
			Label:        fmt.Sprintf("prior-crises: %d", c.PriorCrisisCount),
			Contribution: pts,
		})
	}
	if c.DurationMinutes > 90 {
		score += longSessionPoints
		factors = append(factors, RiskFactor{
			Source:       SourceContext,
			Label:        "extended-session",
			Contribution: longSessionPoints,
		})
	}
	if strings.EqualFold(c.SessionType, "crisis") {
		score += crisisSessionPoints
		factors = append(factors, RiskFactor{
			Source:       SourceContext,
			Label:        "crisis-session",
			Contribution: crisisSessionPoints,
		})
	}

	return clamp(score), factors
}

// protectiveFactors collects signals that reduce the effective score:
// supportive presence, safety-plan engagement, and future-oriented language.
func protectiveFactors(input AssessmentInput) []string {
	var out []string
	if input.Context.SupportPresent {
		out = append(out, "supportive-contact-present")
	}
	if input.Context.SafetyPlanEngaged {
		out = append(out, "safety-plan-engaged")
	}
	if input.Text != nil {
		for _, re := range futureOrientedPatterns {
			if re.MatchString(*input.Text) {
				out = append(out, "future-oriented-language")
				break
			}
		}
	}
	return out
}
