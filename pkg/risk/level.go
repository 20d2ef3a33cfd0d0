// Package risk defines the shared crisis vocabulary: severity levels,
// intervention types, and trigger sources used across the engine.
package risk

import "fmt"

// CrisisLevel is the ordered severity classification driving SLA targets and
// intervention choice. Higher values are strictly more severe.
type CrisisLevel int

const (
	LevelNone CrisisLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l CrisisLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// MarshalJSON encodes the level as its string name.
func (l CrisisLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes a level from its string name.
func (l *CrisisLevel) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name to a CrisisLevel.
func ParseLevel(s string) (CrisisLevel, error) {
	switch s {
	case "none":
		return LevelNone, nil
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	case "critical":
		return LevelCritical, nil
	default:
		return LevelNone, fmt.Errorf("unknown crisis level: %q", s)
	}
}

// Next returns the next level up. Critical stays Critical.
func (l CrisisLevel) Next() CrisisLevel {
	if l >= LevelCritical {
		return LevelCritical
	}
	return l + 1
}

// InterventionType identifies one kind of dispatched crisis action.
type InterventionType string

const (
	InterventionCheckIn           InterventionType = "automated-check-in"
	InterventionPeerSupport       InterventionType = "peer-support"
	InterventionCounselor         InterventionType = "counselor-assignment"
	InterventionTherapistAlert    InterventionType = "therapist-alert"
	InterventionEmergencyContacts InterventionType = "emergency-contact-cascade"
	InterventionSafetyPlan        InterventionType = "safety-plan-activation"
	InterventionEmergencyServices InterventionType = "emergency-services-handoff"
)

// TriggerSource identifies which channel raised an alert.
type TriggerSource string

const (
	TriggerBehavioralSignal TriggerSource = "behavioral-signal"
	TriggerSelfReport       TriggerSource = "self-report"
	TriggerThirdParty       TriggerSource = "third-party-report"
)
