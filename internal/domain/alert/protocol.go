package alert

import (
	"time"

	"github.com/mindwell/crisis/pkg/risk"
)

// Protocol is one row of the escalation protocol table: how fast the first
// intervention must be attempted, which interventions run, and how often the
// alert is monitored while open. MaxResponse is an SLA for the first dispatch
// of the top-priority intervention, not the full cascade.
type Protocol struct {
	Level              risk.CrisisLevel        `json:"level"`
	Override           bool                    `json:"override"`
	MaxResponse        time.Duration           `json:"max_response"`
	Interventions      []risk.InterventionType `json:"interventions"`
	MonitoringCadence  string                  `json:"monitoring_cadence"`
	MonitoringInterval time.Duration           `json:"monitoring_interval"`
}

// Interval used for "continuous" monitoring ticks.
const continuousInterval = 5 * time.Minute

var protocolTable = []Protocol{
	{
		Level:              risk.LevelLow,
		MaxResponse:        time.Hour,
		Interventions:      []risk.InterventionType{risk.InterventionCheckIn},
		MonitoringCadence:  "daily",
		MonitoringInterval: 24 * time.Hour,
	},
	{
		Level:              risk.LevelMedium,
		MaxResponse:        30 * time.Minute,
		Interventions:      []risk.InterventionType{risk.InterventionCheckIn, risk.InterventionPeerSupport},
		MonitoringCadence:  "every-4-hours",
		MonitoringInterval: 4 * time.Hour,
	},
	{
		Level:              risk.LevelHigh,
		MaxResponse:        10 * time.Minute,
		Interventions:      []risk.InterventionType{risk.InterventionCounselor, risk.InterventionTherapistAlert},
		MonitoringCadence:  "hourly",
		MonitoringInterval: time.Hour,
	},
	{
		Level:              risk.LevelCritical,
		MaxResponse:        3 * time.Minute,
		Interventions:      []risk.InterventionType{risk.InterventionCounselor, risk.InterventionEmergencyContacts, risk.InterventionSafetyPlan},
		MonitoringCadence:  "continuous",
		MonitoringInterval: continuousInterval,
	},
	{
		Level:              risk.LevelCritical,
		Override:           true,
		MaxResponse:        time.Minute,
		Interventions:      []risk.InterventionType{risk.InterventionEmergencyServices, risk.InterventionEmergencyContacts},
		MonitoringCadence:  "continuous",
		MonitoringInterval: continuousInterval,
	},
}

// ProtocolFor returns the protocol row for a level. An active severity
// override at Critical selects the tighter emergency-services row. Levels
// below Low have no protocol and return false.
func ProtocolFor(level risk.CrisisLevel, override bool) (Protocol, bool) {
	for _, p := range protocolTable {
		if p.Level == level && p.Override == (override && level == risk.LevelCritical) {
			return p, true
		}
	}
	return Protocol{}, false
}
