package counselor

import (
	"time"

	"github.com/google/uuid"
)

// Counselor statuses.
const (
	StatusAvailable = "available"
	StatusBusy      = "busy"
	StatusOffline   = "offline"
)

// CrisisCounselor maps to the crisis_counselor table. CurrentLoad never
// exceeds MaxLoad; assignment flips status to busy at capacity.
type CrisisCounselor struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Status             string    `db:"status" json:"status"`
	CurrentLoad        int       `db:"current_load" json:"current_load"`
	MaxLoad            int       `db:"max_load" json:"max_load"`
	AvgResponseSeconds float64   `db:"avg_response_seconds" json:"avg_response_seconds"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	Email              *string   `db:"email" json:"email,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// PoolStats summarizes the counselor pool.
type PoolStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Busy      int `json:"busy"`
	Offline   int `json:"offline"`
	TotalLoad int `json:"total_load"`
}
