package contact

import (
	"time"

	"github.com/google/uuid"
)

// EmergencyContact maps to the emergency_contact table. Contacts are tried
// in priority order (1 = first) and only ever dispatched with consent.
type EmergencyContact struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	Name             string    `db:"name" json:"name"`
	Relationship     *string   `db:"relationship" json:"relationship,omitempty"`
	Phone            *string   `db:"phone" json:"phone,omitempty"`
	Email            *string   `db:"email" json:"email,omitempty"`
	Priority         int       `db:"priority" json:"priority"`
	ConsentToContact bool      `db:"consent_to_contact" json:"consent_to_contact"`
	Available247     bool      `db:"available_247" json:"available_247"`
	PreferredChannel string    `db:"preferred_channel" json:"preferred_channel"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Address returns the destination for the contact's preferred channel.
func (c *EmergencyContact) Address() string {
	if c.PreferredChannel == "email" && c.Email != nil {
		return *c.Email
	}
	if c.Phone != nil {
		return *c.Phone
	}
	if c.Email != nil {
		return *c.Email
	}
	return ""
}
