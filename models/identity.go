package models

import "time"

// Role is the account-level role tag fixed when an identity is created.
type Role string

const (
	RolePlayer        Role = "player"
	RoleOrganizer     Role = "organizer"
	RoleAdministrator Role = "administrator"
	RoleReferee       Role = "referee"
)

func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleOrganizer, RoleAdministrator, RoleReferee:
		return true
	}
	return false
}

// Identity is the canonical account record. Email is stored lower-cased and
// is unique across all identities.
type Identity struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	PasswordHash *string   `json:"-" db:"password_hash"`
	ExternalRef  *string   `json:"external_ref,omitempty" db:"external_ref"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
