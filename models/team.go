package models

import "time"

type Team struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	OrganizerID int       `json:"organizer_id" db:"organizer_id"`
	LogoKey     *string   `json:"-" db:"logo_key"`
	LogoURL     *string   `json:"logo_url,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RoleInTeam представляет роль игрока внутри команды.
type RoleInTeam string

const (
	TeamRoleCaptain    RoleInTeam = "captain"
	TeamRoleMember     RoleInTeam = "member"
	TeamRoleSubstitute RoleInTeam = "substitute"
)

func (r RoleInTeam) Valid() bool {
	switch r {
	case TeamRoleCaptain, TeamRoleMember, TeamRoleSubstitute:
		return true
	}
	return false
}

// TeamMembership links a player profile to a team. Removal only clears
// Active, the row itself is kept.
type TeamMembership struct {
	TeamID     int        `json:"team_id" db:"team_id"`
	PlayerID   int        `json:"player_id" db:"player_id"`
	RoleInTeam RoleInTeam `json:"role_in_team" db:"role_in_team"`
	Active     bool       `json:"active" db:"active"`
	JoinedAt   time.Time  `json:"joined_at" db:"joined_at"`
}
