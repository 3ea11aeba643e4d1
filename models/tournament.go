package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие CHECK в БД.
type TournamentStatus string

const (
	TournamentPlanned    TournamentStatus = "planned"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentFinished   TournamentStatus = "finished"
	TournamentCancelled  TournamentStatus = "cancelled"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentPlanned, TournamentInProgress, TournamentFinished, TournamentCancelled:
		return true
	}
	return false
}

type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
	FormatMixed             TournamentFormat = "mixed"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatRoundRobin, FormatMixed:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID            int              `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Description   string           `json:"description,omitempty" db:"description"`
	Rules         string           `json:"rules,omitempty" db:"rules"`
	Format        TournamentFormat `json:"format" db:"format"`
	StartTime     time.Time        `json:"start_time" db:"start_time"`
	EndTime       time.Time        `json:"end_time" db:"end_time"`
	EntryFeeCents int64            `json:"entry_fee_cents" db:"entry_fee_cents"`
	Status        TournamentStatus `json:"status" db:"status"`
	OrganizerID   int              `json:"organizer_id" db:"organizer_id"`
	MaxTeams      int              `json:"max_teams" db:"max_teams"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`

	RegisteredTeams int `json:"registered_teams" db:"-"`
}

type TournamentRegistration struct {
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}
