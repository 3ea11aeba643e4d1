package models

import "time"

type MatchStatus string

const (
	MatchPlanned    MatchStatus = "planned"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
	MatchCancelled  MatchStatus = "cancelled"
	MatchPostponed  MatchStatus = "postponed"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPlanned, MatchInProgress, MatchFinished, MatchCancelled, MatchPostponed:
		return true
	}
	return false
}

// Match is a scheduled encounter between two teams registered in the same
// tournament.
type Match struct {
	ID              int         `json:"id" db:"id"`
	TournamentID    int         `json:"tournament_id" db:"tournament_id"`
	Name            string      `json:"name" db:"name"`
	ScheduledAt     time.Time   `json:"scheduled_at" db:"scheduled_at"`
	DurationMinutes *int        `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Venue           *string     `json:"venue,omitempty" db:"venue"`
	Team1ID         int         `json:"team1_id" db:"team1_id"`
	Team2ID         int         `json:"team2_id" db:"team2_id"`
	Score1          *int        `json:"score1,omitempty" db:"score1"`
	Score2          *int        `json:"score2,omitempty" db:"score2"`
	Status          MatchStatus `json:"status" db:"status"`
	RefereeID       *int        `json:"referee_id,omitempty" db:"referee_id"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// MatchName returns the display name used when a match is scheduled without
// an explicit one.
func MatchName(team1, team2 string) string {
	return team1 + " vs " + team2
}
