package models

import (
	"fmt"
	"time"
)

type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

func (l SkillLevel) Valid() bool {
	switch l {
	case SkillBeginner, SkillIntermediate, SkillAdvanced, SkillExpert:
		return true
	}
	return false
}

const (
	CertificationPending = "pending"
	AccessLevelStandard  = "standard"
)

type PlayerProfile struct {
	SkillLevel SkillLevel `json:"skill_level"`
	Ranking    *int       `json:"ranking,omitempty"`
}

type OrganizerProfile struct {
	OrganizationName string `json:"organization_name"`
	Description      string `json:"description,omitempty"`
}

type AdministratorProfile struct {
	AccessLevel string `json:"access_level"`
}

type RefereeProfile struct {
	Certification string `json:"certification"`
}

// RoleProfile is the per-role extension of an Identity. Exactly one of the
// variant pointers is set and it always matches Role.
type RoleProfile struct {
	IdentityID    int                   `json:"identity_id" db:"identity_id"`
	Role          Role                  `json:"role" db:"role"`
	Player        *PlayerProfile        `json:"player,omitempty" db:"-"`
	Organizer     *OrganizerProfile     `json:"organizer,omitempty" db:"-"`
	Administrator *AdministratorProfile `json:"administrator,omitempty" db:"-"`
	Referee       *RefereeProfile       `json:"referee,omitempty" db:"-"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
}

// Validate checks that exactly one variant is populated and that it is the
// one named by Role.
func (p *RoleProfile) Validate() error {
	set := 0
	var variant Role
	if p.Player != nil {
		set++
		variant = RolePlayer
	}
	if p.Organizer != nil {
		set++
		variant = RoleOrganizer
	}
	if p.Administrator != nil {
		set++
		variant = RoleAdministrator
	}
	if p.Referee != nil {
		set++
		variant = RoleReferee
	}
	if set != 1 {
		return fmt.Errorf("profile must have exactly one variant, got %d", set)
	}
	if variant != p.Role {
		return fmt.Errorf("profile variant %q does not match role %q", variant, p.Role)
	}
	if p.Player != nil && !p.Player.SkillLevel.Valid() {
		return fmt.Errorf("unknown skill level %q", p.Player.SkillLevel)
	}
	return nil
}

// ProfileDefaults carries optional seed values used when a profile is created.
// Zero values fall back to the per-role defaults.
type ProfileDefaults struct {
	SkillLevel       SkillLevel
	Ranking          *int
	OrganizationName string
	Description      string
	Certification    string
	AccessLevel      string
}

// NewRoleProfile builds the profile variant for role, seeding empty fields
// from defaults and, for organizers, from the identity display name.
func NewRoleProfile(identity *Identity, role Role, defaults ProfileDefaults) *RoleProfile {
	p := &RoleProfile{IdentityID: identity.ID, Role: role}
	switch role {
	case RolePlayer:
		level := defaults.SkillLevel
		if level == "" {
			level = SkillBeginner
		}
		p.Player = &PlayerProfile{SkillLevel: level, Ranking: defaults.Ranking}
	case RoleOrganizer:
		name := defaults.OrganizationName
		if name == "" {
			name = identity.DisplayName
		}
		p.Organizer = &OrganizerProfile{OrganizationName: name, Description: defaults.Description}
	case RoleAdministrator:
		level := defaults.AccessLevel
		if level == "" {
			level = AccessLevelStandard
		}
		p.Administrator = &AdministratorProfile{AccessLevel: level}
	case RoleReferee:
		cert := defaults.Certification
		if cert == "" {
			cert = CertificationPending
		}
		p.Referee = &RefereeProfile{Certification: cert}
	}
	return p
}
