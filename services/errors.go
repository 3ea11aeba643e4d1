package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// ErrValidation marks malformed input. Handlers answer it with 400.
	ErrValidation = errors.New("validation failed")

	// Конфликты
	ErrDuplicateName         = errors.New("team name is already in use")
	ErrDuplicateMembership   = errors.New("player is already a member of this team")
	ErrDuplicateRegistration = errors.New("team is already registered for this tournament")
	ErrIdentityConflict      = errors.New("identity is linked to a different external account")
	ErrEmailTaken            = errors.New("email is already taken")
	ErrProtectedReference    = errors.New("record is referenced by protected dependents")

	// Жизненный цикл
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTournamentNotOpen  = errors.New("tournament is not open")
	ErrCapacityExceeded   = errors.New("tournament is full")
	ErrTeamNotRegistered  = errors.New("team is not registered for this tournament")
	ErrMatchNotInPlay     = errors.New("score can only be recorded for a match in progress or finished")
	ErrMatchFinished      = errors.New("match is already finished")
	ErrUploadsDisabled    = errors.New("file uploads are not configured")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSameTeam           = fmt.Errorf("%w: a match needs two different teams", ErrValidation)

	// Роли
	ErrRoleMismatch   = errors.New("requested role does not match the identity role")
	ErrNotAPlayer     = errors.New("identity does not have a player profile")
	ErrNotAReferee    = errors.New("identity does not have a referee profile")
	ErrNotAnOrganizer = errors.New("identity does not have an organizer profile")

	// Ошибки, специфичные для сущностей
	ErrIdentityNotFound   = fmt.Errorf("identity %w", ErrNotFound)
	ErrProfileNotFound    = fmt.Errorf("role profile %w", ErrNotFound)
	ErrTeamNotFound       = fmt.Errorf("team %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("team membership %w", ErrNotFound)
	ErrTournamentNotFound = fmt.Errorf("tournament %w", ErrNotFound)
	ErrMatchNotFound      = fmt.Errorf("match %w", ErrNotFound)
	ErrPaymentNotFound    = fmt.Errorf("payment %w", ErrNotFound)
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
