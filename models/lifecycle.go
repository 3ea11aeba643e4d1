package models

// Lifecycle events accepted by the status machines.
type TournamentEvent string

const (
	TournamentStart  TournamentEvent = "start"
	TournamentFinish TournamentEvent = "finish"
	TournamentCancel TournamentEvent = "cancel"
)

type MatchEvent string

const (
	MatchStart      MatchEvent = "start"
	MatchFinish     MatchEvent = "finish"
	MatchCancel     MatchEvent = "cancel"
	MatchPostpone   MatchEvent = "postpone"
	MatchReschedule MatchEvent = "reschedule"
)

type PaymentEvent string

const (
	PaymentMarkPaid     PaymentEvent = "paid"
	PaymentMarkRefused  PaymentEvent = "refused"
	PaymentMarkRefunded PaymentEvent = "refunded"
)

func (e TournamentEvent) Valid() bool {
	switch e {
	case TournamentStart, TournamentFinish, TournamentCancel:
		return true
	}
	return false
}

func (e MatchEvent) Valid() bool {
	switch e {
	case MatchStart, MatchFinish, MatchCancel, MatchPostpone, MatchReschedule:
		return true
	}
	return false
}

type tournamentEdge struct {
	from  TournamentStatus
	event TournamentEvent
}

type matchEdge struct {
	from  MatchStatus
	event MatchEvent
}

type paymentEdge struct {
	from  PaymentStatus
	event PaymentEvent
}

var tournamentTransitions = map[tournamentEdge]TournamentStatus{
	{TournamentPlanned, TournamentStart}:     TournamentInProgress,
	{TournamentPlanned, TournamentCancel}:    TournamentCancelled,
	{TournamentInProgress, TournamentFinish}: TournamentFinished,
	{TournamentInProgress, TournamentCancel}: TournamentCancelled,
}

var matchTransitions = map[matchEdge]MatchStatus{
	{MatchPlanned, MatchStart}:        MatchInProgress,
	{MatchPlanned, MatchCancel}:       MatchCancelled,
	{MatchPlanned, MatchPostpone}:     MatchPostponed,
	{MatchPostponed, MatchReschedule}: MatchPlanned,
	{MatchInProgress, MatchFinish}:    MatchFinished,
	{MatchInProgress, MatchCancel}:    MatchCancelled,
}

var paymentTransitions = map[paymentEdge]PaymentStatus{
	{PaymentPending, PaymentMarkPaid}:    PaymentPaid,
	{PaymentPending, PaymentMarkRefused}: PaymentRefused,
	{PaymentPaid, PaymentMarkRefunded}:   PaymentRefunded,
}

// NextTournamentStatus looks up the target of event applied in status from.
func NextTournamentStatus(from TournamentStatus, event TournamentEvent) (TournamentStatus, bool) {
	to, ok := tournamentTransitions[tournamentEdge{from, event}]
	return to, ok
}

func NextMatchStatus(from MatchStatus, event MatchEvent) (MatchStatus, bool) {
	to, ok := matchTransitions[matchEdge{from, event}]
	return to, ok
}

func NextPaymentStatus(from PaymentStatus, event PaymentEvent) (PaymentStatus, bool) {
	to, ok := paymentTransitions[paymentEdge{from, event}]
	return to, ok
}

func (s TournamentStatus) Terminal() bool {
	return s == TournamentFinished || s == TournamentCancelled
}

func (s MatchStatus) Terminal() bool {
	return s == MatchFinished || s == MatchCancelled
}
