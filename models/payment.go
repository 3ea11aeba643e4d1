package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefused  PaymentStatus = "refused"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCash     PaymentMethod = "cash"
	PaymentOther    PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentTransfer, PaymentCash, PaymentOther:
		return true
	}
	return false
}

// MaxPaymentAmountCents caps amounts at ten digits, two of them decimals.
const MaxPaymentAmountCents int64 = 9_999_999_999

type Payment struct {
	ID          int           `json:"id" db:"id"`
	Reference   uuid.UUID     `json:"reference" db:"reference"`
	PlayerID    int           `json:"player_id" db:"player_id"`
	AmountCents int64         `json:"amount_cents" db:"amount_cents"`
	Method      PaymentMethod `json:"method" db:"method"`
	Status      PaymentStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
