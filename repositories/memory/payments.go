package memory

import (
	"context"
	"sort"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type paymentRepository struct {
	st    *state
	clock clock.Clock
}

func (r *paymentRepository) Create(_ context.Context, p *models.Payment) error {
	if !r.st.hasProfile(p.PlayerID, models.RolePlayer) {
		return repositories.ErrPaymentPlayerInvalid
	}

	r.st.lastPaymentID++
	p.ID = r.st.lastPaymentID
	p.CreatedAt = r.clock.Now()
	r.st.payments[p.ID] = *p
	return nil
}

func (r *paymentRepository) GetByID(_ context.Context, id int) (*models.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *paymentRepository) ListByPlayer(_ context.Context, playerID int) ([]models.Payment, error) {
	payments := make([]models.Payment, 0)
	for _, p := range r.st.payments {
		if p.PlayerID == playerID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].CreatedAt.After(payments[j].CreatedAt)
		}
		return payments[i].ID > payments[j].ID
	})
	return payments, nil
}

func (r *paymentRepository) UpdateStatus(_ context.Context, id int, from, to models.PaymentStatus) error {
	p, ok := r.st.payments[id]
	if !ok || p.Status != from {
		return repositories.ErrStaleStatus
	}
	p.Status = to
	r.st.payments[id] = p
	return nil
}
