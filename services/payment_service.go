package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-core/metrics"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/google/uuid"
)

type RecordPaymentInput struct {
	PlayerID    int                  `json:"-"`
	AmountCents int64                `json:"amount_cents"`
	Method      models.PaymentMethod `json:"method"`
}

type PaymentService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewPaymentService(store repositories.Store, logger *slog.Logger) *PaymentService {
	return &PaymentService{store: store, logger: logger}
}

// Record books a pending payment for a player under a fresh reference.
func (s *PaymentService) Record(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	if input.AmountCents < 0 {
		return nil, validationError("amount must not be negative")
	}
	if input.AmountCents > models.MaxPaymentAmountCents {
		return nil, validationError("amount exceeds %d cents", models.MaxPaymentAmountCents)
	}
	if !input.Method.Valid() {
		return nil, validationError("unknown payment method %q", input.Method)
	}

	payment := &models.Payment{
		Reference:   uuid.New(),
		PlayerID:    input.PlayerID,
		AmountCents: input.AmountCents,
		Method:      input.Method,
		Status:      models.PaymentPending,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := requireProfile(ctx, repos, input.PlayerID, models.RolePlayer, ErrNotAPlayer); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			if errors.Is(err, repositories.ErrPaymentPlayerInvalid) {
				return fmt.Errorf("%w: identity %d", ErrNotAPlayer, input.PlayerID)
			}
			return fmt.Errorf("failed to record payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsRecorded.WithLabelValues(string(payment.Method)).Inc()
	s.logger.InfoContext(ctx, "payment recorded",
		slog.Int("payment_id", payment.ID),
		slog.String("reference", payment.Reference.String()),
		slog.Int("player_id", payment.PlayerID),
		slog.Int64("amount_cents", payment.AmountCents),
	)
	return payment, nil
}

func (s *PaymentService) MarkPaid(ctx context.Context, id int) (*models.Payment, error) {
	return s.transition(ctx, id, models.PaymentMarkPaid)
}

func (s *PaymentService) MarkRefused(ctx context.Context, id int) (*models.Payment, error) {
	return s.transition(ctx, id, models.PaymentMarkRefused)
}

func (s *PaymentService) MarkRefunded(ctx context.Context, id int) (*models.Payment, error) {
	return s.transition(ctx, id, models.PaymentMarkRefunded)
}

func (s *PaymentService) transition(ctx context.Context, id int, event models.PaymentEvent) (*models.Payment, error) {
	var payment *models.Payment
	var from models.PaymentStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		payment, err = getPayment(ctx, repos, id)
		if err != nil {
			return err
		}
		from = payment.Status

		to, ok := models.NextPaymentStatus(from, event)
		if !ok {
			return fmt.Errorf("%w: payment %d cannot become %s from %s", ErrInvalidTransition, id, event, from)
		}
		if err := repos.Payments.UpdateStatus(ctx, id, from, to); err != nil {
			if errors.Is(err, repositories.ErrStaleStatus) {
				return fmt.Errorf("%w: payment %d %s -> %s: status changed concurrently", ErrInvalidTransition, id, from, to)
			}
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		payment.Status = to
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			metrics.RejectedTransitions.WithLabelValues("payment").Inc()
		}
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues("payment", string(from), string(payment.Status)).Inc()
	s.logger.InfoContext(ctx, "payment status changed",
		slog.Int("payment_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(payment.Status)),
	)
	return payment, nil
}

func (s *PaymentService) Get(ctx context.Context, id int) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		payment, err = getPayment(ctx, repos, id)
		return err
	})
	return payment, err
}

func (s *PaymentService) ListByPlayer(ctx context.Context, playerID int) ([]models.Payment, error) {
	var list []models.Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		list, err = repos.Payments.ListByPlayer(ctx, playerID)
		return err
	})
	return list, err
}

func getPayment(ctx context.Context, repos repositories.Repositories, id int) (*models.Payment, error) {
	p, err := repos.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPaymentNotFound, id)
		}
		return nil, fmt.Errorf("failed to load payment %d: %w", id, err)
	}
	return p, nil
}
