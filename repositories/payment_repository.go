package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentPlayerInvalid = errors.New("payment must reference a player profile")
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id int) (*models.Payment, error)
	ListByPlayer(ctx context.Context, playerID int) ([]models.Payment, error)
	UpdateStatus(ctx context.Context, id int, from, to models.PaymentStatus) error
}

type postgresPaymentRepository struct {
	db SQLExecutor
}

func NewPostgresPaymentRepository(db SQLExecutor) PaymentRepository {
	return &postgresPaymentRepository{db: db}
}

const paymentColumns = `id, reference, player_id, amount_cents, method, status, created_at`

func (r *postgresPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (reference, player_id, amount_cents, method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.Reference, p.PlayerID, p.AmountCents, p.Method, p.Status,
	).Scan(&p.ID, &p.CreatedAt)

	return constraintError(err, map[string]error{
		"payments_player_fkey": ErrPaymentPlayerInvalid,
	})
}

func (r *postgresPaymentRepository) GetByID(ctx context.Context, id int) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPaymentRepository) ListByPlayer(ctx context.Context, playerID int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE player_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *postgresPaymentRepository) UpdateStatus(ctx context.Context, id int, from, to models.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrStaleStatus)
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(&p.ID, &p.Reference, &p.PlayerID, &p.AmountCents, &p.Method, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}
