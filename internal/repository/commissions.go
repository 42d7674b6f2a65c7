package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/shopmart-system/internal/model"
)

const commissionColumns = `id, order_id, user_id, level, rate, amount, status, paid_at, created_at`

func scanCommission(row pgx.Row) (*model.Commission, error) {
	var c model.Commission
	var status string
	err := row.Scan(&c.ID, &c.OrderID, &c.UserID, &c.Level, &c.Rate, &c.Amount, &status, &c.PaidAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.CommissionStatus(status)
	return &c, nil
}

// CreateCommission создаёт отдельное комиссионное начисление по заказу.
// Для пары (заказ, получатель) допускается не больше одной записи.
func (r *PostgresRepository) CreateCommission(ctx context.Context, c *model.Commission) (*model.Commission, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO commissions (order_id, user_id, level, rate, amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+commissionColumns,
		c.OrderID, c.UserID, c.Level, c.Rate, c.Amount, string(model.CommissionStatusPending),
	)

	created, err := scanCommission(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: order %d user %d", ErrCommissionExists, c.OrderID, c.UserID)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, c.OrderID)
		}
		return nil, fmt.Errorf("create commission: %w", err)
	}

	return created, nil
}

// GetCommissionByID возвращает комиссионное начисление по идентификатору.
func (r *PostgresRepository) GetCommissionByID(ctx context.Context, id int64) (*model.Commission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE id = $1`,
		id,
	)

	c, err := scanCommission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCommissionNotFound, id)
		}
		return nil, fmt.Errorf("get commission: %w", err)
	}

	return c, nil
}

// PayCommission выплачивает отдельную комиссию: статус переводится в paid,
// проставляется paid_at, сумма прибавляется к заработку дистрибьютора.
// Повторная выплата и выплата отменённой комиссии отклоняются.
func (r *PostgresRepository) PayCommission(ctx context.Context, id int64) (*model.Commission, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM commissions WHERE id = $1 FOR UPDATE`, id).Scan(&currentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCommissionNotFound, id)
		}
		return nil, fmt.Errorf("lock commission: %w", err)
	}

	if model.CommissionStatus(currentStatus) != model.CommissionStatusPending {
		return nil, fmt.Errorf("%w: id %d, status %s", ErrCommissionNotPending, id, currentStatus)
	}

	row := tx.QueryRow(ctx,
		`UPDATE commissions SET status = $2, paid_at = now() WHERE id = $1 RETURNING `+commissionColumns,
		id, string(model.CommissionStatusPaid),
	)

	c, err := scanCommission(row)
	if err != nil {
		return nil, fmt.Errorf("pay commission: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE distributors SET total_earnings = total_earnings + $2 WHERE user_id = $1`,
		c.UserID, c.Amount,
	)
	if err != nil {
		return nil, fmt.Errorf("accumulate earnings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return c, nil
}

// ListCommissionsByOrder возвращает комиссионные начисления заказа.
func (r *PostgresRepository) ListCommissionsByOrder(ctx context.Context, orderID int64) ([]model.Commission, error) {
	return r.listCommissions(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE order_id = $1 ORDER BY level, id`,
		orderID,
	)
}

// ListCommissionsByUser возвращает комиссионные начисления получателя.
func (r *PostgresRepository) ListCommissionsByUser(ctx context.Context, userID int64) ([]model.Commission, error) {
	return r.listCommissions(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

func (r *PostgresRepository) listCommissions(ctx context.Context, query string, arg any) ([]model.Commission, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select commissions: %w", err)
	}
	defer rows.Close()

	var res []model.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
