package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/shopmart-system/internal/model"
)

const distributorColumns = `id, user_id, referral_code, commission_rate, total_earnings, status, created_at`

func scanDistributor(row pgx.Row) (*model.Distributor, error) {
	var d model.Distributor
	var status string
	err := row.Scan(&d.ID, &d.UserID, &d.ReferralCode, &d.CommissionRate, &d.TotalEarnings, &status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = model.DistributorStatus(status)
	return &d, nil
}

// CreateDistributor создаёт профиль дистрибьютора для пользователя.
// Профиль единственный на пользователя, реферальный код уникален.
func (r *PostgresRepository) CreateDistributor(ctx context.Context, d *model.Distributor) (*model.Distributor, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO distributors (user_id, referral_code, commission_rate, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+distributorColumns,
		d.UserID, d.ReferralCode, d.CommissionRate, string(d.Status),
	)

	created, err := scanDistributor(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %d", ErrDistributorExists, d.UserID)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, d.UserID)
		}
		return nil, fmt.Errorf("create distributor: %w", err)
	}

	return created, nil
}

// GetDistributorByID возвращает дистрибьютора по идентификатору.
func (r *PostgresRepository) GetDistributorByID(ctx context.Context, id int64) (*model.Distributor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+distributorColumns+` FROM distributors WHERE id = $1`,
		id,
	)

	d, err := scanDistributor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrDistributorNotFound, id)
		}
		return nil, fmt.Errorf("get distributor: %w", err)
	}

	return d, nil
}

// GetDistributorByCode возвращает дистрибьютора по реферальному коду.
func (r *PostgresRepository) GetDistributorByCode(ctx context.Context, code string) (*model.Distributor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+distributorColumns+` FROM distributors WHERE referral_code = $1`,
		code,
	)

	d, err := scanDistributor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", ErrDistributorNotFound, code)
		}
		return nil, fmt.Errorf("get distributor by code: %w", err)
	}

	return d, nil
}

// GetDistributorByUserID возвращает профиль дистрибьютора пользователя.
func (r *PostgresRepository) GetDistributorByUserID(ctx context.Context, userID int64) (*model.Distributor, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+distributorColumns+` FROM distributors WHERE user_id = $1`,
		userID,
	)

	d, err := scanDistributor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", ErrDistributorNotFound, userID)
		}
		return nil, fmt.Errorf("get distributor by user: %w", err)
	}

	return d, nil
}

// UpdateDistributorStatus меняет статус профиля дистрибьютора.
func (r *PostgresRepository) UpdateDistributorStatus(ctx context.Context, id int64, status model.DistributorStatus) (*model.Distributor, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE distributors SET status = $2 WHERE id = $1 RETURNING `+distributorColumns,
		id, string(status),
	)

	d, err := scanDistributor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrDistributorNotFound, id)
		}
		return nil, fmt.Errorf("update distributor status: %w", err)
	}

	return d, nil
}
