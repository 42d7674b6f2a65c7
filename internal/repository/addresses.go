package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/shopmart-system/internal/model"
)

// CreateAddress создаёт адрес доставки пользователя.
func (r *PostgresRepository) CreateAddress(ctx context.Context, a *model.Address) (*model.Address, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO addresses (user_id, line1, city, region, postal_code, country)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		a.UserID, a.Line1, a.City, a.Region, a.PostalCode, a.Country,
	)

	created := *a
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, a.UserID)
		}
		return nil, fmt.Errorf("create address: %w", err)
	}

	return &created, nil
}

// GetAddressByID возвращает адрес по идентификатору.
func (r *PostgresRepository) GetAddressByID(ctx context.Context, id int64) (*model.Address, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, line1, city, region, postal_code, country, created_at
		 FROM addresses WHERE id = $1`,
		id,
	)

	var a model.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Line1, &a.City, &a.Region, &a.PostalCode, &a.Country, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrAddressNotFound, id)
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return &a, nil
}

// ListAddressesByUser возвращает адреса пользователя.
func (r *PostgresRepository) ListAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, line1, city, region, postal_code, country, created_at
		 FROM addresses
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select addresses: %w", err)
	}
	defer rows.Close()

	var res []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Line1, &a.City, &a.Region, &a.PostalCode, &a.Country, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddressUpdate описывает частичное обновление адреса: nil-поля не меняются.
type AddressUpdate struct {
	Line1      *string
	City       *string
	Region     *string
	PostalCode *string
	Country    *string
}

// UpdateAddress частично обновляет адрес.
func (r *PostgresRepository) UpdateAddress(ctx context.Context, id int64, upd AddressUpdate) (*model.Address, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE addresses
		 SET line1 = COALESCE($2, line1),
		     city = COALESCE($3, city),
		     region = COALESCE($4, region),
		     postal_code = COALESCE($5, postal_code),
		     country = COALESCE($6, country)
		 WHERE id = $1
		 RETURNING id, user_id, line1, city, region, postal_code, country, created_at`,
		id, upd.Line1, upd.City, upd.Region, upd.PostalCode, upd.Country,
	)

	var a model.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Line1, &a.City, &a.Region, &a.PostalCode, &a.Country, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrAddressNotFound, id)
		}
		return nil, fmt.Errorf("update address: %w", err)
	}

	return &a, nil
}

// DeleteAddress удаляет адрес. Исторические заказы хранят снимок адреса строкой
// и при удалении не затрагиваются.
func (r *PostgresRepository) DeleteAddress(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrAddressNotFound, id)
	}
	return nil
}
