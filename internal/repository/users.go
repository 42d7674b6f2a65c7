package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/shopmart-system/internal/model"
)

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, phone, role, referrer_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		u.Email, u.FullName, u.Phone, string(u.Role), u.ReferrerID,
	)

	created := *u
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: referrer", ErrUserNotFound)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &created, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name, phone, role, referrer_id, created_at
		 FROM users WHERE id = $1`,
		id,
	)

	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &role, &u.ReferrerID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// UpdateUser частично обновляет пользователя: меняются только переданные поля.
func (r *PostgresRepository) UpdateUser(ctx context.Context, id int64, fullName, phone *string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET full_name = COALESCE($2, full_name),
		     phone = COALESCE($3, phone)
		 WHERE id = $1
		 RETURNING id, email, full_name, phone, role, referrer_id, created_at`,
		id, fullName, phone,
	)

	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &role, &u.ReferrerID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// ListUsers возвращает страницу пользователей и общее количество.
func (r *PostgresRepository) ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, email, full_name, phone, role, referrer_id, created_at
		 FROM users
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &role, &u.ReferrerID, &u.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return users, total, nil
}

// ReferralChain возвращает до двух идентификаторов пользователей вверх по
// реферальной цепочке: сначала пригласивший, затем пригласивший пригласившего.
// Обход выполняется по актуальному состоянию графа и ограничен глубиной два.
func (r *PostgresRepository) ReferralChain(ctx context.Context, userID int64) ([]int64, error) {
	var chain []int64

	current := userID
	for level := 0; level < 2; level++ {
		var referrerID *int64
		err := r.pool.QueryRow(ctx,
			`SELECT referrer_id FROM users WHERE id = $1`,
			current,
		).Scan(&referrerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if level == 0 {
					return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
				}
				break
			}
			return nil, fmt.Errorf("get referrer: %w", err)
		}

		if referrerID == nil {
			break
		}

		chain = append(chain, *referrerID)
		current = *referrerID
	}

	return chain, nil
}
