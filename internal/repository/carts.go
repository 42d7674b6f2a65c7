package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/shopmart-system/internal/model"
)

// AddCartItem добавляет товар в корзину пользователя. Если позиция уже есть,
// количество суммируется.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 RETURNING id, user_id, product_id, quantity, added_at`,
		userID, productID, quantity,
	)

	var item model.CartItem
	err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return &item, nil
}

// UpdateCartItemQuantity устанавливает количество позиции корзины.
func (r *PostgresRepository) UpdateCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE cart_items
		 SET quantity = $3
		 WHERE user_id = $1 AND product_id = $2
		 RETURNING id, user_id, product_id, quantity, added_at`,
		userID, productID, quantity,
	)

	var item model.CartItem
	err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d product %d", ErrCartItemNotFound, userID, productID)
	}

	return &item, nil
}

// RemoveCartItem удаляет позицию корзины.
func (r *PostgresRepository) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %d product %d", ErrCartItemNotFound, userID, productID)
	}
	return nil
}

// GetCartItems возвращает позиции корзины пользователя вместе с текущей
// ценой товара из каталога.
func (r *PostgresRepository) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.user_id, c.product_id, c.quantity, p.price, c.added_at
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1
		 ORDER BY c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var res []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.Price, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		res = append(res, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ClearCart удаляет все позиции корзины пользователя.
func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
