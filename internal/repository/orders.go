package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, status, payment_status, total_amount, shipping_fee, discount_amount, final_amount, shipping_address, payment_method, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, paymentStatus string
	err := row.Scan(&o.ID, &o.UserID, &status, &paymentStatus, &o.TotalAmount, &o.ShippingFee,
		&o.DiscountAmount, &o.FinalAmount, &o.ShippingAddress, &o.PaymentMethod, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	return &o, nil
}

// CreateOrder атомарно сохраняет заказ: строку заказа, его позиции, списание
// остатков по физическим товарам и комиссионные начисления. Строки товаров
// блокируются FOR UPDATE в порядке возрастания идентификаторов, доступность и
// остаток перепроверяются уже под блокировкой. Любая ошибка откатывает всё.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order, items []model.OrderItem, commissions []model.Commission) (*model.Order, error) {
	var created *model.Order

	err := r.withRetry(ctx, func() error {
		var err error
		created, err = r.createOrderTx(ctx, order, items, commissions)
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PostgresRepository) createOrderTx(ctx context.Context, order *model.Order, items []model.OrderItem, commissions []model.Commission) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Суммарное требуемое количество по каждому товару (позиций с одним
	// товаром может быть несколько).
	required := make(map[int64]int, len(items))
	for _, item := range items {
		required[item.ProductID] += item.Quantity
	}

	productIDs := make([]int64, 0, len(required))
	for id := range required {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, productID := range productIDs {
		var stock int
		var enabled bool
		var productType string
		err := tx.QueryRow(ctx,
			`SELECT stock_quantity, enabled, product_type FROM products WHERE id = $1 FOR UPDATE`,
			productID,
		).Scan(&stock, &enabled, &productType)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, productID)
			}
			return nil, fmt.Errorf("lock product: %w", err)
		}

		if !enabled {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, productID)
		}

		if model.ProductType(productType) != model.ProductTypePhysical {
			continue
		}

		need := required[productID]
		if stock < need {
			return nil, fmt.Errorf("%w: product %d: available %d, requested %d",
				ErrInsufficientStock, productID, stock, need)
		}

		_, err = tx.Exec(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id = $1`,
			productID, need,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, payment_status, total_amount, shipping_fee, discount_amount, final_amount, shipping_address, payment_method, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+orderColumns,
		order.UserID, string(order.Status), string(order.PaymentStatus),
		order.TotalAmount, order.ShippingFee, order.DiscountAmount, order.FinalAmount,
		order.ShippingAddress, order.PaymentMethod, order.Notes,
	)

	created, err := scanOrder(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, order.UserID)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
			 VALUES ($1, $2, $3, $4, $5)`,
			created.ID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, c := range commissions {
		_, err := tx.Exec(ctx,
			`INSERT INTO commissions (order_id, user_id, level, rate, amount, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			created.ID, c.UserID, c.Level, c.Rate, c.Amount, string(model.CommissionStatusPending),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: order %d user %d", ErrCommissionExists, created.ID, c.UserID)
			}
			return nil, fmt.Errorf("insert commission: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

// OrderFilter задаёт фильтр списка заказов: nil-поля не ограничивают выборку.
type OrderFilter struct {
	UserID *int64
	Status *model.OrderStatus
}

// ListOrders возвращает страницу заказов по фильтру и общее количество подходящих.
func (r *PostgresRepository) ListOrders(ctx context.Context, filter OrderFilter, page, limit int) ([]model.Order, int64, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE ($1::bigint IS NULL OR user_id = $1)
		   AND ($2::text IS NULL OR status = $2)`,
		filter.UserID, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1::bigint IS NULL OR user_id = $1)
		   AND ($2::text IS NULL OR status = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		filter.UserID, status, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// GetOrderItems возвращает позиции заказа.
func (r *PostgresRepository) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, total_price
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var res []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res = append(res, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateOrder частично обновляет заказ: статус (с проверкой по таблице
// переходов) и/или адрес доставки. Выполняется в транзакции, строка заказа
// блокируется на время проверки перехода.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, id int64, newStatus *model.OrderStatus, shippingAddress *string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&currentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	var statusStr *string
	if newStatus != nil {
		if !model.CanTransition(model.OrderStatus(currentStatus), *newStatus) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, *newStatus)
		}
		s := string(*newStatus)
		statusStr = &s
	}

	row := tx.QueryRow(ctx,
		`UPDATE orders
		 SET status = COALESCE($2, status),
		     shipping_address = COALESCE($3, shipping_address),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		id, statusStr, shippingAddress,
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return o, nil
}

// CommissionPayout — получатель и сумма выплаченной комиссии.
type CommissionPayout struct {
	UserID int64
	Amount decimal.Decimal
}

// OrderTx предоставляет шаги компенсации по одному заказу внутри открытой
// транзакции. Заказ заблокирован FOR UPDATE на всё время транзакции, порядок
// шагов выбирает вызывающая сторона.
type OrderTx interface {
	// Order возвращает заказ в состоянии на момент блокировки.
	Order() *model.Order
	// RestoreStock прибавляет количество из позиций заказа к остаткам
	// физических товаров, без ограничения сверху.
	RestoreStock(ctx context.Context) error
	// CancelPendingCommissions отменяет ожидающие комиссии заказа.
	CancelPendingCommissions(ctx context.Context) error
	// PayPendingCommissions помечает ожидающие комиссии выплаченными с
	// отметкой времени и возвращает получателей с суммами.
	PayPendingCommissions(ctx context.Context) ([]CommissionPayout, error)
	// AccrueEarnings прибавляет сумму к накопленному заработку дистрибьютора.
	AccrueEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error
	// Finish записывает итоговые статусы заказа и возвращает обновлённую строку.
	Finish(ctx context.Context, status model.OrderStatus, payment *model.PaymentStatus) (*model.Order, error)
}

type orderTx struct {
	tx    pgx.Tx
	order *model.Order
}

func (t *orderTx) Order() *model.Order { return t.order }

func (t *orderTx) RestoreStock(ctx context.Context) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE products p
		 SET stock_quantity = p.stock_quantity + i.quantity, updated_at = now()
		 FROM order_items i
		 WHERE i.order_id = $1 AND i.product_id = p.id AND p.product_type = $2`,
		t.order.ID, string(model.ProductTypePhysical),
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func (t *orderTx) CancelPendingCommissions(ctx context.Context) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE commissions SET status = $2 WHERE order_id = $1 AND status = $3`,
		t.order.ID, string(model.CommissionStatusCancelled), string(model.CommissionStatusPending),
	)
	if err != nil {
		return fmt.Errorf("cancel commissions: %w", err)
	}
	return nil
}

func (t *orderTx) PayPendingCommissions(ctx context.Context) ([]CommissionPayout, error) {
	rows, err := t.tx.Query(ctx,
		`UPDATE commissions
		 SET status = $2, paid_at = now()
		 WHERE order_id = $1 AND status = $3
		 RETURNING user_id, amount`,
		t.order.ID, string(model.CommissionStatusPaid), string(model.CommissionStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("pay commissions: %w", err)
	}
	defer rows.Close()

	var payouts []CommissionPayout
	for rows.Next() {
		var p CommissionPayout
		if err := rows.Scan(&p.UserID, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan commission payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payouts, nil
}

func (t *orderTx) AccrueEarnings(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE distributors SET total_earnings = total_earnings + $2 WHERE user_id = $1`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("accumulate earnings: %w", err)
	}
	return nil
}

func (t *orderTx) Finish(ctx context.Context, status model.OrderStatus, payment *model.PaymentStatus) (*model.Order, error) {
	var row pgx.Row
	if payment != nil {
		row = t.tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, payment_status = $3, updated_at = now() WHERE id = $1 RETURNING `+orderColumns,
			t.order.ID, string(status), string(*payment),
		)
	} else {
		row = t.tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+orderColumns,
			t.order.ID, string(status),
		)
	}

	o, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return o, nil
}

// InOrderTx блокирует заказ FOR UPDATE и выполняет fn в одной транзакции
// с повтором при сбоях сериализации. Изменения фиксируются только при
// успешном завершении fn.
func (r *PostgresRepository) InOrderTx(ctx context.Context, id int64, fn func(ctx context.Context, tx OrderTx) (*model.Order, error)) (*model.Order, error) {
	var result *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
		o, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
			}
			return fmt.Errorf("lock order: %w", err)
		}

		result, err = fn(ctx, &orderTx{tx: tx, order: o})
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
