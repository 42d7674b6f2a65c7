package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
)

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

// ListOrders возвращает страницу заказов по фильтру и общее количество.
func (s *Service) ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error) {
	page, limit = normalizePage(page, limit)
	return s.repo.ListOrders(ctx, filter, page, limit)
}

// GetUserOrders возвращает страницу заказов пользователя.
func (s *Service) GetUserOrders(ctx context.Context, userID int64, page, limit int) ([]model.Order, int64, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, 0, err
	}
	return s.ListOrders(ctx, repository.OrderFilter{UserID: &userID}, page, limit)
}

// GetOrderItems возвращает позиции заказа.
func (s *Service) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	if _, err := s.repo.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetOrderItems(ctx, orderID)
}

// UpdateOrder частично обновляет заказ: статус и/или адрес доставки.
func (s *Service) UpdateOrder(ctx context.Context, id int64, newStatus *model.OrderStatus, shippingAddress *string) (*model.Order, error) {
	if newStatus == nil && shippingAddress == nil {
		return nil, ErrNoUpdates
	}
	return s.repo.UpdateOrder(ctx, id, newStatus, shippingAddress)
}

// CancelOrder отменяет заказ с компенсацией побочных эффектов: остаток
// физических товаров восстанавливается на количество из позиций заказа,
// ожидающие комиссии отменяются. Повторная отмена отклоняется проверкой
// статуса до каких-либо записей, поэтому остатки не задваиваются.
func (s *Service) CancelOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.repo.InOrderTx(ctx, id, func(ctx context.Context, tx repository.OrderTx) (*model.Order, error) {
		o := tx.Order()
		if !model.CanCancel(o.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, o.Status, model.OrderStatusCancelled)
		}

		if err := tx.RestoreStock(ctx); err != nil {
			return nil, err
		}
		if err := tx.CancelPendingCommissions(ctx); err != nil {
			return nil, err
		}

		return tx.Finish(ctx, model.OrderStatusCancelled, nil)
	})
}

// ProcessPayment подтверждает оплату заказа: статусы заказа и оплаты
// переводятся в paid, ожидающие комиссии помечаются выплаченными, их суммы
// прибавляются к накопленному заработку получателей. Содержимое платёжного
// подтверждения сервис не интерпретирует, важен лишь факт его получения.
func (s *Service) ProcessPayment(ctx context.Context, id int64, confirmation string) (*model.Order, error) {
	if confirmation == "" {
		return nil, ErrEmptyConfirmation
	}

	return s.repo.InOrderTx(ctx, id, func(ctx context.Context, tx repository.OrderTx) (*model.Order, error) {
		o := tx.Order()
		if o.PaymentStatus == model.PaymentStatusPaid {
			return nil, fmt.Errorf("%w: id %d", repository.ErrOrderAlreadyPaid, o.ID)
		}
		if !model.CanTransition(o.Status, model.OrderStatusPaid) {
			return nil, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, o.Status, model.OrderStatusPaid)
		}

		payouts, err := tx.PayPendingCommissions(ctx)
		if err != nil {
			return nil, err
		}

		// Заработок накапливается только у получателей с профилем
		// дистрибьютора; реферер без профиля получает комиссию записью,
		// но без накопления.
		for _, p := range payouts {
			if err := tx.AccrueEarnings(ctx, p.UserID, p.Amount); err != nil {
				return nil, err
			}
		}

		paid := model.PaymentStatusPaid
		return tx.Finish(ctx, model.OrderStatusPaid, &paid)
	})
}

// CreateCommission создаёт ручное комиссионное начисление дистрибьютору по заказу.
func (s *Service) CreateCommission(ctx context.Context, distributorID, orderID int64, amount decimal.Decimal) (*model.Commission, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidUnitPrice
	}

	d, err := s.repo.GetDistributorByID(ctx, distributorID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rate := decimal.Zero
	if !order.FinalAmount.IsZero() {
		rate = amount.Div(order.FinalAmount).Round(4)
	}

	return s.repo.CreateCommission(ctx, &model.Commission{
		OrderID: order.ID,
		UserID:  d.UserID,
		Level:   1,
		Rate:    rate,
		Amount:  amount,
	})
}

// PayCommission выплачивает отдельную комиссию.
func (s *Service) PayCommission(ctx context.Context, id int64) (*model.Commission, error) {
	return s.repo.PayCommission(ctx, id)
}

// GetDistributorCommissions возвращает комиссионные начисления дистрибьютора.
func (s *Service) GetDistributorCommissions(ctx context.Context, distributorID int64) ([]model.Commission, error) {
	d, err := s.repo.GetDistributorByID(ctx, distributorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCommissionsByUser(ctx, d.UserID)
}

// GetOrderCommissions возвращает комиссионные начисления заказа.
func (s *Service) GetOrderCommissions(ctx context.Context, orderID int64) ([]model.Commission, error) {
	if _, err := s.repo.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListCommissionsByOrder(ctx, orderID)
}
