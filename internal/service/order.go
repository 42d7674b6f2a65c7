package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
	"github.com/mmeshcher/shopmart-system/internal/validation"
)

// OrderItemRequest описывает позицию запроса на создание заказа.
// UnitPrice опционален: при отсутствии берётся текущая цена каталога.
type OrderItemRequest struct {
	ProductID int64
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateOrderRequest описывает запрос на создание заказа.
// Адрес доставки задаётся либо идентификатором сохранённого адреса,
// либо произвольной строкой; оба поля могут отсутствовать.
type CreateOrderRequest struct {
	UserID          int64
	Items           []OrderItemRequest
	AddressID       *int64
	ShippingAddress *string
	ReferralCode    string
	PaymentMethod   string
	Notes           string
}

// CreateOrder выполняет полный цикл создания заказа: проверяет вход, находит
// пользователя и адрес, проверяет доступность товаров и остатки, считает
// суммы и комиссии, после чего атомарно сохраняет заказ со всеми побочными
// эффектами. Любая ошибка до или во время сохранения не оставляет следов.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	// Проверки формы запроса — до каких-либо обращений к хранилищу.
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID)
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidUnitPrice, item.ProductID)
		}
	}
	if req.ReferralCode != "" && !validation.IsValidReferralCode(req.ReferralCode) {
		return nil, ErrInvalidReferralCode
	}

	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	shippingAddress, err := s.resolveShippingAddress(ctx, user.ID, req.AddressID, req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	productIDs := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// Пакетная проверка доступности: отсутствие или отключённость любого
	// товара отклоняет заказ целиком.
	for _, item := range req.Items {
		p, ok := products[item.ProductID]
		if !ok || !p.Enabled {
			return nil, fmt.Errorf("%w: product %d", repository.ErrProductUnavailable, item.ProductID)
		}
	}

	// Предварительная проверка остатков; под блокировкой она повторяется
	// в транзакции сохранения.
	required := make(map[int64]int, len(req.Items))
	for _, item := range req.Items {
		required[item.ProductID] += item.Quantity
	}
	for productID, need := range required {
		p := products[productID]
		if p.Type != model.ProductTypePhysical {
			continue
		}
		if p.StockQuantity < need {
			return nil, fmt.Errorf("%w: product %d: available %d, requested %d",
				repository.ErrInsufficientStock, productID, p.StockQuantity, need)
		}
	}

	hasPhysical := false
	totalAmount := decimal.Zero
	items := make([]model.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		p := products[item.ProductID]
		if p.Type == model.ProductTypePhysical {
			hasPhysical = true
		}

		unitPrice := p.Price
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		totalAmount = totalAmount.Add(lineTotal)

		items = append(items, model.OrderItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: lineTotal,
		})
	}

	shippingFee := decimal.Zero
	if hasPhysical {
		shippingFee = s.shippingFee
	}

	// Скидки пока не считаются; поле заведено под будущую промо-логику.
	discount := decimal.Zero
	finalAmount := totalAmount.Add(shippingFee).Sub(discount)

	commissions, err := s.resolveCommissions(ctx, user, req.ReferralCode, totalAmount, finalAmount)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		UserID:          user.ID,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		TotalAmount:     totalAmount,
		ShippingFee:     shippingFee,
		DiscountAmount:  discount,
		FinalAmount:     finalAmount,
		ShippingAddress: shippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}

	return s.repo.CreateOrder(ctx, order, items, commissions)
}

// resolveShippingAddress возвращает денормализованную строку адреса доставки.
// Сохранённый адрес должен принадлежать заказчику.
func (s *Service) resolveShippingAddress(ctx context.Context, userID int64, addressID *int64, freeForm *string) (*string, error) {
	if addressID == nil {
		return freeForm, nil
	}

	addr, err := s.repo.GetAddressByID(ctx, *addressID)
	if err != nil {
		return nil, err
	}
	if addr.UserID != userID {
		return nil, fmt.Errorf("%w: id %d", repository.ErrAddressNotFound, *addressID)
	}

	flat := FlattenAddress(addr)
	return &flat, nil
}

// FlattenAddress сводит адрес в одну строку-снимок для хранения в заказе.
func FlattenAddress(a *model.Address) string {
	parts := make([]string, 0, 4)
	parts = append(parts, a.Line1, a.City)

	regionPart := strings.TrimSpace(a.Region + " " + a.PostalCode)
	if regionPart != "" {
		parts = append(parts, regionPart)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}

	return strings.Join(parts, ", ")
}

// resolveCommissions вычисляет комиссионные начисления заказа.
//
// Если передан реферальный код, начисляется одна комиссия владельцу кода по
// его персональной ставке от итоговой суммы заказа; коды неактивных
// дистрибьюторов комиссию не дают. Без кода выполняется обход реферального
// графа заказчика: пригласившему — первый уровень от суммы товаров,
// пригласившему пригласившего — второй.
func (s *Service) resolveCommissions(ctx context.Context, user *model.User, referralCode string, totalAmount, finalAmount decimal.Decimal) ([]model.Commission, error) {
	if referralCode != "" {
		d, err := s.repo.GetDistributorByCode(ctx, referralCode)
		if err != nil {
			return nil, err
		}
		if d.Status != model.DistributorStatusActive {
			return nil, nil
		}
		return []model.Commission{{
			UserID: d.UserID,
			Level:  1,
			Rate:   d.CommissionRate,
			Amount: finalAmount.Mul(d.CommissionRate),
		}}, nil
	}

	chain, err := s.repo.ReferralChain(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var commissions []model.Commission
	if len(chain) > 0 {
		commissions = append(commissions, model.Commission{
			UserID: chain[0],
			Level:  1,
			Rate:   levelOneRate,
			Amount: totalAmount.Mul(levelOneRate),
		})
	}
	if len(chain) > 1 {
		commissions = append(commissions, model.Commission{
			UserID: chain[1],
			Level:  2,
			Rate:   levelTwoRate,
			Amount: totalAmount.Mul(levelTwoRate),
		})
	}

	return commissions, nil
}

// CheckoutCart оформляет заказ из корзины пользователя по текущим ценам
// каталога и очищает корзину после успешного создания заказа.
func (s *Service) CheckoutCart(ctx context.Context, userID int64, addressID *int64, referralCode, paymentMethod, notes string) (*model.Order, error) {
	cartItems, err := s.repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]OrderItemRequest, 0, len(cartItems))
	for _, ci := range cartItems {
		items = append(items, OrderItemRequest{
			ProductID: ci.ProductID,
			Quantity:  ci.Quantity,
		})
	}

	order, err := s.CreateOrder(ctx, CreateOrderRequest{
		UserID:        userID,
		Items:         items,
		AddressID:     addressID,
		ReferralCode:  referralCode,
		PaymentMethod: paymentMethod,
		Notes:         notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("order %d created, clear cart: %w", order.ID, err)
	}

	return order, nil
}
