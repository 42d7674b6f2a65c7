package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
	"github.com/mmeshcher/shopmart-system/internal/service"
)

type orderItemRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	UserID          int64              `json:"user_id"`
	Items           []orderItemRequest `json:"items"`
	AddressID       *int64             `json:"address_id"`
	ShippingAddress *string            `json:"shipping_address"`
	ReferralCode    string             `json:"referral_code"`
	PaymentMethod   string             `json:"payment_method"`
	Notes           string             `json:"notes"`
}

type orderResponse struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	ShippingAddress *string         `json:"shipping_address,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.TotalAmount,
		ShippingFee:     o.ShippingFee,
		DiscountAmount:  o.DiscountAmount,
		FinalAmount:     o.FinalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt.Format(timeFormat),
		UpdatedAt:       o.UpdatedAt.Format(timeFormat),
	}
}

type orderItemResponse struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type commissionResponse struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Level     int             `json:"level"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	PaidAt    *string         `json:"paid_at,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func toCommissionResponse(c *model.Commission) commissionResponse {
	resp := commissionResponse{
		ID:        c.ID,
		OrderID:   c.OrderID,
		UserID:    c.UserID,
		Level:     c.Level,
		Rate:      c.Rate,
		Amount:    c.Amount,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.Format(timeFormat),
	}
	if c.PaidAt != nil {
		paidAt := c.PaidAt.Format(timeFormat)
		resp.PaidAt = &paidAt
	}
	return resp
}

// CreateOrder оформляет заказ: резервирует остатки и начисляет комиссии
// в одной транзакции.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]service.OrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.OrderItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	o, err := h.service.CreateOrder(r.Context(), service.CreateOrderRequest{
		UserID:          req.UserID,
		Items:           items,
		AddressID:       req.AddressID,
		ShippingAddress: req.ShippingAddress,
		ReferralCode:    req.ReferralCode,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondError(w, err, "create order error", zap.Int64("userID", req.UserID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

type checkoutRequest struct {
	AddressID     *int64 `json:"address_id"`
	ReferralCode  string `json:"referral_code"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

// CheckoutCart оформляет заказ из содержимого корзины пользователя.
func (h *Handler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.CheckoutCart(r.Context(), userID, req.AddressID, req.ReferralCode, req.PaymentMethod, req.Notes)
	if err != nil {
		h.respondError(w, err, "checkout error", zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get order error", zap.Int64("orderID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int64           `json:"total"`
}

// ListOrders возвращает страницу заказов с опциональным фильтром по статусу.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)

	var filter repository.OrderFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.OrderStatus(raw)
		filter.Status = &status
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter, page, limit)
	if err != nil {
		h.respondError(w, err, "list orders error")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderListResponse(orders, total))
}

// GetUserOrders возвращает страницу заказов пользователя.
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	page, limit := pagination(r)

	orders, total, err := h.service.GetUserOrders(r.Context(), userID, page, limit)
	if err != nil {
		h.respondError(w, err, "get user orders error", zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderListResponse(orders, total))
}

func toOrderListResponse(orders []model.Order, total int64) orderListResponse {
	resp := orderListResponse{Orders: make([]orderResponse, 0, len(orders)), Total: total}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}
	return resp
}

// GetOrderItems возвращает позиции заказа.
func (h *Handler) GetOrderItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items, err := h.service.GetOrderItems(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get order items error", zap.Int64("orderID", id))
		return
	}

	resp := make([]orderItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, orderItemResponse{
			ID:         it.ID,
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrderCommissions возвращает комиссионные начисления по заказу.
func (h *Handler) GetOrderCommissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	commissions, err := h.service.GetOrderCommissions(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get order commissions error", zap.Int64("orderID", id))
		return
	}

	resp := make([]commissionResponse, 0, len(commissions))
	for i := range commissions {
		resp = append(resp, toCommissionResponse(&commissions[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateOrderRequest struct {
	Status          *string `json:"status"`
	ShippingAddress *string `json:"shipping_address"`
}

// UpdateOrder меняет статус заказа или адрес доставки.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var status *model.OrderStatus
	if req.Status != nil {
		s := model.OrderStatus(*req.Status)
		status = &s
	}

	o, err := h.service.UpdateOrder(r.Context(), id, status, req.ShippingAddress)
	if err != nil {
		h.respondError(w, err, "update order error", zap.Int64("orderID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// CancelOrder отменяет заказ: возвращает остатки и аннулирует комиссии.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.CancelOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "cancel order error", zap.Int64("orderID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type paymentRequest struct {
	Confirmation string `json:"confirmation"`
}

// ProcessPayment фиксирует оплату заказа и выплачивает комиссии.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.ProcessPayment(r.Context(), id, req.Confirmation)
	if err != nil {
		h.respondError(w, err, "process payment error", zap.Int64("orderID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type createCommissionRequest struct {
	DistributorID int64           `json:"distributor_id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// CreateCommission вручную начисляет комиссию дистрибьютору по заказу.
func (h *Handler) CreateCommission(w http.ResponseWriter, r *http.Request) {
	var req createCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.CreateCommission(r.Context(), req.DistributorID, req.OrderID, req.Amount)
	if err != nil {
		h.respondError(w, err, "create commission error",
			zap.Int64("distributorID", req.DistributorID), zap.Int64("orderID", req.OrderID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toCommissionResponse(c))
}

// PayCommission выплачивает комиссию и увеличивает накопленный доход дистрибьютора.
func (h *Handler) PayCommission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.PayCommission(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "pay commission error", zap.Int64("commissionID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toCommissionResponse(c))
}
