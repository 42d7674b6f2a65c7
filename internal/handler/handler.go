// Package handler содержит HTTP-обработчики API сервиса шопмарт.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
	"github.com/mmeshcher/shopmart-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateUser(ctx context.Context, email, fullName, phone string, role model.Role, referralCode string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, fullName, phone *string) (*model.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error)

	CreateDistributor(ctx context.Context, userID int64, rate decimal.Decimal) (*model.Distributor, error)
	GetDistributor(ctx context.Context, id int64) (*model.Distributor, error)
	UpdateDistributorStatus(ctx context.Context, id int64, status model.DistributorStatus) (*model.Distributor, error)
	GetDistributorCommissions(ctx context.Context, distributorID int64) ([]model.Commission, error)

	CreateCategory(ctx context.Context, name, description string, parentID *int64) (*model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id int64, name, description *string) (*model.Category, error)

	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, categoryID *int64, page, limit int) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, id int64, upd repository.ProductUpdate) (*model.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (*model.Product, error)

	CreateAddress(ctx context.Context, a *model.Address) (*model.Address, error)
	GetAddress(ctx context.Context, id int64) (*model.Address, error)
	ListAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error)
	UpdateAddress(ctx context.Context, id int64, upd repository.AddressUpdate) (*model.Address, error)
	DeleteAddress(ctx context.Context, id int64) error

	AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, productID int64) error
	GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error

	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*model.Order, error)
	CheckoutCart(ctx context.Context, userID int64, addressID *int64, referralCode, paymentMethod, notes string) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error)
	GetUserOrders(ctx context.Context, userID int64, page, limit int) ([]model.Order, int64, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	GetOrderCommissions(ctx context.Context, orderID int64) ([]model.Commission, error)
	UpdateOrder(ctx context.Context, id int64, newStatus *model.OrderStatus, shippingAddress *string) (*model.Order, error)
	CancelOrder(ctx context.Context, id int64) (*model.Order, error)
	ProcessPayment(ctx context.Context, id int64, confirmation string) (*model.Order, error)

	CreateCommission(ctx context.Context, distributorID, orderID int64, amount decimal.Decimal) (*model.Commission, error)
	PayCommission(ctx context.Context, id int64) (*model.Commission, error)
}

// Handler реализует HTTP-обработчики API сервиса шопмарт.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// validationErrors — ошибки формы запроса, отображаемые в 400 Bad Request.
var validationErrors = []error{
	service.ErrEmptyOrder,
	service.ErrInvalidQuantity,
	service.ErrInvalidUnitPrice,
	service.ErrInvalidReferralCode,
	service.ErrInvalidCommissionRate,
	service.ErrInvalidRole,
	service.ErrEmptyEmail,
	service.ErrEmptyCart,
	service.ErrNoUpdates,
	service.ErrEmptyConfirmation,
}

// notFoundErrors — отсутствие сущности, 404 Not Found.
var notFoundErrors = []error{
	repository.ErrUserNotFound,
	repository.ErrCategoryNotFound,
	repository.ErrProductNotFound,
	repository.ErrAddressNotFound,
	repository.ErrCartItemNotFound,
	repository.ErrOrderNotFound,
	repository.ErrDistributorNotFound,
	repository.ErrCommissionNotFound,
}

// conflictErrors — конфликт состояния или дубликат, 409 Conflict.
var conflictErrors = []error{
	repository.ErrUserExists,
	repository.ErrCategoryExists,
	repository.ErrDistributorExists,
	repository.ErrCommissionExists,
	repository.ErrProductUnavailable,
	repository.ErrInsufficientStock,
	repository.ErrInvalidTransition,
	repository.ErrCommissionNotPending,
	repository.ErrOrderAlreadyPaid,
}

// respondError переводит ошибку бизнес-логики в HTTP-статус. Для ожидаемых
// ошибок клиенту возвращается текст с указанием виновной сущности, для
// неожиданных — обезличенный 500 с записью в журнал.
func (h *Handler) respondError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	for _, e := range validationErrors {
		if errors.Is(err, e) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	for _, e := range notFoundErrors {
		if errors.Is(err, e) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	for _, e := range conflictErrors {
		if errors.Is(err, e) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}

	h.logger.Error(msg, append(fields, zap.Error(err))...)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

type createUserRequest struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
}

type userResponse struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	ReferrerID *int64 `json:"referrer_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Phone:      u.Phone,
		Role:       string(u.Role),
		ReferrerID: u.ReferrerID,
		CreatedAt:  u.CreatedAt.Format(timeFormat),
	}
}

// CreateUser регистрирует нового пользователя, опционально по реферальному коду.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.CreateUser(r.Context(), req.Email, req.FullName, req.Phone, model.Role(req.Role), req.ReferralCode)
	if err != nil {
		h.respondError(w, err, "create user error", zap.String("email", req.Email))
		return
	}

	h.writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// GetUser возвращает пользователя по идентификатору.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get user error", zap.Int64("userID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

type updateUserRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// UpdateUser частично обновляет пользователя.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateUser(r.Context(), id, req.FullName, req.Phone)
	if err != nil {
		h.respondError(w, err, "update user error", zap.Int64("userID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

type userListResponse struct {
	Users []userResponse `json:"users"`
	Total int64          `json:"total"`
}

// ListUsers возвращает страницу пользователей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)

	users, total, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		h.respondError(w, err, "list users error")
		return
	}

	resp := userListResponse{Users: make([]userResponse, 0, len(users)), Total: total}
	for i := range users {
		resp.Users = append(resp.Users, toUserResponse(&users[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type createDistributorRequest struct {
	UserID         int64           `json:"user_id"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

type distributorResponse struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	ReferralCode   string          `json:"referral_code"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
}

func toDistributorResponse(d *model.Distributor) distributorResponse {
	return distributorResponse{
		ID:             d.ID,
		UserID:         d.UserID,
		ReferralCode:   d.ReferralCode,
		CommissionRate: d.CommissionRate,
		TotalEarnings:  d.TotalEarnings,
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt.Format(timeFormat),
	}
}

// CreateDistributor создаёт профиль дистрибьютора.
func (h *Handler) CreateDistributor(w http.ResponseWriter, r *http.Request) {
	var req createDistributorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, err := h.service.CreateDistributor(r.Context(), req.UserID, req.CommissionRate)
	if err != nil {
		h.respondError(w, err, "create distributor error", zap.Int64("userID", req.UserID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toDistributorResponse(d))
}

// GetDistributor возвращает профиль дистрибьютора.
func (h *Handler) GetDistributor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, err := h.service.GetDistributor(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get distributor error", zap.Int64("distributorID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toDistributorResponse(d))
}

type updateDistributorStatusRequest struct {
	Status string `json:"status"`
}

// UpdateDistributorStatus меняет статус профиля дистрибьютора.
func (h *Handler) UpdateDistributorStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateDistributorStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, err := h.service.UpdateDistributorStatus(r.Context(), id, model.DistributorStatus(req.Status))
	if err != nil {
		h.respondError(w, err, "update distributor status error", zap.Int64("distributorID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toDistributorResponse(d))
}

// GetDistributorCommissions возвращает комиссионные начисления дистрибьютора.
func (h *Handler) GetDistributorCommissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	commissions, err := h.service.GetDistributorCommissions(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get distributor commissions error", zap.Int64("distributorID", id))
		return
	}

	resp := make([]commissionResponse, 0, len(commissions))
	for i := range commissions {
		resp = append(resp, toCommissionResponse(&commissions[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
