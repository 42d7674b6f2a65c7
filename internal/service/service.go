// Package service реализует бизнес-логику сервиса шопмарт.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
	"github.com/mmeshcher/shopmart-system/internal/validation"
)

// ErrEmptyOrder возвращается при попытке создать заказ без позиций.
var (
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// ErrInvalidQuantity возвращается при неположительном количестве в позиции.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidUnitPrice возвращается при отрицательной цене позиции.
	ErrInvalidUnitPrice = errors.New("unit price must not be negative")
	// ErrInvalidReferralCode возвращается при неверном формате реферального кода.
	ErrInvalidReferralCode = errors.New("invalid referral code format")
	// ErrInvalidCommissionRate возвращается, если ставка комиссии вне диапазона [0, 1].
	ErrInvalidCommissionRate = errors.New("commission rate must be within [0, 1]")
	// ErrInvalidRole возвращается при неизвестной роли пользователя.
	ErrInvalidRole = errors.New("invalid user role")
	// ErrEmptyEmail возвращается при попытке создать пользователя без email.
	ErrEmptyEmail = errors.New("email is required")
	// ErrEmptyCart возвращается при оформлении заказа из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoUpdates возвращается, если частичное обновление не содержит ни одного поля.
	ErrNoUpdates = errors.New("no fields to update")
	// ErrEmptyConfirmation возвращается при подтверждении оплаты без платёжного документа.
	ErrEmptyConfirmation = errors.New("payment confirmation is required")
)

// Ставки реферальных комиссий при обходе графа: первый и второй уровень.
var (
	levelOneRate = decimal.RequireFromString("0.05")
	levelTwoRate = decimal.RequireFromString("0.03")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, fullName, phone *string) (*model.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error)
	ReferralChain(ctx context.Context, userID int64) ([]int64, error)

	CreateDistributor(ctx context.Context, d *model.Distributor) (*model.Distributor, error)
	GetDistributorByID(ctx context.Context, id int64) (*model.Distributor, error)
	GetDistributorByCode(ctx context.Context, code string) (*model.Distributor, error)
	GetDistributorByUserID(ctx context.Context, userID int64) (*model.Distributor, error)
	UpdateDistributorStatus(ctx context.Context, id int64, status model.DistributorStatus) (*model.Distributor, error)

	CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id int64, name, description *string) (*model.Category, error)

	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetProductByID(ctx context.Context, id int64) (*model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	ListProducts(ctx context.Context, categoryID *int64, page, limit int) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, id int64, upd repository.ProductUpdate) (*model.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (*model.Product, error)

	CreateAddress(ctx context.Context, a *model.Address) (*model.Address, error)
	GetAddressByID(ctx context.Context, id int64) (*model.Address, error)
	ListAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error)
	UpdateAddress(ctx context.Context, id int64, upd repository.AddressUpdate) (*model.Address, error)
	DeleteAddress(ctx context.Context, id int64) error

	AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, productID int64) error
	GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error

	CreateOrder(ctx context.Context, order *model.Order, items []model.OrderItem, commissions []model.Commission) (*model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	UpdateOrder(ctx context.Context, id int64, newStatus *model.OrderStatus, shippingAddress *string) (*model.Order, error)
	InOrderTx(ctx context.Context, id int64, fn func(ctx context.Context, tx repository.OrderTx) (*model.Order, error)) (*model.Order, error)

	CreateCommission(ctx context.Context, c *model.Commission) (*model.Commission, error)
	GetCommissionByID(ctx context.Context, id int64) (*model.Commission, error)
	PayCommission(ctx context.Context, id int64) (*model.Commission, error)
	ListCommissionsByOrder(ctx context.Context, orderID int64) ([]model.Commission, error)
	ListCommissionsByUser(ctx context.Context, userID int64) ([]model.Commission, error)
}

// Service содержит бизнес-логику сервиса шопмарт.
type Service struct {
	repo        Repository
	shippingFee decimal.Decimal
}

// NewService создаёт новый сервис с указанным репозиторием и тарифом доставки.
func NewService(repo Repository, shippingFee decimal.Decimal) *Service {
	return &Service{
		repo:        repo,
		shippingFee: shippingFee,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// CreateUser создаёт пользователя. Если указан реферальный код, пригласившим
// становится пользователь дистрибьютора-владельца кода.
func (s *Service) CreateUser(ctx context.Context, email, fullName, phone string, role model.Role, referralCode string) (*model.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmptyEmail
	}

	if role == "" {
		role = model.RoleUser
	}
	switch role {
	case model.RoleUser, model.RoleAdmin, model.RoleDistributor:
	default:
		return nil, ErrInvalidRole
	}

	var referrerID *int64
	if referralCode != "" {
		if !validation.IsValidReferralCode(referralCode) {
			return nil, ErrInvalidReferralCode
		}
		d, err := s.repo.GetDistributorByCode(ctx, referralCode)
		if err != nil {
			return nil, err
		}
		referrerID = &d.UserID
	}

	return s.repo.CreateUser(ctx, &model.User{
		Email:      email,
		FullName:   fullName,
		Phone:      phone,
		Role:       role,
		ReferrerID: referrerID,
	})
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateUser частично обновляет пользователя.
func (s *Service) UpdateUser(ctx context.Context, id int64, fullName, phone *string) (*model.User, error) {
	if fullName == nil && phone == nil {
		return nil, ErrNoUpdates
	}
	return s.repo.UpdateUser(ctx, id, fullName, phone)
}

// ListUsers возвращает страницу пользователей и общее количество.
func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	page, limit = normalizePage(page, limit)
	return s.repo.ListUsers(ctx, page, limit)
}

// CreateDistributor создаёт профиль дистрибьютора со сгенерированным
// реферальным кодом.
func (s *Service) CreateDistributor(ctx context.Context, userID int64, rate decimal.Decimal) (*model.Distributor, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidCommissionRate
	}

	return s.repo.CreateDistributor(ctx, &model.Distributor{
		UserID:         userID,
		ReferralCode:   newReferralCode(),
		CommissionRate: rate,
		Status:         model.DistributorStatusActive,
	})
}

// newReferralCode генерирует реферальный код: первые 12 шестнадцатеричных
// символов UUID в верхнем регистре.
func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:validation.ReferralCodeLength])
}

// GetDistributor возвращает дистрибьютора по идентификатору.
func (s *Service) GetDistributor(ctx context.Context, id int64) (*model.Distributor, error) {
	return s.repo.GetDistributorByID(ctx, id)
}

// UpdateDistributorStatus меняет статус профиля дистрибьютора.
func (s *Service) UpdateDistributorStatus(ctx context.Context, id int64, status model.DistributorStatus) (*model.Distributor, error) {
	switch status {
	case model.DistributorStatusActive, model.DistributorStatusInactive, model.DistributorStatusSuspended:
	default:
		return nil, ErrInvalidRole
	}
	return s.repo.UpdateDistributorStatus(ctx, id, status)
}

// CreateCategory создаёт категорию каталога. Родительская категория,
// если указана, должна существовать.
func (s *Service) CreateCategory(ctx context.Context, name, description string, parentID *int64) (*model.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("category name is required")
	}
	if parentID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *parentID); err != nil {
			return nil, err
		}
	}
	return s.repo.CreateCategory(ctx, &model.Category{
		Name:        name,
		Description: description,
		ParentID:    parentID,
	})
}

// GetCategory возвращает категорию по идентификатору.
func (s *Service) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.GetCategoryByID(ctx, id)
}

// ListCategories возвращает все категории.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// UpdateCategory частично обновляет категорию.
func (s *Service) UpdateCategory(ctx context.Context, id int64, name, description *string) (*model.Category, error) {
	if name == nil && description == nil {
		return nil, ErrNoUpdates
	}
	return s.repo.UpdateCategory(ctx, id, name, description)
}

// CreateProduct создаёт товар каталога.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, errors.New("product name is required")
	}
	if p.Price.IsNegative() {
		return nil, ErrInvalidUnitPrice
	}
	if p.StockQuantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if p.Type == "" {
		p.Type = model.ProductTypePhysical
	}
	switch p.Type {
	case model.ProductTypePhysical, model.ProductTypeVirtual:
	default:
		return nil, errors.New("invalid product type")
	}
	if p.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
	}
	return s.repo.CreateProduct(ctx, p)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

// ListProducts возвращает страницу товаров и общее количество.
func (s *Service) ListProducts(ctx context.Context, categoryID *int64, page, limit int) ([]model.Product, int64, error) {
	page, limit = normalizePage(page, limit)
	return s.repo.ListProducts(ctx, categoryID, page, limit)
}

// UpdateProduct частично обновляет товар.
func (s *Service) UpdateProduct(ctx context.Context, id int64, upd repository.ProductUpdate) (*model.Product, error) {
	if upd.Name == nil && upd.Description == nil && upd.Price == nil && upd.Enabled == nil {
		return nil, ErrNoUpdates
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return nil, ErrInvalidUnitPrice
	}
	return s.repo.UpdateProduct(ctx, id, upd)
}

// AdjustStock изменяет остаток товара на delta.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (*model.Product, error) {
	if delta == 0 {
		return nil, ErrNoUpdates
	}
	return s.repo.AdjustStock(ctx, id, delta)
}

// CreateAddress создаёт адрес доставки пользователя.
func (s *Service) CreateAddress(ctx context.Context, a *model.Address) (*model.Address, error) {
	if strings.TrimSpace(a.Line1) == "" || strings.TrimSpace(a.City) == "" {
		return nil, errors.New("address line and city are required")
	}
	return s.repo.CreateAddress(ctx, a)
}

// GetAddress возвращает адрес по идентификатору.
func (s *Service) GetAddress(ctx context.Context, id int64) (*model.Address, error) {
	return s.repo.GetAddressByID(ctx, id)
}

// ListAddressesByUser возвращает адреса пользователя.
func (s *Service) ListAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	return s.repo.ListAddressesByUser(ctx, userID)
}

// UpdateAddress частично обновляет адрес.
func (s *Service) UpdateAddress(ctx context.Context, id int64, upd repository.AddressUpdate) (*model.Address, error) {
	return s.repo.UpdateAddress(ctx, id, upd)
}

// DeleteAddress удаляет адрес.
func (s *Service) DeleteAddress(ctx context.Context, id int64) error {
	return s.repo.DeleteAddress(ctx, id)
}

// AddCartItem добавляет товар в корзину пользователя.
func (s *Service) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.repo.AddCartItem(ctx, userID, productID, quantity)
}

// UpdateCartItemQuantity устанавливает количество позиции корзины.
func (s *Service) UpdateCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.repo.UpdateCartItemQuantity(ctx, userID, productID, quantity)
}

// RemoveCartItem удаляет позицию корзины.
func (s *Service) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	return s.repo.RemoveCartItem(ctx, userID, productID)
}

// GetCartItems возвращает позиции корзины пользователя.
func (s *Service) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.repo.GetCartItems(ctx, userID)
}

// ClearCart очищает корзину пользователя.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
