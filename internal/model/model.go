// Package model содержит доменные сущности сервиса шопмарт.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser        Role = "user"
	RoleAdmin       Role = "admin"
	RoleDistributor Role = "distributor"
)

// User представляет зарегистрированного пользователя магазина.
// ReferrerID указывает на пользователя, пригласившего данного (первый уровень
// реферальной цепочки); второй уровень вычисляется обходом графа при создании заказа.
type User struct {
	ID         int64
	Email      string
	FullName   string
	Phone      string
	Role       Role
	ReferrerID *int64
	CreatedAt  time.Time
}

// DistributorStatus описывает состояние профиля дистрибьютора.
type DistributorStatus string

const (
	DistributorStatusActive    DistributorStatus = "active"
	DistributorStatusInactive  DistributorStatus = "inactive"
	DistributorStatusSuspended DistributorStatus = "suspended"
)

// Distributor представляет профиль дистрибьютора, связанный с пользователем один к одному.
// Комиссию по реферальному коду получают только дистрибьюторы в статусе active.
type Distributor struct {
	ID             int64
	UserID         int64
	ReferralCode   string
	CommissionRate decimal.Decimal
	TotalEarnings  decimal.Decimal
	Status         DistributorStatus
	CreatedAt      time.Time
}

// Category описывает категорию каталога товаров.
type Category struct {
	ID          int64
	Name        string
	Description string
	ParentID    *int64
	CreatedAt   time.Time
}

// ProductType описывает тип товара. Виртуальные товары не участвуют
// в резервировании и восстановлении остатков.
type ProductType string

const (
	ProductTypePhysical ProductType = "physical"
	ProductTypeVirtual  ProductType = "virtual"
)

// Product описывает товар каталога.
type Product struct {
	ID            int64
	Name          string
	Description   string
	CategoryID    *int64
	Price         decimal.Decimal
	StockQuantity int
	Type          ProductType
	Enabled       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Address описывает адрес доставки пользователя.
type Address struct {
	ID         int64
	UserID     int64
	Line1      string
	City       string
	Region     string
	PostalCode string
	Country    string
	CreatedAt  time.Time
}

// CartItem описывает позицию корзины пользователя.
// Price — текущая цена товара из каталога на момент чтения, не снимок.
type CartItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
	AddedAt   time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// orderTransitions задаёт допустимые переходы статуса заказа.
// Статусы delivered, cancelled и refunded — терминальные.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransition сообщает, допустим ли переход статуса заказа from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanCancel сообщает, можно ли отменить заказ в указанном статусе.
func CanCancel(status OrderStatus) bool {
	return CanTransition(status, OrderStatusCancelled)
}

// Order описывает заказ пользователя. ShippingAddress — денормализованный
// снимок адреса на момент создания; последующие правки адреса заказ не меняют.
type Order struct {
	ID              int64
	UserID          int64
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	TotalAmount     decimal.Decimal
	ShippingFee     decimal.Decimal
	DiscountAmount  decimal.Decimal
	FinalAmount     decimal.Decimal
	ShippingAddress *string
	PaymentMethod   string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem описывает позицию заказа. UnitPrice — цена на момент заказа,
// позиция неизменяема после создания.
type OrderItem struct {
	ID         int64
	OrderID    int64
	ProductID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// CommissionStatus описывает статус комиссионного начисления.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// Commission описывает комиссионное начисление по заказу.
// Ставка и сумма фиксируются в момент создания заказа и не пересчитываются,
// даже если ставка дистрибьютора позднее меняется.
type Commission struct {
	ID        int64
	OrderID   int64
	UserID    int64
	Level     int
	Rate      decimal.Decimal
	Amount    decimal.Decimal
	Status    CommissionStatus
	PaidAt    *time.Time
	CreatedAt time.Time
}
