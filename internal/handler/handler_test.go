package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
	"github.com/mmeshcher/shopmart-system/internal/service"
)

type stubService struct {
	userResp  *model.User
	usersResp []model.User
	userErr   error

	distributorResp *model.Distributor
	distributorErr  error

	categoryResp   *model.Category
	categoriesResp []model.Category
	categoryErr    error

	productResp  *model.Product
	productsResp []model.Product
	productErr   error

	addressResp   *model.Address
	addressesResp []model.Address
	addressErr    error

	cartItemResp  *model.CartItem
	cartItemsResp []model.CartItem
	cartErr       error

	orderResp  *model.Order
	ordersResp []model.Order
	orderErr   error

	orderItemsResp  []model.OrderItem
	commissionsResp []model.Commission
	commissionResp  *model.Commission
	commissionErr   error

	createOrderReq service.CreateOrderRequest
	checkoutUserID int64
}

func (s *stubService) CreateUser(ctx context.Context, email, fullName, phone string, role model.Role, referralCode string) (*model.User, error) {
	return s.userResp, s.userErr
}

func (s *stubService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.userResp, s.userErr
}

func (s *stubService) UpdateUser(ctx context.Context, id int64, fullName, phone *string) (*model.User, error) {
	return s.userResp, s.userErr
}

func (s *stubService) ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	return s.usersResp, int64(len(s.usersResp)), s.userErr
}

func (s *stubService) CreateDistributor(ctx context.Context, userID int64, rate decimal.Decimal) (*model.Distributor, error) {
	return s.distributorResp, s.distributorErr
}

func (s *stubService) GetDistributor(ctx context.Context, id int64) (*model.Distributor, error) {
	return s.distributorResp, s.distributorErr
}

func (s *stubService) UpdateDistributorStatus(ctx context.Context, id int64, status model.DistributorStatus) (*model.Distributor, error) {
	return s.distributorResp, s.distributorErr
}

func (s *stubService) GetDistributorCommissions(ctx context.Context, distributorID int64) ([]model.Commission, error) {
	return s.commissionsResp, s.commissionErr
}

func (s *stubService) CreateCategory(ctx context.Context, name, description string, parentID *int64) (*model.Category, error) {
	return s.categoryResp, s.categoryErr
}

func (s *stubService) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.categoryResp, s.categoryErr
}

func (s *stubService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categoriesResp, s.categoryErr
}

func (s *stubService) UpdateCategory(ctx context.Context, id int64, name, description *string) (*model.Category, error) {
	return s.categoryResp, s.categoryErr
}

func (s *stubService) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) ListProducts(ctx context.Context, categoryID *int64, page, limit int) ([]model.Product, int64, error) {
	return s.productsResp, int64(len(s.productsResp)), s.productErr
}

func (s *stubService) UpdateProduct(ctx context.Context, id int64, upd repository.ProductUpdate) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) AdjustStock(ctx context.Context, id int64, delta int) (*model.Product, error) {
	return s.productResp, s.productErr
}

func (s *stubService) CreateAddress(ctx context.Context, a *model.Address) (*model.Address, error) {
	return s.addressResp, s.addressErr
}

func (s *stubService) GetAddress(ctx context.Context, id int64) (*model.Address, error) {
	return s.addressResp, s.addressErr
}

func (s *stubService) ListAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	return s.addressesResp, s.addressErr
}

func (s *stubService) UpdateAddress(ctx context.Context, id int64, upd repository.AddressUpdate) (*model.Address, error) {
	return s.addressResp, s.addressErr
}

func (s *stubService) DeleteAddress(ctx context.Context, id int64) error {
	return s.addressErr
}

func (s *stubService) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error) {
	return s.cartItemResp, s.cartErr
}

func (s *stubService) UpdateCartItemQuantity(ctx context.Context, userID, productID int64, quantity int) (*model.CartItem, error) {
	return s.cartItemResp, s.cartErr
}

func (s *stubService) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	return s.cartErr
}

func (s *stubService) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.cartItemsResp, s.cartErr
}

func (s *stubService) ClearCart(ctx context.Context, userID int64) error {
	return s.cartErr
}

func (s *stubService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*model.Order, error) {
	s.createOrderReq = req
	return s.orderResp, s.orderErr
}

func (s *stubService) CheckoutCart(ctx context.Context, userID int64, addressID *int64, referralCode, paymentMethod, notes string) (*model.Order, error) {
	s.checkoutUserID = userID
	return s.orderResp, s.orderErr
}

func (s *stubService) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) ListOrders(ctx context.Context, filter repository.OrderFilter, page, limit int) ([]model.Order, int64, error) {
	return s.ordersResp, int64(len(s.ordersResp)), s.orderErr
}

func (s *stubService) GetUserOrders(ctx context.Context, userID int64, page, limit int) ([]model.Order, int64, error) {
	return s.ordersResp, int64(len(s.ordersResp)), s.orderErr
}

func (s *stubService) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return s.orderItemsResp, s.orderErr
}

func (s *stubService) GetOrderCommissions(ctx context.Context, orderID int64) ([]model.Commission, error) {
	return s.commissionsResp, s.commissionErr
}

func (s *stubService) UpdateOrder(ctx context.Context, id int64, newStatus *model.OrderStatus, shippingAddress *string) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) CancelOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) ProcessPayment(ctx context.Context, id int64, confirmation string) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) CreateCommission(ctx context.Context, distributorID, orderID int64, amount decimal.Decimal) (*model.Commission, error) {
	return s.commissionResp, s.commissionErr
}

func (s *stubService) PayCommission(ctx context.Context, id int64) (*model.Commission, error) {
	return s.commissionResp, s.commissionErr
}

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger).SetupRouter()
}

func testOrder() *model.Order {
	now := time.Now().UTC()
	addr := "Tverskaya 1, Moscow, 101000, RU"
	return &model.Order{
		ID:              7,
		UserID:          1,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		TotalAmount:     decimal.RequireFromString("199.98"),
		ShippingFee:     decimal.RequireFromString("10.00"),
		DiscountAmount:  decimal.Zero,
		FinalAmount:     decimal.RequireFromString("209.98"),
		ShippingAddress: &addr,
		PaymentMethod:   "card",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateUser_Success(t *testing.T) {
	svc := &stubService{
		userResp: &model.User{
			ID:        1,
			Email:     "user@example.com",
			FullName:  "Иван Иванов",
			Role:      model.RoleUser,
			CreatedAt: time.Now().UTC(),
		},
	}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(createUserRequest{
		Email:    "user@example.com",
		FullName: "Иван Иванов",
		Role:     "user",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
}

func TestCreateUser_EmptyEmail(t *testing.T) {
	svc := &stubService{userErr: service.ErrEmptyEmail}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(createUserRequest{Role: "user"})

	req := httptest.NewRequest(http.MethodPost, "/api/users/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	svc := &stubService{userErr: repository.ErrUserNotFound}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetUser_InvalidID(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateOrder_Success(t *testing.T) {
	svc := &stubService{orderResp: testOrder()}
	router := newTestRouter(t, svc)

	unitPrice := decimal.RequireFromString("99.99")
	body, _ := json.Marshal(createOrderRequest{
		UserID: 1,
		Items: []orderItemRequest{
			{ProductID: 10, Quantity: 2, UnitPrice: &unitPrice},
		},
		ReferralCode:  "AAAA11112222",
		PaymentMethod: "card",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	if svc.createOrderReq.UserID != 1 {
		t.Fatalf("userID = %d, want 1", svc.createOrderReq.UserID)
	}
	if len(svc.createOrderReq.Items) != 1 || svc.createOrderReq.Items[0].ProductID != 10 {
		t.Fatalf("unexpected items: %+v", svc.createOrderReq.Items)
	}
	if svc.createOrderReq.ReferralCode != "AAAA11112222" {
		t.Fatalf("referralCode = %q", svc.createOrderReq.ReferralCode)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.FinalAmount.Equal(decimal.RequireFromString("209.98")) {
		t.Fatalf("finalAmount = %s, want 209.98", resp.FinalAmount)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc := &stubService{orderErr: repository.ErrInsufficientStock}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(createOrderRequest{
		UserID: 1,
		Items:  []orderItemRequest{{ProductID: 10, Quantity: 100}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := &stubService{orderErr: service.ErrEmptyOrder}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(createOrderRequest{UserID: 1})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCancelOrder_InvalidTransition(t *testing.T) {
	svc := &stubService{orderErr: repository.ErrInvalidTransition}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/7/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestProcessPayment_AlreadyPaid(t *testing.T) {
	svc := &stubService{orderErr: repository.ErrOrderAlreadyPaid}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(paymentRequest{Confirmation: "txn-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/7/pay", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCheckoutCart_UserFromPath(t *testing.T) {
	svc := &stubService{orderResp: testOrder()}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(checkoutRequest{PaymentMethod: "card"})

	req := httptest.NewRequest(http.MethodPost, "/api/carts/1/checkout", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if svc.checkoutUserID != 1 {
		t.Fatalf("checkout userID = %d, want 1", svc.checkoutUserID)
	}
}

func TestGetOrderCommissions_JSONResponse(t *testing.T) {
	paidAt := time.Now().UTC()
	svc := &stubService{
		commissionsResp: []model.Commission{
			{
				ID:        1,
				OrderID:   7,
				UserID:    3,
				Level:     1,
				Rate:      decimal.RequireFromString("0.05"),
				Amount:    decimal.RequireFromString("9.9990"),
				Status:    model.CommissionStatusPaid,
				PaidAt:    &paidAt,
				CreatedAt: paidAt,
			},
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/7/commissions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []commissionResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
	if !resp[0].Amount.Equal(decimal.RequireFromString("9.9990")) {
		t.Fatalf("amount = %s, want 9.9990", resp[0].Amount)
	}
	if resp[0].PaidAt == nil {
		t.Fatal("paidAt is nil")
	}
}

func TestCreateDistributor_Conflict(t *testing.T) {
	svc := &stubService{distributorErr: repository.ErrDistributorExists}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(createDistributorRequest{
		UserID:         3,
		CommissionRate: decimal.RequireFromString("0.1"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/distributors/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestAdjustStock_NegativeResult(t *testing.T) {
	svc := &stubService{productErr: repository.ErrInsufficientStock}
	router := newTestRouter(t, svc)

	body, _ := json.Marshal(adjustStockRequest{Delta: -100})

	req := httptest.NewRequest(http.MethodPost, "/api/products/10/stock", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestDeleteAddress_NoContent(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/addresses/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestUnknownRoute_NotFound(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
