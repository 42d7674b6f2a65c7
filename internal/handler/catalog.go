package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/mmeshcher/shopmart-system/internal/repository"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
}

type categoryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ParentID:    c.ParentID,
		CreatedAt:   c.CreatedAt.Format(timeFormat),
	}
}

// CreateCategory создаёт категорию каталога.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, "category name is required", http.StatusBadRequest)
		return
	}

	c, err := h.service.CreateCategory(r.Context(), req.Name, req.Description, req.ParentID)
	if err != nil {
		h.respondError(w, err, "create category error", zap.String("name", req.Name))
		return
	}

	h.writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// GetCategory возвращает категорию по идентификатору.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get category error", zap.Int64("categoryID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

// ListCategories возвращает все категории каталога.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, err, "list categories error")
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, toCategoryResponse(&categories[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// UpdateCategory частично обновляет категорию.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateCategory(r.Context(), id, req.Name, req.Description)
	if err != nil {
		h.respondError(w, err, "update category error", zap.Int64("categoryID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

type createProductRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CategoryID    *int64          `json:"category_id"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Type          string          `json:"type"`
	Enabled       *bool           `json:"enabled"`
}

type productResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Type          string          `json:"type"`
	Enabled       bool            `json:"enabled"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		CategoryID:    p.CategoryID,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Type:          string(p.Type),
		Enabled:       p.Enabled,
		CreatedAt:     p.CreatedAt.Format(timeFormat),
		UpdatedAt:     p.UpdatedAt.Format(timeFormat),
	}
}

// CreateProduct создаёт товар каталога.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	p, err := h.service.CreateProduct(r.Context(), &model.Product{
		Name:          req.Name,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Type:          model.ProductType(req.Type),
		Enabled:       enabled,
	})
	if err != nil {
		h.respondError(w, err, "create product error", zap.String("name", req.Name))
		return
	}

	h.writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get product error", zap.Int64("productID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(p))
}

type productListResponse struct {
	Products []productResponse `json:"products"`
	Total    int64             `json:"total"`
}

// ListProducts возвращает страницу товаров с опциональным фильтром по категории.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)

	var categoryID *int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		categoryID = &id
	}

	products, total, err := h.service.ListProducts(r.Context(), categoryID, page, limit)
	if err != nil {
		h.respondError(w, err, "list products error")
		return
	}

	resp := productListResponse{Products: make([]productResponse, 0, len(products)), Total: total}
	for i := range products {
		resp.Products = append(resp.Products, toProductResponse(&products[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Enabled     *bool            `json:"enabled"`
}

// UpdateProduct частично обновляет товар.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), id, repository.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Enabled:     req.Enabled,
	})
	if err != nil {
		h.respondError(w, err, "update product error", zap.Int64("productID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(p))
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

// AdjustStock изменяет остаток товара на указанную величину.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		h.respondError(w, err, "adjust stock error", zap.Int64("productID", id), zap.Int("delta", req.Delta))
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(p))
}

type createAddressRequest struct {
	UserID     int64  `json:"user_id"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type addressResponse struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	CreatedAt  string `json:"created_at"`
}

func toAddressResponse(a *model.Address) addressResponse {
	return addressResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		Line1:      a.Line1,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		CreatedAt:  a.CreatedAt.Format(timeFormat),
	}
}

// CreateAddress создаёт адрес доставки пользователя.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req createAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := h.service.CreateAddress(r.Context(), &model.Address{
		UserID:     req.UserID,
		Line1:      req.Line1,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	if err != nil {
		h.respondError(w, err, "create address error", zap.Int64("userID", req.UserID))
		return
	}

	h.writeJSON(w, http.StatusCreated, toAddressResponse(a))
}

// GetAddress возвращает адрес по идентификатору.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := h.service.GetAddress(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get address error", zap.Int64("addressID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toAddressResponse(a))
}

// ListUserAddresses возвращает адреса пользователя.
func (h *Handler) ListUserAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	addresses, err := h.service.ListAddressesByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err, "list addresses error", zap.Int64("userID", userID))
		return
	}

	resp := make([]addressResponse, 0, len(addresses))
	for i := range addresses {
		resp = append(resp, toAddressResponse(&addresses[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateAddressRequest struct {
	Line1      *string `json:"line1"`
	City       *string `json:"city"`
	Region     *string `json:"region"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
}

// UpdateAddress частично обновляет адрес.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := h.service.UpdateAddress(r.Context(), id, repository.AddressUpdate{
		Line1:      req.Line1,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	if err != nil {
		h.respondError(w, err, "update address error", zap.Int64("addressID", id))
		return
	}

	h.writeJSON(w, http.StatusOK, toAddressResponse(a))
}

// DeleteAddress удаляет адрес.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteAddress(r.Context(), id); err != nil {
		h.respondError(w, err, "delete address error", zap.Int64("addressID", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type cartItemResponse struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   string          `json:"added_at"`
}

// AddCartItem добавляет товар в корзину пользователя.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	item, err := h.service.AddCartItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, err, "add cart item error", zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
		return
	}

	h.writeJSON(w, http.StatusCreated, cartItemResponse{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price,
		AddedAt:   item.AddedAt.Format(timeFormat),
	})
}

// UpdateCartItem устанавливает количество позиции корзины.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	item, err := h.service.UpdateCartItemQuantity(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, err, "update cart item error", zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
		return
	}

	h.writeJSON(w, http.StatusOK, cartItemResponse{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price,
		AddedAt:   item.AddedAt.Format(timeFormat),
	})
}

type removeCartItemRequest struct {
	ProductID int64 `json:"product_id"`
}

// RemoveCartItem удаляет позицию корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req removeCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveCartItem(r.Context(), userID, req.ProductID); err != nil {
		h.respondError(w, err, "remove cart item error", zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCart возвращает содержимое корзины пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items, err := h.service.GetCartItems(r.Context(), userID)
	if err != nil {
		h.respondError(w, err, "get cart error", zap.Int64("userID", userID))
		return
	}

	resp := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			AddedAt:   item.AddedAt.Format(timeFormat),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ClearCart очищает корзину пользователя.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		h.respondError(w, err, "clear cart error", zap.Int64("userID", userID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
