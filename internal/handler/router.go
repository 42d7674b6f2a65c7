package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/shopmart-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса шопмарт.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}", h.UpdateUser)
			r.Get("/{id}/addresses", h.ListUserAddresses)
			r.Get("/{id}/orders", h.GetUserOrders)
		})

		r.Route("/distributors", func(r chi.Router) {
			r.Post("/", h.CreateDistributor)
			r.Get("/{id}", h.GetDistributor)
			r.Patch("/{id}/status", h.UpdateDistributorStatus)
			r.Get("/{id}/commissions", h.GetDistributorCommissions)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", h.CreateCategory)
			r.Get("/", h.ListCategories)
			r.Get("/{id}", h.GetCategory)
			r.Patch("/{id}", h.UpdateCategory)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.CreateProduct)
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Patch("/{id}", h.UpdateProduct)
			r.Post("/{id}/stock", h.AdjustStock)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Post("/", h.CreateAddress)
			r.Get("/{id}", h.GetAddress)
			r.Patch("/{id}", h.UpdateAddress)
			r.Delete("/{id}", h.DeleteAddress)
		})

		r.Route("/carts/{userID}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items", h.UpdateCartItem)
			r.Delete("/items", h.RemoveCartItem)
			r.Delete("/", h.ClearCart)
			r.Post("/checkout", h.CheckoutCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}", h.UpdateOrder)
			r.Get("/{id}/items", h.GetOrderItems)
			r.Get("/{id}/commissions", h.GetOrderCommissions)
			r.Post("/{id}/cancel", h.CancelOrder)
			r.Post("/{id}/pay", h.ProcessPayment)
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Post("/", h.CreateCommission)
			r.Post("/{id}/pay", h.PayCommission)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
