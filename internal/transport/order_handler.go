package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PlaceOrderRequest carries the shopper's contact details. Field rules are
// enforced by the order service so every problem is reported together.
type PlaceOrderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OrderHandler turns the session cart into a sale
type OrderHandler struct {
	carts     repository.CartRepository
	orders    service.OrderService
	rateLimit func(http.Handler) http.Handler
	logger    *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. rateLimit may be nil.
func NewOrderHandler(carts repository.CartRepository, orders service.OrderService, rateLimit func(http.Handler) http.Handler, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{carts: carts, orders: orders, rateLimit: rateLimit, logger: logger}
}

// RegisterRoutes registers the checkout route
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.rateLimit != nil {
			r.Use(h.rateLimit)
		}
		r.Post("/orders", h.PlaceOrder)
	})
}

// PlaceOrder commits the cart. The stored cart is cleared only after the
// sale is committed; on any failure it is left untouched.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	sessionID, cart, ok := loadSessionCart(w, r, h.carts, h.logger)
	if !ok {
		return
	}

	info := domain.CustomerInfo{Name: req.Name, Email: req.Email, Phone: req.Phone}
	sale, emptied, err := h.orders.PlaceOrder(r.Context(), info, cart)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := h.carts.Save(r.Context(), sessionID, emptied); err != nil {
		// the sale is committed; a stale cart is only an inconvenience
		h.logger.Warn("Failed to clear cart after checkout",
			zap.String("sale_no", sale.SaleNo),
			zap.Error(err),
		)
	}

	middleware.RespondWithJSON(w, http.StatusCreated, sale)
}
