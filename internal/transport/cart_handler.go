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

// AddItemRequest represents the add-to-cart payload
type AddItemRequest struct {
	SKU string `json:"sku" validate:"required,max=64"`
	Qty int    `json:"qty"`
}

// SetQuantityRequest represents the cart line update payload
type SetQuantityRequest struct {
	Qty int `json:"qty"`
}

// CartResponse is returned by every cart endpoint
type CartResponse struct {
	Cart   service.CartView    `json:"cart"`
	Notice *service.CartNotice `json:"notice,omitempty"`
}

// CartHandler exposes the session cart. The cart lives in Redis keyed by the
// session cookie; the service only ever sees cart values.
type CartHandler struct {
	carts  repository.CartRepository
	cart   service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts repository.CartRepository, cart service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, cart: cart, logger: logger}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.View)
		r.Post("/items", h.AddItem)
		r.Put("/items/{sku}", h.SetQuantity)
		r.Delete("/items/{sku}", h.RemoveItem)
	})
}

// View returns the current cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	_, cart, ok := h.load(w, r)
	if !ok {
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, CartResponse{Cart: h.cart.View(cart)})
}

// AddItem adds a product to the cart, capped at available stock
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	sessionID, cart, ok := h.load(w, r)
	if !ok {
		return
	}

	updated, notice, err := h.cart.AddItem(r.Context(), cart, req.SKU, req.Qty)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.save(w, r, sessionID, updated, &notice)
}

// SetQuantity replaces a line's quantity; zero or less removes it
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	sessionID, cart, ok := h.load(w, r)
	if !ok {
		return
	}

	updated, notice, err := h.cart.SetQuantity(r.Context(), cart, chi.URLParam(r, "sku"), req.Qty)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.save(w, r, sessionID, updated, &notice)
}

// RemoveItem drops a line from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, cart, ok := h.load(w, r)
	if !ok {
		return
	}

	updated, err := h.cart.RemoveItem(cart, chi.URLParam(r, "sku"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.save(w, r, sessionID, updated, nil)
}

func (h *CartHandler) load(w http.ResponseWriter, r *http.Request) (string, domain.Cart, bool) {
	return loadSessionCart(w, r, h.carts, h.logger)
}

func (h *CartHandler) save(w http.ResponseWriter, r *http.Request, sessionID string, cart domain.Cart, notice *service.CartNotice) {
	if err := h.carts.Save(r.Context(), sessionID, cart); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if notice != nil && !notice.Capped && len(notice.Warnings) == 0 {
		notice = nil
	}
	middleware.RespondWithJSON(w, http.StatusOK, CartResponse{Cart: h.cart.View(cart), Notice: notice})
}

// loadSessionCart resolves the session cart or writes the error response
func loadSessionCart(w http.ResponseWriter, r *http.Request, carts repository.CartRepository, logger *zap.Logger) (string, domain.Cart, bool) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing cart session")
		return "", nil, false
	}

	cart, err := carts.Load(r.Context(), sessionID)
	if err != nil {
		respondError(w, logger, err)
		return "", nil, false
	}
	return sessionID, cart, true
}
