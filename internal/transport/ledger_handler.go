package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerHandler is the back-office view of sales and customers
type LedgerHandler struct {
	ledger service.LedgerService
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger service.LedgerService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// RegisterRoutes registers all ledger routes
func (h *LedgerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.ListSales)
		r.Get("/{id}", h.GetSale)
		r.Post("/{id}/pay", h.MarkPaid)
		r.Post("/{id}/cancel", h.Cancel)
		r.Delete("/{id}", h.DeleteSale)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.ListCustomers)
		r.Delete("/{id}", h.DeleteCustomer)
	})
}

func (h *LedgerHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.ledger.ListSales(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sales)
}

func (h *LedgerHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sale, err := h.ledger.GetSale(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

func (h *LedgerHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sale, err := h.ledger.MarkPaid(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

func (h *LedgerHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	sale, err := h.ledger.Cancel(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

func (h *LedgerHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteSale(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.ledger.ListCustomers(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, customers)
}

// DeleteCustomer refuses while the customer still has sales
func (h *LedgerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteCustomer(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
