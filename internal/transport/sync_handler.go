package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SyncHandler triggers catalog synchronization with the inventory service
type SyncHandler struct {
	sync   service.SyncService
	logger *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(sync service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, logger: logger}
}

// RegisterRoutes registers the sync routes
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sync-from-inventory", h.Pull)
	r.Post("/sync-to-inventory", h.Push)
}

// Pull imports the inventory catalog. Per-row problems are part of a 200
// response; only transport or storage failures are errors.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Pull(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Push exports the local catalog
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Push(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}
