package transport

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// contentionRetryAfter is the Retry-After hint, in seconds, sent with 503s
const contentionRetryAfter = 1

// respondError maps the domain error taxonomy onto HTTP statuses. Anything
// not recognized is logged and reported as a 500 without internals.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		stockErr      *domain.StockError
		notFoundErr   *domain.NotFoundError
		outOfStockErr *domain.OutOfStockError
		contentionErr *domain.ContentionError
		transportErr  *domain.TransportError
	)

	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed",
			map[string]interface{}{"problems": validationErr.Problems})
	case errors.As(err, &stockErr):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "cannot place order",
			map[string]interface{}{"problems": stockErr.Problems})
	case errors.As(err, &outOfStockErr):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, outOfStockErr.Error(),
			map[string]interface{}{"sku": outOfStockErr.SKU})
	case errors.As(err, &notFoundErr):
		middleware.RespondWithErrorDetails(w, http.StatusNotFound, "product not found",
			map[string]interface{}{"sku": notFoundErr.SKU})
	case errors.Is(err, domain.ErrNotInCart),
		errors.Is(err, repository.ErrSaleNotFound),
		errors.Is(err, repository.ErrCustomerNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrCustomerHasSales),
		errors.Is(err, repository.ErrInvalidStatusTransition):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &contentionErr):
		w.Header().Set("Retry-After", strconv.Itoa(contentionRetryAfter))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "too many concurrent orders, please retry")
	case errors.As(err, &transportErr):
		logger.Warn("Inventory service call failed", zap.Error(err))
		details := map[string]interface{}{}
		if transportErr.StatusCode != 0 {
			details["status"] = transportErr.StatusCode
			details["body"] = transportErr.Body
		}
		middleware.RespondWithErrorDetails(w, http.StatusBadGateway, "inventory service unavailable", details)
	default:
		logger.Error("Request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
