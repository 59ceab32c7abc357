package markets

import (
	"errors"
	"net/http"

	"lsmarket/engine"
	"lsmarket/math/fixedpoint"
	"lsmarket/math/lmsr"
)

// handleEngineError maps engine error kinds onto HTTP statuses. Numeric
// failures get 422: the request was well-formed but this trade cannot be
// priced, and the caller should retry with different parameters.
func handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrMarketNotFound), errors.Is(err, engine.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrInvalidParameters):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrAlreadyInitialized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrMarketNotOpen),
		errors.Is(err, engine.ErrMarketNotResolved),
		errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrInsufficientReserve),
		errors.Is(err, engine.ErrInsufficientCollateral):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, fixedpoint.ErrNumericOverflow),
		errors.Is(err, fixedpoint.ErrInvalidArgument),
		errors.Is(err, lmsr.ErrConvergenceFailure):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
