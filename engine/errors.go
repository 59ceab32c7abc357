package engine

import "errors"

// Error kinds surfaced by the market maker and ledger. Handlers map these to
// HTTP statuses with errors.Is; wrapped messages carry the detail.
var (
	ErrInvalidParameters      = errors.New("invalid parameters")
	ErrAlreadyInitialized     = errors.New("market already initialized")
	ErrMarketNotFound         = errors.New("market not found")
	ErrMarketNotOpen          = errors.New("market not open")
	ErrMarketNotResolved      = errors.New("market not resolved")
	ErrInsufficientCollateral = errors.New("insufficient collateral for solvency")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientReserve    = errors.New("insufficient market reserve")
	ErrAccountNotFound        = errors.New("account not found")
)
