package accounts

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/middleware"
	"lsmarket/setup"
)

// MintRequest is the operator request to credit collateral to a holder.
type MintRequest struct {
	Amount int64 `json:"amount"`
}

// MintHandler handles POST /v0/accounts/{holder}/mint. Operator only; the
// stand-in for the external collateral token's faucet.
func MintHandler(db *gorm.DB, collateral engine.CollateralAdapter, cfg *setup.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if httpErr := middleware.ValidateOperatorToken(r, cfg.Auth.JWTSecret); httpErr != nil {
			http.Error(w, httpErr.Message, httpErr.StatusCode)
			return
		}

		holder := mux.Vars(r)["holder"]

		var req MintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Amount <= 0 {
			http.Error(w, "Amount must be positive", http.StatusBadRequest)
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return collateral.Mint(tx, holder, req.Amount)
		})
		if err != nil {
			if errors.Is(err, engine.ErrAccountNotFound) {
				http.Error(w, "Account not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to mint collateral", http.StatusInternalServerError)
			return
		}

		balance, err := collateral.BalanceOf(db, holder)
		if err != nil {
			http.Error(w, "Failed to read balance", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"holder":  holder,
			"balance": balance,
		})
	}
}
