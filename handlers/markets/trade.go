package markets

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/middleware"
	"lsmarket/models"
)

// BuyRequest is the trader request body for a buy.
type BuyRequest struct {
	Outcome int   `json:"outcome"`
	Payment int64 `json:"payment"`
}

// SellRequest is the trader request body for a sell.
type SellRequest struct {
	Outcome int   `json:"outcome"`
	Shares  int64 `json:"shares"`
}

// TradeResponse is returned after a committed trade.
type TradeResponse struct {
	Success    bool         `json:"success"`
	Trade      models.Trade `json:"trade"`
	NewBalance int64        `json:"newBalance"`
}

// BuyHandler handles POST /v0/markets/{conditionId}/buy.
func BuyHandler(db *gorm.DB, mm *engine.MarketMaker, collateral engine.CollateralAdapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		account, httpErr := middleware.ValidateAccountAPIKey(r, db)
		if httpErr != nil {
			http.Error(w, httpErr.Message, httpErr.StatusCode)
			return
		}
		conditionID := mux.Vars(r)["conditionId"]

		var req BuyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Payment <= 0 {
			http.Error(w, "Payment must be positive", http.StatusBadRequest)
			return
		}

		trade, err := mm.Buy(r.Context(), conditionID, account.Holder, req.Outcome, req.Payment)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		balance, err := collateral.BalanceOf(db, account.Holder)
		if err != nil {
			http.Error(w, "Failed to read balance", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(TradeResponse{
			Success:    true,
			Trade:      *trade,
			NewBalance: balance,
		})
	}
}

// SellHandler handles POST /v0/markets/{conditionId}/sell.
func SellHandler(db *gorm.DB, mm *engine.MarketMaker, collateral engine.CollateralAdapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		account, httpErr := middleware.ValidateAccountAPIKey(r, db)
		if httpErr != nil {
			http.Error(w, httpErr.Message, httpErr.StatusCode)
			return
		}
		conditionID := mux.Vars(r)["conditionId"]

		var req SellRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Shares <= 0 {
			http.Error(w, "Share amount must be positive", http.StatusBadRequest)
			return
		}

		trade, err := mm.Sell(r.Context(), conditionID, account.Holder, req.Outcome, req.Shares)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		balance, err := collateral.BalanceOf(db, account.Holder)
		if err != nil {
			http.Error(w, "Failed to read balance", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(TradeResponse{
			Success:    true,
			Trade:      *trade,
			NewBalance: balance,
		})
	}
}
