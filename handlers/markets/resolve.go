package markets

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/middleware"
	"lsmarket/models"
	"lsmarket/setup"
)

// ResolveRequest names the winning outcome.
type ResolveRequest struct {
	WinningOutcome int `json:"winningOutcome"`
}

// ResolveHandler handles POST /v0/markets/{conditionId}/resolve. Restricted
// to the operator, who relays the settlement oracle's answer.
func ResolveHandler(mm *engine.MarketMaker, cfg *setup.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if httpErr := middleware.ValidateOperatorToken(r, cfg.Auth.JWTSecret); httpErr != nil {
			http.Error(w, httpErr.Message, httpErr.StatusCode)
			return
		}
		conditionID := mux.Vars(r)["conditionId"]

		var req ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		market, err := mm.Resolve(r.Context(), conditionID, req.WinningOutcome)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"market":  market,
		})
	}
}

// RedeemHandler handles POST /v0/markets/{conditionId}/redeem. Pays the
// caller's winning balance once; later calls are paid-zero no-ops.
func RedeemHandler(db *gorm.DB, mm *engine.MarketMaker) http.HandlerFunc {
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

		payout, err := mm.Redeem(r.Context(), conditionID, account.Holder)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		var refreshed models.Account
		if result := db.Where("holder = ?", account.Holder).First(&refreshed); result.Error != nil {
			http.Error(w, "Failed to read balance", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"payout":     payout,
			"newBalance": refreshed.Balance,
		})
	}
}
