package accounts

import (
	"encoding/json"
	"net/http"

	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/middleware"
	"lsmarket/models"
)

// MeResponse is the authenticated account view with open positions.
type MeResponse struct {
	Account   models.AccountPublic     `json:"account"`
	Positions []models.OutcomePosition `json:"positions"`
}

// MeHandler handles GET /v0/accounts/me.
func MeHandler(db *gorm.DB, mm *engine.MarketMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		account, httpErr := middleware.ValidateAccountAPIKey(r, db)
		if httpErr != nil {
			http.Error(w, httpErr.Message, httpErr.StatusCode)
			return
		}

		positions, err := mm.Ledger().HolderPositions(db, account.Holder)
		if err != nil {
			http.Error(w, "Failed to load positions", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MeResponse{
			Account:   account.ToPublic(),
			Positions: positions,
		})
	}
}
