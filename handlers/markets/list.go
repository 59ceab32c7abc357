package markets

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"lsmarket/engine"
	"lsmarket/models"
	"lsmarket/security"
)

// ListHandler handles GET /v0/markets.
func ListHandler(mm *engine.MarketMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		marketList, err := mm.Markets(r.Context())
		if err != nil {
			http.Error(w, "Failed to list markets", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"markets": marketList,
			"count":   len(marketList),
		})
	}
}

// DetailResponse is a market with its rendered description.
type DetailResponse struct {
	Market          models.Market `json:"market"`
	DescriptionHTML string        `json:"descriptionHtml,omitempty"`
}

// DetailHandler handles GET /v0/markets/{conditionId}.
func DetailHandler(mm *engine.MarketMaker, sanitizer *security.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditionID := mux.Vars(r)["conditionId"]

		market, err := mm.Market(r.Context(), conditionID)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		var rendered string
		if market.Description != "" {
			if html, err := sanitizer.RenderDescription(market.Description); err == nil {
				rendered = html
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(DetailResponse{
			Market:          *market,
			DescriptionHTML: rendered,
		})
	}
}

// TradesHandler handles GET /v0/markets/{conditionId}/trades.
func TradesHandler(mm *engine.MarketMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditionID := mux.Vars(r)["conditionId"]

		trades, err := mm.Trades(r.Context(), conditionID)
		if err != nil {
			http.Error(w, "Failed to list trades", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"conditionId": conditionID,
			"trades":      trades,
			"count":       len(trades),
		})
	}
}
