package markets

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"lsmarket/engine"
)

// PriceResponse carries one outcome's marginal price.
type PriceResponse struct {
	ConditionID string          `json:"conditionId"`
	Outcome     int             `json:"outcome"`
	Price       decimal.Decimal `json:"price"`
}

// PriceHandler handles GET /v0/markets/{conditionId}/price/{outcome}.
func PriceHandler(mm *engine.MarketMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		conditionID := vars["conditionId"]
		outcome, err := strconv.Atoi(vars["outcome"])
		if err != nil {
			http.Error(w, "Invalid outcome index", http.StatusBadRequest)
			return
		}

		price, engineErr := mm.Price(r.Context(), conditionID, outcome)
		if engineErr != nil {
			handleEngineError(w, engineErr)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PriceResponse{
			ConditionID: conditionID,
			Outcome:     outcome,
			Price:       price.Decimal(),
		})
	}
}

// PricesHandler handles GET /v0/markets/{conditionId}/prices.
func PricesHandler(mm *engine.MarketMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditionID := mux.Vars(r)["conditionId"]

		prices, err := mm.Prices(r.Context(), conditionID)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		out := make([]decimal.Decimal, len(prices))
		for i, p := range prices {
			out[i] = p.Decimal()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"conditionId": conditionID,
			"prices":      out,
		})
	}
}

// QuoteResponse is a priced but uncommitted buy.
type QuoteResponse struct {
	ConditionID  string            `json:"conditionId"`
	Outcome      int               `json:"outcome"`
	Payment      int64             `json:"payment"`
	Shares       int64             `json:"shares"`
	AveragePrice decimal.Decimal   `json:"averagePrice"`
	PricesAfter  []decimal.Decimal `json:"pricesAfter"`
}

// QuoteHandler handles GET /v0/markets/{conditionId}/quote?outcome=&payment=.
func QuoteHandler(mm *engine.MarketMaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditionID := mux.Vars(r)["conditionId"]

		outcome, err := strconv.Atoi(r.URL.Query().Get("outcome"))
		if err != nil {
			http.Error(w, "Invalid outcome parameter", http.StatusBadRequest)
			return
		}
		payment, err := strconv.ParseInt(r.URL.Query().Get("payment"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid payment parameter", http.StatusBadRequest)
			return
		}

		quote, engineErr := mm.SimulateBuy(r.Context(), conditionID, outcome, payment)
		if engineErr != nil {
			handleEngineError(w, engineErr)
			return
		}

		after := make([]decimal.Decimal, len(quote.PricesAfter))
		for i, p := range quote.PricesAfter {
			after[i] = p.Decimal()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QuoteResponse{
			ConditionID:  conditionID,
			Outcome:      quote.Outcome,
			Payment:      quote.Payment,
			Shares:       quote.Shares,
			AveragePrice: quote.AveragePrice.Decimal(),
			PricesAfter:  after,
		})
	}
}
