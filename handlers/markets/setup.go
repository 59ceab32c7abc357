package markets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"lsmarket/engine"
	"lsmarket/middleware"
	"lsmarket/models"
	"lsmarket/security"
	"lsmarket/setup"
)

var validate = validator.New()

// SetupRequest is the operator request to create a market.
type SetupRequest struct {
	ConditionID    string `json:"conditionId,omitempty"`
	Question       string `json:"question" validate:"required,min=1,max=160"`
	Description    string `json:"description" validate:"max=2000"`
	NumOutcomes    int    `json:"numOutcomes" validate:"required,gte=2,lte=128"`
	LiquidityMode  string `json:"liquidityMode" validate:"omitempty,oneof=fixed adaptive"`
	B              int64  `json:"b,omitempty"`
	BetaBps        int64  `json:"betaBps,omitempty"`
	InitialSubsidy int64  `json:"initialSubsidy" validate:"required,gt=0"`
	OverroundBps   int64  `json:"overroundBps" validate:"gte=0"`
	Operator       string `json:"operator" validate:"required"`
}

// SetupResponse is returned after market creation.
type SetupResponse struct {
	Success bool          `json:"success"`
	Market  models.Market `json:"market"`
}

// SetupHandler handles POST /v0/markets. Operator only.
func SetupHandler(mm *engine.MarketMaker, sanitizer *security.Service, cfg *setup.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if httpErr := middleware.ValidateOperatorToken(r, cfg.Auth.JWTSecret); httpErr != nil {
			http.Error(w, httpErr.Message, httpErr.StatusCode)
			return
		}

		var req SetupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "Invalid market parameters: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.OverroundBps > cfg.Economics.MaxOverroundBps {
			http.Error(w, "Overround exceeds the configured maximum", http.StatusBadRequest)
			return
		}
		if req.InitialSubsidy < cfg.Economics.MinInitialSubsidy {
			http.Error(w, "Initial subsidy below the configured minimum", http.StatusBadRequest)
			return
		}

		clean, err := sanitizer.ValidateAndSanitize(security.MarketInput{
			Question:    req.Question,
			Description: req.Description,
		})
		if err != nil {
			http.Error(w, "Invalid market text: "+err.Error(), http.StatusBadRequest)
			return
		}

		// The condition id is content-addressed: hash of the question when
		// the request does not pin one explicitly.
		conditionID := req.ConditionID
		if conditionID == "" {
			sum := sha256.Sum256([]byte(clean.Question))
			conditionID = "0x" + hex.EncodeToString(sum[:])
		}

		mode := req.LiquidityMode
		if mode == "" {
			mode = models.LiquidityModeAdaptive
		}
		betaBps := req.BetaBps
		if mode == models.LiquidityModeAdaptive && betaBps == 0 {
			betaBps = cfg.Economics.DefaultBetaBps
		}

		market, err := mm.Setup(r.Context(), engine.SetupParams{
			ConditionID:    conditionID,
			Question:       clean.Question,
			Description:    clean.Description,
			NumOutcomes:    req.NumOutcomes,
			LiquidityMode:  mode,
			B:              req.B,
			BetaBps:        betaBps,
			InitialSubsidy: req.InitialSubsidy,
			OverroundBps:   req.OverroundBps,
			Operator:       req.Operator,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(SetupResponse{Success: true, Market: *market})
	}
}
