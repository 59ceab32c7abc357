// Package server assembles the HTTP surface over the market maker.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/handlers/accounts"
	"lsmarket/handlers/auth"
	"lsmarket/handlers/markets"
	"lsmarket/middleware"
	"lsmarket/security"
	"lsmarket/setup"
)

// Deps are the wired collaborators the router needs.
type Deps struct {
	DB         *gorm.DB
	Config     *setup.Config
	Market     *engine.MarketMaker
	Collateral engine.CollateralAdapter
	Sanitizer  *security.Service
}

// NewRouter builds the versioned API router.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	v0 := r.PathPrefix("/v0").Subrouter()

	v0.HandleFunc("/login", auth.LoginHandler(d.Config)).Methods(http.MethodPost)

	v0.HandleFunc("/accounts", accounts.RegisterHandler(d.DB)).Methods(http.MethodPost)
	v0.HandleFunc("/accounts/me", accounts.MeHandler(d.DB, d.Market)).Methods(http.MethodGet)
	v0.HandleFunc("/accounts/{holder}/mint", accounts.MintHandler(d.DB, d.Collateral, d.Config)).Methods(http.MethodPost)

	v0.HandleFunc("/markets", markets.SetupHandler(d.Market, d.Sanitizer, d.Config)).Methods(http.MethodPost)
	v0.HandleFunc("/markets", markets.ListHandler(d.Market)).Methods(http.MethodGet)
	v0.HandleFunc("/markets/{conditionId}", markets.DetailHandler(d.Market, d.Sanitizer)).Methods(http.MethodGet)
	v0.HandleFunc("/markets/{conditionId}/prices", markets.PricesHandler(d.Market)).Methods(http.MethodGet)
	v0.HandleFunc("/markets/{conditionId}/price/{outcome}", markets.PriceHandler(d.Market)).Methods(http.MethodGet)
	v0.HandleFunc("/markets/{conditionId}/quote", markets.QuoteHandler(d.Market)).Methods(http.MethodGet)
	v0.HandleFunc("/markets/{conditionId}/trades", markets.TradesHandler(d.Market)).Methods(http.MethodGet)
	v0.HandleFunc("/markets/{conditionId}/buy", markets.BuyHandler(d.DB, d.Market, d.Collateral)).Methods(http.MethodPost)
	v0.HandleFunc("/markets/{conditionId}/sell", markets.SellHandler(d.DB, d.Market, d.Collateral)).Methods(http.MethodPost)
	v0.HandleFunc("/markets/{conditionId}/resolve", markets.ResolveHandler(d.Market, d.Config)).Methods(http.MethodPost)
	v0.HandleFunc("/markets/{conditionId}/redeem", markets.RedeemHandler(d.DB, d.Market)).Methods(http.MethodPost)

	return r
}

// Handler wraps the router with CORS and rate limiting.
func Handler(d Deps) http.Handler {
	router := NewRouter(d)

	limited := middleware.RateLimit(d.Config.RateLimit.PerSecond, d.Config.RateLimit.Burst)(router)

	c := cors.New(cors.Options{
		AllowedOrigins: d.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Account-API-Key"},
	})
	return c.Handler(limited)
}
