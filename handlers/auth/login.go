package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lsmarket/middleware"
	"lsmarket/setup"
)

// LoginRequest carries the operator key.
type LoginRequest struct {
	OperatorKey string `json:"operatorKey"`
}

// LoginResponse returns the session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginHandler handles POST /v0/login. The operator key is checked against
// the configured bcrypt hash; success issues a JWT session.
func LoginHandler(cfg *setup.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.OperatorKey == "" {
			http.Error(w, "Operator key is required", http.StatusBadRequest)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(cfg.Auth.OperatorKeyHash), []byte(req.OperatorKey)); err != nil {
			http.Error(w, "Invalid operator key", http.StatusUnauthorized)
			return
		}

		ttl := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
		token, err := middleware.IssueOperatorToken(cfg.Auth.JWTSecret, ttl)
		if err != nil {
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(LoginResponse{
			Token:     token,
			ExpiresAt: time.Now().Add(ttl),
		})
	}
}
