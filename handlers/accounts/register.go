package accounts

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"lsmarket/models"
)

var (
	validate = validator.New()

	// Letters, digits, dash and underscore only.
	holderPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// RegisterRequest is the request body for creating a trader account.
type RegisterRequest struct {
	Holder string `json:"holder" validate:"required,min=3,max=50"`
}

// RegisterResponse is returned once, with the only copy of the API key.
type RegisterResponse struct {
	Account   models.AccountPublic `json:"account"`
	APIKey    string               `json:"apiKey"`
	Important string               `json:"important"`
}

// RegisterHandler handles POST /v0/accounts.
func RegisterHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req.Holder = strings.TrimSpace(req.Holder)
		if err := validate.Struct(req); err != nil {
			http.Error(w, "Holder must be 3-50 characters", http.StatusBadRequest)
			return
		}
		if !holderPattern.MatchString(req.Holder) {
			http.Error(w, "Holder may only contain letters, digits, '-' and '_'", http.StatusBadRequest)
			return
		}

		var existing models.Account
		if result := db.Where("holder = ?", req.Holder).First(&existing); result.Error == nil {
			http.Error(w, "Holder name already taken", http.StatusConflict)
			return
		}

		apiKey, err := models.GenerateAPIKey()
		if err != nil {
			http.Error(w, "Failed to generate API key", http.StatusInternalServerError)
			return
		}

		account := models.Account{
			Holder:   req.Holder,
			APIKey:   apiKey,
			IsActive: true,
		}
		if result := db.Create(&account); result.Error != nil {
			http.Error(w, "Failed to create account", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(RegisterResponse{
			Account:   account.ToPublic(),
			APIKey:    apiKey,
			Important: "Store this API key now. It cannot be retrieved again.",
		})
	}
}
