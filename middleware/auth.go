package middleware

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"lsmarket/models"
)

// HTTPError carries an auth failure to the handler layer.
type HTTPError struct {
	StatusCode int
	Message    string
}

// ValidateAccountAPIKey validates a trader's API key and returns the
// account. The key comes from the X-Account-API-Key header, or from an
// Authorization bearer token carrying the ls_sk_ prefix.
func ValidateAccountAPIKey(r *http.Request, db *gorm.DB) (*models.Account, *HTTPError) {
	apiKey := r.Header.Get("X-Account-API-Key")
	if apiKey == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ls_sk_") {
			apiKey = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if apiKey == "" {
		return nil, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Account API key required. Use X-Account-API-Key header or 'Bearer <key>' in Authorization header",
		}
	}
	if !strings.HasPrefix(apiKey, "ls_sk_") {
		return nil, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Invalid API key format",
		}
	}

	var account models.Account
	result := db.Where("api_key = ?", apiKey).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, &HTTPError{
				StatusCode: http.StatusUnauthorized,
				Message:    "Invalid account API key",
			}
		}
		return nil, &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Database error validating account",
		}
	}

	if !account.IsActive {
		return nil, &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Account is deactivated",
		}
	}

	return &account, nil
}
