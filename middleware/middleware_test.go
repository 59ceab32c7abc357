package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lsmarket/middleware"
	"lsmarket/models"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	token, err := middleware.IssueOperatorToken("secret", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v0/markets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Nil(t, middleware.ValidateOperatorToken(req, "secret"))
}

func TestOperatorTokenRejections(t *testing.T) {
	token, err := middleware.IssueOperatorToken("secret", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v0/markets", nil)
	httpErr := middleware.ValidateOperatorToken(req, "secret")
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	req.Header.Set("Authorization", "Bearer "+token)
	httpErr = middleware.ValidateOperatorToken(req, "other-secret")
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	expired, err := middleware.IssueOperatorToken("secret", -time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+expired)
	httpErr = middleware.ValidateOperatorToken(req, "secret")
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestValidateAccountAPIKey(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Account{}))

	key, err := models.GenerateAPIKey()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Account{Holder: "alice", APIKey: key, IsActive: true}).Error)

	// Header form.
	req := httptest.NewRequest(http.MethodGet, "/v0/accounts/me", nil)
	req.Header.Set("X-Account-API-Key", key)
	account, httpErr := middleware.ValidateAccountAPIKey(req, db)
	require.Nil(t, httpErr)
	assert.Equal(t, "alice", account.Holder)

	// Bearer form.
	req = httptest.NewRequest(http.MethodGet, "/v0/accounts/me", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	account, httpErr = middleware.ValidateAccountAPIKey(req, db)
	require.Nil(t, httpErr)
	assert.Equal(t, "alice", account.Holder)

	req = httptest.NewRequest(http.MethodGet, "/v0/accounts/me", nil)
	_, httpErr = middleware.ValidateAccountAPIKey(req, db)
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	req.Header.Set("X-Account-API-Key", "not-a-key")
	_, httpErr = middleware.ValidateAccountAPIKey(req, db)
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	req.Header.Set("X-Account-API-Key", "ls_sk_unknown")
	_, httpErr = middleware.ValidateAccountAPIKey(req, db)
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestValidateAccountAPIKeyInactive(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Account{}))

	key, err := models.GenerateAPIKey()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Account{Holder: "bob", APIKey: key, IsActive: false}).Error)

	req := httptest.NewRequest(http.MethodGet, "/v0/accounts/me", nil)
	req.Header.Set("X-Account-API-Key", key)
	_, httpErr := middleware.ValidateAccountAPIKey(req, db)
	require.NotNil(t, httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	limited := middleware.RateLimit(1, 2)(next)

	send := func(ip, key string) int {
		req := httptest.NewRequest(http.MethodGet, "/v0/markets", nil)
		req.RemoteAddr = ip + ":1234"
		if key != "" {
			req.Header.Set("X-Account-API-Key", key)
		}
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1", ""))
	assert.Equal(t, http.StatusOK, send("10.0.0.1", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1", ""))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.2", ""))
	assert.Equal(t, http.StatusOK, send("10.0.0.1", "ls_sk_somekey"))
}
