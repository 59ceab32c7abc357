package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// OperatorSubject is the JWT subject issued to the authenticated operator.
const OperatorSubject = "operator"

// IssueOperatorToken signs a short-lived operator session token.
func IssueOperatorToken(secret string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   OperatorSubject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateOperatorToken checks the Authorization bearer token and confirms
// it is a live operator session. Authentication of the operator identity
// itself happened at login; this only verifies the session.
func ValidateOperatorToken(r *http.Request, secret string) *HTTPError {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Operator token required in Authorization header",
		}
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Invalid or expired operator token",
		}
	}
	if claims.Subject != OperatorSubject {
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Token is not an operator session",
		}
	}
	return nil
}
