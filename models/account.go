package models

import (
	"crypto/rand"
	"encoding/hex"

	"gorm.io/gorm"
)

// Account is a trader account holding collateral. Balances are in the
// collateral token's native integer unit.
type Account struct {
	gorm.Model
	Holder string `json:"holder" gorm:"unique;not null;size:50"`

	// Authentication
	APIKey string `json:"apiKey,omitempty" gorm:"unique;not null"`

	Balance int64 `json:"balance" gorm:"not null;default:0"`

	IsActive bool `json:"isActive" gorm:"default:true"`
}

// AccountPublic is the public-facing account view (hides the API key).
type AccountPublic struct {
	ID      uint   `json:"id"`
	Holder  string `json:"holder"`
	Balance int64  `json:"balance"`
}

// ToPublic converts Account to AccountPublic.
func (a *Account) ToPublic() AccountPublic {
	return AccountPublic{
		ID:      a.ID,
		Holder:  a.Holder,
		Balance: a.Balance,
	}
}

// GenerateAPIKey creates a secure random API key for a trader account.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "ls_sk_" + hex.EncodeToString(bytes), nil
}
