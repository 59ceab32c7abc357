package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lsmarket/models"
)

// CollateralAdapter moves the collateral asset between trader accounts and
// market custody. All amounts are in the token's native integer unit; the
// engine never assumes particular decimals.
//
// TransferIn debits a holder when the market pulls a payment or subsidy;
// TransferOut credits a holder when the market pays a refund or redemption.
// The market-side pool itself is tracked on the Market record by the caller.
type CollateralAdapter interface {
	TransferIn(tx *gorm.DB, from string, amount int64) error
	TransferOut(tx *gorm.DB, to string, amount int64) error
	Mint(tx *gorm.DB, to string, amount int64) error
	BalanceOf(db *gorm.DB, holder string) (int64, error)
}

// AccountCollateral is the gorm-backed adapter over the accounts table.
// Internal custody has no approve step, so the only way TransferIn fails is
// an underfunded holder.
type AccountCollateral struct{}

// NewAccountCollateral returns the accounts-table collateral adapter.
func NewAccountCollateral() *AccountCollateral {
	return &AccountCollateral{}
}

// TransferIn debits amount from the holder's account.
func (c *AccountCollateral) TransferIn(tx *gorm.DB, from string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidParameters)
	}
	account, err := c.lock(tx, from)
	if err != nil {
		return err
	}
	if account.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from, account.Balance, amount)
	}
	account.Balance -= amount
	return tx.Save(account).Error
}

// TransferOut credits amount to the holder's account.
func (c *AccountCollateral) TransferOut(tx *gorm.DB, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidParameters)
	}
	account, err := c.lock(tx, to)
	if err != nil {
		return err
	}
	account.Balance += amount
	return tx.Save(account).Error
}

// Mint credits freshly issued collateral to a holder. Operator-gated at the
// handler layer; the stand-in for an external token faucet.
func (c *AccountCollateral) Mint(tx *gorm.DB, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: mint amount must be positive", ErrInvalidParameters)
	}
	account, err := c.lock(tx, to)
	if err != nil {
		return err
	}
	account.Balance += amount
	return tx.Save(account).Error
}

// BalanceOf returns the holder's collateral balance.
func (c *AccountCollateral) BalanceOf(db *gorm.DB, holder string) (int64, error) {
	var account models.Account
	if err := db.Where("holder = ?", holder).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, holder)
		}
		return 0, err
	}
	return account.Balance, nil
}

func (c *AccountCollateral) lock(tx *gorm.DB, holder string) (*models.Account, error) {
	var account models.Account
	if err := tx.Where("holder = ?", holder).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, holder)
		}
		return nil, err
	}
	return &account, nil
}
