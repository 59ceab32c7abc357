package engine

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lsmarket/models"
)

// ConditionalTokenLedger tracks per-(condition, outcome, holder) share
// balances. One ledger serves every market via composite keys; rows are
// created implicitly on first mint. Mint and Burn are only reached through
// the MarketMaker inside its transactions.
type ConditionalTokenLedger struct{}

// NewConditionalTokenLedger returns the shared ledger.
func NewConditionalTokenLedger() *ConditionalTokenLedger {
	return &ConditionalTokenLedger{}
}

// Mint increases the holder's balance for an outcome.
func (l *ConditionalTokenLedger) Mint(tx *gorm.DB, conditionID string, outcome int, holder string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: mint amount must be positive", ErrInvalidParameters)
	}
	position, err := l.position(tx, conditionID, outcome, holder)
	if err != nil {
		return err
	}
	if position == nil {
		return tx.Create(&models.OutcomePosition{
			ConditionID: conditionID,
			Outcome:     outcome,
			Holder:      holder,
			Shares:      amount,
		}).Error
	}
	position.Shares += amount
	return tx.Save(position).Error
}

// Burn decreases the holder's balance for an outcome. Fails with
// ErrInsufficientBalance if amount exceeds the held shares.
func (l *ConditionalTokenLedger) Burn(tx *gorm.DB, conditionID string, outcome int, holder string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: burn amount must be positive", ErrInvalidParameters)
	}
	position, err := l.position(tx, conditionID, outcome, holder)
	if err != nil {
		return err
	}
	if position == nil || position.Shares < amount {
		return fmt.Errorf("%w: burn %d of outcome %d for %s", ErrInsufficientBalance, amount, outcome, holder)
	}
	position.Shares -= amount
	return tx.Save(position).Error
}

// Balance returns the holder's share balance for one outcome.
func (l *ConditionalTokenLedger) Balance(db *gorm.DB, conditionID string, outcome int, holder string) (int64, error) {
	position, err := l.position(db, conditionID, outcome, holder)
	if err != nil {
		return 0, err
	}
	if position == nil {
		return 0, nil
	}
	return position.Shares, nil
}

// Positions returns every non-zero position the holder has on a condition.
func (l *ConditionalTokenLedger) Positions(db *gorm.DB, conditionID, holder string) ([]models.OutcomePosition, error) {
	var positions []models.OutcomePosition
	err := db.Where("condition_id = ? AND holder = ? AND shares > 0", conditionID, holder).
		Order("outcome ASC").Find(&positions).Error
	return positions, err
}

// HolderPositions returns every non-zero position the holder has anywhere.
func (l *ConditionalTokenLedger) HolderPositions(db *gorm.DB, holder string) ([]models.OutcomePosition, error) {
	var positions []models.OutcomePosition
	err := db.Where("holder = ? AND shares > 0", holder).
		Order("condition_id ASC, outcome ASC").Find(&positions).Error
	return positions, err
}

// OutcomeSupply returns the total shares held across holders for an outcome.
// The market's seed shares are not in the ledger, so supply plus seed equals
// the market's recorded quantity.
func (l *ConditionalTokenLedger) OutcomeSupply(db *gorm.DB, conditionID string, outcome int) (int64, error) {
	var total int64
	err := db.Model(&models.OutcomePosition{}).
		Where("condition_id = ? AND outcome = ?", conditionID, outcome).
		Select("COALESCE(SUM(shares), 0)").Scan(&total).Error
	return total, err
}

func (l *ConditionalTokenLedger) position(db *gorm.DB, conditionID string, outcome int, holder string) (*models.OutcomePosition, error) {
	var position models.OutcomePosition
	err := db.Where("condition_id = ? AND outcome = ? AND holder = ?", conditionID, outcome, holder).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}
