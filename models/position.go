package models

import (
	"gorm.io/gorm"
)

// OutcomePosition is one (condition, outcome, holder) share balance.
// Rows are created implicitly on first mint; Shares never goes negative.
type OutcomePosition struct {
	gorm.Model
	ConditionID string `json:"conditionId" gorm:"not null;size:66;uniqueIndex:idx_condition_outcome_holder"`
	Outcome     int    `json:"outcome" gorm:"not null;uniqueIndex:idx_condition_outcome_holder"`
	Holder      string `json:"holder" gorm:"not null;size:50;uniqueIndex:idx_condition_outcome_holder;index"`
	Shares      int64  `json:"shares" gorm:"not null;default:0"`
}
