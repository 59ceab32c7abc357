package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade sides.
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade records one committed buy or sell against a market. Payment is the
// collateral moved: the full amount pulled in on a buy, the net refund paid
// out on a sell.
type Trade struct {
	gorm.Model
	TradeID     string    `json:"tradeId" gorm:"uniqueIndex;not null;size:36"`
	ConditionID string    `json:"conditionId" gorm:"not null;size:66;index"`
	Holder      string    `json:"holder" gorm:"not null;size:50;index"`
	Side        string    `json:"side" gorm:"not null"`
	Outcome     int       `json:"outcome" gorm:"not null"`
	Payment     int64     `json:"payment" gorm:"not null"`
	Shares      int64     `json:"shares" gorm:"not null"`
	ExecutedAt  time.Time `json:"executedAt"`
}
