package models

import (
	"gorm.io/gorm"
)

// Market status values. A market row only exists after setup, so the
// "uninitialized" state of the lifecycle is simply the absence of a row.
const (
	MarketStatusOpen     = "open"
	MarketStatusResolved = "resolved"
)

// Liquidity policy modes selected at setup.
const (
	LiquidityModeFixed    = "fixed"    // constant b for the whole market life
	LiquidityModeAdaptive = "adaptive" // b scales with total outstanding shares
)

// Market is one LS-LMSR market per condition. Quantities hold the outstanding
// shares per outcome, including the seed shares held by the market itself.
type Market struct {
	gorm.Model
	ConditionID string `json:"conditionId" gorm:"uniqueIndex;not null;size:66"`
	Question    string `json:"question" gorm:"not null;size:160"`
	Description string `json:"description" gorm:"size:2000"`

	NumOutcomes int     `json:"numOutcomes" gorm:"not null"`
	Quantities  []int64 `json:"quantities" gorm:"serializer:json;not null"`

	// Pricing parameters, fixed at setup.
	LiquidityMode string `json:"liquidityMode" gorm:"not null;default:adaptive"`
	B             int64  `json:"b"`       // fixed mode: b in collateral units
	BetaBps       int64  `json:"betaBps"` // adaptive mode: b = betaBps/10000 * sum(q)
	OverroundBps  int64  `json:"overroundBps" gorm:"not null"`

	// Collateral held by the market: initial subsidy plus every payment taken
	// in, minus refunds and redemptions paid out. Invariant after any trade:
	// CollateralBalance >= max_i(Quantities[i]).
	CollateralBalance int64 `json:"collateralBalance" gorm:"not null"`

	Status         string `json:"status" gorm:"not null;index"`
	WinningOutcome *int   `json:"winningOutcome,omitempty"`

	Operator string `json:"operator" gorm:"not null"`
}

// WorstCaseLiability is the maximum total payout the market could owe across
// all outcomes under 1:1 redemption.
func (m *Market) WorstCaseLiability() int64 {
	var max int64
	for _, q := range m.Quantities {
		if q > max {
			max = q
		}
	}
	return max
}

// IsOpen reports whether the market still accepts trades.
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen
}
