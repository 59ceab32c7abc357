package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lsmarket/math/fixedpoint"
	"lsmarket/math/lmsr"
	"lsmarket/models"
)

const (
	bpsDenominator = 10000
	maxInt64       = int64(^uint64(0) >> 1)
)

// MarketMaker owns all market state and is the only writer of it. Mutating
// operations take a per-condition mutex and run inside one gorm transaction,
// so a trade either commits every effect (collateral move, mint/burn,
// quantity update, solvency check) or none. Distinct conditions never
// contend.
type MarketMaker struct {
	db         *gorm.DB
	collateral CollateralAdapter
	ledger     *ConditionalTokenLedger
	solverIter int

	mu    sync.Mutex
	locks map[string]*condLock
}

// condLock is a per-condition mutex with a waiter count, so entries can be
// dropped from the map once nobody holds or wants them.
type condLock struct {
	mu   sync.Mutex
	refs int
}

// NewMarketMaker wires the market maker over its collaborators.
func NewMarketMaker(db *gorm.DB, collateral CollateralAdapter, ledger *ConditionalTokenLedger, solverIter int) *MarketMaker {
	return &MarketMaker{
		db:         db,
		collateral: collateral,
		ledger:     ledger,
		solverIter: solverIter,
		locks:      make(map[string]*condLock),
	}
}

// SetupParams are the operator-supplied market parameters.
type SetupParams struct {
	ConditionID    string
	Question       string
	Description    string
	NumOutcomes    int
	LiquidityMode  string
	B              int64 // fixed mode
	BetaBps        int64 // adaptive mode
	InitialSubsidy int64
	OverroundBps   int64
	Operator       string
}

// Setup creates a market: pulls the subsidy from the operator, seeds the
// quantity vector evenly so initial prices are uniform, and opens trading.
func (m *MarketMaker) Setup(ctx context.Context, p SetupParams) (*models.Market, error) {
	if err := validateSetup(p); err != nil {
		return nil, err
	}

	unlock := m.lockCondition(p.ConditionID)
	defer unlock()

	seed := p.InitialSubsidy / int64(p.NumOutcomes)
	quantities := make([]int64, p.NumOutcomes)
	for i := range quantities {
		quantities[i] = seed
	}

	market := &models.Market{
		ConditionID:       p.ConditionID,
		Question:          p.Question,
		Description:       p.Description,
		NumOutcomes:       p.NumOutcomes,
		Quantities:        quantities,
		LiquidityMode:     p.LiquidityMode,
		B:                 p.B,
		BetaBps:           p.BetaBps,
		OverroundBps:      p.OverroundBps,
		CollateralBalance: p.InitialSubsidy,
		Status:            models.MarketStatusOpen,
		Operator:          p.Operator,
	}

	// The liquidity policy must already be positive on the seed vector,
	// otherwise the first price query would fail.
	if _, err := m.engineFor(market).Prices(quantities); err != nil {
		return nil, fmt.Errorf("%w: liquidity parameters reject seed quantities", ErrInvalidParameters)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Market
		err := tx.Where("condition_id = ?", p.ConditionID).First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyInitialized, p.ConditionID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := m.collateral.TransferIn(tx, p.Operator, p.InitialSubsidy); err != nil {
			return err
		}
		return tx.Create(market).Error
	})
	if err != nil {
		return nil, err
	}
	return market, nil
}

// Buy charges the full payment, mints the share amount the effective payment
// (after the overround fee) buys under the cost function, and commits only
// if the market stays solvent.
func (m *MarketMaker) Buy(ctx context.Context, conditionID, holder string, outcome int, payment int64) (*models.Trade, error) {
	if payment <= 0 {
		return nil, fmt.Errorf("%w: payment must be positive", ErrInvalidParameters)
	}

	unlock := m.lockCondition(conditionID)
	defer unlock()

	var trade *models.Trade
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		market, err := loadOpenMarket(tx, conditionID)
		if err != nil {
			return err
		}
		if outcome < 0 || outcome >= market.NumOutcomes {
			return fmt.Errorf("%w: outcome %d out of range", ErrInvalidParameters, outcome)
		}

		effective, err := effectivePayment(payment, market.OverroundBps)
		if err != nil {
			return err
		}
		shares, err := m.engineFor(market).SharesForPayment(market.Quantities, outcome, effective)
		if err != nil {
			return mapPricingErr(err)
		}
		if shares <= 0 {
			return fmt.Errorf("%w: payment too small to buy a whole share", ErrInvalidParameters)
		}

		if market.CollateralBalance > maxInt64-payment || market.Quantities[outcome] > maxInt64-shares {
			return fixedpoint.ErrNumericOverflow
		}

		if err := m.collateral.TransferIn(tx, holder, payment); err != nil {
			return err
		}
		if err := m.ledger.Mint(tx, conditionID, outcome, holder, shares); err != nil {
			return err
		}

		market.Quantities[outcome] += shares
		market.CollateralBalance += payment
		if market.CollateralBalance < market.WorstCaseLiability() {
			return fmt.Errorf("%w: balance %d below liability %d",
				ErrInsufficientCollateral, market.CollateralBalance, market.WorstCaseLiability())
		}
		if err := tx.Save(market).Error; err != nil {
			return err
		}

		trade = &models.Trade{
			TradeID:     uuid.NewString(),
			ConditionID: conditionID,
			Holder:      holder,
			Side:        models.TradeSideBuy,
			Outcome:     outcome,
			Payment:     payment,
			Shares:      shares,
			ExecutedAt:  time.Now().UTC(),
		}
		return tx.Create(trade).Error
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// Sell burns shares and refunds their cost-function value net of the
// overround fee, subject to the same post-trade solvency check as Buy.
func (m *MarketMaker) Sell(ctx context.Context, conditionID, holder string, outcome int, shares int64) (*models.Trade, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("%w: share amount must be positive", ErrInvalidParameters)
	}

	unlock := m.lockCondition(conditionID)
	defer unlock()

	var trade *models.Trade
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		market, err := loadOpenMarket(tx, conditionID)
		if err != nil {
			return err
		}
		if outcome < 0 || outcome >= market.NumOutcomes {
			return fmt.Errorf("%w: outcome %d out of range", ErrInvalidParameters, outcome)
		}

		// C(q) - C(q - delta), i.e. the negated cost of a negative trade.
		drop, err := m.engineFor(market).CostOfTrade(market.Quantities, outcome, -shares)
		if err != nil {
			return mapPricingErr(err)
		}
		refund, err := netRefund(drop.Neg(), market.OverroundBps)
		if err != nil {
			return err
		}
		if refund <= 0 {
			return fmt.Errorf("%w: refund rounds to zero", ErrInvalidParameters)
		}
		if refund > market.CollateralBalance {
			return fmt.Errorf("%w: refund %d exceeds pool %d", ErrInsufficientReserve, refund, market.CollateralBalance)
		}

		if err := m.ledger.Burn(tx, conditionID, outcome, holder, shares); err != nil {
			return err
		}
		market.Quantities[outcome] -= shares
		market.CollateralBalance -= refund
		if market.CollateralBalance < market.WorstCaseLiability() {
			return fmt.Errorf("%w: balance %d below liability %d",
				ErrInsufficientCollateral, market.CollateralBalance, market.WorstCaseLiability())
		}
		if err := m.collateral.TransferOut(tx, holder, refund); err != nil {
			return err
		}
		if err := tx.Save(market).Error; err != nil {
			return err
		}

		trade = &models.Trade{
			TradeID:     uuid.NewString(),
			ConditionID: conditionID,
			Holder:      holder,
			Side:        models.TradeSideSell,
			Outcome:     outcome,
			Payment:     refund,
			Shares:      shares,
			ExecutedAt:  time.Now().UTC(),
		}
		return tx.Create(trade).Error
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// Resolve flips the market to its terminal state. Irreversible; a second
// call fails because the market is no longer open.
func (m *MarketMaker) Resolve(ctx context.Context, conditionID string, winningOutcome int) (*models.Market, error) {
	unlock := m.lockCondition(conditionID)
	defer unlock()

	var market *models.Market
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		market, err = loadOpenMarket(tx, conditionID)
		if err != nil {
			return err
		}
		if winningOutcome < 0 || winningOutcome >= market.NumOutcomes {
			return fmt.Errorf("%w: winning outcome %d out of range", ErrInvalidParameters, winningOutcome)
		}
		market.Status = models.MarketStatusResolved
		market.WinningOutcome = &winningOutcome
		return tx.Save(market).Error
	})
	if err != nil {
		return nil, err
	}
	return market, nil
}

// Redeem pays the holder's winning-outcome balance 1:1 in collateral and
// burns every balance the holder has on the condition, losing outcomes
// without payout. Idempotent: with no remaining balances it is a paid-zero
// no-op, never a double payment.
func (m *MarketMaker) Redeem(ctx context.Context, conditionID, holder string) (int64, error) {
	unlock := m.lockCondition(conditionID)
	defer unlock()

	var payout int64
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		market, err := loadMarket(tx, conditionID)
		if err != nil {
			return err
		}
		if market.Status != models.MarketStatusResolved || market.WinningOutcome == nil {
			return fmt.Errorf("%w: %s", ErrMarketNotResolved, conditionID)
		}

		positions, err := m.ledger.Positions(tx, conditionID, holder)
		if err != nil {
			return err
		}
		for _, position := range positions {
			if err := m.ledger.Burn(tx, conditionID, position.Outcome, holder, position.Shares); err != nil {
				return err
			}
			if position.Outcome == *market.WinningOutcome {
				payout += position.Shares
			}
		}
		if payout == 0 {
			return nil
		}
		if payout > market.CollateralBalance {
			return fmt.Errorf("%w: payout %d exceeds pool %d", ErrInsufficientReserve, payout, market.CollateralBalance)
		}
		market.CollateralBalance -= payout
		if err := m.collateral.TransferOut(tx, holder, payout); err != nil {
			return err
		}
		return tx.Save(market).Error
	})
	if err != nil {
		return 0, err
	}
	return payout, nil
}

// Price returns the marginal price of one outcome on an open market.
func (m *MarketMaker) Price(ctx context.Context, conditionID string, outcome int) (fixedpoint.Num, error) {
	market, err := m.openMarket(ctx, conditionID)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	if outcome < 0 || outcome >= market.NumOutcomes {
		return fixedpoint.Num{}, fmt.Errorf("%w: outcome %d out of range", ErrInvalidParameters, outcome)
	}
	price, err := m.engineFor(market).Price(market.Quantities, outcome)
	if err != nil {
		return fixedpoint.Num{}, mapPricingErr(err)
	}
	return price, nil
}

// Prices returns the full marginal price vector of an open market.
func (m *MarketMaker) Prices(ctx context.Context, conditionID string) ([]fixedpoint.Num, error) {
	market, err := m.openMarket(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	prices, err := m.engineFor(market).Prices(market.Quantities)
	if err != nil {
		return nil, mapPricingErr(err)
	}
	return prices, nil
}

// Quote is a read-only buy simulation: the shares a payment would mint and
// the prices after, with nothing committed.
type Quote struct {
	Outcome      int
	Payment      int64
	Shares       int64
	PricesAfter  []fixedpoint.Num
	AveragePrice fixedpoint.Num
}

// SimulateBuy quotes a buy without committing it.
func (m *MarketMaker) SimulateBuy(ctx context.Context, conditionID string, outcome int, payment int64) (*Quote, error) {
	if payment <= 0 {
		return nil, fmt.Errorf("%w: payment must be positive", ErrInvalidParameters)
	}
	market, err := m.openMarket(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	if outcome < 0 || outcome >= market.NumOutcomes {
		return nil, fmt.Errorf("%w: outcome %d out of range", ErrInvalidParameters, outcome)
	}

	eng := m.engineFor(market)
	effective, err := effectivePayment(payment, market.OverroundBps)
	if err != nil {
		return nil, err
	}
	shares, err := eng.SharesForPayment(market.Quantities, outcome, effective)
	if err != nil {
		return nil, mapPricingErr(err)
	}
	if shares <= 0 {
		return nil, fmt.Errorf("%w: payment too small to buy a whole share", ErrInvalidParameters)
	}

	after := make([]int64, len(market.Quantities))
	copy(after, market.Quantities)
	after[outcome] += shares
	pricesAfter, err := eng.Prices(after)
	if err != nil {
		return nil, mapPricingErr(err)
	}
	average, err := fixedpoint.Ratio(payment, shares)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Outcome:      outcome,
		Payment:      payment,
		Shares:       shares,
		PricesAfter:  pricesAfter,
		AveragePrice: average,
	}, nil
}

// Market returns a market record by condition id.
func (m *MarketMaker) Market(ctx context.Context, conditionID string) (*models.Market, error) {
	return loadMarket(m.db.WithContext(ctx), conditionID)
}

// Markets lists all markets, newest first.
func (m *MarketMaker) Markets(ctx context.Context) ([]models.Market, error) {
	var markets []models.Market
	err := m.db.WithContext(ctx).Order("created_at DESC").Find(&markets).Error
	return markets, err
}

// Trades lists a market's trade history, newest first.
func (m *MarketMaker) Trades(ctx context.Context, conditionID string) ([]models.Trade, error) {
	var trades []models.Trade
	err := m.db.WithContext(ctx).Where("condition_id = ?", conditionID).
		Order("executed_at DESC, id DESC").Find(&trades).Error
	return trades, err
}

// Ledger exposes the conditional-token ledger for read paths.
func (m *MarketMaker) Ledger() *ConditionalTokenLedger {
	return m.ledger
}

func (m *MarketMaker) engineFor(market *models.Market) *lmsr.Engine {
	var policy lmsr.LiquidityPolicy
	if market.LiquidityMode == models.LiquidityModeFixed {
		policy = lmsr.FixedLiquidity{Value: market.B}
	} else {
		policy = lmsr.AdaptiveLiquidity{BetaBps: market.BetaBps}
	}
	return lmsr.New(policy, m.solverIter)
}

func (m *MarketMaker) openMarket(ctx context.Context, conditionID string) (*models.Market, error) {
	return loadOpenMarket(m.db.WithContext(ctx), conditionID)
}

func (m *MarketMaker) lockCondition(conditionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[conditionID]
	if !ok {
		lock = &condLock{}
		m.locks[conditionID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, conditionID)
		}
		m.mu.Unlock()
	}
}

func loadMarket(db *gorm.DB, conditionID string) (*models.Market, error) {
	var market models.Market
	if err := db.Where("condition_id = ?", conditionID).First(&market).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, conditionID)
		}
		return nil, err
	}
	return &market, nil
}

func loadOpenMarket(db *gorm.DB, conditionID string) (*models.Market, error) {
	market, err := loadMarket(db, conditionID)
	if err != nil {
		return nil, err
	}
	if !market.IsOpen() {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotOpen, conditionID)
	}
	return market, nil
}

func validateSetup(p SetupParams) error {
	if p.ConditionID == "" || p.Question == "" || p.Operator == "" {
		return fmt.Errorf("%w: condition id, question and operator are required", ErrInvalidParameters)
	}
	if p.NumOutcomes < 2 || p.NumOutcomes > 128 {
		return fmt.Errorf("%w: numOutcomes must be in [2, 128]", ErrInvalidParameters)
	}
	if p.InitialSubsidy < int64(p.NumOutcomes) {
		return fmt.Errorf("%w: initial subsidy must seed every outcome", ErrInvalidParameters)
	}
	if p.OverroundBps < 0 || p.OverroundBps >= bpsDenominator {
		return fmt.Errorf("%w: overround must be in [0, 10000)", ErrInvalidParameters)
	}
	switch p.LiquidityMode {
	case models.LiquidityModeFixed:
		if p.B <= 0 {
			return fmt.Errorf("%w: fixed mode requires b > 0", ErrInvalidParameters)
		}
	case models.LiquidityModeAdaptive:
		if p.BetaBps <= 0 {
			return fmt.Errorf("%w: adaptive mode requires betaBps > 0", ErrInvalidParameters)
		}
	default:
		return fmt.Errorf("%w: unknown liquidity mode %q", ErrInvalidParameters, p.LiquidityMode)
	}
	return nil
}

// effectivePayment deducts the overround fee: payment * (10000-bps)/10000.
// Computed in fixed point so large payments cannot overflow int64 math.
func effectivePayment(payment, overroundBps int64) (fixedpoint.Num, error) {
	keep, err := fixedpoint.Ratio(bpsDenominator-overroundBps, bpsDenominator)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	return fixedpoint.FromInt64(payment).Mul(keep)
}

// netRefund applies the overround fee to a gross refund and floors to whole
// collateral units, rounding in the market's favor.
func netRefund(gross fixedpoint.Num, overroundBps int64) (int64, error) {
	keep, err := fixedpoint.Ratio(bpsDenominator-overroundBps, bpsDenominator)
	if err != nil {
		return 0, err
	}
	net, err := gross.Mul(keep)
	if err != nil {
		return 0, err
	}
	return net.Floor()
}

func mapPricingErr(err error) error {
	if errors.Is(err, lmsr.ErrInvalidQuantities) {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	// fixedpoint.ErrNumericOverflow, fixedpoint.ErrInvalidArgument and
	// lmsr.ErrConvergenceFailure surface unchanged: fatal for this call.
	return err
}
