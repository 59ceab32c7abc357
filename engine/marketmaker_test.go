package engine_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lsmarket/engine"
	"lsmarket/math/fixedpoint"
	"lsmarket/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Market{}, &models.Account{}, &models.OutcomePosition{}, &models.Trade{},
	))
	return db
}

func newMarketMaker(t *testing.T) (*engine.MarketMaker, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	mm := engine.NewMarketMaker(db, engine.NewAccountCollateral(), engine.NewConditionalTokenLedger(), 128)
	return mm, db
}

func fundAccount(t *testing.T, db *gorm.DB, holder string, balance int64) {
	t.Helper()
	key, err := models.GenerateAPIKey()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Account{
		Holder:   holder,
		APIKey:   key,
		Balance:  balance,
		IsActive: true,
	}).Error)
}

func accountBalance(t *testing.T, db *gorm.DB, holder string) int64 {
	t.Helper()
	balance, err := engine.NewAccountCollateral().BalanceOf(db, holder)
	require.NoError(t, err)
	return balance
}

// Reference market used across tests: binary question, subsidy 1000 split
// evenly, 2% overround, liquidity-sensitive b with beta = 25%.
func adaptiveParams() engine.SetupParams {
	return engine.SetupParams{
		ConditionID:    "0xfeedbeef",
		Question:       "Will it rain in Basel tomorrow?",
		NumOutcomes:    2,
		LiquidityMode:  models.LiquidityModeAdaptive,
		BetaBps:        2500,
		InitialSubsidy: 1000,
		OverroundBps:   200,
		Operator:       "operator",
	}
}

func toFloat(n fixedpoint.Num) float64 {
	f, _ := n.Decimal().Float64()
	return f
}

func TestSetup(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)

	assert.Equal(t, []int64{500, 500}, []int64(market.Quantities))
	assert.Equal(t, int64(1000), market.CollateralBalance)
	assert.Equal(t, models.MarketStatusOpen, market.Status)
	assert.Nil(t, market.WinningOutcome)
	assert.Equal(t, int64(4000), accountBalance(t, db, "operator"))

	// Even seed means uniform prices.
	prices, err := mm.Prices(ctx, market.ConditionID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, toFloat(prices[0]), 1e-15)
	assert.InDelta(t, 0.5, toFloat(prices[1]), 1e-15)
}

func TestSetupValidation(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*engine.SetupParams)
	}{
		{"missing question", func(p *engine.SetupParams) { p.Question = "" }},
		{"one outcome", func(p *engine.SetupParams) { p.NumOutcomes = 1 }},
		{"too many outcomes", func(p *engine.SetupParams) { p.NumOutcomes = 129 }},
		{"subsidy below outcome count", func(p *engine.SetupParams) { p.InitialSubsidy = 1 }},
		{"overround at denominator", func(p *engine.SetupParams) { p.OverroundBps = 10000 }},
		{"negative overround", func(p *engine.SetupParams) { p.OverroundBps = -1 }},
		{"unknown mode", func(p *engine.SetupParams) { p.LiquidityMode = "elastic" }},
		{"adaptive without beta", func(p *engine.SetupParams) { p.BetaBps = 0 }},
		{"fixed without b", func(p *engine.SetupParams) {
			p.LiquidityMode = models.LiquidityModeFixed
			p.B = 0
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := adaptiveParams()
			tc.mutate(&p)
			_, err := mm.Setup(ctx, p)
			assert.ErrorIs(t, err, engine.ErrInvalidParameters)
		})
	}
}

func TestSetupDuplicateCondition(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	ctx := context.Background()

	_, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)
	_, err = mm.Setup(ctx, adaptiveParams())
	assert.ErrorIs(t, err, engine.ErrAlreadyInitialized)

	// The failed attempt must not debit the operator again.
	assert.Equal(t, int64(4000), accountBalance(t, db, "operator"))
}

func TestSetupUnderfundedOperator(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 999)

	_, err := mm.Setup(context.Background(), adaptiveParams())
	assert.ErrorIs(t, err, engine.ErrInsufficientBalance)
}

func TestBuy(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)

	trade, err := mm.Buy(ctx, market.ConditionID, "alice", 0, 100)
	require.NoError(t, err)

	// 100 paid, 98 effective after the 2% overround, which buys 133 whole
	// shares at b = 0.25 * 1000.
	assert.Equal(t, int64(133), trade.Shares)
	assert.Equal(t, int64(100), trade.Payment)
	assert.Equal(t, models.TradeSideBuy, trade.Side)
	assert.NotEmpty(t, trade.TradeID)

	assert.Equal(t, int64(400), accountBalance(t, db, "alice"))

	reloaded, err := mm.Market(ctx, market.ConditionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{633, 500}, []int64(reloaded.Quantities))
	assert.Equal(t, int64(1100), reloaded.CollateralBalance)
	assert.GreaterOrEqual(t, reloaded.CollateralBalance, reloaded.WorstCaseLiability())

	held, err := mm.Ledger().Balance(db, market.ConditionID, 0, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(133), held)

	prices, err := mm.Prices(ctx, market.ConditionID)
	require.NoError(t, err)
	assert.InEpsilon(t, 0.6152772105588824, toFloat(prices[0]), 1e-12)
	assert.InDelta(t, 1, toFloat(prices[0])+toFloat(prices[1]), 1e-15)
}

func TestBuyFixedLiquidity(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	ctx := context.Background()

	p := adaptiveParams()
	p.ConditionID = "0xfixed"
	p.LiquidityMode = models.LiquidityModeFixed
	p.B = 10000
	p.BetaBps = 0
	_, err := mm.Setup(ctx, p)
	require.NoError(t, err)

	// With b far above the trade size the price barely moves off 0.5, so 98
	// effective buys almost 2 shares per unit.
	trade, err := mm.Buy(ctx, p.ConditionID, "alice", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(195), trade.Shares)
}

func TestBuyRejections(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	fundAccount(t, db, "pauper", 10)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)

	_, err = mm.Buy(ctx, market.ConditionID, "alice", 0, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)

	_, err = mm.Buy(ctx, market.ConditionID, "alice", 2, 100)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)

	_, err = mm.Buy(ctx, "0xmissing", "alice", 0, 100)
	assert.ErrorIs(t, err, engine.ErrMarketNotFound)

	_, err = mm.Buy(ctx, market.ConditionID, "ghost", 0, 100)
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)

	_, err = mm.Buy(ctx, market.ConditionID, "pauper", 0, 100)
	assert.ErrorIs(t, err, engine.ErrInsufficientBalance)
	assert.Equal(t, int64(10), accountBalance(t, db, "pauper"))

	_, err = mm.Resolve(ctx, market.ConditionID, 0)
	require.NoError(t, err)
	_, err = mm.Buy(ctx, market.ConditionID, "alice", 0, 100)
	assert.ErrorIs(t, err, engine.ErrMarketNotOpen)
}

func TestSell(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)
	_, err = mm.Buy(ctx, market.ConditionID, "alice", 0, 100)
	require.NoError(t, err)

	trade, err := mm.Sell(ctx, market.ConditionID, "alice", 0, 133)
	require.NoError(t, err)

	// Unwinding the position drops the cost function by ~97.28; net of the
	// 2% overround and floored that refunds 95.
	assert.Equal(t, int64(95), trade.Payment)
	assert.Equal(t, models.TradeSideSell, trade.Side)
	assert.Equal(t, int64(495), accountBalance(t, db, "alice"))

	reloaded, err := mm.Market(ctx, market.ConditionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{500, 500}, []int64(reloaded.Quantities))
	assert.Equal(t, int64(1005), reloaded.CollateralBalance)
	assert.GreaterOrEqual(t, reloaded.CollateralBalance, reloaded.WorstCaseLiability())

	held, err := mm.Ledger().Balance(db, market.ConditionID, 0, "alice")
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestSellRejections(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)
	_, err = mm.Buy(ctx, market.ConditionID, "alice", 0, 100)
	require.NoError(t, err)

	_, err = mm.Sell(ctx, market.ConditionID, "alice", 0, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)

	// Holding 133, selling 134 must fail and leave everything untouched.
	_, err = mm.Sell(ctx, market.ConditionID, "alice", 0, 134)
	assert.ErrorIs(t, err, engine.ErrInsufficientBalance)
	held, err := mm.Ledger().Balance(db, market.ConditionID, 0, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(133), held)
	assert.Equal(t, int64(400), accountBalance(t, db, "alice"))

	_, err = mm.Sell(ctx, market.ConditionID, "alice", 1, 10)
	assert.ErrorIs(t, err, engine.ErrInsufficientBalance)

	_, err = mm.Resolve(ctx, market.ConditionID, 0)
	require.NoError(t, err)
	_, err = mm.Sell(ctx, market.ConditionID, "alice", 0, 133)
	assert.ErrorIs(t, err, engine.ErrMarketNotOpen)
}

func TestResolve(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)

	_, err = mm.Resolve(ctx, market.ConditionID, 3)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)

	resolved, err := mm.Resolve(ctx, market.ConditionID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.WinningOutcome)
	assert.Equal(t, 1, *resolved.WinningOutcome)

	// Resolution is terminal.
	_, err = mm.Resolve(ctx, market.ConditionID, 0)
	assert.ErrorIs(t, err, engine.ErrMarketNotOpen)

	_, err = mm.Prices(ctx, market.ConditionID)
	assert.ErrorIs(t, err, engine.ErrMarketNotOpen)
}

func TestRedeem(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	fundAccount(t, db, "bob", 500)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)
	aliceTrade, err := mm.Buy(ctx, market.ConditionID, "alice", 0, 100)
	require.NoError(t, err)
	bobTrade, err := mm.Buy(ctx, market.ConditionID, "bob", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(156), bobTrade.Shares)

	_, err = mm.Redeem(ctx, market.ConditionID, "alice")
	assert.ErrorIs(t, err, engine.ErrMarketNotResolved)

	_, err = mm.Resolve(ctx, market.ConditionID, 0)
	require.NoError(t, err)

	payout, err := mm.Redeem(ctx, market.ConditionID, "alice")
	require.NoError(t, err)
	assert.Equal(t, aliceTrade.Shares, payout)
	assert.Equal(t, int64(400+133), accountBalance(t, db, "alice"))

	// Redemption pays exactly once.
	payout, err = mm.Redeem(ctx, market.ConditionID, "alice")
	require.NoError(t, err)
	assert.Zero(t, payout)
	assert.Equal(t, int64(533), accountBalance(t, db, "alice"))

	// Losing shares burn without payout.
	payout, err = mm.Redeem(ctx, market.ConditionID, "bob")
	require.NoError(t, err)
	assert.Zero(t, payout)
	assert.Equal(t, int64(400), accountBalance(t, db, "bob"))
	held, err := mm.Ledger().Balance(db, market.ConditionID, 1, "bob")
	require.NoError(t, err)
	assert.Zero(t, held)

	reloaded, err := mm.Market(ctx, market.ConditionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200-133), reloaded.CollateralBalance)
}

func TestSimulateBuy(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)

	quote, err := mm.SimulateBuy(ctx, market.ConditionID, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(133), quote.Shares)
	assert.InEpsilon(t, 0.6152772105588824, toFloat(quote.PricesAfter[0]), 1e-12)
	assert.InEpsilon(t, 100.0/133.0, toFloat(quote.AveragePrice), 1e-12)

	// The quote commits nothing.
	reloaded, err := mm.Market(ctx, market.ConditionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{500, 500}, []int64(reloaded.Quantities))
	assert.Equal(t, int64(1000), reloaded.CollateralBalance)

	_, err = mm.SimulateBuy(ctx, market.ConditionID, 0, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)
	_, err = mm.SimulateBuy(ctx, market.ConditionID, 5, 100)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)
}

func TestPriceQueries(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)

	price, err := mm.Price(ctx, market.ConditionID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, toFloat(price), 1e-15)

	_, err = mm.Price(ctx, market.ConditionID, 9)
	assert.ErrorIs(t, err, engine.ErrInvalidParameters)
	_, err = mm.Price(ctx, "0xmissing", 0)
	assert.ErrorIs(t, err, engine.ErrMarketNotFound)
}

func TestTradesHistory(t *testing.T) {
	mm, db := newMarketMaker(t)
	fundAccount(t, db, "operator", 5000)
	fundAccount(t, db, "alice", 500)
	ctx := context.Background()

	market, err := mm.Setup(ctx, adaptiveParams())
	require.NoError(t, err)
	_, err = mm.Buy(ctx, market.ConditionID, "alice", 0, 100)
	require.NoError(t, err)
	_, err = mm.Sell(ctx, market.ConditionID, "alice", 0, 50)
	require.NoError(t, err)

	trades, err := mm.Trades(ctx, market.ConditionID)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, models.TradeSideSell, trades[0].Side)
	assert.Equal(t, models.TradeSideBuy, trades[1].Side)
}
