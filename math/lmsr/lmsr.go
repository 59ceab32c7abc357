// Package lmsr implements the Logarithmic Market Scoring Rule (LMSR)
// originally developed by Robin Hanson, in its liquidity-sensitive variant
// (Othman, Sandholm, Pennock, Reeves 2010).
//
// The cost function is C(q) = b * ln(sum of exp(q_i / b)). LMSR provides:
// - Bounded loss for the market maker
// - Always available liquidity
// - Price = probability interpretation
//
// In the liquidity-sensitive variant b is not constant: it grows with the
// outstanding share quantities, so prices firm up as the market trades.
// Which rule supplies b is a policy decision, kept behind LiquidityPolicy.
//
// All arithmetic is deterministic 64.64 fixed point; quantities and payments
// are integer share/collateral units.
package lmsr

import (
	"errors"

	"lsmarket/math/fixedpoint"
)

// ErrConvergenceFailure is returned when the share solver does not converge
// within its iteration budget. Fatal for that trade; never retried here.
var ErrConvergenceFailure = errors.New("lmsr: share solver did not converge")

// ErrInvalidQuantities is returned for an empty or undersized quantity
// vector or an outcome index outside it.
var ErrInvalidQuantities = errors.New("lmsr: invalid quantities or outcome")

// LiquidityPolicy supplies the liquidity parameter b for a quantity vector.
// Implementations must return a strictly positive value for every reachable
// vector.
type LiquidityPolicy interface {
	B(quantities []int64) (fixedpoint.Num, error)
}

// FixedLiquidity is the classic LMSR: b is a constant chosen at setup,
// denominated in collateral units.
type FixedLiquidity struct {
	Value int64
}

// B implements LiquidityPolicy.
func (p FixedLiquidity) B(_ []int64) (fixedpoint.Num, error) {
	if p.Value <= 0 {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	return fixedpoint.FromInt64(p.Value), nil
}

// AdaptiveLiquidity is the liquidity-sensitive rule b(q) = beta * sum(q_i),
// with beta expressed in basis points. Positive seed quantities guarantee
// b > 0 for every reachable vector.
type AdaptiveLiquidity struct {
	BetaBps int64
}

// B implements LiquidityPolicy.
func (p AdaptiveLiquidity) B(quantities []int64) (fixedpoint.Num, error) {
	if p.BetaBps <= 0 {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	var total int64
	for _, q := range quantities {
		total += q
	}
	if total <= 0 {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	beta, err := fixedpoint.Ratio(p.BetaBps, 10000)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	return beta.Mul(fixedpoint.FromInt64(total))
}

// Engine evaluates the cost function and its inverse for one market.
type Engine struct {
	policy  LiquidityPolicy
	maxIter int
}

// New creates an engine with the given liquidity policy and solver
// iteration budget.
func New(policy LiquidityPolicy, maxIter int) *Engine {
	if maxIter <= 0 {
		maxIter = 128
	}
	return &Engine{policy: policy, maxIter: maxIter}
}

// Cost computes C(q) = b*ln(sum exp(q_i/b)) using the log-sum-exp trick:
// with m = max(q), C = m + b*ln(sum exp((q_i-m)/b)). Every exponent is then
// non-positive, so exp never overflows regardless of the quantity scale.
func (e *Engine) Cost(quantities []int64) (fixedpoint.Num, error) {
	if len(quantities) < 2 {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	b, err := e.policy.B(quantities)
	if err != nil {
		return fixedpoint.Num{}, err
	}

	sum, err := e.expSum(quantities, b)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	lnSum, err := sum.Ln()
	if err != nil {
		return fixedpoint.Num{}, err
	}
	tail, err := b.Mul(lnSum)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	return fixedpoint.FromInt64(maxOf(quantities)).Add(tail)
}

// Prices returns the marginal price vector p_i = exp(q_i/b)/sum_j exp(q_j/b).
// The vector is a softmax, so it sums to 1 up to fixed-point rounding.
func (e *Engine) Prices(quantities []int64) ([]fixedpoint.Num, error) {
	if len(quantities) < 2 {
		return nil, ErrInvalidQuantities
	}
	b, err := e.policy.B(quantities)
	if err != nil {
		return nil, err
	}

	m := maxOf(quantities)
	terms := make([]fixedpoint.Num, len(quantities))
	total := fixedpoint.Zero()
	for i, q := range quantities {
		x, err := fixedpoint.FromInt64(q - m).Div(b)
		if err != nil {
			return nil, err
		}
		ex, err := x.Exp()
		if err != nil {
			return nil, err
		}
		terms[i] = ex
		if total, err = total.Add(ex); err != nil {
			return nil, err
		}
	}

	prices := make([]fixedpoint.Num, len(quantities))
	for i, t := range terms {
		if prices[i], err = t.Div(total); err != nil {
			return nil, err
		}
	}
	return prices, nil
}

// Price returns the marginal price of a single outcome.
func (e *Engine) Price(quantities []int64, outcome int) (fixedpoint.Num, error) {
	if outcome < 0 || outcome >= len(quantities) {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	prices, err := e.Prices(quantities)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	return prices[outcome], nil
}

// CostOfTrade returns C(q with q_outcome += delta) - C(q). Under an adaptive
// policy both evaluations use their own b, consistent with the quantities
// they see. delta may be negative for sells.
func (e *Engine) CostOfTrade(quantities []int64, outcome int, delta int64) (fixedpoint.Num, error) {
	if outcome < 0 || outcome >= len(quantities) {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	before, err := e.Cost(quantities)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	after := make([]int64, len(quantities))
	copy(after, quantities)
	after[outcome] += delta
	if after[outcome] < 0 {
		return fixedpoint.Num{}, ErrInvalidQuantities
	}
	afterCost, err := e.Cost(after)
	if err != nil {
		return fixedpoint.Num{}, err
	}
	return afterCost.Sub(before)
}

// SharesForPayment solves the inverse problem: the largest whole-share delta
// whose cost does not exceed payment. C is strictly increasing in delta, so
// an integer binary search is exact; the doubling phase that brackets the
// answer is capped and fails with ErrConvergenceFailure if exhausted.
func (e *Engine) SharesForPayment(quantities []int64, outcome int, payment fixedpoint.Num) (int64, error) {
	if outcome < 0 || outcome >= len(quantities) {
		return 0, ErrInvalidQuantities
	}
	if payment.Sign() <= 0 {
		return 0, nil
	}

	// Bracket: grow hi until buying hi shares costs more than the payment.
	var hi int64 = 1
	bracketed := false
	for i := 0; i < e.maxIter; i++ {
		cost, err := e.CostOfTrade(quantities, outcome, hi)
		if err != nil {
			return 0, err
		}
		if cost.Cmp(payment) > 0 {
			bracketed = true
			break
		}
		if hi > (1 << 61) {
			return 0, ErrConvergenceFailure
		}
		hi *= 2
	}
	if !bracketed {
		return 0, ErrConvergenceFailure
	}

	// Largest delta in [0, hi) with cost <= payment.
	lo := int64(0)
	for lo < hi-1 {
		mid := lo + (hi-lo)/2
		cost, err := e.CostOfTrade(quantities, outcome, mid)
		if err != nil {
			return 0, err
		}
		if cost.Cmp(payment) <= 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// MaxLiability returns the worst-case total payout for the vector, i.e. the
// largest single outcome quantity under 1:1 redemption.
func MaxLiability(quantities []int64) int64 {
	return maxOf(quantities)
}

func (e *Engine) expSum(quantities []int64, b fixedpoint.Num) (fixedpoint.Num, error) {
	m := maxOf(quantities)
	sum := fixedpoint.Zero()
	for _, q := range quantities {
		x, err := fixedpoint.FromInt64(q - m).Div(b)
		if err != nil {
			return fixedpoint.Num{}, err
		}
		ex, err := x.Exp()
		if err != nil {
			return fixedpoint.Num{}, err
		}
		if sum, err = sum.Add(ex); err != nil {
			return fixedpoint.Num{}, err
		}
	}
	return sum, nil
}

func maxOf(quantities []int64) int64 {
	m := quantities[0]
	for _, q := range quantities[1:] {
		if q > m {
			m = q
		}
	}
	return m
}
