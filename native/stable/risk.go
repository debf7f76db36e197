package stable

import (
	"errors"
	"math"
	"math/big"
)

var (
	// ErrBelowMinHealthFactor marks a position whose risk-adjusted collateral
	// no longer covers its debt at the configured minimum.
	ErrBelowMinHealthFactor = errors.New("stable: health factor below minimum")
	// ErrInsufficientCollateralization marks a raw collateralization ratio
	// under the protocol floor.
	ErrInsufficientCollateralization = errors.New("stable: collateralization below minimum ratio")
)

var (
	hundred      = big.NewInt(100)
	haircutNum   = big.NewInt(100 - VolatilityAdjustmentPercent)
	maxUint64Int = new(big.Int).SetUint64(math.MaxUint64)
)

// HealthFactor computes the risk-adjusted health factor for a position holding
// collateral worth collateralUSD against mintedAmount of debt. A zero-debt
// position is trivially safe and short-circuits to the maximum value before
// any division. The collateral value is first discounted by the volatility
// haircut and then scaled by the liquidation threshold; all steps truncate.
func HealthFactor(collateralUSD, mintedAmount, liquidationThreshold uint64) uint64 {
	if mintedAmount == 0 {
		return math.MaxUint64
	}
	adjusted := new(big.Int).SetUint64(collateralUSD)
	adjusted.Mul(adjusted, haircutNum)
	adjusted.Div(adjusted, hundred)
	adjusted.Mul(adjusted, new(big.Int).SetUint64(liquidationThreshold))
	adjusted.Div(adjusted, hundred)
	adjusted.Div(adjusted, new(big.Int).SetUint64(mintedAmount))
	if adjusted.Cmp(maxUint64Int) > 0 {
		return math.MaxUint64
	}
	return adjusted.Uint64()
}

// CollateralizationRatio returns the raw, haircut-free collateral value as a
// percentage of minted debt. Zero debt yields the maximum value.
func CollateralizationRatio(collateralUSD, mintedAmount uint64) uint64 {
	if mintedAmount == 0 {
		return math.MaxUint64
	}
	ratio := new(big.Int).SetUint64(collateralUSD)
	ratio.Mul(ratio, hundred)
	ratio.Div(ratio, new(big.Int).SetUint64(mintedAmount))
	if ratio.Cmp(maxUint64Int) > 0 {
		return math.MaxUint64
	}
	return ratio.Uint64()
}
