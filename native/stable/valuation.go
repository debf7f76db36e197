package stable

import (
	"errors"
	"math/big"
	"time"

	"stablecore/native/oracle"
)

var (
	// ErrExcessiveMint is returned when a requested USD amount exceeds the
	// per-operation mint ceiling.
	ErrExcessiveMint = errors.New("stable: mint amount exceeds ceiling")
	// ErrValueOverflow is returned when a valuation does not fit the
	// protocol's unsigned amount range.
	ErrValueOverflow = errors.New("stable: valuation overflow")
)

var (
	decimalAdjustment = big.NewInt(DecimalAdjustment)
	unitSize          = big.NewInt(CollateralUnitSize)
)

// Valuer converts collateral quantities to USD values and back through the
// validated oracle price. All divisions truncate.
type Valuer struct {
	agg *oracle.Aggregator
}

// NewValuer wraps the supplied price aggregator.
func NewValuer(agg *oracle.Aggregator) *Valuer {
	return &Valuer{agg: agg}
}

// USDValue returns the USD value of quantity base units of collateral at the
// current validated price: quantity x (price x decimal adjustment) / unit size.
func (v *Valuer) USDValue(quantity uint64, now time.Time) (uint64, error) {
	price, err := v.agg.ValidatedPrice(now)
	if err != nil {
		return 0, err
	}
	return scaleQuantity(quantity, price)
}

// AmountForUSD is the inverse conversion on the primary feed price: the
// collateral quantity worth the supplied USD amount. Requests above
// MaxMintAmount are rejected before the price is consulted.
func (v *Valuer) AmountForUSD(usd uint64, now time.Time) (uint64, error) {
	if usd > MaxMintAmount {
		return 0, ErrExcessiveMint
	}
	price, err := v.agg.PrimaryPrice(now)
	if err != nil {
		return 0, err
	}
	adjusted := new(big.Int).SetUint64(price)
	adjusted.Mul(adjusted, decimalAdjustment)
	if adjusted.Sign() == 0 {
		return 0, oracle.ErrInvalidPrice
	}
	quantity := new(big.Int).SetUint64(usd)
	quantity.Mul(quantity, unitSize)
	quantity.Div(quantity, adjusted)
	if !quantity.IsUint64() {
		return 0, ErrValueOverflow
	}
	return quantity.Uint64(), nil
}

func scaleQuantity(quantity, price uint64) (uint64, error) {
	value := new(big.Int).SetUint64(quantity)
	adjusted := new(big.Int).SetUint64(price)
	adjusted.Mul(adjusted, decimalAdjustment)
	value.Mul(value, adjusted)
	value.Div(value, unitSize)
	if !value.IsUint64() {
		return 0, ErrValueOverflow
	}
	return value.Uint64(), nil
}
