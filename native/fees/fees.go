package fees

import (
	"errors"
	"math/big"
)

// ErrFeeOverflow is returned when a fee computation widens beyond the range
// representable by the protocol's unsigned amounts.
var ErrFeeOverflow = errors.New("fees: amount overflow")

// BpsDivisor is the denominator applied to basis-point rates.
const BpsDivisor = 10_000

// Default basis-point rates charged on protocol operations.
const (
	DefaultMintBps        uint16 = 10
	DefaultBurnBps        uint16 = 5
	DefaultLiquidationBps uint16 = 50
)

// Structure enumerates the basis-point rates charged per operation.
type Structure struct {
	MintBps        uint16 `json:"mintBps"`
	BurnBps        uint16 `json:"burnBps"`
	LiquidationBps uint16 `json:"liquidationBps"`
}

// DefaultStructure returns the protocol's launch fee schedule.
func DefaultStructure() Structure {
	return Structure{
		MintBps:        DefaultMintBps,
		BurnBps:        DefaultBurnBps,
		LiquidationBps: DefaultLiquidationBps,
	}
}

var bpsDivisor = big.NewInt(BpsDivisor)

// Calculate returns the fee owed on amount at the supplied basis-point rate.
// The multiplication is widened so rates applied to amounts near the uint64
// ceiling cannot wrap; results that do not truncate back into uint64 return
// ErrFeeOverflow.
func Calculate(amount uint64, bps uint16) (uint64, error) {
	if amount == 0 || bps == 0 {
		return 0, nil
	}
	fee := new(big.Int).SetUint64(amount)
	fee.Mul(fee, big.NewInt(int64(bps)))
	fee.Div(fee, bpsDivisor)
	if !fee.IsUint64() {
		return 0, ErrFeeOverflow
	}
	return fee.Uint64(), nil
}

// Net returns the amount remaining after deducting the fee at the supplied
// rate along with the fee itself.
func Net(amount uint64, bps uint16) (net uint64, fee uint64, err error) {
	fee, err = Calculate(amount, bps)
	if err != nil {
		return 0, 0, err
	}
	if fee > amount {
		fee = amount
	}
	return amount - fee, fee, nil
}
