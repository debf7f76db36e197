package fees

import (
	"errors"
	"math"
	"testing"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		name     string
		amount   uint64
		bps      uint16
		expected uint64
	}{
		{"mint fee", 10_000, DefaultMintBps, 10},
		{"burn fee", 10_000, DefaultBurnBps, 5},
		{"liquidation fee", 10_000, DefaultLiquidationBps, 50},
		{"truncates", 999, DefaultMintBps, 0},
		{"zero amount", 0, DefaultLiquidationBps, 0},
		{"zero rate", 1_000_000, 0, 0},
		{"full divisor", 12_345, BpsDivisor, 12_345},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, err := Calculate(tc.amount, tc.bps)
			if err != nil {
				t.Fatalf("calculate: %v", err)
			}
			if fee != tc.expected {
				t.Fatalf("fee(%d, %d) = %d, want %d", tc.amount, tc.bps, fee, tc.expected)
			}
		})
	}
}

func TestCalculateWidensLargeAmounts(t *testing.T) {
	fee, err := Calculate(math.MaxUint64, DefaultLiquidationBps)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	expected := uint64(math.MaxUint64) / BpsDivisor * uint64(DefaultLiquidationBps)
	// Allow for the rounding picked up by dividing after the multiply.
	if fee < expected || fee-expected >= uint64(DefaultLiquidationBps) {
		t.Fatalf("fee %d out of range around %d", fee, expected)
	}
}

func TestCalculateOverflow(t *testing.T) {
	if _, err := Calculate(math.MaxUint64, BpsDivisor+1); !errors.Is(err, ErrFeeOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestCalculateMonotonic(t *testing.T) {
	prev := uint64(0)
	for amount := uint64(0); amount <= 100_000; amount += 1_000 {
		fee, err := Calculate(amount, DefaultMintBps)
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if fee < prev {
			t.Fatalf("fee decreased from %d to %d at amount %d", prev, fee, amount)
		}
		prev = fee
	}
}

func TestNetCapsFee(t *testing.T) {
	net, fee, err := Net(10_000, DefaultMintBps)
	if err != nil {
		t.Fatalf("net: %v", err)
	}
	if net != 9_990 || fee != 10 {
		t.Fatalf("unexpected split net=%d fee=%d", net, fee)
	}
}
