package stable

import (
	"errors"
	"math"
	"testing"
	"time"

	"stablecore/native/oracle"
)

// onePerUnit wires a manual feed at a price where one collateral base unit is
// worth exactly one USD unit, keeping the arithmetic in tests legible.
func onePerUnit(t *testing.T, now time.Time) *Valuer {
	t.Helper()
	feed := oracle.NewManualFeed()
	quote := oracle.PriceData{Price: 100_000_000, Conf: 100_000_000, Timestamp: now}
	feed.Set("primary", quote)
	feed.Set("backup", quote)
	return NewValuer(oracle.NewAggregator(feed, "primary", "backup"))
}

func TestHealthFactorZeroDebt(t *testing.T) {
	if hf := HealthFactor(0, 0, DefaultLiquidationThreshold); hf != math.MaxUint64 {
		t.Fatalf("expected max health factor, got %d", hf)
	}
	if hf := HealthFactor(1_000_000, 0, DefaultLiquidationThreshold); hf != math.MaxUint64 {
		t.Fatalf("expected max health factor, got %d", hf)
	}
}

func TestHealthFactorWorkedExample(t *testing.T) {
	// 1000 USD collateral, 5% haircut -> 950, 50% threshold -> 475,
	// 300 debt -> 475/300 truncates to 1.
	hf := HealthFactor(1000, 300, 50)
	if hf != 1 {
		t.Fatalf("expected health factor 1, got %d", hf)
	}
}

func TestHealthFactorTruncates(t *testing.T) {
	if hf := HealthFactor(100, 100, 50); hf != 0 {
		t.Fatalf("expected truncation to 0, got %d", hf)
	}
}

func TestCollateralizationRatio(t *testing.T) {
	if ratio := CollateralizationRatio(1000, 300); ratio != 333 {
		t.Fatalf("expected ratio 333, got %d", ratio)
	}
	if ratio := CollateralizationRatio(1000, 0); ratio != math.MaxUint64 {
		t.Fatalf("expected max ratio for zero debt, got %d", ratio)
	}
}

func TestUSDValueRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	valuer := onePerUnit(t, now)

	usd, err := valuer.USDValue(12_345, now)
	if err != nil {
		t.Fatalf("usd value: %v", err)
	}
	if usd != 12_345 {
		t.Fatalf("expected 12345, got %d", usd)
	}

	qty, err := valuer.AmountForUSD(usd, now)
	if err != nil {
		t.Fatalf("amount for usd: %v", err)
	}
	if qty != 12_345 {
		t.Fatalf("expected 12345, got %d", qty)
	}
}

func TestAmountForUSDRejectsExcessiveMint(t *testing.T) {
	now := time.Now().UTC()
	valuer := onePerUnit(t, now)
	if _, err := valuer.AmountForUSD(MaxMintAmount+1, now); !errors.Is(err, ErrExcessiveMint) {
		t.Fatalf("expected excessive mint error, got %v", err)
	}
}

func TestUSDValuePropagatesOracleFailure(t *testing.T) {
	now := time.Now().UTC()
	feed := oracle.NewManualFeed()
	valuer := NewValuer(oracle.NewAggregator(feed, "primary", "backup"))
	if _, err := valuer.USDValue(100, now); !errors.Is(err, oracle.ErrFeedNotFound) {
		t.Fatalf("expected feed not found, got %v", err)
	}
}
