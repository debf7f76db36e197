package stable

// Oracle price scaling. Raw quotes carry one fewer decimal than the protocol's
// USD accounting, and collateral quantities are denominated in base units of
// one billionth of a whole asset.
const (
	DecimalAdjustment  = 10
	CollateralUnitSize = 1_000_000_000
)

// MaxMintAmount caps the debt-token amount minted or repaid in a single
// operation.
const MaxMintAmount = 1_000_000_000

// Risk parameters applied by the health-factor and collateralization checks.
const (
	DefaultLiquidationThreshold = 50
	DefaultLiquidationBonus     = 10
	DefaultMinHealthFactor      = 1

	// MinHealthFactorFloor is the lowest minimum health factor governance may
	// configure; below this every position would be instantly liquidatable.
	MinHealthFactorFloor = 1

	// CriticalHealthFactor marks positions that pass the minimum but warrant
	// an advisory warning.
	CriticalHealthFactor = 2

	VolatilityAdjustmentPercent = 5

	MaxCollateralRatioPercent = 300
	MinCollateralRatioPercent = 150
)

// Sub-account derivation seeds for per-position vaults.
const (
	collateralSeed = "stable/collateral"
	tokenSeed      = "stable/token"
)
