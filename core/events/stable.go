package events

import (
	"strconv"

	"stablecore/core/types"
	"stablecore/crypto"
)

const (
	TypeCollateralDeposited = "stable.deposited"
	TypeCollateralRedeemed  = "stable.redeemed"
	TypePositionLiquidated  = "stable.liquidated"
	TypeProtocolFee         = "stable.fee"

	TypeHealthFactorCritical  = "risk.health_critical"
	TypeCollateralizationHigh = "risk.collateralization_high"

	TypeOracleDegraded = "oracle.degraded"
)

// CollateralDeposited records a successful deposit-and-mint operation.
type CollateralDeposited struct {
	Owner            crypto.Address
	Collateral       uint64
	Minted           uint64
	Fee              uint64
	CollateralTotal  uint64
	MintedTotal      uint64
	HealthFactor     uint64
	CollateralRatio  uint64
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"owner":           e.Owner.String(),
			"collateral":      formatAmount(e.Collateral),
			"minted":          formatAmount(e.Minted),
			"fee":             formatAmount(e.Fee),
			"collateralTotal": formatAmount(e.CollateralTotal),
			"mintedTotal":     formatAmount(e.MintedTotal),
			"healthFactor":    formatAmount(e.HealthFactor),
			"collateralRatio": formatAmount(e.CollateralRatio),
		},
	}
}

// CollateralRedeemed records a successful redeem-and-burn operation.
type CollateralRedeemed struct {
	Owner           crypto.Address
	Collateral      uint64
	Burned          uint64
	Fee             uint64
	CollateralTotal uint64
	MintedTotal     uint64
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralRedeemed,
		Attributes: map[string]string{
			"owner":           e.Owner.String(),
			"collateral":      formatAmount(e.Collateral),
			"burned":          formatAmount(e.Burned),
			"fee":             formatAmount(e.Fee),
			"collateralTotal": formatAmount(e.CollateralTotal),
			"mintedTotal":     formatAmount(e.MintedTotal),
		},
	}
}

// PositionLiquidated records the economics of a completed liquidation,
// including the post-liquidation health factor for observability.
type PositionLiquidated struct {
	Owner            crypto.Address
	Liquidator       crypto.Address
	Burned           uint64
	Collateral       uint64
	Bonus            uint64
	ProtocolFee      uint64
	Payout           uint64
	HealthFactor     uint64
	PostHealthFactor uint64
}

func (PositionLiquidated) EventType() string { return TypePositionLiquidated }

func (e PositionLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypePositionLiquidated,
		Attributes: map[string]string{
			"owner":            e.Owner.String(),
			"liquidator":       e.Liquidator.String(),
			"burned":           formatAmount(e.Burned),
			"collateral":       formatAmount(e.Collateral),
			"bonus":            formatAmount(e.Bonus),
			"protocolFee":      formatAmount(e.ProtocolFee),
			"payout":           formatAmount(e.Payout),
			"healthFactor":     formatAmount(e.HealthFactor),
			"postHealthFactor": formatAmount(e.PostHealthFactor),
		},
	}
}

// ProtocolFee records a fee routed to the configured recipient.
type ProtocolFee struct {
	Recipient crypto.Address
	Operation string
	Amount    uint64
}

func (ProtocolFee) EventType() string { return TypeProtocolFee }

func (e ProtocolFee) Event() *types.Event {
	return &types.Event{
		Type: TypeProtocolFee,
		Attributes: map[string]string{
			"recipient": e.Recipient.String(),
			"operation": e.Operation,
			"amount":    formatAmount(e.Amount),
		},
	}
}

// HealthFactorCritical is an advisory warning emitted when a position passes
// the minimum health factor but sits below the critical threshold.
type HealthFactorCritical struct {
	Owner        crypto.Address
	HealthFactor uint64
	Critical     uint64
}

func (HealthFactorCritical) EventType() string { return TypeHealthFactorCritical }

func (e HealthFactorCritical) Event() *types.Event {
	return &types.Event{
		Type: TypeHealthFactorCritical,
		Attributes: map[string]string{
			"owner":        e.Owner.String(),
			"healthFactor": formatAmount(e.HealthFactor),
			"critical":     formatAmount(e.Critical),
		},
	}
}

// CollateralizationHigh is an advisory warning for positions collateralized
// above the recommended ceiling. It never blocks an operation.
type CollateralizationHigh struct {
	Owner   crypto.Address
	Ratio   uint64
	Ceiling uint64
}

func (CollateralizationHigh) EventType() string { return TypeCollateralizationHigh }

func (e CollateralizationHigh) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralizationHigh,
		Attributes: map[string]string{
			"owner":   e.Owner.String(),
			"ratio":   formatAmount(e.Ratio),
			"ceiling": formatAmount(e.Ceiling),
		},
	}
}

// OracleDegraded signals that the backup price feed was unavailable and the
// aggregator proceeded on the primary feed alone.
type OracleDegraded struct {
	PrimaryFeed string
	BackupFeed  string
	Reason      string
}

func (OracleDegraded) EventType() string { return TypeOracleDegraded }

func (e OracleDegraded) Event() *types.Event {
	return &types.Event{
		Type: TypeOracleDegraded,
		Attributes: map[string]string{
			"primaryFeed": e.PrimaryFeed,
			"backupFeed":  e.BackupFeed,
			"reason":      e.Reason,
		},
	}
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
