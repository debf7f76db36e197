package stable

import (
	"stablecore/crypto"
	"stablecore/native/fees"
)

// Position tracks one depositor's collateral vault and outstanding debt.
// Positions are created on first deposit and never deleted; fully unwound
// positions keep zero balances.
type Position struct {
	Owner             crypto.Address `json:"owner"`
	CollateralAccount crypto.Address `json:"collateralAccount"`
	TokenAccount      crypto.Address `json:"tokenAccount"`
	CollateralBalance uint64         `json:"collateralBalance"`
	MintedAmount      uint64         `json:"mintedAmount"`
	Initialized       bool           `json:"initialized"`
}

// Clone returns a deep copy so callers never alias stored positions.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// ProtocolConfig is the deployment-wide risk configuration. It is created once
// at deployment and mutated only through governance execution or an authorized
// direct update.
type ProtocolConfig struct {
	Authority            crypto.Address `json:"authority"`
	FeeRecipient         crypto.Address `json:"feeRecipient"`
	LiquidationThreshold uint64         `json:"liquidationThreshold"`
	LiquidationBonus     uint64         `json:"liquidationBonus"`
	MinHealthFactor      uint64         `json:"minHealthFactor"`
	Fees                 fees.Structure `json:"fees"`
}

// Clone returns a deep copy of the configuration.
func (c *ProtocolConfig) Clone() *ProtocolConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// DefaultConfig returns the launch configuration for the supplied authority.
// The fee recipient is left unset; liquidation fees then stay in the
// position's collateral vault.
func DefaultConfig(authority crypto.Address) *ProtocolConfig {
	return &ProtocolConfig{
		Authority:            authority,
		LiquidationThreshold: DefaultLiquidationThreshold,
		LiquidationBonus:     DefaultLiquidationBonus,
		MinHealthFactor:      DefaultMinHealthFactor,
		Fees:                 fees.DefaultStructure(),
	}
}
