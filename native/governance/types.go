package governance

import (
	"time"

	"stablecore/crypto"
)

// ProposalKind enumerates the closed set of parameter changes governance can
// propose. The set is fixed; execution dispatches exhaustively over it.
type ProposalKind string

const (
	// KindMinHealthFactor updates the protocol's minimum health factor.
	KindMinHealthFactor ProposalKind = "param.min_health_factor"
	// KindLiquidationThreshold updates the liquidation threshold percentage.
	KindLiquidationThreshold ProposalKind = "param.liquidation_threshold"
	// KindLiquidationBonus updates the liquidator bonus percentage.
	KindLiquidationBonus ProposalKind = "param.liquidation_bonus"
	// KindOracleConfig proposes an oracle configuration change. Accepted but
	// not wired to an effect; execution acknowledges it explicitly.
	KindOracleConfig ProposalKind = "oracle.config"
	// KindFeeStructure proposes a fee schedule change. Accepted but not
	// wired to an effect; execution acknowledges it explicitly.
	KindFeeStructure ProposalKind = "fee.structure"
)

// Valid reports whether the kind belongs to the supported set.
func (k ProposalKind) Valid() bool {
	switch k {
	case KindMinHealthFactor, KindLiquidationThreshold, KindLiquidationBonus,
		KindOracleConfig, KindFeeStructure:
		return true
	default:
		return false
	}
}

// ProposalStatus enumerates the lifecycle phases of a proposal. Transitions
// are one-directional: Active resolves to Passed or Rejected once the voting
// window closes, may be Cancelled by its proposer while Active, and only a
// Passed proposal reaches Executed.
type ProposalStatus uint8

const (
	// ProposalStatusUnspecified indicates an uninitialised proposal and
	// should not appear in state.
	ProposalStatusUnspecified ProposalStatus = iota
	// ProposalStatusActive identifies proposals accepting votes.
	ProposalStatusActive
	// ProposalStatusPassed marks proposals whose tally favoured adoption.
	ProposalStatusPassed
	// ProposalStatusRejected marks proposals whose tally failed.
	ProposalStatusRejected
	// ProposalStatusCancelled marks proposals withdrawn by their proposer.
	ProposalStatusCancelled
	// ProposalStatusExecuted marks proposals whose change has been applied.
	ProposalStatusExecuted
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusActive:
		return "active"
	case ProposalStatusPassed:
		return "passed"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusCancelled:
		return "cancelled"
	case ProposalStatusExecuted:
		return "executed"
	default:
		return "unspecified"
	}
}

// terminal reports whether the status admits no further transition besides
// Passed -> Executed.
func (s ProposalStatus) terminal() bool {
	return s == ProposalStatusCancelled || s == ProposalStatusExecuted
}

// FeeUpdate carries the payload of a fee-structure proposal.
type FeeUpdate struct {
	MintBps        uint16 `json:"mintBps"`
	BurnBps        uint16 `json:"burnBps"`
	LiquidationBps uint16 `json:"liquidationBps"`
}

// Proposal captures one governance proposal and its running tally. Votes may
// only accrue while the status is Active and the deadline has not passed.
type Proposal struct {
	ID           uint64         `json:"id"`
	Proposer     crypto.Address `json:"proposer"`
	Kind         ProposalKind   `json:"kind"`
	Value        uint64         `json:"value"`
	FeeUpdate    FeeUpdate      `json:"feeUpdate"`
	Description  string         `json:"description"`
	VotesFor     uint64         `json:"votesFor"`
	VotesAgainst uint64         `json:"votesAgainst"`
	CreatedAt    time.Time      `json:"createdAt"`
	VotingEndsAt time.Time      `json:"votingEndsAt"`
	Status       ProposalStatus `json:"status"`
}

// Clone returns a deep copy so callers never alias stored proposals.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
