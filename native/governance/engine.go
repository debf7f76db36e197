package governance

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stablecore/core/events"
	"stablecore/crypto"
	nativecommon "stablecore/native/common"
	"stablecore/native/fees"
	"stablecore/native/stable"
)

const moduleName = "governance"

// Governance timing and admission parameters.
const (
	// ProposalThreshold is the minimum governance-token balance required to
	// create a proposal.
	ProposalThreshold = 100_000
	// VotingPeriod is the window during which votes accrue.
	VotingPeriod = 24 * time.Hour
	// ExecutionDelay is the additional wait after the voting deadline before
	// a passed proposal may be executed.
	ExecutionDelay = 12 * time.Hour
	// MaxDescriptionLength bounds the free-text proposal description.
	MaxDescriptionLength = 200
)

var (
	errStateNotConfigured = errors.New("governance: state not configured")

	// ErrInsufficientGovernanceBalance rejects proposals from accounts under
	// the creation threshold.
	ErrInsufficientGovernanceBalance = errors.New("governance: balance below proposal threshold")
	// ErrInvalidKind rejects proposals outside the supported kind set.
	ErrInvalidKind = errors.New("governance: unsupported proposal kind")
	// ErrInvalidValue rejects proposal payloads outside parameter bounds.
	ErrInvalidValue = errors.New("governance: proposal value out of bounds")
	// ErrDescriptionTooLong rejects oversized proposal descriptions.
	ErrDescriptionTooLong = errors.New("governance: description too long")
	// ErrProposalNotFound is returned for unknown proposal identifiers.
	ErrProposalNotFound = errors.New("governance: proposal not found")
	// ErrProposalNotActive rejects votes and cancellations on resolved
	// proposals.
	ErrProposalNotActive = errors.New("governance: proposal not active")
	// ErrVotingEnded rejects votes cast after the deadline.
	ErrVotingEnded = errors.New("governance: voting period ended")
	// ErrVotingOpen rejects resolution while the voting window is open.
	ErrVotingOpen = errors.New("governance: voting period still open")
	// ErrNoVotingPower rejects ballots from accounts holding no governance
	// tokens.
	ErrNoVotingPower = errors.New("governance: voter holds no governance tokens")
	// ErrExecutionDelay rejects execution before the delay has elapsed.
	ErrExecutionDelay = errors.New("governance: execution delay not satisfied")
	// ErrQuorumNotReached rejects execution of proposals nobody voted on.
	ErrQuorumNotReached = errors.New("governance: quorum not reached")
	// ErrProposalRejected rejects execution of a proposal whose tally failed.
	ErrProposalRejected = errors.New("governance: proposal rejected")
	// ErrProposalTerminal rejects operations on cancelled or executed
	// proposals.
	ErrProposalTerminal = errors.New("governance: proposal already finalised")
	// ErrNotProposer rejects cancellation by anyone but the proposer.
	ErrNotProposer = errors.New("governance: caller is not the proposer")
)

type governanceState interface {
	GovernanceBalance(addr crypto.Address) (uint64, error)
	NextProposalID() (uint64, error)
	GetProposal(id uint64) (*Proposal, error)
	PutProposal(p *Proposal) error
	ProtocolConfig() (*stable.ProtocolConfig, error)
	PutProtocolConfig(cfg *stable.ProtocolConfig) error
}

// Engine orchestrates the proposal lifecycle: creation, weighted voting,
// resolution, and delay-gated execution against the protocol configuration.
type Engine struct {
	state   governanceState
	emitter events.Emitter
	nowFn   func() time.Time
	pauses  nativecommon.PauseView
}

// NewEngine constructs a governance engine with no-op dependencies; state is
// wired separately.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state governanceState) { e.state = state }

// SetEmitter configures the event sink. Passing nil restores the no-op
// emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock. Nil restores the UTC default.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	e.nowFn = now
}

// SetPauses wires the host's administrative pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Proposal returns a copy of the stored proposal.
func (e *Engine) Proposal(id uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	p, err := e.state.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProposalNotFound
	}
	return p.Clone(), nil
}

// Create admits a new proposal from proposer. The proposer's governance-token
// balance must meet the creation threshold; parameter payloads are validated
// up front so a passed proposal can always be applied.
func (e *Engine) Create(proposer crypto.Address, kind ProposalKind, value uint64, feeUpdate FeeUpdate, description string) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if len(description) > MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if err := validateValue(kind, value); err != nil {
		return nil, err
	}
	balance, err := e.state.GovernanceBalance(proposer)
	if err != nil {
		return nil, err
	}
	if balance < ProposalThreshold {
		return nil, ErrInsufficientGovernanceBalance
	}
	id, err := e.state.NextProposalID()
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	proposal := &Proposal{
		ID:           id,
		Proposer:     proposer,
		Kind:         kind,
		Value:        value,
		FeeUpdate:    feeUpdate,
		Description:  description,
		CreatedAt:    now,
		VotingEndsAt: now.Add(VotingPeriod),
		Status:       ProposalStatusActive,
	}
	if err := e.state.PutProposal(proposal); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.ProposalCreated{
		ID:           proposal.ID,
		Proposer:     proposer,
		Kind:         string(kind),
		VotingEndsAt: proposal.VotingEndsAt,
	})
	return proposal.Clone(), nil
}

// Vote adds the voter's current governance-token balance to the proposal's
// tally. Voting power is read at vote time and not locked; deduplicating
// repeat ballots is the host's concern, mirroring the balance-snapshot model.
func (e *Engine) Vote(voter crypto.Address, id uint64, support bool) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	proposal, err := e.state.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal == nil {
		return ErrProposalNotFound
	}
	if proposal.Status != ProposalStatusActive {
		return ErrProposalNotActive
	}
	if e.nowFn().After(proposal.VotingEndsAt) {
		return ErrVotingEnded
	}
	power, err := e.state.GovernanceBalance(voter)
	if err != nil {
		return err
	}
	if power == 0 {
		return ErrNoVotingPower
	}
	proposal = proposal.Clone()
	if support {
		sum := proposal.VotesFor + power
		if sum < proposal.VotesFor {
			return fmt.Errorf("governance: vote tally overflow: %w", fees.ErrFeeOverflow)
		}
		proposal.VotesFor = sum
	} else {
		sum := proposal.VotesAgainst + power
		if sum < proposal.VotesAgainst {
			return fmt.Errorf("governance: vote tally overflow: %w", fees.ErrFeeOverflow)
		}
		proposal.VotesAgainst = sum
	}
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.VoteCast{
		ID:           proposal.ID,
		Voter:        voter,
		Support:      support,
		Power:        power,
		VotesFor:     proposal.VotesFor,
		VotesAgainst: proposal.VotesAgainst,
	})
	return nil
}

// Resolve tallies a proposal whose voting window has closed, transitioning
// Active to Passed or Rejected. Resolving an already-resolved proposal is a
// no-op returning its current state.
func (e *Engine) Resolve(id uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	proposal, err := e.state.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, ErrProposalNotFound
	}
	if proposal.Status != ProposalStatusActive {
		return proposal.Clone(), nil
	}
	if !e.nowFn().After(proposal.VotingEndsAt) {
		return nil, ErrVotingOpen
	}
	resolved, err := e.resolveLocked(proposal.Clone())
	if err != nil {
		return nil, err
	}
	return resolved.Clone(), nil
}

// resolveLocked applies the tally outcome and persists it. Callers must have
// verified the voting window is closed.
func (e *Engine) resolveLocked(proposal *Proposal) (*Proposal, error) {
	if proposal.VotesFor > proposal.VotesAgainst {
		proposal.Status = ProposalStatusPassed
	} else {
		proposal.Status = ProposalStatusRejected
	}
	if err := e.state.PutProposal(proposal); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.ProposalResolved{
		ID:           proposal.ID,
		Status:       proposal.Status.String(),
		VotesFor:     proposal.VotesFor,
		VotesAgainst: proposal.VotesAgainst,
	})
	return proposal, nil
}

// Execute applies a passed proposal's parameter change to the protocol
// configuration. The call resolves a still-Active proposal first, requires
// the execution delay beyond the voting deadline, at least one recorded vote,
// and a favourable tally. A second execution of the same proposal fails.
func (e *Engine) Execute(id uint64) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	proposal, err := e.state.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal == nil {
		return ErrProposalNotFound
	}
	if proposal.Status.terminal() {
		return ErrProposalTerminal
	}
	if e.nowFn().Before(proposal.VotingEndsAt.Add(ExecutionDelay)) {
		return ErrExecutionDelay
	}
	proposal = proposal.Clone()
	if proposal.Status == ProposalStatusActive {
		if proposal, err = e.resolveLocked(proposal); err != nil {
			return err
		}
	}
	if proposal.VotesFor == 0 && proposal.VotesAgainst == 0 {
		return ErrQuorumNotReached
	}
	if proposal.Status != ProposalStatusPassed {
		return ErrProposalRejected
	}

	applied, err := e.apply(proposal)
	if err != nil {
		return err
	}
	proposal.Status = ProposalStatusExecuted
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.ProposalExecuted{
		ID:      proposal.ID,
		Kind:    string(proposal.Kind),
		Applied: applied,
	})
	return nil
}

// Cancel withdraws an Active proposal. Only its proposer may cancel.
func (e *Engine) Cancel(caller crypto.Address, id uint64) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	proposal, err := e.state.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal == nil {
		return ErrProposalNotFound
	}
	if proposal.Status != ProposalStatusActive {
		return ErrProposalNotActive
	}
	if !caller.Equal(proposal.Proposer) {
		return ErrNotProposer
	}
	proposal = proposal.Clone()
	proposal.Status = ProposalStatusCancelled
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.ProposalCancelled{ID: proposal.ID, Proposer: proposal.Proposer})
	return nil
}

// apply dispatches the parameter mutation over the closed kind set. The
// oracle-config and fee-structure kinds are acknowledged without effect.
func (e *Engine) apply(proposal *Proposal) (bool, error) {
	switch proposal.Kind {
	case KindMinHealthFactor, KindLiquidationThreshold, KindLiquidationBonus:
		cfg, err := e.state.ProtocolConfig()
		if err != nil {
			return false, err
		}
		cfg = cfg.Clone()
		switch proposal.Kind {
		case KindMinHealthFactor:
			if proposal.Value < stable.MinHealthFactorFloor {
				return false, ErrInvalidValue
			}
			cfg.MinHealthFactor = proposal.Value
		case KindLiquidationThreshold:
			cfg.LiquidationThreshold = proposal.Value
		case KindLiquidationBonus:
			cfg.LiquidationBonus = proposal.Value
		}
		if err := e.state.PutProtocolConfig(cfg); err != nil {
			return false, err
		}
		return true, nil
	case KindOracleConfig, KindFeeStructure:
		slog.Info("governance proposal acknowledged without effect",
			"proposal", proposal.ID,
			"kind", string(proposal.Kind),
		)
		return false, nil
	default:
		return false, ErrInvalidKind
	}
}

func validateValue(kind ProposalKind, value uint64) error {
	switch kind {
	case KindMinHealthFactor:
		if value < stable.MinHealthFactorFloor {
			return ErrInvalidValue
		}
	case KindLiquidationThreshold:
		if value == 0 || value > 100 {
			return ErrInvalidValue
		}
	case KindLiquidationBonus:
		if value > 100 {
			return ErrInvalidValue
		}
	}
	return nil
}
