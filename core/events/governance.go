package events

import (
	"strconv"
	"time"

	"stablecore/core/types"
	"stablecore/crypto"
)

const (
	TypeProposalCreated   = "gov.proposed"
	TypeVoteCast          = "gov.vote"
	TypeProposalResolved  = "gov.resolved"
	TypeProposalExecuted  = "gov.executed"
	TypeProposalCancelled = "gov.cancelled"
)

// ProposalCreated is emitted when a new proposal is accepted into the Active
// state.
type ProposalCreated struct {
	ID           uint64
	Proposer     crypto.Address
	Kind         string
	VotingEndsAt time.Time
}

func (ProposalCreated) EventType() string { return TypeProposalCreated }

func (e ProposalCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeProposalCreated,
		Attributes: map[string]string{
			"id":           strconv.FormatUint(e.ID, 10),
			"proposer":     e.Proposer.String(),
			"kind":         e.Kind,
			"votingEndsAt": strconv.FormatInt(e.VotingEndsAt.Unix(), 10),
		},
	}
}

// VoteCast is emitted when a ballot is recorded against an active proposal.
type VoteCast struct {
	ID           uint64
	Voter        crypto.Address
	Support      bool
	Power        uint64
	VotesFor     uint64
	VotesAgainst uint64
}

func (VoteCast) EventType() string { return TypeVoteCast }

func (e VoteCast) Event() *types.Event {
	return &types.Event{
		Type: TypeVoteCast,
		Attributes: map[string]string{
			"id":           strconv.FormatUint(e.ID, 10),
			"voter":        e.Voter.String(),
			"support":      strconv.FormatBool(e.Support),
			"power":        strconv.FormatUint(e.Power, 10),
			"votesFor":     strconv.FormatUint(e.VotesFor, 10),
			"votesAgainst": strconv.FormatUint(e.VotesAgainst, 10),
		},
	}
}

// ProposalResolved marks the transition out of the Active state once the
// voting window closed and the tally was evaluated.
type ProposalResolved struct {
	ID           uint64
	Status       string
	VotesFor     uint64
	VotesAgainst uint64
}

func (ProposalResolved) EventType() string { return TypeProposalResolved }

func (e ProposalResolved) Event() *types.Event {
	return &types.Event{
		Type: TypeProposalResolved,
		Attributes: map[string]string{
			"id":           strconv.FormatUint(e.ID, 10),
			"status":       e.Status,
			"votesFor":     strconv.FormatUint(e.VotesFor, 10),
			"votesAgainst": strconv.FormatUint(e.VotesAgainst, 10),
		},
	}
}

// ProposalExecuted marks a proposal whose payload has been applied to the
// protocol configuration. Applied is false for the acknowledged no-op kinds.
type ProposalExecuted struct {
	ID      uint64
	Kind    string
	Applied bool
}

func (ProposalExecuted) EventType() string { return TypeProposalExecuted }

func (e ProposalExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeProposalExecuted,
		Attributes: map[string]string{
			"id":      strconv.FormatUint(e.ID, 10),
			"kind":    e.Kind,
			"applied": strconv.FormatBool(e.Applied),
		},
	}
}

// ProposalCancelled marks a proposal withdrawn by its proposer while still
// Active.
type ProposalCancelled struct {
	ID       uint64
	Proposer crypto.Address
}

func (ProposalCancelled) EventType() string { return TypeProposalCancelled }

func (e ProposalCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeProposalCancelled,
		Attributes: map[string]string{
			"id":       strconv.FormatUint(e.ID, 10),
			"proposer": e.Proposer.String(),
		},
	}
}
