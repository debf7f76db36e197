package governance

import (
	"errors"
	"strings"
	"testing"
	"time"

	"stablecore/core/events"
	"stablecore/crypto"
	"stablecore/native/fees"
	"stablecore/native/stable"
)

type mockState struct {
	balances  map[string]uint64
	proposals map[uint64]*Proposal
	nextID    uint64
	cfg       *stable.ProtocolConfig
}

func newMockState() *mockState {
	return &mockState{
		balances:  make(map[string]uint64),
		proposals: make(map[uint64]*Proposal),
		cfg:       stable.DefaultConfig(crypto.Address{}),
	}
}

func (m *mockState) GovernanceBalance(addr crypto.Address) (uint64, error) {
	return m.balances[addr.String()], nil
}

func (m *mockState) NextProposalID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) GetProposal(id uint64) (*Proposal, error) {
	return m.proposals[id].Clone(), nil
}

func (m *mockState) PutProposal(p *Proposal) error {
	m.proposals[p.ID] = p.Clone()
	return nil
}

func (m *mockState) ProtocolConfig() (*stable.ProtocolConfig, error) { return m.cfg.Clone(), nil }

func (m *mockState) PutProtocolConfig(cfg *stable.ProtocolConfig) error {
	m.cfg = cfg.Clone()
	return nil
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) { r.events = append(r.events, e) }

func testAddr(last byte) crypto.Address {
	b := make([]byte, 20)
	b[19] = last
	return crypto.NewAddress(crypto.AccountPrefix, b)
}

type govFixture struct {
	engine  *Engine
	state   *mockState
	emitter *recordingEmitter
	now     time.Time
}

func newGovFixture(t *testing.T) *govFixture {
	t.Helper()
	fix := &govFixture{
		engine:  NewEngine(),
		state:   newMockState(),
		emitter: &recordingEmitter{},
		now:     time.Unix(1_700_000_000, 0).UTC(),
	}
	fix.engine.SetState(fix.state)
	fix.engine.SetEmitter(fix.emitter)
	fix.engine.SetNowFunc(func() time.Time { return fix.now })
	return fix
}

func (f *govFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestCreateRequiresThreshold(t *testing.T) {
	fix := newGovFixture(t)
	proposer := testAddr(1)
	fix.state.balances[proposer.String()] = ProposalThreshold - 1

	_, err := fix.engine.Create(proposer, KindMinHealthFactor, 2, FeeUpdate{}, "raise the floor")
	if !errors.Is(err, ErrInsufficientGovernanceBalance) {
		t.Fatalf("expected threshold rejection, got %v", err)
	}
}

func TestCreateProposal(t *testing.T) {
	fix := newGovFixture(t)
	proposer := testAddr(1)
	fix.state.balances[proposer.String()] = ProposalThreshold

	proposal, err := fix.engine.Create(proposer, KindMinHealthFactor, 2, FeeUpdate{}, "raise the floor")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if proposal.Status != ProposalStatusActive {
		t.Fatalf("expected active status, got %s", proposal.Status)
	}
	if proposal.VotesFor != 0 || proposal.VotesAgainst != 0 {
		t.Fatalf("expected zeroed tallies: %+v", proposal)
	}
	if !proposal.VotingEndsAt.Equal(fix.now.Add(VotingPeriod)) {
		t.Fatalf("unexpected deadline %v", proposal.VotingEndsAt)
	}
}

func TestCreateValidation(t *testing.T) {
	fix := newGovFixture(t)
	proposer := testAddr(1)
	fix.state.balances[proposer.String()] = ProposalThreshold

	if _, err := fix.engine.Create(proposer, ProposalKind("bogus"), 1, FeeUpdate{}, ""); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected kind rejection, got %v", err)
	}
	long := strings.Repeat("x", MaxDescriptionLength+1)
	if _, err := fix.engine.Create(proposer, KindMinHealthFactor, 2, FeeUpdate{}, long); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected description rejection, got %v", err)
	}
	if _, err := fix.engine.Create(proposer, KindMinHealthFactor, 0, FeeUpdate{}, ""); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected value rejection, got %v", err)
	}
	if _, err := fix.engine.Create(proposer, KindLiquidationThreshold, 101, FeeUpdate{}, ""); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected threshold bound rejection, got %v", err)
	}
}

func createActive(t *testing.T, fix *govFixture, kind ProposalKind, value uint64) *Proposal {
	t.Helper()
	proposer := testAddr(1)
	fix.state.balances[proposer.String()] = ProposalThreshold
	proposal, err := fix.engine.Create(proposer, kind, value, FeeUpdate{}, "test proposal")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return proposal
}

func TestVoteAccruesBalanceWeight(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000

	if err := fix.engine.Vote(voter, proposal.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := fix.engine.Vote(testAddr(1), proposal.ID, false); err != nil {
		t.Fatalf("vote: %v", err)
	}

	stored, err := fix.engine.Proposal(proposal.ID)
	if err != nil {
		t.Fatalf("proposal: %v", err)
	}
	if stored.VotesFor != 5_000 {
		t.Fatalf("expected 5000 votes for, got %d", stored.VotesFor)
	}
	if stored.VotesAgainst != ProposalThreshold {
		t.Fatalf("expected %d votes against, got %d", ProposalThreshold, stored.VotesAgainst)
	}
}

func TestVoteAfterDeadline(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000

	fix.advance(VotingPeriod + time.Second)
	if err := fix.engine.Vote(voter, proposal.ID, true); !errors.Is(err, ErrVotingEnded) {
		t.Fatalf("expected voting ended, got %v", err)
	}
	stored, _ := fix.engine.Proposal(proposal.ID)
	if stored.VotesFor != 0 || stored.VotesAgainst != 0 {
		t.Fatalf("late vote must not alter tallies: %+v", stored)
	}
}

func TestVoteRequiresPower(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	if err := fix.engine.Vote(testAddr(9), proposal.ID, true); !errors.Is(err, ErrNoVotingPower) {
		t.Fatalf("expected no voting power, got %v", err)
	}
}

func TestVoteOverflowUsesFeeErrorClass(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	whale := testAddr(2)
	fix.state.balances[whale.String()] = ^uint64(0)

	if err := fix.engine.Vote(whale, proposal.ID, true); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := fix.engine.Vote(whale, proposal.ID, true); !errors.Is(err, fees.ErrFeeOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000
	if err := fix.engine.Vote(voter, proposal.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if _, err := fix.engine.Resolve(proposal.ID); !errors.Is(err, ErrVotingOpen) {
		t.Fatalf("expected voting open, got %v", err)
	}
	fix.advance(VotingPeriod + time.Second)
	resolved, err := fix.engine.Resolve(proposal.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != ProposalStatusPassed {
		t.Fatalf("expected passed, got %s", resolved.Status)
	}

	// Resolving again is a no-op.
	again, err := fix.engine.Resolve(proposal.ID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.Status != ProposalStatusPassed {
		t.Fatalf("resolve must be idempotent, got %s", again.Status)
	}
}

func TestResolveTie(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	a, b := testAddr(2), testAddr(3)
	fix.state.balances[a.String()] = 5_000
	fix.state.balances[b.String()] = 5_000
	if err := fix.engine.Vote(a, proposal.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := fix.engine.Vote(b, proposal.ID, false); err != nil {
		t.Fatalf("vote: %v", err)
	}

	fix.advance(VotingPeriod + time.Second)
	resolved, err := fix.engine.Resolve(proposal.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != ProposalStatusRejected {
		t.Fatalf("a tie must reject, got %s", resolved.Status)
	}
}

func TestExecuteAppliesParameterChange(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 3)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000
	if err := fix.engine.Vote(voter, proposal.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}

	fix.advance(VotingPeriod + time.Second)
	if err := fix.engine.Execute(proposal.ID); !errors.Is(err, ErrExecutionDelay) {
		t.Fatalf("expected delay rejection, got %v", err)
	}

	fix.advance(ExecutionDelay)
	if err := fix.engine.Execute(proposal.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if fix.state.cfg.MinHealthFactor != 3 {
		t.Fatalf("expected min health factor 3, got %d", fix.state.cfg.MinHealthFactor)
	}

	if err := fix.engine.Execute(proposal.ID); !errors.Is(err, ErrProposalTerminal) {
		t.Fatalf("second execute must fail, got %v", err)
	}
}

func TestExecuteResolvesActiveProposal(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindLiquidationBonus, 15)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000
	if err := fix.engine.Vote(voter, proposal.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}

	fix.advance(VotingPeriod + ExecutionDelay + time.Second)
	if err := fix.engine.Execute(proposal.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	stored, _ := fix.engine.Proposal(proposal.ID)
	if stored.Status != ProposalStatusExecuted {
		t.Fatalf("expected executed, got %s", stored.Status)
	}
	if fix.state.cfg.LiquidationBonus != 15 {
		t.Fatalf("expected bonus 15, got %d", fix.state.cfg.LiquidationBonus)
	}
}

func TestExecuteQuorum(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)

	fix.advance(VotingPeriod + ExecutionDelay + time.Second)
	if err := fix.engine.Execute(proposal.ID); !errors.Is(err, ErrQuorumNotReached) {
		t.Fatalf("expected quorum rejection, got %v", err)
	}
}

func TestExecuteRejectedTally(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000
	if err := fix.engine.Vote(voter, proposal.ID, false); err != nil {
		t.Fatalf("vote: %v", err)
	}

	fix.advance(VotingPeriod + ExecutionDelay + time.Second)
	if err := fix.engine.Execute(proposal.ID); !errors.Is(err, ErrProposalRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if fix.state.cfg.MinHealthFactor != stable.DefaultMinHealthFactor {
		t.Fatalf("rejected proposal must not mutate config")
	}
}

func TestExecuteAcknowledgedKinds(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindFeeStructure, 0)
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000
	if err := fix.engine.Vote(voter, proposal.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}

	before := fix.state.cfg.Clone()
	fix.advance(VotingPeriod + ExecutionDelay + time.Second)
	if err := fix.engine.Execute(proposal.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	after := fix.state.cfg
	if after.MinHealthFactor != before.MinHealthFactor ||
		after.LiquidationThreshold != before.LiquidationThreshold ||
		after.LiquidationBonus != before.LiquidationBonus ||
		after.Fees != before.Fees {
		t.Fatalf("acknowledged kind must not mutate config")
	}
	stored, _ := fix.engine.Proposal(proposal.ID)
	if stored.Status != ProposalStatusExecuted {
		t.Fatalf("expected executed, got %s", stored.Status)
	}
}

func TestCancel(t *testing.T) {
	fix := newGovFixture(t)
	proposal := createActive(t, fix, KindMinHealthFactor, 2)

	if err := fix.engine.Cancel(testAddr(9), proposal.ID); !errors.Is(err, ErrNotProposer) {
		t.Fatalf("expected proposer rejection, got %v", err)
	}
	if err := fix.engine.Cancel(testAddr(1), proposal.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	voter := testAddr(2)
	fix.state.balances[voter.String()] = 5_000
	if err := fix.engine.Vote(voter, proposal.ID, true); !errors.Is(err, ErrProposalNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
	fix.advance(VotingPeriod + ExecutionDelay + time.Second)
	if err := fix.engine.Execute(proposal.ID); !errors.Is(err, ErrProposalTerminal) {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
}
