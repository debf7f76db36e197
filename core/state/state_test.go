package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stablecore/crypto"
	"stablecore/native/governance"
	"stablecore/native/stable"
	"stablecore/storage"
)

func testAddr(last byte) crypto.Address {
	b := make([]byte, 20)
	b[19] = last
	return crypto.NewAddress(crypto.AccountPrefix, b)
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestPositionRoundTrip(t *testing.T) {
	m := newManager(t)
	owner := testAddr(1)

	missing, err := m.GetPosition(owner)
	require.NoError(t, err)
	require.Nil(t, missing)

	pos := &stable.Position{
		Owner:             owner,
		CollateralAccount: crypto.DeriveAddress("stable/collateral", owner),
		TokenAccount:      crypto.DeriveAddress("stable/token", owner),
		CollateralBalance: 1_000,
		MintedAmount:      400,
		Initialized:       true,
	}
	require.NoError(t, m.PutPosition(pos))

	loaded, err := m.GetPosition(owner)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.True(t, loaded.Owner.Equal(owner))
	require.True(t, loaded.CollateralAccount.Equal(pos.CollateralAccount))
	require.Equal(t, uint64(1_000), loaded.CollateralBalance)
	require.Equal(t, uint64(400), loaded.MintedAmount)
	require.True(t, loaded.Initialized)
}

func TestProtocolConfigLifecycle(t *testing.T) {
	m := newManager(t)

	_, err := m.ProtocolConfig()
	require.ErrorIs(t, err, ErrConfigNotInitialized)

	authority := testAddr(1)
	written, err := m.InitProtocolConfig(stable.DefaultConfig(authority))
	require.NoError(t, err)
	require.True(t, written)

	// A second init must not clobber the stored configuration.
	other := stable.DefaultConfig(testAddr(2))
	other.MinHealthFactor = 5
	written, err = m.InitProtocolConfig(other)
	require.NoError(t, err)
	require.False(t, written)

	cfg, err := m.ProtocolConfig()
	require.NoError(t, err)
	require.True(t, cfg.Authority.Equal(authority))
	require.Equal(t, uint64(stable.DefaultMinHealthFactor), cfg.MinHealthFactor)
}

func TestProposalSequenceAndRoundTrip(t *testing.T) {
	m := newManager(t)

	id, err := m.NextProposalID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	id, err = m.NextProposalID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	missing, err := m.GetProposal(99)
	require.NoError(t, err)
	require.Nil(t, missing)

	proposal := &governance.Proposal{
		ID:       id,
		Proposer: testAddr(3),
		Kind:     governance.KindLiquidationBonus,
		Value:    15,
		Status:   governance.ProposalStatusActive,
	}
	require.NoError(t, m.PutProposal(proposal))

	loaded, err := m.GetProposal(id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, governance.KindLiquidationBonus, loaded.Kind)
	require.Equal(t, governance.ProposalStatusActive, loaded.Status)
	require.True(t, loaded.Proposer.Equal(proposal.Proposer))
}

func TestCollateralLedger(t *testing.T) {
	m := newManager(t)
	a, b := testAddr(1), testAddr(2)
	require.NoError(t, m.CreditCollateral(a, 1_000))

	ledger := m.CollateralLedger()
	require.NoError(t, ledger.Transfer(a, b, 400))

	balance, err := ledger.BalanceOf(a)
	require.NoError(t, err)
	require.Equal(t, uint64(600), balance)
	balance, err = ledger.BalanceOf(b)
	require.NoError(t, err)
	require.Equal(t, uint64(400), balance)

	require.ErrorIs(t, ledger.Transfer(a, b, 601), ErrInsufficientBalance)
}

func TestStableLedger(t *testing.T) {
	m := newManager(t)
	a := testAddr(1)

	ledger := m.StableLedger()
	require.NoError(t, ledger.Mint(a, 500))
	require.NoError(t, ledger.Burn(a, 200))

	account, err := m.GetAccount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(300), account.BalanceStable)

	require.ErrorIs(t, ledger.Burn(a, 301), ErrInsufficientBalance)
}

func TestGovernanceBalance(t *testing.T) {
	m := newManager(t)
	a := testAddr(1)
	require.NoError(t, m.CreditGovernance(a, 100_000))

	balance, err := m.GovernanceBalance(a)
	require.NoError(t, err)
	require.Equal(t, uint64(100_000), balance)
}
