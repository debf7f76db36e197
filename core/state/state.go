package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"stablecore/core/types"
	"stablecore/crypto"
	"stablecore/native/governance"
	"stablecore/native/stable"
	"stablecore/storage"
)

var (
	// ErrConfigNotInitialized is returned when the protocol configuration has
	// not been written yet.
	ErrConfigNotInitialized = errors.New("state: protocol config not initialized")
	// ErrInsufficientBalance is returned by ledger operations that would
	// overdraw an account.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrBalanceOverflow is returned when a credit would wrap an account
	// balance.
	ErrBalanceOverflow = errors.New("state: balance overflow")
)

// Key prefixes for the flat keyspace. Accounts and positions are addressed by
// their bech32 form so keys stay human-readable in the store.
const (
	accountPrefix  = "acct:"
	positionPrefix = "pos:"
	configKey      = "cfg:protocol"
	proposalPrefix = "gov:prop:"
	proposalSeqKey = "gov:seq"
)

// Manager persists accounts, positions, the protocol configuration, and
// governance proposals over a key-value database, encoding records as JSON.
// It implements the state interfaces consumed by the stable and governance
// engines plus the asset-scoped ledgers.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

// GetAccount loads the account record for addr, returning a zeroed account
// when none exists yet.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	account := &types.Account{}
	if _, err := m.get(accountPrefix+addr.String(), account); err != nil {
		return nil, err
	}
	return account, nil
}

// PutAccount stores the account record for addr.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	return m.put(accountPrefix+addr.String(), account)
}

// GetPosition loads the stored position for owner, returning nil when the
// owner has never deposited.
func (m *Manager) GetPosition(owner crypto.Address) (*stable.Position, error) {
	pos := &stable.Position{}
	ok, err := m.get(positionPrefix+owner.String(), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pos, nil
}

// PutPosition stores the position keyed by its owner.
func (m *Manager) PutPosition(pos *stable.Position) error {
	return m.put(positionPrefix+pos.Owner.String(), pos)
}

// ProtocolConfig loads the deployment configuration.
func (m *Manager) ProtocolConfig() (*stable.ProtocolConfig, error) {
	cfg := &stable.ProtocolConfig{}
	ok, err := m.get(configKey, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConfigNotInitialized
	}
	return cfg, nil
}

// PutProtocolConfig stores the deployment configuration.
func (m *Manager) PutProtocolConfig(cfg *stable.ProtocolConfig) error {
	return m.put(configKey, cfg)
}

// InitProtocolConfig writes cfg only when no configuration exists yet,
// reporting whether it was written.
func (m *Manager) InitProtocolConfig(cfg *stable.ProtocolConfig) (bool, error) {
	if _, err := m.ProtocolConfig(); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrConfigNotInitialized) {
		return false, err
	}
	if err := m.PutProtocolConfig(cfg); err != nil {
		return false, err
	}
	return true, nil
}

// GovernanceBalance returns the governance-token balance used as voting
// power.
func (m *Manager) GovernanceBalance(addr crypto.Address) (uint64, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return account.BalanceGov, nil
}

// NextProposalID increments and returns the proposal sequence.
func (m *Manager) NextProposalID() (uint64, error) {
	var seq uint64
	if _, err := m.get(proposalSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.put(proposalSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// GetProposal loads a proposal, returning nil when the identifier is unknown.
func (m *Manager) GetProposal(id uint64) (*governance.Proposal, error) {
	p := &governance.Proposal{}
	ok, err := m.get(fmt.Sprintf("%s%d", proposalPrefix, id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return p, nil
}

// PutProposal stores the proposal keyed by its identifier.
func (m *Manager) PutProposal(p *governance.Proposal) error {
	return m.put(fmt.Sprintf("%s%d", proposalPrefix, p.ID), p)
}

// CollateralLedger returns the ledger view over the volatile base asset.
func (m *Manager) CollateralLedger() stable.CollateralLedger { return collateralLedger{m} }

// StableLedger returns the ledger view over the debt token.
func (m *Manager) StableLedger() stable.StableLedger { return stableLedger{m} }

type collateralLedger struct {
	m *Manager
}

func (l collateralLedger) Transfer(from, to crypto.Address, amount uint64) error {
	source, err := l.m.GetAccount(from)
	if err != nil {
		return err
	}
	if source.BalanceCollateral < amount {
		return ErrInsufficientBalance
	}
	if from.Equal(to) {
		return nil
	}
	dest, err := l.m.GetAccount(to)
	if err != nil {
		return err
	}
	if dest.BalanceCollateral+amount < dest.BalanceCollateral {
		return ErrBalanceOverflow
	}
	source.BalanceCollateral -= amount
	dest.BalanceCollateral += amount
	if err := l.m.PutAccount(from, source); err != nil {
		return err
	}
	return l.m.PutAccount(to, dest)
}

func (l collateralLedger) BalanceOf(addr crypto.Address) (uint64, error) {
	account, err := l.m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return account.BalanceCollateral, nil
}

type stableLedger struct {
	m *Manager
}

func (l stableLedger) Mint(to crypto.Address, amount uint64) error {
	account, err := l.m.GetAccount(to)
	if err != nil {
		return err
	}
	if account.BalanceStable+amount < account.BalanceStable {
		return ErrBalanceOverflow
	}
	account.BalanceStable += amount
	return l.m.PutAccount(to, account)
}

func (l stableLedger) Burn(from crypto.Address, amount uint64) error {
	account, err := l.m.GetAccount(from)
	if err != nil {
		return err
	}
	if account.BalanceStable < amount {
		return ErrInsufficientBalance
	}
	account.BalanceStable -= amount
	return l.m.PutAccount(from, account)
}

// CreditCollateral funds an account with the base asset. Used at genesis and
// by faucet tooling; regular operations only move existing balances.
func (m *Manager) CreditCollateral(addr crypto.Address, amount uint64) error {
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if account.BalanceCollateral+amount < account.BalanceCollateral {
		return ErrBalanceOverflow
	}
	account.BalanceCollateral += amount
	return m.PutAccount(addr, account)
}

// CreditGovernance funds an account with governance tokens.
func (m *Manager) CreditGovernance(addr crypto.Address, amount uint64) error {
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if account.BalanceGov+amount < account.BalanceGov {
		return ErrBalanceOverflow
	}
	account.BalanceGov += amount
	return m.PutAccount(addr, account)
}
