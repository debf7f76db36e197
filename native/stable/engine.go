package stable

import (
	"errors"
	"math/big"
	"time"

	"stablecore/core/events"
	"stablecore/crypto"
	nativecommon "stablecore/native/common"
	"stablecore/native/fees"
)

const moduleName = "stable"

var (
	errNilState      = errors.New("stable engine: state not configured")
	errNilLedger     = errors.New("stable engine: ledger not configured")
	errNilValuer     = errors.New("stable engine: valuer not configured")
	errInvalidAmount = errors.New("stable engine: amount must be positive")

	// ErrPositionNotFound is returned when an operation targets an owner with
	// no initialized position.
	ErrPositionNotFound = errors.New("stable engine: position not found")
	// ErrAboveMinHealthFactor rejects liquidation of a healthy position.
	ErrAboveMinHealthFactor = errors.New("stable engine: health factor above minimum")
	// ErrInsufficientCollateral is returned when a redemption or payout would
	// exceed the position's recorded collateral.
	ErrInsufficientCollateral = errors.New("stable engine: insufficient collateral")
	// ErrInsufficientDebt is returned when a burn exceeds the outstanding
	// minted amount.
	ErrInsufficientDebt = errors.New("stable engine: burn exceeds outstanding debt")
	// ErrNotAuthority rejects configuration updates from any identity other
	// than the configured authority.
	ErrNotAuthority = errors.New("stable engine: caller is not the protocol authority")
	// ErrMinHealthFactorTooLow rejects configuration updates that would set
	// the minimum health factor below its floor.
	ErrMinHealthFactorTooLow = errors.New("stable engine: minimum health factor below floor")
)

type engineState interface {
	GetPosition(owner crypto.Address) (*Position, error)
	PutPosition(pos *Position) error
	ProtocolConfig() (*ProtocolConfig, error)
	PutProtocolConfig(cfg *ProtocolConfig) error
}

// CollateralLedger is the external token service holding the volatile base
// asset. Calls are treated as atomic and fallible.
type CollateralLedger interface {
	Transfer(from, to crypto.Address, amount uint64) error
	BalanceOf(addr crypto.Address) (uint64, error)
}

// StableLedger is the external token service for the debt token.
type StableLedger interface {
	Mint(to crypto.Address, amount uint64) error
	Burn(from crypto.Address, amount uint64) error
}

// Engine orchestrates the position-changing operations of the protocol:
// deposit-and-mint, redeem-and-burn, and liquidation. Every operation
// validates health and collateralization with values read at its start and
// only then touches the ledgers.
type Engine struct {
	state      engineState
	valuer     *Valuer
	collateral CollateralLedger
	stable     StableLedger
	emitter    events.Emitter
	nowFn      func() time.Time
	pauses     nativecommon.PauseView
}

// NewEngine constructs an engine around the supplied valuation layer and
// ledger services. State and emitter are wired separately.
func NewEngine(valuer *Valuer, collateral CollateralLedger, stable StableLedger) *Engine {
	return &Engine{
		valuer:     valuer,
		collateral: collateral,
		stable:     stable,
		emitter:    events.NoopEmitter{},
		nowFn:      time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the sink receiving engine events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
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

// Position returns a copy of the stored position for owner.
func (e *Engine) Position(owner crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.state.GetPosition(owner)
	if err != nil {
		return nil, err
	}
	if pos == nil || !pos.Initialized {
		return nil, ErrPositionNotFound
	}
	return pos.Clone(), nil
}

// DepositAndMint locks collateral in the owner's vault and mints the debt
// token against it. The mint fee is deducted from the minted amount; the
// depositor receives the net. Returns the net minted amount.
func (e *Engine) DepositAndMint(depositor crypto.Address, collateralAmount, mintAmount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if collateralAmount == 0 || mintAmount == 0 {
		return 0, errInvalidAmount
	}
	if mintAmount > MaxMintAmount {
		return 0, ErrExcessiveMint
	}
	cfg, err := e.state.ProtocolConfig()
	if err != nil {
		return 0, err
	}
	now := e.nowFn()

	pos, err := e.state.GetPosition(depositor)
	if err != nil {
		return 0, err
	}
	if pos == nil || !pos.Initialized {
		pos = &Position{
			Owner:             depositor,
			CollateralAccount: crypto.DeriveAddress(collateralSeed, depositor),
			TokenAccount:      crypto.DeriveAddress(tokenSeed, depositor),
			Initialized:       true,
		}
	} else {
		pos = pos.Clone()
	}

	candidateCollateral, err := addAmount(pos.CollateralBalance, collateralAmount)
	if err != nil {
		return 0, err
	}
	newDebt, err := addAmount(pos.MintedAmount, mintAmount)
	if err != nil {
		return 0, err
	}

	usd, err := e.valuer.USDValue(candidateCollateral, now)
	if err != nil {
		return 0, err
	}
	hf := HealthFactor(usd, newDebt, cfg.LiquidationThreshold)
	if err := e.checkHealthFactor(depositor, hf, cfg); err != nil {
		return 0, err
	}
	ratio, err := e.checkCollateralization(depositor, usd, newDebt)
	if err != nil {
		return 0, err
	}

	fee, err := fees.Calculate(mintAmount, cfg.Fees.MintBps)
	if err != nil {
		return 0, err
	}
	netMint := mintAmount - fee

	if err := e.collateral.Transfer(depositor, pos.CollateralAccount, collateralAmount); err != nil {
		return 0, err
	}
	if err := e.stable.Mint(pos.TokenAccount, netMint); err != nil {
		return 0, err
	}
	if fee > 0 && !cfg.FeeRecipient.IsZero() {
		if err := e.stable.Mint(cfg.FeeRecipient, fee); err != nil {
			return 0, err
		}
		e.emitter.Emit(events.ProtocolFee{Recipient: cfg.FeeRecipient, Operation: "mint", Amount: fee})
	}

	pos.CollateralBalance, err = e.collateral.BalanceOf(pos.CollateralAccount)
	if err != nil {
		return 0, err
	}
	pos.MintedAmount = newDebt
	if err := e.state.PutPosition(pos); err != nil {
		return 0, err
	}

	e.emitter.Emit(events.CollateralDeposited{
		Owner:           depositor,
		Collateral:      collateralAmount,
		Minted:          netMint,
		Fee:             fee,
		CollateralTotal: pos.CollateralBalance,
		MintedTotal:     pos.MintedAmount,
		HealthFactor:    hf,
		CollateralRatio: ratio,
	})
	return netMint, nil
}

// RedeemAndBurn repays debt and releases collateral back to the owner. The
// burn fee is charged on top of the repaid amount: burnAmount plus the fee is
// burned from the position's token account while the recorded debt drops by
// burnAmount alone. The remaining position must stay healthy.
func (e *Engine) RedeemAndBurn(owner crypto.Address, collateralAmount, burnAmount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if collateralAmount == 0 && burnAmount == 0 {
		return errInvalidAmount
	}
	cfg, err := e.state.ProtocolConfig()
	if err != nil {
		return err
	}
	now := e.nowFn()

	pos, err := e.state.GetPosition(owner)
	if err != nil {
		return err
	}
	if pos == nil || !pos.Initialized {
		return ErrPositionNotFound
	}
	pos = pos.Clone()
	if collateralAmount > pos.CollateralBalance {
		return ErrInsufficientCollateral
	}
	if burnAmount > pos.MintedAmount {
		return ErrInsufficientDebt
	}

	fee, err := fees.Calculate(burnAmount, cfg.Fees.BurnBps)
	if err != nil {
		return err
	}
	totalBurn, err := addAmount(burnAmount, fee)
	if err != nil {
		return err
	}

	remainingCollateral := pos.CollateralBalance - collateralAmount
	newDebt := pos.MintedAmount - burnAmount
	if newDebt > 0 {
		usd, err := e.valuer.USDValue(remainingCollateral, now)
		if err != nil {
			return err
		}
		hf := HealthFactor(usd, newDebt, cfg.LiquidationThreshold)
		if err := e.checkHealthFactor(owner, hf, cfg); err != nil {
			return err
		}
		if _, err := e.checkCollateralization(owner, usd, newDebt); err != nil {
			return err
		}
	}

	if totalBurn > 0 {
		if err := e.stable.Burn(pos.TokenAccount, totalBurn); err != nil {
			return err
		}
	}
	if collateralAmount > 0 {
		if err := e.collateral.Transfer(pos.CollateralAccount, owner, collateralAmount); err != nil {
			return err
		}
	}

	pos.CollateralBalance, err = e.collateral.BalanceOf(pos.CollateralAccount)
	if err != nil {
		return err
	}
	pos.MintedAmount = newDebt
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}

	e.emitter.Emit(events.CollateralRedeemed{
		Owner:           owner,
		Collateral:      collateralAmount,
		Burned:          burnAmount,
		Fee:             fee,
		CollateralTotal: pos.CollateralBalance,
		MintedTotal:     pos.MintedAmount,
	})
	return nil
}

// Liquidate lets a third party repay burnAmount of an unhealthy position's
// debt in exchange for the equivalent collateral plus the liquidation bonus,
// minus the protocol fee. The health-factor check runs against the position's
// pre-liquidation collateral before any balance moves; the post-liquidation
// health factor is reported for observability but never re-checked, so a
// partial liquidation that leaves the position unhealthy is accepted.
// Returns the collateral payout transferred to the liquidator.
func (e *Engine) Liquidate(liquidator, owner crypto.Address, burnAmount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if burnAmount == 0 {
		return 0, errInvalidAmount
	}
	cfg, err := e.state.ProtocolConfig()
	if err != nil {
		return 0, err
	}
	now := e.nowFn()

	pos, err := e.state.GetPosition(owner)
	if err != nil {
		return 0, err
	}
	if pos == nil || !pos.Initialized {
		return 0, ErrPositionNotFound
	}
	pos = pos.Clone()
	if burnAmount > pos.MintedAmount {
		return 0, ErrInsufficientDebt
	}

	usd, err := e.valuer.USDValue(pos.CollateralBalance, now)
	if err != nil {
		return 0, err
	}
	hf := HealthFactor(usd, pos.MintedAmount, cfg.LiquidationThreshold)
	if hf >= cfg.MinHealthFactor {
		return 0, ErrAboveMinHealthFactor
	}

	collateralUnits, err := e.valuer.AmountForUSD(burnAmount, now)
	if err != nil {
		return 0, err
	}
	bonus, err := percentOf(collateralUnits, cfg.LiquidationBonus)
	if err != nil {
		return 0, err
	}
	protocolFee, err := fees.Calculate(collateralUnits, cfg.Fees.LiquidationBps)
	if err != nil {
		return 0, err
	}
	payout, err := addAmount(collateralUnits, bonus)
	if err != nil {
		return 0, err
	}
	if protocolFee > payout {
		protocolFee = payout
	}
	payout -= protocolFee

	needed, err := addAmount(payout, protocolFee)
	if err != nil {
		return 0, err
	}
	if needed > pos.CollateralBalance {
		return 0, ErrInsufficientCollateral
	}

	if err := e.collateral.Transfer(pos.CollateralAccount, liquidator, payout); err != nil {
		return 0, err
	}
	if protocolFee > 0 && !cfg.FeeRecipient.IsZero() {
		if err := e.collateral.Transfer(pos.CollateralAccount, cfg.FeeRecipient, protocolFee); err != nil {
			return 0, err
		}
		e.emitter.Emit(events.ProtocolFee{Recipient: cfg.FeeRecipient, Operation: "liquidation", Amount: protocolFee})
	}
	if err := e.stable.Burn(liquidator, burnAmount); err != nil {
		return 0, err
	}

	pos.CollateralBalance, err = e.collateral.BalanceOf(pos.CollateralAccount)
	if err != nil {
		return 0, err
	}
	pos.MintedAmount -= burnAmount
	if err := e.state.PutPosition(pos); err != nil {
		return 0, err
	}

	postHF := hf
	if postUSD, err := e.valuer.USDValue(pos.CollateralBalance, now); err == nil {
		postHF = HealthFactor(postUSD, pos.MintedAmount, cfg.LiquidationThreshold)
	}
	e.emitter.Emit(events.PositionLiquidated{
		Owner:            owner,
		Liquidator:       liquidator,
		Burned:           burnAmount,
		Collateral:       collateralUnits,
		Bonus:            bonus,
		ProtocolFee:      protocolFee,
		Payout:           payout,
		HealthFactor:     hf,
		PostHealthFactor: postHF,
	})
	return payout, nil
}

// UpdateMinHealthFactor applies a direct authority-signed update to the
// minimum health factor, bypassing governance. The floor still applies.
func (e *Engine) UpdateMinHealthFactor(authority crypto.Address, value uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg, err := e.state.ProtocolConfig()
	if err != nil {
		return err
	}
	if !authority.Equal(cfg.Authority) {
		return ErrNotAuthority
	}
	if value < MinHealthFactorFloor {
		return ErrMinHealthFactorTooLow
	}
	cfg = cfg.Clone()
	cfg.MinHealthFactor = value
	return e.state.PutProtocolConfig(cfg)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.valuer == nil {
		return errNilValuer
	}
	if e.collateral == nil || e.stable == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) checkHealthFactor(owner crypto.Address, hf uint64, cfg *ProtocolConfig) error {
	if hf < cfg.MinHealthFactor {
		return ErrBelowMinHealthFactor
	}
	if hf < CriticalHealthFactor {
		e.emitter.Emit(events.HealthFactorCritical{Owner: owner, HealthFactor: hf, Critical: CriticalHealthFactor})
	}
	return nil
}

func (e *Engine) checkCollateralization(owner crypto.Address, usd, minted uint64) (uint64, error) {
	ratio := CollateralizationRatio(usd, minted)
	if ratio < MinCollateralRatioPercent {
		return ratio, ErrInsufficientCollateralization
	}
	if ratio > MaxCollateralRatioPercent {
		e.emitter.Emit(events.CollateralizationHigh{Owner: owner, Ratio: ratio, Ceiling: MaxCollateralRatioPercent})
	}
	return ratio, nil
}

func addAmount(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrValueOverflow
	}
	return sum, nil
}

func percentOf(amount, pct uint64) (uint64, error) {
	v := new(big.Int).SetUint64(amount)
	v.Mul(v, new(big.Int).SetUint64(pct))
	v.Div(v, hundred)
	if !v.IsUint64() {
		return 0, ErrValueOverflow
	}
	return v.Uint64(), nil
}
