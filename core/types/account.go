package types

// Account is the canonical balance record tracked by the ledger. Amounts are
// expressed in the smallest native unit of each asset (1e9 units per whole
// token) and deliberately kept as uint64 to match the protocol's integer
// arithmetic.
type Account struct {
	Nonce uint64 `json:"nonce"`
	// BalanceCollateral holds the volatile base asset deposited as collateral.
	BalanceCollateral uint64 `json:"balanceCollateral"`
	// BalanceStable holds the minted debt token.
	BalanceStable uint64 `json:"balanceStable"`
	// BalanceGov holds the governance token used for proposal voting power.
	BalanceGov uint64 `json:"balanceGov"`
}
