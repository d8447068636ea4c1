package types

import "math/big"

// Account is the balance-bearing record tracked by the ledger. Amounts are
// denominated in wei and expressed as big integers to preserve full precision.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Ensure returns the account with nil fields replaced by zero values so callers
// can mutate balances without nil checks.
func (a *Account) Ensure() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}
