package loan

import "math/big"

// Loan is the ledger entry for one settled auction. The loan id equals the
// originating auction id so a loan can always be traced back to its auction.
type Loan struct {
	ID           uint64   `json:"id"`
	CollateralID [32]byte `json:"collateralId"`
	// Debt is the outstanding principal plus accrued interest. It only grows
	// through accrual and only shrinks through the two repayment channels.
	Debt *big.Int `json:"debt"`
	// Withdrawable holds repaid funds the lender has not claimed yet.
	Withdrawable *big.Int `json:"withdrawable"`
	// Rate is fixed at loan creation, in RateScale units.
	Rate        uint64 `json:"rate"`
	LastAccrued int64  `json:"lastAccrued"`
	CreatedAt   int64  `json:"createdAt"`
	// CollateralReleased marks a fully repaid loan whose collateral has been
	// reclaimed. The record itself persists as closed history.
	CollateralReleased bool `json:"collateralReleased"`
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Debt != nil {
		clone.Debt = new(big.Int).Set(l.Debt)
	} else {
		clone.Debt = big.NewInt(0)
	}
	if l.Withdrawable != nil {
		clone.Withdrawable = new(big.Int).Set(l.Withdrawable)
	} else {
		clone.Withdrawable = big.NewInt(0)
	}
	return &clone
}

func (l *Loan) ensure() {
	if l.Debt == nil {
		l.Debt = big.NewInt(0)
	}
	if l.Withdrawable == nil {
		l.Withdrawable = big.NewInt(0)
	}
}
