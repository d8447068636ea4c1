package loan

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/core/types"
)

const (
	EventTypeLoanCreated   = "loan.created"
	EventTypeLoanRepaid    = "loan.repaid"
	EventTypeLoanWithdrawn = "loan.withdrawn"
	EventTypeLoanReclaimed = "loan.reclaimed"
)

// Repayment channels carried in the loan.repaid event.
const (
	ChannelExternal = "external"
	ChannelYield    = "yield"
)

// NewCreatedEvent returns the canonical payload for a newly created loan.
func NewCreatedEvent(l *Loan) *types.Event {
	return &types.Event{Type: EventTypeLoanCreated, Attributes: baseAttrs(l)}
}

// NewRepaidEvent returns the payload emitted when debt is repaid through
// either channel.
func NewRepaidEvent(l *Loan, channel string, applied *big.Int) *types.Event {
	attrs := baseAttrs(l)
	attrs["channel"] = channel
	if applied != nil {
		attrs["applied"] = applied.String()
	}
	return &types.Event{Type: EventTypeLoanRepaid, Attributes: attrs}
}

// NewWithdrawnEvent returns the payload emitted when the lender withdraws
// repaid funds.
func NewWithdrawnEvent(l *Loan, lender common.Address, amount *big.Int) *types.Event {
	attrs := baseAttrs(l)
	attrs["lender"] = lender.Hex()
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeLoanWithdrawn, Attributes: attrs}
}

// NewReclaimedEvent returns the payload emitted when the borrower reclaims
// the collateral of a fully repaid loan.
func NewReclaimedEvent(l *Loan, borrower common.Address) *types.Event {
	attrs := baseAttrs(l)
	attrs["borrower"] = borrower.Hex()
	return &types.Event{Type: EventTypeLoanReclaimed, Attributes: attrs}
}

func baseAttrs(l *Loan) map[string]string {
	attrs := make(map[string]string)
	if l == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(l.ID, 10)
	attrs["collateralId"] = hex.EncodeToString(l.CollateralID[:])
	if l.Debt != nil {
		attrs["debt"] = l.Debt.String()
	}
	if l.Withdrawable != nil {
		attrs["withdrawable"] = l.Withdrawable.String()
	}
	attrs["rate"] = strconv.FormatUint(l.Rate, 10)
	return attrs
}
