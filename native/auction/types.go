package auction

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RateScale is the denominator for bid rates: a bid of 37 means a 3.7% annual
// rate. Bids are integers in [0, RateScale) bounded further by each auction's
// MaxRate.
const RateScale = 1000

// NoBid marks an auction that has not received a valid bid yet. Any real bid
// improves on it because bids must be strictly below MaxRate.
const NoBid = math.MaxUint64

// FinalizedAt is the terminal deadline sentinel written by Finalize. It can
// never arise from the 24h window plus 15 minute extensions, so comparing
// against it is a safe finalize-once guard.
const FinalizedAt = math.MaxInt64

// Auction tracks a single reverse rate auction: the lowest-rate bid wins the
// right to lend the principal against the referenced collateral.
type Auction struct {
	ID            uint64         `json:"id"`
	Creator       common.Address `json:"creator"`
	CollateralID  [32]byte       `json:"collateralId"`
	Principal     *big.Int       `json:"principal"`
	MaxRate       uint64         `json:"maxRate"`
	CurrentRate   uint64         `json:"currentRate"`
	HighestBidder common.Address `json:"highestBidder"`
	AuctionEnd    int64          `json:"auctionEnd"`
	CreatedAt     int64          `json:"createdAt"`
}

// Clone returns a deep copy so callers can mutate the copy without touching
// the stored record.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Principal != nil {
		clone.Principal = new(big.Int).Set(a.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	return &clone
}

// Finalized reports whether the auction has reached a terminal state.
func (a *Auction) Finalized() bool {
	return a != nil && a.AuctionEnd == FinalizedAt
}

// HasBid reports whether at least one valid bid was accepted.
func (a *Auction) HasBid() bool {
	return a != nil && a.CurrentRate != NoBid
}
