package auction

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/core/types"
)

const (
	EventTypeAuctionCreated   = "auction.created"
	EventTypeBidAccepted      = "auction.bid"
	EventTypeAuctionExtended  = "auction.extended"
	EventTypeAuctionFinalized = "auction.finalized"
	EventTypeRefundClaimed    = "auction.refund_claimed"
)

// Finalization outcomes carried in the auction.finalized event.
const (
	OutcomeSold   = "sold"
	OutcomeUnsold = "unsold"
)

// NewCreatedEvent returns the canonical payload for a newly opened auction.
func NewCreatedEvent(a *Auction) *types.Event {
	attrs := baseAttrs(a)
	return &types.Event{Type: EventTypeAuctionCreated, Attributes: attrs}
}

// NewBidEvent returns the payload emitted when a bid is accepted.
func NewBidEvent(a *Auction) *types.Event {
	attrs := baseAttrs(a)
	return &types.Event{Type: EventTypeBidAccepted, Attributes: attrs}
}

// NewExtendedEvent returns the payload emitted when a late bid pushes the
// deadline out.
func NewExtendedEvent(a *Auction) *types.Event {
	attrs := baseAttrs(a)
	return &types.Event{Type: EventTypeAuctionExtended, Attributes: attrs}
}

// NewFinalizedEvent returns the payload emitted when an auction resolves.
func NewFinalizedEvent(a *Auction, outcome string) *types.Event {
	attrs := baseAttrs(a)
	attrs["outcome"] = outcome
	return &types.Event{Type: EventTypeAuctionFinalized, Attributes: attrs}
}

// NewRefundClaimedEvent returns the payload emitted when a refund balance is
// paid out.
func NewRefundClaimedEvent(claimant common.Address, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"claimant": claimant.Hex(),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeRefundClaimed, Attributes: attrs}
}

func baseAttrs(a *Auction) map[string]string {
	attrs := make(map[string]string)
	if a == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(a.ID, 10)
	attrs["creator"] = a.Creator.Hex()
	attrs["collateralId"] = hex.EncodeToString(a.CollateralID[:])
	if a.Principal != nil {
		attrs["principal"] = a.Principal.String()
	}
	attrs["maxRate"] = strconv.FormatUint(a.MaxRate, 10)
	if a.HasBid() {
		attrs["rate"] = strconv.FormatUint(a.CurrentRate, 10)
		attrs["bidder"] = a.HighestBidder.Hex()
	}
	attrs["auctionEnd"] = strconv.FormatInt(a.AuctionEnd, 10)
	return attrs
}
