package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/native/auction"
	"yieldgate/native/loan"
)

type createListingRequest struct {
	Creator      string `json:"creator"`
	CollateralID string `json:"collateralId"`
	Principal    string `json:"principal"`
	MaxRate      uint64 `json:"maxRate"`
}

type createListingResponse struct {
	AuctionID uint64 `json:"auctionId"`
}

type bidRequest struct {
	Bidder  string `json:"bidder"`
	Rate    uint64 `json:"rate"`
	Payment string `json:"payment"`
}

type claimRequest struct {
	Claimant string `json:"claimant"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type repayRequest struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type borrowerRequest struct {
	Borrower string `json:"borrower"`
}

type withdrawRequest struct {
	Lender string `json:"lender"`
	// Amount "0" withdraws everything currently available.
	Amount string `json:"amount"`
}

type transferRightsRequest struct {
	Kind string `json:"kind"`
	From string `json:"from"`
	To   string `json:"to"`
}

type auctionResponse struct {
	ID            uint64 `json:"id"`
	Creator       string `json:"creator"`
	CollateralID  string `json:"collateralId"`
	Principal     string `json:"principal"`
	MaxRate       uint64 `json:"maxRate"`
	CurrentRate   string `json:"currentRate"`
	HighestBidder string `json:"highestBidder,omitempty"`
	AuctionEnd    int64  `json:"auctionEnd"`
	Finalized     bool   `json:"finalized"`
}

type loanResponse struct {
	ID                 uint64 `json:"id"`
	CollateralID       string `json:"collateralId"`
	Debt               string `json:"debt"`
	ProjectedDebt      string `json:"projectedDebt"`
	Withdrawable       string `json:"withdrawable"`
	Rate               uint64 `json:"rate"`
	LastAccrued        int64  `json:"lastAccrued"`
	CollateralReleased bool   `json:"collateralReleased"`
}

func toAuctionResponse(a *auction.Auction) auctionResponse {
	resp := auctionResponse{
		ID:           a.ID,
		Creator:      a.Creator.Hex(),
		CollateralID: hex.EncodeToString(a.CollateralID[:]),
		MaxRate:      a.MaxRate,
		AuctionEnd:   a.AuctionEnd,
		Finalized:    a.Finalized(),
	}
	if a.Principal != nil {
		resp.Principal = a.Principal.String()
	}
	if a.HasBid() {
		resp.CurrentRate = fmt.Sprintf("%d", a.CurrentRate)
		resp.HighestBidder = a.HighestBidder.Hex()
	} else {
		resp.CurrentRate = "none"
	}
	return resp
}

func toLoanResponse(l *loan.Loan, projected *big.Int) loanResponse {
	resp := loanResponse{
		ID:                 l.ID,
		CollateralID:       hex.EncodeToString(l.CollateralID[:]),
		Rate:               l.Rate,
		LastAccrued:        l.LastAccrued,
		CollateralReleased: l.CollateralReleased,
	}
	if l.Debt != nil {
		resp.Debt = l.Debt.String()
	}
	if l.Withdrawable != nil {
		resp.Withdrawable = l.Withdrawable.String()
	}
	if projected != nil {
		resp.ProjectedDebt = projected.String()
	}
	return resp
}

func parseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func parseCollateralID(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(out) {
		return out, fmt.Errorf("invalid collateral id %q", value)
	}
	copy(out[:], raw)
	return out, nil
}
