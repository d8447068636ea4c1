package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	creator, err := parseAddress(req.Creator)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	collateralID, err := parseCollateralID(req.CollateralID)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	principal, err := parseAmount(req.Principal)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	id, err := s.coordinator.CreateListing(creator, collateralID, principal, req.MaxRate)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createListingResponse{AuctionID: id})
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	record, err := s.auctions.Auction(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAuctionResponse(record))
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req bidRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	bidder, err := parseAddress(req.Bidder)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	err = s.auctions.Bid(id, bidder, req.Rate, payment)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	err = s.auctions.Finalize(id)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleClaimFunds(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	claimant, err := parseAddress(req.Claimant)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	amount, err := s.auctions.ClaimFunds(claimant)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: amount.String()})
}

func (s *Server) handleGetRefund(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.auctions.RefundBalance(addr)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: balance.String()})
}

func parseID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}
