package rpc

import (
	"net/http"
	"strings"

	"yieldgate/native/rights"
)

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	record, err := s.loans.Loan(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	projected, err := s.loans.ProjectedDebt(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLoanResponse(record, projected))
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req repayRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	applied, err := s.loans.RepayExternal(id, borrower, amount)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: applied.String()})
}

func (s *Server) handleRepayYield(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req borrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	applied, err := s.loans.RepayFromYield(id, borrower)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: applied.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	lender, err := parseAddress(req.Lender)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	paid, err := s.loans.Withdraw(id, lender, amount)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, amountResponse{Amount: paid.String()})
}

func (s *Server) handleReclaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req borrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	borrower, err := parseAddress(req.Borrower)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	err = s.loans.Reclaim(id, borrower)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleTransferRights(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req transferRightsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	var kind rights.Kind
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "lender":
		kind = rights.LenderClaim
	case "borrower":
		kind = rights.BorrowerClaim
	default:
		s.writeError(w, r, http.StatusBadRequest, "kind must be lender or borrower")
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	err = s.registry.Transfer(kind, id, from, to)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct{}{})
}
