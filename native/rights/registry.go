package rights

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNilState      = errors.New("rights registry: state not configured")
	ErrAlreadyMinted = errors.New("rights registry: claim already minted")
	ErrNotMinted     = errors.New("rights registry: claim not minted")
	ErrNotHolder     = errors.New("rights registry: caller does not hold the claim")
	ErrZeroAddress   = errors.New("rights registry: holder must not be the zero address")
	ErrInvalidKind   = errors.New("rights registry: unknown claim kind")
)

// Kind distinguishes the two transferable claims minted per loan.
type Kind uint8

const (
	// LenderClaim entitles its holder to withdraw repaid funds.
	LenderClaim Kind = iota + 1
	// BorrowerClaim entitles its holder to repay and reclaim the collateral.
	BorrowerClaim
)

// Valid reports whether the kind is one of the supported claims.
func (k Kind) Valid() bool {
	return k == LenderClaim || k == BorrowerClaim
}

func (k Kind) String() string {
	switch k {
	case LenderClaim:
		return "lender"
	case BorrowerClaim:
		return "borrower"
	default:
		return "unknown"
	}
}

type registryState interface {
	HolderGet(kind Kind, loanID uint64) (common.Address, bool)
	HolderPut(kind Kind, loanID uint64, holder common.Address) error
}

// Registry tracks the current holder of each claim. Privileged loan
// operations resolve holders through it on every call, so transferring a
// claim transfers the privilege immediately. Token metadata and enumeration
// live outside this module.
type Registry struct {
	state registryState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// TokenID derives the deterministic identifier for a claim token.
func TokenID(kind Kind, loanID uint64) [32]byte {
	var buf [9]byte
	buf[0] = byte(kind)
	binary.BigEndian.PutUint64(buf[1:], loanID)
	return ethcrypto.Keccak256Hash([]byte("yieldgate/rights"), buf[:])
}

// Mint assigns the initial holder of a claim. Each claim mints exactly once.
func (r *Registry) Mint(kind Kind, loanID uint64, holder common.Address) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if !kind.Valid() {
		return ErrInvalidKind
	}
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, ok := r.state.HolderGet(kind, loanID); ok {
		return ErrAlreadyMinted
	}
	return r.state.HolderPut(kind, loanID, holder)
}

// HolderOf resolves the current holder of a claim.
func (r *Registry) HolderOf(kind Kind, loanID uint64) (common.Address, error) {
	if r == nil || r.state == nil {
		return common.Address{}, ErrNilState
	}
	holder, ok := r.state.HolderGet(kind, loanID)
	if !ok {
		return common.Address{}, ErrNotMinted
	}
	return holder, nil
}

// Transfer moves a claim to a new holder. Only the current holder may
// transfer, and the privilege moves with the claim.
func (r *Registry) Transfer(kind Kind, loanID uint64, from, to common.Address) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	holder, ok := r.state.HolderGet(kind, loanID)
	if !ok {
		return ErrNotMinted
	}
	if holder != from {
		return ErrNotHolder
	}
	return r.state.HolderPut(kind, loanID, to)
}

// BorrowerOf resolves the borrower-claim holder. Together with LenderOf it
// satisfies the loan engine's holder query.
func (r *Registry) BorrowerOf(loanID uint64) (common.Address, error) {
	return r.HolderOf(BorrowerClaim, loanID)
}

// LenderOf resolves the lender-claim holder.
func (r *Registry) LenderOf(loanID uint64) (common.Address, error) {
	return r.HolderOf(LenderClaim, loanID)
}
