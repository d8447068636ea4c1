package auction

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/core/events"
	"yieldgate/core/types"
	nativecommon "yieldgate/native/common"
)

var (
	ErrNilState            = errors.New("auction engine: state not configured")
	ErrNotFactory          = errors.New("auction engine: caller is not the factory")
	ErrNotFound            = errors.New("auction engine: auction not found")
	ErrAuctionClosed       = errors.New("auction engine: auction closed")
	ErrRateTooHigh         = errors.New("auction engine: rate must be below the auction maximum")
	ErrRateNotImproved     = errors.New("auction engine: rate does not improve the current bid")
	ErrWrongPayment        = errors.New("auction engine: payment must equal the principal")
	ErrNotYetOver          = errors.New("auction engine: auction has not ended")
	ErrAlreadyFinalized    = errors.New("auction engine: auction already finalized")
	ErrInsufficientBalance = errors.New("auction engine: insufficient balance")
	ErrNilSettler          = errors.New("auction engine: settlement callback not configured")
	ErrNilVault            = errors.New("auction engine: collateral vault not configured")
)

const (
	// initialWindow is the bidding window granted at auction creation.
	initialWindow = 24 * time.Hour
	// snipeWindow is the anti-sniping threshold: a bid landing with at most
	// this much time remaining pushes the deadline out to now+snipeWindow.
	// There is no cap on how often this can fire.
	snipeWindow = 15 * time.Minute
)

const moduleName = "auction"

type engineState interface {
	NextAuctionID() (uint64, error)
	AuctionGet(id uint64) (*Auction, bool)
	AuctionPut(*Auction) error
	RefundAdd(addr common.Address, amount *big.Int) error
	RefundBalance(addr common.Address) (*big.Int, error)
	RefundClear(addr common.Address) error
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// Settler receives the fixed settlement tuple when an auction resolves with a
// winning bid. The factory uses it to create the loan and mint both rights
// tokens.
type Settler interface {
	OnAuctionSold(auctionID uint64, creator, winner common.Address, principal *big.Int, rate uint64) error
}

// Vault releases custodied collateral back to an owner. Escrow-in happens at
// the factory boundary, atomically with auction creation.
type Vault interface {
	Release(collateralID [32]byte, to common.Address) error
}

// Engine runs the reverse rate auctions and the shared pull-payment refund
// ledger. All state access goes through the pluggable state backend; the
// engine performs no locking and relies on the caller serializing operations.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	settler   Settler
	vault     Vault
	factory   common.Address
	vaultAddr common.Address
	pauses    nativecommon.PauseView
	nowFn     func() int64
}

// NewEngine creates an auction engine with a no-op emitter. The factory
// address authorizes CreateAuction; the vault address is the module account
// that custodies bid principal until refunds or settlement.
func NewEngine(factory, vaultAddr common.Address) *Engine {
	return &Engine{
		factory:   factory,
		vaultAddr: vaultAddr,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetSettler configures the factory callback invoked when a sold auction is
// finalized.
func (e *Engine) SetSettler(s Settler) { e.settler = s }

// SetVault configures the collateral custody boundary.
func (e *Engine) SetVault(v Vault) { e.vault = v }

// SetPauses wires the administrative pause view shared across modules.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// CreateAuction opens a new auction with a 24 hour bidding window. Only the
// factory may call it; argument validation is the factory's responsibility
// and deliberately does not happen here.
func (e *Engine) CreateAuction(caller, creator common.Address, collateralID [32]byte, principal *big.Int, maxRate uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if caller != e.factory {
		return 0, ErrNotFactory
	}
	id, err := e.state.NextAuctionID()
	if err != nil {
		return 0, err
	}
	now := e.now()
	a := &Auction{
		ID:           id,
		Creator:      creator,
		CollateralID: collateralID,
		Principal:    cloneBigInt(principal),
		MaxRate:      maxRate,
		CurrentRate:  NoBid,
		AuctionEnd:   now + int64(initialWindow/time.Second),
		CreatedAt:    now,
	}
	if err := e.state.AuctionPut(a); err != nil {
		return 0, err
	}
	e.emit(NewCreatedEvent(a))
	return id, nil
}

// Bid places a rate bid backed by a payment of exactly the auction principal.
// A superseded bidder's principal is credited to the refund ledger rather than
// transferred, so a hostile bidder can never block the auction by refusing
// funds. Bids inside the snipe window extend the deadline.
func (e *Engine) Bid(auctionID uint64, bidder common.Address, rate uint64, payment *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return ErrNotFound
	}
	now := e.now()
	if a.Finalized() || now >= a.AuctionEnd {
		return ErrAuctionClosed
	}
	if rate >= a.MaxRate {
		return ErrRateTooHigh
	}
	if rate >= a.CurrentRate {
		return ErrRateNotImproved
	}
	if payment == nil || a.Principal == nil || payment.Cmp(a.Principal) != 0 {
		return ErrWrongPayment
	}

	if err := e.transfer(bidder, e.vaultAddr, payment); err != nil {
		return err
	}
	if a.HasBid() {
		if err := e.state.RefundAdd(a.HighestBidder, a.Principal); err != nil {
			return err
		}
	}
	a.HighestBidder = bidder
	a.CurrentRate = rate

	extended := false
	if a.AuctionEnd-now <= int64(snipeWindow/time.Second) {
		a.AuctionEnd = now + int64(snipeWindow/time.Second)
		extended = true
	}
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}
	e.emit(NewBidEvent(a))
	if extended {
		e.emit(NewExtendedEvent(a))
	}
	return nil
}

// Finalize resolves an auction whose deadline has passed. The terminal
// sentinel is committed before any settlement side effect so a re-entrant or
// repeated call observes the auction as already finalized. An unsold auction
// returns the collateral to its creator; a sold auction credits the principal
// to the creator's refund balance and hands the settlement tuple to the
// factory. A settlement error after the sentinel commit is fatal for the
// auction: it stays finalized and cannot be retried, surfacing the state
// backend failure instead of risking a double settlement.
func (e *Engine) Finalize(auctionID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return ErrNotFound
	}
	if a.Finalized() {
		return ErrAlreadyFinalized
	}
	if e.now() < a.AuctionEnd {
		return ErrNotYetOver
	}

	a.AuctionEnd = FinalizedAt
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}

	if !a.HasBid() {
		if e.vault == nil {
			return ErrNilVault
		}
		if err := e.vault.Release(a.CollateralID, a.Creator); err != nil {
			return err
		}
		e.emit(NewFinalizedEvent(a, OutcomeUnsold))
		return nil
	}

	if err := e.state.RefundAdd(a.Creator, a.Principal); err != nil {
		return err
	}
	if e.settler == nil {
		return ErrNilSettler
	}
	if err := e.settler.OnAuctionSold(a.ID, a.Creator, a.HighestBidder, cloneBigInt(a.Principal), a.CurrentRate); err != nil {
		return err
	}
	e.emit(NewFinalizedEvent(a, OutcomeSold))
	return nil
}

// ClaimFunds pays out the caller's entire refund balance. The balance is
// cleared before the transfer is attempted: a re-entrant claim sees zero, and
// a failed transfer aborts the whole operation rather than silently dropping
// the cleared amount.
func (e *Engine) ClaimFunds(caller common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	balance, err := e.state.RefundBalance(caller)
	if err != nil {
		return nil, err
	}
	amount := cloneBigInt(balance)
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.state.RefundClear(caller); err != nil {
		return nil, err
	}
	if err := e.transfer(e.vaultAddr, caller, amount); err != nil {
		return nil, err
	}
	e.emit(NewRefundClaimedEvent(caller, amount))
	return amount, nil
}

// Auction returns a copy of the stored auction record.
func (e *Engine) Auction(auctionID uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	a, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// RefundBalance returns the caller's current refund ledger balance.
func (e *Engine) RefundBalance(addr common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	balance, err := e.state.RefundBalance(addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

func (e *Engine) transfer(from, to common.Address, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Ensure()
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	toAcc = toAcc.Ensure()
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
