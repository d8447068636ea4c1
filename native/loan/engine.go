package loan

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
	ErrNilState            = errors.New("loan engine: state not configured")
	ErrNotFactory          = errors.New("loan engine: caller is not the factory")
	ErrNotFound            = errors.New("loan engine: loan not found")
	ErrLoanExists          = errors.New("loan engine: loan already exists")
	ErrNotBorrower         = errors.New("loan engine: caller does not hold the borrower claim")
	ErrNotLender           = errors.New("loan engine: caller does not hold the lender claim")
	ErrInvalidAmount       = errors.New("loan engine: amount must be positive")
	ErrNoOutstandingDebt   = errors.New("loan engine: no outstanding debt")
	ErrOverWithdrawal      = errors.New("loan engine: amount exceeds withdrawable balance")
	ErrDebtRemaining       = errors.New("loan engine: debt remaining")
	ErrCollateralReleased  = errors.New("loan engine: collateral already reclaimed")
	ErrInsufficientBalance = errors.New("loan engine: insufficient balance")
	ErrNilRights           = errors.New("loan engine: rights registry not configured")
	ErrNilVault            = errors.New("loan engine: collateral vault not configured")
	ErrNilYieldSource      = errors.New("loan engine: yield source not configured")
)

const moduleName = "loan"

type engineState interface {
	LoanGet(id uint64) (*Loan, bool)
	LoanPut(*Loan) error
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// HolderQuery resolves the current holder of the borrower and lender claims
// for a loan. It is queried fresh on every privileged call so transferring a
// claim immediately transfers the privilege.
type HolderQuery interface {
	BorrowerOf(loanID uint64) (common.Address, error)
	LenderOf(loanID uint64) (common.Address, error)
}

// Vault releases custodied collateral back to the borrower once debt is zero.
type Vault interface {
	Release(collateralID [32]byte, to common.Address) error
}

// YieldSource exposes the collateral's own claimable income. Claim transfers
// at most max to the recipient and reports the amount actually moved.
type YieldSource interface {
	Claimable(collateralID [32]byte) (*big.Int, error)
	Claim(collateralID [32]byte, max *big.Int, to common.Address) (*big.Int, error)
}

// Engine maintains the loan ledger: continuous-compounding accrual, the two
// repayment channels and lender withdrawals. Every mutating operation applies
// accrual first so debt is current before any money moves.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	rights    HolderQuery
	vault     Vault
	yield     YieldSource
	factory   common.Address
	vaultAddr common.Address
	pauses    nativecommon.PauseView
	nowFn     func() int64
}

// NewEngine creates a loan engine with a no-op emitter. The vault address is
// the module account through which repayments and withdrawals flow.
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

// SetRights configures the rights-token holder query.
func (e *Engine) SetRights(r HolderQuery) { e.rights = r }

// SetVault configures the collateral custody boundary.
func (e *Engine) SetVault(v Vault) { e.vault = v }

// SetYieldSource configures the collateral income boundary.
func (e *Engine) SetYieldSource(y YieldSource) { e.yield = y }

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

// CreateLoan opens the ledger entry for a settled auction. Only the factory
// may call it; the loan id is the auction id and the rate is the winning bid.
func (e *Engine) CreateLoan(caller common.Address, loanID uint64, collateralID [32]byte, principal *big.Int, rate uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != e.factory {
		return ErrNotFactory
	}
	if _, ok := e.state.LoanGet(loanID); ok {
		return ErrLoanExists
	}
	now := e.now()
	l := &Loan{
		ID:           loanID,
		CollateralID: collateralID,
		Debt:         cloneBigInt(principal),
		Withdrawable: big.NewInt(0),
		Rate:         rate,
		LastAccrued:  now,
		CreatedAt:    now,
	}
	if err := e.state.LoanPut(l); err != nil {
		return err
	}
	e.emit(NewCreatedEvent(l))
	return nil
}

// accrue folds elapsed time into the debt using continuous compounding,
// rounding up so interest is never under-collected. A zero elapsed time or a
// zero debt is a no-op beyond refreshing the timestamp.
func (e *Engine) accrue(l *Loan) {
	now := e.now()
	elapsed := now - l.LastAccrued
	if elapsed <= 0 {
		return
	}
	l.LastAccrued = now
	if l.Debt == nil || l.Debt.Sign() == 0 {
		return
	}
	factor := accrualFactor(l.Rate, elapsed)
	l.Debt = mulWadUp(l.Debt, factor)
}

// RepayExternal settles debt with funds the borrower supplies directly. Only
// the amount actually applied leaves the borrower's account, so an excess
// payment is implicitly refunded. The applied amount is returned.
func (e *Engine) RepayExternal(loanID uint64, caller common.Address, payment *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	l, ok := e.state.LoanGet(loanID)
	if !ok {
		return nil, ErrNotFound
	}
	l.ensure()
	if err := e.requireBorrower(loanID, caller); err != nil {
		return nil, err
	}
	if payment == nil || payment.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	e.accrue(l)
	if l.Debt.Sign() == 0 {
		return nil, ErrNoOutstandingDebt
	}
	applied := minBigInt(payment, l.Debt)
	if err := e.transfer(caller, e.vaultAddr, applied); err != nil {
		return nil, err
	}
	l.Debt = new(big.Int).Sub(l.Debt, applied)
	l.Withdrawable = new(big.Int).Add(l.Withdrawable, applied)
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	e.emit(NewRepaidEvent(l, ChannelExternal, applied))
	return applied, nil
}

// RepayFromYield settles debt out of the collateral's own claimable income.
// At most the outstanding debt is ever claimed. The applied amount is
// returned; a collateral with nothing claimable applies zero.
func (e *Engine) RepayFromYield(loanID uint64, caller common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.yield == nil {
		return nil, ErrNilYieldSource
	}
	l, ok := e.state.LoanGet(loanID)
	if !ok {
		return nil, ErrNotFound
	}
	l.ensure()
	if err := e.requireBorrower(loanID, caller); err != nil {
		return nil, err
	}

	e.accrue(l)
	if l.Debt.Sign() == 0 {
		return nil, ErrNoOutstandingDebt
	}
	claimable, err := e.yield.Claimable(l.CollateralID)
	if err != nil {
		return nil, err
	}
	request := minBigInt(cloneBigInt(claimable), l.Debt)
	if request.Sign() == 0 {
		if err := e.state.LoanPut(l); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}
	claimed, err := e.yield.Claim(l.CollateralID, request, e.vaultAddr)
	if err != nil {
		return nil, err
	}
	applied := minBigInt(cloneBigInt(claimed), l.Debt)
	l.Debt = new(big.Int).Sub(l.Debt, applied)
	l.Withdrawable = new(big.Int).Add(l.Withdrawable, applied)
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	e.emit(NewRepaidEvent(l, ChannelYield, applied))
	return applied, nil
}

// Withdraw pays repaid funds out to the lender. A zero amount means
// "everything currently available"; any other amount is paid exactly. The
// withdrawable balance is decremented and committed before the payout is
// attempted.
func (e *Engine) Withdraw(loanID uint64, caller common.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	l, ok := e.state.LoanGet(loanID)
	if !ok {
		return nil, ErrNotFound
	}
	l.ensure()
	if err := e.requireLender(loanID, caller); err != nil {
		return nil, err
	}

	e.accrue(l)
	payout := cloneBigInt(amount)
	if payout.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if payout.Sign() == 0 {
		payout = cloneBigInt(l.Withdrawable)
	} else if payout.Cmp(l.Withdrawable) > 0 {
		return nil, ErrOverWithdrawal
	}
	if payout.Sign() == 0 {
		if err := e.state.LoanPut(l); err != nil {
			return nil, err
		}
		return big.NewInt(0), nil
	}
	l.Withdrawable = new(big.Int).Sub(l.Withdrawable, payout)
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	if err := e.transfer(e.vaultAddr, caller, payout); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawnEvent(l, caller, payout))
	return payout, nil
}

// Reclaim releases custody of the collateral back to the borrower once the
// debt is fully repaid. The release flag is committed before the vault call.
func (e *Engine) Reclaim(loanID uint64, caller common.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.vault == nil {
		return ErrNilVault
	}
	l, ok := e.state.LoanGet(loanID)
	if !ok {
		return ErrNotFound
	}
	l.ensure()
	if err := e.requireBorrower(loanID, caller); err != nil {
		return err
	}

	e.accrue(l)
	if l.Debt.Sign() != 0 {
		return ErrDebtRemaining
	}
	if l.CollateralReleased {
		return ErrCollateralReleased
	}
	l.CollateralReleased = true
	if err := e.state.LoanPut(l); err != nil {
		return err
	}
	if err := e.vault.Release(l.CollateralID, caller); err != nil {
		return err
	}
	e.emit(NewReclaimedEvent(l, caller))
	return nil
}

// Loan returns a copy of the stored loan record.
func (e *Engine) Loan(loanID uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	l, ok := e.state.LoanGet(loanID)
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

// ProjectedDebt returns the debt the loan would carry if accrual ran now. It
// does not mutate the stored record.
func (e *Engine) ProjectedDebt(loanID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	l, ok := e.state.LoanGet(loanID)
	if !ok {
		return nil, ErrNotFound
	}
	view := l.Clone()
	e.accrue(view)
	return view.Debt, nil
}

func (e *Engine) requireBorrower(loanID uint64, caller common.Address) error {
	if e.rights == nil {
		return ErrNilRights
	}
	holder, err := e.rights.BorrowerOf(loanID)
	if err != nil {
		return err
	}
	if holder != caller {
		return ErrNotBorrower
	}
	return nil
}

func (e *Engine) requireLender(loanID uint64, caller common.Address) error {
	if e.rights == nil {
		return ErrNilRights
	}
	holder, err := e.rights.LenderOf(loanID)
	if err != nil {
		return err
	}
	if holder != caller {
		return ErrNotLender
	}
	return nil
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
