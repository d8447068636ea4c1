package auction

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/core/events"
	"yieldgate/core/types"
	nativecommon "yieldgate/native/common"
)

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	if evt != nil {
		r.types = append(r.types, evt.EventType())
	}
}

func (r *recordingEmitter) drain() []string {
	out := r.types
	r.types = nil
	return out
}

func containsEvent(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

var (
	factoryAddr = common.HexToAddress("0xfac7000000000000000000000000000000000001")
	vaultAddr   = common.HexToAddress("0x0000000000000000000000000000000000000aa1")
	creator     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bidder1     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	bidder2     = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type mockAuctionState struct {
	seq      uint64
	auctions map[uint64]*Auction
	refunds  map[common.Address]*big.Int
	accounts map[common.Address]*types.Account
}

func newMockAuctionState() *mockAuctionState {
	return &mockAuctionState{
		auctions: make(map[uint64]*Auction),
		refunds:  make(map[common.Address]*big.Int),
		accounts: make(map[common.Address]*types.Account),
	}
}

func (m *mockAuctionState) NextAuctionID() (uint64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockAuctionState) AuctionGet(id uint64) (*Auction, bool) {
	a, ok := m.auctions[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (m *mockAuctionState) AuctionPut(a *Auction) error {
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *mockAuctionState) RefundAdd(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if m.refunds[addr] == nil {
		m.refunds[addr] = big.NewInt(0)
	}
	m.refunds[addr] = new(big.Int).Add(m.refunds[addr], amount)
	return nil
}

func (m *mockAuctionState) RefundBalance(addr common.Address) (*big.Int, error) {
	if balance, ok := m.refunds[addr]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockAuctionState) RefundClear(addr common.Address) error {
	delete(m.refunds, addr)
	return nil
}

func (m *mockAuctionState) GetAccount(addr common.Address) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return &types.Account{Nonce: acc.Nonce, Balance: new(big.Int).Set(acc.Balance)}, nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m *mockAuctionState) PutAccount(addr common.Address, account *types.Account) error {
	m.accounts[addr] = account.Ensure()
	return nil
}

func (m *mockAuctionState) fund(addr common.Address, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockAuctionState) balance(addr common.Address) *big.Int {
	if acc, ok := m.accounts[addr]; ok {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

type mockSettler struct {
	calls int
	winner common.Address
	rate   uint64
}

func (m *mockSettler) OnAuctionSold(_ uint64, _, winner common.Address, _ *big.Int, rate uint64) error {
	m.calls++
	m.winner = winner
	m.rate = rate
	return nil
}

type mockVault struct {
	released map[[32]byte]common.Address
}

func (m *mockVault) Release(collateralID [32]byte, to common.Address) error {
	if m.released == nil {
		m.released = make(map[[32]byte]common.Address)
	}
	m.released[collateralID] = to
	return nil
}

type auctionFixture struct {
	engine  *Engine
	state   *mockAuctionState
	settler *mockSettler
	vault   *mockVault
	now     int64
}

func newAuctionFixture(t *testing.T) *auctionFixture {
	t.Helper()
	f := &auctionFixture{
		state:   newMockAuctionState(),
		settler: &mockSettler{},
		vault:   &mockVault{},
		now:     1_700_000_000,
	}
	f.engine = NewEngine(factoryAddr, vaultAddr)
	f.engine.SetState(f.state)
	f.engine.SetSettler(f.settler)
	f.engine.SetVault(f.vault)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *auctionFixture) create(t *testing.T, principal int64, maxRate uint64) uint64 {
	t.Helper()
	id, err := f.engine.CreateAuction(factoryAddr, creator, [32]byte{0xc0}, big.NewInt(principal), maxRate)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return id
}

func TestCreateAuction(t *testing.T) {
	f := newAuctionFixture(t)
	if _, err := f.engine.CreateAuction(creator, creator, [32]byte{0xc0}, big.NewInt(1000), 500); !errors.Is(err, ErrNotFactory) {
		t.Fatalf("expected ErrNotFactory, got %v", err)
	}

	id := f.create(t, 1000, 500)
	if id != 1 {
		t.Fatalf("first auction id %d, want 1", id)
	}
	a, err := f.engine.Auction(id)
	if err != nil {
		t.Fatalf("load auction: %v", err)
	}
	if a.CurrentRate != NoBid || a.HasBid() {
		t.Fatal("new auction must start without a bid")
	}
	if a.AuctionEnd != f.now+int64(initialWindow/time.Second) {
		t.Fatalf("auction end %d, want 24h window", a.AuctionEnd)
	}
	if id2 := f.create(t, 1000, 500); id2 != 2 {
		t.Fatalf("second auction id %d, want 2", id2)
	}
}

func TestBidValidation(t *testing.T) {
	f := newAuctionFixture(t)
	id := f.create(t, 1000, 500)
	f.state.fund(bidder1, 5000)

	if err := f.engine.Bid(99, bidder1, 300, big.NewInt(1000)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.engine.Bid(id, bidder1, 500, big.NewInt(1000)); !errors.Is(err, ErrRateTooHigh) {
		t.Fatalf("rate equal to max must be rejected, got %v", err)
	}
	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(999)); !errors.Is(err, ErrWrongPayment) {
		t.Fatalf("expected ErrWrongPayment, got %v", err)
	}
	if err := f.engine.Bid(id, bidder2, 300, big.NewInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(1000)); err != nil {
		t.Fatalf("valid bid: %v", err)
	}

	f.now = f.now + int64(initialWindow/time.Second)
	if err := f.engine.Bid(id, bidder1, 200, big.NewInt(1000)); !errors.Is(err, ErrAuctionClosed) {
		t.Fatalf("expected ErrAuctionClosed at the deadline, got %v", err)
	}
}

func TestBiddingWarRefundsSupersededBidder(t *testing.T) {
	f := newAuctionFixture(t)
	id := f.create(t, 1000, 500)
	f.state.fund(bidder1, 1000)
	f.state.fund(bidder2, 1000)

	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(1000)); err != nil {
		t.Fatalf("bid 1: %v", err)
	}
	if err := f.engine.Bid(id, bidder2, 400, big.NewInt(1000)); !errors.Is(err, ErrRateNotImproved) {
		t.Fatalf("worse rate must be rejected, got %v", err)
	}
	if err := f.engine.Bid(id, bidder2, 300, big.NewInt(1000)); !errors.Is(err, ErrRateNotImproved) {
		t.Fatalf("equal rate must be rejected, got %v", err)
	}
	if err := f.engine.Bid(id, bidder2, 200, big.NewInt(1000)); err != nil {
		t.Fatalf("bid 2: %v", err)
	}

	a, _ := f.engine.Auction(id)
	if a.HighestBidder != bidder2 || a.CurrentRate != 200 {
		t.Fatalf("leader %s at %d, want bidder2 at 200", a.HighestBidder.Hex(), a.CurrentRate)
	}

	// The superseded principal sits in the refund ledger, not bidder1's account.
	refund, _ := f.engine.RefundBalance(bidder1)
	if refund.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("refund %s, want 1000", refund)
	}
	if got := f.state.balance(bidder1); got.Sign() != 0 {
		t.Fatalf("bidder1 balance %s, want 0 before claim", got)
	}
	if got := f.state.balance(vaultAddr); got.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("vault balance %s, want 2000", got)
	}

	claimed, err := f.engine.ClaimFunds(bidder1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("claimed %s, want 1000", claimed)
	}
	if got := f.state.balance(bidder1); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("bidder1 balance %s, want 1000 after claim", got)
	}

	// Second claim finds nothing and is not an error.
	claimed, err = f.engine.ClaimFunds(bidder1)
	if err != nil || claimed.Sign() != 0 {
		t.Fatalf("empty claim: claimed=%v err=%v", claimed, err)
	}
}

func TestAntiSnipeExtension(t *testing.T) {
	f := newAuctionFixture(t)
	emitted := &recordingEmitter{}
	f.engine.SetEmitter(emitted)
	id := f.create(t, 1000, 500)
	f.state.fund(bidder1, 1000)
	f.state.fund(bidder2, 1000)
	created := f.now
	deadline := created + int64(initialWindow/time.Second)
	emitted.drain()

	// A bid with plenty of time left does not move the deadline and emits
	// only the bid notification.
	f.now = created + 1000
	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	a, _ := f.engine.Auction(id)
	if a.AuctionEnd != deadline {
		t.Fatalf("deadline moved to %d on an early bid", a.AuctionEnd)
	}
	got := emitted.drain()
	if !containsEvent(got, EventTypeBidAccepted) {
		t.Fatalf("early bid did not emit %s: %v", EventTypeBidAccepted, got)
	}
	if containsEvent(got, EventTypeAuctionExtended) {
		t.Fatalf("early bid must not emit %s: %v", EventTypeAuctionExtended, got)
	}

	// Ten minutes before the deadline the snipe window kicks in, with the
	// extension notification alongside the bid.
	f.now = deadline - 600
	if err := f.engine.Bid(id, bidder2, 200, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	a, _ = f.engine.Auction(id)
	extended := f.now + int64(snipeWindow/time.Second)
	if a.AuctionEnd != extended {
		t.Fatalf("deadline %d, want %d after snipe extension", a.AuctionEnd, extended)
	}
	got = emitted.drain()
	if !containsEvent(got, EventTypeBidAccepted) || !containsEvent(got, EventTypeAuctionExtended) {
		t.Fatalf("snipe bid must emit %s and %s: %v", EventTypeBidAccepted, EventTypeAuctionExtended, got)
	}

	// Extensions can chain indefinitely.
	f.engine.ClaimFunds(bidder1)
	f.now = extended - 1
	if err := f.engine.Bid(id, bidder1, 100, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	a, _ = f.engine.Auction(id)
	if a.AuctionEnd != f.now+int64(snipeWindow/time.Second) {
		t.Fatalf("deadline %d not re-extended", a.AuctionEnd)
	}
	if got := emitted.drain(); !containsEvent(got, EventTypeAuctionExtended) {
		t.Fatalf("chained snipe bid did not emit %s: %v", EventTypeAuctionExtended, got)
	}
}

func TestFinalizeSold(t *testing.T) {
	f := newAuctionFixture(t)
	id := f.create(t, 1000, 500)
	f.state.fund(bidder1, 1000)
	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := f.engine.Finalize(id); !errors.Is(err, ErrNotYetOver) {
		t.Fatalf("expected ErrNotYetOver, got %v", err)
	}

	f.now += int64(initialWindow / time.Second)
	if err := f.engine.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if f.settler.calls != 1 || f.settler.winner != bidder1 || f.settler.rate != 300 {
		t.Fatalf("settler calls=%d winner=%s rate=%d", f.settler.calls, f.settler.winner.Hex(), f.settler.rate)
	}

	// The creator collects the principal through the refund ledger.
	refund, _ := f.engine.RefundBalance(creator)
	if refund.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("creator refund %s, want 1000", refund)
	}

	a, _ := f.engine.Auction(id)
	if !a.Finalized() {
		t.Fatal("auction not marked finalized")
	}
	if err := f.engine.Finalize(id); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if err := f.engine.Bid(id, bidder1, 100, big.NewInt(1000)); !errors.Is(err, ErrAuctionClosed) {
		t.Fatalf("bids after finalize must fail, got %v", err)
	}
	if f.settler.calls != 1 {
		t.Fatalf("settler called %d times, want once", f.settler.calls)
	}
}

func TestFinalizeUnsold(t *testing.T) {
	f := newAuctionFixture(t)
	id := f.create(t, 1000, 500)

	f.now += int64(initialWindow / time.Second)
	if err := f.engine.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got := f.vault.released[[32]byte{0xc0}]; got != creator {
		t.Fatalf("collateral released to %s, want creator", got.Hex())
	}
	if f.settler.calls != 0 {
		t.Fatal("settler must not run for an unsold auction")
	}
	if err := f.engine.Finalize(id); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	f := newAuctionFixture(t)
	id := f.create(t, 1000, 500)
	f.state.fund(bidder1, 1000)

	f.engine.SetPauses(nativecommon.NewPauseSet([]string{"auction"}))
	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(1000)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := f.engine.ClaimFunds(bidder1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	f.engine.SetPauses(nil)
	if err := f.engine.Bid(id, bidder1, 300, big.NewInt(1000)); err != nil {
		t.Fatalf("unpaused bid: %v", err)
	}
}

func TestFundsConservation(t *testing.T) {
	f := newAuctionFixture(t)
	id := f.create(t, 1000, 500)
	f.state.fund(bidder1, 1000)
	f.state.fund(bidder2, 1000)

	total := func() *big.Int {
		sum := big.NewInt(0)
		for _, addr := range []common.Address{creator, bidder1, bidder2, vaultAddr} {
			sum.Add(sum, f.state.balance(addr))
		}
		return sum
	}
	start := total()

	f.engine.Bid(id, bidder1, 300, big.NewInt(1000))
	f.engine.Bid(id, bidder2, 200, big.NewInt(1000))
	f.now += int64(initialWindow / time.Second)
	f.engine.Finalize(id)
	f.engine.ClaimFunds(bidder1)
	f.engine.ClaimFunds(creator)

	if end := total(); end.Cmp(start) != 0 {
		t.Fatalf("funds not conserved: start=%s end=%s", start, end)
	}
	// Both refunds drain the vault: the superseded bid back to bidder1 and
	// the sale proceeds to the creator.
	if got := f.state.balance(vaultAddr); got.Sign() != 0 {
		t.Fatalf("vault balance %s, want 0", got)
	}
}
