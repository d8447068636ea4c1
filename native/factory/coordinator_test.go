package factory_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/core/types"
	"yieldgate/native/auction"
	"yieldgate/native/factory"
	"yieldgate/native/loan"
	"yieldgate/native/rights"
	"yieldgate/storage"
)

var (
	factoryAddr = common.HexToAddress("0xfac7000000000000000000000000000000000001")
	vaultAddr   = common.HexToAddress("0x0000000000000000000000000000000000000aa1")
	creator     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bidder      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	rival       = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type protocol struct {
	ledger      *storage.Ledger
	vault       *storage.CollateralVault
	yields      *storage.YieldBook
	auctions    *auction.Engine
	loans       *loan.Engine
	registry    *rights.Registry
	coordinator *factory.Coordinator
	now         int64
}

func newProtocol(t *testing.T) *protocol {
	t.Helper()
	db := storage.NewMemDB()
	p := &protocol{
		ledger: storage.NewLedger(db),
		vault:  storage.NewCollateralVault(db),
		now:    1_700_000_000,
	}
	p.yields = storage.NewYieldBook(db, p.ledger)
	clock := func() int64 { return p.now }

	p.auctions = auction.NewEngine(factoryAddr, vaultAddr)
	p.auctions.SetState(p.ledger)
	p.auctions.SetVault(p.vault)
	p.auctions.SetNowFunc(clock)

	p.loans = loan.NewEngine(factoryAddr, vaultAddr)
	p.loans.SetState(p.ledger)
	p.loans.SetVault(p.vault)
	p.loans.SetYieldSource(p.yields)
	p.loans.SetNowFunc(clock)

	p.registry = rights.NewRegistry()
	p.registry.SetState(p.ledger)
	p.loans.SetRights(p.registry)

	p.coordinator = factory.NewCoordinator(factoryAddr, p.auctions, p.loans, p.registry, p.vault, nil)
	p.auctions.SetSettler(p.coordinator)
	return p
}

func (p *protocol) fund(t *testing.T, addr common.Address, amount int64) {
	t.Helper()
	if err := p.ledger.PutAccount(addr, &types.Account{Balance: big.NewInt(amount)}); err != nil {
		t.Fatalf("fund %s: %v", addr.Hex(), err)
	}
}

func (p *protocol) balance(t *testing.T, addr common.Address) *big.Int {
	t.Helper()
	acc, err := p.ledger.GetAccount(addr)
	if err != nil {
		t.Fatalf("account %s: %v", addr.Hex(), err)
	}
	return acc.Balance
}

const day = 24 * 60 * 60

func TestListingValidation(t *testing.T) {
	p := newProtocol(t)
	collateral := [32]byte{0xc0}

	cases := []struct {
		name      string
		creator   common.Address
		principal *big.Int
		maxRate   uint64
		want      error
	}{
		{"zero creator", common.Address{}, big.NewInt(1000), 500, factory.ErrZeroCreator},
		{"nil principal", creator, nil, 500, factory.ErrInvalidPrincipal},
		{"zero principal", creator, big.NewInt(0), 500, factory.ErrInvalidPrincipal},
		{"zero max rate", creator, big.NewInt(1000), 0, factory.ErrInvalidMaxRate},
		{"rate above scale", creator, big.NewInt(1000), auction.RateScale + 1, factory.ErrInvalidMaxRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.coordinator.CreateListing(tc.creator, collateral, tc.principal, tc.maxRate); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := p.coordinator.CreateListing(creator, collateral, big.NewInt(1000), 500); err != nil {
		t.Fatalf("valid listing: %v", err)
	}
	// The collateral is custodied and cannot be double listed.
	if held, _ := p.vault.Custodied(collateral); !held {
		t.Fatal("collateral not in custody")
	}
	if _, err := p.coordinator.CreateListing(creator, collateral, big.NewInt(1000), 500); !errors.Is(err, storage.ErrAlreadyCustodied) {
		t.Fatalf("expected ErrAlreadyCustodied, got %v", err)
	}
}

func TestLifecycleSoldAuction(t *testing.T) {
	p := newProtocol(t)
	collateral := [32]byte{0xc0}
	p.fund(t, bidder, 1000)
	p.fund(t, rival, 1000)

	id, err := p.coordinator.CreateListing(creator, collateral, big.NewInt(1000), 500)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if err := p.auctions.Bid(id, rival, 300, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if err := p.auctions.Bid(id, bidder, 200, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	p.now += day
	if err := p.auctions.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Settlement minted both claims and opened the loan under the auction id.
	if lender, err := p.registry.LenderOf(id); err != nil || lender != bidder {
		t.Fatalf("lender %s err=%v, want winning bidder", lender.Hex(), err)
	}
	if holder, err := p.registry.BorrowerOf(id); err != nil || holder != creator {
		t.Fatalf("borrower %s err=%v, want creator", holder.Hex(), err)
	}
	l, err := p.loans.Loan(id)
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	if l.Debt.Cmp(big.NewInt(1000)) != 0 || l.Rate != 200 {
		t.Fatalf("loan debt=%s rate=%d", l.Debt, l.Rate)
	}

	// The creator collects the principal, the losing bidder their refund.
	if got, err := p.auctions.ClaimFunds(creator); err != nil || got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("creator claim got=%v err=%v", got, err)
	}
	if got, err := p.auctions.ClaimFunds(rival); err != nil || got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("rival claim got=%v err=%v", got, err)
	}

	// Repay through both channels and close out the position.
	if err := p.yields.Deposit(collateral, big.NewInt(400)); err != nil {
		t.Fatalf("yield deposit: %v", err)
	}
	if applied, err := p.loans.RepayFromYield(id, creator); err != nil || applied.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("yield repay applied=%v err=%v", applied, err)
	}
	if applied, err := p.loans.RepayExternal(id, creator, big.NewInt(600)); err != nil || applied.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("external repay applied=%v err=%v", applied, err)
	}

	if paid, err := p.loans.Withdraw(id, bidder, big.NewInt(0)); err != nil || paid.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("withdraw paid=%v err=%v", paid, err)
	}
	if got := p.balance(t, bidder); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("lender made whole at %s, want 1000", got)
	}

	if err := p.loans.Reclaim(id, creator); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if held, _ := p.vault.Custodied(collateral); held {
		t.Fatal("collateral still custodied after reclaim")
	}
	// Fully settled: the vault account holds nothing.
	if got := p.balance(t, vaultAddr); got.Sign() != 0 {
		t.Fatalf("vault balance %s, want 0", got)
	}
}

func TestLifecycleUnsoldAuction(t *testing.T) {
	p := newProtocol(t)
	collateral := [32]byte{0xc0}

	id, err := p.coordinator.CreateListing(creator, collateral, big.NewInt(1000), 500)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	p.now += day
	if err := p.auctions.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// No loan, no claims, collateral back with the creator.
	if _, err := p.loans.Loan(id); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("expected no loan, got %v", err)
	}
	if _, err := p.registry.LenderOf(id); !errors.Is(err, rights.ErrNotMinted) {
		t.Fatalf("expected no lender claim, got %v", err)
	}
	if held, _ := p.vault.Custodied(collateral); held {
		t.Fatal("collateral still custodied")
	}
	// The collateral can be listed again.
	if _, err := p.coordinator.CreateListing(creator, collateral, big.NewInt(1000), 500); err != nil {
		t.Fatalf("relist: %v", err)
	}
}

func TestClaimTransferSwitchesPrivilege(t *testing.T) {
	p := newProtocol(t)
	collateral := [32]byte{0xc0}
	p.fund(t, bidder, 1000)
	p.fund(t, creator, 1000)

	id, err := p.coordinator.CreateListing(creator, collateral, big.NewInt(1000), 500)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if err := p.auctions.Bid(id, bidder, 200, big.NewInt(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	p.now += day
	if err := p.auctions.Finalize(id); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := p.loans.RepayExternal(id, creator, big.NewInt(1000)); err != nil {
		t.Fatalf("repay: %v", err)
	}

	if err := p.registry.Transfer(rights.LenderClaim, id, bidder, rival); err != nil {
		t.Fatalf("transfer claim: %v", err)
	}
	if _, err := p.loans.Withdraw(id, bidder, big.NewInt(0)); !errors.Is(err, loan.ErrNotLender) {
		t.Fatalf("old holder should be rejected, got %v", err)
	}
	if paid, err := p.loans.Withdraw(id, rival, big.NewInt(0)); err != nil || paid.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("new holder withdraw paid=%v err=%v", paid, err)
	}
}
