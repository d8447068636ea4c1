package factory

import (
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/native/auction"
	"yieldgate/native/loan"
	"yieldgate/native/rights"
)

var (
	ErrNotConfigured    = errors.New("factory: coordinator not configured")
	ErrZeroCreator      = errors.New("factory: creator must not be the zero address")
	ErrInvalidPrincipal = errors.New("factory: principal must be positive")
	ErrInvalidMaxRate   = errors.New("factory: max rate must be in (0, rate scale]")
)

// Vault escrows collateral into protocol custody. Release happens inside the
// auction and loan engines through their own vault boundary.
type Vault interface {
	Escrow(collateralID [32]byte, from common.Address) error
}

// Coordinator is the orchestrating factory: it validates listing arguments,
// escrows the collateral, opens the auction, and on settlement mints both
// claims and creates the matching loan. Engines authorize it by address, and
// it holds no live references beyond the narrow callback wiring.
type Coordinator struct {
	addr     common.Address
	auctions *auction.Engine
	loans    *loan.Engine
	registry *rights.Registry
	vault    Vault
	logger   *slog.Logger
}

// NewCoordinator wires the factory to both engines and the rights registry.
func NewCoordinator(addr common.Address, auctions *auction.Engine, loans *loan.Engine, registry *rights.Registry, vault Vault, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		addr:     addr,
		auctions: auctions,
		loans:    loans,
		registry: registry,
		vault:    vault,
		logger:   logger,
	}
}

// Address returns the factory identity the engines authorize against.
func (c *Coordinator) Address() common.Address {
	if c == nil {
		return common.Address{}
	}
	return c.addr
}

// CreateListing escrows the collateral and opens a rate auction for it.
// Argument validation lives here: the auction engine trusts the factory.
func (c *Coordinator) CreateListing(creator common.Address, collateralID [32]byte, principal *big.Int, maxRate uint64) (uint64, error) {
	if c == nil || c.auctions == nil || c.vault == nil {
		return 0, ErrNotConfigured
	}
	if creator == (common.Address{}) {
		return 0, ErrZeroCreator
	}
	if principal == nil || principal.Sign() <= 0 {
		return 0, ErrInvalidPrincipal
	}
	if maxRate == 0 || maxRate > auction.RateScale {
		return 0, ErrInvalidMaxRate
	}
	if err := c.vault.Escrow(collateralID, creator); err != nil {
		return 0, err
	}
	id, err := c.auctions.CreateAuction(c.addr, creator, collateralID, principal, maxRate)
	if err != nil {
		return 0, err
	}
	c.logger.Info("listing created", "auctionId", id, "creator", creator.Hex(), "principal", principal.String(), "maxRate", maxRate)
	return id, nil
}

// OnAuctionSold implements the auction engine's settlement callback: the
// winner becomes the lender, the creator the borrower, and the loan is keyed
// by the auction id.
func (c *Coordinator) OnAuctionSold(auctionID uint64, creator, winner common.Address, principal *big.Int, rate uint64) error {
	if c == nil || c.auctions == nil || c.loans == nil || c.registry == nil {
		return ErrNotConfigured
	}
	a, err := c.auctions.Auction(auctionID)
	if err != nil {
		return err
	}
	if err := c.registry.Mint(rights.LenderClaim, auctionID, winner); err != nil {
		return err
	}
	if err := c.registry.Mint(rights.BorrowerClaim, auctionID, creator); err != nil {
		return err
	}
	if err := c.loans.CreateLoan(c.addr, auctionID, a.CollateralID, principal, rate); err != nil {
		return err
	}
	c.logger.Info("auction settled", "loanId", auctionID, "lender", winner.Hex(), "borrower", creator.Hex(), "rate", rate)
	return nil
}
