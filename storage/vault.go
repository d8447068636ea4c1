package storage

import (
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAlreadyCustodied = errors.New("storage: collateral already in custody")
	ErrNotCustodied     = errors.New("storage: collateral not in custody")
)

const (
	prefixCustody = "custody/"
	prefixYield   = "yield/"
)

func collateralKey(prefix string, collateralID [32]byte) []byte {
	return append([]byte(prefix), []byte(hex.EncodeToString(collateralID[:]))...)
}

// CollateralVault tracks custody of the revenue NFTs backing auctions and
// loans. Escrow-in happens at listing creation, release on unsold resolution
// or borrower reclaim. The vault only records the custody relationship; the
// asset's own transfer mechanics live outside the protocol.
type CollateralVault struct {
	db Database
}

// NewCollateralVault creates a vault over the given database.
func NewCollateralVault(db Database) *CollateralVault {
	return &CollateralVault{db: db}
}

// Escrow takes custody of a collateral on behalf of its owner.
func (v *CollateralVault) Escrow(collateralID [32]byte, from common.Address) error {
	key := collateralKey(prefixCustody, collateralID)
	if _, err := v.db.Get(key); err == nil {
		return ErrAlreadyCustodied
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return v.db.Put(key, from.Bytes())
}

// Release returns the collateral to the given owner and ends custody.
func (v *CollateralVault) Release(collateralID [32]byte, to common.Address) error {
	key := collateralKey(prefixCustody, collateralID)
	if _, err := v.db.Get(key); errors.Is(err, ErrNotFound) {
		return ErrNotCustodied
	} else if err != nil {
		return err
	}
	return v.db.Delete(key)
}

// Custodied reports whether the collateral is currently held by the vault.
func (v *CollateralVault) Custodied(collateralID [32]byte) (bool, error) {
	_, err := v.db.Get(collateralKey(prefixCustody, collateralID))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// YieldBook models each collateral's claimable income stream. External
// deposits accrue per collateral; the loan engine claims up to the
// outstanding debt and the claimed value is credited to the module account
// on the ledger.
type YieldBook struct {
	db     Database
	ledger *Ledger
}

// NewYieldBook creates a yield book crediting claims through the ledger.
func NewYieldBook(db Database, ledger *Ledger) *YieldBook {
	return &YieldBook{db: db, ledger: ledger}
}

// Deposit records income received by a collateral.
func (y *YieldBook) Deposit(collateralID [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	current, err := y.Claimable(collateralID)
	if err != nil {
		return err
	}
	current.Add(current, amount)
	return y.db.Put(collateralKey(prefixYield, collateralID), []byte(current.String()))
}

// Claimable returns the collateral's current claimable balance.
func (y *YieldBook) Claimable(collateralID [32]byte) (*big.Int, error) {
	raw, err := y.db.Get(collateralKey(prefixYield, collateralID))
	if errors.Is(err, ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, errors.New("storage: corrupt yield balance")
	}
	return balance, nil
}

// Claim transfers up to max of the claimable balance to the recipient account
// and returns the amount actually moved.
func (y *YieldBook) Claim(collateralID [32]byte, max *big.Int, to common.Address) (*big.Int, error) {
	if max == nil || max.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	balance, err := y.Claimable(collateralID)
	if err != nil {
		return nil, err
	}
	claimed := new(big.Int).Set(balance)
	if claimed.Cmp(max) > 0 {
		claimed.Set(max)
	}
	if claimed.Sign() == 0 {
		return big.NewInt(0), nil
	}
	remaining := new(big.Int).Sub(balance, claimed)
	if err := y.db.Put(collateralKey(prefixYield, collateralID), []byte(remaining.String())); err != nil {
		return nil, err
	}
	account, err := y.ledger.GetAccount(to)
	if err != nil {
		return nil, err
	}
	account.Balance = new(big.Int).Add(account.Balance, claimed)
	if err := y.ledger.PutAccount(to, account); err != nil {
		return nil, err
	}
	return claimed, nil
}
