package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"yieldgate/core/types"
	"yieldgate/native/auction"
	"yieldgate/native/loan"
	"yieldgate/native/rights"
)

// Key prefixes. Auction records are append-only; loans are keyed by their
// originating auction id, which keeps the two id-spaces unified.
const (
	prefixAccount = "acct/"
	prefixAuction = "auction/"
	prefixLoan    = "loan/"
	prefixRefund  = "refund/"
	prefixRights  = "rights/"
	keyAuctionSeq = "seq/auction"
)

// Ledger persists accounts, auctions, loans, refund balances and rights
// holders on a Database. It satisfies the state interfaces of the auction
// engine, the loan engine and the rights registry. Records are JSON encoded;
// the store performs no validation beyond decoding.
type Ledger struct {
	db Database
}

// NewLedger wraps a Database in the ledger schema.
func NewLedger(db Database) *Ledger {
	return &Ledger{db: db}
}

func u64Key(prefix string, id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append([]byte(prefix), buf[:]...)
}

func addrKey(prefix string, addr common.Address) []byte {
	return append([]byte(prefix), addr.Bytes()...)
}

// NextAuctionID reserves and returns the next id in the append-only auction
// sequence, starting at 1.
func (l *Ledger) NextAuctionID() (uint64, error) {
	var next uint64 = 1
	raw, err := l.db.Get([]byte(keyAuctionSeq))
	switch {
	case err == nil:
		if len(raw) != 8 {
			return 0, errors.New("storage: corrupt auction sequence")
		}
		next = binary.BigEndian.Uint64(raw) + 1
	case errors.Is(err, ErrNotFound):
	default:
		return 0, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := l.db.Put([]byte(keyAuctionSeq), buf[:]); err != nil {
		return 0, err
	}
	return next, nil
}

// AuctionGet loads an auction record.
func (l *Ledger) AuctionGet(id uint64) (*auction.Auction, bool) {
	raw, err := l.db.Get(u64Key(prefixAuction, id))
	if err != nil {
		return nil, false
	}
	record := new(auction.Auction)
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, false
	}
	return record, true
}

// AuctionPut stores an auction record.
func (l *Ledger) AuctionPut(a *auction.Auction) error {
	if a == nil {
		return errors.New("storage: nil auction")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return l.db.Put(u64Key(prefixAuction, a.ID), raw)
}

// LoanGet loads a loan record.
func (l *Ledger) LoanGet(id uint64) (*loan.Loan, bool) {
	raw, err := l.db.Get(u64Key(prefixLoan, id))
	if err != nil {
		return nil, false
	}
	record := new(loan.Loan)
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, false
	}
	return record, true
}

// LoanPut stores a loan record.
func (l *Ledger) LoanPut(record *loan.Loan) error {
	if record == nil {
		return errors.New("storage: nil loan")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return l.db.Put(u64Key(prefixLoan, record.ID), raw)
}

// RefundBalance returns the refund ledger balance owed to an address.
func (l *Ledger) RefundBalance(addr common.Address) (*big.Int, error) {
	raw, err := l.db.Get(addrKey(prefixRefund, addr))
	if errors.Is(err, ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, errors.New("storage: corrupt refund balance")
	}
	return balance, nil
}

// RefundAdd accumulates an owed amount. Entries are never overwritten, only
// grown, matching the pull-payment model.
func (l *Ledger) RefundAdd(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	balance, err := l.RefundBalance(addr)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return l.db.Put(addrKey(prefixRefund, addr), []byte(balance.String()))
}

// RefundClear zeroes the owed amount ahead of a payout.
func (l *Ledger) RefundClear(addr common.Address) error {
	return l.db.Delete(addrKey(prefixRefund, addr))
}

// GetAccount loads an account, returning an empty one for unknown addresses.
func (l *Ledger) GetAccount(addr common.Address) (*types.Account, error) {
	raw, err := l.db.Get(addrKey(prefixAccount, addr))
	if errors.Is(err, ErrNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, err
	}
	return account.Ensure(), nil
}

// PutAccount stores an account.
func (l *Ledger) PutAccount(addr common.Address, account *types.Account) error {
	raw, err := json.Marshal(account.Ensure())
	if err != nil {
		return err
	}
	return l.db.Put(addrKey(prefixAccount, addr), raw)
}

func rightsKey(kind rights.Kind, loanID uint64) []byte {
	token := rights.TokenID(kind, loanID)
	return append([]byte(prefixRights), []byte(hex.EncodeToString(token[:]))...)
}

// HolderGet resolves the stored holder of a rights claim.
func (l *Ledger) HolderGet(kind rights.Kind, loanID uint64) (common.Address, bool) {
	raw, err := l.db.Get(rightsKey(kind, loanID))
	if err != nil || len(raw) != common.AddressLength {
		return common.Address{}, false
	}
	return common.BytesToAddress(raw), true
}

// HolderPut records the holder of a rights claim.
func (l *Ledger) HolderPut(kind rights.Kind, loanID uint64, holder common.Address) error {
	return l.db.Put(rightsKey(kind, loanID), holder.Bytes())
}
