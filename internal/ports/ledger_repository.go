package ports

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound = errors.New("ledger account not found")
	ErrAccountExists   = errors.New("ledger account already exists")
)

type Account struct {
	AccountID uint64
	Name      string
	Balance   int64
	CreatedAt string
	UpdatedAt string
}

type Entry struct {
	EntryID     uint64
	Account     string
	Amount      int64
	TransferRef string
	Memo        string
	CreatedAt   string
}

type EntryCreate struct {
	Account     string
	Amount      int64
	TransferRef string
	Memo        string
	CreatedAt   string
}

type AuditRecord struct {
	AuditID   uint64
	Ref       string
	Actor     string
	Action    string
	Outcome   string
	Detail    string
	CreatedAt string
}

type AuditCreate struct {
	Ref       string
	Actor     string
	Action    string
	Outcome   string
	Detail    string
	CreatedAt string
}

type LedgerReadRepository interface {
	GetAccount(ctx context.Context, name string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListEntries(ctx context.Context, account string, limit int) ([]Entry, error)
	ListAudits(ctx context.Context, ref string) ([]AuditRecord, error)
}

type LedgerWriteRepository interface {
	CreateAccount(ctx context.Context, name string, now string) (Account, error)
	AdjustBalance(ctx context.Context, name string, delta int64, now string) (Account, error)
	AppendEntry(ctx context.Context, input EntryCreate) (Entry, error)
	AppendAudit(ctx context.Context, input AuditCreate) (AuditRecord, error)
}

type LedgerRepository interface {
	LedgerReadRepository
	LedgerWriteRepository
}
