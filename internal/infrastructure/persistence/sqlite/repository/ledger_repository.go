package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"txctl/internal/errs"
	"txctl/internal/infrastructure/persistence/sqlite/model"
	"txctl/internal/infrastructure/persistence/sqlite/txdb"
	"txctl/internal/ports"
)

// LedgerRepository reads and writes the ledger tables through the session of the
// ambient transaction.
type LedgerRepository struct {
	sessions *txdb.Provider
}

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

func NewLedgerRepository(sessions *txdb.Provider) *LedgerRepository {
	return &LedgerRepository{sessions: sessions}
}

func (r *LedgerRepository) GetAccount(ctx context.Context, name string) (ports.Account, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return ports.Account{}, err
	}
	return getAccountByName(db, name)
}

func (r *LedgerRepository) ListAccounts(ctx context.Context) ([]ports.Account, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Account
	if err := db.Order("name asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query accounts")
	}

	items := make([]ports.Account, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAccount(row))
	}
	return items, nil
}

func (r *LedgerRepository) ListEntries(ctx context.Context, account string, limit int) ([]ports.Entry, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Order("entry_id desc")
	if name := strings.TrimSpace(account); name != "" {
		query = query.Where("account = ?", name)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Entry
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query entries")
	}

	items := make([]ports.Entry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Entry{
			EntryID:     row.EntryID,
			Account:     row.Account,
			Amount:      row.Amount,
			TransferRef: row.TransferRef,
			Memo:        row.Memo,
			CreatedAt:   row.CreatedAt,
		})
	}
	return items, nil
}

func (r *LedgerRepository) ListAudits(ctx context.Context, ref string) ([]ports.AuditRecord, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AuditRecord
	if err := db.
		Where("ref = ?", ref).
		Order("audit_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit records")
	}

	items := make([]ports.AuditRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAudit(row))
	}
	return items, nil
}

func (r *LedgerRepository) CreateAccount(ctx context.Context, name string, now string) (ports.Account, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return ports.Account{}, err
	}

	row := model.Account{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return ports.Account{}, errs.Wrap(result.Error, "insert account")
	}
	if result.RowsAffected == 0 {
		return ports.Account{}, ports.ErrAccountExists
	}
	return mapAccount(row), nil
}

// AdjustBalance adds delta to the balance in one statement and returns the updated row.
func (r *LedgerRepository) AdjustBalance(ctx context.Context, name string, delta int64, now string) (ports.Account, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return ports.Account{}, err
	}

	result := db.Model(&model.Account{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": now,
		})
	if result.Error != nil {
		return ports.Account{}, errs.Wrap(result.Error, "update account balance")
	}
	if result.RowsAffected == 0 {
		return ports.Account{}, ports.ErrAccountNotFound
	}
	return getAccountByName(db, name)
}

func (r *LedgerRepository) AppendEntry(ctx context.Context, input ports.EntryCreate) (ports.Entry, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return ports.Entry{}, err
	}

	row := model.Entry{
		Account:     input.Account,
		Amount:      input.Amount,
		TransferRef: input.TransferRef,
		Memo:        input.Memo,
		CreatedAt:   input.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Entry{}, errs.Wrap(err, "insert entry")
	}
	return ports.Entry{
		EntryID:     row.EntryID,
		Account:     row.Account,
		Amount:      row.Amount,
		TransferRef: row.TransferRef,
		Memo:        row.Memo,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (r *LedgerRepository) AppendAudit(ctx context.Context, input ports.AuditCreate) (ports.AuditRecord, error) {
	db, err := r.sessions.DB(ctx)
	if err != nil {
		return ports.AuditRecord{}, err
	}

	row := model.AuditRecord{
		Ref:       input.Ref,
		Actor:     input.Actor,
		Action:    input.Action,
		Outcome:   input.Outcome,
		Detail:    input.Detail,
		CreatedAt: input.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.AuditRecord{}, errs.Wrap(err, "insert audit record")
	}
	return mapAudit(row), nil
}

func getAccountByName(db *gorm.DB, name string) (ports.Account, error) {
	var row model.Account
	if err := db.Where("name = ?", name).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Account{}, ports.ErrAccountNotFound
		}
		return ports.Account{}, errs.Wrap(err, "query account")
	}
	return mapAccount(row), nil
}

func mapAccount(row model.Account) ports.Account {
	return ports.Account{
		AccountID: row.AccountID,
		Name:      row.Name,
		Balance:   row.Balance,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapAudit(row model.AuditRecord) ports.AuditRecord {
	return ports.AuditRecord{
		AuditID:   row.AuditID,
		Ref:       row.Ref,
		Actor:     row.Actor,
		Action:    row.Action,
		Outcome:   row.Outcome,
		Detail:    row.Detail,
		CreatedAt: row.CreatedAt,
	}
}
