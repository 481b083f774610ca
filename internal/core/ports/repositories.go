package ports

import (
	"context"
	"time"

	"sms-billing-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks so the
// ledger can hold a row lock across its read-validate-write sequence.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error
}

// LedgerRepository defines persistence operations for ledger entries.
// Entries are append-only: there is no update or delete.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	ListByAccount(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	AccountID uuid.UUID
	Direction *domain.EntryDirection
	Status    *domain.EntryStatus
	Page      int
	PageSize  int
}

// DispatchRepository defines persistence operations for dispatch records.
type DispatchRepository interface {
	// CreateBatch inserts the per-recipient records of one dispatch. Records
	// carrying an external id are upserted on it so a replayed write after a
	// partial failure cannot duplicate rows.
	CreateBatch(ctx context.Context, records []domain.DispatchRecord) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.DispatchRecord, error)
	// UpdateDelivery applies a reconciled delivery outcome to the record
	// matching externalID. Returns false when no row matched.
	UpdateDelivery(ctx context.Context, externalID string, status domain.DispatchStatus, errorDetail *string, deliveredAt *time.Time) (bool, error)
	ListByAccount(ctx context.Context, params DispatchListParams) ([]domain.DispatchRecord, int64, error)
	CountByStatus(ctx context.Context, accountID uuid.UUID) (map[domain.DispatchStatus]int64, error)
}

// DispatchListParams holds filter + pagination for listing dispatch records.
type DispatchListParams struct {
	AccountID uuid.UUID
	Status    *domain.DispatchStatus
	Page      int
	PageSize  int
}

// TemplateRepository defines persistence operations for message templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
