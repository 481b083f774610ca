package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const dispatchColumns = `id, account_id, ledger_entry_id, recipient, message, status, unit_count, cost,
		external_id, template_id, error_detail, sent_at, delivered_at, created_at, updated_at`

// DispatchRepo implements ports.DispatchRepository.
type DispatchRepo struct {
	pool Pool
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(pool Pool) *DispatchRepo {
	return &DispatchRepo{pool: pool}
}

// CreateBatch inserts the per-recipient records of one dispatch. The
// external_id column carries a UNIQUE constraint; ON CONFLICT keeps a
// replayed write from duplicating rows for the same provider message.
func (r *DispatchRepo) CreateBatch(ctx context.Context, records []domain.DispatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO dispatch_records (id, account_id, ledger_entry_id, recipient, message, status, unit_count, cost,
		external_id, template_id, error_detail, sent_at, delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (external_id) WHERE external_id IS NOT NULL DO NOTHING`

	for _, rec := range records {
		_, err := r.pool.Exec(ctx, query,
			rec.ID, rec.AccountID, rec.LedgerEntryID, rec.Recipient, rec.Message,
			rec.Status, rec.UnitCount, rec.Cost, rec.ExternalID, rec.TemplateID,
			rec.ErrorDetail, rec.SentAt, rec.DeliveredAt, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert dispatch record: %w", err)
		}
	}
	return nil
}

// GetByExternalID fetches the dispatch record carrying the provider's
// correlation id. Returns nil when no record matches.
func (r *DispatchRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.DispatchRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM dispatch_records WHERE external_id = $1`, dispatchColumns)

	rec := &domain.DispatchRecord{}
	err := scanDispatch(r.pool.QueryRow(ctx, query, externalID), rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dispatch record by external id: %w", err)
	}
	return rec, nil
}

// UpdateDelivery applies a reconciled delivery outcome. Returns false
// when no record carries the external id.
func (r *DispatchRepo) UpdateDelivery(ctx context.Context, externalID string, status domain.DispatchStatus, errorDetail *string, deliveredAt *time.Time) (bool, error) {
	query := `UPDATE dispatch_records
		SET status = $1, error_detail = $2, delivered_at = $3, updated_at = NOW()
		WHERE external_id = $4`

	tag, err := r.pool.Exec(ctx, query, status, errorDetail, deliveredAt, externalID)
	if err != nil {
		return false, fmt.Errorf("update dispatch delivery: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByAccount fetches dispatch records with filtering and pagination.
func (r *DispatchRepo) ListByAccount(ctx context.Context, params ports.DispatchListParams) ([]domain.DispatchRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
	args = append(args, params.AccountID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM dispatch_records %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dispatch records: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM dispatch_records %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		dispatchColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list dispatch records: %w", err)
	}
	defer rows.Close()

	var records []domain.DispatchRecord
	for rows.Next() {
		rec := domain.DispatchRecord{}
		if err := scanDispatch(rows, &rec); err != nil {
			return nil, 0, fmt.Errorf("scan dispatch record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate dispatch record rows: %w", err)
	}
	return records, total, nil
}

// CountByStatus returns per-status dispatch counts for an account.
func (r *DispatchRepo) CountByStatus(ctx context.Context, accountID uuid.UUID) (map[domain.DispatchStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM dispatch_records WHERE account_id = $1 GROUP BY status`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("count dispatch records by status: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.DispatchStatus]int64)
	for rows.Next() {
		var status domain.DispatchStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan dispatch status count: %w", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch status counts: %w", err)
	}
	return stats, nil
}

func scanDispatch(row pgx.Row, rec *domain.DispatchRecord) error {
	return row.Scan(
		&rec.ID, &rec.AccountID, &rec.LedgerEntryID, &rec.Recipient, &rec.Message,
		&rec.Status, &rec.UnitCount, &rec.Cost, &rec.ExternalID, &rec.TemplateID,
		&rec.ErrorDetail, &rec.SentAt, &rec.DeliveredAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
}
