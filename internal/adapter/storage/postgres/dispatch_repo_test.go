package postgres

import (
	"context"
	"testing"
	"time"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatch(accountID uuid.UUID, externalID string) domain.DispatchRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := domain.DispatchRecord{
		ID:            uuid.New(),
		AccountID:     accountID,
		LedgerEntryID: uuid.New(),
		Recipient:     "+256700000001",
		Message:       "hello",
		Status:        domain.DispatchStatusSent,
		UnitCount:     1,
		Cost:          decimal.RequireFromString("32.00"),
		SentAt:        &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if externalID != "" {
		rec.ExternalID = &externalID
	}
	return rec
}

func dispatchRow(rec domain.DispatchRecord) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "account_id", "ledger_entry_id", "recipient", "message", "status", "unit_count", "cost",
		"external_id", "template_id", "error_detail", "sent_at", "delivered_at", "created_at", "updated_at",
	}).AddRow(
		rec.ID, rec.AccountID, rec.LedgerEntryID, rec.Recipient, rec.Message, rec.Status, rec.UnitCount, rec.Cost,
		rec.ExternalID, rec.TemplateID, rec.ErrorDetail, rec.SentAt, rec.DeliveredAt, rec.CreatedAt, rec.UpdatedAt,
	)
}

func TestDispatchRepo_CreateBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)
	accountID := uuid.New()
	records := []domain.DispatchRecord{
		newTestDispatch(accountID, "ATXid_1"),
		newTestDispatch(accountID, "ATXid_2"),
	}

	for _, rec := range records {
		mock.ExpectExec("INSERT INTO dispatch_records").
			WithArgs(rec.ID, rec.AccountID, rec.LedgerEntryID, rec.Recipient, rec.Message,
				rec.Status, rec.UnitCount, rec.Cost, rec.ExternalID, rec.TemplateID,
				rec.ErrorDetail, rec.SentAt, rec.DeliveredAt, rec.CreatedAt, rec.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	err = repo.CreateBatch(context.Background(), records)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepo_CreateBatch_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)
	assert.NoError(t, repo.CreateBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepo_GetByExternalID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)
	rec := newTestDispatch(uuid.New(), "ATXid_abc")

	mock.ExpectQuery("SELECT .+ FROM dispatch_records WHERE external_id").
		WithArgs("ATXid_abc").
		WillReturnRows(dispatchRow(rec))

	result, err := repo.GetByExternalID(context.Background(), "ATXid_abc")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, rec.Recipient, result.Recipient)
	assert.Equal(t, domain.DispatchStatusSent, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepo_GetByExternalID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM dispatch_records WHERE external_id").
		WithArgs("unknown-id").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	result, err := repo.GetByExternalID(context.Background(), "unknown-id")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDispatchRepo_UpdateDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE dispatch_records").
		WithArgs(domain.DispatchStatusDelivered, (*string)(nil), &now, "ATXid_abc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err := repo.UpdateDelivery(context.Background(), "ATXid_abc", domain.DispatchStatusDelivered, nil, &now)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepo_UpdateDelivery_NoMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)

	mock.ExpectExec("UPDATE dispatch_records").
		WithArgs(domain.DispatchStatusFailed, (*string)(nil), (*time.Time)(nil), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	updated, err := repo.UpdateDelivery(context.Background(), "missing", domain.DispatchStatusFailed, nil, nil)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestDispatchRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)
	accountID := uuid.New()
	rec := newTestDispatch(accountID, "ATXid_1")

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM dispatch_records").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM dispatch_records .+ ORDER BY created_at DESC").
		WithArgs(accountID, 20, 0).
		WillReturnRows(dispatchRow(rec))

	records, total, err := repo.ListByAccount(context.Background(), ports.DispatchListParams{
		AccountID: accountID,
		Page:      1,
		PageSize:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchRepo_CountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDispatchRepo(mock)
	accountID := uuid.New()

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM dispatch_records").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(domain.DispatchStatusSent, int64(3)).
			AddRow(domain.DispatchStatusDelivered, int64(5)).
			AddRow(domain.DispatchStatusFailed, int64(1)))

	stats, err := repo.CountByStatus(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats[domain.DispatchStatusSent])
	assert.Equal(t, int64(5), stats[domain.DispatchStatusDelivered])
	assert.Equal(t, int64(1), stats[domain.DispatchStatusFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}
