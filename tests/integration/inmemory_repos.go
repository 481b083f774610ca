package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// GetByIDForUpdate relies on the locking transactor for serialization: the
// caller already holds the store-wide lock between Begin and Commit.
func (r *inMemoryAccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.Balance = balance
	a.UpdatedAt = time.Now()
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			cp := r.entries[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryLedgerRepo) ListByAccount(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.AccountID != params.AccountID {
			continue
		}
		if params.Direction != nil && e.Direction != *params.Direction {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Dispatch Repo ---

type inMemoryDispatchRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.DispatchRecord
}

func newInMemoryDispatchRepo() *inMemoryDispatchRepo {
	return &inMemoryDispatchRepo{records: make(map[uuid.UUID]*domain.DispatchRecord)}
}

func (r *inMemoryDispatchRepo) CreateBatch(ctx context.Context, records []domain.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		rec := records[i]
		if rec.ExternalID != nil && r.findByExternalIDLocked(*rec.ExternalID) != nil {
			continue // upsert semantics: replayed write is a no-op
		}
		r.records[rec.ID] = &rec
	}
	return nil
}

func (r *inMemoryDispatchRepo) findByExternalIDLocked(externalID string) *domain.DispatchRecord {
	for _, rec := range r.records {
		if rec.ExternalID != nil && *rec.ExternalID == externalID {
			return rec
		}
	}
	return nil
}

func (r *inMemoryDispatchRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.DispatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := r.findByExternalIDLocked(externalID)
	if rec == nil {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *inMemoryDispatchRepo) UpdateDelivery(ctx context.Context, externalID string, status domain.DispatchStatus, errorDetail *string, deliveredAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.findByExternalIDLocked(externalID)
	if rec == nil {
		return false, nil
	}
	rec.Status = status
	rec.ErrorDetail = errorDetail
	rec.DeliveredAt = deliveredAt
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (r *inMemoryDispatchRepo) ListByAccount(ctx context.Context, params ports.DispatchListParams) ([]domain.DispatchRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.DispatchRecord
	for _, rec := range r.records {
		if rec.AccountID != params.AccountID {
			continue
		}
		if params.Status != nil && rec.Status != *params.Status {
			continue
		}
		result = append(result, *rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.DispatchRecord{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryDispatchRepo) CountByStatus(ctx context.Context, accountID uuid.UUID) (map[domain.DispatchStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.DispatchStatus]int64)
	for _, rec := range r.records {
		if rec.AccountID == accountID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

// --- In-Memory Template Repo ---

type inMemoryTemplateRepo struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]*domain.Template
}

func newInMemoryTemplateRepo() *inMemoryTemplateRepo {
	return &inMemoryTemplateRepo{templates: make(map[uuid.UUID]*domain.Template)}
}

func (r *inMemoryTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.templates[t.ID] = &cp
	return nil
}

func (r *inMemoryTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// --- In-Memory Callback Dedup Cache ---

type inMemoryDedupCache struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func newInMemoryDedupCache() *inMemoryDedupCache {
	return &inMemoryDedupCache{keys: make(map[string]struct{})}
}

func (c *inMemoryDedupCache) Seen(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.keys[key]
	return ok, nil
}

func (c *inMemoryDedupCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = struct{}{}
	return nil
}

// --- Locking Transactor ---

// lockingTransactor provides the serialization a SELECT ... FOR UPDATE row
// lock gives in production: Begin takes a store-wide mutex that is held
// until Commit or Rollback, so concurrent balance mutations run one at a
// time and each sees the previous writer's result.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockTx{release: &t.mu}, nil
}

// lockTx releases the transactor lock exactly once on Commit or Rollback.
type lockTx struct {
	mu      sync.Mutex
	release *sync.Mutex
	done    bool
}

func (t *lockTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *lockTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *lockTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *lockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockTx) Conn() *pgx.Conn { return nil }
