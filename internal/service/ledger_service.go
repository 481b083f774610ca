package service

import (
	"context"
	"fmt"
	"time"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		log:         log,
	}
}

// Debit charges amount from the account under a row lock.
func (s *LedgerServiceImpl) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*domain.LedgerEntry, error) {
	return s.apply(ctx, accountID, domain.EntryDirectionDebit, amount, description)
}

// Credit adds amount to the account under a row lock.
func (s *LedgerServiceImpl) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*domain.LedgerEntry, error) {
	return s.apply(ctx, accountID, domain.EntryDirectionCredit, amount, description)
}

// apply runs the read-validate-write sequence shared by both directions.
// The SELECT ... FOR UPDATE on the account row serializes concurrent
// mutations, so balance_before/balance_after snapshots are always
// consistent with the stored balance.
func (s *LedgerServiceImpl) apply(ctx context.Context, accountID uuid.UUID, direction domain.EntryDirection, amount decimal.Decimal, description string) (*domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if !account.IsActive() {
		return nil, apperror.ErrAccountSuspended()
	}

	balanceBefore := account.Balance
	var balanceAfter decimal.Decimal
	switch direction {
	case domain.EntryDirectionDebit:
		if balanceBefore.LessThan(amount) {
			return nil, apperror.ErrInsufficientFunds(amount.Sub(balanceBefore))
		}
		balanceAfter = balanceBefore.Sub(amount)
	case domain.EntryDirectionCredit:
		balanceAfter = balanceBefore.Add(amount)
	default:
		return nil, apperror.InternalError(fmt.Errorf("unknown entry direction %q", direction))
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		AccountID:     accountID,
		Direction:     direction,
		Amount:        amount,
		Currency:      account.Currency,
		Description:   description,
		Status:        domain.EntryStatusCompleted,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, accountID, balanceAfter); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", accountID.String()).
		Str("direction", string(direction)).
		Str("amount", amount.String()).
		Str("balance_after", balanceAfter.String()).
		Msg("ledger entry recorded")

	return entry, nil
}

// Balance returns the account's current balance and currency.
func (s *LedgerServiceImpl) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, string, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, "", apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return decimal.Zero, "", apperror.ErrNotFound("account")
	}
	return account.Balance, account.Currency, nil
}

// ListEntries returns paginated ledger history for an account.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	entries, total, err := s.ledgerRepo.ListByAccount(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, total, nil
}
