package integration

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/internal/service"
	"sms-billing-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerFixture(t *testing.T, balance string) (ports.LedgerService, uuid.UUID) {
	t.Helper()
	accountRepo := newInMemoryAccountRepo()
	ledgerRepo := newInMemoryLedgerRepo()
	svc := service.NewLedgerService(accountRepo, ledgerRepo, newLockingTransactor(), zerolog.Nop())

	id := uuid.New()
	require.NoError(t, accountRepo.Create(context.Background(), &domain.Account{
		ID:           id,
		Currency:     "UGX",
		Balance:      decimal.RequireFromString(balance),
		SMSUnitPrice: decimal.RequireFromString("32.00"),
		Active:       true,
	}))
	return svc, id
}

// Two debits race for a balance that covers only one of them. The row
// lock must serialize them so exactly one wins and the loser sees the
// insufficient-funds error, never a negative balance.
func TestConcurrentDebits_ExactlyOneWins(t *testing.T) {
	svc, accountID := newLedgerFixture(t, "32.00")
	amount := decimal.RequireFromString("32.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(context.Background(), accountID, amount, "racing debit")
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "LED_001", appErr.Code)
		insufficient++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	balance, _, err := svc.Balance(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance should be exactly zero, got %s", balance)
}

// Many concurrent debits drain the balance exactly; the before/after
// snapshots must chain without gaps or overlaps.
func TestConcurrentDebits_SnapshotsChain(t *testing.T) {
	const workers = 10
	svc, accountID := newLedgerFixture(t, "100.00")
	amount := decimal.RequireFromString("10.00")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), accountID, amount, "drain")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, _, err := svc.Balance(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	entries, total, err := svc.ListEntries(context.Background(), ports.LedgerListParams{
		AccountID: accountID,
		Page:      1,
		PageSize:  100,
	})
	require.NoError(t, err)
	require.Equal(t, int64(workers), total)

	// Sort by balance_before descending: snapshots must step 100 -> 0
	// in increments of 10 with each after equal to the next before.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].BalanceBefore.GreaterThan(entries[j].BalanceBefore)
	})
	expected := decimal.RequireFromString("100.00")
	for _, e := range entries {
		assert.True(t, e.BalanceBefore.Equal(expected), "expected before %s, got %s", expected, e.BalanceBefore)
		expected = expected.Sub(amount)
		assert.True(t, e.BalanceAfter.Equal(expected), "expected after %s, got %s", expected, e.BalanceAfter)
	}
	assert.True(t, expected.IsZero())
}

// Credits and debits interleave; the final balance is the net of the
// operations that succeeded.
func TestConcurrentMixedOperations(t *testing.T) {
	// Start with enough to absorb every debit even if they all run
	// before any credit lands.
	svc, accountID := newLedgerFixture(t, "100.00")

	var wg sync.WaitGroup
	run := func(f func()) {
		wg.Add(1)
		go func() { defer wg.Done(); f() }()
	}

	debit := decimal.RequireFromString("20.00")
	credit := decimal.RequireFromString("30.00")
	for i := 0; i < 5; i++ {
		run(func() {
			_, err := svc.Debit(context.Background(), accountID, debit, "spend")
			assert.NoError(t, err)
		})
		run(func() {
			_, err := svc.Credit(context.Background(), accountID, credit, "topup")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	// 100 + 5*30 - 5*20 = 150
	balance, _, err := svc.Balance(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("150.00")), "got %s", balance)
}

// The full HTTP path under concurrent sends: the account can afford only
// one of two simultaneous batches.
func TestConcurrentSends_OnlyOneCharged(t *testing.T) {
	stack := newTestStack(t)
	_, token := stack.seedAccount(t, "32.00")

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := stack.do(t, http.MethodPost, "/api/v1/sms/send", token, map[string]any{
				"to":      []string{"+256700000001"},
				"message": "race",
			})
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	sort.Ints(codes)
	assert.Equal(t, []int{http.StatusCreated, http.StatusPaymentRequired}, codes)

	w := stack.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	assert.Equal(t, "0.00", dataOf(t, w)["balance"])
}
