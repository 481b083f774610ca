package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/internal/core/ports/mocks"
	"sms-billing-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type dispatchTestDeps struct {
	svc          *DispatchServiceImpl
	ledger       *mocks.MockLedgerService
	accountRepo  *mocks.MockAccountRepository
	dispatchRepo *mocks.MockDispatchRepository
	templateRepo *mocks.MockTemplateRepository
	gateway      *mocks.MockSMSGateway
	broadcaster  *mocks.MockBroadcaster
	audit        *mocks.MockAuditService
	ctrl         *gomock.Controller
}

func setupDispatchService(t *testing.T) *dispatchTestDeps {
	ctrl := gomock.NewController(t)
	d := &dispatchTestDeps{
		ledger:       mocks.NewMockLedgerService(ctrl),
		accountRepo:  mocks.NewMockAccountRepository(ctrl),
		dispatchRepo: mocks.NewMockDispatchRepository(ctrl),
		templateRepo: mocks.NewMockTemplateRepository(ctrl),
		gateway:      mocks.NewMockSMSGateway(ctrl),
		broadcaster:  mocks.NewMockBroadcaster(ctrl),
		audit:        mocks.NewMockAuditService(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewDispatchService(
		d.ledger, d.accountRepo, d.dispatchRepo, d.templateRepo,
		d.gateway, d.broadcaster, d.audit, zerolog.Nop(),
	)
	return d
}

func debitEntry(accountID uuid.UUID, amount string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		Direction: domain.EntryDirectionDebit,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "UGX",
		Status:    domain.EntryStatusCompleted,
	}
}

func acceptedRecipient(number, msgID string) ports.GatewayRecipient {
	return ports.GatewayRecipient{
		Number:        number,
		Accepted:      true,
		Status:        "Success",
		StatusCode:    101,
		Cost:          decimal.RequireFromString("32.00"),
		CorrelationID: msgID,
	}
}

func TestDispatchService_Send_Success(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	recipients := []string{"+256700000001", "+256700000002"}
	entry := debitEntry(accountID, "64.00")

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), "SMS to 2 recipients").DoAndReturn(
		func(_ context.Context, _ uuid.UUID, amount decimal.Decimal, _ string) (*domain.LedgerEntry, error) {
			// 1 unit * 32.00 * 2 recipients
			assert.True(t, amount.Equal(decimal.RequireFromString("64.00")), "got %s", amount)
			return entry, nil
		})
	d.gateway.EXPECT().Send(gomock.Any(), "hello", recipients, "ATUpdates").Return(&ports.GatewaySendResult{
		Summary: "Sent to 2/2",
		Recipients: []ports.GatewayRecipient{
			acceptedRecipient("+256700000001", "ATXid_1"),
			acceptedRecipient("+256700000002", "ATXid_2"),
		},
	}, nil)
	d.dispatchRepo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, records []domain.DispatchRecord) error {
			require.Len(t, records, 2)
			assert.Equal(t, domain.DispatchStatusSent, records[0].Status)
			assert.Equal(t, "ATXid_1", *records[0].ExternalID)
			assert.Equal(t, entry.ID, records[0].LedgerEntryID)
			return nil
		})
	d.audit.EXPECT().Log(gomock.Any(), gomock.Any())
	d.broadcaster.EXPECT().Broadcast(gomock.Any()).Do(func(event domain.Event) {
		e, ok := event.(domain.BatchSentEvent)
		require.True(t, ok)
		assert.Equal(t, domain.EventBatchSent, e.EventType())
		assert.Equal(t, 2, e.TotalSent)
	})

	result, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: recipients,
		Message:    "hello",
		SenderID:   "ATUpdates",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalSent)
	assert.True(t, result.TotalCost.Equal(decimal.RequireFromString("64.00")))
	assert.Equal(t, entry.ID, result.LedgerEntryID)
}

func TestDispatchService_Send_PartialRejection(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	recipients := []string{"+256700000001", "bad-number"}
	entry := debitEntry(accountID, "64.00")

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).Return(entry, nil)
	d.gateway.EXPECT().Send(gomock.Any(), "hello", recipients, "").Return(&ports.GatewaySendResult{
		Summary: "Sent to 1/2",
		Recipients: []ports.GatewayRecipient{
			acceptedRecipient("+256700000001", "ATXid_1"),
			{Number: "bad-number", Accepted: false, Status: "InvalidPhoneNumber", StatusCode: 403, Cost: decimal.Zero},
		},
	}, nil)
	d.dispatchRepo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, records []domain.DispatchRecord) error {
			require.Len(t, records, 2)
			assert.Equal(t, domain.DispatchStatusFailed, records[1].Status)
			assert.Nil(t, records[1].ExternalID)
			require.NotNil(t, records[1].ErrorDetail)
			assert.Contains(t, *records[1].ErrorDetail, "InvalidPhoneNumber")
			return nil
		})
	d.audit.EXPECT().Log(gomock.Any(), gomock.Any())
	d.broadcaster.EXPECT().Broadcast(gomock.Any())

	// No Credit call: per-recipient rejection does not refund.
	result, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: recipients,
		Message:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalSent)
	assert.True(t, result.TotalCost.Equal(decimal.RequireFromString("32.00")))
	assert.False(t, result.Recipients[1].Accepted)
}

func TestDispatchService_Send_GatewayFailureRefunds(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	entry := debitEntry(accountID, "32.00")

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).Return(entry, nil)
	d.gateway.EXPECT().Send(gomock.Any(), "hello", gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
	d.ledger.EXPECT().Credit(gomock.Any(), accountID, entry.Amount, gomock.Any()).Return(&domain.LedgerEntry{}, nil)

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "hello",
	})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GW_001", appErr.Code)
}

func TestDispatchService_Send_RefundRetriesOnce(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	entry := debitEntry(accountID, "32.00")

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).Return(entry, nil)
	d.gateway.EXPECT().Send(gomock.Any(), "hello", gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	first := d.ledger.EXPECT().Credit(gomock.Any(), accountID, entry.Amount, gomock.Any()).Return(nil, errors.New("deadlock"))
	d.ledger.EXPECT().Credit(gomock.Any(), accountID, entry.Amount, gomock.Any()).After(first).Return(&domain.LedgerEntry{}, nil)

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "hello",
	})
	require.Error(t, err)
}

func TestDispatchService_Send_InsufficientFundsNoGatewayCall(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "10.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientFunds(decimal.RequireFromString("22.00")))

	// Gateway must never be reached when the debit fails.
	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "hello",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_001", appErr.Code)
}

func TestDispatchService_Send_MultiSegmentPricing(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	longMessage := strings.Repeat("a", 161)
	entry := debitEntry(accountID, "64.00")

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), "SMS to 1 recipients").DoAndReturn(
		func(_ context.Context, _ uuid.UUID, amount decimal.Decimal, _ string) (*domain.LedgerEntry, error) {
			// 2 units * 32.00 * 1 recipient
			assert.True(t, amount.Equal(decimal.RequireFromString("64.00")), "got %s", amount)
			return entry, nil
		})
	d.gateway.EXPECT().Send(gomock.Any(), longMessage, gomock.Any(), gomock.Any()).Return(&ports.GatewaySendResult{
		Summary:    "Sent to 1/1",
		Recipients: []ports.GatewayRecipient{acceptedRecipient("+256700000001", "ATXid_1")},
	}, nil)
	d.dispatchRepo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, records []domain.DispatchRecord) error {
			assert.Equal(t, 2, records[0].UnitCount)
			return nil
		})
	d.audit.EXPECT().Log(gomock.Any(), gomock.Any())
	d.broadcaster.EXPECT().Broadcast(gomock.Any())

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    longMessage,
	})
	assert.NoError(t, err)
}

func TestDispatchService_Send_TemplateMessage(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	templateID := uuid.New()
	entry := debitEntry(accountID, "32.00")

	d.templateRepo.EXPECT().GetByID(ctx, templateID).Return(&domain.Template{
		ID:      templateID,
		OwnerID: accountID,
		Content: "Your order is ready",
	}, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).Return(entry, nil)
	d.gateway.EXPECT().Send(gomock.Any(), "Your order is ready", gomock.Any(), gomock.Any()).Return(&ports.GatewaySendResult{
		Summary:    "Sent to 1/1",
		Recipients: []ports.GatewayRecipient{acceptedRecipient("+256700000001", "ATXid_1")},
	}, nil)
	d.dispatchRepo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(nil)
	d.audit.EXPECT().Log(gomock.Any(), gomock.Any())
	d.broadcaster.EXPECT().Broadcast(gomock.Any())

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		TemplateID: &templateID,
	})
	assert.NoError(t, err)
}

func TestDispatchService_Send_TemplateOwnedByAnotherAccount(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	templateID := uuid.New()

	d.templateRepo.EXPECT().GetByID(ctx, templateID).Return(&domain.Template{
		ID:      templateID,
		OwnerID: uuid.New(),
		Content: "someone else's content",
	}, nil)

	// No debit, no gateway call: the batch must be rejected before any
	// money moves.
	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		TemplateID: &templateID,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SMS_001", appErr.Code)
}

func TestDispatchService_Send_TemplateCheckedEvenWithInlineMessage(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	templateID := uuid.New()

	d.templateRepo.EXPECT().GetByID(ctx, templateID).Return(&domain.Template{
		ID:      templateID,
		OwnerID: uuid.New(),
		Content: "foreign content",
	}, nil)

	// An inline message does not bypass the ownership check.
	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "inline fallback",
		TemplateID: &templateID,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SMS_001", appErr.Code)
}

func TestDispatchService_Send_TemplateOverridesInlineMessage(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	templateID := uuid.New()
	entry := debitEntry(accountID, "32.00")

	d.templateRepo.EXPECT().GetByID(ctx, templateID).Return(&domain.Template{
		ID:      templateID,
		OwnerID: accountID,
		Content: "template content",
	}, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).Return(entry, nil)
	d.gateway.EXPECT().Send(gomock.Any(), "template content", gomock.Any(), gomock.Any()).Return(&ports.GatewaySendResult{
		Summary:    "Sent to 1/1",
		Recipients: []ports.GatewayRecipient{acceptedRecipient("+256700000001", "ATXid_1")},
	}, nil)
	d.dispatchRepo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(nil)
	d.audit.EXPECT().Log(gomock.Any(), gomock.Any())
	d.broadcaster.EXPECT().Broadcast(gomock.Any())

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "inline message",
		TemplateID: &templateID,
	})
	assert.NoError(t, err)
}

func TestDispatchService_Send_EmptyGatewayResultRefunds(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	entry := debitEntry(accountID, "32.00")

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(activeAccount(accountID, "1000.00"), nil)
	d.ledger.EXPECT().Debit(ctx, accountID, gomock.Any(), gomock.Any()).Return(entry, nil)
	// A result with zero recipient outcomes means nothing was attempted;
	// the charge must come back.
	d.gateway.EXPECT().Send(gomock.Any(), "hello", gomock.Any(), gomock.Any()).Return(&ports.GatewaySendResult{
		Summary: "InvalidSenderId",
	}, nil)
	d.ledger.EXPECT().Credit(gomock.Any(), accountID, entry.Amount, gomock.Any()).Return(&domain.LedgerEntry{}, nil)

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "hello",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GW_001", appErr.Code)
}

func TestDispatchService_Send_CancelledBeforeDebit(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	accountID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.accountRepo.EXPECT().GetByID(gomock.Any(), accountID).Return(activeAccount(accountID, "1000.00"), nil)

	// The caller hung up before the debit; no charge, no gateway call.
	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  accountID,
		Recipients: []string{"+256700000001"},
		Message:    "hello",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SMS_003", appErr.Code)
}

func TestDispatchService_Send_TemplateNotFound(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	templateID := uuid.New()

	d.templateRepo.EXPECT().GetByID(ctx, templateID).Return(nil, nil)

	_, err := d.svc.Send(ctx, ports.DispatchRequest{
		AccountID:  uuid.New(),
		Recipients: []string{"+256700000001"},
		TemplateID: &templateID,
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SMS_001", appErr.Code)
}

func TestDispatchService_Send_EmptyMessage(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Send(context.Background(), ports.DispatchRequest{
		AccountID:  uuid.New(),
		Recipients: []string{"+256700000001"},
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SMS_002", appErr.Code)
}

func TestDispatchService_Send_NoRecipients(t *testing.T) {
	d := setupDispatchService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Send(context.Background(), ports.DispatchRequest{
		AccountID: uuid.New(),
		Message:   "hello",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "REQ_001", appErr.Code)
}
