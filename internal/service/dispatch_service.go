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
)

// DispatchServiceImpl implements ports.DispatchService. It owns the
// debit-before-send sequence: the batch is priced and charged first, the
// gateway is called after the debit commits, and a total gateway failure
// is compensated with a matching credit.
type DispatchServiceImpl struct {
	ledger       ports.LedgerService
	accountRepo  ports.AccountRepository
	dispatchRepo ports.DispatchRepository
	templateRepo ports.TemplateRepository
	gateway      ports.SMSGateway
	broadcaster  ports.Broadcaster
	audit        ports.AuditService
	log          zerolog.Logger
}

// NewDispatchService creates a new DispatchServiceImpl.
func NewDispatchService(
	ledger ports.LedgerService,
	accountRepo ports.AccountRepository,
	dispatchRepo ports.DispatchRepository,
	templateRepo ports.TemplateRepository,
	gateway ports.SMSGateway,
	broadcaster ports.Broadcaster,
	audit ports.AuditService,
	log zerolog.Logger,
) *DispatchServiceImpl {
	return &DispatchServiceImpl{
		ledger:       ledger,
		accountRepo:  accountRepo,
		dispatchRepo: dispatchRepo,
		templateRepo: templateRepo,
		gateway:      gateway,
		broadcaster:  broadcaster,
		audit:        audit,
		log:          log,
	}
}

// Send prices, charges and dispatches one batch.
func (s *DispatchServiceImpl) Send(ctx context.Context, req ports.DispatchRequest) (*ports.DispatchResult, error) {
	if len(req.Recipients) == 0 {
		return nil, apperror.Validation("at least one recipient is required")
	}

	message, err := s.resolveMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	units, totalCost := CostForBatch(message, len(req.Recipients), account.SMSUnitPrice)

	// Last safe point to abandon the request; once the debit commits the
	// batch goes out regardless of the caller.
	if err := ctx.Err(); err != nil {
		return nil, apperror.ErrRequestCancelled(err)
	}

	debitDesc := fmt.Sprintf("SMS to %d recipients", len(req.Recipients))
	debitEntry, err := s.ledger.Debit(ctx, req.AccountID, totalCost, debitDesc)
	if err != nil {
		return nil, err
	}

	// The debit is committed; from here the gateway call and everything
	// after it must survive the caller hanging up, or the account gets
	// charged for a batch nobody attempted.
	sendCtx := context.WithoutCancel(ctx)

	gwResult, err := s.gateway.Send(sendCtx, message, req.Recipients, req.SenderID)
	if err != nil {
		s.refund(sendCtx, req.AccountID, debitEntry)
		return nil, apperror.ErrGatewayUnavailable(err)
	}
	if len(gwResult.Recipients) == 0 {
		// Nothing was attempted, so nothing may stay charged.
		s.refund(sendCtx, req.AccountID, debitEntry)
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("gateway reported no recipient outcomes"))
	}

	result := s.recordOutcomes(sendCtx, req, account.Currency, message, units, debitEntry, gwResult)

	s.audit.Log(sendCtx, &domain.AuditLog{
		ID:           uuid.New(),
		AccountID:    &req.AccountID,
		Action:       domain.AuditActionDispatch,
		ResourceType: "ledger_entry",
		ResourceID:   debitEntry.ID.String(),
		Details:      fmt.Sprintf(`{"recipients":%d,"accepted":%d,"cost":"%s"}`, len(req.Recipients), result.TotalSent, result.TotalCost.String()),
		CreatedAt:    time.Now().UTC(),
	})

	s.broadcaster.Broadcast(domain.BatchSentEvent{
		Event:     domain.EventBatchSent,
		AccountID: req.AccountID.String(),
		Summary:   result.Summary,
		TotalSent: result.TotalSent,
		TotalCost: result.TotalCost.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	s.log.Info().
		Str("account_id", req.AccountID.String()).
		Int("recipients", len(req.Recipients)).
		Int("accepted", result.TotalSent).
		Str("cost", result.TotalCost.String()).
		Msg("sms batch dispatched")

	return result, nil
}

// resolveMessage returns the message body. A referenced template always
// takes precedence over an inline message and must belong to the caller;
// a template owned by another account is indistinguishable from a missing
// one.
func (s *DispatchServiceImpl) resolveMessage(ctx context.Context, req ports.DispatchRequest) (string, error) {
	if req.TemplateID != nil {
		tpl, err := s.templateRepo.GetByID(ctx, *req.TemplateID)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("get template: %w", err))
		}
		if tpl == nil || tpl.OwnerID != req.AccountID {
			return "", apperror.ErrTemplateNotFound()
		}
		if tpl.Content == "" {
			return "", apperror.ErrEmptyMessage()
		}
		return tpl.Content, nil
	}
	if req.Message == "" {
		return "", apperror.ErrEmptyMessage()
	}
	return req.Message, nil
}

// recordOutcomes writes the per-recipient history rows and assembles the
// batch result. Persistence problems here are logged, not surfaced: the
// provider has already accepted the batch and the charge stands.
func (s *DispatchServiceImpl) recordOutcomes(ctx context.Context, req ports.DispatchRequest, currency, message string, units int, debitEntry *domain.LedgerEntry, gw *ports.GatewaySendResult) *ports.DispatchResult {
	now := time.Now().UTC()
	result := &ports.DispatchResult{
		LedgerEntryID: debitEntry.ID,
		Summary:       gw.Summary,
		Currency:      currency,
	}

	records := make([]domain.DispatchRecord, 0, len(gw.Recipients))
	for _, r := range gw.Recipients {
		rec := domain.DispatchRecord{
			ID:            uuid.New(),
			AccountID:     req.AccountID,
			LedgerEntryID: debitEntry.ID,
			Recipient:     r.Number,
			Message:       message,
			UnitCount:     units,
			Cost:          r.Cost,
			TemplateID:    req.TemplateID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		outcome := ports.RecipientOutcome{
			Recipient: r.Number,
			Accepted:  r.Accepted,
			Status:    r.Status,
			Cost:      r.Cost,
		}

		if r.Accepted {
			rec.Status = domain.DispatchStatusSent
			extID := r.CorrelationID
			rec.ExternalID = &extID
			rec.SentAt = &now
			outcome.CorrelationID = &extID
			result.TotalSent++
			result.TotalCost = result.TotalCost.Add(r.Cost)
		} else {
			rec.Status = domain.DispatchStatusFailed
			detail := fmt.Sprintf("%s (code %d)", r.Status, r.StatusCode)
			rec.ErrorDetail = &detail
		}

		records = append(records, rec)
		result.Recipients = append(result.Recipients, outcome)
	}

	if err := s.dispatchRepo.CreateBatch(ctx, records); err != nil {
		s.log.Error().Err(err).
			Str("ledger_entry_id", debitEntry.ID.String()).
			Msg("failed to persist dispatch records")
	}

	return result
}

// refund issues the compensating credit after a total gateway failure.
// One retry; past that the inconsistency is logged for manual follow-up.
func (s *DispatchServiceImpl) refund(ctx context.Context, accountID uuid.UUID, debitEntry *domain.LedgerEntry) {
	desc := fmt.Sprintf("Refund: gateway failure for entry %s", debitEntry.ID)

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if _, lastErr = s.ledger.Credit(ctx, accountID, debitEntry.Amount, desc); lastErr == nil {
			s.log.Warn().
				Str("account_id", accountID.String()).
				Str("amount", debitEntry.Amount.String()).
				Msg("gateway failure, charge refunded")
			return
		}
	}

	s.log.Error().Err(lastErr).
		Str("account_id", accountID.String()).
		Str("ledger_entry_id", debitEntry.ID.String()).
		Str("amount", debitEntry.Amount.String()).
		Msg("compensating credit failed, manual reconciliation required")
}
