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

const callbackDedupTTL = 24 * time.Hour

// ReconcileServiceImpl implements ports.ReconcileService. It folds
// asynchronous provider delivery reports back into dispatch records.
// Reports are applied idempotently: replays and unknown correlation ids
// are absorbed without error so the provider never sees a failure it
// would retry forever.
type ReconcileServiceImpl struct {
	dispatchRepo ports.DispatchRepository
	dedup        ports.CallbackDedupCache
	broadcaster  ports.Broadcaster
	audit        ports.AuditService
	log          zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
func NewReconcileService(
	dispatchRepo ports.DispatchRepository,
	dedup ports.CallbackDedupCache,
	broadcaster ports.Broadcaster,
	audit ports.AuditService,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		dispatchRepo: dispatchRepo,
		dedup:        dedup,
		broadcaster:  broadcaster,
		audit:        audit,
		log:          log,
	}
}

// Reconcile applies one provider delivery report.
func (s *ReconcileServiceImpl) Reconcile(ctx context.Context, correlationID, providerStatus string, failureReason *string) error {
	if correlationID == "" {
		return nil
	}

	status := mapProviderStatus(providerStatus)
	dedupKey := fmt.Sprintf("callback:%s:%s", correlationID, status)

	// Fast path: Redis remembers recently applied reports. A cache error
	// only disables the shortcut; the DB comparison below keeps the
	// operation idempotent on its own.
	seen, err := s.dedup.Seen(ctx, dedupKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", dedupKey).Msg("callback dedup check failed, falling through to DB")
	} else if seen {
		s.log.Debug().Str("correlation_id", correlationID).Msg("duplicate delivery report, skipped")
		return nil
	}

	record, err := s.dispatchRepo.GetByExternalID(ctx, correlationID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup dispatch record: %w", err))
	}
	if record == nil {
		// Provider reported an id we never issued, or the record predates
		// retention. Log and acknowledge.
		s.log.Warn().
			Str("correlation_id", correlationID).
			Str("provider_status", providerStatus).
			Msg("delivery report for unknown dispatch, ignored")
		return nil
	}

	if record.Status == status && !statusDiffers(record.ErrorDetail, failureReason) {
		s.markSeen(ctx, dedupKey)
		return nil
	}

	var deliveredAt *time.Time
	if status == domain.DispatchStatusDelivered {
		now := time.Now().UTC()
		deliveredAt = &now
	}

	updated, err := s.dispatchRepo.UpdateDelivery(ctx, correlationID, status, failureReason, deliveredAt)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("update delivery status: %w", err))
	}
	if !updated {
		return nil
	}

	s.markSeen(ctx, dedupKey)

	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		AccountID:    &record.AccountID,
		Action:       domain.AuditActionDeliveryCallback,
		ResourceType: "dispatch_record",
		ResourceID:   record.ID.String(),
		Details:      fmt.Sprintf(`{"status":"%s","provider_status":"%s"}`, status, providerStatus),
		CreatedAt:    time.Now().UTC(),
	})

	s.broadcaster.Broadcast(domain.DeliveryUpdateEvent{
		Event:         domain.EventDeliveryUpdate,
		Recipient:     record.Recipient,
		Status:        string(status),
		CorrelationID: correlationID,
		FailureReason: failureReason,
	})

	s.log.Info().
		Str("correlation_id", correlationID).
		Str("status", string(status)).
		Msg("delivery status reconciled")

	return nil
}

func (s *ReconcileServiceImpl) markSeen(ctx context.Context, key string) {
	if err := s.dedup.Mark(ctx, key, callbackDedupTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to mark callback as seen")
	}
}

// mapProviderStatus normalizes the provider's free-form status strings
// into dispatch statuses. Unknown strings count as failures so a new
// provider code never silently parks a record in "sent".
func mapProviderStatus(providerStatus string) domain.DispatchStatus {
	switch providerStatus {
	case "Success", "Delivered":
		return domain.DispatchStatusDelivered
	case "Sent", "Submitted", "Buffered":
		return domain.DispatchStatusSent
	default:
		return domain.DispatchStatusFailed
	}
}

func statusDiffers(current, incoming *string) bool {
	if current == nil && incoming == nil {
		return false
	}
	if current == nil || incoming == nil {
		return true
	}
	return *current != *incoming
}
