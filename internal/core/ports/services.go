package ports

import (
	"context"
	"time"

	"sms-billing-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Service Ports (Business Logic) ---

// LedgerService is the exclusive authority over account balances. Both
// operations run the read-validate-write sequence under a row lock so
// concurrent mutations of one account serialize.
type LedgerService interface {
	// Debit charges amount from the account. Fails with LED_001 carrying the
	// shortfall when the balance is insufficient; no entry is written then.
	Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*domain.LedgerEntry, error)
	// Credit adds amount to the account.
	Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*domain.LedgerEntry, error)
	// Balance returns the current spendable balance and currency.
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, string, error)
	// ListEntries returns paginated ledger history for an account.
	ListEntries(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// DispatchService orchestrates one message batch: price, debit, gateway
// call, history recording, broadcast.
type DispatchService interface {
	Send(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}

// DispatchRequest holds validated input for a dispatch.
type DispatchRequest struct {
	AccountID  uuid.UUID
	Recipients []string
	Message    string
	TemplateID *uuid.UUID
	SenderID   string
}

// DispatchResult is the per-batch outcome returned to the caller.
type DispatchResult struct {
	LedgerEntryID uuid.UUID
	Summary       string
	TotalSent     int
	TotalCost     decimal.Decimal
	Currency      string
	Recipients    []RecipientOutcome
}

// RecipientOutcome is one recipient's dispatch outcome.
type RecipientOutcome struct {
	Recipient     string
	Accepted      bool
	Status        string
	Cost          decimal.Decimal
	CorrelationID *string
}

// ReconcileService consumes asynchronous delivery callbacks.
type ReconcileService interface {
	// Reconcile applies a provider delivery report. Unknown correlation ids
	// and replayed reports are no-ops, never errors.
	Reconcile(ctx context.Context, correlationID, providerStatus string, failureReason *string) error
}

// ReportingService exposes read-only dispatch history and statistics.
type ReportingService interface {
	ListDispatches(ctx context.Context, params DispatchListParams) ([]domain.DispatchRecord, int64, error)
	DispatchStats(ctx context.Context, accountID uuid.UUID) (map[domain.DispatchStatus]int64, error)
}

// Broadcaster fans out events to connected observers. Best-effort: it
// never blocks and never returns an error to the caller.
type Broadcaster interface {
	Broadcast(event domain.Event)
}

// SMSGateway abstracts the external send-message call. Implementations
// must not retry internally; a total failure surfaces as GW_001 while
// per-recipient rejections come back as Accepted=false entries.
type SMSGateway interface {
	Send(ctx context.Context, message string, recipients []string, senderID string) (*GatewaySendResult, error)
}

// GatewaySendResult is the provider's response to one batch.
type GatewaySendResult struct {
	Summary    string
	Recipients []GatewayRecipient
}

// GatewayRecipient is the provider's per-recipient verdict.
type GatewayRecipient struct {
	Number        string
	Accepted      bool
	Status        string
	StatusCode    int
	Cost          decimal.Decimal
	CorrelationID string
}

// CallbackDedupCache short-circuits replayed delivery callbacks. A Redis
// failure only disables the fast path; the reconciler stays idempotent
// from database state alone.
type CallbackDedupCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
}

// AuditService records audited actions without blocking the request path.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
