package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DispatchStatus is the lifecycle state of a per-recipient dispatch.
type DispatchStatus string

const (
	DispatchStatusPending   DispatchStatus = "pending"
	DispatchStatusSent      DispatchStatus = "sent"
	DispatchStatusDelivered DispatchStatus = "delivered"
	DispatchStatusFailed    DispatchStatus = "failed"
)

// DispatchRecord is one recipient's outcome of a message-send attempt.
// Created by the dispatch orchestrator and later updated by the delivery
// reconciler; no other path mutates it. ExternalID is the provider's
// correlation id and stays nil until the provider accepts the message.
type DispatchRecord struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"` // the batch debit covering this record
	Recipient     string          `json:"recipient"`
	Message       string          `json:"message"`
	Status        DispatchStatus  `json:"status"`
	UnitCount     int             `json:"unit_count"` // billing segments, not characters
	Cost          decimal.Decimal `json:"cost"`
	ExternalID    *string         `json:"external_id,omitempty"`
	TemplateID    *uuid.UUID      `json:"template_id,omitempty"`
	ErrorDetail   *string         `json:"error_detail,omitempty"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the record can still change on reconciliation.
func (d *DispatchRecord) IsTerminal() bool {
	return d.Status == DispatchStatusDelivered || d.Status == DispatchStatusFailed
}
