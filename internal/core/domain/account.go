package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds a customer's prepaid messaging balance and pricing.
// The balance is owned exclusively by the ledger: it is never written
// outside a ledger debit/credit transaction.
type Account struct {
	ID           uuid.UUID       `json:"id"`
	Email        string          `json:"email"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	SMSUnitPrice decimal.Decimal `json:"sms_unit_price"` // price per message segment
	Active       bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsActive reports whether the account may dispatch messages.
func (a *Account) IsActive() bool {
	return a.Active
}
