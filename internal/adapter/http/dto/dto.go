package dto

// SendSMSRequest is the request body for dispatching a message batch.
// Either message or template_id must be set; message wins when both are.
type SendSMSRequest struct {
	To         []string `json:"to" binding:"required,min=1,max=100,dive,msisdn"`
	Message    string   `json:"message" binding:"max=3200"`
	TemplateID *string  `json:"template_id,omitempty" binding:"omitempty,uuid"`
	From       string   `json:"from,omitempty" binding:"omitempty,sender_id"`
}

// RecipientResult is the per-recipient outcome in a send response.
type RecipientResult struct {
	Recipient     string  `json:"recipient"`
	Accepted      bool    `json:"accepted"`
	Status        string  `json:"status"`
	Cost          string  `json:"cost"`
	CorrelationID *string `json:"correlation_id,omitempty"`
}

// SendSMSResponse is the response body for a dispatched batch.
type SendSMSResponse struct {
	LedgerEntryID string            `json:"ledger_entry_id"`
	Summary       string            `json:"summary"`
	TotalSent     int               `json:"total_sent"`
	TotalCost     string            `json:"total_cost"`
	Currency      string            `json:"currency"`
	Recipients    []RecipientResult `json:"recipients"`
}

// DeliveryReportRequest is the provider's asynchronous delivery callback.
// Field names follow the provider's payload, not ours.
type DeliveryReportRequest struct {
	ID            string  `json:"id" form:"id"`
	Status        string  `json:"status" form:"status"`
	PhoneNumber   string  `json:"phoneNumber" form:"phoneNumber"`
	FailureReason *string `json:"failureReason,omitempty" form:"failureReason"`
}

// DeliveryReportResponse acknowledges a delivery callback.
type DeliveryReportResponse struct {
	Status string `json:"status"` // always "received"
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// LedgerEntryResponse is one ledger entry in history listings.
type LedgerEntryResponse struct {
	ID            string `json:"id"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	CreatedAt     string `json:"created_at"`
}

// LedgerListResponse wraps a paginated ledger entry list.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// DispatchRecordResponse is one dispatch record in history listings.
type DispatchRecordResponse struct {
	ID            string  `json:"id"`
	Recipient     string  `json:"recipient"`
	Message       string  `json:"message"`
	Status        string  `json:"status"`
	UnitCount     int     `json:"unit_count"`
	Cost          string  `json:"cost"`
	CorrelationID *string `json:"correlation_id,omitempty"`
	ErrorDetail   *string `json:"error_detail,omitempty"`
	SentAt        *string `json:"sent_at,omitempty"`
	DeliveredAt   *string `json:"delivered_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// DispatchListResponse wraps a paginated dispatch record list.
type DispatchListResponse struct {
	Items      []DispatchRecordResponse `json:"items"`
	Total      int64                    `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int                      `json:"total_pages"`
}

// DispatchStatsResponse is the per-status dispatch count summary.
type DispatchStatsResponse struct {
	Pending   int64 `json:"pending"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}
