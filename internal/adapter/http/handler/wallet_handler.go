package handler

import (
	"math"
	"strconv"

	"sms-billing-gateway/internal/adapter/http/dto"
	"sms-billing-gateway/internal/adapter/http/middleware"
	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/pkg/apperror"
	"sms-billing-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles balance and ledger history endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, currency, err := h.ledgerSvc.Balance(c.Request.Context(), accountID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Balance:  balance.StringFixed(2),
		Currency: currency,
	})
}

// ListEntries handles GET /api/v1/wallet/entries.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.LedgerListParams{
		AccountID: accountID.(uuid.UUID),
		Page:      page,
		PageSize:  pageSize,
	}
	if d := c.Query("direction"); d != "" {
		direction := domain.EntryDirection(d)
		params.Direction = &direction
	}
	if s := c.Query("status"); s != "" {
		status := domain.EntryStatus(s)
		params.Status = &status
	}

	entries, total, err := h.ledgerSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerEntryResponse(&entries[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// toLedgerEntryResponse converts domain.LedgerEntry to its DTO.
func toLedgerEntryResponse(e *domain.LedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:            e.ID.String(),
		Direction:     string(e.Direction),
		Amount:        e.Amount.StringFixed(2),
		Currency:      e.Currency,
		Description:   e.Description,
		Status:        string(e.Status),
		BalanceBefore: e.BalanceBefore.StringFixed(2),
		BalanceAfter:  e.BalanceAfter.StringFixed(2),
		CreatedAt:     e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
