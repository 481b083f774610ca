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

// DashboardHandler handles dispatch history and statistics endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// GetStats handles GET /api/v1/sms/stats.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	counts, err := h.reportingSvc.DispatchStats(c.Request.Context(), accountID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	stats := dto.DispatchStatsResponse{
		Pending:   counts[domain.DispatchStatusPending],
		Sent:      counts[domain.DispatchStatusSent],
		Delivered: counts[domain.DispatchStatusDelivered],
		Failed:    counts[domain.DispatchStatusFailed],
	}
	stats.Total = stats.Pending + stats.Sent + stats.Delivered + stats.Failed

	response.OK(c, stats)
}

// ListHistory handles GET /api/v1/sms/history.
func (h *DashboardHandler) ListHistory(c *gin.Context) {
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

	params := ports.DispatchListParams{
		AccountID: accountID.(uuid.UUID),
		Page:      page,
		PageSize:  pageSize,
	}
	if s := c.Query("status"); s != "" {
		status := domain.DispatchStatus(s)
		params.Status = &status
	}

	records, total, err := h.reportingSvc.ListDispatches(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.DispatchRecordResponse, 0, len(records))
	for i := range records {
		items = append(items, toDispatchRecordResponse(&records[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.DispatchListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// toDispatchRecordResponse converts domain.DispatchRecord to its DTO.
func toDispatchRecordResponse(r *domain.DispatchRecord) dto.DispatchRecordResponse {
	resp := dto.DispatchRecordResponse{
		ID:            r.ID.String(),
		Recipient:     r.Recipient,
		Message:       r.Message,
		Status:        string(r.Status),
		UnitCount:     r.UnitCount,
		Cost:          r.Cost.StringFixed(2),
		CorrelationID: r.ExternalID,
		ErrorDetail:   r.ErrorDetail,
		CreatedAt:     r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.SentAt != nil {
		s := r.SentAt.Format("2006-01-02T15:04:05Z07:00")
		resp.SentAt = &s
	}
	if r.DeliveredAt != nil {
		s := r.DeliveredAt.Format("2006-01-02T15:04:05Z07:00")
		resp.DeliveredAt = &s
	}
	return resp
}
