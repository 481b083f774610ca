package handler

import (
	"sms-billing-gateway/internal/adapter/http/dto"
	"sms-billing-gateway/internal/adapter/http/middleware"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/pkg/apperror"
	"sms-billing-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SMSHandler handles message dispatch and provider callbacks.
type SMSHandler struct {
	dispatchSvc  ports.DispatchService
	reconcileSvc ports.ReconcileService
	log          zerolog.Logger
}

// NewSMSHandler creates a new SMSHandler.
func NewSMSHandler(dispatchSvc ports.DispatchService, reconcileSvc ports.ReconcileService, log zerolog.Logger) *SMSHandler {
	return &SMSHandler{dispatchSvc: dispatchSvc, reconcileSvc: reconcileSvc, log: log}
}

// Send handles POST /api/v1/sms/send.
func (h *SMSHandler) Send(c *gin.Context) {
	accountID, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	dispatchReq := ports.DispatchRequest{
		AccountID:  accountID.(uuid.UUID),
		Recipients: req.To,
		Message:    req.Message,
		SenderID:   req.From,
	}
	if req.TemplateID != nil {
		tid, err := uuid.Parse(*req.TemplateID)
		if err != nil {
			response.Error(c, apperror.Validation("template_id must be a valid UUID"))
			return
		}
		dispatchReq.TemplateID = &tid
	}

	result, err := h.dispatchSvc.Send(c.Request.Context(), dispatchReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toSendResponse(result))
}

// DeliveryReport handles POST /api/v1/sms/delivery-reports — the provider's
// asynchronous callback. It always acknowledges with 200 so the provider
// does not retry; unknown or replayed reports are absorbed downstream.
func (h *SMSHandler) DeliveryReport(c *gin.Context) {
	var req dto.DeliveryReportRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Warn().Err(err).Msg("malformed delivery report")
		response.OK(c, dto.DeliveryReportResponse{Status: "received"})
		return
	}

	if err := h.reconcileSvc.Reconcile(c.Request.Context(), req.ID, req.Status, req.FailureReason); err != nil {
		h.log.Error().Err(err).Str("correlation_id", req.ID).Msg("delivery report reconciliation failed")
	}

	response.OK(c, dto.DeliveryReportResponse{Status: "received"})
}

// toSendResponse converts a dispatch result to its DTO.
func toSendResponse(result *ports.DispatchResult) dto.SendSMSResponse {
	recipients := make([]dto.RecipientResult, 0, len(result.Recipients))
	for _, r := range result.Recipients {
		recipients = append(recipients, dto.RecipientResult{
			Recipient:     r.Recipient,
			Accepted:      r.Accepted,
			Status:        r.Status,
			Cost:          r.Cost.StringFixed(2),
			CorrelationID: r.CorrelationID,
		})
	}
	return dto.SendSMSResponse{
		LedgerEntryID: result.LedgerEntryID.String(),
		Summary:       result.Summary,
		TotalSent:     result.TotalSent,
		TotalCost:     result.TotalCost.StringFixed(2),
		Currency:      result.Currency,
		Recipients:    recipients,
	}
}
