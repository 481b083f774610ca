package service

import (
	"context"

	"sms-billing-gateway/internal/core/domain"
	"sms-billing-gateway/internal/core/ports"
	"sms-billing-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	dispatchRepo ports.DispatchRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(dispatchRepo ports.DispatchRepository) ports.ReportingService {
	return &reportingService{dispatchRepo: dispatchRepo}
}

// ListDispatches returns a paginated list of dispatch records.
func (s *reportingService) ListDispatches(ctx context.Context, params ports.DispatchListParams) ([]domain.DispatchRecord, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	records, total, err := s.dispatchRepo.ListByAccount(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return records, total, nil
}

// DispatchStats returns per-status dispatch counts for the account.
func (s *reportingService) DispatchStats(ctx context.Context, accountID uuid.UUID) (map[domain.DispatchStatus]int64, error) {
	stats, err := s.dispatchRepo.CountByStatus(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}
