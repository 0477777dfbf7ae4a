package service

import (
	"context"

	"github.com/alextreichler/coursehub/internal/models"
)

type StatsSource interface {
	GetDashboardStats(ctx context.Context) (*models.Summary, error)
}

// SummaryService derives the admin overview on every call. Nothing is cached, so a
// summary always reflects the latest committed writes.
type SummaryService struct {
	stats StatsSource
}

func NewSummaryService(stats StatsSource) *SummaryService {
	return &SummaryService{stats: stats}
}

func (s *SummaryService) GetSummary(ctx context.Context) (*models.Summary, error) {
	return s.stats.GetDashboardStats(ctx)
}
