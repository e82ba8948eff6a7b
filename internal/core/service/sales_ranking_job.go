package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/port"
)

type RankingRunSummary struct {
	Sellers   int
	Succeeded int
	Skipped   int
	Failed    int
}

// SalesRankingJob rebuilds every seller's ranking cache entry.
type SalesRankingJob struct {
	store   port.Repository
	ranking *RankingService
	logger  *zap.Logger
}

func NewSalesRankingJob(store port.Repository, ranking *RankingService, logger *zap.Logger) *SalesRankingJob {
	return &SalesRankingJob{store: store, ranking: ranking, logger: logger.Named("sales_ranking_job")}
}

func (j *SalesRankingJob) Name() string { return "sales-ranking" }

func (j *SalesRankingJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce processes sellers one by one. A failure for one seller is logged
// and counted; only failing to list sellers aborts the run.
func (j *SalesRankingJob) RunOnce(ctx context.Context) (summary RankingRunSummary, err error) {
	ctx, span := tracer.Start(ctx, "SalesRankingJob.RunOnce")
	defer func() { endSpan(span, err) }()
	started := time.Now()

	sellers, err := j.store.ListSellers(ctx)
	if err != nil {
		return summary, fmt.Errorf("list sellers: %w", err)
	}
	summary.Sellers = len(sellers)

	for _, seller := range sellers {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		_, written, err := j.ranking.Rebuild(ctx, seller.ID)
		switch {
		case err != nil:
			summary.Failed++
			j.logger.Error("failed to rebuild seller ranking", zap.Int64("seller_id", seller.ID), zap.Error(err))
		case written:
			summary.Succeeded++
		default:
			summary.Skipped++
		}
	}

	j.logger.Info("sales ranking run finished",
		zap.Int("sellers", summary.Sellers),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(started)),
	)
	return summary, nil
}
