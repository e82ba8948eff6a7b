package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	RankingKeyPrefix = "seller:ranking:"
	RankingTTL       = time.Hour
	SalesWindow      = 7 * 24 * time.Hour

	rankingRebuildTimeout = 30 * time.Second
)

func RankingKey(sellerID int64) string {
	return RankingKeyPrefix + strconv.FormatInt(sellerID, 10)
}

// RankingService serves per-seller product sales rankings over the trailing
// sales window. Reads are cache-aside on the ranking cache; concurrent misses
// for one seller share a single aggregation.
type RankingService struct {
	store  port.Repository
	cache  port.CacheRepository
	logger *zap.Logger
	now    Clock
	group  singleflight.Group
}

func NewRankingService(store port.Repository, cache port.CacheRepository, logger *zap.Logger, now Clock) *RankingService {
	if now == nil {
		now = time.Now
	}
	return &RankingService{store: store, cache: cache, logger: logger.Named("ranking"), now: now}
}

func (s *RankingService) SellerRanking(ctx context.Context, sellerID int64) ([]domain.ProductSales, error) {
	key := RankingKey(sellerID)
	raw, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("ranking cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		entries, err := domain.DecodeRanking(raw)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("discarding malformed ranking cache entry", zap.String("key", key), zap.Error(err))
	}

	// The shared rebuild outlives any single caller; each caller only stops
	// waiting when its own context ends.
	ch := s.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rankingRebuildTimeout)
		defer cancel()
		entries, _, err := s.Rebuild(rctx, sellerID)
		return entries, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.ProductSales), nil
	}
}

// Rebuild recomputes a seller's ranking and overwrites the cache entry. A
// seller without sales in the window gets no cache write; written reports
// whether one happened.
func (s *RankingService) Rebuild(ctx context.Context, sellerID int64) (entries []domain.ProductSales, written bool, err error) {
	entries, err = s.store.SellerSalesSince(ctx, sellerID, s.now().Add(-SalesWindow))
	if err != nil {
		return nil, false, err
	}
	if len(entries) == 0 {
		return entries, false, nil
	}
	if err := s.cache.Set(ctx, RankingKey(sellerID), domain.EncodeRanking(entries), RankingTTL); err != nil {
		return entries, false, err
	}
	return entries, true, nil
}
