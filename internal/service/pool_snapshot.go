package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"propmarket/internal/models"
	"propmarket/internal/repository"
)

// PoolSnapshotService periodically captures per-pool liquidity figures so
// historical supply and holder counts survive later trades.
type PoolSnapshotService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (s *PoolSnapshotService) RunOnce(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	pools, err := s.Repo.ListSharePools(ctx, repository.ListSharePoolsParams{Limit: 500})
	if err != nil {
		return err
	}
	now := time.Now().Truncate(time.Minute)
	for i := range pools {
		pool := &pools[i]
		holders, err := s.Repo.CountHoldersByShareID(ctx, pool.ID)
		if err != nil {
			return err
		}
		offers, err := s.Repo.CountOpenOffersByShareID(ctx, pool.ID)
		if err != nil {
			return err
		}
		snapshot := &models.PoolSnapshot{
			ShareID:         pool.ID,
			SnapshotAt:      now,
			TotalShares:     pool.TotalShares,
			AvailableShares: pool.AvailableShares,
			HolderCount:     holders,
			OpenOffers:      offers,
			PricePerShare:   pool.PricePerShare,
		}
		if err := s.Repo.InsertPoolSnapshot(ctx, snapshot); err != nil {
			return err
		}
	}
	if s.Logger != nil {
		s.Logger.Info("pool snapshots captured", zap.Int("pools", len(pools)), zap.Time("at", now))
	}
	return nil
}

func (s *PoolSnapshotService) Snapshots(ctx context.Context, params repository.ListPoolSnapshotsParams) ([]models.PoolSnapshot, error) {
	return s.Repo.ListPoolSnapshots(ctx, params)
}
