// Package dashboard serves warehouse overview projections. Aggregates are
// computed from the inventory stores, cached in Redis behind a version key and
// deduplicated with singleflight so a burst of dashboard loads costs one
// database round trip.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stockline-wms/stockline/internal/inventory"
)

// StatsSource is the slice of the inventory repository the dashboard reads.
type StatsSource interface {
	GetStats(ctx context.Context) (inventory.Stats, error)
	LowStock(ctx context.Context, threshold int) ([]inventory.Batch, error)
	UnitsNeedingSerial(ctx context.Context, limit int) ([]inventory.Unit, error)
}

// Overview aggregates everything the dashboard view needs.
type Overview struct {
	Stats         inventory.Stats           `json:"stats"`
	LowStock      []inventory.BatchResponse `json:"low_stock"`
	NeedingSerial []inventory.UnitResponse  `json:"needing_serial"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}

// Service coordinates dashboard data preparation.
type Service struct {
	source    StatsSource
	cache     *Cache
	threshold int
	group     singleflight.Group
}

// NewService constructs a Service instance. threshold is the available
// quantity below which a batch counts as low stock.
func NewService(source StatsSource, cache *Cache, threshold int) *Service {
	if threshold <= 0 {
		threshold = 5
	}
	return &Service{source: source, cache: cache, threshold: threshold}
}

// Load returns the dashboard overview, from cache when fresh.
func (s *Service) Load(ctx context.Context) (Overview, error) {
	if s.source == nil {
		return Overview{}, fmt.Errorf("dashboard: source not configured")
	}
	key, err := s.cache.BuildKey(ctx, keyOverview(s.threshold))
	if err != nil {
		return Overview{}, err
	}
	result, err, _ := s.flight(ctx, key, func(ctx context.Context) (interface{}, error) {
		var overview Overview
		err := s.cache.FetchJSON(ctx, key, &overview, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx)
		})
		return overview, err
	})
	if err != nil {
		return Overview{}, err
	}
	return result.(Overview), nil
}

// LowStock returns batches under the configured threshold, from cache when fresh.
func (s *Service) LowStock(ctx context.Context) ([]inventory.BatchResponse, error) {
	key, err := s.cache.BuildKey(ctx, keyLowStock(s.threshold))
	if err != nil {
		return nil, err
	}
	result, err, _ := s.flight(ctx, key, func(ctx context.Context) (interface{}, error) {
		var batches []inventory.BatchResponse
		err := s.cache.FetchJSON(ctx, key, &batches, func(ctx context.Context) (interface{}, error) {
			low, err := s.source.LowStock(ctx, s.threshold)
			if err != nil {
				return nil, err
			}
			return inventory.NewBatchResponses(low), nil
		})
		return batches, err
	})
	if err != nil {
		return nil, err
	}
	return result.([]inventory.BatchResponse), nil
}

// Invalidate drops cached projections after inventory mutations.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context) (Overview, error) {
	var overview Overview

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := s.source.GetStats(ctx)
		if err != nil {
			return err
		}
		overview.Stats = stats
		return nil
	})

	g.Go(func() error {
		low, err := s.source.LowStock(ctx, s.threshold)
		if err != nil {
			return err
		}
		overview.LowStock = inventory.NewBatchResponses(low)
		return nil
	})

	g.Go(func() error {
		units, err := s.source.UnitsNeedingSerial(ctx, 50)
		if err != nil {
			return err
		}
		overview.NeedingSerial = inventory.NewUnitResponses(units)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	overview.GeneratedAt = time.Now().UTC()
	return overview, nil
}

func (s *Service) flight(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
