package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// SGISource provides groundwater index readings for the catalog's stations.
type SGISource interface {
	CollectSGI(ctx context.Context, catalog domain.Catalog, from, to string) ([]domain.SGIObservation, error)
}

// WaterSupplySource provides per-capita water use and supply penetration.
type WaterSupplySource interface {
	WaterSupply(ctx context.Context, year string) ([]domain.WaterSupplyStat, error)
}

// FarmlandSource provides farmland area ratios.
type FarmlandSource interface {
	Farmland(ctx context.Context) ([]domain.FarmlandRatio, error)
}

// RevenueWaterSource provides revenue water rates.
type RevenueWaterSource interface {
	RevenueWater(ctx context.Context) ([]domain.RevenueWaterRate, error)
}

// CollectorConfig selects the periods requested from the sources.
type CollectorConfig struct {
	Catalog   domain.Catalog
	SGIFrom   string // YYYYMMDD
	SGITo     string
	KOSISYear string
}

// Collector gathers the raw inputs of one assessment from all four sources
// concurrently. It implements IndicatorSource.
type Collector struct {
	cfg          CollectorConfig
	sgi          SGISource
	supply       WaterSupplySource
	farmland     FarmlandSource
	revenueWater RevenueWaterSource
	logger       *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig, sgi SGISource, supply WaterSupplySource, farmland FarmlandSource, revenueWater RevenueWaterSource, logger *slog.Logger) *Collector {
	return &Collector{
		cfg:          cfg,
		sgi:          sgi,
		supply:       supply,
		farmland:     farmland,
		revenueWater: revenueWater,
		logger:       logger,
	}
}

// Collect fetches every source. Any source failing fails the collection.
func (c *Collector) Collect(ctx context.Context) (domain.IndicatorInputs, error) {
	var in domain.IndicatorInputs

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs, err := c.sgi.CollectSGI(gctx, c.cfg.Catalog, c.cfg.SGIFrom, c.cfg.SGITo)
		if err != nil {
			return fmt.Errorf("collect sgi: %w", err)
		}
		in.SGI = obs
		return nil
	})
	g.Go(func() error {
		stats, err := c.supply.WaterSupply(gctx, c.cfg.KOSISYear)
		if err != nil {
			return fmt.Errorf("collect water supply: %w", err)
		}
		in.WaterSupply = stats
		return nil
	})
	g.Go(func() error {
		ratios, err := c.farmland.Farmland(gctx)
		if err != nil {
			return fmt.Errorf("collect farmland: %w", err)
		}
		in.Farmland = ratios
		return nil
	})
	g.Go(func() error {
		rates, err := c.revenueWater.RevenueWater(gctx)
		if err != nil {
			return fmt.Errorf("collect revenue water: %w", err)
		}
		in.RevenueWater = rates
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.IndicatorInputs{}, err
	}

	c.logger.Info("indicators collected",
		"sgi_observations", len(in.SGI),
		"water_supply_rows", len(in.WaterSupply),
		"farmland_rows", len(in.Farmland),
		"revenue_water_rows", len(in.RevenueWater),
	)
	return in, nil
}
