// Package scheduler runs the periodic analytics snapshot job. Each run
// computes the dashboard and persists the headline values as SystemMetric
// rows so trends survive dashboard rebuilds.
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ranchcore/internal/core"
	"ranchcore/pkg/domain"
)

// Scheduler manages scheduled analytics jobs.
type Scheduler struct {
	cron       *cron.Cron
	svc        *core.Service
	aggregator *core.Aggregator
	spec       string
	logger     *zap.Logger
	nowFn      func() time.Time
}

// New creates a scheduler that snapshots metrics on the given cron spec
// (standard five-field cron).
func New(svc *core.Service, aggregator *core.Aggregator, spec string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:       cron.New(),
		svc:        svc,
		aggregator: aggregator,
		spec:       spec,
		logger:     logger,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for calculation dates. Intended for tests.
func (s *Scheduler) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// Start registers the metrics job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.logger.Info("scheduler started", zap.String("cron", s.spec))
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunOnce computes one dashboard snapshot and persists its headline values
// as metric rows for every ranch. Exposed so operators can trigger it
// manually and tests can run it without the cron loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	snap, err := s.aggregator.Snapshot(ctx)
	if err != nil {
		s.logger.Error("metrics snapshot failed", zap.Error(err))
		return
	}

	now := s.nowFn()
	calcDate := domain.NewDate(now.Year(), now.Month(), now.Day())

	values := map[string]float64{
		"total_animals":            float64(snap.KPIs.TotalAnimals),
		"active_animals":           float64(snap.KPIs.ActiveAnimals),
		"overdue_vaccinations":     float64(snap.KPIs.OverdueVaccinations),
		"recent_mortality_30_days": float64(snap.KPIs.RecentMortality30Days),
		"conception_rate_gap":      snap.RootCause.ConceptionRateGap,
		"imported_overdue_ratio":   snap.RootCause.OverdueRatio,
		"total_health_cost":        snap.Financial.TotalCost,
		"estimated_roi_percent":    snap.Financial.ROIPercent,
		"recoverable_pregnancies":  snap.Recommendation.EstimatedRecoverablePregnancies,
	}
	meta, _ := json.Marshal(map[string]any{"generated_at": snap.GeneratedAt})

	for _, ranch := range s.svc.ListRanches() {
		for metricType, value := range values {
			_, _, err := s.svc.CreateSystemMetric(ctx, domain.SystemMetric{
				RanchID:         ranch.ID,
				MetricType:      metricType,
				MetricValue:     value,
				CalculationDate: calcDate,
				Metadata:        meta,
			})
			if err != nil {
				s.logger.Error("persist metric failed",
					zap.String("ranch", ranch.ID),
					zap.String("metric_type", metricType),
					zap.Error(err),
				)
			}
		}
	}
	s.logger.Info("metrics snapshot persisted",
		zap.Int("ranches", len(s.svc.ListRanches())),
		zap.Int("metrics_per_ranch", len(values)),
	)
}
