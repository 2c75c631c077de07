package scheduler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"ranchcore/internal/core"
	"ranchcore/internal/infra/persistence/memory"
	"ranchcore/pkg/domain"
)

func TestRunOncePersistsMetricsPerRanch(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, zap.NewNop())
	ctx := context.Background()

	owner, _, err := svc.CreateUser(ctx, domain.User{Username: "owner", Active: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ranchA, _, err := svc.CreateRanch(ctx, domain.Ranch{Name: "North", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create ranch: %v", err)
	}
	ranchB, _, err := svc.CreateRanch(ctx, domain.Ranch{Name: "South", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create ranch: %v", err)
	}
	_, _, err = svc.CreateAnimal(ctx, domain.Animal{
		TagNumber: "C-1", RanchID: ranchA.ID,
		Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn,
	})
	if err != nil {
		t.Fatalf("create animal: %v", err)
	}

	sched := New(svc, core.NewAggregator(store, zap.NewNop(), 320), "0 2 * * *", zap.NewNop())
	sched.SetNowFunc(func() time.Time {
		return time.Date(2025, time.July, 1, 2, 0, 0, 0, time.UTC)
	})
	sched.RunOnce(ctx)

	metrics := svc.ListSystemMetrics()
	perRanch := map[string]map[string]float64{}
	for _, m := range metrics {
		if perRanch[m.RanchID] == nil {
			perRanch[m.RanchID] = map[string]float64{}
		}
		perRanch[m.RanchID][m.MetricType] = m.MetricValue
		if got, want := m.CalculationDate, domain.NewDate(2025, time.July, 1); got != want {
			t.Fatalf("calculation date = %v, want %v", got, want)
		}
	}

	if len(perRanch) != 2 {
		t.Fatalf("ranches with metrics = %d, want 2", len(perRanch))
	}
	for _, id := range []string{ranchA.ID, ranchB.ID} {
		vals, ok := perRanch[id]
		if !ok {
			t.Fatalf("no metrics for ranch %s", id)
		}
		if vals["total_animals"] != 1 {
			t.Fatalf("total_animals = %v, want 1", vals["total_animals"])
		}
		if _, ok := vals["conception_rate_gap"]; !ok {
			t.Fatalf("conception_rate_gap metric missing")
		}
	}
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, zap.NewNop())
	sched := New(svc, core.NewAggregator(store, zap.NewNop(), 320), "not a cron spec", zap.NewNop())
	if err := sched.Start(); err == nil {
		sched.Stop()
		t.Fatalf("Start accepted an invalid cron spec")
	}
}
