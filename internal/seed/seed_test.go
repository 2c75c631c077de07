package seed

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"ranchcore/internal/core"
	"ranchcore/internal/infra/persistence/memory"
	"ranchcore/pkg/domain"
)

func TestRunSeedsDemoHerd(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, zap.NewNop())
	today := domain.NewDate(2025, time.July, 1)

	if err := New(svc, zap.NewNop(), today).Run(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// 8 local + 8 imported females, 4+4 males, one bull.
	animals := svc.ListAnimals()
	if len(animals) != 25 {
		t.Fatalf("animals = %d, want 25", len(animals))
	}

	if len(svc.ListUsers()) != 3 {
		t.Fatalf("users = %d, want 3", len(svc.ListUsers()))
	}
	if len(svc.ListStaff()) != 2 {
		t.Fatalf("staff = %d, want 2", len(svc.ListStaff()))
	}
	if len(svc.ListBreedingEvents()) != 16 {
		t.Fatalf("breeding events = %d, want 16", len(svc.ListBreedingEvents()))
	}
	if len(svc.ListVaccinations()) != 10 {
		t.Fatalf("vaccinations = %d, want 10", len(svc.ListVaccinations()))
	}
	if len(svc.ListTreatments()) != 3 {
		t.Fatalf("treatments = %d, want 3", len(svc.ListTreatments()))
	}
	if len(svc.ListHerdCounts()) != 3 {
		t.Fatalf("herd counts = %d, want 3", len(svc.ListHerdCounts()))
	}
	if len(svc.ListMovementLogs()) != 3 {
		t.Fatalf("movements = %d, want 3", len(svc.ListMovementLogs()))
	}
	if len(svc.ListSystemMetrics()) != 3 {
		t.Fatalf("metrics = %d, want 3", len(svc.ListSystemMetrics()))
	}

	// The seeded mortality must have flipped IMPF008 to dead.
	dead, ok := svc.GetAnimal("IMPF008")
	if !ok {
		t.Fatalf("IMPF008 missing")
	}
	if dead.Status != domain.StatusDead {
		t.Fatalf("IMPF008 status = %q, want dead", dead.Status)
	}

	// Every breeding event carries a derived delivery projection.
	for _, e := range svc.ListBreedingEvents() {
		if e.ExpectedDeliveryDate == nil {
			t.Fatalf("breeding event %s has no expected delivery date", e.ID)
		}
		if got, want := *e.ExpectedDeliveryDate, e.ServiceDate.AddDays(283); !got.Equal(want) {
			t.Fatalf("expected delivery = %v, want %v", got, want)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, zap.NewNop())
	today := domain.NewDate(2025, time.July, 1)
	seeder := New(svc, zap.NewNop(), today)

	if err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := len(svc.ListAnimals()); got != 25 {
		t.Fatalf("animals after rerun = %d, want 25", got)
	}
	if got := len(svc.ListBreedingEvents()); got != 16 {
		t.Fatalf("breeding events after rerun = %d, want 16", got)
	}
	if got := len(svc.ListVaccinations()); got != 10 {
		t.Fatalf("vaccinations after rerun = %d, want 10", got)
	}
	if got := len(svc.ListMortalities()); got != 1 {
		t.Fatalf("mortalities after rerun = %d, want 1", got)
	}
	if got := len(svc.ListSystemMetrics()); got != 3 {
		t.Fatalf("metrics after rerun = %d, want 3", got)
	}
}
