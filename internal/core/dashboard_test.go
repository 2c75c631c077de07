package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ranchcore/internal/infra/persistence/memory"
	"ranchcore/pkg/domain"
)

// seedDashboardFixture loads a herd of 8 locally born and 8 imported cattle
// females with a 75% vs 37.5% conception split, two overdue vaccinations on
// imported females, one treatment, and one recent mortality.
func seedDashboardFixture(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	run := func(fn func(tx domain.Transaction) error) {
		t.Helper()
		if _, err := store.RunInTransaction(ctx, fn); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	run(func(tx domain.Transaction) error {
		if _, err := tx.CreateUser(domain.User{ID: "user-1", Username: "amina", Role: domain.RoleManager, Active: true}); err != nil {
			return err
		}
		_, err := tx.CreateRanch(domain.Ranch{ID: "ranch-1", Name: "North Ranch", OwnerID: "user-1"})
		return err
	})

	run(func(tx domain.Transaction) error {
		for i := 1; i <= 8; i++ {
			if _, err := tx.CreateAnimal(domain.Animal{
				TagNumber: fmt.Sprintf("L-%d", i),
				RanchID:   "ranch-1",
				Species:   domain.SpeciesCattle,
				Sex:       domain.SexFemale,
				Source:    domain.SourceBorn,
			}); err != nil {
				return err
			}
			if _, err := tx.CreateAnimal(domain.Animal{
				TagNumber: fmt.Sprintf("I-%d", i),
				RanchID:   "ranch-1",
				Species:   domain.SpeciesCattle,
				Sex:       domain.SexFemale,
				Source:    domain.SourceImported,
			}); err != nil {
				return err
			}
		}
		return nil
	})

	run(func(tx domain.Transaction) error {
		// Local cohort: 6 of 8 conceived, 5 live births.
		for i := 1; i <= 8; i++ {
			event := domain.BreedingEvent{
				ID:          fmt.Sprintf("b-L-%d", i),
				FemaleTag:   fmt.Sprintf("L-%d", i),
				ServiceDate: domain.NewDate(2025, time.January, i),
				Method:      domain.MethodNatural,
			}
			if i <= 6 {
				event.PregnancyConfirmed = domain.PregnancyConfirmed
			} else {
				event.PregnancyConfirmed = domain.PregnancyNegative
			}
			if i <= 5 {
				event.Outcome = domain.OutcomeLiveBirth
			}
			if _, err := tx.CreateBreedingEvent(event); err != nil {
				return err
			}
		}
		// Imported cohort: 3 of 8 conceived, 1 live birth, 1 stillbirth.
		for i := 1; i <= 8; i++ {
			event := domain.BreedingEvent{
				ID:          fmt.Sprintf("b-I-%d", i),
				FemaleTag:   fmt.Sprintf("I-%d", i),
				ServiceDate: domain.NewDate(2025, time.February, i),
				Method:      domain.MethodArtificialInsemination,
			}
			if i <= 3 {
				event.PregnancyConfirmed = domain.PregnancyConfirmed
			} else {
				event.PregnancyConfirmed = domain.PregnancyNegative
			}
			switch i {
			case 1:
				event.Outcome = domain.OutcomeLiveBirth
			case 2:
				event.Outcome = domain.OutcomeStillbirth
			}
			if _, err := tx.CreateBreedingEvent(event); err != nil {
				return err
			}
		}
		return nil
	})

	run(func(tx domain.Transaction) error {
		cost := 4.5
		for i := 1; i <= 2; i++ {
			due := domain.NewDate(2025, time.June, 1)
			if _, err := tx.CreateVaccination(domain.Vaccination{
				ID:               fmt.Sprintf("v-%d", i),
				AnimalTag:        fmt.Sprintf("I-%d", i),
				VaccineType:      "FMD",
				DateAdministered: domain.NewDate(2024, time.December, 1),
				NextDueDate:      &due,
				Cost:             &cost,
			}); err != nil {
				return err
			}
		}
		treatCost := 12.0
		if _, err := tx.CreateTreatment(domain.Treatment{
			ID:            "t-1",
			AnimalTag:     "L-1",
			Diagnosis:     "foot rot",
			TreatmentDate: domain.NewDate(2025, time.May, 10),
			Cost:          &treatCost,
		}); err != nil {
			return err
		}
		value := 380.0
		_, err := tx.CreateMortality(domain.Mortality{
			ID:             "m-1",
			AnimalTag:      "L-8",
			DeathDate:      domain.NewDate(2025, time.June, 20),
			Cause:          "disease",
			EstimatedValue: &value,
		})
		return err
	})

	run(func(tx domain.Transaction) error {
		if _, err := tx.CreateHerdCount(domain.HerdCount{ID: "h-old", RanchID: "ranch-1", CountDate: domain.NewDate(2025, time.May, 1), Species: domain.SpeciesCattle, ExpectedCount: 16, ActualCount: 16}); err != nil {
			return err
		}
		_, err := tx.CreateHerdCount(domain.HerdCount{ID: "h-new", RanchID: "ranch-1", CountDate: domain.NewDate(2025, time.June, 25), Species: domain.SpeciesCattle, ExpectedCount: 16, ActualCount: 15})
		return err
	})
}

func newDashboardSnapshot(t *testing.T) DashboardSnapshot {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	seedDashboardFixture(t, store)

	agg := NewAggregator(store, nil, 320)
	agg.SetTodayFunc(func() domain.Date { return domain.NewDate(2025, time.July, 1) })
	snap, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func TestDashboardKPIs(t *testing.T) {
	snap := newDashboardSnapshot(t)
	if snap.KPIs.TotalAnimals != 16 {
		t.Fatalf("expected 16 animals, got %d", snap.KPIs.TotalAnimals)
	}
	if snap.KPIs.ActiveAnimals != 15 {
		t.Fatalf("expected 15 active after mortality, got %d", snap.KPIs.ActiveAnimals)
	}
	if snap.KPIs.OverdueVaccinations != 2 {
		t.Fatalf("expected 2 overdue vaccinations, got %d", snap.KPIs.OverdueVaccinations)
	}
	if snap.KPIs.RecentMortality30Days != 1 {
		t.Fatalf("expected 1 recent mortality, got %d", snap.KPIs.RecentMortality30Days)
	}
}

func TestDashboardSpeciesBreakdown(t *testing.T) {
	snap := newDashboardSnapshot(t)
	if len(snap.AnimalsBySpecies) != 1 {
		t.Fatalf("expected one species row, got %+v", snap.AnimalsBySpecies)
	}
	row := snap.AnimalsBySpecies[0]
	if row.Species != domain.SpeciesCattle || row.Total != 16 {
		t.Fatalf("unexpected species row %+v", row)
	}
}

func TestDashboardCohortComparison(t *testing.T) {
	snap := newDashboardSnapshot(t)
	byGroup := make(map[domain.Source]CohortStats)
	for _, c := range snap.BreedingBySource {
		byGroup[c.Source] = c
	}

	born := byGroup[domain.SourceBorn]
	if born.TotalEvents != 8 || born.Conceived != 6 || born.ConceptionRate != 75 {
		t.Fatalf("unexpected born cohort %+v", born)
	}
	if born.Mortalities != 1 || born.CalfSurvivalRate != 87.5 {
		t.Fatalf("unexpected born survival %+v", born)
	}

	imported := byGroup[domain.SourceImported]
	if imported.TotalEvents != 8 || imported.Conceived != 3 || imported.ConceptionRate != 37.5 {
		t.Fatalf("unexpected imported cohort %+v", imported)
	}
	if imported.Stillbirths != 1 || imported.StillbirthRate != 12.5 {
		t.Fatalf("unexpected imported stillbirths %+v", imported)
	}
	if imported.CalfSurvivalRate != 100 {
		t.Fatalf("expected imported survival 100, got %v", imported.CalfSurvivalRate)
	}
}

func TestDashboardRootCauseAndRecommendation(t *testing.T) {
	snap := newDashboardSnapshot(t)
	rc := snap.RootCause
	if rc.ImportedFemales != 8 || rc.ImportedFemalesOverdue != 2 {
		t.Fatalf("unexpected root cause counts %+v", rc)
	}
	if rc.OverdueRatio != 25 {
		t.Fatalf("expected overdue ratio 25, got %v", rc.OverdueRatio)
	}
	if rc.ConceptionRateGap != 37.5 {
		t.Fatalf("expected gap 37.5, got %v", rc.ConceptionRateGap)
	}
	if got := snap.Recommendation.EstimatedRecoverablePregnancies; got != 3.0 {
		t.Fatalf("expected 3.0 recoverable pregnancies, got %v", got)
	}
}

func TestDashboardHealthCorrelation(t *testing.T) {
	snap := newDashboardSnapshot(t)
	corr := snap.Correlation
	if corr.WithVaccination.TotalEvents != 2 || corr.WithVaccination.ConceptionRate != 100 {
		t.Fatalf("unexpected vaccinated split %+v", corr.WithVaccination)
	}
	if corr.WithoutVaccination.TotalEvents != 14 || corr.WithoutVaccination.ConceptionRate != 50 {
		t.Fatalf("unexpected unvaccinated split %+v", corr.WithoutVaccination)
	}
	if corr.WithTreatment.TotalEvents != 1 || corr.WithTreatment.ConceptionRate != 100 {
		t.Fatalf("unexpected treated split %+v", corr.WithTreatment)
	}
	if corr.WithoutTreatment.TotalEvents != 15 || corr.WithoutTreatment.ConceptionRate != 53.33 {
		t.Fatalf("unexpected untreated split %+v", corr.WithoutTreatment)
	}
}

func TestDashboardFinancialROI(t *testing.T) {
	snap := newDashboardSnapshot(t)
	fin := snap.Financial
	if fin.VaccinationCost != 9 || fin.TreatmentCost != 12 || fin.MortalityLoss != 380 {
		t.Fatalf("unexpected cost components %+v", fin)
	}
	if fin.TotalCost != 401 {
		t.Fatalf("expected total cost 401, got %v", fin.TotalCost)
	}
	if fin.LiveBirths != 6 || fin.EstimatedRevenue != 1920 {
		t.Fatalf("unexpected revenue %+v", fin)
	}
	if fin.ROIPercent != 378.8 {
		t.Fatalf("expected roi 378.8, got %v", fin.ROIPercent)
	}
}

func TestDashboardRecentAndHerdCount(t *testing.T) {
	snap := newDashboardSnapshot(t)
	if snap.LatestHerdCount == nil || snap.LatestHerdCount.ID != "h-new" {
		t.Fatalf("expected latest herd count h-new, got %+v", snap.LatestHerdCount)
	}
	if snap.LatestHerdCount.Difference != -1 {
		t.Fatalf("expected derived difference -1, got %d", snap.LatestHerdCount.Difference)
	}
	if len(snap.Recent.Breeding) != 10 {
		t.Fatalf("expected recent breeding capped at 10, got %d", len(snap.Recent.Breeding))
	}
	if snap.Recent.Breeding[0].FemaleTag != "I-8" {
		t.Fatalf("expected most recent breeding first, got %s", snap.Recent.Breeding[0].FemaleTag)
	}
	if len(snap.Recent.Mortalities) != 1 {
		t.Fatalf("expected one recent mortality, got %d", len(snap.Recent.Mortalities))
	}
}

func TestDashboardEmptyStoreIsAllZeros(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	agg := NewAggregator(store, nil, 0)
	snap, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.KPIs.TotalAnimals != 0 || snap.Financial.ROIPercent != 0 {
		t.Fatalf("expected zeroed snapshot, got %+v", snap)
	}
	if len(snap.BreedingBySource) != 0 {
		t.Fatalf("expected no cohorts, got %+v", snap.BreedingBySource)
	}
	if snap.Recommendation.EstimatedRecoverablePregnancies != 0 {
		t.Fatalf("expected zero recommendation with no data")
	}
	if snap.LatestHerdCount != nil {
		t.Fatalf("expected nil latest herd count")
	}
}
