package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ranchcore/pkg/domain"
)

func seedRanch(t *testing.T, store *Store) (ownerID, ranchID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		owner, err := tx.CreateUser(domain.User{ID: "user-1", Username: "amina", Role: domain.RoleManager, Active: true})
		if err != nil {
			return err
		}
		_, err = tx.CreateRanch(domain.Ranch{ID: "ranch-1", Name: "North Ranch", OwnerID: owner.ID})
		return err
	}); err != nil {
		t.Fatalf("seed ranch: %v", err)
	}
	return "user-1", "ranch-1"
}

func createAnimal(t *testing.T, store *Store, a domain.Animal) domain.Animal {
	t.Helper()
	var created domain.Animal
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateAnimal(a)
		return err
	}); err != nil {
		t.Fatalf("create animal %s: %v", a.TagNumber, err)
	}
	return created
}

func TestCreateAnimalDefaultsStatus(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)

	created := createAnimal(t, store, domain.Animal{
		TagNumber: "C-001",
		RanchID:   ranchID,
		Species:   domain.SpeciesCattle,
		Sex:       domain.SexFemale,
		Source:    domain.SourceBorn,
	})
	if created.Status != domain.StatusActive {
		t.Fatalf("expected default status active, got %q", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
}

func TestCreateAnimalUnknownRanch(t *testing.T) {
	store := NewStore(nil)
	seedRanch(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(domain.Animal{TagNumber: "C-404", RanchID: "missing", Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn})
		return err
	})
	var nfe domain.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nfe.Entity != domain.EntityRanch {
		t.Fatalf("expected ranch not found, got %s", nfe.Entity)
	}
}

func TestGestationProjectionPerSpecies(t *testing.T) {
	cases := []struct {
		species domain.Species
		days    int
	}{
		{domain.SpeciesCattle, 283},
		{domain.SpeciesGoat, 150},
		{domain.SpeciesSheep, 147},
	}
	for _, tc := range cases {
		store := NewStore(nil)
		_, ranchID := seedRanch(t, store)
		createAnimal(t, store, domain.Animal{TagNumber: "F-1", RanchID: ranchID, Species: tc.species, Sex: domain.SexFemale, Source: domain.SourceBorn})

		service := domain.NewDate(2025, time.March, 1)
		var created domain.BreedingEvent
		if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateBreedingEvent(domain.BreedingEvent{FemaleTag: "F-1", ServiceDate: service, Method: domain.MethodNatural})
			return err
		}); err != nil {
			t.Fatalf("%s: create breeding: %v", tc.species, err)
		}
		if created.ExpectedDeliveryDate == nil {
			t.Fatalf("%s: expected delivery date not projected", tc.species)
		}
		want := service.AddDays(tc.days)
		if !created.ExpectedDeliveryDate.Equal(want) {
			t.Fatalf("%s: expected %s, got %s", tc.species, want, created.ExpectedDeliveryDate)
		}
	}
}

func TestGestationProjectionKeepsExplicitDate(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)
	createAnimal(t, store, domain.Animal{TagNumber: "F-1", RanchID: ranchID, Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn})

	explicit := domain.NewDate(2025, time.December, 24)
	var created domain.BreedingEvent
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateBreedingEvent(domain.BreedingEvent{
			FemaleTag:            "F-1",
			ServiceDate:          domain.NewDate(2025, time.March, 1),
			Method:               domain.MethodNatural,
			ExpectedDeliveryDate: &explicit,
		})
		return err
	}); err != nil {
		t.Fatalf("create breeding: %v", err)
	}
	if !created.ExpectedDeliveryDate.Equal(explicit) {
		t.Fatalf("explicit delivery date overwritten: got %s", created.ExpectedDeliveryDate)
	}
}

func TestGestationProjectionMissingFemale(t *testing.T) {
	store := NewStore(nil)
	seedRanch(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateBreedingEvent(domain.BreedingEvent{FemaleTag: "ghost", ServiceDate: domain.NewDate(2025, time.March, 1), Method: domain.MethodNatural})
		return err
	})
	var de domain.DerivationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DerivationError, got %v", err)
	}
	if de.Rule != "gestation_projection" {
		t.Fatalf("unexpected rule %q", de.Rule)
	}
}

func TestHerdCountDifferenceDerived(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)

	var created domain.HerdCount
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateHerdCount(domain.HerdCount{
			RanchID:       ranchID,
			CountDate:     domain.NewDate(2025, time.June, 1),
			Species:       domain.SpeciesCattle,
			ExpectedCount: 120,
			ActualCount:   117,
			Difference:    9999, // client value must be ignored
		})
		return err
	}); err != nil {
		t.Fatalf("create herd count: %v", err)
	}
	if created.Difference != -3 {
		t.Fatalf("expected difference -3, got %d", created.Difference)
	}

	var updated domain.HerdCount
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateHerdCount(created.ID, func(h *domain.HerdCount) error {
			h.ActualCount = 125
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update herd count: %v", err)
	}
	if updated.Difference != 5 {
		t.Fatalf("expected difference 5 after update, got %d", updated.Difference)
	}
}

func TestMortalityDerivesAgeAndFlipsStatus(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)
	dob := domain.NewDate(2022, time.January, 1)
	createAnimal(t, store, domain.Animal{
		TagNumber:   "C-7",
		RanchID:     ranchID,
		Species:     domain.SpeciesCattle,
		Sex:         domain.SexFemale,
		Source:      domain.SourceBorn,
		DateOfBirth: &dob,
	})

	var created domain.Mortality
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateMortality(domain.Mortality{
			AnimalTag: "C-7",
			DeathDate: domain.NewDate(2025, time.February, 5),
			Cause:     "disease",
		})
		return err
	}); err != nil {
		t.Fatalf("create mortality: %v", err)
	}
	if created.AgeAtDeathMonths == nil || *created.AgeAtDeathMonths != 37 {
		t.Fatalf("expected age at death 37 months, got %v", created.AgeAtDeathMonths)
	}

	animal, ok := store.GetAnimal("C-7")
	if !ok {
		t.Fatalf("animal not found after mortality")
	}
	if animal.Status != domain.StatusDead {
		t.Fatalf("expected status dead, got %q", animal.Status)
	}
}

func TestMortalityUnknownBirthDate(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)
	createAnimal(t, store, domain.Animal{TagNumber: "C-8", RanchID: ranchID, Species: domain.SpeciesGoat, Sex: domain.SexMale, Source: domain.SourcePurchased})

	var created domain.Mortality
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateMortality(domain.Mortality{AnimalTag: "C-8", DeathDate: domain.NewDate(2025, time.May, 1)})
		return err
	}); err != nil {
		t.Fatalf("create mortality: %v", err)
	}
	if created.AgeAtDeathMonths != nil {
		t.Fatalf("expected nil age for unknown birth date, got %v", *created.AgeAtDeathMonths)
	}
}

func TestMortalityMissingAnimal(t *testing.T) {
	store := NewStore(nil)
	seedRanch(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateMortality(domain.Mortality{AnimalTag: "ghost", DeathDate: domain.NewDate(2025, time.May, 1)})
		return err
	})
	var de domain.DerivationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DerivationError, got %v", err)
	}
}

func TestFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAnimal(domain.Animal{TagNumber: "C-10", RanchID: ranchID, Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := store.GetAnimal("C-10"); ok {
		t.Fatalf("rolled back animal leaked into committed state")
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "block_all",
		Severity: domain.SeverityBlock,
		Message:  "all writes blocked",
	}}}, nil
}

func TestBlockingViolationDiscardsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	store := NewStore(engine)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{ID: "u-1", Username: "blocked"})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if got := len(store.ListUsers()); got != 0 {
		t.Fatalf("expected no committed users, got %d", got)
	}
}

func TestDeleteAnimalCascades(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)
	createAnimal(t, store, domain.Animal{TagNumber: "F-1", RanchID: ranchID, Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn})
	createAnimal(t, store, domain.Animal{TagNumber: "M-1", RanchID: ranchID, Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn})
	dam := "F-1"
	createAnimal(t, store, domain.Animal{TagNumber: "C-1", RanchID: ranchID, Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn, DamTag: &dam})

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		male := "M-1"
		if _, err := tx.CreateBreedingEvent(domain.BreedingEvent{ID: "b-1", FemaleTag: "F-1", MaleTag: &male, ServiceDate: domain.NewDate(2025, time.January, 10), Method: domain.MethodNatural}); err != nil {
			return err
		}
		if _, err := tx.CreateVaccination(domain.Vaccination{ID: "v-1", AnimalTag: "F-1", VaccineType: "FMD", DateAdministered: domain.NewDate(2025, time.February, 1)}); err != nil {
			return err
		}
		_, err := tx.CreateTreatment(domain.Treatment{ID: "t-1", AnimalTag: "F-1", TreatmentDate: domain.NewDate(2025, time.February, 2)})
		return err
	}); err != nil {
		t.Fatalf("seed records: %v", err)
	}

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteAnimal("F-1")
	}); err != nil {
		t.Fatalf("delete animal: %v", err)
	}

	if got := len(store.ListBreedingEvents()); got != 0 {
		t.Fatalf("expected breeding events cascade-deleted, %d remain", got)
	}
	if got := len(store.ListVaccinations()); got != 0 {
		t.Fatalf("expected vaccinations cascade-deleted, %d remain", got)
	}
	if got := len(store.ListTreatments()); got != 0 {
		t.Fatalf("expected treatments cascade-deleted, %d remain", got)
	}
	calf, ok := store.GetAnimal("C-1")
	if !ok {
		t.Fatalf("calf should survive dam deletion")
	}
	if calf.DamTag != nil {
		t.Fatalf("expected dam reference nullified, got %q", *calf.DamTag)
	}
}

func TestListOrdering(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)
	createAnimal(t, store, domain.Animal{TagNumber: "B-2", RanchID: ranchID, Species: domain.SpeciesGoat, Sex: domain.SexMale, Source: domain.SourceBorn})
	createAnimal(t, store, domain.Animal{TagNumber: "A-1", RanchID: ranchID, Species: domain.SpeciesGoat, Sex: domain.SexFemale, Source: domain.SourceBorn})

	animals := store.ListAnimals()
	if len(animals) != 2 || animals[0].TagNumber != "A-1" {
		t.Fatalf("expected animals ordered by tag, got %+v", animals)
	}

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateHerdCount(domain.HerdCount{ID: "h-old", RanchID: ranchID, CountDate: domain.NewDate(2025, time.January, 1), Species: domain.SpeciesGoat, ExpectedCount: 10, ActualCount: 10}); err != nil {
			return err
		}
		_, err := tx.CreateHerdCount(domain.HerdCount{ID: "h-new", RanchID: ranchID, CountDate: domain.NewDate(2025, time.June, 1), Species: domain.SpeciesGoat, ExpectedCount: 10, ActualCount: 9})
		return err
	}); err != nil {
		t.Fatalf("seed herd counts: %v", err)
	}
	counts := store.ListHerdCounts()
	if len(counts) != 2 || counts[0].ID != "h-new" {
		t.Fatalf("expected most recent herd count first, got %+v", counts)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore(nil)
	_, ranchID := seedRanch(t, store)
	createAnimal(t, store, domain.Animal{TagNumber: "C-1", RanchID: ranchID, Species: domain.SpeciesSheep, Sex: domain.SexFemale, Source: domain.SourceImported})

	snap := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snap)

	if _, ok := restored.GetAnimal("C-1"); !ok {
		t.Fatalf("animal missing after snapshot round trip")
	}
	if len(restored.ListRanches()) != 1 || len(restored.ListUsers()) != 1 {
		t.Fatalf("ranch or user missing after snapshot round trip")
	}
}
