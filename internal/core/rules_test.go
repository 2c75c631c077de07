package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ranchcore/internal/infra/persistence/memory"
	"ranchcore/pkg/domain"
)

func newRulesFixture(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateUser(domain.User{ID: "user-1", Username: "amina", Active: true}); err != nil {
			return err
		}
		_, err := tx.CreateRanch(domain.Ranch{ID: "ranch-1", Name: "North Ranch", OwnerID: "user-1"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func addAnimal(t *testing.T, store *memory.Store, a domain.Animal) {
	t.Helper()
	a.RanchID = "ranch-1"
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(a)
		return err
	}); err != nil {
		t.Fatalf("create %s: %v", a.TagNumber, err)
	}
}

func expectBlocked(t *testing.T, err error, fragment string) {
	t.Helper()
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !strings.Contains(rve.Error(), fragment) {
		t.Fatalf("expected message containing %q, got %q", fragment, rve.Error())
	}
}

func TestLineageRuleAcceptsValidParents(t *testing.T) {
	store := newRulesFixture(t)
	addAnimal(t, store, domain.Animal{TagNumber: "D-1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn})
	addAnimal(t, store, domain.Animal{TagNumber: "S-1", Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn})

	dam, sire := "D-1", "S-1"
	addAnimal(t, store, domain.Animal{TagNumber: "C-1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn, DamTag: &dam, SireTag: &sire})
}

func TestLineageRuleRejectsMissingDam(t *testing.T) {
	store := newRulesFixture(t)
	dam := "ghost"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(domain.Animal{TagNumber: "C-1", RanchID: "ranch-1", Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn, DamTag: &dam})
		return err
	})
	expectBlocked(t, err, "missing dam")
}

func TestLineageRuleRejectsWrongSexParent(t *testing.T) {
	store := newRulesFixture(t)
	addAnimal(t, store, domain.Animal{TagNumber: "M-1", Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn})

	dam := "M-1"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(domain.Animal{TagNumber: "C-1", RanchID: "ranch-1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn, DamTag: &dam})
		return err
	})
	expectBlocked(t, err, "is not female")
}

func TestLineageRuleRejectsSpeciesMismatch(t *testing.T) {
	store := newRulesFixture(t)
	addAnimal(t, store, domain.Animal{TagNumber: "G-1", Species: domain.SpeciesGoat, Sex: domain.SexFemale, Source: domain.SourceBorn})

	dam := "G-1"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(domain.Animal{TagNumber: "C-1", RanchID: "ranch-1", Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceBorn, DamTag: &dam})
		return err
	})
	expectBlocked(t, err, "mismatched species")
}

func TestLineageRuleRejectsSelfReference(t *testing.T) {
	store := newRulesFixture(t)
	self := "C-1"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(domain.Animal{TagNumber: "C-1", RanchID: "ranch-1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn, DamTag: &self})
		return err
	})
	expectBlocked(t, err, "references itself")
}

func TestMortalityStatusRuleBlocksDirectDeadUpdate(t *testing.T) {
	store := newRulesFixture(t)
	addAnimal(t, store, domain.Animal{TagNumber: "C-1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn})

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateAnimal("C-1", func(a *domain.Animal) error {
			a.Status = domain.StatusDead
			return nil
		})
		return err
	})
	expectBlocked(t, err, "without a mortality record")
}

func TestMortalityStatusRuleAllowsMortalityDrivenFlip(t *testing.T) {
	store := newRulesFixture(t)
	addAnimal(t, store, domain.Animal{TagNumber: "C-1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn})

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateMortality(domain.Mortality{AnimalTag: "C-1", DeathDate: domain.NewDate(2025, 6, 1)})
		return err
	}); err != nil {
		t.Fatalf("mortality-driven flip should pass rules: %v", err)
	}
	animal, _ := store.GetAnimal("C-1")
	if animal.Status != domain.StatusDead {
		t.Fatalf("expected dead status, got %q", animal.Status)
	}
}
