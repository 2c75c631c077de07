package core

import (
	"context"
	"fmt"

	"ranchcore/pkg/domain"
)

// LineageIntegrityRule enforces dam/sire lineage constraints on animal writes.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, change := range changes {
		if change.Entity != domain.EntityAnimal || change.After == nil {
			continue
		}
		animal, ok := change.After.(domain.Animal)
		if !ok {
			continue
		}
		evaluateLineage(&res, animal, view)
	}

	return res, nil
}

func evaluateLineage(res *domain.Result, animal domain.Animal, view domain.RuleView) {
	checkParent := func(role string, tag *string, wantSex domain.Sex) {
		if tag == nil || *tag == "" {
			return
		}
		if *tag == animal.TagNumber {
			res.Violations = append(res.Violations, lineageViolation(animal.TagNumber, fmt.Sprintf("animal %s references itself as %s", animal.TagNumber, role)))
			return
		}
		parent, ok := view.FindAnimal(*tag)
		if !ok {
			res.Violations = append(res.Violations, lineageViolation(animal.TagNumber, fmt.Sprintf("animal %s references missing %s %s", animal.TagNumber, role, *tag)))
			return
		}
		if parent.Sex != wantSex {
			res.Violations = append(res.Violations, lineageViolation(animal.TagNumber, fmt.Sprintf("animal %s %s %s is not %s", animal.TagNumber, role, *tag, wantSex)))
		}
		if parent.Species != animal.Species {
			res.Violations = append(res.Violations, lineageViolation(animal.TagNumber, fmt.Sprintf("animal %s %s %s has mismatched species", animal.TagNumber, role, *tag)))
		}
	}

	checkParent("dam", animal.DamTag, domain.SexFemale)
	checkParent("sire", animal.SireTag, domain.SexMale)

	if animal.DamTag != nil && animal.SireTag != nil && *animal.DamTag == *animal.SireTag && *animal.DamTag != "" {
		res.Violations = append(res.Violations, lineageViolation(animal.TagNumber, fmt.Sprintf("animal %s lists %s as both dam and sire", animal.TagNumber, *animal.DamTag)))
	}
}

func lineageViolation(tag, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityAnimal,
		EntityID: tag,
	}
}
