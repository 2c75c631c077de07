package core

import (
	"context"
	"fmt"

	"ranchcore/pkg/domain"
)

// MortalityStatusRule blocks animals transitioning to dead without a
// mortality record. The status flip driven by a mortality write stages the
// mortality in the same transaction, so it always passes.
func MortalityStatusRule() domain.Rule {
	return mortalityStatusRule{}
}

type mortalityStatusRule struct{}

func (mortalityStatusRule) Name() string { return "mortality_status" }

func (mortalityStatusRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	for _, change := range changes {
		if change.Entity != domain.EntityAnimal || change.After == nil {
			continue
		}
		animal, ok := change.After.(domain.Animal)
		if !ok {
			continue
		}
		if animal.Status != domain.StatusDead {
			continue
		}
		if _, found := view.FindMortalityByAnimal(animal.TagNumber); !found {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "mortality_status",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("animal %s cannot be marked dead without a mortality record", animal.TagNumber),
				Entity:   domain.EntityAnimal,
				EntityID: animal.TagNumber,
			})
		}
	}

	return res, nil
}
