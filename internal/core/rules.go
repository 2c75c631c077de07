package core

import "ranchcore/pkg/domain"

// NewDefaultRulesEngine returns a rules engine with the built-in herd
// integrity rules registered.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(LineageIntegrityRule())
	engine.Register(MortalityStatusRule())
	return engine
}
