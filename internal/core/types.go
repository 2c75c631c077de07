package core

import "ranchcore/pkg/domain"

// Aliases keep call sites in this package and its consumers terse.
type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	Result          = domain.Result
	RulesEngine     = domain.RulesEngine
)
