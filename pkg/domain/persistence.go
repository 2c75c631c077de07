package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Mutating operations invoke the
// matching derivation rules before staging the write; referential cascade
// and nullify semantics are applied by Delete operations.
type Transaction interface {
	Snapshot() TransactionView

	CreateAnimal(Animal) (Animal, error)
	UpdateAnimal(tag string, mutator func(*Animal) error) (Animal, error)
	DeleteAnimal(tag string) error

	CreateBreedingEvent(BreedingEvent) (BreedingEvent, error)
	UpdateBreedingEvent(id string, mutator func(*BreedingEvent) error) (BreedingEvent, error)
	DeleteBreedingEvent(id string) error

	CreateVaccination(Vaccination) (Vaccination, error)
	UpdateVaccination(id string, mutator func(*Vaccination) error) (Vaccination, error)
	DeleteVaccination(id string) error

	CreateTreatment(Treatment) (Treatment, error)
	UpdateTreatment(id string, mutator func(*Treatment) error) (Treatment, error)
	DeleteTreatment(id string) error

	CreateMortality(Mortality) (Mortality, error)
	UpdateMortality(id string, mutator func(*Mortality) error) (Mortality, error)
	DeleteMortality(id string) error

	CreateHerdCount(HerdCount) (HerdCount, error)
	UpdateHerdCount(id string, mutator func(*HerdCount) error) (HerdCount, error)
	DeleteHerdCount(id string) error

	CreateMovementLog(MovementLog) (MovementLog, error)
	UpdateMovementLog(id string, mutator func(*MovementLog) error) (MovementLog, error)
	DeleteMovementLog(id string) error

	CreateRFIDScanLog(RFIDScanLog) (RFIDScanLog, error)
	UpdateRFIDScanLog(id string, mutator func(*RFIDScanLog) error) (RFIDScanLog, error)
	DeleteRFIDScanLog(id string) error

	CreateRanch(Ranch) (Ranch, error)
	UpdateRanch(id string, mutator func(*Ranch) error) (Ranch, error)
	DeleteRanch(id string) error

	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	DeleteUser(id string) error

	CreateStaff(Staff) (Staff, error)
	UpdateStaff(id string, mutator func(*Staff) error) (Staff, error)
	DeleteStaff(id string) error

	CreateSyncEntry(SyncEntry) (SyncEntry, error)
	UpdateSyncEntry(id string, mutator func(*SyncEntry) error) (SyncEntry, error)

	CreateSystemMetric(SystemMetric) (SystemMetric, error)
	DeleteSystemMetric(id string) error
}

// TransactionView provides read-only access to snapshot data for rules and
// aggregation. List results are returned in a deterministic order: animals
// by tag, dated records most recent first, ledger entries by client
// timestamp.
type TransactionView interface {
	ListAnimals() []Animal
	FindAnimal(tag string) (Animal, bool)
	ListBreedingEvents() []BreedingEvent
	FindBreedingEvent(id string) (BreedingEvent, bool)
	ListVaccinations() []Vaccination
	FindVaccination(id string) (Vaccination, bool)
	ListTreatments() []Treatment
	FindTreatment(id string) (Treatment, bool)
	ListMortalities() []Mortality
	FindMortality(id string) (Mortality, bool)
	FindMortalityByAnimal(tag string) (Mortality, bool)
	ListHerdCounts() []HerdCount
	FindHerdCount(id string) (HerdCount, bool)
	ListMovementLogs() []MovementLog
	FindMovementLog(id string) (MovementLog, bool)
	ListRFIDScanLogs() []RFIDScanLog
	FindRFIDScanLog(id string) (RFIDScanLog, bool)
	ListRanches() []Ranch
	FindRanch(id string) (Ranch, bool)
	ListUsers() []User
	FindUser(id string) (User, bool)
	FindUserByUsername(username string) (User, bool)
	ListStaff() []Staff
	FindStaff(id string) (Staff, bool)
	ListSyncEntries() []SyncEntry
	FindSyncEntry(id string) (SyncEntry, bool)
	ListSystemMetrics() []SystemMetric
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	GetAnimal(tag string) (Animal, bool)
	ListAnimals() []Animal
	ListBreedingEvents() []BreedingEvent
	ListVaccinations() []Vaccination
	ListTreatments() []Treatment
	ListMortalities() []Mortality
	ListHerdCounts() []HerdCount
	ListMovementLogs() []MovementLog
	ListRFIDScanLogs() []RFIDScanLog
	ListRanches() []Ranch
	ListUsers() []User
	ListStaff() []Staff
	ListSyncEntries() []SyncEntry
	ListSystemMetrics() []SystemMetric
}
