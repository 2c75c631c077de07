package core

import (
	"context"

	"go.uber.org/zap"

	"ranchcore/pkg/domain"
)

// Service exposes higher-level transactional CRUD operations over the herd
// schema. Each call runs in its own transaction so derivations and rules
// apply atomically per write.
type Service struct {
	store  PersistentStore
	logger *zap.Logger
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// CreateAnimal persists a new animal after payload validation.
func (s *Service) CreateAnimal(ctx context.Context, animal domain.Animal) (domain.Animal, Result, error) {
	if err := validateEntity(domain.EntityAnimal, animal); err != nil {
		return domain.Animal{}, Result{}, err
	}
	var created domain.Animal
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateAnimal(animal)
		return err
	})
	return created, res, err
}

// UpdateAnimal mutates an animal using the provided mutator.
func (s *Service) UpdateAnimal(ctx context.Context, tag string, mutator func(*domain.Animal) error) (domain.Animal, Result, error) {
	var updated domain.Animal
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateAnimal(tag, mutator)
		return err
	})
	return updated, res, err
}

// DeleteAnimal removes an animal and its dependent records.
func (s *Service) DeleteAnimal(ctx context.Context, tag string) (Result, error) {
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteAnimal(tag)
	})
}

// GetAnimal fetches an animal by tag.
func (s *Service) GetAnimal(tag string) (domain.Animal, bool) {
	return s.store.GetAnimal(tag)
}

// ListAnimals returns all animals ordered by tag.
func (s *Service) ListAnimals() []domain.Animal {
	return s.store.ListAnimals()
}

// CreateBreedingEvent persists a new breeding record.
func (s *Service) CreateBreedingEvent(ctx context.Context, event domain.BreedingEvent) (domain.BreedingEvent, Result, error) {
	if err := validateEntity(domain.EntityBreedingEvent, event); err != nil {
		return domain.BreedingEvent{}, Result{}, err
	}
	var created domain.BreedingEvent
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateBreedingEvent(event)
		return err
	})
	return created, res, err
}

// UpdateBreedingEvent mutates a breeding record.
func (s *Service) UpdateBreedingEvent(ctx context.Context, id string, mutator func(*domain.BreedingEvent) error) (domain.BreedingEvent, Result, error) {
	var updated domain.BreedingEvent
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateBreedingEvent(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteBreedingEvent removes a breeding record.
func (s *Service) DeleteBreedingEvent(ctx context.Context, id string) (Result, error) {
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteBreedingEvent(id)
	})
}

// ListBreedingEvents returns breeding records, most recent first.
func (s *Service) ListBreedingEvents() []domain.BreedingEvent {
	return s.store.ListBreedingEvents()
}

// CreateVaccination persists a vaccination record.
func (s *Service) CreateVaccination(ctx context.Context, rec domain.Vaccination) (domain.Vaccination, Result, error) {
	if err := validateEntity(domain.EntityVaccination, rec); err != nil {
		return domain.Vaccination{}, Result{}, err
	}
	var created domain.Vaccination
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateVaccination(rec)
		return err
	})
	return created, res, err
}

// ListVaccinations returns vaccination records, most recent first.
func (s *Service) ListVaccinations() []domain.Vaccination {
	return s.store.ListVaccinations()
}

// CreateTreatment persists a treatment record.
func (s *Service) CreateTreatment(ctx context.Context, rec domain.Treatment) (domain.Treatment, Result, error) {
	if err := validateEntity(domain.EntityTreatment, rec); err != nil {
		return domain.Treatment{}, Result{}, err
	}
	var created domain.Treatment
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateTreatment(rec)
		return err
	})
	return created, res, err
}

// ListTreatments returns treatment records, most recent first.
func (s *Service) ListTreatments() []domain.Treatment {
	return s.store.ListTreatments()
}

// CreateMortality persists a mortality record, flipping the animal to dead.
func (s *Service) CreateMortality(ctx context.Context, rec domain.Mortality) (domain.Mortality, Result, error) {
	if err := validateEntity(domain.EntityMortality, rec); err != nil {
		return domain.Mortality{}, Result{}, err
	}
	var created domain.Mortality
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateMortality(rec)
		return err
	})
	return created, res, err
}

// ListMortalities returns mortality records, most recent first.
func (s *Service) ListMortalities() []domain.Mortality {
	return s.store.ListMortalities()
}

// CreateHerdCount persists a herd count record.
func (s *Service) CreateHerdCount(ctx context.Context, rec domain.HerdCount) (domain.HerdCount, Result, error) {
	if err := validateEntity(domain.EntityHerdCount, rec); err != nil {
		return domain.HerdCount{}, Result{}, err
	}
	var created domain.HerdCount
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateHerdCount(rec)
		return err
	})
	return created, res, err
}

// ListHerdCounts returns herd counts, most recent first.
func (s *Service) ListHerdCounts() []domain.HerdCount {
	return s.store.ListHerdCounts()
}

// CreateMovementLog persists a movement record.
func (s *Service) CreateMovementLog(ctx context.Context, rec domain.MovementLog) (domain.MovementLog, Result, error) {
	if err := validateEntity(domain.EntityMovementLog, rec); err != nil {
		return domain.MovementLog{}, Result{}, err
	}
	var created domain.MovementLog
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateMovementLog(rec)
		return err
	})
	return created, res, err
}

// ListMovementLogs returns movement records, most recent first.
func (s *Service) ListMovementLogs() []domain.MovementLog {
	return s.store.ListMovementLogs()
}

// CreateRFIDScanLog persists a gate scan record.
func (s *Service) CreateRFIDScanLog(ctx context.Context, rec domain.RFIDScanLog) (domain.RFIDScanLog, Result, error) {
	if err := validateEntity(domain.EntityRFIDScanLog, rec); err != nil {
		return domain.RFIDScanLog{}, Result{}, err
	}
	var created domain.RFIDScanLog
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateRFIDScanLog(rec)
		return err
	})
	return created, res, err
}

// ListRFIDScanLogs returns scan records, most recent first.
func (s *Service) ListRFIDScanLogs() []domain.RFIDScanLog {
	return s.store.ListRFIDScanLogs()
}

// CreateRanch persists a ranch record.
func (s *Service) CreateRanch(ctx context.Context, ranch domain.Ranch) (domain.Ranch, Result, error) {
	if err := validateEntity(domain.EntityRanch, ranch); err != nil {
		return domain.Ranch{}, Result{}, err
	}
	var created domain.Ranch
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateRanch(ranch)
		return err
	})
	return created, res, err
}

// ListRanches returns ranches ordered by name.
func (s *Service) ListRanches() []domain.Ranch {
	return s.store.ListRanches()
}

// CreateUser persists a user record.
func (s *Service) CreateUser(ctx context.Context, user domain.User) (domain.User, Result, error) {
	if err := validateEntity(domain.EntityUser, user); err != nil {
		return domain.User{}, Result{}, err
	}
	var created domain.User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateUser(user)
		return err
	})
	return created, res, err
}

// ListUsers returns users ordered by username.
func (s *Service) ListUsers() []domain.User {
	return s.store.ListUsers()
}

// FindUserByUsername resolves a user by login name.
func (s *Service) FindUserByUsername(ctx context.Context, username string) (domain.User, bool) {
	var user domain.User
	var found bool
	_ = s.store.View(ctx, func(v TransactionView) error {
		user, found = v.FindUserByUsername(username)
		return nil
	})
	return user, found
}

// CreateStaff persists a staff record.
func (s *Service) CreateStaff(ctx context.Context, staff domain.Staff) (domain.Staff, Result, error) {
	if err := validateEntity(domain.EntityStaff, staff); err != nil {
		return domain.Staff{}, Result{}, err
	}
	var created domain.Staff
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateStaff(staff)
		return err
	})
	return created, res, err
}

// ListStaff returns staff ordered by name.
func (s *Service) ListStaff() []domain.Staff {
	return s.store.ListStaff()
}

// ListSyncEntries returns the sync ledger ordered by client timestamp.
func (s *Service) ListSyncEntries() []domain.SyncEntry {
	return s.store.ListSyncEntries()
}

// CreateSystemMetric persists an analytics snapshot value.
func (s *Service) CreateSystemMetric(ctx context.Context, metric domain.SystemMetric) (domain.SystemMetric, Result, error) {
	var created domain.SystemMetric
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateSystemMetric(metric)
		return err
	})
	return created, res, err
}

// ListSystemMetrics returns metric snapshots, most recent first.
func (s *Service) ListSystemMetrics() []domain.SystemMetric {
	return s.store.ListSystemMetrics()
}
