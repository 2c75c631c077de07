// Package memory provides the reference transactional store for the ranch
// domain. Transactions operate on a cloned state committed only after the
// rules engine passes; durable backends reuse these semantics and snapshot
// the committed state.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ranchcore/pkg/domain"
)

type state struct {
	animals       map[string]domain.Animal
	breeding      map[string]domain.BreedingEvent
	vaccinations  map[string]domain.Vaccination
	treatments    map[string]domain.Treatment
	mortalities   map[string]domain.Mortality
	herdCounts    map[string]domain.HerdCount
	movements     map[string]domain.MovementLog
	rfidScans     map[string]domain.RFIDScanLog
	ranches       map[string]domain.Ranch
	users         map[string]domain.User
	staff         map[string]domain.Staff
	syncEntries   map[string]domain.SyncEntry
	systemMetrics map[string]domain.SystemMetric
}

func newState() state {
	return state{
		animals:       make(map[string]domain.Animal),
		breeding:      make(map[string]domain.BreedingEvent),
		vaccinations:  make(map[string]domain.Vaccination),
		treatments:    make(map[string]domain.Treatment),
		mortalities:   make(map[string]domain.Mortality),
		herdCounts:    make(map[string]domain.HerdCount),
		movements:     make(map[string]domain.MovementLog),
		rfidScans:     make(map[string]domain.RFIDScanLog),
		ranches:       make(map[string]domain.Ranch),
		users:         make(map[string]domain.User),
		staff:         make(map[string]domain.Staff),
		syncEntries:   make(map[string]domain.SyncEntry),
		systemMetrics: make(map[string]domain.SystemMetric),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.animals {
		cloned.animals[k] = cloneAnimal(v)
	}
	for k, v := range s.breeding {
		cloned.breeding[k] = cloneBreeding(v)
	}
	for k, v := range s.vaccinations {
		cloned.vaccinations[k] = cloneVaccination(v)
	}
	for k, v := range s.treatments {
		cloned.treatments[k] = cloneTreatment(v)
	}
	for k, v := range s.mortalities {
		cloned.mortalities[k] = cloneMortality(v)
	}
	for k, v := range s.herdCounts {
		cloned.herdCounts[k] = cloneHerdCount(v)
	}
	for k, v := range s.movements {
		cloned.movements[k] = cloneMovement(v)
	}
	for k, v := range s.rfidScans {
		cloned.rfidScans[k] = cloneRFIDScan(v)
	}
	for k, v := range s.ranches {
		cloned.ranches[k] = cloneRanch(v)
	}
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.staff {
		cloned.staff[k] = cloneStaff(v)
	}
	for k, v := range s.syncEntries {
		cloned.syncEntries[k] = cloneSyncEntry(v)
	}
	for k, v := range s.systemMetrics {
		cloned.systemMetrics[k] = cloneSystemMetric(v)
	}
	return cloned
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneAnimal(a domain.Animal) domain.Animal {
	cp := a
	cp.RFIDCode = clonePtr(a.RFIDCode)
	cp.QRCode = clonePtr(a.QRCode)
	cp.DateOfBirth = clonePtr(a.DateOfBirth)
	cp.DamTag = clonePtr(a.DamTag)
	cp.SireTag = clonePtr(a.SireTag)
	cp.PhotoKey = clonePtr(a.PhotoKey)
	cp.PurchasePrice = clonePtr(a.PurchasePrice)
	cp.PurchaseDate = clonePtr(a.PurchaseDate)
	return cp
}

func cloneBreeding(b domain.BreedingEvent) domain.BreedingEvent {
	cp := b
	cp.MaleTag = clonePtr(b.MaleTag)
	cp.HeatDetectedDate = clonePtr(b.HeatDetectedDate)
	cp.PregnancyCheckDate = clonePtr(b.PregnancyCheckDate)
	cp.ExpectedDeliveryDate = clonePtr(b.ExpectedDeliveryDate)
	cp.ActualDeliveryDate = clonePtr(b.ActualDeliveryDate)
	cp.RecordedBy = clonePtr(b.RecordedBy)
	return cp
}

func cloneVaccination(v domain.Vaccination) domain.Vaccination {
	cp := v
	cp.AdministeredBy = clonePtr(v.AdministeredBy)
	cp.NextDueDate = clonePtr(v.NextDueDate)
	cp.Cost = clonePtr(v.Cost)
	cp.RecordedBy = clonePtr(v.RecordedBy)
	return cp
}

func cloneTreatment(t domain.Treatment) domain.Treatment {
	cp := t
	cp.TreatedBy = clonePtr(t.TreatedBy)
	cp.FollowUpDate = clonePtr(t.FollowUpDate)
	cp.Cost = clonePtr(t.Cost)
	cp.RecordedBy = clonePtr(t.RecordedBy)
	return cp
}

func cloneMortality(m domain.Mortality) domain.Mortality {
	cp := m
	cp.AgeAtDeathMonths = clonePtr(m.AgeAtDeathMonths)
	cp.EstimatedValue = clonePtr(m.EstimatedValue)
	cp.RecordedBy = clonePtr(m.RecordedBy)
	return cp
}

func cloneHerdCount(h domain.HerdCount) domain.HerdCount {
	cp := h
	cp.CountedBy = clonePtr(h.CountedBy)
	cp.RecordedBy = clonePtr(h.RecordedBy)
	return cp
}

func cloneMovement(m domain.MovementLog) domain.MovementLog {
	cp := m
	cp.AnimalTag = clonePtr(m.AnimalTag)
	cp.MovedBy = clonePtr(m.MovedBy)
	cp.RecordedBy = clonePtr(m.RecordedBy)
	return cp
}

func cloneRFIDScan(r domain.RFIDScanLog) domain.RFIDScanLog {
	cp := r
	cp.AnimalTag = clonePtr(r.AnimalTag)
	cp.SignalStrength = clonePtr(r.SignalStrength)
	return cp
}

func cloneRanch(r domain.Ranch) domain.Ranch {
	cp := r
	cp.SizeHectares = clonePtr(r.SizeHectares)
	return cp
}

func cloneStaff(s domain.Staff) domain.Staff {
	cp := s
	cp.UserID = clonePtr(s.UserID)
	cp.HireDate = clonePtr(s.HireDate)
	return cp
}

func cloneSyncEntry(e domain.SyncEntry) domain.SyncEntry {
	cp := e
	cp.SyncedAt = clonePtr(e.SyncedAt)
	cp.RecordData = append([]byte(nil), e.RecordData...)
	return cp
}

func cloneSystemMetric(m domain.SystemMetric) domain.SystemMetric {
	cp := m
	cp.Metadata = append([]byte(nil), m.Metadata...)
	return cp
}

// Store provides an in-memory transactional store for the ranch domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the transaction clock. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

func newID() string { return uuid.NewString() }

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// RunInTransaction executes fn within a transactional copy of the store
// state. The rules engine is evaluated against the mutated snapshot before
// commit; blocking violations discard the whole mutation set.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := view{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state to callers needing reads within
// the same atomic scope.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

// Derivations ----------------------------------------------------------------

// deriveBreeding applies the gestation projection: when a service date is
// present and no expected delivery date has been set, project it from the
// female's species. The species is read through the female reference at
// write time.
func (tx *Transaction) deriveBreeding(b *domain.BreedingEvent) error {
	female, ok := tx.state.animals[b.FemaleTag]
	if !ok {
		return domain.DerivationError{Rule: "gestation_projection", Reason: "female animal " + b.FemaleTag + " not found"}
	}
	if !b.ServiceDate.IsZero() && b.ExpectedDeliveryDate == nil {
		expected := b.ServiceDate.AddDays(domain.GestationDays(female.Species))
		b.ExpectedDeliveryDate = &expected
	}
	return nil
}

// deriveHerdCount recomputes the count difference, overriding any
// client-supplied value.
func deriveHerdCount(h *domain.HerdCount) {
	h.Difference = h.ActualCount - h.ExpectedCount
}

// deriveMortality computes age at death and flips the referenced animal to
// dead. Both writes stage in the same transaction.
func (tx *Transaction) deriveMortality(m *domain.Mortality) error {
	animal, ok := tx.state.animals[m.AnimalTag]
	if !ok {
		return domain.DerivationError{Rule: "mortality_status", Reason: "animal " + m.AnimalTag + " not found"}
	}
	if animal.DateOfBirth != nil {
		months := domain.MonthsBetween(*animal.DateOfBirth, m.DeathDate)
		m.AgeAtDeathMonths = &months
	} else {
		m.AgeAtDeathMonths = nil
	}
	if animal.Status != domain.StatusDead {
		before := cloneAnimal(animal)
		animal.Status = domain.StatusDead
		animal.UpdatedAt = tx.now
		tx.state.animals[animal.TagNumber] = cloneAnimal(animal)
		tx.recordChange(domain.Change{Entity: domain.EntityAnimal, Action: domain.ActionUpdate, Before: before, After: cloneAnimal(animal)})
	}
	return nil
}

// Animal ---------------------------------------------------------------------

// CreateAnimal stores a new animal keyed by its tag number.
func (tx *Transaction) CreateAnimal(a domain.Animal) (domain.Animal, error) {
	if a.TagNumber == "" {
		return domain.Animal{}, domain.ValidationError{Entity: domain.EntityAnimal, Reason: "tag_number is required"}
	}
	if _, exists := tx.state.animals[a.TagNumber]; exists {
		return domain.Animal{}, domain.ValidationError{Entity: domain.EntityAnimal, Reason: "animal " + a.TagNumber + " already exists"}
	}
	if _, ok := tx.state.ranches[a.RanchID]; !ok {
		return domain.Animal{}, domain.NotFoundError{Entity: domain.EntityRanch, Key: a.RanchID}
	}
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.animals[a.TagNumber] = cloneAnimal(a)
	tx.recordChange(domain.Change{Entity: domain.EntityAnimal, Action: domain.ActionCreate, After: cloneAnimal(a)})
	return cloneAnimal(a), nil
}

// UpdateAnimal mutates an animal using the provided mutator.
func (tx *Transaction) UpdateAnimal(tag string, mutator func(*domain.Animal) error) (domain.Animal, error) {
	current, ok := tx.state.animals[tag]
	if !ok {
		return domain.Animal{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: tag}
	}
	before := cloneAnimal(current)
	if err := mutator(&current); err != nil {
		return domain.Animal{}, err
	}
	current.TagNumber = tag
	if _, ok := tx.state.ranches[current.RanchID]; !ok {
		return domain.Animal{}, domain.NotFoundError{Entity: domain.EntityRanch, Key: current.RanchID}
	}
	current.UpdatedAt = tx.now
	tx.state.animals[tag] = cloneAnimal(current)
	tx.recordChange(domain.Change{Entity: domain.EntityAnimal, Action: domain.ActionUpdate, Before: before, After: cloneAnimal(current)})
	return cloneAnimal(current), nil
}

// DeleteAnimal removes an animal and applies referential semantics: breeding
// events where it served as female, and all health/movement records, are
// cascade-deleted; sire references and RFID scan links are nullified.
func (tx *Transaction) DeleteAnimal(tag string) error {
	current, ok := tx.state.animals[tag]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAnimal, Key: tag}
	}
	for id, b := range tx.state.breeding {
		switch {
		case b.FemaleTag == tag:
			delete(tx.state.breeding, id)
			tx.recordChange(domain.Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionDelete, Before: cloneBreeding(b)})
		case b.MaleTag != nil && *b.MaleTag == tag:
			before := cloneBreeding(b)
			b.MaleTag = nil
			b.UpdatedAt = tx.now
			tx.state.breeding[id] = cloneBreeding(b)
			tx.recordChange(domain.Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionUpdate, Before: before, After: cloneBreeding(b)})
		}
	}
	for id, v := range tx.state.vaccinations {
		if v.AnimalTag == tag {
			delete(tx.state.vaccinations, id)
			tx.recordChange(domain.Change{Entity: domain.EntityVaccination, Action: domain.ActionDelete, Before: cloneVaccination(v)})
		}
	}
	for id, t := range tx.state.treatments {
		if t.AnimalTag == tag {
			delete(tx.state.treatments, id)
			tx.recordChange(domain.Change{Entity: domain.EntityTreatment, Action: domain.ActionDelete, Before: cloneTreatment(t)})
		}
	}
	for id, m := range tx.state.mortalities {
		if m.AnimalTag == tag {
			delete(tx.state.mortalities, id)
			tx.recordChange(domain.Change{Entity: domain.EntityMortality, Action: domain.ActionDelete, Before: cloneMortality(m)})
		}
	}
	for id, m := range tx.state.movements {
		if m.AnimalTag != nil && *m.AnimalTag == tag {
			delete(tx.state.movements, id)
			tx.recordChange(domain.Change{Entity: domain.EntityMovementLog, Action: domain.ActionDelete, Before: cloneMovement(m)})
		}
	}
	for id, r := range tx.state.rfidScans {
		if r.AnimalTag != nil && *r.AnimalTag == tag {
			r.AnimalTag = nil
			tx.state.rfidScans[id] = cloneRFIDScan(r)
		}
	}
	for t, a := range tx.state.animals {
		changed := false
		if a.DamTag != nil && *a.DamTag == tag {
			a.DamTag = nil
			changed = true
		}
		if a.SireTag != nil && *a.SireTag == tag {
			a.SireTag = nil
			changed = true
		}
		if changed {
			a.UpdatedAt = tx.now
			tx.state.animals[t] = cloneAnimal(a)
		}
	}
	delete(tx.state.animals, tag)
	tx.recordChange(domain.Change{Entity: domain.EntityAnimal, Action: domain.ActionDelete, Before: cloneAnimal(current)})
	return nil
}

// BreedingEvent --------------------------------------------------------------

// CreateBreedingEvent stores a new breeding record, projecting the expected
// delivery date when absent.
func (tx *Transaction) CreateBreedingEvent(b domain.BreedingEvent) (domain.BreedingEvent, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	if _, exists := tx.state.breeding[b.ID]; exists {
		return domain.BreedingEvent{}, domain.ValidationError{Entity: domain.EntityBreedingEvent, Reason: "breeding event " + b.ID + " already exists"}
	}
	if b.MaleTag != nil {
		if _, ok := tx.state.animals[*b.MaleTag]; !ok {
			return domain.BreedingEvent{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: *b.MaleTag}
		}
	}
	if err := tx.deriveBreeding(&b); err != nil {
		return domain.BreedingEvent{}, err
	}
	if b.PregnancyConfirmed == "" {
		b.PregnancyConfirmed = domain.PregnancyPending
	}
	if b.NumberOfOffspring == 0 {
		b.NumberOfOffspring = 1
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.breeding[b.ID] = cloneBreeding(b)
	tx.recordChange(domain.Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionCreate, After: cloneBreeding(b)})
	return cloneBreeding(b), nil
}

// UpdateBreedingEvent mutates a breeding record. The expected delivery date
// is re-projected only when the mutator leaves it cleared.
func (tx *Transaction) UpdateBreedingEvent(id string, mutator func(*domain.BreedingEvent) error) (domain.BreedingEvent, error) {
	current, ok := tx.state.breeding[id]
	if !ok {
		return domain.BreedingEvent{}, domain.NotFoundError{Entity: domain.EntityBreedingEvent, Key: id}
	}
	before := cloneBreeding(current)
	if err := mutator(&current); err != nil {
		return domain.BreedingEvent{}, err
	}
	current.ID = id
	if current.MaleTag != nil {
		if _, ok := tx.state.animals[*current.MaleTag]; !ok {
			return domain.BreedingEvent{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: *current.MaleTag}
		}
	}
	if err := tx.deriveBreeding(&current); err != nil {
		return domain.BreedingEvent{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.breeding[id] = cloneBreeding(current)
	tx.recordChange(domain.Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionUpdate, Before: before, After: cloneBreeding(current)})
	return cloneBreeding(current), nil
}

// DeleteBreedingEvent removes a breeding record.
func (tx *Transaction) DeleteBreedingEvent(id string) error {
	current, ok := tx.state.breeding[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityBreedingEvent, Key: id}
	}
	delete(tx.state.breeding, id)
	tx.recordChange(domain.Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionDelete, Before: cloneBreeding(current)})
	return nil
}

// Vaccination ----------------------------------------------------------------

// CreateVaccination stores a vaccination record.
func (tx *Transaction) CreateVaccination(v domain.Vaccination) (domain.Vaccination, error) {
	if v.ID == "" {
		v.ID = newID()
	}
	if _, exists := tx.state.vaccinations[v.ID]; exists {
		return domain.Vaccination{}, domain.ValidationError{Entity: domain.EntityVaccination, Reason: "vaccination " + v.ID + " already exists"}
	}
	if _, ok := tx.state.animals[v.AnimalTag]; !ok {
		return domain.Vaccination{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: v.AnimalTag}
	}
	v.CreatedAt = tx.now
	tx.state.vaccinations[v.ID] = cloneVaccination(v)
	tx.recordChange(domain.Change{Entity: domain.EntityVaccination, Action: domain.ActionCreate, After: cloneVaccination(v)})
	return cloneVaccination(v), nil
}

// UpdateVaccination mutates a vaccination record.
func (tx *Transaction) UpdateVaccination(id string, mutator func(*domain.Vaccination) error) (domain.Vaccination, error) {
	current, ok := tx.state.vaccinations[id]
	if !ok {
		return domain.Vaccination{}, domain.NotFoundError{Entity: domain.EntityVaccination, Key: id}
	}
	before := cloneVaccination(current)
	if err := mutator(&current); err != nil {
		return domain.Vaccination{}, err
	}
	current.ID = id
	if _, ok := tx.state.animals[current.AnimalTag]; !ok {
		return domain.Vaccination{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: current.AnimalTag}
	}
	tx.state.vaccinations[id] = cloneVaccination(current)
	tx.recordChange(domain.Change{Entity: domain.EntityVaccination, Action: domain.ActionUpdate, Before: before, After: cloneVaccination(current)})
	return cloneVaccination(current), nil
}

// DeleteVaccination removes a vaccination record.
func (tx *Transaction) DeleteVaccination(id string) error {
	current, ok := tx.state.vaccinations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityVaccination, Key: id}
	}
	delete(tx.state.vaccinations, id)
	tx.recordChange(domain.Change{Entity: domain.EntityVaccination, Action: domain.ActionDelete, Before: cloneVaccination(current)})
	return nil
}

// Treatment ------------------------------------------------------------------

// CreateTreatment stores a treatment record.
func (tx *Transaction) CreateTreatment(t domain.Treatment) (domain.Treatment, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.treatments[t.ID]; exists {
		return domain.Treatment{}, domain.ValidationError{Entity: domain.EntityTreatment, Reason: "treatment " + t.ID + " already exists"}
	}
	if _, ok := tx.state.animals[t.AnimalTag]; !ok {
		return domain.Treatment{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: t.AnimalTag}
	}
	t.CreatedAt = tx.now
	tx.state.treatments[t.ID] = cloneTreatment(t)
	tx.recordChange(domain.Change{Entity: domain.EntityTreatment, Action: domain.ActionCreate, After: cloneTreatment(t)})
	return cloneTreatment(t), nil
}

// UpdateTreatment mutates a treatment record.
func (tx *Transaction) UpdateTreatment(id string, mutator func(*domain.Treatment) error) (domain.Treatment, error) {
	current, ok := tx.state.treatments[id]
	if !ok {
		return domain.Treatment{}, domain.NotFoundError{Entity: domain.EntityTreatment, Key: id}
	}
	before := cloneTreatment(current)
	if err := mutator(&current); err != nil {
		return domain.Treatment{}, err
	}
	current.ID = id
	if _, ok := tx.state.animals[current.AnimalTag]; !ok {
		return domain.Treatment{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: current.AnimalTag}
	}
	tx.state.treatments[id] = cloneTreatment(current)
	tx.recordChange(domain.Change{Entity: domain.EntityTreatment, Action: domain.ActionUpdate, Before: before, After: cloneTreatment(current)})
	return cloneTreatment(current), nil
}

// DeleteTreatment removes a treatment record.
func (tx *Transaction) DeleteTreatment(id string) error {
	current, ok := tx.state.treatments[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTreatment, Key: id}
	}
	delete(tx.state.treatments, id)
	tx.recordChange(domain.Change{Entity: domain.EntityTreatment, Action: domain.ActionDelete, Before: cloneTreatment(current)})
	return nil
}

// Mortality ------------------------------------------------------------------

// CreateMortality stores a mortality record, deriving age at death and
// flipping the referenced animal to dead in the same transaction.
func (tx *Transaction) CreateMortality(m domain.Mortality) (domain.Mortality, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if _, exists := tx.state.mortalities[m.ID]; exists {
		return domain.Mortality{}, domain.ValidationError{Entity: domain.EntityMortality, Reason: "mortality " + m.ID + " already exists"}
	}
	if err := tx.deriveMortality(&m); err != nil {
		return domain.Mortality{}, err
	}
	m.CreatedAt = tx.now
	tx.state.mortalities[m.ID] = cloneMortality(m)
	tx.recordChange(domain.Change{Entity: domain.EntityMortality, Action: domain.ActionCreate, After: cloneMortality(m)})
	return cloneMortality(m), nil
}

// UpdateMortality mutates a mortality record, re-deriving the age at death.
func (tx *Transaction) UpdateMortality(id string, mutator func(*domain.Mortality) error) (domain.Mortality, error) {
	current, ok := tx.state.mortalities[id]
	if !ok {
		return domain.Mortality{}, domain.NotFoundError{Entity: domain.EntityMortality, Key: id}
	}
	before := cloneMortality(current)
	if err := mutator(&current); err != nil {
		return domain.Mortality{}, err
	}
	current.ID = id
	if err := tx.deriveMortality(&current); err != nil {
		return domain.Mortality{}, err
	}
	tx.state.mortalities[id] = cloneMortality(current)
	tx.recordChange(domain.Change{Entity: domain.EntityMortality, Action: domain.ActionUpdate, Before: before, After: cloneMortality(current)})
	return cloneMortality(current), nil
}

// DeleteMortality removes a mortality record. The animal's status is left
// untouched; resurrecting an animal is an explicit correction, not a cascade.
func (tx *Transaction) DeleteMortality(id string) error {
	current, ok := tx.state.mortalities[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityMortality, Key: id}
	}
	delete(tx.state.mortalities, id)
	tx.recordChange(domain.Change{Entity: domain.EntityMortality, Action: domain.ActionDelete, Before: cloneMortality(current)})
	return nil
}

// HerdCount ------------------------------------------------------------------

// CreateHerdCount stores a herd count, recomputing the difference.
func (tx *Transaction) CreateHerdCount(h domain.HerdCount) (domain.HerdCount, error) {
	if h.ID == "" {
		h.ID = newID()
	}
	if _, exists := tx.state.herdCounts[h.ID]; exists {
		return domain.HerdCount{}, domain.ValidationError{Entity: domain.EntityHerdCount, Reason: "herd count " + h.ID + " already exists"}
	}
	if _, ok := tx.state.ranches[h.RanchID]; !ok {
		return domain.HerdCount{}, domain.NotFoundError{Entity: domain.EntityRanch, Key: h.RanchID}
	}
	deriveHerdCount(&h)
	h.CreatedAt = tx.now
	tx.state.herdCounts[h.ID] = cloneHerdCount(h)
	tx.recordChange(domain.Change{Entity: domain.EntityHerdCount, Action: domain.ActionCreate, After: cloneHerdCount(h)})
	return cloneHerdCount(h), nil
}

// UpdateHerdCount mutates a herd count, recomputing the difference.
func (tx *Transaction) UpdateHerdCount(id string, mutator func(*domain.HerdCount) error) (domain.HerdCount, error) {
	current, ok := tx.state.herdCounts[id]
	if !ok {
		return domain.HerdCount{}, domain.NotFoundError{Entity: domain.EntityHerdCount, Key: id}
	}
	before := cloneHerdCount(current)
	if err := mutator(&current); err != nil {
		return domain.HerdCount{}, err
	}
	current.ID = id
	deriveHerdCount(&current)
	tx.state.herdCounts[id] = cloneHerdCount(current)
	tx.recordChange(domain.Change{Entity: domain.EntityHerdCount, Action: domain.ActionUpdate, Before: before, After: cloneHerdCount(current)})
	return cloneHerdCount(current), nil
}

// DeleteHerdCount removes a herd count record.
func (tx *Transaction) DeleteHerdCount(id string) error {
	current, ok := tx.state.herdCounts[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityHerdCount, Key: id}
	}
	delete(tx.state.herdCounts, id)
	tx.recordChange(domain.Change{Entity: domain.EntityHerdCount, Action: domain.ActionDelete, Before: cloneHerdCount(current)})
	return nil
}

// MovementLog ----------------------------------------------------------------

// CreateMovementLog stores a movement record.
func (tx *Transaction) CreateMovementLog(m domain.MovementLog) (domain.MovementLog, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if _, exists := tx.state.movements[m.ID]; exists {
		return domain.MovementLog{}, domain.ValidationError{Entity: domain.EntityMovementLog, Reason: "movement log " + m.ID + " already exists"}
	}
	if m.AnimalTag != nil {
		if _, ok := tx.state.animals[*m.AnimalTag]; !ok {
			return domain.MovementLog{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: *m.AnimalTag}
		}
	}
	m.CreatedAt = tx.now
	tx.state.movements[m.ID] = cloneMovement(m)
	tx.recordChange(domain.Change{Entity: domain.EntityMovementLog, Action: domain.ActionCreate, After: cloneMovement(m)})
	return cloneMovement(m), nil
}

// UpdateMovementLog mutates a movement record.
func (tx *Transaction) UpdateMovementLog(id string, mutator func(*domain.MovementLog) error) (domain.MovementLog, error) {
	current, ok := tx.state.movements[id]
	if !ok {
		return domain.MovementLog{}, domain.NotFoundError{Entity: domain.EntityMovementLog, Key: id}
	}
	before := cloneMovement(current)
	if err := mutator(&current); err != nil {
		return domain.MovementLog{}, err
	}
	current.ID = id
	if current.AnimalTag != nil {
		if _, ok := tx.state.animals[*current.AnimalTag]; !ok {
			return domain.MovementLog{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: *current.AnimalTag}
		}
	}
	tx.state.movements[id] = cloneMovement(current)
	tx.recordChange(domain.Change{Entity: domain.EntityMovementLog, Action: domain.ActionUpdate, Before: before, After: cloneMovement(current)})
	return cloneMovement(current), nil
}

// DeleteMovementLog removes a movement record.
func (tx *Transaction) DeleteMovementLog(id string) error {
	current, ok := tx.state.movements[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityMovementLog, Key: id}
	}
	delete(tx.state.movements, id)
	tx.recordChange(domain.Change{Entity: domain.EntityMovementLog, Action: domain.ActionDelete, Before: cloneMovement(current)})
	return nil
}

// RFIDScanLog ----------------------------------------------------------------

// CreateRFIDScanLog stores a gate scan record.
func (tx *Transaction) CreateRFIDScanLog(r domain.RFIDScanLog) (domain.RFIDScanLog, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.rfidScans[r.ID]; exists {
		return domain.RFIDScanLog{}, domain.ValidationError{Entity: domain.EntityRFIDScanLog, Reason: "rfid scan " + r.ID + " already exists"}
	}
	if r.AnimalTag != nil {
		if _, ok := tx.state.animals[*r.AnimalTag]; !ok {
			return domain.RFIDScanLog{}, domain.NotFoundError{Entity: domain.EntityAnimal, Key: *r.AnimalTag}
		}
	}
	r.CreatedAt = tx.now
	tx.state.rfidScans[r.ID] = cloneRFIDScan(r)
	tx.recordChange(domain.Change{Entity: domain.EntityRFIDScanLog, Action: domain.ActionCreate, After: cloneRFIDScan(r)})
	return cloneRFIDScan(r), nil
}

// UpdateRFIDScanLog mutates a scan record.
func (tx *Transaction) UpdateRFIDScanLog(id string, mutator func(*domain.RFIDScanLog) error) (domain.RFIDScanLog, error) {
	current, ok := tx.state.rfidScans[id]
	if !ok {
		return domain.RFIDScanLog{}, domain.NotFoundError{Entity: domain.EntityRFIDScanLog, Key: id}
	}
	before := cloneRFIDScan(current)
	if err := mutator(&current); err != nil {
		return domain.RFIDScanLog{}, err
	}
	current.ID = id
	tx.state.rfidScans[id] = cloneRFIDScan(current)
	tx.recordChange(domain.Change{Entity: domain.EntityRFIDScanLog, Action: domain.ActionUpdate, Before: before, After: cloneRFIDScan(current)})
	return cloneRFIDScan(current), nil
}

// DeleteRFIDScanLog removes a scan record.
func (tx *Transaction) DeleteRFIDScanLog(id string) error {
	current, ok := tx.state.rfidScans[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRFIDScanLog, Key: id}
	}
	delete(tx.state.rfidScans, id)
	tx.recordChange(domain.Change{Entity: domain.EntityRFIDScanLog, Action: domain.ActionDelete, Before: cloneRFIDScan(current)})
	return nil
}

// Ranch ----------------------------------------------------------------------

// CreateRanch stores a ranch record.
func (tx *Transaction) CreateRanch(r domain.Ranch) (domain.Ranch, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.ranches[r.ID]; exists {
		return domain.Ranch{}, domain.ValidationError{Entity: domain.EntityRanch, Reason: "ranch " + r.ID + " already exists"}
	}
	if _, ok := tx.state.users[r.OwnerID]; !ok {
		return domain.Ranch{}, domain.NotFoundError{Entity: domain.EntityUser, Key: r.OwnerID}
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.ranches[r.ID] = cloneRanch(r)
	tx.recordChange(domain.Change{Entity: domain.EntityRanch, Action: domain.ActionCreate, After: cloneRanch(r)})
	return cloneRanch(r), nil
}

// UpdateRanch mutates a ranch record.
func (tx *Transaction) UpdateRanch(id string, mutator func(*domain.Ranch) error) (domain.Ranch, error) {
	current, ok := tx.state.ranches[id]
	if !ok {
		return domain.Ranch{}, domain.NotFoundError{Entity: domain.EntityRanch, Key: id}
	}
	before := cloneRanch(current)
	if err := mutator(&current); err != nil {
		return domain.Ranch{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.ranches[id] = cloneRanch(current)
	tx.recordChange(domain.Change{Entity: domain.EntityRanch, Action: domain.ActionUpdate, Before: before, After: cloneRanch(current)})
	return cloneRanch(current), nil
}

// DeleteRanch removes a ranch and cascades its animals, herd counts, staff,
// and metric snapshots.
func (tx *Transaction) DeleteRanch(id string) error {
	current, ok := tx.state.ranches[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRanch, Key: id}
	}
	for tag, a := range tx.state.animals {
		if a.RanchID == id {
			if err := tx.DeleteAnimal(tag); err != nil {
				return err
			}
		}
	}
	for hid, h := range tx.state.herdCounts {
		if h.RanchID == id {
			delete(tx.state.herdCounts, hid)
			tx.recordChange(domain.Change{Entity: domain.EntityHerdCount, Action: domain.ActionDelete, Before: cloneHerdCount(h)})
		}
	}
	for sid, st := range tx.state.staff {
		if st.RanchID == id {
			if err := tx.DeleteStaff(sid); err != nil {
				return err
			}
		}
	}
	for mid, m := range tx.state.systemMetrics {
		if m.RanchID == id {
			delete(tx.state.systemMetrics, mid)
		}
	}
	delete(tx.state.ranches, id)
	tx.recordChange(domain.Change{Entity: domain.EntityRanch, Action: domain.ActionDelete, Before: cloneRanch(current)})
	return nil
}

// User -----------------------------------------------------------------------

// CreateUser stores a user record.
func (tx *Transaction) CreateUser(u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return domain.User{}, domain.ValidationError{Entity: domain.EntityUser, Reason: "user " + u.ID + " already exists"}
	}
	if u.Role == "" {
		u.Role = domain.RoleHerdsman
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = u
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// UpdateUser mutates a user record.
func (tx *Transaction) UpdateUser(id string, mutator func(*domain.User) error) (domain.User, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Entity: domain.EntityUser, Key: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.User{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.users[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteUser removes a user: recorded-by references are nullified, staff
// profiles are unlinked, the user's ledger entries are removed, and owned
// ranches cascade.
func (tx *Transaction) DeleteUser(id string) error {
	current, ok := tx.state.users[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityUser, Key: id}
	}
	nullify := func(p **string) bool {
		if *p != nil && **p == id {
			*p = nil
			return true
		}
		return false
	}
	for bid, b := range tx.state.breeding {
		if nullify(&b.RecordedBy) {
			tx.state.breeding[bid] = cloneBreeding(b)
		}
	}
	for vid, v := range tx.state.vaccinations {
		if nullify(&v.RecordedBy) {
			tx.state.vaccinations[vid] = cloneVaccination(v)
		}
	}
	for tid, t := range tx.state.treatments {
		if nullify(&t.RecordedBy) {
			tx.state.treatments[tid] = cloneTreatment(t)
		}
	}
	for mid, m := range tx.state.mortalities {
		if nullify(&m.RecordedBy) {
			tx.state.mortalities[mid] = cloneMortality(m)
		}
	}
	for hid, h := range tx.state.herdCounts {
		if nullify(&h.RecordedBy) {
			tx.state.herdCounts[hid] = cloneHerdCount(h)
		}
	}
	for mid, m := range tx.state.movements {
		if nullify(&m.RecordedBy) {
			tx.state.movements[mid] = cloneMovement(m)
		}
	}
	for sid, st := range tx.state.staff {
		if nullify(&st.UserID) {
			tx.state.staff[sid] = cloneStaff(st)
		}
	}
	for eid, e := range tx.state.syncEntries {
		if e.UserID == id {
			delete(tx.state.syncEntries, eid)
		}
	}
	for rid, r := range tx.state.ranches {
		if r.OwnerID == id {
			if err := tx.DeleteRanch(rid); err != nil {
				return err
			}
		}
	}
	delete(tx.state.users, id)
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: current})
	return nil
}

// Staff ----------------------------------------------------------------------

// CreateStaff stores a staff record.
func (tx *Transaction) CreateStaff(st domain.Staff) (domain.Staff, error) {
	if st.ID == "" {
		st.ID = newID()
	}
	if _, exists := tx.state.staff[st.ID]; exists {
		return domain.Staff{}, domain.ValidationError{Entity: domain.EntityStaff, Reason: "staff " + st.ID + " already exists"}
	}
	if _, ok := tx.state.ranches[st.RanchID]; !ok {
		return domain.Staff{}, domain.NotFoundError{Entity: domain.EntityRanch, Key: st.RanchID}
	}
	if st.UserID != nil {
		if _, ok := tx.state.users[*st.UserID]; !ok {
			return domain.Staff{}, domain.NotFoundError{Entity: domain.EntityUser, Key: *st.UserID}
		}
	}
	st.CreatedAt = tx.now
	st.UpdatedAt = tx.now
	tx.state.staff[st.ID] = cloneStaff(st)
	tx.recordChange(domain.Change{Entity: domain.EntityStaff, Action: domain.ActionCreate, After: cloneStaff(st)})
	return cloneStaff(st), nil
}

// UpdateStaff mutates a staff record.
func (tx *Transaction) UpdateStaff(id string, mutator func(*domain.Staff) error) (domain.Staff, error) {
	current, ok := tx.state.staff[id]
	if !ok {
		return domain.Staff{}, domain.NotFoundError{Entity: domain.EntityStaff, Key: id}
	}
	before := cloneStaff(current)
	if err := mutator(&current); err != nil {
		return domain.Staff{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.staff[id] = cloneStaff(current)
	tx.recordChange(domain.Change{Entity: domain.EntityStaff, Action: domain.ActionUpdate, Before: before, After: cloneStaff(current)})
	return cloneStaff(current), nil
}

// DeleteStaff removes a staff record, nullifying performed-by references.
func (tx *Transaction) DeleteStaff(id string) error {
	current, ok := tx.state.staff[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityStaff, Key: id}
	}
	nullify := func(p **string) bool {
		if *p != nil && **p == id {
			*p = nil
			return true
		}
		return false
	}
	for vid, v := range tx.state.vaccinations {
		if nullify(&v.AdministeredBy) {
			tx.state.vaccinations[vid] = cloneVaccination(v)
		}
	}
	for tid, t := range tx.state.treatments {
		if nullify(&t.TreatedBy) {
			tx.state.treatments[tid] = cloneTreatment(t)
		}
	}
	for hid, h := range tx.state.herdCounts {
		if nullify(&h.CountedBy) {
			tx.state.herdCounts[hid] = cloneHerdCount(h)
		}
	}
	for mid, m := range tx.state.movements {
		if nullify(&m.MovedBy) {
			tx.state.movements[mid] = cloneMovement(m)
		}
	}
	delete(tx.state.staff, id)
	tx.recordChange(domain.Change{Entity: domain.EntityStaff, Action: domain.ActionDelete, Before: cloneStaff(current)})
	return nil
}

// SyncEntry ------------------------------------------------------------------

// CreateSyncEntry stores a ledger row for one incoming sync operation.
func (tx *Transaction) CreateSyncEntry(e domain.SyncEntry) (domain.SyncEntry, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if _, exists := tx.state.syncEntries[e.ID]; exists {
		return domain.SyncEntry{}, domain.ValidationError{Entity: domain.EntitySyncEntry, Reason: "sync entry " + e.ID + " already exists"}
	}
	e.CreatedAt = tx.now
	tx.state.syncEntries[e.ID] = cloneSyncEntry(e)
	tx.recordChange(domain.Change{Entity: domain.EntitySyncEntry, Action: domain.ActionCreate, After: cloneSyncEntry(e)})
	return cloneSyncEntry(e), nil
}

// UpdateSyncEntry sets the outcome fields of a ledger row.
func (tx *Transaction) UpdateSyncEntry(id string, mutator func(*domain.SyncEntry) error) (domain.SyncEntry, error) {
	current, ok := tx.state.syncEntries[id]
	if !ok {
		return domain.SyncEntry{}, domain.NotFoundError{Entity: domain.EntitySyncEntry, Key: id}
	}
	before := cloneSyncEntry(current)
	if err := mutator(&current); err != nil {
		return domain.SyncEntry{}, err
	}
	current.ID = id
	tx.state.syncEntries[id] = cloneSyncEntry(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySyncEntry, Action: domain.ActionUpdate, Before: before, After: cloneSyncEntry(current)})
	return cloneSyncEntry(current), nil
}

// SystemMetric ---------------------------------------------------------------

// CreateSystemMetric stores an analytics snapshot value.
func (tx *Transaction) CreateSystemMetric(m domain.SystemMetric) (domain.SystemMetric, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if _, exists := tx.state.systemMetrics[m.ID]; exists {
		return domain.SystemMetric{}, domain.ValidationError{Entity: domain.EntitySystemMetric, Reason: "system metric " + m.ID + " already exists"}
	}
	if _, ok := tx.state.ranches[m.RanchID]; !ok {
		return domain.SystemMetric{}, domain.NotFoundError{Entity: domain.EntityRanch, Key: m.RanchID}
	}
	m.CreatedAt = tx.now
	tx.state.systemMetrics[m.ID] = cloneSystemMetric(m)
	tx.recordChange(domain.Change{Entity: domain.EntitySystemMetric, Action: domain.ActionCreate, After: cloneSystemMetric(m)})
	return cloneSystemMetric(m), nil
}

// DeleteSystemMetric removes a metric snapshot.
func (tx *Transaction) DeleteSystemMetric(id string) error {
	current, ok := tx.state.systemMetrics[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntitySystemMetric, Key: id}
	}
	delete(tx.state.systemMetrics, id)
	tx.recordChange(domain.Change{Entity: domain.EntitySystemMetric, Action: domain.ActionDelete, Before: cloneSystemMetric(current)})
	return nil
}
