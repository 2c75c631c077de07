package memory

import (
	"sort"

	"ranchcore/pkg/domain"
)

// view is a read-only projection over a state. It satisfies both the
// transaction view and the rule view contracts.
type view struct {
	state *state
}

var _ domain.TransactionView = view{}
var _ domain.RuleView = view{}

func (v view) ListAnimals() []domain.Animal {
	out := make([]domain.Animal, 0, len(v.state.animals))
	for _, a := range v.state.animals {
		out = append(out, cloneAnimal(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagNumber < out[j].TagNumber })
	return out
}

func (v view) FindAnimal(tag string) (domain.Animal, bool) {
	a, ok := v.state.animals[tag]
	if !ok {
		return domain.Animal{}, false
	}
	return cloneAnimal(a), true
}

func (v view) ListBreedingEvents() []domain.BreedingEvent {
	out := make([]domain.BreedingEvent, 0, len(v.state.breeding))
	for _, b := range v.state.breeding {
		out = append(out, cloneBreeding(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ServiceDate.Equal(out[j].ServiceDate) {
			return out[j].ServiceDate.Before(out[i].ServiceDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindBreedingEvent(id string) (domain.BreedingEvent, bool) {
	b, ok := v.state.breeding[id]
	if !ok {
		return domain.BreedingEvent{}, false
	}
	return cloneBreeding(b), true
}

func (v view) ListVaccinations() []domain.Vaccination {
	out := make([]domain.Vaccination, 0, len(v.state.vaccinations))
	for _, rec := range v.state.vaccinations {
		out = append(out, cloneVaccination(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateAdministered.Equal(out[j].DateAdministered) {
			return out[j].DateAdministered.Before(out[i].DateAdministered)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindVaccination(id string) (domain.Vaccination, bool) {
	rec, ok := v.state.vaccinations[id]
	if !ok {
		return domain.Vaccination{}, false
	}
	return cloneVaccination(rec), true
}

func (v view) ListTreatments() []domain.Treatment {
	out := make([]domain.Treatment, 0, len(v.state.treatments))
	for _, rec := range v.state.treatments {
		out = append(out, cloneTreatment(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TreatmentDate.Equal(out[j].TreatmentDate) {
			return out[j].TreatmentDate.Before(out[i].TreatmentDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindTreatment(id string) (domain.Treatment, bool) {
	rec, ok := v.state.treatments[id]
	if !ok {
		return domain.Treatment{}, false
	}
	return cloneTreatment(rec), true
}

func (v view) ListMortalities() []domain.Mortality {
	out := make([]domain.Mortality, 0, len(v.state.mortalities))
	for _, rec := range v.state.mortalities {
		out = append(out, cloneMortality(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeathDate.Equal(out[j].DeathDate) {
			return out[j].DeathDate.Before(out[i].DeathDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindMortality(id string) (domain.Mortality, bool) {
	rec, ok := v.state.mortalities[id]
	if !ok {
		return domain.Mortality{}, false
	}
	return cloneMortality(rec), true
}

func (v view) FindMortalityByAnimal(tag string) (domain.Mortality, bool) {
	for _, rec := range v.ListMortalities() {
		if rec.AnimalTag == tag {
			return rec, true
		}
	}
	return domain.Mortality{}, false
}

func (v view) ListHerdCounts() []domain.HerdCount {
	out := make([]domain.HerdCount, 0, len(v.state.herdCounts))
	for _, rec := range v.state.herdCounts {
		out = append(out, cloneHerdCount(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CountDate.Equal(out[j].CountDate) {
			return out[j].CountDate.Before(out[i].CountDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindHerdCount(id string) (domain.HerdCount, bool) {
	rec, ok := v.state.herdCounts[id]
	if !ok {
		return domain.HerdCount{}, false
	}
	return cloneHerdCount(rec), true
}

func (v view) ListMovementLogs() []domain.MovementLog {
	out := make([]domain.MovementLog, 0, len(v.state.movements))
	for _, rec := range v.state.movements {
		out = append(out, cloneMovement(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MovementDate.Equal(out[j].MovementDate) {
			return out[j].MovementDate.Before(out[i].MovementDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindMovementLog(id string) (domain.MovementLog, bool) {
	rec, ok := v.state.movements[id]
	if !ok {
		return domain.MovementLog{}, false
	}
	return cloneMovement(rec), true
}

func (v view) ListRFIDScanLogs() []domain.RFIDScanLog {
	out := make([]domain.RFIDScanLog, 0, len(v.state.rfidScans))
	for _, rec := range v.state.rfidScans {
		out = append(out, cloneRFIDScan(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScanTimestamp.Equal(out[j].ScanTimestamp) {
			return out[j].ScanTimestamp.Before(out[i].ScanTimestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindRFIDScanLog(id string) (domain.RFIDScanLog, bool) {
	rec, ok := v.state.rfidScans[id]
	if !ok {
		return domain.RFIDScanLog{}, false
	}
	return cloneRFIDScan(rec), true
}

func (v view) ListRanches() []domain.Ranch {
	out := make([]domain.Ranch, 0, len(v.state.ranches))
	for _, rec := range v.state.ranches {
		out = append(out, cloneRanch(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (v view) FindRanch(id string) (domain.Ranch, bool) {
	rec, ok := v.state.ranches[id]
	if !ok {
		return domain.Ranch{}, false
	}
	return cloneRanch(rec), true
}

func (v view) ListUsers() []domain.User {
	out := make([]domain.User, 0, len(v.state.users))
	for _, rec := range v.state.users {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (v view) FindUser(id string) (domain.User, bool) {
	rec, ok := v.state.users[id]
	return rec, ok
}

func (v view) FindUserByUsername(username string) (domain.User, bool) {
	for _, rec := range v.state.users {
		if rec.Username == username {
			return rec, true
		}
	}
	return domain.User{}, false
}

func (v view) ListStaff() []domain.Staff {
	out := make([]domain.Staff, 0, len(v.state.staff))
	for _, rec := range v.state.staff {
		out = append(out, cloneStaff(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (v view) FindStaff(id string) (domain.Staff, bool) {
	rec, ok := v.state.staff[id]
	if !ok {
		return domain.Staff{}, false
	}
	return cloneStaff(rec), true
}

func (v view) ListSyncEntries() []domain.SyncEntry {
	out := make([]domain.SyncEntry, 0, len(v.state.syncEntries))
	for _, rec := range v.state.syncEntries {
		out = append(out, cloneSyncEntry(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) FindSyncEntry(id string) (domain.SyncEntry, bool) {
	rec, ok := v.state.syncEntries[id]
	if !ok {
		return domain.SyncEntry{}, false
	}
	return cloneSyncEntry(rec), true
}

func (v view) ListSystemMetrics() []domain.SystemMetric {
	out := make([]domain.SystemMetric, 0, len(v.state.systemMetrics))
	for _, rec := range v.state.systemMetrics {
		out = append(out, cloneSystemMetric(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CalculationDate.Equal(out[j].CalculationDate) {
			return out[j].CalculationDate.Before(out[i].CalculationDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Store-level read helpers lock briefly and delegate to a view over the
// committed state.

func (s *Store) readView() view {
	return view{state: &s.state}
}

// GetAnimal returns the animal with the given tag from committed state.
func (s *Store) GetAnimal(tag string) (domain.Animal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().FindAnimal(tag)
}

// ListAnimals returns committed animals ordered by tag.
func (s *Store) ListAnimals() []domain.Animal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListAnimals()
}

// ListBreedingEvents returns committed breeding events, most recent first.
func (s *Store) ListBreedingEvents() []domain.BreedingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListBreedingEvents()
}

// ListVaccinations returns committed vaccinations, most recent first.
func (s *Store) ListVaccinations() []domain.Vaccination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListVaccinations()
}

// ListTreatments returns committed treatments, most recent first.
func (s *Store) ListTreatments() []domain.Treatment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListTreatments()
}

// ListMortalities returns committed mortalities, most recent first.
func (s *Store) ListMortalities() []domain.Mortality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListMortalities()
}

// ListHerdCounts returns committed herd counts, most recent first.
func (s *Store) ListHerdCounts() []domain.HerdCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListHerdCounts()
}

// ListMovementLogs returns committed movement logs, most recent first.
func (s *Store) ListMovementLogs() []domain.MovementLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListMovementLogs()
}

// ListRFIDScanLogs returns committed scan logs, most recent first.
func (s *Store) ListRFIDScanLogs() []domain.RFIDScanLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListRFIDScanLogs()
}

// ListRanches returns committed ranches ordered by name.
func (s *Store) ListRanches() []domain.Ranch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListRanches()
}

// ListUsers returns committed users ordered by username.
func (s *Store) ListUsers() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListUsers()
}

// ListStaff returns committed staff ordered by name.
func (s *Store) ListStaff() []domain.Staff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListStaff()
}

// ListSyncEntries returns committed ledger entries ordered by client timestamp.
func (s *Store) ListSyncEntries() []domain.SyncEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListSyncEntries()
}

// ListSystemMetrics returns committed metric snapshots, most recent first.
func (s *Store) ListSystemMetrics() []domain.SystemMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListSystemMetrics()
}
