package memory

import (
	"ranchcore/pkg/domain"
)

// Snapshot is a serializable copy of the full store state, bucketed per
// entity type. Durable backends persist and reload it wholesale.
type Snapshot struct {
	Animals       []domain.Animal        `json:"animals"`
	Breeding      []domain.BreedingEvent `json:"breeding_events"`
	Vaccinations  []domain.Vaccination   `json:"vaccinations"`
	Treatments    []domain.Treatment     `json:"treatments"`
	Mortalities   []domain.Mortality     `json:"mortalities"`
	HerdCounts    []domain.HerdCount     `json:"herd_counts"`
	Movements     []domain.MovementLog   `json:"movement_logs"`
	RFIDScans     []domain.RFIDScanLog   `json:"rfid_scan_logs"`
	Ranches       []domain.Ranch         `json:"ranches"`
	Users         []domain.User          `json:"users"`
	Staff         []domain.Staff         `json:"staff"`
	SyncEntries   []domain.SyncEntry     `json:"sync_entries"`
	SystemMetrics []domain.SystemMetric  `json:"system_metrics"`
}

// ExportState copies the committed state into a snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.readView()
	return Snapshot{
		Animals:       v.ListAnimals(),
		Breeding:      v.ListBreedingEvents(),
		Vaccinations:  v.ListVaccinations(),
		Treatments:    v.ListTreatments(),
		Mortalities:   v.ListMortalities(),
		HerdCounts:    v.ListHerdCounts(),
		Movements:     v.ListMovementLogs(),
		RFIDScans:     v.ListRFIDScanLogs(),
		Ranches:       v.ListRanches(),
		Users:         v.ListUsers(),
		Staff:         v.ListStaff(),
		SyncEntries:   v.ListSyncEntries(),
		SystemMetrics: v.ListSystemMetrics(),
	}
}

// ImportState replaces the committed state with a snapshot. Records are
// loaded as-is, bypassing derivations and rules; the snapshot is trusted to
// hold previously committed state.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newState()
	for _, r := range snap.Animals {
		st.animals[r.TagNumber] = cloneAnimal(r)
	}
	for _, r := range snap.Breeding {
		st.breeding[r.ID] = cloneBreeding(r)
	}
	for _, r := range snap.Vaccinations {
		st.vaccinations[r.ID] = cloneVaccination(r)
	}
	for _, r := range snap.Treatments {
		st.treatments[r.ID] = cloneTreatment(r)
	}
	for _, r := range snap.Mortalities {
		st.mortalities[r.ID] = cloneMortality(r)
	}
	for _, r := range snap.HerdCounts {
		st.herdCounts[r.ID] = cloneHerdCount(r)
	}
	for _, r := range snap.Movements {
		st.movements[r.ID] = cloneMovement(r)
	}
	for _, r := range snap.RFIDScans {
		st.rfidScans[r.ID] = cloneRFIDScan(r)
	}
	for _, r := range snap.Ranches {
		st.ranches[r.ID] = cloneRanch(r)
	}
	for _, r := range snap.Users {
		st.users[r.ID] = r
	}
	for _, r := range snap.Staff {
		st.staff[r.ID] = cloneStaff(r)
	}
	for _, r := range snap.SyncEntries {
		st.syncEntries[r.ID] = cloneSyncEntry(r)
	}
	for _, r := range snap.SystemMetrics {
		st.systemMetrics[r.ID] = cloneSystemMetric(r)
	}
	s.state = st
}
