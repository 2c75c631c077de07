package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ranchcore/pkg/domain"
)

func decodeBody[T any](s *Server, w http.ResponseWriter, r *http.Request, dst *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// stamp fills the recorded_by field from the authenticated user when the
// client left it empty.
func stamp(recordedBy **string, actor domain.UserRef) {
	if *recordedBy == nil && actor.ID != "" {
		id := actor.ID
		*recordedBy = &id
	}
}

// filterList narrows a listing by exact-match query parameters. Parameter
// names are the wire field names; empty or absent parameters are ignored.
func filterList[T any](r *http.Request, list []T, fields map[string]func(T) string) []T {
	out := list
	for field, extract := range fields {
		value := r.URL.Query().Get(field)
		if value == "" {
			continue
		}
		var filtered []T
		for _, item := range out {
			if extract(item) == value {
				filtered = append(filtered, item)
			}
		}
		out = filtered
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Server) handleListAnimals(w http.ResponseWriter, r *http.Request) {
	animals := filterList(r, s.svc.ListAnimals(), map[string]func(domain.Animal) string{
		"species": func(a domain.Animal) string { return string(a.Species) },
		"status":  func(a domain.Animal) string { return string(a.Status) },
		"ranch":   func(a domain.Animal) string { return a.RanchID },
	})
	s.writeJSON(w, http.StatusOK, animals)
}

func (s *Server) handleCreateAnimal(w http.ResponseWriter, r *http.Request) {
	var animal domain.Animal
	if !decodeBody(s, w, r, &animal) {
		return
	}
	created, _, err := s.svc.CreateAnimal(r.Context(), animal)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetAnimal(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	animal, ok := s.svc.GetAnimal(tag)
	if !ok {
		s.writeError(w, http.StatusNotFound, domain.NotFoundError{Entity: domain.EntityAnimal, Key: tag}.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, animal)
}

func (s *Server) handleUpdateAnimal(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	var patch json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, _, err := s.svc.UpdateAnimal(r.Context(), tag, func(a *domain.Animal) error {
		return json.Unmarshal(patch, a)
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAnimal(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if _, err := s.svc.DeleteAnimal(r.Context(), tag); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBreedingEvents(w http.ResponseWriter, r *http.Request) {
	events := filterList(r, s.svc.ListBreedingEvents(), map[string]func(domain.BreedingEvent) string{
		"female_tag":          func(e domain.BreedingEvent) string { return e.FemaleTag },
		"pregnancy_confirmed": func(e domain.BreedingEvent) string { return string(e.PregnancyConfirmed) },
	})
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateBreedingEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.BreedingEvent
	if !decodeBody(s, w, r, &event) {
		return
	}
	stamp(&event.RecordedBy, actorFrom(r.Context()))
	created, _, err := s.svc.CreateBreedingEvent(r.Context(), event)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBreedingEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, _, err := s.svc.UpdateBreedingEvent(r.Context(), id, func(e *domain.BreedingEvent) error {
		return json.Unmarshal(patch, e)
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListVaccinations(w http.ResponseWriter, r *http.Request) {
	recs := filterList(r, s.svc.ListVaccinations(), map[string]func(domain.Vaccination) string{
		"animal_tag":   func(v domain.Vaccination) string { return v.AnimalTag },
		"vaccine_type": func(v domain.Vaccination) string { return v.VaccineType },
	})
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateVaccination(w http.ResponseWriter, r *http.Request) {
	var rec domain.Vaccination
	if !decodeBody(s, w, r, &rec) {
		return
	}
	stamp(&rec.RecordedBy, actorFrom(r.Context()))
	created, _, err := s.svc.CreateVaccination(r.Context(), rec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTreatments(w http.ResponseWriter, r *http.Request) {
	recs := filterList(r, s.svc.ListTreatments(), map[string]func(domain.Treatment) string{
		"animal_tag": func(t domain.Treatment) string { return t.AnimalTag },
	})
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateTreatment(w http.ResponseWriter, r *http.Request) {
	var rec domain.Treatment
	if !decodeBody(s, w, r, &rec) {
		return
	}
	stamp(&rec.RecordedBy, actorFrom(r.Context()))
	created, _, err := s.svc.CreateTreatment(r.Context(), rec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListMortalities(w http.ResponseWriter, r *http.Request) {
	recs := filterList(r, s.svc.ListMortalities(), map[string]func(domain.Mortality) string{
		"animal_tag": func(m domain.Mortality) string { return m.AnimalTag },
	})
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateMortality(w http.ResponseWriter, r *http.Request) {
	var rec domain.Mortality
	if !decodeBody(s, w, r, &rec) {
		return
	}
	stamp(&rec.RecordedBy, actorFrom(r.Context()))
	created, _, err := s.svc.CreateMortality(r.Context(), rec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListHerdCounts(w http.ResponseWriter, r *http.Request) {
	recs := filterList(r, s.svc.ListHerdCounts(), map[string]func(domain.HerdCount) string{
		"ranch":      func(c domain.HerdCount) string { return c.RanchID },
		"species":    func(c domain.HerdCount) string { return string(c.Species) },
		"count_date": func(c domain.HerdCount) string { return c.CountDate.String() },
	})
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateHerdCount(w http.ResponseWriter, r *http.Request) {
	var rec domain.HerdCount
	if !decodeBody(s, w, r, &rec) {
		return
	}
	stamp(&rec.RecordedBy, actorFrom(r.Context()))
	created, _, err := s.svc.CreateHerdCount(r.Context(), rec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	recs := filterList(r, s.svc.ListMovementLogs(), map[string]func(domain.MovementLog) string{
		"animal_tag":    func(m domain.MovementLog) string { return strDeref(m.AnimalTag) },
		"movement_date": func(m domain.MovementLog) string { return m.MovementDate.String() },
	})
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var rec domain.MovementLog
	if !decodeBody(s, w, r, &rec) {
		return
	}
	stamp(&rec.RecordedBy, actorFrom(r.Context()))
	created, _, err := s.svc.CreateMovementLog(r.Context(), rec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRFIDScans(w http.ResponseWriter, r *http.Request) {
	recs := filterList(r, s.svc.ListRFIDScanLogs(), map[string]func(domain.RFIDScanLog) string{
		"rfid_code": func(l domain.RFIDScanLog) string { return l.RFIDCode },
		"gate_id":   func(l domain.RFIDScanLog) string { return l.GateID },
	})
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateRFIDScan(w http.ResponseWriter, r *http.Request) {
	var rec domain.RFIDScanLog
	if !decodeBody(s, w, r, &rec) {
		return
	}
	created, _, err := s.svc.CreateRFIDScanLog(r.Context(), rec)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRanches(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.ListRanches())
}

func (s *Server) handleCreateRanch(w http.ResponseWriter, r *http.Request) {
	var ranch domain.Ranch
	if !decodeBody(s, w, r, &ranch) {
		return
	}
	created, _, err := s.svc.CreateRanch(r.Context(), ranch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.ListSystemMetrics())
}
