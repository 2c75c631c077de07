// Package seed loads a realistic demo dataset. Seeding is idempotent:
// every record is looked up by its natural key before it is created, so
// running it against an already-seeded store is a no-op.
package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ranchcore/internal/core"
	"ranchcore/pkg/domain"
)

// Seeder writes the demo dataset through the service layer so every
// derivation and rule applies exactly as it would for live input.
type Seeder struct {
	svc    *core.Service
	logger *zap.Logger
	today  domain.Date
}

// New creates a seeder. today anchors all relative dates; pass
// domain.Today() in production.
func New(svc *core.Service, logger *zap.Logger, today domain.Date) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{svc: svc, logger: logger, today: today}
}

// Run populates the store with the demo herd: two clear breeding cohorts
// (born vs imported females), overdue vaccinations on the imported side,
// a recent mortality, herd counts, and movements.
func (s *Seeder) Run(ctx context.Context) error {
	admin, err := s.ensureUser(ctx, "admin", domain.RoleAdmin)
	if err != nil {
		return err
	}
	manager, err := s.ensureUser(ctx, "manager", domain.RoleManager)
	if err != nil {
		return err
	}
	vetUser, err := s.ensureUser(ctx, "vet", domain.RoleVet)
	if err != nil {
		return err
	}

	ranch, err := s.ensureRanch(ctx, "Kisombwa Ranching Scheme", "Kitenga Sub County, Mubende District, Uganda", 2400, admin.ID)
	if err != nil {
		return err
	}

	herdsman, err := s.ensureStaff(ctx, ranch.ID, "John Mugisha", domain.StaffHerdsman, "+256700123456", nil)
	if err != nil {
		return err
	}
	vetStaff, err := s.ensureStaff(ctx, ranch.ID, "Sarah Namukasa", domain.StaffVet, "+256700222333", &vetUser.ID)
	if err != nil {
		return err
	}

	var localFemales, importedFemales []domain.Animal
	for i := 1; i <= 8; i++ {
		a, err := s.ensureAnimal(ctx, ranch.ID, fmt.Sprintf("LOCF%03d", i), domain.SourceBorn, domain.SexFemale, 2022)
		if err != nil {
			return err
		}
		localFemales = append(localFemales, a)
	}
	for i := 1; i <= 8; i++ {
		a, err := s.ensureAnimal(ctx, ranch.ID, fmt.Sprintf("IMPF%03d", i), domain.SourceImported, domain.SexFemale, 2021)
		if err != nil {
			return err
		}
		importedFemales = append(importedFemales, a)
	}
	for i := 1; i <= 4; i++ {
		if _, err := s.ensureAnimal(ctx, ranch.ID, fmt.Sprintf("LOCM%03d", i), domain.SourceBorn, domain.SexMale, 2021); err != nil {
			return err
		}
		if _, err := s.ensureAnimal(ctx, ranch.ID, fmt.Sprintf("IMPM%03d", i), domain.SourceImported, domain.SexMale, 2020); err != nil {
			return err
		}
	}
	bull, err := s.ensureAnimal(ctx, ranch.ID, "BULL001", domain.SourceBorn, domain.SexMale, 2020)
	if err != nil {
		return err
	}

	// Born cohort: full vaccination coverage, six of eight conceive.
	for idx, female := range localFemales {
		n := idx + 1
		if err := s.ensureVaccination(ctx, female.TagNumber, 120+n, false, vetStaff.ID, manager.ID); err != nil {
			return err
		}
		confirmed := domain.PregnancyConfirmed
		if n > 6 {
			confirmed = domain.PregnancyNegative
		}
		if err := s.ensureBreedingEvent(ctx, female.TagNumber, bull.TagNumber, 260-n*4, confirmed, manager.ID); err != nil {
			return err
		}
	}

	// Imported cohort: sparse coverage with overdue doses, three of eight conceive.
	for idx, female := range importedFemales {
		n := idx + 1
		if n <= 2 {
			if err := s.ensureVaccination(ctx, female.TagNumber, 180+n, true, vetStaff.ID, manager.ID); err != nil {
				return err
			}
		}
		confirmed := domain.PregnancyConfirmed
		if n > 3 {
			confirmed = domain.PregnancyNegative
		}
		if err := s.ensureBreedingEvent(ctx, female.TagNumber, bull.TagNumber, 255-n*3, confirmed, manager.ID); err != nil {
			return err
		}
	}

	treatments := []struct {
		tag       string
		diagnosis string
		daysAgo   int
	}{
		{localFemales[0].TagNumber, "Mastitis", 25},
		{importedFemales[3].TagNumber, "Tick fever", 16},
		{importedFemales[6].TagNumber, "Respiratory infection", 9},
	}
	for _, tr := range treatments {
		if err := s.ensureTreatment(ctx, tr.tag, tr.diagnosis, tr.daysAgo, vetStaff.ID, manager.ID); err != nil {
			return err
		}
	}

	if err := s.ensureMortality(ctx, importedFemales[7].TagNumber, 11, manager.ID); err != nil {
		return err
	}

	counts := []struct {
		daysAgo  int
		expected int
		actual   int
	}{{4, 24, 23}, {2, 24, 24}, {1, 24, 22}}
	for _, c := range counts {
		if err := s.ensureHerdCount(ctx, ranch.ID, c.daysAgo, c.expected, c.actual, herdsman.ID, manager.ID); err != nil {
			return err
		}
	}

	movements := []struct {
		tag      string
		from, to string
		daysAgo  int
	}{
		{localFemales[1].TagNumber, "Zone A", "Zone B", 6},
		{importedFemales[1].TagNumber, "Quarantine", "Zone C", 5},
		{localFemales[4].TagNumber, "Zone B", "Milking area", 2},
	}
	for _, m := range movements {
		if err := s.ensureMovement(ctx, m.tag, m.from, m.to, m.daysAgo, herdsman.ID, manager.ID); err != nil {
			return err
		}
	}

	baselines := []struct {
		metricType string
		value      float64
	}{
		{"conception_rate_local", 75.0},
		{"conception_rate_imported", 37.5},
		{"overdue_vaccinations", 2},
	}
	for _, b := range baselines {
		if err := s.ensureMetric(ctx, ranch.ID, b.metricType, b.value); err != nil {
			return err
		}
	}

	s.logger.Info("demo data seeded", zap.String("ranch", ranch.ID))
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, username string, role domain.UserRole) (domain.User, error) {
	if existing, ok := s.svc.FindUserByUsername(ctx, username); ok {
		return existing, nil
	}
	created, _, err := s.svc.CreateUser(ctx, domain.User{Username: username, Role: role, Active: true})
	return created, err
}

func (s *Seeder) ensureRanch(ctx context.Context, name, location string, hectares float64, ownerID string) (domain.Ranch, error) {
	for _, r := range s.svc.ListRanches() {
		if r.Name == name {
			return r, nil
		}
	}
	created, _, err := s.svc.CreateRanch(ctx, domain.Ranch{
		Name:         name,
		Location:     location,
		SizeHectares: &hectares,
		OwnerID:      ownerID,
	})
	return created, err
}

func (s *Seeder) ensureStaff(ctx context.Context, ranchID, name string, role domain.StaffRole, phone string, userID *string) (domain.Staff, error) {
	for _, st := range s.svc.ListStaff() {
		if st.RanchID == ranchID && st.Name == name {
			return st, nil
		}
	}
	created, _, err := s.svc.CreateStaff(ctx, domain.Staff{
		RanchID:     ranchID,
		Name:        name,
		Role:        role,
		PhoneNumber: phone,
		UserID:      userID,
		Active:      true,
	})
	return created, err
}

func (s *Seeder) ensureAnimal(ctx context.Context, ranchID, tag string, source domain.Source, sex domain.Sex, birthYear int) (domain.Animal, error) {
	if existing, ok := s.svc.GetAnimal(tag); ok {
		return existing, nil
	}
	dob := domain.NewDate(birthYear, 3, 1)
	created, _, err := s.svc.CreateAnimal(ctx, domain.Animal{
		TagNumber:   tag,
		RanchID:     ranchID,
		Species:     domain.SpeciesCattle,
		Breed:       "Boran",
		Sex:         sex,
		DateOfBirth: &dob,
		Source:      source,
		Status:      domain.StatusActive,
	})
	return created, err
}

func (s *Seeder) ensureVaccination(ctx context.Context, tag string, offsetDays int, overdue bool, vetStaffID, managerID string) error {
	administered := s.today.AddDays(-offsetDays)
	for _, v := range s.svc.ListVaccinations() {
		if v.AnimalTag == tag && v.VaccineType == "FMD" && v.DateAdministered.Equal(administered) {
			return nil
		}
	}
	due := s.today.AddDays(120)
	if overdue {
		due = s.today.AddDays(-7)
	}
	cost := 4.50
	_, _, err := s.svc.CreateVaccination(ctx, domain.Vaccination{
		AnimalTag:        tag,
		VaccineType:      "FMD",
		DiseaseTargeted:  "Foot and Mouth Disease",
		DateAdministered: administered,
		AdministeredBy:   &vetStaffID,
		NextDueDate:      &due,
		BatchNumber:      "FMD-2026-A",
		Location:         "Neck",
		Cost:             &cost,
		RecordedBy:       &managerID,
	})
	return err
}

func (s *Seeder) ensureBreedingEvent(ctx context.Context, femaleTag, bullTag string, serviceOffset int, confirmed domain.PregnancyStatus, managerID string) error {
	serviceDate := s.today.AddDays(-serviceOffset)
	for _, e := range s.svc.ListBreedingEvents() {
		if e.FemaleTag == femaleTag && e.ServiceDate.Equal(serviceDate) {
			return nil
		}
	}
	checkDate := serviceDate.AddDays(45)
	_, _, err := s.svc.CreateBreedingEvent(ctx, domain.BreedingEvent{
		FemaleTag:          femaleTag,
		MaleTag:            &bullTag,
		ServiceDate:        serviceDate,
		Method:             domain.MethodNatural,
		PregnancyConfirmed: confirmed,
		PregnancyCheckDate: &checkDate,
		Notes:              "Seeded demo breeding event",
		RecordedBy:         &managerID,
	})
	return err
}

func (s *Seeder) ensureTreatment(ctx context.Context, tag, diagnosis string, daysAgo int, vetStaffID, managerID string) error {
	treatmentDate := s.today.AddDays(-daysAgo)
	for _, t := range s.svc.ListTreatments() {
		if t.AnimalTag == tag && t.TreatmentDate.Equal(treatmentDate) {
			return nil
		}
	}
	followUp := s.today.AddDays(-(daysAgo - 7))
	cost := 12.00
	_, _, err := s.svc.CreateTreatment(ctx, domain.Treatment{
		AnimalTag:        tag,
		Diagnosis:        diagnosis,
		MedicationGiven:  "Broad-spectrum antibiotic",
		Dosage:           "20ml",
		TreatmentDate:    treatmentDate,
		TreatedBy:        &vetStaffID,
		FollowUpRequired: true,
		FollowUpDate:     &followUp,
		Cost:             &cost,
		Notes:            "Seeded demo treatment",
		RecordedBy:       &managerID,
	})
	return err
}

func (s *Seeder) ensureMortality(ctx context.Context, tag string, daysAgo int, managerID string) error {
	deathDate := s.today.AddDays(-daysAgo)
	for _, m := range s.svc.ListMortalities() {
		if m.AnimalTag == tag && m.DeathDate.Equal(deathDate) {
			return nil
		}
	}
	value := 380.00
	_, _, err := s.svc.CreateMortality(ctx, domain.Mortality{
		AnimalTag:       tag,
		DeathDate:       deathDate,
		Cause:           "Complications after illness",
		VetConfirmed:    true,
		CarcassDisposed: true,
		EstimatedValue:  &value,
		Notes:           "Seeded demo mortality",
		RecordedBy:      &managerID,
	})
	return err
}

func (s *Seeder) ensureHerdCount(ctx context.Context, ranchID string, daysAgo, expected, actual int, herdsmanID, managerID string) error {
	countDate := s.today.AddDays(-daysAgo)
	for _, c := range s.svc.ListHerdCounts() {
		if c.RanchID == ranchID && c.CountDate.Equal(countDate) && c.Species == domain.SpeciesCattle {
			return nil
		}
	}
	_, _, err := s.svc.CreateHerdCount(ctx, domain.HerdCount{
		RanchID:       ranchID,
		CountDate:     countDate,
		Species:       domain.SpeciesCattle,
		ExpectedCount: expected,
		ActualCount:   actual,
		GrazingZone:   "North paddock",
		Notes:         "Seeded demo herd count",
		CountedBy:     &herdsmanID,
		RecordedBy:    &managerID,
	})
	return err
}

func (s *Seeder) ensureMovement(ctx context.Context, tag, fromZone, toZone string, daysAgo int, herdsmanID, managerID string) error {
	moveDate := s.today.AddDays(-daysAgo)
	for _, m := range s.svc.ListMovementLogs() {
		if m.AnimalTag != nil && *m.AnimalTag == tag && m.MovementDate.Equal(moveDate) && m.ToZone == toZone {
			return nil
		}
	}
	_, _, err := s.svc.CreateMovementLog(ctx, domain.MovementLog{
		AnimalTag:    &tag,
		GroupName:    "Main Herd",
		FromZone:     fromZone,
		ToZone:       toZone,
		MovementDate: moveDate,
		Reason:       "Scheduled rotation",
		MovedBy:      &herdsmanID,
		RecordedBy:   &managerID,
	})
	return err
}

func (s *Seeder) ensureMetric(ctx context.Context, ranchID, metricType string, value float64) error {
	for _, m := range s.svc.ListSystemMetrics() {
		if m.RanchID == ranchID && m.MetricType == metricType && m.CalculationDate.Equal(s.today) {
			return nil
		}
	}
	meta, _ := json.Marshal(map[string]string{"source": "seed"})
	_, _, err := s.svc.CreateSystemMetric(ctx, domain.SystemMetric{
		RanchID:         ranchID,
		MetricType:      metricType,
		MetricValue:     value,
		CalculationDate: s.today,
		Metadata:        meta,
	})
	return err
}
