package core

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"ranchcore/pkg/domain"
)

// DefaultCalfValue is the assumed market value of one live-born calf used in
// the revenue estimate.
const DefaultCalfValue = 320.0

// recentLimit caps each of the recent-record lists in the snapshot.
const recentLimit = 10

// DashboardKPIs are the headline counters.
type DashboardKPIs struct {
	TotalAnimals          int `json:"total_animals"`
	ActiveAnimals         int `json:"active_animals"`
	OverdueVaccinations   int `json:"overdue_vaccinations"`
	RecentMortality30Days int `json:"recent_mortality_30_days"`
}

// SpeciesCount is one row of the species breakdown.
type SpeciesCount struct {
	Species domain.Species `json:"species"`
	Total   int            `json:"total"`
}

// CohortStats summarizes breeding performance for one source cohort.
type CohortStats struct {
	Source           domain.Source `json:"source"`
	Animals          int           `json:"animals"`
	TotalEvents      int           `json:"total_events"`
	Conceived        int           `json:"conceived"`
	ConceptionRate   float64       `json:"conception_rate"`
	Stillbirths      int           `json:"stillbirths"`
	StillbirthRate   float64       `json:"stillbirth_rate"`
	Mortalities      int           `json:"mortalities"`
	CalfSurvivalRate float64       `json:"calf_survival_rate"`
}

// RootCause pairs the imported cohort's overdue-vaccination exposure with
// the conception-rate gap against the local cohort.
type RootCause struct {
	ImportedFemales        int     `json:"imported_females"`
	ImportedFemalesOverdue int     `json:"imported_females_overdue_vaccination"`
	OverdueRatio           float64 `json:"overdue_ratio"`
	ConceptionRateGap      float64 `json:"conception_rate_gap"`
}

// Recommendation estimates the pregnancies recoverable by closing the gap.
type Recommendation struct {
	EstimatedRecoverablePregnancies float64 `json:"estimated_recoverable_pregnancies"`
}

// CorrelationSplit is one side of a health-history cross-tab.
type CorrelationSplit struct {
	TotalEvents    int     `json:"total_events"`
	Conceived      int     `json:"conceived"`
	ConceptionRate float64 `json:"conception_rate"`
}

// HealthCorrelation cross-tabs conception rate against the female's
// vaccination and treatment history.
type HealthCorrelation struct {
	WithVaccination    CorrelationSplit `json:"with_vaccination"`
	WithoutVaccination CorrelationSplit `json:"without_vaccination"`
	WithTreatment      CorrelationSplit `json:"with_treatment"`
	WithoutTreatment   CorrelationSplit `json:"without_treatment"`
}

// FinancialSummary rolls up health spend, mortality losses, and estimated
// calf revenue.
type FinancialSummary struct {
	VaccinationCost  float64 `json:"vaccination_cost"`
	TreatmentCost    float64 `json:"treatment_cost"`
	MortalityLoss    float64 `json:"mortality_loss"`
	TotalCost        float64 `json:"total_cost"`
	LiveBirths       int     `json:"live_births"`
	CalfValue        float64 `json:"calf_value"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
	ROIPercent       float64 `json:"roi_percent"`
}

// RecentRecords holds the most recent activity, most recent first.
type RecentRecords struct {
	Breeding     []domain.BreedingEvent `json:"breeding"`
	Vaccinations []domain.Vaccination   `json:"vaccinations"`
	Mortalities  []domain.Mortality     `json:"mortality"`
}

// DashboardSnapshot is the full read-only aggregate computed per request.
type DashboardSnapshot struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	KPIs             DashboardKPIs     `json:"kpis"`
	AnimalsBySpecies []SpeciesCount    `json:"animals_by_species"`
	BreedingBySource []CohortStats     `json:"breeding_by_source"`
	RootCause        RootCause         `json:"root_cause"`
	Recommendation   Recommendation    `json:"recommendation"`
	Correlation      HealthCorrelation `json:"health_correlation"`
	Financial        FinancialSummary  `json:"financial"`
	LatestHerdCount  *domain.HerdCount `json:"latest_herd_count"`
	Recent           RecentRecords     `json:"recent"`
}

// Aggregator computes dashboard snapshots over the live record set. It holds
// no state of its own.
type Aggregator struct {
	store     domain.PersistentStore
	logger    *zap.Logger
	calfValue float64
	todayFn   func() domain.Date
}

// NewAggregator constructs an aggregator. A non-positive calf value falls
// back to the default.
func NewAggregator(store domain.PersistentStore, logger *zap.Logger, calfValue float64) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calfValue <= 0 {
		calfValue = DefaultCalfValue
	}
	return &Aggregator{
		store:     store,
		logger:    logger,
		calfValue: calfValue,
		todayFn:   domain.Today,
	}
}

// SetTodayFunc overrides the reference date. Intended for tests.
func (a *Aggregator) SetTodayFunc(fn func() domain.Date) {
	if fn != nil {
		a.todayFn = fn
	}
}

// Snapshot computes the full dashboard aggregate from one consistent view of
// the store. All ratios are guarded; a zero denominator yields 0.
func (a *Aggregator) Snapshot(ctx context.Context) (DashboardSnapshot, error) {
	var snap DashboardSnapshot
	err := a.store.View(ctx, func(v domain.TransactionView) error {
		snap = a.build(v)
		return nil
	})
	if err != nil {
		return DashboardSnapshot{}, err
	}
	dashboardSnapshotsTotal.Inc()
	return snap, nil
}

func (a *Aggregator) build(v domain.TransactionView) DashboardSnapshot {
	today := a.todayFn()
	animals := v.ListAnimals()
	breeding := v.ListBreedingEvents()
	vaccinations := v.ListVaccinations()
	treatments := v.ListTreatments()
	mortalities := v.ListMortalities()
	herdCounts := v.ListHerdCounts()

	snap := DashboardSnapshot{
		GeneratedAt: time.Now().UTC(),
		KPIs:        buildKPIs(animals, vaccinations, mortalities, today),
	}
	snap.AnimalsBySpecies = buildSpeciesBreakdown(animals)
	snap.BreedingBySource = buildCohorts(animals, breeding, mortalities)
	snap.RootCause = buildRootCause(snap.BreedingBySource, animals, vaccinations, today)
	snap.Recommendation = buildRecommendation(snap.RootCause, snap.BreedingBySource)
	snap.Correlation = buildCorrelation(breeding, vaccinations, treatments)
	snap.Financial = a.buildFinancial(breeding, vaccinations, treatments, mortalities)

	if len(herdCounts) > 0 {
		latest := herdCounts[0]
		snap.LatestHerdCount = &latest
	}
	snap.Recent = RecentRecords{
		Breeding:     truncateList(breeding, recentLimit),
		Vaccinations: truncateList(vaccinations, recentLimit),
		Mortalities:  truncateList(mortalities, recentLimit),
	}
	return snap
}

func buildKPIs(animals []domain.Animal, vaccinations []domain.Vaccination, mortalities []domain.Mortality, today domain.Date) DashboardKPIs {
	kpis := DashboardKPIs{TotalAnimals: len(animals)}
	for _, a := range animals {
		if a.Status == domain.StatusActive {
			kpis.ActiveAnimals++
		}
	}
	for _, rec := range vaccinations {
		if rec.NextDueDate != nil && rec.NextDueDate.Before(today) {
			kpis.OverdueVaccinations++
		}
	}
	windowStart := today.AddDays(-30)
	for _, m := range mortalities {
		if !m.DeathDate.Before(windowStart) {
			kpis.RecentMortality30Days++
		}
	}
	return kpis
}

func buildSpeciesBreakdown(animals []domain.Animal) []SpeciesCount {
	counts := make(map[domain.Species]int)
	for _, a := range animals {
		counts[a.Species]++
	}
	out := make([]SpeciesCount, 0, len(counts))
	for species, total := range counts {
		out = append(out, SpeciesCount{Species: species, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Species < out[j].Species })
	return out
}

func buildCohorts(animals []domain.Animal, breeding []domain.BreedingEvent, mortalities []domain.Mortality) []CohortStats {
	sourceOf := make(map[string]domain.Source, len(animals))
	cohorts := make(map[domain.Source]*CohortStats)
	cohort := func(src domain.Source) *CohortStats {
		c, ok := cohorts[src]
		if !ok {
			c = &CohortStats{Source: src}
			cohorts[src] = c
		}
		return c
	}

	for _, a := range animals {
		sourceOf[a.TagNumber] = a.Source
		cohort(a.Source).Animals++
	}
	for _, b := range breeding {
		src, ok := sourceOf[b.FemaleTag]
		if !ok {
			continue
		}
		c := cohort(src)
		c.TotalEvents++
		if b.PregnancyConfirmed == domain.PregnancyConfirmed {
			c.Conceived++
		}
		if b.Outcome == domain.OutcomeStillbirth {
			c.Stillbirths++
		}
	}
	for _, m := range mortalities {
		if src, ok := sourceOf[m.AnimalTag]; ok {
			cohort(src).Mortalities++
		}
	}

	out := make([]CohortStats, 0, len(cohorts))
	for _, c := range cohorts {
		c.ConceptionRate = ratioPercent(c.Conceived, c.TotalEvents)
		c.StillbirthRate = ratioPercent(c.Stillbirths, c.TotalEvents)
		if c.Animals > 0 {
			c.CalfSurvivalRate = round2(100 - float64(c.Mortalities)/float64(c.Animals)*100)
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func buildRootCause(cohorts []CohortStats, animals []domain.Animal, vaccinations []domain.Vaccination, today domain.Date) RootCause {
	overdueTags := make(map[string]bool)
	for _, rec := range vaccinations {
		if rec.NextDueDate != nil && rec.NextDueDate.Before(today) {
			overdueTags[rec.AnimalTag] = true
		}
	}

	rc := RootCause{}
	for _, a := range animals {
		if a.Source != domain.SourceImported || a.Sex != domain.SexFemale {
			continue
		}
		rc.ImportedFemales++
		if overdueTags[a.TagNumber] {
			rc.ImportedFemalesOverdue++
		}
	}
	rc.OverdueRatio = ratioPercent(rc.ImportedFemalesOverdue, rc.ImportedFemales)

	var bornRate, importedRate float64
	for _, c := range cohorts {
		switch c.Source {
		case domain.SourceBorn:
			bornRate = c.ConceptionRate
		case domain.SourceImported:
			importedRate = c.ConceptionRate
		}
	}
	rc.ConceptionRateGap = round2(bornRate - importedRate)
	return rc
}

func buildRecommendation(rc RootCause, cohorts []CohortStats) Recommendation {
	var importedEvents int
	for _, c := range cohorts {
		if c.Source == domain.SourceImported {
			importedEvents = c.TotalEvents
		}
	}
	return Recommendation{
		EstimatedRecoverablePregnancies: round1(rc.ConceptionRateGap / 100 * float64(importedEvents)),
	}
}

func buildCorrelation(breeding []domain.BreedingEvent, vaccinations []domain.Vaccination, treatments []domain.Treatment) HealthCorrelation {
	vaccinated := make(map[string]bool)
	for _, rec := range vaccinations {
		vaccinated[rec.AnimalTag] = true
	}
	treated := make(map[string]bool)
	for _, rec := range treatments {
		treated[rec.AnimalTag] = true
	}

	split := func(has func(domain.BreedingEvent) bool) (with, without CorrelationSplit) {
		for _, b := range breeding {
			target := &without
			if has(b) {
				target = &with
			}
			target.TotalEvents++
			if b.PregnancyConfirmed == domain.PregnancyConfirmed {
				target.Conceived++
			}
		}
		with.ConceptionRate = ratioPercent(with.Conceived, with.TotalEvents)
		without.ConceptionRate = ratioPercent(without.Conceived, without.TotalEvents)
		return with, without
	}

	var corr HealthCorrelation
	corr.WithVaccination, corr.WithoutVaccination = split(func(b domain.BreedingEvent) bool { return vaccinated[b.FemaleTag] })
	corr.WithTreatment, corr.WithoutTreatment = split(func(b domain.BreedingEvent) bool { return treated[b.FemaleTag] })
	return corr
}

func (a *Aggregator) buildFinancial(breeding []domain.BreedingEvent, vaccinations []domain.Vaccination, treatments []domain.Treatment, mortalities []domain.Mortality) FinancialSummary {
	fin := FinancialSummary{CalfValue: a.calfValue}
	for _, rec := range vaccinations {
		if rec.Cost != nil {
			fin.VaccinationCost += *rec.Cost
		}
	}
	for _, rec := range treatments {
		if rec.Cost != nil {
			fin.TreatmentCost += *rec.Cost
		}
	}
	for _, m := range mortalities {
		if m.EstimatedValue != nil {
			fin.MortalityLoss += *m.EstimatedValue
		}
	}
	for _, b := range breeding {
		if b.Outcome == domain.OutcomeLiveBirth {
			fin.LiveBirths++
		}
	}
	fin.TotalCost = fin.VaccinationCost + fin.TreatmentCost + fin.MortalityLoss
	fin.EstimatedRevenue = float64(fin.LiveBirths) * fin.CalfValue
	if fin.TotalCost > 0 {
		fin.ROIPercent = round2((fin.EstimatedRevenue - fin.TotalCost) / fin.TotalCost * 100)
	}
	return fin
}

// ratioPercent returns num/den as a percentage rounded to two decimals, or 0
// for a zero denominator.
func ratioPercent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round2(float64(num) / float64(den) * 100)
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func truncateList[T any](list []T, limit int) []T {
	if len(list) <= limit {
		return list
	}
	return list[:limit]
}
