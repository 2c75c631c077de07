// Package domain defines the persistent entities, value types, derivation
// helpers, and rule evaluation primitives used by ranchcore.
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAnimal identifies an individual animal record keyed by tag number.
	EntityAnimal EntityType = "animal"
	// EntityBreedingEvent identifies a breeding/service record.
	EntityBreedingEvent EntityType = "breeding_event"
	// EntityVaccination identifies a vaccination record.
	EntityVaccination EntityType = "vaccination"
	// EntityTreatment identifies a health treatment record.
	EntityTreatment EntityType = "treatment"
	// EntityMortality identifies a mortality record.
	EntityMortality EntityType = "mortality"
	// EntityHerdCount identifies a physical herd count record.
	EntityHerdCount EntityType = "herd_count"
	// EntityMovementLog identifies an animal movement record.
	EntityMovementLog EntityType = "movement_log"
	// EntityRFIDScanLog identifies a gate RFID scan record.
	EntityRFIDScanLog EntityType = "rfid_scan_log"
	// EntityRanch identifies a ranch scope record.
	EntityRanch EntityType = "ranch"
	// EntityUser identifies an application user record.
	EntityUser EntityType = "user"
	// EntityStaff identifies a ranch staff record.
	EntityStaff EntityType = "staff"
	// EntitySyncEntry identifies an offline-sync ledger entry.
	EntitySyncEntry EntityType = "sync_entry"
	// EntitySystemMetric identifies a persisted analytics metric snapshot.
	EntitySystemMetric EntityType = "system_metric"
)

// Species enumerates the livestock species managed by the system.
type Species string

// Supported species. Gestation projection falls back to cattle for anything else.
const (
	SpeciesCattle Species = "cattle"
	SpeciesGoat   Species = "goat"
	SpeciesSheep  Species = "sheep"
)

// Sex of an animal.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Source records how an animal entered the herd.
type Source string

const (
	SourceBorn      Source = "born"
	SourcePurchased Source = "purchased"
	SourceImported  Source = "imported"
)

// AnimalStatus is the lifecycle status of an animal.
type AnimalStatus string

// Canonical animal statuses. StatusDead is only reachable through a
// Mortality write; the mortality_status rule blocks direct transitions.
const (
	StatusActive  AnimalStatus = "active"
	StatusSold    AnimalStatus = "sold"
	StatusDead    AnimalStatus = "dead"
	StatusMissing AnimalStatus = "missing"
)

// BreedingMethod enumerates service methods.
type BreedingMethod string

const (
	MethodNatural                BreedingMethod = "natural"
	MethodArtificialInsemination BreedingMethod = "artificial_insemination"
)

// PregnancyStatus tracks pregnancy confirmation progress.
type PregnancyStatus string

const (
	PregnancyPending   PregnancyStatus = "pending"
	PregnancyConfirmed PregnancyStatus = "yes"
	PregnancyNegative  PregnancyStatus = "no"
)

// BreedingOutcome is the final recorded outcome of a breeding event.
type BreedingOutcome string

const (
	OutcomeLiveBirth        BreedingOutcome = "live_birth"
	OutcomeStillbirth       BreedingOutcome = "stillbirth"
	OutcomeAbortion         BreedingOutcome = "abortion"
	OutcomeFailedConception BreedingOutcome = "failed_conception"
)

// UserRole enumerates application user roles.
type UserRole string

const (
	RoleManager  UserRole = "manager"
	RoleVet      UserRole = "vet"
	RoleHerdsman UserRole = "herdsman"
	RoleAdmin    UserRole = "admin"
)

// StaffRole enumerates ranch staff roles.
type StaffRole string

const (
	StaffHerdsman   StaffRole = "herdsman"
	StaffVet        StaffRole = "vet"
	StaffSupervisor StaffRole = "supervisor"
)

// gestationDays maps species to expected gestation length in days.
var gestationDays = map[Species]int{
	SpeciesCattle: 283,
	SpeciesGoat:   150,
	SpeciesSheep:  147,
}

// defaultGestationDays applies to unrecognised species.
const defaultGestationDays = 283

// GestationDays returns the expected gestation length for a species.
func GestationDays(s Species) int {
	if d, ok := gestationDays[s]; ok {
		return d
	}
	return defaultGestationDays
}

// Animal represents an individual animal, keyed by the ranch's tag number.
// Dam and sire are weak self references resolved by lookup, never traversed
// for ownership.
type Animal struct {
	TagNumber     string       `json:"tag_number" validate:"required"`
	RFIDCode      *string      `json:"rfid_code"`
	QRCode        *string      `json:"qr_code"`
	RanchID       string       `json:"ranch" validate:"required"`
	Species       Species      `json:"species" validate:"required,oneof=cattle goat sheep"`
	Breed         string       `json:"breed"`
	Sex           Sex          `json:"sex" validate:"required,oneof=male female"`
	DateOfBirth   *Date        `json:"date_of_birth"`
	Source        Source       `json:"source" validate:"required,oneof=born purchased imported"`
	DamTag        *string      `json:"dam_tag"`
	SireTag       *string      `json:"sire_tag"`
	Status        AnimalStatus `json:"status" validate:"omitempty,oneof=active sold dead missing"`
	PhotoKey      *string      `json:"photo_key"`
	PurchasePrice *float64     `json:"purchase_price"`
	PurchaseDate  *Date        `json:"purchase_date"`
	Notes         string       `json:"notes"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// AgeMonths returns the animal's age in whole months as of the given date,
// or nil when the birth date is unknown.
func (a Animal) AgeMonths(asOf Date) *int {
	if a.DateOfBirth == nil {
		return nil
	}
	months := MonthsBetween(*a.DateOfBirth, asOf)
	return &months
}

// BreedingEvent records one service of a female and its pregnancy tracking.
type BreedingEvent struct {
	ID                   string          `json:"id"`
	FemaleTag            string          `json:"female_tag" validate:"required"`
	MaleTag              *string         `json:"male_tag"`
	SemenBatchID         string          `json:"semen_batch_id"`
	HeatDetectedDate     *Date           `json:"heat_detected_date"`
	ServiceDate          Date            `json:"service_date" validate:"required"`
	Method               BreedingMethod  `json:"method" validate:"required,oneof=natural artificial_insemination"`
	PregnancyConfirmed   PregnancyStatus `json:"pregnancy_confirmed" validate:"omitempty,oneof=pending yes no"`
	PregnancyCheckDate   *Date           `json:"pregnancy_check_date"`
	ExpectedDeliveryDate *Date           `json:"expected_delivery_date"`
	ActualDeliveryDate   *Date           `json:"actual_delivery_date"`
	Outcome              BreedingOutcome `json:"outcome" validate:"omitempty,oneof=live_birth stillbirth abortion failed_conception"`
	NumberOfOffspring    int             `json:"number_of_offspring"`
	OffspringTags        string          `json:"offspring_tags"`
	Notes                string          `json:"notes"`
	RecordedBy           *string         `json:"recorded_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Vaccination records one administered vaccine dose.
type Vaccination struct {
	ID               string    `json:"id"`
	AnimalTag        string    `json:"animal_tag" validate:"required"`
	VaccineType      string    `json:"vaccine_type" validate:"required"`
	DiseaseTargeted  string    `json:"disease_targeted"`
	DateAdministered Date      `json:"date_administered" validate:"required"`
	AdministeredBy   *string   `json:"administered_by"`
	NextDueDate      *Date     `json:"next_due_date"`
	BatchNumber      string    `json:"batch_number"`
	Location         string    `json:"location"`
	Cost             *float64  `json:"cost"`
	Notes            string    `json:"notes"`
	RecordedBy       *string   `json:"recorded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Treatment records a health intervention.
type Treatment struct {
	ID               string    `json:"id"`
	AnimalTag        string    `json:"animal_tag" validate:"required"`
	Diagnosis        string    `json:"diagnosis"`
	Symptoms         string    `json:"symptoms"`
	MedicationGiven  string    `json:"medication_given"`
	Dosage           string    `json:"dosage"`
	TreatmentDate    Date      `json:"treatment_date" validate:"required"`
	TreatedBy        *string   `json:"treated_by"`
	FollowUpRequired bool      `json:"follow_up_required"`
	FollowUpDate     *Date     `json:"follow_up_date"`
	Cost             *float64  `json:"cost"`
	Notes            string    `json:"notes"`
	RecordedBy       *string   `json:"recorded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Mortality records an animal death. Creating one flips the referenced
// animal's status to dead within the same transaction.
type Mortality struct {
	ID               string    `json:"id"`
	AnimalTag        string    `json:"animal_tag" validate:"required"`
	DeathDate        Date      `json:"death_date" validate:"required"`
	AgeAtDeathMonths *int      `json:"age_at_death_months"`
	Cause            string    `json:"cause"`
	VetConfirmed     bool      `json:"vet_confirmed"`
	CarcassDisposed  bool      `json:"carcass_disposed"`
	EstimatedValue   *float64  `json:"estimated_value"`
	Notes            string    `json:"notes"`
	RecordedBy       *string   `json:"recorded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// HerdCount records a physical count against the expected herd size.
// Difference is derived on every save and never independently settable.
type HerdCount struct {
	ID            string    `json:"id"`
	RanchID       string    `json:"ranch" validate:"required"`
	CountDate     Date      `json:"count_date" validate:"required"`
	Species       Species   `json:"species" validate:"required"`
	ExpectedCount int       `json:"expected_count"`
	ActualCount   int       `json:"actual_count"`
	Difference    int       `json:"difference"`
	GrazingZone   string    `json:"grazing_zone"`
	Notes         string    `json:"notes"`
	CountedBy     *string   `json:"counted_by"`
	RecordedBy    *string   `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// MovementLog records an animal or group relocation between grazing zones.
type MovementLog struct {
	ID           string    `json:"id"`
	AnimalTag    *string   `json:"animal_tag"`
	GroupName    string    `json:"group_name"`
	FromZone     string    `json:"from_zone"`
	ToZone       string    `json:"to_zone" validate:"required"`
	MovementDate Date      `json:"movement_date" validate:"required"`
	Reason       string    `json:"reason"`
	MovedBy      *string   `json:"moved_by"`
	RecordedBy   *string   `json:"recorded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// RFIDScanLog records a gate antenna read.
type RFIDScanLog struct {
	ID             string    `json:"id"`
	RFIDCode       string    `json:"rfid_code" validate:"required"`
	AnimalTag      *string   `json:"animal_tag"`
	GateID         string    `json:"gate_id"`
	ScanTimestamp  time.Time `json:"scan_timestamp" validate:"required"`
	Direction      string    `json:"direction"`
	SignalStrength *int      `json:"signal_strength"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ranch is the top-level scope owning animals, herd counts, and staff.
type Ranch struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required"`
	Location     string    `json:"location"`
	SizeHectares *float64  `json:"size_hectares"`
	OwnerID      string    `json:"owner" validate:"required"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// User is an application account that records entries.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username" validate:"required"`
	Role        UserRole  `json:"role" validate:"omitempty,oneof=manager vet herdsman admin"`
	PhoneNumber string    `json:"phone_number"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Staff is a ranch worker who performs vaccinations, counts, and movements.
type Staff struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user"`
	RanchID     string    `json:"ranch" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Role        StaffRole `json:"role" validate:"omitempty,oneof=herdsman vet supervisor"`
	PhoneNumber string    `json:"phone_number"`
	Active      bool      `json:"is_active"`
	HireDate    *Date     `json:"hire_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncEntry is the immutable ledger row written for every incoming sync
// operation. Synced, SyncedAt, and ErrorMessage are set exactly once when
// the operation is processed.
type SyncEntry struct {
	ID           string          `json:"id"`
	DeviceID     string          `json:"device_id"`
	UserID       string          `json:"user"`
	Operation    Action          `json:"operation"`
	TableName    string          `json:"table_name"`
	RecordData   json.RawMessage `json:"record_data"`
	Timestamp    time.Time       `json:"timestamp"`
	Synced       bool            `json:"synced"`
	SyncedAt     *time.Time      `json:"synced_at"`
	ErrorMessage string          `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SystemMetric is a persisted analytics snapshot value.
type SystemMetric struct {
	ID              string          `json:"id"`
	RanchID         string          `json:"ranch"`
	MetricType      string          `json:"metric_type"`
	MetricValue     float64         `json:"metric_value"`
	CalculationDate Date            `json:"calculation_date"`
	Metadata        json.RawMessage `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UserRef identifies the acting user for a sync batch.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in the ledger
// and the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msg := "transaction blocked by rules"
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msg += ": " + v.Message
		}
	}
	return msg
}
