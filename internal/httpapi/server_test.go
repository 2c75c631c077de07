package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"ranchcore/internal/blob"
	"ranchcore/internal/core"
	"ranchcore/internal/infra/persistence/memory"
	"ranchcore/pkg/domain"
)

const testToken = "device-token-1"

func setupServer(t *testing.T) (*Server, *core.Service, domain.Ranch) {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, zap.NewNop())

	user, _, err := svc.CreateUser(context.Background(), domain.User{
		Username: "ydoma",
		Role:     domain.RoleManager,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ranch, _, err := svc.CreateRanch(context.Background(), domain.Ranch{Name: "North Ranch", Location: "Kano", OwnerID: user.ID})
	if err != nil {
		t.Fatalf("create ranch: %v", err)
	}

	srv := NewServer(
		svc,
		core.NewReconciler(store, zap.NewNop()),
		core.NewAggregator(store, zap.NewNop(), 320),
		blob.NewMemory(),
		map[string]string{testToken: "ydoma"},
		zap.NewNop(),
	)
	return srv, svc, ranch
}

func doRequest(t *testing.T, h http.Handler, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthIsUnauthenticated(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := doRequest(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
}

func TestAuthRejectsMissingAndUnknownTokens(t *testing.T) {
	srv, _, _ := setupServer(t)
	h := srv.Handler()

	if w := doRequest(t, h, http.MethodGet, "/api/animals/", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/api/animals/", "bogus", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token status = %d, want 401", w.Code)
	}
}

func TestAnimalLifecycle(t *testing.T) {
	srv, _, ranch := setupServer(t)
	h := srv.Handler()

	payload := fmt.Sprintf(`{"tag_number":"C-001","ranch":%q,"species":"cattle","sex":"female","source":"born"}`, ranch.ID)
	w := doRequest(t, h, http.MethodPost, "/api/animals/", testToken, strings.NewReader(payload))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(t, h, http.MethodGet, "/api/animals/C-001", testToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var animal domain.Animal
	if err := json.Unmarshal(w.Body.Bytes(), &animal); err != nil {
		t.Fatalf("decode animal: %v", err)
	}
	if animal.Status != domain.StatusActive {
		t.Fatalf("status = %q, want active", animal.Status)
	}

	w = doRequest(t, h, http.MethodPut, "/api/animals/C-001", testToken, strings.NewReader(`{"breed":"Sokoto Gudali"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &animal); err != nil {
		t.Fatalf("decode updated animal: %v", err)
	}
	if animal.Breed != "Sokoto Gudali" {
		t.Fatalf("breed = %q after update", animal.Breed)
	}

	w = doRequest(t, h, http.MethodDelete, "/api/animals/C-001", testToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/api/animals/C-001", testToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestCreateAnimalValidationFailure(t *testing.T) {
	srv, _, ranch := setupServer(t)
	payload := fmt.Sprintf(`{"tag_number":"C-002","ranch":%q,"sex":"female","source":"born"}`, ranch.ID)
	w := doRequest(t, srv.Handler(), http.MethodPost, "/api/animals/", testToken, strings.NewReader(payload))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "species") {
		t.Fatalf("error body %q does not name the missing field", w.Body.String())
	}
}

func TestSyncEndpointUsesAuthenticatedActor(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	h := srv.Handler()

	body := fmt.Sprintf(`{
		"device_id": "tablet-7",
		"user": {"id": "spoofed", "username": "spoofed"},
		"operations": [
			{"operation": "create", "table_name": "animals",
			 "record_data": {"tag_number":"S-001","ranch":%q,"species":"goat","sex":"male","source":"purchased"}},
			{"operation": "create", "table_name": "unknown_table", "record_data": {}}
		]
	}`, ranch.ID)

	w := doRequest(t, h, http.MethodPost, "/api/sync", testToken, strings.NewReader(body))
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body %s", w.Code, w.Body.String())
	}
	var summary core.SyncSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Synced != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 synced 1 failed", summary)
	}
	if _, ok := svc.GetAnimal("S-001"); !ok {
		t.Fatalf("synced animal not persisted")
	}

	entries := svc.ListSyncEntries()
	if len(entries) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.UserID == "" || e.UserID == "spoofed" {
			t.Fatalf("ledger user = %q, actor from body was not replaced", e.UserID)
		}
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/analytics/dashboard", testToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", w.Code)
	}
	var snap core.DashboardSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.KPIs.TotalAnimals != 0 {
		t.Fatalf("total animals = %d on empty herd", snap.KPIs.TotalAnimals)
	}
}

func TestPhotoUploadAndDownload(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	h := srv.Handler()

	_, _, err := svc.CreateAnimal(context.Background(), domain.Animal{
		TagNumber: "P-001", RanchID: ranch.ID,
		Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn,
	})
	if err != nil {
		t.Fatalf("seed animal: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "front.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("jpeg-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/animals/P-001/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}

	animal, _ := svc.GetAnimal("P-001")
	if animal.PhotoKey == nil || *animal.PhotoKey != "animals/P-001/front.jpg" {
		t.Fatalf("photo key = %v", animal.PhotoKey)
	}

	w = doRequest(t, h, http.MethodGet, "/api/animals/P-001/photo/front.jpg", testToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Fatalf("downloaded body = %q", w.Body.String())
	}

	w = doRequest(t, h, http.MethodGet, "/api/animals/P-001/photo/missing.jpg", testToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing photo status = %d, want 404", w.Code)
	}
}

func TestUploadPhotoUnknownAnimal(t *testing.T) {
	srv, _, _ := setupServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("photo", "x.jpg")
	part.Write([]byte("x"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/animals/NOPE/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func seedFilterFixture(t *testing.T, svc *core.Service, ranch domain.Ranch) {
	t.Helper()
	ctx := context.Background()

	animals := []domain.Animal{
		{TagNumber: "F-C1", Species: domain.SpeciesCattle, Sex: domain.SexFemale, Source: domain.SourceBorn},
		{TagNumber: "F-C2", Species: domain.SpeciesCattle, Sex: domain.SexMale, Source: domain.SourceImported},
		{TagNumber: "F-G1", Species: domain.SpeciesGoat, Sex: domain.SexFemale, Source: domain.SourceBorn},
	}
	for _, a := range animals {
		a.RanchID = ranch.ID
		if _, _, err := svc.CreateAnimal(ctx, a); err != nil {
			t.Fatalf("seed animal %s: %v", a.TagNumber, err)
		}
	}
	if _, _, err := svc.UpdateAnimal(ctx, "F-C2", func(a *domain.Animal) error {
		a.Status = domain.StatusSold
		return nil
	}); err != nil {
		t.Fatalf("mark sold: %v", err)
	}

	for _, v := range []domain.Vaccination{
		{AnimalTag: "F-C1", VaccineType: "FMD", DateAdministered: domain.NewDate(2025, time.May, 1)},
		{AnimalTag: "F-G1", VaccineType: "PPR", DateAdministered: domain.NewDate(2025, time.May, 2)},
	} {
		if _, _, err := svc.CreateVaccination(ctx, v); err != nil {
			t.Fatalf("seed vaccination: %v", err)
		}
	}
	for _, e := range []domain.BreedingEvent{
		{FemaleTag: "F-C1", ServiceDate: domain.NewDate(2025, time.April, 1), Method: domain.MethodNatural, PregnancyConfirmed: domain.PregnancyConfirmed},
		{FemaleTag: "F-G1", ServiceDate: domain.NewDate(2025, time.April, 2), Method: domain.MethodNatural, PregnancyConfirmed: domain.PregnancyNegative},
	} {
		if _, _, err := svc.CreateBreedingEvent(ctx, e); err != nil {
			t.Fatalf("seed breeding event: %v", err)
		}
	}
	if _, _, err := svc.CreateTreatment(ctx, domain.Treatment{
		AnimalTag: "F-C1", TreatmentDate: domain.NewDate(2025, time.June, 1), Diagnosis: "Mastitis",
	}); err != nil {
		t.Fatalf("seed treatment: %v", err)
	}
	if _, _, err := svc.CreateMortality(ctx, domain.Mortality{
		AnimalTag: "F-G1", DeathDate: domain.NewDate(2025, time.June, 10),
	}); err != nil {
		t.Fatalf("seed mortality: %v", err)
	}
	for _, c := range []domain.HerdCount{
		{RanchID: ranch.ID, CountDate: domain.NewDate(2025, time.June, 20), Species: domain.SpeciesCattle, ExpectedCount: 3, ActualCount: 3},
		{RanchID: ranch.ID, CountDate: domain.NewDate(2025, time.June, 21), Species: domain.SpeciesGoat, ExpectedCount: 1, ActualCount: 1},
	} {
		if _, _, err := svc.CreateHerdCount(ctx, c); err != nil {
			t.Fatalf("seed herd count: %v", err)
		}
	}
	tagC1, tagG1 := "F-C1", "F-G1"
	for _, m := range []domain.MovementLog{
		{AnimalTag: &tagC1, ToZone: "Zone B", MovementDate: domain.NewDate(2025, time.June, 22)},
		{AnimalTag: &tagG1, ToZone: "Zone C", MovementDate: domain.NewDate(2025, time.June, 23)},
	} {
		if _, _, err := svc.CreateMovementLog(ctx, m); err != nil {
			t.Fatalf("seed movement: %v", err)
		}
	}
	for _, l := range []domain.RFIDScanLog{
		{RFIDCode: "RF-01", GateID: "gate-north", ScanTimestamp: time.Date(2025, time.June, 24, 7, 0, 0, 0, time.UTC)},
		{RFIDCode: "RF-02", GateID: "gate-south", ScanTimestamp: time.Date(2025, time.June, 24, 8, 0, 0, 0, time.UTC)},
	} {
		if _, _, err := svc.CreateRFIDScanLog(ctx, l); err != nil {
			t.Fatalf("seed rfid scan: %v", err)
		}
	}
}

func listLen(t *testing.T, h http.Handler, target string) int {
	t.Helper()
	w := doRequest(t, h, http.MethodGet, target, testToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d, body %s", target, w.Code, w.Body.String())
	}
	var items []json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode %s: %v", target, err)
	}
	return len(items)
}

func TestListAnimalsFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/animals/?species=goat"); got != 1 {
		t.Fatalf("species=goat returned %d animals, want 1", got)
	}
	if got := listLen(t, h, "/api/animals/?status=sold"); got != 1 {
		t.Fatalf("status=sold returned %d animals, want 1", got)
	}
	if got := listLen(t, h, "/api/animals/?ranch="+ranch.ID); got != 3 {
		t.Fatalf("ranch filter returned %d animals, want 3", got)
	}
	if got := listLen(t, h, "/api/animals/?species=cattle&status=active"); got != 1 {
		t.Fatalf("combined filter returned %d animals, want 1", got)
	}
	if got := listLen(t, h, "/api/animals/?species=camel"); got != 0 {
		t.Fatalf("unmatched filter returned %d animals, want 0", got)
	}
}

func TestListBreedingEventsFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/breeding-events/?female_tag=F-C1"); got != 1 {
		t.Fatalf("female_tag filter returned %d events, want 1", got)
	}
	if got := listLen(t, h, "/api/breeding-events/?pregnancy_confirmed=no"); got != 1 {
		t.Fatalf("pregnancy_confirmed filter returned %d events, want 1", got)
	}
}

func TestListVaccinationsFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/vaccinations?animal_tag=F-C1"); got != 1 {
		t.Fatalf("animal_tag filter returned %d records, want 1", got)
	}
	if got := listLen(t, h, "/api/vaccinations?vaccine_type=PPR"); got != 1 {
		t.Fatalf("vaccine_type filter returned %d records, want 1", got)
	}
}

func TestListTreatmentsAndMortalityFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/treatments?animal_tag=F-C1"); got != 1 {
		t.Fatalf("treatment filter returned %d records, want 1", got)
	}
	if got := listLen(t, h, "/api/treatments?animal_tag=F-G1"); got != 0 {
		t.Fatalf("treatment filter returned %d records, want 0", got)
	}
	if got := listLen(t, h, "/api/mortality?animal_tag=F-G1"); got != 1 {
		t.Fatalf("mortality filter returned %d records, want 1", got)
	}
}

func TestListHerdCountsFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/herd-counts?species=goat"); got != 1 {
		t.Fatalf("species filter returned %d counts, want 1", got)
	}
	if got := listLen(t, h, "/api/herd-counts?ranch="+ranch.ID+"&count_date=2025-06-20"); got != 1 {
		t.Fatalf("ranch+count_date filter returned %d counts, want 1", got)
	}
}

func TestListMovementsFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/movements?animal_tag=F-G1"); got != 1 {
		t.Fatalf("animal_tag filter returned %d movements, want 1", got)
	}
	if got := listLen(t, h, "/api/movements?movement_date=2025-06-22"); got != 1 {
		t.Fatalf("movement_date filter returned %d movements, want 1", got)
	}
}

func TestListRFIDScansFilters(t *testing.T) {
	srv, svc, ranch := setupServer(t)
	seedFilterFixture(t, svc, ranch)
	h := srv.Handler()

	if got := listLen(t, h, "/api/rfid-scans?gate_id=gate-north"); got != 1 {
		t.Fatalf("gate_id filter returned %d scans, want 1", got)
	}
	if got := listLen(t, h, "/api/rfid-scans?rfid_code=RF-02"); got != 1 {
		t.Fatalf("rfid_code filter returned %d scans, want 1", got)
	}
}
