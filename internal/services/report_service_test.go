package services

import (
	"context"
	"errors"
	"testing"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

// fakeDB scopes lookups by user the way the real store's WHERE clauses do,
// and records the tenant id of every read.
type fakeDB struct {
	samples    []models.ParameterSample
	reports    []models.LabReport
	gotUserIDs []string
}

func (f *fakeDB) SaveLabReport(context.Context, *models.LabReport) error { return nil }

func (f *fakeDB) GetLabReport(_ context.Context, userID, reportID string) (*models.LabReport, error) {
	f.gotUserIDs = append(f.gotUserIDs, userID)
	for i := range f.reports {
		if f.reports[i].ID == reportID && f.reports[i].UserID == userID {
			return &f.reports[i], nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeDB) ListLabReports(_ context.Context, userID string) ([]models.LabReport, error) {
	f.gotUserIDs = append(f.gotUserIDs, userID)
	var out []models.LabReport
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDB) ListParametersByUser(_ context.Context, userID string) ([]models.ParameterSample, error) {
	f.gotUserIDs = append(f.gotUserIDs, userID)
	return f.samples, nil
}

func (f *fakeDB) Close() error { return nil }

type fakeVectors struct {
	gotUserID   string
	gotDocTypes []string
	matches     []models.VectorMatch
}

func (f *fakeVectors) UpsertPrivate(context.Context, []models.VectorRecord) error { return nil }

func (f *fakeVectors) QueryPrivate(_ context.Context, userID string, docTypes []string, _ []float32, _ int) ([]models.VectorMatch, error) {
	f.gotUserID = userID
	f.gotDocTypes = docTypes
	return f.matches, nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.5}
	}
	return out, nil
}

func TestGetCrossTenantBehavesAsNotFound(t *testing.T) {
	db := &fakeDB{reports: []models.LabReport{{ID: "r1", UserID: "alice"}}}
	svc := NewReportService(db, &fakeVectors{}, &fakeEmbedder{})

	report, err := svc.Get(context.Background(), "alice", "r1")
	if err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if report.ID != "r1" {
		t.Fatalf("owner got report %q", report.ID)
	}

	// Someone else's report is indistinguishable from a missing one.
	if _, err := svc.Get(context.Background(), "bob", "r1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-tenant lookup: want ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "alice", "r2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing report: want ErrNotFound, got %v", err)
	}
}

func TestReadsCarryCallerTenant(t *testing.T) {
	db := &fakeDB{}
	svc := NewReportService(db, &fakeVectors{}, &fakeEmbedder{})

	_, _ = svc.Get(context.Background(), "u1", "r9")
	_, _ = svc.List(context.Background(), "u1")
	_, _ = svc.Timeseries(context.Background(), "u1")

	if len(db.gotUserIDs) != 3 {
		t.Fatalf("store saw %d reads, want 3", len(db.gotUserIDs))
	}
	for i, id := range db.gotUserIDs {
		if id != "u1" {
			t.Fatalf("read %d ran for user %q, want u1", i, id)
		}
	}
}

func TestListScopesToTenant(t *testing.T) {
	db := &fakeDB{reports: []models.LabReport{
		{ID: "r1", UserID: "alice"},
		{ID: "r2", UserID: "bob"},
		{ID: "r3", UserID: "alice"},
	}}
	svc := NewReportService(db, &fakeVectors{}, &fakeEmbedder{})

	reports, err := svc.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2: %+v", len(reports), reports)
	}
	for _, r := range reports {
		if r.UserID != "alice" {
			t.Fatalf("foreign report leaked into listing: %+v", r)
		}
	}
}

func TestSearchScopesToTenant(t *testing.T) {
	vectors := &fakeVectors{matches: []models.VectorMatch{{ID: "chunk_abc", Score: 0.92}}}
	svc := NewReportService(&fakeDB{}, vectors, &fakeEmbedder{})

	matches, err := svc.Search(context.Background(), "u1", "hemoglobin trend", []string{"lab_report"}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches", len(matches))
	}
	if vectors.gotUserID != "u1" {
		t.Fatalf("query ran for user %q, want u1", vectors.gotUserID)
	}
	if len(vectors.gotDocTypes) != 1 || vectors.gotDocTypes[0] != "lab_report" {
		t.Fatalf("doc type filter not passed: %v", vectors.gotDocTypes)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{}
	svc := NewReportService(&fakeDB{}, &fakeVectors{}, emb)

	_, err := svc.Search(context.Background(), "u1", "", nil, 5)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if emb.calls != 0 {
		t.Fatal("empty query must not reach the embedder")
	}
}

func TestSearchEmbeddingFailure(t *testing.T) {
	svc := NewReportService(&fakeDB{}, &fakeVectors{}, &fakeEmbedder{err: errors.New("quota")})

	if _, err := svc.Search(context.Background(), "u1", "glucose", nil, 5); err == nil {
		t.Fatal("expected error when query embedding fails")
	}
}

func TestTimeseriesSkipsQualitativeValues(t *testing.T) {
	d1, d2 := "2024-01-10", "2024-03-15"
	db := &fakeDB{samples: []models.ParameterSample{
		{ReportID: "r1", Date: &d1, Name: "Glucose", Value: "98", Unit: "mg/dL"},
		{ReportID: "r1", Date: &d1, Name: "Ketones", Value: "Trace"},
		{ReportID: "r2", Date: &d2, Name: "Glucose", Value: "101 H", Unit: "mg/dL"},
		{ReportID: "r2", Date: nil, Name: "Occult Blood", Value: "Negative"},
	}}
	svc := NewReportService(db, &fakeVectors{}, &fakeEmbedder{})

	series, err := svc.Timeseries(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Timeseries: %v", err)
	}

	glucose := series["Glucose"]
	if len(glucose) != 2 {
		t.Fatalf("got %d glucose points, want 2: %+v", len(glucose), glucose)
	}
	if glucose[0].Value != 98 || glucose[1].Value != 101 {
		t.Fatalf("values wrong: %+v", glucose)
	}
	if glucose[0].Date == nil || *glucose[0].Date != d1 {
		t.Fatalf("date not carried: %+v", glucose[0])
	}
	if _, ok := series["Ketones"]; ok {
		t.Fatal("qualitative parameter must be skipped")
	}
	if _, ok := series["Occult Blood"]; ok {
		t.Fatal("qualitative parameter must be skipped")
	}
}
