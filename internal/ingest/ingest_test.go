package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/task"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Discussion{}, &models.TaskSlot{}, &models.Annotation{}, &models.Consensus{}, &models.Flag{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestFromJSONL(t *testing.T) {
	input := `{"id":"d1","title":"How do I configure retries?","repository":"acme/widget","batch_id":"b1"}

{"id":"d2","title":"Why does startup hang?","url":"https://github.com/acme/widget/discussions/2"}
`
	records, err := FromJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "d1" || records[0].Repository != "acme/widget" || records[0].BatchID != "b1" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].URL != "https://github.com/acme/widget/discussions/2" {
		t.Errorf("records[1] = %+v", records[1])
	}
}

func TestFromJSONL_Malformed(t *testing.T) {
	_, err := FromJSONL(strings.NewReader(`{"id":"d1"}` + "\n" + `{broken`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

type fakeEnricher struct {
	meta  Meta
	err   error
	calls []string
}

func (f *fakeEnricher) Enrich(ctx context.Context, repository string) (Meta, error) {
	f.calls = append(f.calls, repository)
	return f.meta, f.err
}

func TestIngest(t *testing.T) {
	db := testDB(t)
	enricher := &fakeEnricher{meta: Meta{Language: "Go", Release: "v1.4.2"}}

	records := []Record{
		{ID: "d1", Title: "How do I configure retries?", Repository: "acme/widget"},
		{ID: "d2", Title: "Why does startup hang?"},
	}
	result, err := Ingest(context.Background(), db, records, enricher)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 2 || result.Skipped != 0 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(enricher.calls) != 1 || enricher.calls[0] != "acme/widget" {
		t.Errorf("enricher calls = %v, records without a repository must be skipped", enricher.calls)
	}

	disc, err := task.GetDiscussion(db, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if disc.Language != "Go" || disc.Release != "v1.4.2" {
		t.Errorf("metadata not applied: %+v", disc)
	}
	if len(disc.Tasks) != task.TaskCount {
		t.Errorf("got %d task slots", len(disc.Tasks))
	}
}

func TestIngest_SkipsExisting(t *testing.T) {
	db := testDB(t)
	records := []Record{{ID: "d1", Title: "first"}}
	if _, err := Ingest(context.Background(), db, records, nil); err != nil {
		t.Fatal(err)
	}

	result, err := Ingest(context.Background(), db, records, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 0 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestIngest_EnrichFailureNonFatal(t *testing.T) {
	db := testDB(t)
	enricher := &fakeEnricher{err: errors.New("rate limited")}
	records := []Record{{ID: "d1", Title: "t", Repository: "acme/widget"}}

	result, err := Ingest(context.Background(), db, records, enricher)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 || len(result.Errors) != 0 {
		t.Errorf("result = %+v", result)
	}
	disc, err := task.GetDiscussion(db, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if disc.Language != "" {
		t.Errorf("Language = %q, want empty after failed enrichment", disc.Language)
	}
}

func TestIngest_RecordErrorsIsolated(t *testing.T) {
	db := testDB(t)
	records := []Record{
		{ID: "", Title: "no id"},
		{ID: "d-ok", Title: "fine"},
		{ID: "d-no-title"},
	}
	result, err := Ingest(context.Background(), db, records, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 || len(result.Errors) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if _, err := task.GetDiscussion(db, "d-ok"); err != nil {
		t.Errorf("healthy record not created: %v", err)
	}
}
