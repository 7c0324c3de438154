package validate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/quorumhq/quorum/internal/faults"
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

func mustCreate(t *testing.T, db *gorm.DB, id, body string) {
	t.Helper()
	if _, err := task.CreateDiscussion(db, task.CreateOpts{ID: id, Title: "t", QuestionBody: body}); err != nil {
		t.Fatal(err)
	}
}

func putConsensus(t *testing.T, db *gorm.DB, discussionID string, taskID int, data map[string]interface{}) {
	t.Helper()
	cons := models.Consensus{DiscussionID: discussionID, TaskID: taskID, AuthorID: models.AuthorOverride}
	if err := cons.SetData(data); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&cons).Error; err != nil {
		t.Fatal(err)
	}
}

func setStatus(t *testing.T, db *gorm.DB, discussionID string, taskID int, s task.Status) {
	t.Helper()
	if err := task.SetStatus(db, discussionID, taskID, s); err != nil {
		t.Fatal(err)
	}
}

func TestDiscussion_CollectsAllTasks(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1", "")
	putConsensus(t, db, "d1", 1, map[string]interface{}{"codeDownloadUrl_text": "ftp://x/y.zip"})
	putConsensus(t, db, "d1", 3, map[string]interface{}{
		"forms": []interface{}{map[string]interface{}{"supporting_docs_option": "Provided"}},
	})

	errs, err := Discussion(db, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	if errs[0].Task != 1 || errs[1].Task != 3 {
		t.Errorf("errors not ordered by task: %v", errs)
	}

	if _, err := Discussion(db, "missing"); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("missing discussion: err = %v", err)
	}
}

func TestExportReady(t *testing.T) {
	gatePass := map[string]interface{}{"relevance": true}
	gateFail := map[string]interface{}{"relevance": false}

	t.Run("task1 incomplete", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			t.Error("unlocked task 1 should not be export ready")
		}
	})

	t.Run("task1 complete without consensus record", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		setStatus(t, db, "d1", 1, task.StatusCompleted)
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			t.Error("status alone is not enough, a consensus record is required")
		}
	})

	t.Run("task1-only track when gate fails", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		setStatus(t, db, "d1", 1, task.StatusCompleted)
		putConsensus(t, db, "d1", 1, gateFail)
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if !ready {
			t.Error("gate-failing discussion exports under the task1-only track")
		}
	})

	t.Run("gate holds and task3 pending", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		setStatus(t, db, "d1", 1, task.StatusReadyForNext)
		putConsensus(t, db, "d1", 1, gatePass)
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			t.Error("task 3 must complete before a gated discussion exports")
		}
	})

	t.Run("gate holds and task3 complete", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		setStatus(t, db, "d1", 1, task.StatusReadyForNext)
		setStatus(t, db, "d1", 3, task.StatusCompleted)
		putConsensus(t, db, "d1", 1, gatePass)
		putConsensus(t, db, "d1", 3, map[string]interface{}{
			"forms": []interface{}{map[string]interface{}{"supporting_docs_option": "Not Findable"}},
		})
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if !ready {
			t.Error("full track complete should be export ready")
		}
	})

	t.Run("task1 quality errors block export", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		setStatus(t, db, "d1", 1, task.StatusCompleted)
		putConsensus(t, db, "d1", 1, map[string]interface{}{
			"relevance":            false,
			"codeDownloadUrl_text": "ftp://x/y.zip",
		})
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			t.Error("task 1 errors must block even the task1-only track")
		}
	})

	t.Run("task3 quality errors block export", func(t *testing.T) {
		db := testDB(t)
		mustCreate(t, db, "d1", "")
		setStatus(t, db, "d1", 1, task.StatusReadyForNext)
		setStatus(t, db, "d1", 3, task.StatusCompleted)
		putConsensus(t, db, "d1", 1, gatePass)
		putConsensus(t, db, "d1", 3, map[string]interface{}{
			"forms": []interface{}{map[string]interface{}{"supporting_docs_option": "Provided"}},
		})
		ready, err := ExportReady(db, "d1")
		if err != nil {
			t.Fatal(err)
		}
		if ready {
			t.Error("task 3 errors block export on the full track")
		}
	})
}

func TestExportBuckets(t *testing.T) {
	db := testDB(t)

	// valid: task1-only track
	mustCreate(t, db, "d-valid", "")
	setStatus(t, db, "d-valid", 1, task.StatusCompleted)
	putConsensus(t, db, "d-valid", 1, map[string]interface{}{"relevance": false})

	// with errors: bad download URL
	mustCreate(t, db, "d-errors", "")
	setStatus(t, db, "d-errors", 1, task.StatusCompleted)
	putConsensus(t, db, "d-errors", 1, map[string]interface{}{
		"relevance":            false,
		"codeDownloadUrl_text": "ftp://x/y.zip",
	})

	// not ready: still collecting annotations
	mustCreate(t, db, "d-pending", "")

	// archived discussions are excluded entirely
	mustCreate(t, db, "d-archived", "")
	if err := db.Model(&models.Discussion{}).Where("id = ?", "d-archived").Update("archived", true).Error; err != nil {
		t.Fatal(err)
	}

	buckets, err := ExportBuckets(db)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(buckets.Valid, []string{"d-valid"}) {
		t.Errorf("Valid = %v", buckets.Valid)
	}
	if !reflect.DeepEqual(buckets.WithErrors, []string{"d-errors"}) {
		t.Errorf("WithErrors = %v", buckets.WithErrors)
	}
	if !reflect.DeepEqual(buckets.NotReady, []string{"d-pending"}) {
		t.Errorf("NotReady = %v", buckets.NotReady)
	}
}
