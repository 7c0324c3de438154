package task

import (
	"errors"
	"testing"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/models"
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

func mustCreate(t *testing.T, db *gorm.DB, id string) *models.Discussion {
	t.Helper()
	disc, err := CreateDiscussion(db, CreateOpts{ID: id, Title: "How do I configure retries?"})
	if err != nil {
		t.Fatalf("CreateDiscussion: %v", err)
	}
	return disc
}

func slotStatus(t *testing.T, db *gorm.DB, discussionID string, taskID int) Status {
	t.Helper()
	slot, err := GetSlot(db, discussionID, taskID)
	if err != nil {
		t.Fatalf("GetSlot %s/%d: %v", discussionID, taskID, err)
	}
	return Status(slot.Status)
}

func TestCreateDiscussion(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	disc, err := GetDiscussion(db, "d1")
	if err != nil {
		t.Fatalf("GetDiscussion: %v", err)
	}
	if len(disc.Tasks) != TaskCount {
		t.Fatalf("got %d task slots, want %d", len(disc.Tasks), TaskCount)
	}
	for _, slot := range disc.Tasks {
		want := StatusLocked
		if slot.TaskID == 1 {
			want = StatusUnlocked
		}
		if Status(slot.Status) != want {
			t.Errorf("task %d status = %q, want %q", slot.TaskID, slot.Status, want)
		}
		if slot.RequiredAnnotators != RequiredAnnotators(slot.TaskID) {
			t.Errorf("task %d quota = %d, want %d", slot.TaskID, slot.RequiredAnnotators, RequiredAnnotators(slot.TaskID))
		}
		if slot.AnnotatorCount != 0 {
			t.Errorf("task %d annotator count = %d, want 0", slot.TaskID, slot.AnnotatorCount)
		}
	}
}

func TestCreateDiscussion_MissingFields(t *testing.T) {
	db := testDB(t)
	if _, err := CreateDiscussion(db, CreateOpts{Title: "no id"}); !errors.Is(err, faults.ErrMalformedInput) {
		t.Errorf("missing ID: err = %v, want ErrMalformedInput", err)
	}
	if _, err := CreateDiscussion(db, CreateOpts{ID: "d1"}); !errors.Is(err, faults.ErrMalformedInput) {
		t.Errorf("missing title: err = %v, want ErrMalformedInput", err)
	}
}

func TestGetDiscussion_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := GetDiscussion(db, "missing"); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmitAnnotation_CountIsProjection(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	data := map[string]interface{}{"relevance": true}
	for _, user := range []string{"u1", "u2"} {
		if _, err := SubmitAnnotation(db, "d1", user, 1, data); err != nil {
			t.Fatalf("SubmitAnnotation(%s): %v", user, err)
		}
	}
	// resubmission must replace, not increment
	if _, err := SubmitAnnotation(db, "d1", "u1", 1, map[string]interface{}{"relevance": false}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	slot, err := GetSlot(db, "d1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if slot.AnnotatorCount != 2 {
		t.Errorf("annotator count = %d, want 2 (distinct users)", slot.AnnotatorCount)
	}
	if Status(slot.Status) != StatusUnlocked {
		t.Errorf("status = %q, want unlocked below quota", slot.Status)
	}

	anns, err := GetAnnotations(db, "d1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 2 {
		t.Fatalf("got %d annotations, want 2", len(anns))
	}
	m, err := anns[0].DataMap()
	if err != nil {
		t.Fatal(err)
	}
	if m["relevance"] != false {
		t.Errorf("u1 resubmission did not replace the payload: %v", m)
	}
}

func TestSubmitAnnotation_PromotesAtQuota(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	for _, user := range []string{"u1", "u2", "u3"} {
		if _, err := SubmitAnnotation(db, "d1", user, 1, map[string]interface{}{"ok": true}); err != nil {
			t.Fatalf("SubmitAnnotation(%s): %v", user, err)
		}
	}
	if got := slotStatus(t, db, "d1", 1); got != StatusReadyForConsensus {
		t.Errorf("status = %q, want ready_for_consensus at quota", got)
	}

	// a fourth annotator past quota is accepted and does not regress the status
	if _, err := SubmitAnnotation(db, "d1", "u4", 1, map[string]interface{}{"ok": true}); err != nil {
		t.Fatalf("submit past quota: %v", err)
	}
	slot, err := GetSlot(db, "d1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if slot.AnnotatorCount != 4 {
		t.Errorf("annotator count = %d, want 4", slot.AnnotatorCount)
	}
	if Status(slot.Status) != StatusReadyForConsensus {
		t.Errorf("status = %q, want ready_for_consensus", slot.Status)
	}
}

func TestSubmitAnnotation_FlagHoldsPromotion(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	flag := models.Flag{
		DiscussionID:  "d1",
		TaskID:        1,
		FlaggedBy:     "lead1",
		FlaggedByRole: "pod_lead",
		Category:      "data_error",
		Reason:        "question body references a deleted repo",
	}
	if err := db.Create(&flag).Error; err != nil {
		t.Fatal(err)
	}

	for _, user := range []string{"u1", "u2", "u3"} {
		if _, err := SubmitAnnotation(db, "d1", user, 1, map[string]interface{}{"ok": true}); err != nil {
			t.Fatalf("SubmitAnnotation(%s): %v", user, err)
		}
	}
	if got := slotStatus(t, db, "d1", 1); got != StatusUnlocked {
		t.Errorf("status = %q, want unlocked while a flag is unresolved", got)
	}
}

func TestSubmitAnnotation_Rejections(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	// task 2 starts locked
	if _, err := SubmitAnnotation(db, "d1", "u1", 2, nil); !errors.Is(err, faults.ErrInvalidTransition) {
		t.Errorf("locked task: err = %v, want ErrInvalidTransition", err)
	}

	for status, want := range map[Status]error{
		StatusCompleted:    faults.ErrInvalidTransition,
		StatusReadyForNext: faults.ErrInvalidTransition,
		StatusBlocked:      faults.ErrFlagBlocked,
		StatusFlagged:      faults.ErrFlagBlocked,
	} {
		if err := SetStatus(db, "d1", 1, status); err != nil {
			t.Fatal(err)
		}
		if _, err := SubmitAnnotation(db, "d1", "u1", 1, nil); !errors.Is(err, want) {
			t.Errorf("status %q: err = %v, want %v", status, err, want)
		}
	}

	if _, err := SubmitAnnotation(db, "d1", "u1", 4, nil); !errors.Is(err, faults.ErrMalformedInput) {
		t.Errorf("bad task ID: err = %v, want ErrMalformedInput", err)
	}
	if _, err := SubmitAnnotation(db, "", "u1", 1, nil); !errors.Is(err, faults.ErrMalformedInput) {
		t.Errorf("empty discussion: err = %v, want ErrMalformedInput", err)
	}
	if _, err := SubmitAnnotation(db, "missing", "u1", 1, nil); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("missing slot: err = %v, want ErrNotFound", err)
	}
}

func TestTransition_CascadeUnlock(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	for _, to := range []Status{StatusReadyForConsensus, StatusConsensusCreated, StatusCompleted, StatusReadyForNext} {
		if err := Transition(db, "d1", 1, to); err != nil {
			t.Fatalf("Transition to %q: %v", to, err)
		}
	}
	if got := slotStatus(t, db, "d1", 2); got != StatusUnlocked {
		t.Errorf("task 2 status = %q, want unlocked after task 1 ready_for_next", got)
	}
	if got := slotStatus(t, db, "d1", 3); got != StatusLocked {
		t.Errorf("task 3 status = %q, want still locked", got)
	}
}

func TestTransition_Invalid(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	err := Transition(db, "d1", 1, StatusCompleted)
	if !errors.Is(err, faults.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	// invalid transition must not change the stored status
	if got := slotStatus(t, db, "d1", 1); got != StatusUnlocked {
		t.Errorf("status = %q, want unchanged unlocked", got)
	}

	if err := Transition(db, "missing", 1, StatusUnlocked); !errors.Is(err, faults.ErrNotFound) {
		t.Errorf("missing slot: err = %v, want ErrNotFound", err)
	}
}

func TestUnlock_OnlyFromLocked(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")

	if err := Unlock(db, "d1", 2); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if got := slotStatus(t, db, "d1", 2); got != StatusUnlocked {
		t.Errorf("status = %q, want unlocked", got)
	}

	// already past locked: no-op
	if err := SetStatus(db, "d1", 2, StatusReadyForConsensus); err != nil {
		t.Fatal(err)
	}
	if err := Unlock(db, "d1", 2); err != nil {
		t.Fatalf("Unlock no-op: %v", err)
	}
	if got := slotStatus(t, db, "d1", 2); got != StatusReadyForConsensus {
		t.Errorf("status = %q, want ready_for_consensus preserved", got)
	}
}

func TestGetAnnotations_AllTasks(t *testing.T) {
	db := testDB(t)
	mustCreate(t, db, "d1")
	if err := Unlock(db, "d1", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := SubmitAnnotation(db, "d1", "u1", 1, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := SubmitAnnotation(db, "d1", "u1", 2, nil); err != nil {
		t.Fatal(err)
	}

	all, err := GetAnnotations(db, "d1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d annotations, want 2", len(all))
	}
	if _, err := GetAnnotations(db, "d1", 9); !errors.Is(err, faults.ErrMalformedInput) {
		t.Errorf("bad filter: err = %v, want ErrMalformedInput", err)
	}
}
