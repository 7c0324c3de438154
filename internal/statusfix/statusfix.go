// Package statusfix recomputes every discussion's correct task statuses from
// raw annotation and consensus facts and repairs drift, preserving tasks held
// by unresolved flags.
package statusfix

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/task"
	"github.com/quorumhq/quorum/internal/validate"
	"gorm.io/gorm"
)

// DefaultWorkers is the default discussion-level parallelism of a run.
const DefaultWorkers = 4

// Opts holds parameters for a reconciliation run.
type Opts struct {
	// DryRun reports corrections without persisting them.
	DryRun bool
	// Workers bounds discussion-level parallelism; zero means the default.
	// Tasks within one discussion are always processed sequentially, since
	// task 2's correct status depends on task 1's freshly computed one.
	Workers int
	// Out receives progress output; nil discards it.
	Out io.Writer
}

// StatusUpdate records one correction: the stored status disagreed with the
// status recomputed from raw facts.
type StatusUpdate struct {
	DiscussionID  string `json:"discussion_id"`
	TaskID        int    `json:"task_id"`
	CurrentStatus string `json:"current_status"`
	CorrectStatus string `json:"correct_status"`
	Reason        string `json:"reason"`
}

// Summary accumulates counters across a run.
type Summary struct {
	Analyzed                 int            `json:"analyzed"`
	Updated                  int            `json:"updated"`
	Transitions              map[string]int `json:"transitions"`
	FixTypes                 map[string]int `json:"fix_types"`
	TasksAffected            map[int]int    `json:"tasks_affected"`
	ReworkTasksPreserved     int            `json:"rework_tasks_preserved"`
	ReworkScenariosPreserved map[string]int `json:"rework_scenarios_preserved"`
}

// Result is the outcome of one reconciliation run.
type Result struct {
	DryRun             bool           `json:"dry_run"`
	UpdatedDiscussions int            `json:"updated_discussions"`
	StatusUpdates      []StatusUpdate `json:"status_updates"`
	Summary            Summary        `json:"summary"`
	Errors             []string       `json:"errors,omitempty"`
}

// Run reconciles all non-archived discussions. Discussions are processed in
// parallel across a bounded worker pool; a per-discussion failure is recorded
// and never aborts the batch. Repeating an apply run with no intervening
// changes yields zero updates.
func Run(db *gorm.DB, opts Opts) (*Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	var ids []string
	if err := db.Model(&models.Discussion{}).
		Where("archived = ?", false).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("statusfix: list discussions: %w", err)
	}

	result := &Result{
		DryRun: opts.DryRun,
		Summary: Summary{
			Transitions:              make(map[string]int),
			FixTypes:                 make(map[string]int),
			TasksAffected:            make(map[int]int),
			ReworkScenariosPreserved: make(map[string]int),
		},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	idCh := make(chan string)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idCh {
				updates, preserved, err := reconcileDiscussion(db, id, opts.DryRun)
				mu.Lock()
				result.Summary.Analyzed++
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
					mu.Unlock()
					continue
				}
				for _, p := range preserved {
					result.Summary.ReworkTasksPreserved++
					result.Summary.ReworkScenariosPreserved[p]++
				}
				if len(updates) > 0 {
					result.UpdatedDiscussions++
					result.StatusUpdates = append(result.StatusUpdates, updates...)
					for _, u := range updates {
						result.Summary.Updated++
						result.Summary.Transitions[u.CurrentStatus+"->"+u.CorrectStatus]++
						result.Summary.FixTypes[u.Reason]++
						result.Summary.TasksAffected[u.TaskID]++
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		idCh <- id
	}
	close(idCh)
	wg.Wait()

	sort.Slice(result.StatusUpdates, func(i, j int) bool {
		a, b := result.StatusUpdates[i], result.StatusUpdates[j]
		if a.DiscussionID != b.DiscussionID {
			return a.DiscussionID < b.DiscussionID
		}
		return a.TaskID < b.TaskID
	})

	verb := "applied"
	if opts.DryRun {
		verb = "would apply"
	}
	fmt.Fprintf(out, "Analyzed %d discussions, %s %d updates across %d discussions\n",
		result.Summary.Analyzed, verb, result.Summary.Updated, result.UpdatedDiscussions)
	return result, nil
}

// reconcileDiscussion recomputes statuses for one discussion's three tasks in
// order. Returns the corrections and the flag-preservation labels.
func reconcileDiscussion(db *gorm.DB, discussionID string, dryRun bool) ([]StatusUpdate, []string, error) {
	disc, err := task.GetDiscussion(db, discussionID)
	if err != nil {
		return nil, nil, err
	}

	slots := make(map[int]*models.TaskSlot, len(disc.Tasks))
	for i := range disc.Tasks {
		slots[disc.Tasks[i].TaskID] = &disc.Tasks[i]
	}

	var updates []StatusUpdate
	var preserved []string
	prevStatus := task.Status("")

	for taskID := 1; taskID <= task.TaskCount; taskID++ {
		slot, ok := slots[taskID]
		if !ok {
			return nil, nil, fmt.Errorf("statusfix: %s missing slot %d", discussionID, taskID)
		}

		current := task.Status(slot.Status)

		flagged, err := flagLabel(db, discussionID, taskID)
		if err != nil {
			return nil, nil, err
		}
		if flagged != "" {
			preserved = append(preserved, flagged)
			prevStatus = current
			continue
		}

		correct, reason, err := deriveCorrect(db, disc, slot, prevStatus)
		if err != nil {
			return nil, nil, err
		}

		if correct != current {
			updates = append(updates, StatusUpdate{
				DiscussionID:  discussionID,
				TaskID:        taskID,
				CurrentStatus: string(current),
				CorrectStatus: string(correct),
				Reason:        reason,
			})
			if !dryRun {
				if err := task.SetStatus(db, discussionID, taskID, correct); err != nil {
					return nil, nil, err
				}
			}
		}
		prevStatus = correct
	}
	return updates, preserved, nil
}

// deriveCorrect assembles the raw facts for one task and derives its correct
// status, with a reason label for the summary counters.
func deriveCorrect(db *gorm.DB, disc *models.Discussion, slot *models.TaskSlot, prevStatus task.Status) (task.Status, string, error) {
	var annCount int64
	if err := db.Model(&models.Annotation{}).
		Where("discussion_id = ? AND task_id = ?", disc.ID, slot.TaskID).
		Distinct("user_id").
		Count(&annCount).Error; err != nil {
		return "", "", fmt.Errorf("statusfix: count annotators %s/%d: %w", disc.ID, slot.TaskID, err)
	}

	facts := task.Facts{
		TaskID:             slot.TaskID,
		AnnotatorCount:     int(annCount),
		RequiredAnnotators: slot.RequiredAnnotators,
		PrevTaskReady:      task.PrevReady(slot.TaskID-1, prevStatus),
		SkipToTask3:        disc.SkipToTask3,
	}

	var cons models.Consensus
	err := db.Where("discussion_id = ? AND task_id = ?", disc.ID, slot.TaskID).First(&cons).Error
	switch {
	case err == nil:
		data, derr := cons.DataMap()
		if derr != nil {
			return "", "", derr
		}
		facts.HasConsensus = true
		facts.QualityErrorCount = len(validate.CheckConsensus(disc, slot.TaskID, data))
		facts.NextTrackGate = validate.NextTrackGate(slot.TaskID, data)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no consensus yet
	default:
		return "", "", fmt.Errorf("statusfix: load consensus %s/%d: %w", disc.ID, slot.TaskID, err)
	}

	correct := task.DeriveStatus(facts)
	return correct, fixReason(facts, correct), nil
}

// fixReason labels why the recomputed status is what it is, for the
// per-fix-type summary counters.
func fixReason(f task.Facts, correct task.Status) string {
	switch correct {
	case task.StatusLocked:
		return "unlock_precondition_not_met"
	case task.StatusUnlocked:
		return "below_annotator_quota"
	case task.StatusReadyForConsensus:
		return "annotator_quota_met"
	case task.StatusRework:
		return "quality_check_failed"
	case task.StatusCompleted:
		return "consensus_validated"
	case task.StatusReadyForNext:
		return "next_track_gate_held"
	default:
		return string(correct)
	}
}

// flagLabel returns a preservation label when the task carries an unresolved
// flag: the workflow scenario when present, otherwise the flag category.
func flagLabel(db *gorm.DB, discussionID string, taskID int) (string, error) {
	var flags []models.Flag
	err := db.Where("discussion_id = ? AND task_id = ? AND resolved = ?", discussionID, taskID, false).
		Order("id ASC").
		Find(&flags).Error
	if err != nil {
		return "", fmt.Errorf("statusfix: load flags %s/%d: %w", discussionID, taskID, err)
	}
	if len(flags) == 0 {
		return "", nil
	}
	if flags[0].WorkflowScenario != "" {
		return flags[0].WorkflowScenario, nil
	}
	return flags[0].Category, nil
}
