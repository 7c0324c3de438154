package consensus

import (
	"errors"
	"fmt"
	"io"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/task"
	"github.com/quorumhq/quorum/internal/validate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultAutoThreshold is the agreement percentage at or above which the
// engine may synthesize a consensus without human action.
const DefaultAutoThreshold = 95.0

// Preview computes the agreement rate and candidate payload for one task
// without writing anything. Safe to repeat; takes no locks.
func Preview(db *gorm.DB, discussionID string, taskID int) (*Agreement, error) {
	if !task.ValidTaskID(taskID) {
		return nil, fmt.Errorf("consensus: invalid task ID %d: %w", taskID, faults.ErrMalformedInput)
	}
	anns, err := task.GetAnnotations(db, discussionID, taskID)
	if err != nil {
		return nil, err
	}
	return ComputeAgreement(anns)
}

// CreateOrOverride writes the consensus for one task, replacing any prior
// record wholesale, then advances the state machine: the task becomes
// consensus_created, then completed or rework depending on the quality rules,
// then ready_for_next (unlocking the successor) when the next-track gate
// holds. authorID "override" marks a manual pod-lead/admin action, which is
// accepted regardless of the current task status.
func CreateOrOverride(db *gorm.DB, discussionID string, taskID int, data map[string]interface{}, stars int, comment, authorID string) (*models.Consensus, error) {
	if !task.ValidTaskID(taskID) {
		return nil, fmt.Errorf("consensus: invalid task ID %d: %w", taskID, faults.ErrMalformedInput)
	}
	if authorID == "" {
		return nil, fmt.Errorf("consensus: authorID is required: %w", faults.ErrMalformedInput)
	}

	cons := models.Consensus{
		DiscussionID: discussionID,
		TaskID:       taskID,
		Stars:        stars,
		Comment:      comment,
		AuthorID:     authorID,
	}
	if err := cons.SetData(data); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		disc, err := task.GetDiscussion(tx, discussionID)
		if err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "discussion_id"}, {Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"data", "stars", "comment", "author_id", "updated_at",
			}),
		}).Create(&cons).Error; err != nil {
			return fmt.Errorf("consensus: upsert %s/%d: %w", discussionID, taskID, err)
		}

		return advance(tx, disc, taskID, data)
	})
	if err != nil {
		return nil, err
	}
	return &cons, nil
}

// advance moves a task through consensus_created → completed/rework →
// ready_for_next based on the freshly written consensus payload.
func advance(tx *gorm.DB, disc *models.Discussion, taskID int, data map[string]interface{}) error {
	if err := task.SetStatus(tx, disc.ID, taskID, task.StatusConsensusCreated); err != nil {
		return err
	}

	if errs := validate.CheckConsensus(disc, taskID, data); len(errs) > 0 {
		return task.SetStatus(tx, disc.ID, taskID, task.StatusRework)
	}

	if err := task.SetStatus(tx, disc.ID, taskID, task.StatusCompleted); err != nil {
		return err
	}
	if validate.NextTrackGate(taskID, data) {
		if err := task.SetStatus(tx, disc.ID, taskID, task.StatusReadyForNext); err != nil {
			return err
		}
		if taskID < task.TaskCount {
			if err := task.Unlock(tx, disc.ID, taskID+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// AutoCreateOpts holds parameters for a batch auto-consensus run.
type AutoCreateOpts struct {
	// DryRun computes candidates without writing consensus records.
	DryRun bool
	// Threshold is the minimum agreement percentage; zero means the default.
	Threshold float64
	// Out receives progress output; nil discards it.
	Out io.Writer
}

// Candidate is one task considered by an auto-consensus run.
type Candidate struct {
	DiscussionID  string                 `json:"discussion_id"`
	TaskID        int                    `json:"task_id"`
	AgreementRate float64                `json:"agreement_rate"`
	Created       bool                   `json:"created"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// AutoCreateResult summarizes a batch auto-consensus run.
type AutoCreateResult struct {
	DryRun              bool        `json:"dry_run"`
	Threshold           float64     `json:"threshold"`
	SuccessfulCreations int         `json:"successful_creations"`
	Candidates          []Candidate `json:"candidates"`
	Errors              []string    `json:"errors,omitempty"`
}

// AutoCreate scans every task slot awaiting consensus, computes agreement,
// and synthesizes a consensus for those at or above the threshold. Slots
// below their annotator quota are reported as errors rather than processed;
// the state machine should prevent that state, but the engine validates its
// preconditions defensively. Per-slot failures never abort the batch.
func AutoCreate(db *gorm.DB, opts AutoCreateOpts) (*AutoCreateResult, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultAutoThreshold
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	var slots []models.TaskSlot
	if err := db.Where("status = ?", string(task.StatusReadyForConsensus)).
		Order("discussion_id ASC, task_id ASC").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("consensus: list slots awaiting consensus: %w", err)
	}

	result := &AutoCreateResult{DryRun: opts.DryRun, Threshold: threshold}
	for _, slot := range slots {
		if slot.AnnotatorCount < slot.RequiredAnnotators {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"%s/%d: %v (have %d, need %d)",
				slot.DiscussionID, slot.TaskID, faults.ErrInsufficientAnnotators,
				slot.AnnotatorCount, slot.RequiredAnnotators))
			continue
		}

		agreement, err := Preview(db, slot.DiscussionID, slot.TaskID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%d: %v", slot.DiscussionID, slot.TaskID, err))
			continue
		}
		if agreement == nil || agreement.Rate < threshold {
			continue
		}

		cand := Candidate{
			DiscussionID:  slot.DiscussionID,
			TaskID:        slot.TaskID,
			AgreementRate: agreement.Rate,
			Data:          agreement.Candidate,
		}
		if !opts.DryRun {
			if _, err := CreateOrOverride(db, slot.DiscussionID, slot.TaskID,
				agreement.Candidate, 0, "", models.AuthorAuto); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s/%d: %v", slot.DiscussionID, slot.TaskID, err))
				continue
			}
			cand.Created = true
			result.SuccessfulCreations++
			fmt.Fprintf(out, "Created consensus for %s task %d (agreement %.1f%%)\n",
				slot.DiscussionID, slot.TaskID, agreement.Rate)
		}
		result.Candidates = append(result.Candidates, cand)
	}
	return result, nil
}

// Get retrieves the consensus for one task, or faults.ErrNotFound.
func Get(db *gorm.DB, discussionID string, taskID int) (*models.Consensus, error) {
	var cons models.Consensus
	err := db.Where("discussion_id = ? AND task_id = ?", discussionID, taskID).First(&cons).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("consensus: %s/%d: %w", discussionID, taskID, faults.ErrNotFound)
		}
		return nil, fmt.Errorf("consensus: get %s/%d: %w", discussionID, taskID, err)
	}
	return &cons, nil
}
