package statusfix

import (
	"fmt"

	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/task"
	"gorm.io/gorm"
)

// FixTask re-derives and persists one task's status from raw facts,
// regardless of flags. Used when a flag is resolved and normal status
// derivation resumes; the predecessor's stored status supplies the unlock
// precondition. Downstream tasks are reconciled by the next full run.
func FixTask(db *gorm.DB, discussionID string, taskID int) (task.Status, error) {
	disc, err := task.GetDiscussion(db, discussionID)
	if err != nil {
		return "", err
	}

	var slot *models.TaskSlot
	prevStatus := task.Status("")
	for i := range disc.Tasks {
		s := &disc.Tasks[i]
		if s.TaskID == taskID {
			slot = s
		}
		if s.TaskID == taskID-1 {
			prevStatus = task.Status(s.Status)
		}
	}
	if slot == nil {
		return "", fmt.Errorf("statusfix: %s missing slot %d", discussionID, taskID)
	}

	correct, _, err := deriveCorrect(db, disc, slot, prevStatus)
	if err != nil {
		return "", err
	}
	if string(correct) != slot.Status {
		if err := task.SetStatus(db, discussionID, taskID, correct); err != nil {
			return "", err
		}
	}
	return correct, nil
}
