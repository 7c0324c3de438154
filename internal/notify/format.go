package notify

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/statusfix"
)

// Severity-to-color hints matching common chat sidebar conventions.
const (
	colorWarning = "#e8a317"
	colorInfo    = "#36a64f"
)

// FlagEvent formats a freshly filed flag for chat delivery.
func FlagEvent(flag *models.Flag) Event {
	ev := Event{
		Title:    fmt.Sprintf("Flag filed on discussion %s task %d", flag.DiscussionID, flag.TaskID),
		Body:     flag.Reason,
		Severity: "warning",
		Color:    colorWarning,
		Fields: []Field{
			{Name: "Category", Value: flag.Category, Short: true},
			{Name: "Filed by", Value: fmt.Sprintf("%s (%s)", flag.FlaggedBy, flag.FlaggedByRole), Short: true},
		},
	}
	if flag.WorkflowScenario != "" {
		ev.Fields = append(ev.Fields, Field{Name: "Scenario", Value: flag.WorkflowScenario, Short: true})
	}
	if flag.FlaggedFromTaskID != 0 && flag.FlaggedFromTaskID != flag.TaskID {
		ev.Fields = append(ev.Fields, Field{
			Name:  "Reported from",
			Value: fmt.Sprintf("task %d", flag.FlaggedFromTaskID),
			Short: true,
		})
	}
	return ev
}

// StatusFixEvent formats a reconciliation result for chat delivery.
func StatusFixEvent(result *statusfix.Result) Event {
	mode := "apply"
	if result.DryRun {
		mode = "preview"
	}
	ev := Event{
		Title:    fmt.Sprintf("Status fix (%s): %d updates across %d discussions", mode, result.Summary.Updated, result.UpdatedDiscussions),
		Severity: "info",
		Color:    colorInfo,
		Fields: []Field{
			{Name: "Analyzed", Value: strconv.Itoa(result.Summary.Analyzed), Short: true},
			{Name: "Preserved (flagged)", Value: strconv.Itoa(result.Summary.ReworkTasksPreserved), Short: true},
		},
	}
	if len(result.Errors) > 0 {
		ev.Severity = "error"
		ev.Fields = append(ev.Fields, Field{Name: "Errors", Value: strconv.Itoa(len(result.Errors)), Short: true})
	}

	transitions := make([]string, 0, len(result.Summary.Transitions))
	for t := range result.Summary.Transitions {
		transitions = append(transitions, t)
	}
	sort.Strings(transitions)
	for _, t := range transitions {
		ev.Fields = append(ev.Fields, Field{
			Name:  t,
			Value: strconv.Itoa(result.Summary.Transitions[t]),
			Short: true,
		})
	}
	return ev
}
