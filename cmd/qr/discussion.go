package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/task"
)

func newDiscussionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discussion",
		Short: "Discussion management commands",
	}

	cmd.AddCommand(newDiscussionListCmd())
	cmd.AddCommand(newDiscussionShowCmd())
	return cmd
}

func newDiscussionListCmd() *cobra.Command {
	var (
		configPath string
		batchID    string
		status     string
		taskID     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discussions",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			return runDiscussionList(cmd, gormDB, batchID, status, taskID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&batchID, "batch", "", "filter by batch ID")
	cmd.Flags().StringVar(&status, "status", "", "filter by task status (requires --task)")
	cmd.Flags().IntVar(&taskID, "task", 0, "task ID for the status filter")
	return cmd
}

func runDiscussionList(cmd *cobra.Command, gormDB *gorm.DB, batchID, status string, taskID int) error {
	q := gormDB.Preload("Tasks").Where("archived = ?", false)
	if batchID != "" {
		q = q.Where("batch_id = ?", batchID)
	}
	if status != "" {
		if taskID == 0 {
			return fmt.Errorf("--status requires --task")
		}
		if _, err := task.ParseStatus(status); err != nil {
			return err
		}
		q = q.Where("id IN (?)", gormDB.Model(&models.TaskSlot{}).
			Select("discussion_id").
			Where("task_id = ? AND status = ?", taskID, status))
	}

	var discs []models.Discussion
	if err := q.Order("id ASC").Find(&discs).Error; err != nil {
		return fmt.Errorf("list discussions: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tREPO\tT1\tT2\tT3\tBATCH")
	for _, d := range discs {
		statuses := map[int]string{}
		for _, s := range d.Tasks {
			statuses[s.TaskID] = s.Status
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, truncate(d.Title, 40), d.Repository,
			statuses[1], statuses[2], statuses[3], d.BatchID)
	}
	return w.Flush()
}

func newDiscussionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <discussion-id>",
		Short: "Show one discussion with its task slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			disc, err := task.GetDiscussion(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Discussion %s\n", disc.ID)
			fmt.Fprintf(out, "Title:      %s\n", disc.Title)
			fmt.Fprintf(out, "URL:        %s\n", disc.URL)
			fmt.Fprintf(out, "Repository: %s", disc.Repository)
			if disc.Language != "" {
				fmt.Fprintf(out, " (%s)", disc.Language)
			}
			fmt.Fprintln(out)
			if disc.Release != "" {
				fmt.Fprintf(out, "Release:    %s\n", disc.Release)
			}
			if disc.BatchID != "" {
				fmt.Fprintf(out, "Batch:      %s\n", disc.BatchID)
			}
			if disc.SkipToTask3 {
				fmt.Fprintln(out, "Override:   skip_to_task3")
			}
			fmt.Fprintln(out)
			for _, s := range disc.Tasks {
				fmt.Fprintf(out, "Task %d: %s (%d/%d annotators)\n",
					s.TaskID, s.Status, s.AnnotatorCount, s.RequiredAnnotators)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	return cmd
}
