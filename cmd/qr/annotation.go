package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/task"
)

func newAnnotationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotation",
		Short: "Annotation commands",
	}

	cmd.AddCommand(newAnnotationSubmitCmd())
	cmd.AddCommand(newAnnotationListCmd())
	return cmd
}

func newAnnotationSubmitCmd() *cobra.Command {
	var (
		configPath   string
		discussionID string
		userID       string
		taskID       int
		dataJSON     string
		dataFile     string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit (or replace) one annotator's task data",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(dataJSON)
			if dataFile != "" {
				b, err := os.ReadFile(dataFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", dataFile, err)
				}
				raw = b
			}
			var data map[string]interface{}
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("parse data: %w", err)
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ann, err := task.SubmitAnnotation(gormDB, discussionID, userID, taskID, data)
			if err != nil {
				return err
			}

			slot, err := task.GetSlot(gormDB, discussionID, taskID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded annotation %s/%s task %d (%d/%d annotators, status %s)\n",
				ann.DiscussionID, ann.UserID, ann.TaskID,
				slot.AnnotatorCount, slot.RequiredAnnotators, slot.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&discussionID, "discussion", "", "discussion ID (required)")
	cmd.Flags().StringVar(&userID, "user", "", "annotator user ID (required)")
	cmd.Flags().IntVar(&taskID, "task", 0, "task ID 1-3 (required)")
	cmd.Flags().StringVar(&dataJSON, "data", "{}", "annotation data as inline JSON")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "file containing annotation data JSON")
	cmd.MarkFlagRequired("discussion")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("task")
	return cmd
}

func newAnnotationListCmd() *cobra.Command {
	var (
		configPath   string
		discussionID string
		taskID       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List annotations for a discussion",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			anns, err := task.GetAnnotations(gormDB, discussionID, taskID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tUSER\tUPDATED\tDATA")
			for _, a := range anns {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					a.TaskID, a.UserID,
					a.UpdatedAt.Format("2006-01-02 15:04"),
					truncate(a.Data, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&discussionID, "discussion", "", "discussion ID (required)")
	cmd.Flags().IntVar(&taskID, "task", 0, "filter by task ID (0 = all)")
	cmd.MarkFlagRequired("discussion")
	return cmd
}
