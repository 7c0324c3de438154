package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/flagging"
)

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Flag management commands",
	}

	cmd.AddCommand(newFlagCreateCmd())
	cmd.AddCommand(newFlagListCmd())
	cmd.AddCommand(newFlagResolveCmd())
	return cmd
}

func newFlagCreateCmd() *cobra.Command {
	var (
		configPath   string
		discussionID string
		taskID       int
		fromTaskID   int
		reason       string
		category     string
		scenario     string
		flaggedBy    string
		role         string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a flag against a task",
		Long:  "Moves the target task to flagged and suppresses automatic status correction until resolved. Workflow misrouting flags require a scenario, which determines the target task.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			flag, err := flagging.FlagTask(gormDB, flagging.FlagOpts{
				DiscussionID:      discussionID,
				TaskID:            taskID,
				Reason:            reason,
				Category:          category,
				FlaggedFromTaskID: fromTaskID,
				WorkflowScenario:  scenario,
				FlaggedBy:         flaggedBy,
				Role:              role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flag %d filed on %s task %d (%s)\n",
				flag.ID, flag.DiscussionID, flag.TaskID, flag.Category)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&discussionID, "discussion", "", "discussion ID (required)")
	cmd.Flags().IntVar(&taskID, "task", 0, "task judged defective")
	cmd.Flags().IntVar(&fromTaskID, "from-task", 0, "task the reporter was working on")
	cmd.Flags().StringVar(&reason, "reason", "", "reason, at least 15 characters (required)")
	cmd.Flags().StringVar(&category, "category", flagging.CategoryGeneral, "flag category")
	cmd.Flags().StringVar(&scenario, "scenario", "", "workflow scenario (workflow_misrouting only)")
	cmd.Flags().StringVar(&flaggedBy, "by", "", "reporter user ID")
	cmd.Flags().StringVar(&role, "role", flagging.RolePodLead, "reporter role")
	cmd.MarkFlagRequired("discussion")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newFlagListCmd() *cobra.Command {
	var (
		configPath   string
		discussionID string
		all          bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flags (unresolved by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			filters := flagging.ListFilters{DiscussionID: discussionID}
			if !all {
				resolved := false
				filters.Resolved = &resolved
			}
			flags, err := flagging.List(gormDB, filters)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDISCUSSION\tTASK\tCATEGORY\tSCENARIO\tRESOLVED\tREASON")
			for _, f := range flags {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%t\t%s\n",
					f.ID, f.DiscussionID, f.TaskID, f.Category,
					f.WorkflowScenario, f.Resolved, truncate(f.Reason, 50))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&discussionID, "discussion", "", "filter by discussion ID")
	cmd.Flags().BoolVar(&all, "all", false, "include resolved flags")
	return cmd
}

func newFlagResolveCmd() *cobra.Command {
	var (
		configPath string
		resolvedBy string
	)

	cmd := &cobra.Command{
		Use:   "resolve <flag-id>",
		Short: "Resolve a flag and resume normal status derivation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flagID uint
			if _, err := fmt.Sscanf(args[0], "%d", &flagID); err != nil {
				return fmt.Errorf("invalid flag ID %q", args[0])
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := flagging.Resolve(gormDB, flagID, resolvedBy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flag %d resolved\n", flagID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&resolvedBy, "by", "", "resolver user ID")
	return cmd
}
