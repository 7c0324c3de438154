package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quorumhq/quorum/internal/statusfix"
)

func newStatusFixCmd() *cobra.Command {
	var (
		configPath string
		apply      bool
		workers    int
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "statusfix",
		Short: "Recompute task statuses from raw facts and repair drift",
		Long:  "Previews corrections by default. With --apply, persists them, skipping tasks held by unresolved flags. Prompts for confirmation on a terminal unless --yes is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if apply && !yes && term.IsTerminal(int(os.Stdin.Fd())) {
				preview, err := statusfix.Run(gormDB, statusfix.Opts{DryRun: true, Workers: workers})
				if err != nil {
					return err
				}
				if preview.Summary.Updated == 0 {
					fmt.Fprintln(out, "Nothing to fix")
					return nil
				}
				fmt.Fprintf(out, "Apply %d status updates across %d discussions? [y/N] ",
					preview.Summary.Updated, preview.UpdatedDiscussions)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			result, err := statusfix.Run(gormDB, statusfix.Opts{
				DryRun:  !apply,
				Workers: workers,
				Out:     out,
			})
			if err != nil {
				return err
			}

			if len(result.StatusUpdates) > 0 {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DISCUSSION\tTASK\tCURRENT\tCORRECT\tREASON")
				for _, u := range result.StatusUpdates {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
						u.DiscussionID, u.TaskID, u.CurrentStatus, u.CorrectStatus, u.Reason)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			if result.Summary.ReworkTasksPreserved > 0 {
				fmt.Fprintf(out, "Preserved %d flagged task(s)\n", result.Summary.ReworkTasksPreserved)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().BoolVar(&apply, "apply", false, "persist corrections instead of previewing")
	cmd.Flags().IntVar(&workers, "workers", 0, "discussion-level parallelism (0 = default)")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the interactive confirmation")
	return cmd
}
