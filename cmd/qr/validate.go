package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/validate"
)

func newValidateCmd() *cobra.Command {
	var (
		configPath string
		buckets    bool
	)

	cmd := &cobra.Command{
		Use:   "validate [discussion-id]",
		Short: "Run quality rules against consensus data",
		Long:  "With a discussion ID, prints its validation errors and export readiness. With --export-buckets, partitions all discussions into valid / with-errors / not-ready.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if buckets {
				b, err := validate.ExportBuckets(gormDB)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Valid:       %d\n", len(b.Valid))
				for _, id := range b.Valid {
					fmt.Fprintf(out, "  %s\n", id)
				}
				fmt.Fprintf(out, "With errors: %d\n", len(b.WithErrors))
				for _, id := range b.WithErrors {
					fmt.Fprintf(out, "  %s\n", id)
				}
				fmt.Fprintf(out, "Not ready:   %d\n", len(b.NotReady))
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("a discussion ID or --export-buckets is required")
			}
			id := args[0]

			errs, err := validate.Discussion(gormDB, id)
			if err != nil {
				return err
			}
			ready, err := validate.ExportReady(gormDB, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Export ready: %t\n", ready)
			if len(errs) == 0 {
				fmt.Fprintln(out, "No validation errors")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tFIELD\tMESSAGE")
			for _, e := range errs {
				fmt.Fprintf(w, "%d\t%s\t%s\n", e.Task, e.Field, e.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().BoolVar(&buckets, "export-buckets", false, "partition all discussions by export state")
	return cmd
}
