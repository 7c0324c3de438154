package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var (
		configPath string
		file       string
		enrich     bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest discussions from a JSONL export",
		Long:  "Creates a discussion with three task slots per record. Existing IDs are skipped. With --enrich, repository language and latest release are looked up on GitHub.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close()

			records, err := ingest.FromJSONL(f)
			if err != nil {
				return err
			}

			var enricher ingest.Enricher
			if enrich {
				enricher = ingest.NewGitHubEnricher(cmd.Context(), cfg.GitHub.Token)
			}

			result, err := ingest.Ingest(cmd.Context(), gormDB, records, enricher)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %d discussions (%d skipped)\n", result.Created, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&file, "file", "", "JSONL file of discussion records (required)")
	cmd.Flags().BoolVar(&enrich, "enrich", false, "look up repository metadata on GitHub")
	cmd.MarkFlagRequired("file")
	return cmd
}
