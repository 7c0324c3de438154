package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/consensus"
	"github.com/quorumhq/quorum/internal/models"
)

func newConsensusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Consensus engine commands",
	}

	cmd.AddCommand(newConsensusPreviewCmd())
	cmd.AddCommand(newConsensusSetCmd())
	cmd.AddCommand(newConsensusAutoCmd())
	return cmd
}

func newConsensusPreviewCmd() *cobra.Command {
	var (
		configPath   string
		discussionID string
		taskID       int
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compute agreement rate and candidate consensus without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			agreement, err := consensus.Preview(gormDB, discussionID, taskID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if agreement == nil {
				fmt.Fprintln(out, "No annotations yet; agreement rate undefined")
				return nil
			}
			fmt.Fprintf(out, "Agreement: %.1f%% across %d fields\n", agreement.Rate, agreement.Fields)
			candidate, err := json.MarshalIndent(agreement.Candidate, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal candidate: %w", err)
			}
			fmt.Fprintf(out, "Candidate consensus:\n%s\n", candidate)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&discussionID, "discussion", "", "discussion ID (required)")
	cmd.Flags().IntVar(&taskID, "task", 0, "task ID 1-3 (required)")
	cmd.MarkFlagRequired("discussion")
	cmd.MarkFlagRequired("task")
	return cmd
}

func newConsensusSetCmd() *cobra.Command {
	var (
		configPath   string
		discussionID string
		taskID       int
		dataJSON     string
		dataFile     string
		stars        int
		comment      string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Manually set (override) the consensus for a task",
		Long:  "Replaces any existing consensus wholesale and advances the task state machine. The record is tagged with the override author.",
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
			cons, err := consensus.CreateOrOverride(gormDB, discussionID, taskID, data, stars, comment, models.AuthorOverride)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consensus set for %s task %d (author %s)\n",
				cons.DiscussionID, cons.TaskID, cons.AuthorID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().StringVar(&discussionID, "discussion", "", "discussion ID (required)")
	cmd.Flags().IntVar(&taskID, "task", 0, "task ID 1-3 (required)")
	cmd.Flags().StringVar(&dataJSON, "data", "{}", "consensus data as inline JSON")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "file containing consensus data JSON")
	cmd.Flags().IntVar(&stars, "stars", 0, "quality star rating")
	cmd.Flags().StringVar(&comment, "comment", "", "quality comment")
	cmd.MarkFlagRequired("discussion")
	cmd.MarkFlagRequired("task")
	return cmd
}

func newConsensusAutoCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Auto-create consensus for every task at or above the agreement threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if threshold == 0 {
				threshold = cfg.Consensus.AutoThreshold
			}

			result, err := consensus.AutoCreate(gormDB, consensus.AutoCreateOpts{
				DryRun:    dryRun,
				Threshold: threshold,
				Out:       cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Dry run: %d candidates at or above %.1f%%\n", len(result.Candidates), result.Threshold)
				for _, cand := range result.Candidates {
					fmt.Fprintf(out, "  %s task %d: %.1f%%\n", cand.DiscussionID, cand.TaskID, cand.AgreementRate)
				}
			} else {
				fmt.Fprintf(out, "Created %d consensus records\n", result.SuccessfulCreations)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute candidates without writing")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "agreement threshold percent (default from config)")
	return cmd
}
