// Package ingest creates discussions from exported GitHub discussion
// records, optionally enriching them with repository metadata.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/task"
	"gorm.io/gorm"
)

// Record is one discussion to ingest, as exported upstream (JSONL).
type Record struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Repository   string `json:"repository"` // "owner/name"
	QuestionBody string `json:"question_body"`
	BatchID      string `json:"batch_id"`
}

// FromJSONL parses newline-delimited JSON records. Blank lines are skipped.
func FromJSONL(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("ingest: line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan: %w", err)
	}
	return records, nil
}

// Meta is repository metadata attached to a discussion at ingestion.
type Meta struct {
	Language string
	Release  string
}

// Enricher supplies repository metadata for a "owner/name" slug.
type Enricher interface {
	Enrich(ctx context.Context, repository string) (Meta, error)
}

// Result summarizes an ingestion run.
type Result struct {
	Created int
	Skipped int
	Errors  []string
}

// Ingest creates a discussion (with its three task slots) per record.
// Records whose ID already exists are skipped; enrichment failures are
// logged and non-fatal. Per-record failures never abort the run.
func Ingest(ctx context.Context, db *gorm.DB, records []Record, enricher Enricher) (*Result, error) {
	result := &Result{}
	for _, rec := range records {
		if rec.ID == "" || rec.Title == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v: id and title are required", rec.ID, faults.ErrMalformedInput))
			continue
		}

		if _, err := task.GetDiscussion(db, rec.ID); err == nil {
			result.Skipped++
			continue
		}

		meta := Meta{}
		if enricher != nil && rec.Repository != "" {
			m, err := enricher.Enrich(ctx, rec.Repository)
			if err != nil {
				log.Printf("ingest: enrich %s: %v", rec.Repository, err)
			} else {
				meta = m
			}
		}

		_, err := task.CreateDiscussion(db, task.CreateOpts{
			ID:           rec.ID,
			Title:        rec.Title,
			URL:          rec.URL,
			Repository:   rec.Repository,
			Language:     meta.Language,
			Release:      meta.Release,
			QuestionBody: rec.QuestionBody,
			BatchID:      rec.BatchID,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
			continue
		}
		result.Created++
	}
	return result, nil
}
