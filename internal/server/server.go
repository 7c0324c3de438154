// Package server exposes the Quorum core operations over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/quorumhq/quorum/internal/notify"
	"github.com/quorumhq/quorum/internal/statusfix"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB   *gorm.DB
	Port int
	// StatusFixSchedule is a 5-field cron expression for periodic apply-mode
	// reconciliation runs. Empty disables scheduling.
	StatusFixSchedule string
	Notifier          *notify.Notifier
	Out               io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.New()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts.DB, opts.Notifier)

	var sched *cron.Cron
	if opts.StatusFixSchedule != "" {
		sched = cron.New()
		_, err := sched.AddFunc(opts.StatusFixSchedule, func() {
			result, err := statusfix.Run(opts.DB, statusfix.Opts{DryRun: false})
			if err != nil {
				log.Printf("server: scheduled status fix: %v", err)
				return
			}
			if result.Summary.Updated > 0 || len(result.Errors) > 0 {
				opts.Notifier.Send(context.Background(), notify.StatusFixEvent(result))
			}
		})
		if err != nil {
			return fmt.Errorf("server: bad statusfix schedule %q: %w", opts.StatusFixSchedule, err)
		}
		sched.Start()
		defer sched.Stop()
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Quorum API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
