// Package retention prunes old accounting rows and rotated log files on a
// cron schedule.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coagents/aguid/internal/config"
	"github.com/coagents/aguid/internal/logging"
	"github.com/coagents/aguid/internal/storage"
)

// Start schedules the retention job and runs it once immediately. The
// returned stop function blocks until any in-flight job finishes.
func Start(ctx context.Context, cfg *config.Config, db *storage.Database) (func(), error) {
	c := cron.New()

	job := func() { runOnce(cfg, db) }

	if _, err := c.AddFunc(cfg.RetentionCron, job); err != nil {
		return nil, fmt.Errorf("scheduling retention (%q): %w", cfg.RetentionCron, err)
	}

	c.Start()
	go job()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return func() { <-c.Stop().Done() }, nil
}

func runOnce(cfg *config.Config, db *storage.Database) {
	cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays).Format(time.RFC3339)
	pruned, err := db.PruneBefore(cutoff)
	if err != nil {
		log.Printf("[retention] prune failed: %v", err)
	} else if pruned > 0 {
		log.Printf("[retention] pruned %d rows older than %s", pruned, cutoff)
	}

	logging.CleanupDir(cfg.LogsDir(), cfg.LogMaxAgeDays)
}
