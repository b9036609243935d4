package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coagents/aguid/internal/config"
	"github.com/coagents/aguid/internal/storage"
)

func TestStartPrunesImmediately(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.RetentionDays = 30
	cfg.LogMaxAgeDays = 30

	db, err := storage.Open(cfg.DBPath())
	require.NoError(t, err)
	defer db.Close()

	old := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339)
	require.NoError(t, db.RecordRun(storage.RunRecord{
		RunID: "ancient", ThreadID: "t", Status: "completed", CreatedAt: old,
	}))
	require.NoError(t, db.RecordRun(storage.RunRecord{
		RunID: "fresh", ThreadID: "t", Status: "completed",
	}))

	require.NoError(t, os.MkdirAll(cfg.LogsDir(), 0o755))
	expired := filepath.Join(cfg.LogsDir(),
		"aguid-"+time.Now().AddDate(0, 0, -60).Format("2006-01-02-15")+".log")
	require.NoError(t, os.WriteFile(expired, []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := Start(ctx, &cfg, db)
	require.NoError(t, err)
	defer stop()

	// The job runs once at startup; poll for its effects.
	require.Eventually(t, func() bool {
		runs, err := db.ListRecentRuns(10)
		if err != nil || len(runs) != 1 || runs[0].RunID != "fresh" {
			return false
		}
		_, err = os.Stat(expired)
		return os.IsNotExist(err)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.RetentionCron = "not a schedule"

	db, err := storage.Open(cfg.DBPath())
	require.NoError(t, err)
	defer db.Close()

	_, err = Start(context.Background(), &cfg, db)
	require.Error(t, err)
}
