package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/worker"
)

var watchNow bool

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze the configured subjects on a cron schedule",
	Long: `Watch keeps running and re-analyzes watch.subjects every time
watch.schedule fires. Only one watcher may run per lock file.

Example:
  veracity watch
  veracity watch --now`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchNow, "now", false, "run once immediately before waiting for the schedule")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if len(cfg.Watch.Subjects) == 0 {
		return fmt.Errorf("watch.subjects is empty; nothing to watch")
	}

	if dir := filepath.Dir(cfg.Watch.LockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
	}
	lock := flock.New(cfg.Watch.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire watch lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another watcher holds %s", cfg.Watch.LockPath)
	}
	defer func() { _ = lock.Unlock() }()

	st, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p, err := newPipeline(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := worker.NewBatchProcessor(subjectRunner(p, cfg.Run), cfg.Concurrency.Subjects)
	sweep := func(ctx context.Context) {
		for _, r := range processor.ProcessSubjects(ctx, cfg.Watch.Subjects) {
			if r.Error != nil {
				logger.Warn("scheduled analysis failed", zap.String("subject", r.SubjectID), zap.Error(r.Error))
				continue
			}
			logger.Info("scheduled analysis stored", zap.String("subject", r.SubjectID), zap.Int("claims", r.Claims))
		}
	}

	sched, err := worker.NewScheduler(cfg.Watch.Timezone, logger.Named("watch"))
	if err != nil {
		return err
	}
	// the scheduler hands tasks a background context; tie them to ours
	if err := sched.Add(cfg.Watch.Schedule, "reanalyze", func(context.Context) { sweep(ctx) }); err != nil {
		return err
	}

	if watchNow {
		sweep(ctx)
	}

	sched.Start()
	fmt.Fprintf(os.Stderr, "Watching %d subjects (%s), next run %s\n",
		len(cfg.Watch.Subjects), cfg.Watch.Schedule, updatedAgo(sched.Next()))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}
