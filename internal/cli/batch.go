package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze many subjects from a file in parallel",
	Long: `Batch analyzes every subject listed in a file (one per line, # comments
allowed, leading @ optional). Subjects run in parallel; one failing subject
does not stop the others.

Example:
  veracity batch subjects.txt
  veracity batch subjects.txt --concurrency 4 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "subjects analyzed in parallel (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().StringVar(&timeRange, "time-range", "", "harvest window: lastWeek, lastMonth, lastYear, allTime")
	batchCmd.Flags().StringSliceVar(&sources, "sources", nil, "restrict evidence to these journals (repeatable)")
	batchCmd.Flags().StringVar(&notes, "notes", "", "free-text steering appended to the comparison prompt")
	batchCmd.Flags().IntVar(&maxItems, "max-items", 0, "cap on statements analyzed per subject")
	batchCmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort a subject's run on its first failed statement")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "statements analyzed in parallel per subject")
}

// subjectRunner adapts the pipeline to worker.RunFunc
func subjectRunner(p *pipeline.Pipeline, run model.RunConfig) worker.RunFunc {
	return func(ctx context.Context, subjectID string) (int, error) {
		if run.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, run.Timeout)
			defer cancel()
		}
		report, err := p.Run(ctx, runRequest(run, subjectID))
		if err != nil {
			return 0, err
		}
		return len(report.Claims), nil
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Subjects = concurrency
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	st, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p, err := newPipeline(cfg, st, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veracity Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Subjects:     %d in parallel\n", cfg.Concurrency.Subjects)
	fmt.Fprintf(os.Stderr, "  Provider:     %s/%s\n", cfg.Inference.Provider, cfg.Inference.Model)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(subjectRunner(p, cfg.Run), cfg.Concurrency.Subjects)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.SubjectID, result.Error)
			logger.Debug("subject failed", zap.String("subject", result.SubjectID), zap.Error(result.Error))
			continue
		}
		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d claims)\n", result.SubjectID, result.Claims)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d subjects\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
