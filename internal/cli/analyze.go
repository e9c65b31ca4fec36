package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
)

var (
	timeRange  string
	sources    []string
	notes      string
	maxItems   int
	failFast   bool
	runTimeout time.Duration
	workers    int
	jsonOut    bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <subject>",
	Short: "Analyze one subject's recent statements and store the verdicts",
	Long: `Analyze harvests a subject's statements and runs each one through the
verification chain:
- Drop statements outside the configured topic
- Extract the single checkable claim
- Search the literature (when sources are given)
- Compare, categorize, classify and score the claim

The surviving claims replace whatever was stored for the subject before.

Example:
  veracity analyze drsun
  veracity analyze @drsun --time-range lastMonth --sources "The Lancet" --sources BMJ
  veracity analyze drsun --notes "focus on dosage claims" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&timeRange, "time-range", "", "harvest window: lastWeek, lastMonth, lastYear, allTime (default from config)")
	analyzeCmd.Flags().StringSliceVar(&sources, "sources", nil, "restrict evidence to these journals (repeatable)")
	analyzeCmd.Flags().StringVar(&notes, "notes", "", "free-text steering appended to the comparison prompt")
	analyzeCmd.Flags().IntVar(&maxItems, "max-items", 0, "cap on statements analyzed (default from config)")
	analyzeCmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort the run on the first failed statement")
	analyzeCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall run timeout (default from config)")
	analyzeCmd.Flags().IntVar(&workers, "workers", 0, "statements analyzed in parallel (default from config)")
	analyzeCmd.Flags().BoolVar(&jsonOut, "json", false, "print the stored claims as JSON")
}

// applyRunFlags overrides the configured run defaults with flags the user set
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) error {
	flags := cmd.Flags()
	if flags.Changed("time-range") {
		tr, ok := model.ParseTimeRange(timeRange)
		if !ok {
			return fmt.Errorf("invalid --time-range %q (lastWeek, lastMonth, lastYear, allTime)", timeRange)
		}
		cfg.Run.TimeRange = tr
	}
	if flags.Changed("sources") {
		cfg.Run.Sources = sources
	}
	if flags.Changed("notes") {
		cfg.Run.Notes = notes
	}
	if flags.Changed("max-items") {
		cfg.Run.MaxItems = maxItems
	}
	if flags.Changed("fail-fast") {
		cfg.Run.FailFast = failFast
	}
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Run.Timeout = runTimeout
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Run.Timeout)
		defer cancel()
	}

	st, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p, err := newPipeline(cfg, st, logger)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "Window:    %s\n", cfg.Run.TimeRange)
		fmt.Fprintf(os.Stderr, "Provider:  %s/%s\n", cfg.Inference.Provider, cfg.Inference.Model)
		fmt.Fprintln(os.Stderr)
	}

	report, err := p.Run(ctx, runRequest(cfg.Run, args[0]))
	if err != nil {
		if errors.Is(err, model.ErrPersistenceFailure) {
			return fmt.Errorf("analysis finished but could not be saved: %w", err)
		}
		return fmt.Errorf("analyze failed: %w", err)
	}

	for _, f := range report.Failed {
		logger.Warn("statement excluded", zap.Int("index", f.Index), zap.Error(f.Err))
	}

	if jsonOut {
		return writeJSON(os.Stdout, report.Claims)
	}

	printReport(report)
	return nil
}

func printReport(r *pipeline.RunReport) {
	fmt.Fprintf(os.Stderr, "✓ Harvested %d statements, analyzed %d\n", r.Harvested, r.Processed)
	fmt.Fprintf(os.Stderr, "✓ Discarded %d off-topic, %d failed\n", r.Discarded, len(r.Failed))
	fmt.Fprintf(os.Stderr, "✓ Stored %d claims for %s (run %s, %s)\n", len(r.Claims), r.SubjectID, r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintln(os.Stderr)

	if len(r.Claims) > 0 {
		fmt.Println(claimsTable(r.Claims, shouldColorize(os.Stdout)))
	}
}
