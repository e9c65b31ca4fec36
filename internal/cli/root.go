package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/veracity/internal/model"
)

const version = "veracity v0.1.0"

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veracity",
	Short: "Veracity - evidence-grounded credibility checks for public statements",
	Long: `Veracity harvests a subject's public statements, extracts the checkable
claim in each one, cross-references it against the literature and records a
verdict and trust score per claim.

Subjects are then ranked on a leaderboard by their average trust score.

Verdicts are produced by a language model and are only as good as the
evidence it was shown.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veracity/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".veracity"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureEnv maps VERACITY_INFERENCE_PROVIDER to inference.provider and so on
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("VERACITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig layers the config file and environment over the defaults
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	bindEnvKeys(v)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Inference.APIKey == "" {
		cfg.Inference.APIKey = apiKeyFromEnv(cfg.Inference.Provider)
	}
	if cfg.Inference.Provider == "ollama" && cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if _, ok := model.ParseTimeRange(string(cfg.Run.TimeRange)); !ok {
		return nil, fmt.Errorf("invalid run.time_range %q (lastWeek, lastMonth, lastYear, allTime)", cfg.Run.TimeRange)
	}
	return cfg, nil
}

// bindEnvKeys registers the nested keys so AutomaticEnv sees them during
// Unmarshal even when no config file sets them
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"http.timeout", "http.user_agent", "http.http_proxy", "http.https_proxy", "http.no_proxy",
		"inference.provider", "inference.model", "inference.api_key", "inference.base_url",
		"inference.timeout", "inference.max_tokens", "inference.temperature", "inference.topic",
		"evidence.base_url", "evidence.respect_robots",
		"harvest.source", "harvest.fixture_path", "harvest.profile_url", "harvest.headless", "harvest.control_url",
		"run.time_range", "run.max_items", "run.fail_fast", "run.retries", "run.timeout",
		"concurrency.workers", "concurrency.subjects",
		"rate_limiting.inference_rps", "rate_limiting.evidence_rps", "rate_limiting.burst_size",
		"cache.enabled", "cache.dir",
		"store.driver", "store.path",
		"watch.schedule", "watch.timezone", "watch.lock_path",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case "gemini", "google", "":
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
