package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
)

var leaderboardJSON bool

// leaderboardCmd represents the leaderboard command
var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rank every analyzed subject by average trust score",
	Long: `Leaderboard recomputes the ranking from the stored analyses. Subjects
with no stored claims have no average and are listed last; equal averages
are ordered by subject id.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		st, err := openStore(cfg.Store, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		entries, err := score.NewAggregator(st).Rank(context.Background())
		if err != nil {
			return err
		}

		if leaderboardJSON {
			return writeJSON(os.Stdout, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No subjects analyzed yet. Run 'veracity analyze <subject>' first.")
			return nil
		}
		fmt.Println(leaderboardTable(entries))
		return nil
	},
}

var subjectJSON bool

// subjectCmd represents the subject command
var subjectCmd = &cobra.Command{
	Use:   "subject <id>",
	Short: "Show a subject's stored analysis and leaderboard position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		st, err := openStore(cfg.Store, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		return showSubject(context.Background(), st, normalizeSubject(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(subjectCmd)

	leaderboardCmd.Flags().BoolVar(&leaderboardJSON, "json", false, "print entries as JSON")
	subjectCmd.Flags().BoolVar(&subjectJSON, "json", false, "print the analysis and entry as JSON")
}

type subjectView struct {
	Entry    model.LeaderboardEntry `json:"entry"`
	Analysis *model.SubjectAnalysis `json:"analysis"`
}

func showSubject(ctx context.Context, st store.Store, subjectID string) error {
	analysis, err := st.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("subject %s has not been analyzed: %w", subjectID, err)
		}
		return err
	}

	entry, err := score.NewAggregator(st).RankSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	if subjectJSON {
		return writeJSON(os.Stdout, subjectView{Entry: entry, Analysis: analysis})
	}

	fmt.Printf("%s (%s)\n", entry.Name, entry.SubjectID)
	fmt.Printf("  Rank:       #%d\n", entry.Rank)
	fmt.Printf("  Trust:      %s\n", formatAverage(entry))
	fmt.Printf("  Claims:     %d\n", entry.VerifiedClaimsCount)
	fmt.Printf("  Followers:  %s\n", entry.FollowersCount)
	fmt.Printf("  Updated:    %s\n", updatedAgo(analysis.UpdatedAt))
	fmt.Println()
	if len(analysis.Claims) > 0 {
		fmt.Println(claimsTable(analysis.Claims, shouldColorize(os.Stdout)))
	}
	return nil
}

func normalizeSubject(id string) string {
	if len(id) > 0 && id[0] == '@' {
		return id[1:]
	}
	return id
}
