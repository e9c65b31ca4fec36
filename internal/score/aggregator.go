// Package score derives the leaderboard from persisted analyses. Nothing it
// computes is stored.
package score

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Source lists persisted analyses in first-stored order
type Source interface {
	GetAll(ctx context.Context) ([]*model.SubjectAnalysis, error)
}

// Aggregator ranks subjects by average trust score
type Aggregator struct {
	src Source
}

// NewAggregator creates an aggregator over src
func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Rank returns every subject, best average first. Subjects without claims
// have no average and sort last. Equal averages are ordered by subject id.
func (a *Aggregator) Rank(ctx context.Context) ([]model.LeaderboardEntry, error) {
	all, err := a.src.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(all))
	for _, analysis := range all {
		entries = append(entries, Summarize(analysis))
	}
	Sort(entries)
	return entries, nil
}

// RankSubject returns one subject's entry with its position in the full
// leaderboard
func (a *Aggregator) RankSubject(ctx context.Context, subjectID string) (model.LeaderboardEntry, error) {
	entries, err := a.Rank(ctx)
	if err != nil {
		return model.LeaderboardEntry{}, err
	}
	for _, e := range entries {
		if e.SubjectID == subjectID {
			return e, nil
		}
	}
	return model.LeaderboardEntry{}, fmt.Errorf("%w: subject %q", model.ErrNotFound, subjectID)
}

// Summarize projects one analysis onto a leaderboard entry. Rank is left 0.
func Summarize(analysis *model.SubjectAnalysis) model.LeaderboardEntry {
	entry := model.LeaderboardEntry{
		SubjectID:           analysis.SubjectID,
		Categories:          mergeCategories(analysis.Claims),
		VerifiedClaimsCount: len(analysis.Claims),
	}

	if len(analysis.Claims) == 0 {
		return entry
	}

	// every claim carries the profile; the first one is authoritative
	first := analysis.Claims[0].Item
	entry.Name = first.Author
	entry.ProfileImage = first.ProfileImage
	entry.FollowersCount = first.FollowersCount

	var sum float64
	for _, c := range analysis.Claims {
		sum += ParseTrustScore(c.TrustScore)
	}
	entry.AverageTrustScore = strconv.FormatFloat(sum/float64(len(analysis.Claims)), 'f', 2, 64)

	return entry
}

// ParseTrustScore reads a stored trust score. Anything that is not a finite
// number counts as 0 so it still weighs on the average.
func ParseTrustScore(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Sort orders entries for display and assigns 1-based ranks
func Sort(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ai, iok := average(entries[i])
		aj, jok := average(entries[j])
		if iok != jok {
			return iok
		}
		if iok && ai != aj {
			return ai > aj
		}
		return entries[i].SubjectID < entries[j].SubjectID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func average(e model.LeaderboardEntry) (float64, bool) {
	if !e.HasAverage() {
		return 0, false
	}
	v, err := strconv.ParseFloat(e.AverageTrustScore, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func mergeCategories(claims []model.ClaimRecord) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, c := range claims {
		for _, label := range strings.Split(c.Categories, ",") {
			label = strings.TrimSpace(label)
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}
