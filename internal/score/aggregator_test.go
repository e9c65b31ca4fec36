package score

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
)

func claim(author, score, categories string) model.ClaimRecord {
	return model.ClaimRecord{
		Item: model.RawItem{
			Author:         author,
			ProfileImage:   "https://img.example/" + author + ".png",
			FollowersCount: "1K",
		},
		Statement:  "s",
		Categories: categories,
		TrustScore: score,
	}
}

func seed(t *testing.T, analyses ...*model.SubjectAnalysis) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	for _, a := range analyses {
		if err := s.Replace(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestRank_HigherAverageFirst(t *testing.T) {
	s := seed(t,
		&model.SubjectAnalysis{SubjectID: "eighty", Claims: []model.ClaimRecord{claim("Eighty", "70", ""), claim("Eighty", "90", "")}},
		&model.SubjectAnalysis{SubjectID: "ninety", Claims: []model.ClaimRecord{claim("Ninety", "90", ""), claim("Ninety", "95", "")}},
	)

	entries, err := NewAggregator(s).Rank(context.Background())
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].SubjectID != "ninety" || entries[0].AverageTrustScore != "92.50" || entries[0].Rank != 1 {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].SubjectID != "eighty" || entries[1].AverageTrustScore != "80.00" || entries[1].Rank != 2 {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}

func TestSummarize(t *testing.T) {
	analysis := &model.SubjectAnalysis{
		SubjectID: "drsun",
		Claims: []model.ClaimRecord{
			claim("Dr. Sun", "55", "Mental Health, Nutrition"),
			claim("Dr. Sun (renamed)", "not a number", "Nutrition,Medicine"),
			claim("Dr. Sun", "NaN", " , Mental Health"),
		},
	}

	got := Summarize(analysis)
	want := model.LeaderboardEntry{
		SubjectID:           "drsun",
		AverageTrustScore:   "18.33",
		Categories:          []string{"Mental Health", "Nutrition", "Medicine"},
		Name:                "Dr. Sun",
		ProfileImage:        "https://img.example/Dr. Sun.png",
		FollowersCount:      "1K",
		VerifiedClaimsCount: 3,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_NoClaimsHasNoAverage(t *testing.T) {
	got := Summarize(&model.SubjectAnalysis{SubjectID: "quiet"})
	if got.HasAverage() {
		t.Errorf("expected undefined average, got %q", got.AverageTrustScore)
	}
	if got.VerifiedClaimsCount != 0 {
		t.Errorf("expected 0 claims, got %d", got.VerifiedClaimsCount)
	}
	if got.Categories == nil || len(got.Categories) != 0 {
		t.Errorf("expected empty, non-nil categories, got %#v", got.Categories)
	}
}

func TestSort_UndefinedLastAndTiesById(t *testing.T) {
	entries := []model.LeaderboardEntry{
		{SubjectID: "zoe", AverageTrustScore: "50.00"},
		{SubjectID: "empty"},
		{SubjectID: "amy", AverageTrustScore: "50.00"},
		{SubjectID: "top", AverageTrustScore: "99.10"},
		{SubjectID: "also-empty"},
	}
	Sort(entries)

	var ids []string
	for i, e := range entries {
		ids = append(ids, e.SubjectID)
		if e.Rank != i+1 {
			t.Errorf("entry %s has rank %d, want %d", e.SubjectID, e.Rank, i+1)
		}
	}
	want := []string{"top", "amy", "zoe", "also-empty", "empty"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_VerifiedCountMatchesClaims(t *testing.T) {
	s := seed(t,
		&model.SubjectAnalysis{SubjectID: "a", Claims: []model.ClaimRecord{claim("A", "10", ""), claim("A", "x", "")}},
		&model.SubjectAnalysis{SubjectID: "b", Claims: []model.ClaimRecord{claim("B", "40", "")}},
	)
	entries, err := NewAggregator(s).Rank(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		all, _ := s.Get(context.Background(), e.SubjectID)
		if e.VerifiedClaimsCount != len(all.Claims) {
			t.Errorf("%s: count %d, claims %d", e.SubjectID, e.VerifiedClaimsCount, len(all.Claims))
		}
	}
	if entries[0].SubjectID != "b" {
		t.Errorf("expected b (40.00) before a (5.00), got %s", entries[0].SubjectID)
	}
}

func TestRankSubject(t *testing.T) {
	s := seed(t,
		&model.SubjectAnalysis{SubjectID: "low", Claims: []model.ClaimRecord{claim("Low", "10", "")}},
		&model.SubjectAnalysis{SubjectID: "high", Claims: []model.ClaimRecord{claim("High", "90", "")}},
	)
	agg := NewAggregator(s)

	e, err := agg.RankSubject(context.Background(), "low")
	if err != nil {
		t.Fatalf("RankSubject: %v", err)
	}
	if e.Rank != 2 || e.AverageTrustScore != "10.00" {
		t.Errorf("unexpected entry %+v", e)
	}

	_, err = agg.RankSubject(context.Background(), "ghost")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseTrustScore(t *testing.T) {
	tests := map[string]float64{
		"55":    55,
		" 72.5": 72.5,
		"":      0,
		"high":  0,
		"NaN":   0,
		"+Inf":  0,
		"88/100": 0,
	}
	for in, want := range tests {
		if got := ParseTrustScore(in); got != want {
			t.Errorf("ParseTrustScore(%q) = %v, want %v", in, got, want)
		}
	}
}
