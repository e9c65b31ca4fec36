package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

var fastRetry = WithRetry(RetryPolicy{Attempts: 2, Sleep: noSleep})

func TestAnalyze_FullChainWithoutEvidence(t *testing.T) {
	llm := newScriptedLLM().on("Vitamin D improves mood", answers{
		relevance:  "YES",
		statement:  "Vitamin D improves mood",
		analysis:   "Partly supported by trials.",
		categories: "Mental Health",
		status:     "Questionable",
		score:      "55",
	})
	search := &fakeSearcher{}
	a := NewAnalyzer(llm, search, "health", fastRetry)

	rec, kept, err := a.Analyze(context.Background(), item("Vitamin D improves mood"), nil, "")
	require.NoError(t, err)
	require.True(t, kept)

	want := model.ClaimRecord{
		Item:       item("Vitamin D improves mood"),
		Statement:  "Vitamin D improves mood",
		AIAnalysis: "Partly supported by trials.",
		Categories: "Mental Health",
		Status:     model.StatusQuestionable,
		TrustScore: "55",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 0, search.calls, "no sources means no evidence search")
	assert.Equal(t, []string{"relevance", "statement", "comparison", "categories", "status", "score"}, llm.kinds())
	assert.True(t, strings.HasPrefix(llm.lastPrompt("comparison"), "Analyse whether"))
}

func TestAnalyze_NegativeRelevanceDiscards(t *testing.T) {
	for _, answer := range []string{"NO", "no", " \"No.\" ", "NO!"} {
		t.Run(answer, func(t *testing.T) {
			llm := newScriptedLLM().on("Great match last night", answers{relevance: answer})
			a := NewAnalyzer(llm, &fakeSearcher{}, "health", fastRetry)

			rec, kept, err := a.Analyze(context.Background(), item("Great match last night"), []string{"BMJ"}, "")
			require.NoError(t, err)
			assert.False(t, kept)
			assert.Equal(t, model.ClaimRecord{}, rec)
			assert.Equal(t, []string{"relevance"}, llm.kinds())
		})
	}
}

func TestAnalyze_NotNegativeIsRelevant(t *testing.T) {
	llm := newScriptedLLM().on("Cold showers boost immunity", answers{
		relevance: "Not sure", statement: "Cold showers boost immunity", score: "40",
	})
	a := NewAnalyzer(llm, &fakeSearcher{}, "health", fastRetry)

	_, kept, err := a.Analyze(context.Background(), item("Cold showers boost immunity"), nil, "")
	require.NoError(t, err)
	assert.True(t, kept)
}

func TestAnalyze_EmptyStatementKeepsRecord(t *testing.T) {
	llm := newScriptedLLM().on("Feeling great today", answers{relevance: "YES", statement: "   "})
	search := &fakeSearcher{}
	a := NewAnalyzer(llm, search, "health", fastRetry)

	rec, kept, err := a.Analyze(context.Background(), item("Feeling great today"), []string{"BMJ"}, "notes")
	require.NoError(t, err)
	require.True(t, kept)

	assert.Equal(t, item("Feeling great today"), rec.Item)
	assert.Empty(t, rec.Statement)
	assert.Empty(t, rec.AIAnalysis)
	assert.Empty(t, rec.Categories)
	assert.Empty(t, rec.Status)
	assert.Empty(t, rec.TrustScore)
	assert.Nil(t, rec.Citations)
	assert.Equal(t, 0, search.calls)
	assert.Equal(t, []string{"relevance", "statement"}, llm.kinds())
}

func TestAnalyze_EvidenceBranch(t *testing.T) {
	cites := []model.Citation{{Title: "Trial", Authors: "BMJ - 2021", Journal: "BMJ", Year: "2021", Link: "https://bmj.example/1"}}
	llm := newScriptedLLM().on("Omega-3 protects the heart", answers{
		relevance:  "YES",
		statement:  "Omega-3 lowers cardiac risk",
		analysis:   "Matches the BMJ trial.",
		categories: "Nutrition, Cardiology",
		status:     "Verified",
		score:      "Score: 88/100",
	})
	search := &fakeSearcher{citations: cites}
	a := NewAnalyzer(llm, search, "health", fastRetry)

	rec, kept, err := a.Analyze(context.Background(), item("Omega-3 protects the heart"), []string{"BMJ"}, "focus on RCTs")
	require.NoError(t, err)
	require.True(t, kept)

	assert.Equal(t, 1, search.calls)
	assert.Equal(t, []string{"BMJ"}, search.lastQuery)
	assert.Equal(t, cites, rec.Citations)
	assert.Equal(t, "88", rec.TrustScore)

	cmpPrompt := llm.lastPrompt("comparison")
	assert.True(t, strings.HasPrefix(cmpPrompt, "Compare this statement"))
	assert.Contains(t, cmpPrompt, "https://bmj.example/1")
	assert.True(t, strings.HasSuffix(cmpPrompt, "Also focus on RCTs"))
}

func TestAnalyze_EmptySearchStillUsesEvidenceBranch(t *testing.T) {
	llm := newScriptedLLM().on("Garlic cures colds", answers{
		relevance: "YES", statement: "Garlic cures colds", analysis: "No evidence found.", status: "Debunked", score: "10",
	})
	a := NewAnalyzer(llm, &fakeSearcher{}, "health", fastRetry)

	rec, kept, err := a.Analyze(context.Background(), item("Garlic cures colds"), []string{"Nature"}, "")
	require.NoError(t, err)
	require.True(t, kept)
	assert.Empty(t, rec.Citations)
	assert.True(t, strings.HasPrefix(llm.lastPrompt("comparison"), "Compare this statement"))
}

func TestAnalyze_StatusSurfacedVerbatim(t *testing.T) {
	llm := newScriptedLLM().on("Sugar is poison", answers{
		relevance: "YES", statement: "Sugar is poison", status: "Mostly false", score: "n/a",
	})
	a := NewAnalyzer(llm, &fakeSearcher{}, "health", fastRetry)

	rec, _, err := a.Analyze(context.Background(), item("Sugar is poison"), nil, "")
	require.NoError(t, err)
	assert.Equal(t, model.Status("Mostly false"), rec.Status)
	assert.False(t, rec.Status.Known())
	assert.Equal(t, "n/a", rec.TrustScore)
}

func TestAnalyze_EvidenceFailureFailsItem(t *testing.T) {
	llm := newScriptedLLM().on("Zinc prevents flu", answers{relevance: "YES", statement: "Zinc prevents flu"})
	search := &fakeSearcher{failFor: "Zinc prevents flu", failures: -1}
	a := NewAnalyzer(llm, search, "health", fastRetry)

	_, kept, err := a.Analyze(context.Background(), item("Zinc prevents flu"), []string{"BMJ"}, "")
	assert.False(t, kept)
	assert.True(t, errors.Is(err, model.ErrEvidenceUnavailable))
	assert.Contains(t, err.Error(), "evidence_search")
	assert.Equal(t, 2, search.calls, "retried once")
}

func TestAnalyze_EvidenceRecoversOnRetry(t *testing.T) {
	llm := newScriptedLLM().on("Zinc prevents flu", answers{relevance: "YES", statement: "Zinc prevents flu", score: "30"})
	search := &fakeSearcher{failFor: "Zinc prevents flu", failures: 1}
	a := NewAnalyzer(llm, search, "health", fastRetry)

	_, kept, err := a.Analyze(context.Background(), item("Zinc prevents flu"), []string{"BMJ"}, "")
	require.NoError(t, err)
	assert.True(t, kept)
}

func TestAnalyze_InferenceFailureFailsItem(t *testing.T) {
	llm := newScriptedLLM().on("Fasting resets hormones", answers{relevance: "YES", statement: "Fasting resets hormones", failOn: "status"})
	a := NewAnalyzer(llm, &fakeSearcher{}, "health", fastRetry)

	_, kept, err := a.Analyze(context.Background(), item("Fasting resets hormones"), nil, "")
	assert.False(t, kept)
	assert.True(t, errors.Is(err, model.ErrInferenceUnreachable))
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAnalyzer(newScriptedLLM(), &fakeSearcher{}, "health", fastRetry)
	_, kept, err := a.Analyze(ctx, item("anything"), nil, "")
	assert.False(t, kept)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNormalizeTrustScore(t *testing.T) {
	tests := map[string]string{
		"55":             "55",
		" 72 \n":         "72",
		"Score: 88/100":  "88",
		"150":            "100",
		"-5":             "0",
		"about 64.5":     "64",
		"unknown":        "unknown",
		"":               "",
		"99999999999999999999": "100",
		"On a 0-100 scale: 72":  "72",
		"0 to 100, I'd say 41":  "41",
		"72 out of 100":         "72",
		"100/100":               "100",
	}
	for in, want := range tests {
		if got := normalizeTrustScore(in); got != want {
			t.Errorf("normalizeTrustScore(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := p.do(context.Background(), func() error {
		calls++
		return model.ErrInferenceUnreachable
	})

	assert.True(t, errors.Is(err, model.ErrInferenceUnreachable))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryPolicy_NonTransportErrorsAreNotRetried(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Sleep: noSleep}
	calls := 0
	err := p.do(context.Background(), func() error {
		calls++
		return errors.New("bad prompt")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_StopsOnCancelledSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Attempts: 3, BaseDelay: time.Hour}

	calls := 0
	go cancel()
	err := p.do(ctx, func() error {
		calls++
		return model.ErrEvidenceUnavailable
	})
	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}
