package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
)

func newTestPipeline(llm Completer, search EvidenceSearcher, h Harvester, s store.Store) *Pipeline {
	a := NewAnalyzer(llm, search, "health", fastRetry)
	return NewPipeline(h, a, s, WithWorkers(3))
}

func TestRun_ScenarioSingleRelevantItem(t *testing.T) {
	llm := newScriptedLLM().on("Vitamin D improves mood", answers{
		relevance: "YES", statement: "Vitamin D improves mood", analysis: "Some analysis",
		categories: "Mental Health", status: "Questionable", score: "55",
	})
	h := &fakeHarvester{items: []model.RawItem{item("Vitamin D improves mood")}}
	s := store.NewMemory()

	report, err := newTestPipeline(llm, &fakeSearcher{}, h, s).Run(context.Background(), RunRequest{SubjectID: "drsun"})
	require.NoError(t, err)
	require.Len(t, report.Claims, 1)

	got := report.Claims[0]
	assert.Equal(t, "Vitamin D improves mood", got.Statement)
	assert.Equal(t, "Some analysis", got.AIAnalysis)
	assert.Equal(t, "Mental Health", got.Categories)
	assert.Equal(t, model.StatusQuestionable, got.Status)
	assert.Equal(t, "55", got.TrustScore)
	assert.Equal(t, model.TimeRangeLastWeek, h.window)

	stored, err := s.Get(context.Background(), "drsun")
	require.NoError(t, err)
	assert.Equal(t, report.Claims, stored.Claims)
	assert.Equal(t, report.RunID, stored.RunID)
	assert.NotEmpty(t, report.RunID)
}

func TestRun_ScenarioIrrelevantItemPersistsEmptyList(t *testing.T) {
	llm := newScriptedLLM().on("Great match last night", answers{relevance: "NO"})
	h := &fakeHarvester{items: []model.RawItem{item("Great match last night")}}
	s := store.NewMemory()

	report, err := newTestPipeline(llm, &fakeSearcher{}, h, s).Run(context.Background(), RunRequest{SubjectID: "fan"})
	require.NoError(t, err)
	assert.Empty(t, report.Claims)
	assert.Equal(t, 1, report.Discarded)

	stored, err := s.Get(context.Background(), "fan")
	require.NoError(t, err, "an empty claims list is still written")
	assert.Empty(t, stored.Claims)
}

func TestRun_ScenarioEvidenceOutageIsolatesItem(t *testing.T) {
	llm := newScriptedLLM().
		on("Zinc prevents flu", answers{relevance: "YES", statement: "Zinc prevents flu"}).
		on("Sleep aids recovery", answers{relevance: "YES", statement: "Sleep aids recovery", status: "Verified", score: "90"}).
		on("Walking lowers blood pressure", answers{relevance: "YES", statement: "Walking lowers blood pressure", status: "Verified", score: "80"})
	search := &fakeSearcher{failFor: "Zinc prevents flu", failures: -1}
	h := &fakeHarvester{items: []model.RawItem{
		item("Sleep aids recovery"),
		item("Zinc prevents flu"),
		item("Walking lowers blood pressure"),
	}}
	s := store.NewMemory()

	report, err := newTestPipeline(llm, search, h, s).Run(context.Background(), RunRequest{SubjectID: "coach", Sources: []string{"BMJ"}})
	require.NoError(t, err)

	require.Len(t, report.Claims, 2)
	assert.Equal(t, "Sleep aids recovery", report.Claims[0].Statement)
	assert.Equal(t, "Walking lowers blood pressure", report.Claims[1].Statement)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Index)
	assert.True(t, errors.Is(report.Failed[0].Err, model.ErrEvidenceUnavailable))

	stored, err := s.Get(context.Background(), "coach")
	require.NoError(t, err)
	assert.Len(t, stored.Claims, 2)
}

func TestRun_FailFastAbortsWithoutWriting(t *testing.T) {
	llm := newScriptedLLM().
		on("Zinc prevents flu", answers{relevance: "YES", statement: "Zinc prevents flu"}).
		on("Sleep aids recovery", answers{relevance: "YES", statement: "Sleep aids recovery", score: "90"})
	search := &fakeSearcher{failFor: "Zinc prevents flu", failures: -1}
	h := &fakeHarvester{items: []model.RawItem{item("Zinc prevents flu"), item("Sleep aids recovery")}}
	s := store.NewMemory()

	_, err := newTestPipeline(llm, search, h, s).Run(context.Background(), RunRequest{SubjectID: "coach", Sources: []string{"BMJ"}, FailFast: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrEvidenceUnavailable))

	_, err = s.Get(context.Background(), "coach")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRun_RerunOverwrites(t *testing.T) {
	llm := newScriptedLLM().
		on("Vitamin D improves mood", answers{relevance: "YES", statement: "Vitamin D improves mood", score: "55"}).
		on("Sleep aids recovery", answers{relevance: "YES", statement: "Sleep aids recovery", score: "90"})
	h := &fakeHarvester{items: []model.RawItem{item("Vitamin D improves mood"), item("Sleep aids recovery")}}
	s := store.NewMemory()
	p := newTestPipeline(llm, &fakeSearcher{}, h, s)

	_, err := p.Run(context.Background(), RunRequest{SubjectID: "drsun"})
	require.NoError(t, err)

	h.items = h.items[1:]
	second, err := p.Run(context.Background(), RunRequest{SubjectID: "drsun"})
	require.NoError(t, err)

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.Claims, all[0].Claims)
	assert.Len(t, all[0].Claims, 1)
}

func TestRun_OutputNeverExceedsInput(t *testing.T) {
	relevance := []string{"YES", "NO", "YES", "no", "YES"}
	for n := 0; n <= len(relevance); n++ {
		t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
			llm := newScriptedLLM()
			var items []model.RawItem
			for i := 0; i < n; i++ {
				content := fmt.Sprintf("claim number %d about sleep", i)
				llm.on(content, answers{relevance: relevance[i], statement: content, score: "50"})
				items = append(items, item(content))
			}

			report, err := newTestPipeline(llm, &fakeSearcher{}, &fakeHarvester{items: items}, store.NewMemory()).
				Run(context.Background(), RunRequest{SubjectID: "s"})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(report.Claims), n)
			for _, c := range report.Claims {
				assert.NotEqual(t, "", c.Statement)
			}
		})
	}
}

func TestRun_PreservesHarvestOrder(t *testing.T) {
	llm := newScriptedLLM()
	var items []model.RawItem
	for i := 0; i < 12; i++ {
		content := fmt.Sprintf("ordered statement %02d", i)
		llm.on(content, answers{relevance: "YES", statement: content, score: "50"})
		items = append(items, item(content))
	}

	report, err := newTestPipeline(llm, &fakeSearcher{}, &fakeHarvester{items: items}, store.NewMemory()).
		Run(context.Background(), RunRequest{SubjectID: "s", MaxItems: 12})
	require.NoError(t, err)
	require.Len(t, report.Claims, 12)
	for i, c := range report.Claims {
		assert.Equal(t, fmt.Sprintf("ordered statement %02d", i), c.Statement)
	}
}

func TestRun_CapsAtMaxItems(t *testing.T) {
	llm := newScriptedLLM()
	var items []model.RawItem
	for i := 0; i < 15; i++ {
		content := fmt.Sprintf("capped statement %02d", i)
		llm.on(content, answers{relevance: "YES", statement: content, score: "50"})
		items = append(items, item(content))
	}
	p := newTestPipeline(llm, &fakeSearcher{}, &fakeHarvester{items: items}, store.NewMemory())

	report, err := p.Run(context.Background(), RunRequest{SubjectID: "s"})
	require.NoError(t, err)
	assert.Equal(t, 15, report.Harvested)
	assert.Equal(t, DefaultMaxItems, report.Processed)
	assert.Len(t, report.Claims, DefaultMaxItems)

	report, err = p.Run(context.Background(), RunRequest{SubjectID: "s", MaxItems: 3})
	require.NoError(t, err)
	assert.Len(t, report.Claims, 3)
}

func TestRun_CancellationLeavesStoreUntouched(t *testing.T) {
	llm := newScriptedLLM()
	llm.block = true
	s := store.NewMemory()
	h := &fakeHarvester{items: []model.RawItem{item("a"), item("b")}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestPipeline(llm, &fakeSearcher{}, h, s).Run(ctx, RunRequest{SubjectID: "slow"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

	_, err = s.Get(context.Background(), "slow")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRun_HarvestFailure(t *testing.T) {
	h := &fakeHarvester{err: errors.New("profile page timed out")}
	_, err := newTestPipeline(newScriptedLLM(), &fakeSearcher{}, h, store.NewMemory()).
		Run(context.Background(), RunRequest{SubjectID: "x"})
	assert.True(t, errors.Is(err, model.ErrHarvestUnavailable))
}

func TestRun_PersistenceFailureIsDistinct(t *testing.T) {
	llm := newScriptedLLM().on("Vitamin D improves mood", answers{relevance: "YES", statement: "Vitamin D improves mood"})
	h := &fakeHarvester{items: []model.RawItem{item("Vitamin D improves mood")}}

	_, err := newTestPipeline(llm, &fakeSearcher{}, h, &failingStore{err: errors.New("disk full")}).
		Run(context.Background(), RunRequest{SubjectID: "x"})
	assert.True(t, errors.Is(err, model.ErrPersistenceFailure))
	assert.False(t, errors.Is(err, model.ErrHarvestUnavailable))
}

func TestRun_RequiresSubject(t *testing.T) {
	_, err := newTestPipeline(newScriptedLLM(), &fakeSearcher{}, &fakeHarvester{}, store.NewMemory()).
		Run(context.Background(), RunRequest{SubjectID: "  @ "})
	assert.Error(t, err)
}

func TestRun_StripsAtSign(t *testing.T) {
	s := store.NewMemory()
	_, err := newTestPipeline(newScriptedLLM(), &fakeSearcher{}, &fakeHarvester{}, s).
		Run(context.Background(), RunRequest{SubjectID: "@drsun", TimeRange: model.TimeRangeLastYear})
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "drsun")
	assert.NoError(t, err)
}

func TestRun_BlankSourcesSkipEvidenceSearch(t *testing.T) {
	llm := newScriptedLLM().on("Vitamin D improves mood", answers{
		relevance: "YES", statement: "Vitamin D improves mood", analysis: "Plausible", score: "60",
	})
	search := &fakeSearcher{}
	h := &fakeHarvester{items: []model.RawItem{item("Vitamin D improves mood")}}

	report, err := newTestPipeline(llm, search, h, store.NewMemory()).
		Run(context.Background(), RunRequest{SubjectID: "drsun", Sources: []string{"", "  "}})
	require.NoError(t, err)
	require.Len(t, report.Claims, 1)
	assert.Equal(t, 0, search.calls)
	assert.Contains(t, llm.lastPrompt("comparison"), "Analyse whether")
}

func TestRun_SourcesAreTrimmed(t *testing.T) {
	llm := newScriptedLLM().on("Vitamin D improves mood", answers{
		relevance: "YES", statement: "Vitamin D improves mood", analysis: "Matches", score: "80",
	})
	search := &fakeSearcher{}
	h := &fakeHarvester{items: []model.RawItem{item("Vitamin D improves mood")}}

	_, err := newTestPipeline(llm, search, h, store.NewMemory()).
		Run(context.Background(), RunRequest{SubjectID: "drsun", Sources: []string{" The Lancet ", ""}})
	require.NoError(t, err)
	assert.Equal(t, 1, search.calls)
	assert.Equal(t, []string{"The Lancet"}, search.lastQuery)
}

// peakLLM discards every item and records how many calls overlap
type peakLLM struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *peakLLM) Complete(ctx context.Context, prompt string) (string, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(5 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "NO", nil
}

func TestRun_ConcurrencyBoundedByWorkers(t *testing.T) {
	const workers = 3
	llm := &peakLLM{}
	var items []model.RawItem
	for i := 0; i < 20; i++ {
		items = append(items, item(fmt.Sprintf("item %02d", i)))
	}

	a := NewAnalyzer(llm, &fakeSearcher{}, "health", fastRetry)
	p := NewPipeline(&fakeHarvester{items: items}, a, store.NewMemory(), WithWorkers(workers))

	report, err := p.Run(context.Background(), RunRequest{SubjectID: "busy", MaxItems: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, report.Discarded)

	peak := llm.peak.Load()
	assert.LessOrEqual(t, peak, int32(workers))
	assert.GreaterOrEqual(t, peak, int32(1))
}
