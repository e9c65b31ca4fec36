package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// answers scripts the inference responses for one item
type answers struct {
	relevance  string
	statement  string
	analysis   string
	categories string
	status     string
	score      string
	failOn     string // prompt kind that returns an error
}

func promptKind(p string) string {
	switch {
	case strings.HasPrefix(p, "Check whether"):
		return "relevance"
	case strings.HasPrefix(p, "If this post"):
		return "statement"
	case strings.HasPrefix(p, "Compare this statement"), strings.HasPrefix(p, "Analyse whether"):
		return "comparison"
	case strings.HasPrefix(p, "Create "):
		return "categories"
	case strings.HasPrefix(p, "Give a verification"):
		return "status"
	case strings.HasPrefix(p, "Score how"):
		return "score"
	}
	return "unknown"
}

// scriptedLLM answers prompts from per-content scripts
type scriptedLLM struct {
	mu      sync.Mutex
	scripts map[string]answers // keyed by item content
	prompts []string
	block   bool
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{scripts: make(map[string]answers)}
}

func (s *scriptedLLM) on(content string, a answers) *scriptedLLM {
	s.scripts[content] = a
	return s
}

func (s *scriptedLLM) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.prompts {
		out = append(out, promptKind(p))
	}
	return out
}

func (s *scriptedLLM) lastPrompt(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.prompts) - 1; i >= 0; i-- {
		if promptKind(s.prompts[i]) == kind {
			return s.prompts[i]
		}
	}
	return ""
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	var script answers
	found := false
	for content, a := range s.scripts {
		if strings.Contains(prompt, content) || (a.statement != "" && strings.Contains(prompt, a.statement)) {
			script, found = a, true
			break
		}
	}
	if !found {
		return "", errors.New("unscripted prompt: " + prompt)
	}

	kind := promptKind(prompt)
	if script.failOn == kind {
		return "", model.ErrInferenceUnreachable
	}

	switch kind {
	case "relevance":
		return script.relevance, nil
	case "statement":
		return script.statement, nil
	case "comparison":
		return script.analysis, nil
	case "categories":
		return script.categories, nil
	case "status":
		return script.status, nil
	case "score":
		return script.score, nil
	}
	return "", nil
}

type fakeSearcher struct {
	mu        sync.Mutex
	citations []model.Citation
	failFor   string
	failures  int // remaining failures before success; negative means always
	calls     int
	lastQuery []string
}

func (f *fakeSearcher) Search(ctx context.Context, statement string, sources []string) ([]model.Citation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastQuery = sources
	if f.failFor != "" && statement == f.failFor {
		if f.failures != 0 {
			f.failures--
			return nil, model.ErrEvidenceUnavailable
		}
	}
	return f.citations, nil
}

type fakeHarvester struct {
	items  []model.RawItem
	err    error
	window model.TimeRange
}

func (f *fakeHarvester) Fetch(ctx context.Context, subjectID string, window model.TimeRange) ([]model.RawItem, error) {
	f.window = window
	return f.items, f.err
}

type failingStore struct {
	err error
}

func (f *failingStore) Replace(context.Context, *model.SubjectAnalysis) error { return f.err }
func (f *failingStore) Get(context.Context, string) (*model.SubjectAnalysis, error) {
	return nil, model.ErrNotFound
}
func (f *failingStore) GetAll(context.Context) ([]*model.SubjectAnalysis, error) { return nil, nil }
func (f *failingStore) Close() error                                            { return nil }

func item(content string) model.RawItem {
	return model.RawItem{
		Content:        content,
		Author:         "Dr. Sun",
		Bio:            model.NoBio,
		ProfileImage:   "https://img.example/sun.png",
		FollowersCount: "12K",
	}
}

func noSleep(context.Context, time.Duration) error { return nil }
