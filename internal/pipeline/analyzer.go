package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
)

// Completer answers a prompt with text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EvidenceSearcher looks up citations for a statement
type EvidenceSearcher interface {
	Search(ctx context.Context, statement string, sources []string) ([]model.Citation, error)
}

// Analyzer runs the per-item chain. It holds only read-only configuration
// and is safe for concurrent use.
type Analyzer struct {
	llm      Completer
	evidence EvidenceSearcher
	topic    string
	retry    RetryPolicy
	logger   *zap.Logger
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithRetry sets the per-stage retry policy
func WithRetry(p RetryPolicy) AnalyzerOption {
	return func(a *Analyzer) { a.retry = p }
}

// WithAnalyzerLogger sets the logger
func WithAnalyzerLogger(l *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer creates an analyzer filtering for topic
func NewAnalyzer(llm Completer, evidence EvidenceSearcher, topic string, opts ...AnalyzerOption) *Analyzer {
	if topic == "" {
		topic = "health"
	}
	a := &Analyzer{
		llm:      llm,
		evidence: evidence,
		topic:    topic,
		retry:    DefaultRetryPolicy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs item through the chain. kept is false when the item was
// discarded as irrelevant; that is not an error. A stage failure aborts the
// chain and no record is produced.
func (a *Analyzer) Analyze(ctx context.Context, item model.RawItem, sources []string, notes string) (model.ClaimRecord, bool, error) {
	st := itemState{
		stage:    StageRelevanceCheck,
		sources:  sources,
		notes:    notes,
		evidence: model.NoEvidence(),
		record:   model.ClaimRecord{Item: item},
	}

	for !st.stage.Terminal() {
		if err := ctx.Err(); err != nil {
			return model.ClaimRecord{}, false, err
		}
		if err := a.step(ctx, &st); err != nil {
			return model.ClaimRecord{}, false, fmt.Errorf("%s: %w", st.stage, err)
		}
		st.stage = transition(st)
	}

	if st.stage == StageDiscarded {
		a.logger.Debug("item discarded", zap.String("author", item.Author))
		return model.ClaimRecord{}, false, nil
	}
	return st.record, true, nil
}

// step runs the current stage and records its output in st
func (a *Analyzer) step(ctx context.Context, st *itemState) error {
	var err error
	rec := &st.record

	switch st.stage {
	case StageRelevanceCheck:
		var answer string
		answer, err = a.ask(ctx, relevancePrompt(a.topic, rec.Item.Content))
		st.relevant = !isNegative(answer)

	case StageStatementExtraction:
		rec.Statement, err = a.ask(ctx, statementPrompt(a.topic, rec.Item.Content))

	case StageEvidenceSearch:
		var cites []model.Citation
		err = a.retry.do(ctx, func() error {
			var serr error
			cites, serr = a.evidence.Search(ctx, rec.Statement, st.sources)
			return serr
		})
		if err == nil {
			st.evidence = model.RequestedEvidence(cites)
			rec.Citations = cites
		}

	case StageComparison:
		rec.AIAnalysis, err = a.ask(ctx, comparisonPrompt(rec.Statement, st.evidence, st.notes))

	case StageCategorization:
		rec.Categories, err = a.ask(ctx, categoryPrompt(a.topic, rec.Statement))

	case StageStatusClassification:
		var answer string
		answer, err = a.ask(ctx, statusPrompt(rec.Statement, rec.AIAnalysis))
		rec.Status = model.Status(answer)

	case StageScoring:
		var answer string
		answer, err = a.ask(ctx, scorePrompt(rec.Statement, rec.AIAnalysis))
		rec.TrustScore = normalizeTrustScore(answer)
	}

	return err
}

func (a *Analyzer) ask(ctx context.Context, prompt string) (string, error) {
	var out string
	err := a.retry.do(ctx, func() error {
		var cerr error
		out, cerr = a.llm.Complete(ctx, prompt)
		return cerr
	})
	return strings.TrimSpace(out), err
}

// isNegative reports whether a relevance answer is the NO sentinel once
// quotes, punctuation and case are ignored
func isNegative(answer string) bool {
	a := strings.Trim(strings.TrimSpace(answer), "\"'`.!,;: \t\n")
	return strings.EqualFold(a, negativeAnswer)
}

var (
	integerPattern = regexp.MustCompile(`-?\d+`)
	// "0-100", "0 to 100", "/100", "out of 100"
	scalePattern = regexp.MustCompile(`(?i)\b0\s*(?:-|to)\s*100\b|(?:/|\bout of)\s*100\b`)
)

// normalizeTrustScore keeps the first integer of the answer, ignoring scale
// mentions, clamped to [0,100]. Answers without an integer are kept verbatim.
func normalizeTrustScore(answer string) string {
	m := integerPattern.FindString(scalePattern.ReplaceAllString(answer, " "))
	if m == "" {
		return answer
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		// too many digits for int
		if strings.HasPrefix(m, "-") {
			return "0"
		}
		return "100"
	}
	return strconv.Itoa(min(max(n, 0), 100))
}
