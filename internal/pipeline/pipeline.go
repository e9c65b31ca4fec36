package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/worker"
)

// DefaultMaxItems caps the items analysed per run when the request sets none
const DefaultMaxItems = 10

// Harvester supplies raw items for a subject
type Harvester interface {
	Fetch(ctx context.Context, subjectID string, window model.TimeRange) ([]model.RawItem, error)
}

// RunRequest describes one analysis run
type RunRequest struct {
	SubjectID string
	TimeRange model.TimeRange
	Sources   []string
	Notes     string
	MaxItems  int
	// FailFast aborts the run on the first item failure instead of
	// excluding the item and continuing
	FailFast bool
}

// ItemFailure is an item excluded from the run because its chain failed
type ItemFailure struct {
	Index  int
	Author string
	Err    error
}

// RunReport summarises a run. Claims is exactly what was persisted.
type RunReport struct {
	SubjectID string
	RunID     string
	Harvested int
	Processed int
	Discarded int
	Failed    []ItemFailure
	Claims    []model.ClaimRecord
	Duration  time.Duration
}

// Pipeline orchestrates harvest, per-item analysis and persistence
type Pipeline struct {
	harvester Harvester
	analyzer  *Analyzer
	store     store.Store
	workers   int
	logger    *zap.Logger
	now       func() time.Time
	newRunID  func() string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers bounds the number of items analysed in parallel
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new pipeline
func NewPipeline(h Harvester, a *Analyzer, s store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		harvester: h,
		analyzer:  a,
		store:     s,
		workers:   4,
		logger:    zap.NewNop(),
		now:       time.Now,
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// itemJob analyses one harvested item
type itemJob struct {
	index    int
	item     model.RawItem
	req      *RunRequest
	analyzer *Analyzer
	onError  func(error)
}

type itemResult struct {
	index  int
	record model.ClaimRecord
	kept   bool
	err    error
}

func (r *itemResult) GetError() error {
	return r.err
}

func (j *itemJob) Execute(ctx context.Context) worker.Result {
	rec, kept, err := j.analyzer.Analyze(ctx, j.item, j.req.Sources, j.req.Notes)
	if err != nil && j.onError != nil {
		j.onError(err)
	}
	return &itemResult{index: j.index, record: rec, kept: kept, err: err}
}

// Run harvests the subject, analyses up to MaxItems items on the worker
// pool, and replaces the subject's stored analysis with the surviving
// records in harvest order. A cancelled context returns the context error
// and leaves the store untouched.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	start := p.now()

	req.SubjectID = strings.TrimPrefix(strings.TrimSpace(req.SubjectID), "@")
	if req.SubjectID == "" {
		return nil, fmt.Errorf("run: subject id is required")
	}
	if req.TimeRange == "" {
		req.TimeRange = model.TimeRangeLastWeek
	}
	if req.MaxItems <= 0 {
		req.MaxItems = DefaultMaxItems
	}
	req.Sources = cleanSources(req.Sources)

	report := &RunReport{SubjectID: req.SubjectID, RunID: p.newRunID()}
	log := p.logger.With(zap.String("subject", req.SubjectID), zap.String("run_id", report.RunID))

	items, err := p.harvester.Fetch(ctx, req.SubjectID, req.TimeRange)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, model.ErrHarvestUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrHarvestUnavailable, err)
		}
		return nil, fmt.Errorf("harvest %s: %w", req.SubjectID, err)
	}
	report.Harvested = len(items)
	if len(items) > req.MaxItems {
		items = items[:req.MaxItems]
	}
	report.Processed = len(items)

	log.Info("run started",
		zap.Int("harvested", report.Harvested),
		zap.Int("processing", report.Processed),
		zap.String("time_range", string(req.TimeRange)),
		zap.Strings("sources", req.Sources))

	pool := worker.NewPool(ctx, p.workers)
	pool.Start()

	var (
		firstErr  error
		errorOnce sync.Once
	)
	onError := func(err error) {
		errorOnce.Do(func() { firstErr = err })
		if req.FailFast {
			pool.Cancel()
		}
	}

	for i, item := range items {
		pool.Submit(&itemJob{index: i, item: item, req: &req, analyzer: p.analyzer, onError: onError})
	}
	results := pool.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled, nothing persisted", zap.Error(err))
		return nil, err
	}

	claims := make([]model.ClaimRecord, 0, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		res := r.(*itemResult)
		switch {
		case res.err != nil:
			report.Failed = append(report.Failed, ItemFailure{Index: i, Author: items[i].Author, Err: res.err})
			log.Warn("item failed", zap.Int("index", i), zap.Error(res.err))
		case !res.kept:
			report.Discarded++
		default:
			claims = append(claims, res.record)
		}
	}

	if req.FailFast && firstErr != nil {
		return nil, fmt.Errorf("run %s aborted: %w", req.SubjectID, firstErr)
	}

	analysis := &model.SubjectAnalysis{
		SubjectID: req.SubjectID,
		Claims:    claims,
		RunID:     report.RunID,
		UpdatedAt: p.now().UTC(),
	}
	if err := p.store.Replace(ctx, analysis); err != nil {
		if !errors.Is(err, model.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
		}
		return nil, fmt.Errorf("save analysis for %s: %w", req.SubjectID, err)
	}

	report.Claims = claims
	report.Duration = p.now().Sub(start)

	log.Info("run completed",
		zap.Int("claims", len(claims)),
		zap.Int("discarded", report.Discarded),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("took", report.Duration))

	return report, nil
}

// cleanSources trims source names and drops blanks. nil means no evidence
// search was requested.
func cleanSources(sources []string) []string {
	var out []string
	for _, src := range sources {
		if src = strings.TrimSpace(src); src != "" {
			out = append(out, src)
		}
	}
	return out
}
