package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/evidence"
	"github.com/ppiankov/veracity/internal/harvest"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

// newLimiter builds the shared limiter with one bucket per upstream service.
// Per-host buckets for harvested pages fall back to the evidence rate.
func newLimiter(cfg model.RateLimitingConfig) *worker.Limiter {
	l := worker.NewLimiter(cfg.EvidenceRPS, cfg.BurstSize)
	l.SetRate(worker.KeyInference, cfg.InferenceRPS, cfg.BurstSize)
	l.SetRate(worker.KeyEvidence, cfg.EvidenceRPS, cfg.BurstSize)
	return l
}

// openStore opens the configured analysis store and logs where it lives
func openStore(cfg model.StoreConfig, log *zap.Logger) (store.Store, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if db, ok := st.(*store.SQLite); ok {
		log.Debug("store opened", zap.String("driver", "sqlite"), zap.String("path", db.Path()))
	} else {
		log.Debug("store opened", zap.String("driver", cfg.Driver))
	}
	return st, nil
}

// retryPolicy maps run.retries (extra attempts) onto a RetryPolicy
func retryPolicy(cfg model.RunConfig) pipeline.RetryPolicy {
	p := pipeline.DefaultRetryPolicy()
	if cfg.Retries >= 0 {
		p.Attempts = cfg.Retries + 1
	}
	return p
}

// newPipeline wires harvester, inference, evidence and the store into a
// pipeline according to cfg
func newPipeline(cfg *model.Config, st store.Store, log *zap.Logger) (*pipeline.Pipeline, error) {
	httpClient := util.NewHTTPClient(cfg.HTTP)
	limiter := newLimiter(cfg.RateLimiting)
	responses := cache.New(cfg.Cache)
	ttl := cfg.Cache.DiskTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.Inference, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("create inference provider: %w", err)
	}
	client := llm.NewClient(provider,
		llm.WithLimiter(limiter),
		llm.WithCache(responses, ttl, cfg.Inference.Model),
		llm.WithLogger(log.Named("inference")))

	var robots *util.RobotsChecker
	if cfg.Evidence.RespectRobots {
		robots = util.NewRobotsChecker(httpClient, cfg.HTTP.UserAgent)
	}

	searchOpts := []evidence.Option{
		evidence.WithLimiter(limiter),
		evidence.WithCache(responses, ttl),
		evidence.WithLogger(log.Named("evidence")),
	}
	if robots != nil {
		searchOpts = append(searchOpts, evidence.WithRobots(robots))
	}
	searcher := evidence.NewSearcher(cfg.Evidence, httpClient, cfg.HTTP.UserAgent, searchOpts...)

	harvestOpts := []harvest.Option{
		harvest.WithHTTPClient(httpClient, cfg.HTTP.UserAgent),
		harvest.WithLimiter(limiter),
		harvest.WithLogger(log.Named("harvest")),
	}
	if robots != nil {
		harvestOpts = append(harvestOpts, harvest.WithRobots(robots))
	}
	harvester, err := harvest.New(cfg.Harvest, harvestOpts...)
	if err != nil {
		return nil, fmt.Errorf("create harvester: %w", err)
	}

	analyzer := pipeline.NewAnalyzer(client, searcher, cfg.Inference.Topic,
		pipeline.WithRetry(retryPolicy(cfg.Run)),
		pipeline.WithAnalyzerLogger(log.Named("analyzer")))

	return pipeline.NewPipeline(harvester, analyzer, st,
		pipeline.WithWorkers(cfg.Concurrency.Workers),
		pipeline.WithLogger(log.Named("pipeline"))), nil
}

// runRequest fills a RunRequest from the run defaults
func runRequest(cfg model.RunConfig, subjectID string) pipeline.RunRequest {
	return pipeline.RunRequest{
		SubjectID: subjectID,
		TimeRange: cfg.TimeRange,
		Sources:   cfg.Sources,
		Notes:     cfg.Notes,
		MaxItems:  cfg.MaxItems,
		FailFast:  cfg.FailFast,
	}
}
