// Package analyze orchestrates the matching pipeline: exact search,
// transform search, similarity ranking, and combination search, each under
// its own budget with aggregated diagnostics.
package analyze

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rahidz/oeis-offline-matcher/internal/combine"
	"github.com/rahidz/oeis-offline-matcher/internal/config"
	matcherrors "github.com/rahidz/oeis-offline-matcher/internal/errors"
	"github.com/rahidz/oeis-offline-matcher/internal/match"
	"github.com/rahidz/oeis-offline-matcher/internal/similarity"
	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/internal/transform"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// Budgets for the stages whose limits are not separately configured.
const (
	exactStageBudget      = 10 * time.Second
	similarityStageBudget = 10 * time.Second
)

// Stages toggles the pipeline stages independently.
type Stages struct {
	Exact        bool
	Transform    bool
	Similarity   bool
	Combinations bool
	Triples      bool
}

// AllStages enables everything except triples.
func AllStages() Stages {
	return Stages{Exact: true, Transform: true, Similarity: true, Combinations: true}
}

// Analyzer runs the sequential pipeline over a read-only store.
type Analyzer struct {
	cfg    *config.Config
	store  store.SequenceStore
	stages Stages
}

// New creates an analyzer.
func New(cfg *config.Config, st store.SequenceStore, stages Stages) *Analyzer {
	return &Analyzer{cfg: cfg, store: st, stages: stages}
}

// Analyze runs the pipeline on a validated query. Stage failures other than
// fatal store errors are recorded in diagnostics, never raised.
func (a *Analyzer) Analyze(ctx context.Context, query seq.SequenceQuery) (*seq.AnalysisResult, error) {
	if err := query.Validate(a.cfg.Query.MaxWildcards); err != nil {
		return nil, matcherrors.Wrap(matcherrors.CategoryQuery, matcherrors.CodeQueryInvalid,
			"query rejected", err)
	}

	result := &seq.AnalysisResult{
		Query: query.Terms,
		Diagnostics: seq.Diagnostics{
			RunID:       uuid.New().String(),
			QueryLength: query.Len(),
			Stages:      make(map[string]seq.StageDiagnostics),
		},
	}

	matcher := match.NewMatcher(a.store, a.cfg.Query.SnippetLen)

	if a.stages.Exact {
		if err := a.runExact(ctx, query, matcher, result); err != nil {
			return nil, err
		}
	}
	if a.stages.Transform {
		if err := a.runTransform(ctx, query, matcher, result); err != nil {
			return nil, err
		}
	}

	var ranked []similarity.Scored
	if a.stages.Similarity || a.stages.Combinations || a.stages.Triples {
		var err error
		ranked, err = a.runSimilarity(ctx, query, result)
		if err != nil {
			return nil, err
		}
	}
	if a.stages.Combinations || a.stages.Triples {
		if err := a.runCombinations(ctx, query, ranked, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (a *Analyzer) runExact(ctx context.Context, query seq.SequenceQuery, matcher *match.Matcher, result *seq.AnalysisResult) error {
	stageCtx, cancel := context.WithTimeout(ctx, exactStageBudget)
	defer cancel()
	started := time.Now()

	mode := match.FilterPrefix
	if query.AllowSubsequence {
		mode = match.FilterSubsequence
	}
	matches, streamed, err := matcher.Run(stageCtx, query, mode, a.cfg.Query.ExactLimit)
	if matcherrors.IsFatal(err) {
		return err
	}

	// No prefix hits: retry once in subsequence mode before giving up.
	if len(matches) == 0 && !query.AllowSubsequence {
		fallback := query
		fallback.AllowSubsequence = true
		fbMatches, fbStreamed, fbErr := matcher.Run(stageCtx, fallback, match.FilterSubsequence, a.cfg.Query.ExactLimit)
		if matcherrors.IsFatal(fbErr) {
			return fbErr
		}
		streamed += fbStreamed
		if len(fbMatches) > 0 {
			matches = fbMatches
			result.Diagnostics.SubsequenceFallback = true
		}
	}

	result.ExactMatches = matches
	result.Diagnostics.Stages["exact"] = seq.StageDiagnostics{
		CandidatesPostFilter: streamed,
		ElapsedMillis:        time.Since(started).Milliseconds(),
		Truncated:            stageCtx.Err() != nil,
	}
	return nil
}

func (a *Analyzer) runTransform(ctx context.Context, query seq.SequenceQuery, matcher *match.Matcher, result *seq.AnalysisResult) error {
	stageCtx, cancel := context.WithTimeout(ctx, a.cfg.Transform.MaxTime+time.Second)
	defer cancel()
	started := time.Now()

	engine := transform.NewEngine(a.cfg.Transform, matcher)
	res, err := engine.Search(stageCtx, query)
	if matcherrors.IsFatal(err) {
		return err
	}

	result.TransformMatches = res.Matches
	result.Diagnostics.Stages["transform"] = seq.StageDiagnostics{
		CandidatesPreFilter:  res.ChainsTried,
		CandidatesPostFilter: res.Candidates,
		ElapsedMillis:        time.Since(started).Milliseconds(),
		Truncated:            res.Truncated,
		TruncatedBy:          res.TruncatedBy,
	}
	return nil
}

func (a *Analyzer) runSimilarity(ctx context.Context, query seq.SequenceQuery, result *seq.AnalysisResult) ([]similarity.Scored, error) {
	stageCtx, cancel := context.WithTimeout(ctx, similarityStageBudget)
	defer cancel()
	started := time.Now()

	ranker := similarity.NewRanker(a.cfg.Similarity, a.store)
	res, err := ranker.Rank(stageCtx, query)
	if err != nil {
		return nil, err
	}

	if a.stages.Similarity {
		hits := make([]seq.SimilarityHit, len(res.Top))
		for i, s := range res.Top {
			hits[i] = s.Hit()
		}
		result.Similarity = hits
	}
	result.Diagnostics.Stages["similarity"] = seq.StageDiagnostics{
		CandidatesPostFilter: res.Streamed,
		ElapsedMillis:        time.Since(started).Milliseconds(),
		Truncated:            res.Truncated,
	}
	return res.Top, nil
}

func (a *Analyzer) runCombinations(ctx context.Context, query seq.SequenceQuery, ranked []similarity.Scored, result *seq.AnalysisResult) error {
	bucketCtx, cancel := context.WithTimeout(ctx, similarityStageBudget)
	bucket, err := combine.BuildBucket(bucketCtx, a.store, query, ranked, a.cfg.Combination.BucketSize)
	cancel()
	if err != nil {
		return err
	}

	solver := combine.NewSolver(a.cfg.Combination)

	if a.stages.Combinations {
		stageCtx, cancel := context.WithTimeout(ctx, a.cfg.Combination.MaxTime+time.Second)
		started := time.Now()
		res := solver.SearchPairs(stageCtx, query, bucket)
		cancel()
		result.Combinations = res.Matches
		result.Diagnostics.Stages["combinations"] = seq.StageDiagnostics{
			CandidatesPostFilter: bucket.Size(),
			ElapsedMillis:        time.Since(started).Milliseconds(),
			Truncated:            res.Truncated,
			TruncatedBy:          res.TruncatedBy,
			Checks:               res.Checks,
		}
	}

	tripleWanted := a.stages.Triples ||
		(a.cfg.Triple.Enabled && bucket.Size() <= a.cfg.Triple.BucketCap)
	if tripleWanted {
		stageCtx, cancel := context.WithTimeout(ctx, a.cfg.Triple.MaxTime+time.Second)
		started := time.Now()
		res := solver.SearchTriples(stageCtx, query, bucket, a.cfg.Triple)
		cancel()
		result.TripleCombinations = res.Matches
		result.Diagnostics.Stages["triples"] = seq.StageDiagnostics{
			CandidatesPostFilter: bucket.Size(),
			ElapsedMillis:        time.Since(started).Milliseconds(),
			Truncated:            res.Truncated,
			TruncatedBy:          res.TruncatedBy,
			Checks:               res.Checks,
		}
	}
	return nil
}
