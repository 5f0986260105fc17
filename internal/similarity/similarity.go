// Package similarity scores candidate sequences against the query by
// best-fit affine error and Pearson correlation, feeding the combination
// solver's candidate bucket.
package similarity

import (
	"context"
	"math"
	"sort"

	"github.com/rahidz/oeis-offline-matcher/internal/config"
	"github.com/rahidz/oeis-offline-matcher/internal/match"
	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// hardCapTopK bounds TopK regardless of configuration.
const hardCapTopK = 200

// Scored pairs a candidate record with its similarity metrics.
type Scored struct {
	Record *seq.SequenceRecord
	Corr   float64
	MSE    float64
	NMSE   float64
	Scale  float64
	Offset float64
}

// Hit converts the scored candidate to its result form.
func (s Scored) Hit() seq.SimilarityHit {
	return seq.SimilarityHit{
		ID:     s.Record.ID,
		Name:   s.Record.Name,
		Corr:   s.Corr,
		NMSE:   s.NMSE,
		Scale:  s.Scale,
		Offset: s.Offset,
	}
}

// Ranker ranks invariant-filtered candidates against a query.
type Ranker struct {
	cfg   config.SimilarityConfig
	store store.SequenceStore
}

// NewRanker creates a ranker.
func NewRanker(cfg config.SimilarityConfig, st store.SequenceStore) *Ranker {
	return &Ranker{cfg: cfg, store: st}
}

// RankResult carries the top-K candidates plus scan diagnostics.
type RankResult struct {
	Top       []Scored
	Streamed  int
	Truncated bool
}

// Rank streams the combination-relaxed candidate set and returns the top-K
// candidates ordered by (-|corr|, nmse, id). Queries with wildcards rank
// nothing: the affine fit is undefined on unknown values.
func (r *Ranker) Rank(ctx context.Context, query seq.SequenceQuery) (*RankResult, error) {
	out := &RankResult{}
	if !query.Terms.Concrete() {
		return out, nil
	}
	qTerms := query.Terms.Terms()
	qFloats := qTerms.Floats()

	maxAbsQ := 0.0
	for _, f := range qFloats {
		if a := math.Abs(f); a > maxAbsQ {
			maxAbsQ = a
		}
	}

	preds := match.DerivePredicates(query, match.FilterCombination)
	var scored []Scored
	err := r.store.Scan(ctx, preds, func(rec *seq.SequenceRecord) error {
		out.Streamed++
		s, ok := score(qFloats, rec, maxAbsQ)
		if !ok {
			return nil
		}
		if math.Abs(s.Corr) < r.cfg.MinCorr || s.NMSE > r.cfg.MaxNMSE {
			return nil
		}
		scored = append(scored, s)
		return nil
	})
	if err == context.DeadlineExceeded || err == context.Canceled {
		out.Truncated = true
	} else if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		ai, aj := math.Abs(scored[i].Corr), math.Abs(scored[j].Corr)
		if ai != aj {
			return ai > aj
		}
		if scored[i].NMSE != scored[j].NMSE {
			return scored[i].NMSE < scored[j].NMSE
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})

	topK := r.cfg.TopK
	if topK <= 0 || topK > hardCapTopK {
		topK = hardCapTopK
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	out.Top = scored
	return out, nil
}

// score overlays the record on the query over the first
// min(len(query), len(record)) positions and computes the affine fit and
// correlation. ok is false when the metrics are undefined.
func score(query []float64, rec *seq.SequenceRecord, maxAbsQ float64) (Scored, bool) {
	k := len(query)
	if rec.Length < k {
		k = rec.Length
	}
	if k < 2 {
		return Scored{}, false
	}
	x := rec.Terms[:k].Floats()
	y := query[:k]

	mse, a, b, ok := affineFit(x, y)
	if !ok {
		return Scored{}, false
	}
	corr := correlation(x, y)
	nmse := mse / (1 + maxAbsQ*maxAbsQ)
	if math.IsNaN(mse) || math.IsInf(mse, 0) || math.IsNaN(corr) {
		return Scored{}, false
	}
	return Scored{Record: rec, Corr: corr, MSE: mse, NMSE: nmse, Scale: a, Offset: b}, true
}

// affineFit solves least squares for (a, b) minimizing sum (a*x_i + b - y_i)^2
// and returns the mean squared error of the fit.
func affineFit(x, y []float64) (mse, a, b float64, ok bool) {
	n := float64(len(x))
	if n == 0 {
		return 0, 0, 0, false
	}
	var sx, sy, sxx, sxy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		a = 0
		b = sy / n
	} else {
		a = (n*sxy - sx*sy) / denom
		b = (sy - a*sx) / n
	}
	for i := range x {
		d := a*x[i] + b - y[i]
		mse += d * d
	}
	mse /= n
	return mse, a, b, true
}

// correlation is the Pearson coefficient; 0 when either side is flat.
func correlation(x, y []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var num, dx, dy float64
	for i := range x {
		num += (x[i] - mx) * (y[i] - my)
		dx += (x[i] - mx) * (x[i] - mx)
		dy += (y[i] - my) * (y[i] - my)
	}
	if dx == 0 || dy == 0 {
		return 0
	}
	return num / math.Sqrt(dx*dy)
}
