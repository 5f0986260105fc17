package seq

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// MatchType distinguishes how a stored sequence matched the query.
type MatchType string

const (
	MatchPrefix      MatchType = "prefix"
	MatchSubsequence MatchType = "subsequence"
)

// ChainStep is one applied operator in a transform chain, as machine-readable
// (operator, parameters) metadata.
type ChainStep struct {
	Op   string  `json:"op"`
	Args []int64 `json:"args,omitempty"`
}

// String renders the step as op or op(a,b).
func (s ChainStep) String() string {
	if len(s.Args) == 0 {
		return s.Op
	}
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return fmt.Sprintf("%s(%s)", s.Op, strings.Join(parts, ","))
}

// ChainString joins chain steps with the composition separator.
func ChainString(chain []ChainStep) string {
	if len(chain) == 0 {
		return ""
	}
	parts := make([]string, len(chain))
	for i, s := range chain {
		parts[i] = s.String()
	}
	return strings.Join(parts, " . ")
}

// Match is a hit produced by the exact or transform matcher.
type Match struct {
	ID             string      `json:"id"`
	Name           string      `json:"name,omitempty"`
	Type           MatchType   `json:"match_type"`
	Offset         int         `json:"offset"`
	Length         int         `json:"length"`
	Score          float64     `json:"score"`
	TransformChain []ChainStep `json:"transform_chain,omitempty"`
	Snippet        Terms       `json:"-"`
	ExtraOffsets   []int       `json:"extra_offsets,omitempty"`
}

// CombinationMatch is a verified linear combination of two or three shifted
// (and optionally per-component transformed) stored sequences.
type CombinationMatch struct {
	ComponentIDs        []string   `json:"component_ids"`
	ComponentNames      []string   `json:"component_names,omitempty"`
	Coefficients        []*big.Rat `json:"-"`
	Shifts              []int      `json:"shifts"`
	ComponentTransforms []string   `json:"component_transforms"`
	Length              int        `json:"length"`
	Complexity          int        `json:"complexity"`
	Score               float64    `json:"score"`
}

// CoefficientStrings returns the reduced-fraction coefficient encodings.
func (m CombinationMatch) CoefficientStrings() []string {
	out := make([]string, len(m.Coefficients))
	for i, c := range m.Coefficients {
		out[i] = c.RatString()
	}
	return out
}

// MarshalJSON emits coefficients as reduced-fraction strings.
func (m CombinationMatch) MarshalJSON() ([]byte, error) {
	type alias CombinationMatch
	return json.Marshal(struct {
		alias
		Coefficients []string `json:"coefficients"`
	}{alias(m), m.CoefficientStrings()})
}

// SimilarityHit is one ranked candidate from the similarity stage.
type SimilarityHit struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Corr   float64 `json:"corr"`
	NMSE   float64 `json:"nmse"`
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// StageDiagnostics records what one pipeline stage did.
type StageDiagnostics struct {
	CandidatesPreFilter  int    `json:"candidates_pre_filter"`
	CandidatesPostFilter int    `json:"candidates_post_filter"`
	ElapsedMillis        int64  `json:"elapsed_ms"`
	Truncated            bool   `json:"truncated"`
	TruncatedBy          string `json:"truncated_by,omitempty"`
	Checks               int64  `json:"checks,omitempty"`
}

// Diagnostics aggregates per-stage reports for one analysis run.
type Diagnostics struct {
	RunID               string                      `json:"run_id"`
	QueryLength         int                         `json:"query_length"`
	SubsequenceFallback bool                        `json:"subsequence_fallback,omitempty"`
	Stages              map[string]StageDiagnostics `json:"stages"`
}

// AnalysisResult aggregates every stage's output for a single query.
type AnalysisResult struct {
	Query              Pattern            `json:"query"`
	ExactMatches       []Match            `json:"exact_matches"`
	TransformMatches   []Match            `json:"transform_matches"`
	Similarity         []SimilarityHit    `json:"similarity"`
	Combinations       []CombinationMatch `json:"combinations"`
	TripleCombinations []CombinationMatch `json:"triple_combinations"`
	Diagnostics        Diagnostics        `json:"diagnostics"`
}
