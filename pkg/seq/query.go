package seq

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Query parsing defaults. The caller can widen or narrow them through
// ParseOptions; the matcher enforces the same caps again at analysis time.
const (
	DefaultMinMatchLength = 3
	DefaultMaxWildcards   = 2
	maxWildcardRatio      = 0.5
)

// SequenceQuery is a normalised user query.
type SequenceQuery struct {
	Terms            Pattern
	MinMatchLength   int
	AllowSubsequence bool
}

// Len returns the number of query positions including wildcards.
func (q SequenceQuery) Len() int { return len(q.Terms) }

// Validate checks the structural constraints of spec'd query invariants.
func (q SequenceQuery) Validate(maxWildcards int) error {
	if len(q.Terms) == 0 {
		return fmt.Errorf("seq: empty query")
	}
	if len(q.Terms) < q.MinMatchLength {
		return fmt.Errorf("seq: query has %d terms, below minimum match length %d", len(q.Terms), q.MinMatchLength)
	}
	if wc := q.Terms.WildcardCount(); wc > maxWildcards {
		return fmt.Errorf("seq: query has %d wildcards, max allowed is %d", wc, maxWildcards)
	}
	return nil
}

// ParseOptions controls ParseQuery.
type ParseOptions struct {
	MinMatchLength   int
	AllowSubsequence bool
	MaxWildcards     int
}

var tokenSplit = regexp.MustCompile(`[,\s]+`)

// ParseQuery parses a comma- or whitespace-separated string of signed
// decimal integers into a SequenceQuery. "?" and "*" are single-term
// wildcards, capped by MaxWildcards and by a wildcard-fraction guard.
func ParseQuery(text string, opts ParseOptions) (SequenceQuery, error) {
	if opts.MinMatchLength <= 0 {
		opts.MinMatchLength = DefaultMinMatchLength
	}
	if opts.MaxWildcards <= 0 {
		opts.MaxWildcards = DefaultMaxWildcards
	}

	var terms Pattern
	for _, tok := range tokenSplit.Split(strings.TrimSpace(text), -1) {
		switch {
		case tok == "":
			continue
		case tok == "?" || tok == "*":
			terms = append(terms, nil)
		default:
			tok = strings.TrimPrefix(tok, "+")
			v, ok := new(big.Int).SetString(tok, 10)
			if !ok {
				return SequenceQuery{}, fmt.Errorf("seq: non-integer token %q in query", tok)
			}
			terms = append(terms, v)
		}
	}

	q := SequenceQuery{
		Terms:            terms,
		MinMatchLength:   opts.MinMatchLength,
		AllowSubsequence: opts.AllowSubsequence,
	}
	if err := q.Validate(opts.MaxWildcards); err != nil {
		return SequenceQuery{}, err
	}
	if wc := terms.WildcardCount(); wc > 0 && float64(wc)/float64(len(terms)) > maxWildcardRatio {
		return SequenceQuery{}, fmt.Errorf("seq: wildcard fraction too high (%d of %d terms)", wc, len(terms))
	}
	return q, nil
}
