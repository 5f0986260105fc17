package seq

import (
	"fmt"
	"regexp"
)

var idPattern = regexp.MustCompile(`^A[0-9]{6}$`)

// ValidID reports whether id is a well-formed A-number.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// SequenceRecord is an OEIS entry in the local snapshot. Records are created
// once at index-build time and are immutable afterwards.
type SequenceRecord struct {
	ID         string
	Terms      Terms
	Length     int
	Name       string
	Keywords   []string
	Invariants Invariants
}

// NewRecord builds a record with derived invariants, truncating to maxTerms.
func NewRecord(id string, terms Terms, maxTerms int) (*SequenceRecord, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("seq: malformed sequence id %q", id)
	}
	if maxTerms > 0 && len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return &SequenceRecord{
		ID:         id,
		Terms:      terms,
		Length:     len(terms),
		Invariants: DeriveInvariants(terms),
	}, nil
}

// Snippet returns a copy of the first n stored terms (all when n <= 0 or
// larger than the record).
func (r *SequenceRecord) Snippet(n int) Terms {
	if n <= 0 || n > len(r.Terms) {
		n = len(r.Terms)
	}
	return r.Terms[:n].Clone()
}

// HasKeyword reports whether the record carries the given keyword tag.
func (r *SequenceRecord) HasKeyword(kw string) bool {
	for _, k := range r.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}
