package store

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// encodeTerms compresses the canonical comma-joined decimal encoding of a
// term list into the BLOB stored in the terms column.
func encodeTerms(terms seq.Terms) []byte {
	return snappy.Encode(nil, []byte(terms.String()))
}

// decodeTerms reverses encodeTerms.
func decodeTerms(blob []byte) (seq.Terms, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("store: failed to decompress terms: %w", err)
	}
	terms, err := seq.ParseTerms(string(raw))
	if err != nil {
		return nil, fmt.Errorf("store: corrupt terms column: %w", err)
	}
	return terms, nil
}
