package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	matcherrors "github.com/rahidz/oeis-offline-matcher/internal/errors"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// SchemaDDL contains the CREATE TABLE and CREATE INDEX SQL for the index.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS sequences (
    id               TEXT PRIMARY KEY,
    length           INTEGER NOT NULL,
    terms            BLOB NOT NULL,
    name             TEXT,
    keywords         TEXT,
    prefix_hash      INTEGER NOT NULL,
    min_val          TEXT,
    max_val          TEXT,
    gcd_val          TEXT,
    is_nondecreasing INTEGER NOT NULL,
    is_nonincreasing INTEGER NOT NULL,
    sign_pattern     TEXT NOT NULL,
    nonzero_count    INTEGER NOT NULL,
    first_diff_sign  TEXT NOT NULL,
    growth_rate      REAL,
    variance         REAL,
    diff_variance    REAL
);

CREATE INDEX IF NOT EXISTS idx_prefix_hash ON sequences(prefix_hash);
CREATE INDEX IF NOT EXISTS idx_length ON sequences(length);
CREATE INDEX IF NOT EXISTS idx_gcd ON sequences(gcd_val);
CREATE INDEX IF NOT EXISTS idx_sign ON sequences(sign_pattern);
CREATE INDEX IF NOT EXISTS idx_first_diff ON sequences(first_diff_sign);
CREATE INDEX IF NOT EXISTS idx_nonzero ON sequences(nonzero_count);
CREATE INDEX IF NOT EXISTS idx_growth ON sequences(growth_rate);
`

const recordColumns = `id, length, terms, name, keywords, prefix_hash,
	min_val, max_val, gcd_val, is_nondecreasing, is_nonincreasing,
	sign_pattern, nonzero_count, first_diff_sign, growth_rate, variance, diff_variance`

// SQLiteStore implements SequenceStore over a single-file SQLite index.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Open opens an existing index read-only for matching.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, matcherrors.NewStoreError(matcherrors.CodeStoreUnavailable,
			fmt.Sprintf("failed to open index at %s", dbPath), err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, matcherrors.NewStoreError(matcherrors.CodeStoreUnavailable,
			fmt.Sprintf("index at %s is unreadable", dbPath), err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the record for id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*seq.SequenceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM sequences WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, matcherrors.NewStoreError(matcherrors.CodeScanFailed,
			fmt.Sprintf("failed to load record %s", id), err)
	}
	return rec, nil
}

// LookupByPrefixHash streams records with the given prefix hash in id order.
func (s *SQLiteStore) LookupByPrefixHash(ctx context.Context, h uint64, fn func(*seq.SequenceRecord) error) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM sequences WHERE prefix_hash = ? ORDER BY id", int64(h))
	if err != nil {
		return matcherrors.NewStoreError(matcherrors.CodeScanFailed, "prefix hash lookup failed", err)
	}
	return s.drainRows(ctx, rows, nil, fn)
}

// Scan streams records satisfying the predicate set in id order. Predicates
// that cannot be expressed in SQL are applied in memory on the streamed rows.
func (s *SQLiteStore) Scan(ctx context.Context, preds PredicateSet, fn func(*seq.SequenceRecord) error) error {
	where, args, residual := buildWhere(preds)
	query := "SELECT " + recordColumns + " FROM sequences" + where + " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return matcherrors.NewStoreError(matcherrors.CodeScanFailed, "invariant scan failed", err)
	}
	return s.drainRows(ctx, rows, residual, fn)
}

// Stats returns corpus-level statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var minLen, maxLen sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(length), MAX(length) FROM sequences").
		Scan(&st.Count, &minLen, &maxLen)
	if err != nil {
		return nil, matcherrors.NewStoreError(matcherrors.CodeScanFailed, "stats query failed", err)
	}
	st.MinLength = int(minLen.Int64)
	st.MaxLength = int(maxLen.Int64)
	return &st, nil
}

// drainRows pulls records one at a time, honouring cancellation between
// records and applying any residual in-memory predicate.
func (s *SQLiteStore) drainRows(ctx context.Context, rows *sql.Rows, residual func(*seq.SequenceRecord) bool, fn func(*seq.SequenceRecord) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := scanRecord(rows)
		if err != nil {
			return matcherrors.NewStoreError(matcherrors.CodeScanFailed, "failed to scan record row", err)
		}
		if residual != nil && !residual(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return matcherrors.NewStoreError(matcherrors.CodeScanFailed, "error iterating records", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*seq.SequenceRecord, error) {
	var (
		rec        seq.SequenceRecord
		termsBlob  []byte
		name       sql.NullString
		keywords   sql.NullString
		prefixHash int64
		minVal     sql.NullString
		maxVal     sql.NullString
		gcdVal     sql.NullString
		nondecr    int
		nonincr    int
		signPat    string
		diffSign   string
		growth     sql.NullFloat64
		variance   sql.NullFloat64
		diffVar    sql.NullFloat64
	)
	err := row.Scan(&rec.ID, &rec.Length, &termsBlob, &name, &keywords, &prefixHash,
		&minVal, &maxVal, &gcdVal, &nondecr, &nonincr, &signPat,
		&rec.Invariants.NonzeroCount, &diffSign, &growth, &variance, &diffVar)
	if err != nil {
		return nil, err
	}
	rec.Terms, err = decodeTerms(termsBlob)
	if err != nil {
		return nil, err
	}
	rec.Name = name.String
	if keywords.Valid && keywords.String != "" {
		rec.Keywords = strings.Split(keywords.String, ",")
	}
	rec.Invariants.PrefixHash = uint64(prefixHash)
	rec.Invariants.MinVal = minVal.String
	rec.Invariants.MaxVal = maxVal.String
	rec.Invariants.GCDVal = gcdVal.String
	rec.Invariants.IsNondecreasing = nondecr != 0
	rec.Invariants.IsNonincreasing = nonincr != 0
	rec.Invariants.SignPattern = seq.SignPattern(signPat)
	rec.Invariants.FirstDiffSign = seq.DiffSignPattern(diffSign)
	rec.Invariants.GrowthRate = nullFloat(growth)
	rec.Invariants.Variance = nullFloat(variance)
	rec.Invariants.DiffVariance = nullFloat(diffVar)
	return &rec, nil
}

func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// buildWhere renders the predicate set as a WHERE clause plus a residual
// in-memory filter for predicates the index cannot answer.
func buildWhere(preds PredicateSet) (where string, args []interface{}, residual func(*seq.SequenceRecord) bool) {
	var clauses []string

	if preds.PrefixHash != nil {
		clauses = append(clauses, "prefix_hash = ?")
		args = append(args, int64(*preds.PrefixHash))
	}
	if len(preds.SignPatterns) > 0 {
		placeholders := make([]string, len(preds.SignPatterns))
		for i, sp := range preds.SignPatterns {
			placeholders[i] = "?"
			args = append(args, string(sp))
		}
		clauses = append(clauses, "sign_pattern IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(preds.FirstDiffSigns) > 0 {
		placeholders := make([]string, len(preds.FirstDiffSigns))
		for i, ds := range preds.FirstDiffSigns {
			placeholders[i] = "?"
			args = append(args, string(ds))
		}
		clauses = append(clauses, "first_diff_sign IN ("+strings.Join(placeholders, ",")+")")
	}
	if preds.NonzeroMin != nil {
		clauses = append(clauses, "nonzero_count >= ?")
		args = append(args, *preds.NonzeroMin)
	}
	if preds.NonzeroMax != nil {
		clauses = append(clauses, "nonzero_count <= ?")
		args = append(args, *preds.NonzeroMax)
	}
	if preds.MinLength > 0 {
		clauses = append(clauses, "length >= ?")
		args = append(args, preds.MinLength)
	}
	if preds.MaxLength > 0 {
		clauses = append(clauses, "length <= ?")
		args = append(args, preds.MaxLength)
	}
	if preds.GrowthMin != nil {
		clauses = append(clauses, "growth_rate >= ?")
		args = append(args, *preds.GrowthMin)
	}
	if preds.GrowthMax != nil {
		clauses = append(clauses, "growth_rate <= ?")
		args = append(args, *preds.GrowthMax)
	}
	if preds.VarianceMin != nil {
		clauses = append(clauses, "variance >= ?")
		args = append(args, *preds.VarianceMin)
	}
	if preds.VarianceMax != nil {
		clauses = append(clauses, "variance <= ?")
		args = append(args, *preds.VarianceMax)
	}

	if preds.GCDDivides != nil && preds.GCDDivides.Sign() != 0 {
		if divisors, ok := smallDivisors(preds.GCDDivides); ok {
			// Records whose gcd is 0 are outside the divisibility rule.
			placeholders := make([]string, 0, len(divisors)+1)
			placeholders = append(placeholders, "?")
			args = append(args, "0")
			for _, d := range divisors {
				placeholders = append(placeholders, "?")
				args = append(args, d)
			}
			clauses = append(clauses, "gcd_val IN ("+strings.Join(placeholders, ",")+")")
		} else {
			target := new(big.Int).Set(preds.GCDDivides)
			residual = func(rec *seq.SequenceRecord) bool {
				g, ok := new(big.Int).SetString(rec.Invariants.GCDVal, 10)
				if !ok || g.Sign() == 0 {
					return true
				}
				return new(big.Int).Mod(target, g).Sign() == 0
			}
		}
	}

	if len(clauses) == 0 {
		return "", args, residual
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, residual
}

// smallDivisors enumerates the decimal encodings of the divisors of v when v
// fits comfortably in an IN-list; ok is false for large values.
func smallDivisors(v *big.Int) ([]string, bool) {
	if !v.IsInt64() {
		return nil, false
	}
	n := v.Int64()
	if n < 0 {
		n = -n
	}
	if n == 0 || n > 1_000_000 {
		return nil, false
	}
	var out []string
	for d := int64(1); d*d <= n; d++ {
		if n%d != 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%d", d))
		if other := n / d; other != d {
			out = append(out, fmt.Sprintf("%d", other))
		}
	}
	return out, true
}
