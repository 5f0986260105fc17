package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	matcherrors "github.com/rahidz/oeis-offline-matcher/internal/errors"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

const insertSQL = `
INSERT INTO sequences (id, length, terms, name, keywords, prefix_hash,
    min_val, max_val, gcd_val, is_nondecreasing, is_nonincreasing,
    sign_pattern, nonzero_count, first_diff_sign, growth_rate, variance, diff_variance)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    length=excluded.length,
    terms=excluded.terms,
    name=excluded.name,
    keywords=excluded.keywords,
    prefix_hash=excluded.prefix_hash,
    min_val=excluded.min_val,
    max_val=excluded.max_val,
    gcd_val=excluded.gcd_val,
    is_nondecreasing=excluded.is_nondecreasing,
    is_nonincreasing=excluded.is_nonincreasing,
    sign_pattern=excluded.sign_pattern,
    nonzero_count=excluded.nonzero_count,
    first_diff_sign=excluded.first_diff_sign,
    growth_rate=excluded.growth_rate,
    variance=excluded.variance,
    diff_variance=excluded.diff_variance
`

// Writer builds or rebuilds the SQLite index. It is used only by the ingest
// path; matching opens the result read-only through Open.
type Writer struct {
	db        *sql.DB
	stmt      *sql.Stmt
	batch     [][]interface{}
	batchSize int
	written   int64
}

// NewWriter opens (creating if needed) the index for writing and installs
// the schema. batchSize rows are buffered per transaction.
func NewWriter(ctx context.Context, dbPath string, batchSize int) (*Writer, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, matcherrors.NewStoreError(matcherrors.CodeStoreUnavailable,
			fmt.Sprintf("failed to open index at %s for writing", dbPath), err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=OFF"); err != nil {
		db.Close()
		return nil, matcherrors.NewStoreError(matcherrors.CodeStoreUnavailable, "failed to set pragmas", err)
	}
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		db.Close()
		return nil, matcherrors.NewStoreError(matcherrors.CodeStoreUnavailable, "failed to install schema", err)
	}
	stmt, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		db.Close()
		return nil, matcherrors.NewStoreError(matcherrors.CodeStoreUnavailable, "failed to prepare insert", err)
	}
	return &Writer{db: db, stmt: stmt, batchSize: batchSize}, nil
}

// Write buffers one record, flushing a transaction when the batch fills.
func (w *Writer) Write(ctx context.Context, rec *seq.SequenceRecord) error {
	w.batch = append(w.batch, recordRow(rec))
	if len(w.batch) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered rows in a single transaction.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return matcherrors.NewStoreError(matcherrors.CodeWriteFailed, "failed to begin batch", err)
	}
	stmt := tx.StmtContext(ctx, w.stmt)
	for _, row := range w.batch {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			tx.Rollback()
			return matcherrors.NewStoreError(matcherrors.CodeWriteFailed, "failed to insert record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return matcherrors.NewStoreError(matcherrors.CodeWriteFailed, "failed to commit batch", err)
	}
	w.written += int64(len(w.batch))
	w.batch = w.batch[:0]
	return nil
}

// Written returns the number of rows committed so far.
func (w *Writer) Written() int64 { return w.written }

// Close flushes and releases the database handle.
func (w *Writer) Close(ctx context.Context) error {
	if err := w.Flush(ctx); err != nil {
		w.stmt.Close()
		w.db.Close()
		return err
	}
	w.stmt.Close()
	return w.db.Close()
}

func recordRow(rec *seq.SequenceRecord) []interface{} {
	inv := rec.Invariants
	return []interface{}{
		rec.ID,
		rec.Length,
		encodeTerms(rec.Terms),
		nullString(rec.Name),
		nullString(strings.Join(rec.Keywords, ",")),
		int64(inv.PrefixHash),
		nullString(inv.MinVal),
		nullString(inv.MaxVal),
		nullString(inv.GCDVal),
		boolInt(inv.IsNondecreasing),
		boolInt(inv.IsNonincreasing),
		string(inv.SignPattern),
		inv.NonzeroCount,
		string(inv.FirstDiffSign),
		floatOrNull(inv.GrowthRate),
		floatOrNull(inv.Variance),
		floatOrNull(inv.DiffVariance),
	}
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func floatOrNull(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
