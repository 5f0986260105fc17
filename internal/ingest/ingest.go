// Package ingest parses the raw OEIS exports (stripped, names, keywords)
// and builds the SQLite index consumed by the matcher.
package ingest

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	matcherrors "github.com/rahidz/oeis-offline-matcher/internal/errors"
	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// Entry is one stripped line before invariant derivation.
type Entry struct {
	ID    string
	Terms seq.Terms
}

// Options configures an index build.
type Options struct {
	StrippedPath string
	NamesPath    string
	KeywordsPath string
	DBPath       string
	MaxTerms     int
	BatchSize    int
}

// Stats summarizes a completed build.
type Stats struct {
	Parsed   int64
	Skipped  int64
	Inserted int64
}

// BuildIndex streams the stripped dump, derives invariants in parallel, and
// writes the index in batches. Titles and keywords are attached when their
// files exist.
func BuildIndex(ctx context.Context, opts Options) (*Stats, error) {
	if opts.MaxTerms <= 0 {
		opts.MaxTerms = 64
	}

	titles, err := loadNames(opts.NamesPath)
	if err != nil {
		return nil, err
	}
	keywords, err := loadKeywords(opts.KeywordsPath)
	if err != nil {
		return nil, err
	}

	writer, err := store.NewWriter(ctx, opts.DBPath, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	raw := make(chan Entry, 256)
	derived := make(chan *seq.SequenceRecord, 256)

	g, gctx := errgroup.WithContext(ctx)

	// Parser: one reader streaming stripped lines.
	g.Go(func() error {
		defer close(raw)
		return parseStripped(gctx, opts.StrippedPath, opts.MaxTerms, raw, stats)
	})

	// Derivers: invariant computation is the CPU-heavy part.
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	var wg errgroup.Group
	for w := 0; w < workers; w++ {
		wg.Go(func() error {
			for e := range raw {
				rec, err := seq.NewRecord(e.ID, e.Terms, opts.MaxTerms)
				if err != nil {
					continue
				}
				rec.Name = titles[e.ID]
				rec.Keywords = keywords[e.ID]
				select {
				case derived <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(derived)
		return wg.Wait()
	})

	// Writer: SQLite takes a single writer.
	g.Go(func() error {
		for rec := range derived {
			if err := writer.Write(gctx, rec); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		writer.Close(context.Background())
		return nil, err
	}
	if err := writer.Close(ctx); err != nil {
		return nil, err
	}
	stats.Inserted = writer.Written()
	return stats, nil
}

// parseStripped streams records out of the stripped dump.
func parseStripped(ctx context.Context, path string, maxTerms int, out chan<- Entry, stats *Stats) error {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return matcherrors.NewIngestError(matcherrors.CodeMalformedLine,
			fmt.Sprintf("cannot open stripped file %s", path), err)
	}
	defer closeFn()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, ok := ParseStrippedLine(scanner.Text(), maxTerms)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Parsed++
		select {
		case out <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return matcherrors.NewIngestError(matcherrors.CodeMalformedLine, "error reading stripped file", err)
	}
	return nil
}

// ParseStrippedLine parses one line of the stripped export:
//
//	A000045 ,0,1,1,2,3,5,8,13,
//
// Comment lines and malformed entries yield ok=false.
func ParseStrippedLine(line string, maxTerms int) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}
	id, rest, found := strings.Cut(line, " ")
	if !found {
		id, rest, found = strings.Cut(line, ",")
		if !found {
			return Entry{}, false
		}
	}
	if !seq.ValidID(id) {
		return Entry{}, false
	}

	var terms seq.Terms
	for _, tok := range strings.Split(rest, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := seq.ParseTerms(tok)
		if err != nil || len(v) != 1 {
			continue
		}
		terms = append(terms, v[0])
		if len(terms) >= maxTerms {
			break
		}
	}
	if len(terms) == 0 {
		return Entry{}, false
	}
	return Entry{ID: id, Terms: terms}, true
}

// ParseNamesLine parses one "A000045 Fibonacci numbers" line.
func ParseNamesLine(line string) (id, title string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	id, title, found := strings.Cut(line, " ")
	if !found || !seq.ValidID(id) {
		return "", "", false
	}
	return id, strings.TrimSpace(title), true
}

// ParseKeywordsLine parses one "A000045 core,nonn,nice" line.
func ParseKeywordsLine(line string) (id string, kws []string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, false
	}
	id, rest, found := strings.Cut(line, " ")
	if !found || !seq.ValidID(id) {
		return "", nil, false
	}
	for _, kw := range strings.Split(rest, ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	if len(kws) == 0 {
		return "", nil, false
	}
	return id, kws, true
}

func loadNames(path string) (map[string]string, error) {
	out := make(map[string]string)
	if path == "" {
		return out, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out, nil
	}
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, matcherrors.NewIngestError(matcherrors.CodeMalformedLine,
			fmt.Sprintf("cannot open names file %s", path), err)
	}
	defer closeFn()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if id, title, ok := ParseNamesLine(scanner.Text()); ok {
			out[id] = title
		}
	}
	return out, scanner.Err()
}

func loadKeywords(path string) (map[string][]string, error) {
	out := make(map[string][]string)
	if path == "" {
		return out, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out, nil
	}
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, matcherrors.NewIngestError(matcherrors.CodeMalformedLine,
			fmt.Sprintf("cannot open keywords file %s", path), err)
	}
	defer closeFn()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if id, kws, ok := ParseKeywordsLine(scanner.Text()); ok {
			out[id] = kws
		}
	}
	return out, scanner.Err()
}

func openMaybeGzip(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return gz, func() error {
			gz.Close()
			return f.Close()
		}, nil
	}
	return f, f.Close, nil
}
