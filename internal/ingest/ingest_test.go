package ingest

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

func TestParseStrippedLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		id   string
		text string
		ok   bool
	}{
		{"plain", "A000045 0,1,1,2,3,5,8", "A000045", "0,1,1,2,3,5,8", true},
		{"bracketed commas", "A000012 ,1,1,1,1,", "A000012", "1,1,1,1", true},
		{"comma separated id", "A000027,1,2,3", "A000027", "1,2,3", true},
		{"comment", "# OEIS stripped file", "", "", false},
		{"blank", "   ", "", "", false},
		{"bad id", "X000001 1,2,3", "", "", false},
		{"short id", "A123 1,2,3", "", "", false},
		{"no terms", "A000001 ", "", "", false},
		{"negative terms", "A001489 0,-1,-2,-3", "A001489", "0,-1,-2,-3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := ParseStrippedLine(tt.line, 64)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.id, entry.ID)
				assert.Equal(t, tt.text, entry.Terms.String())
			}
		})
	}
}

func TestParseStrippedLineTruncates(t *testing.T) {
	entry, ok := ParseStrippedLine("A000027 1,2,3,4,5,6,7,8", 4)
	require.True(t, ok)
	assert.Equal(t, "1,2,3,4", entry.Terms.String())
}

func TestParseNamesLine(t *testing.T) {
	id, title, ok := ParseNamesLine("A000045 Fibonacci numbers: a(n) = a(n-1) + a(n-2).")
	require.True(t, ok)
	assert.Equal(t, "A000045", id)
	assert.Equal(t, "Fibonacci numbers: a(n) = a(n-1) + a(n-2).", title)

	_, _, ok = ParseNamesLine("# names file")
	assert.False(t, ok)
}

func TestParseKeywordsLine(t *testing.T) {
	id, kws, ok := ParseKeywordsLine("A000045 core,nonn,nice,easy")
	require.True(t, ok)
	assert.Equal(t, "A000045", id)
	assert.Equal(t, []string{"core", "nonn", "nice", "easy"}, kws)
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestBuildIndexEndToEnd(t *testing.T) {
	dir := t.TempDir()
	strippedPath := filepath.Join(dir, "stripped.gz")
	namesPath := filepath.Join(dir, "names.gz")
	keywordsPath := filepath.Join(dir, "keywords")
	dbPath := filepath.Join(dir, "oeis.db")

	writeGzip(t, strippedPath, `# OEIS stripped export
A000045 ,0,1,1,2,3,5,8,13,21,
A000027 ,1,2,3,4,5,6,7,8,
not a line
A007395 ,2,2,2,2,2,2,
`)
	writeGzip(t, namesPath, `A000045 Fibonacci numbers
A000027 The positive integers
A007395 Constant sequence
`)
	require.NoError(t, os.WriteFile(keywordsPath, []byte("A000045 core,nonn,nice\n"), 0644))

	stats, err := BuildIndex(context.Background(), Options{
		StrippedPath: strippedPath,
		NamesPath:    namesPath,
		KeywordsPath: keywordsPath,
		DBPath:       dbPath,
		MaxTerms:     64,
		BatchSize:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Inserted)
	assert.GreaterOrEqual(t, stats.Skipped, int64(1))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	fib, err := st.Get(context.Background(), "A000045")
	require.NoError(t, err)
	assert.Equal(t, "Fibonacci numbers", fib.Name)
	assert.Equal(t, []string{"core", "nonn", "nice"}, fib.Keywords)
	assert.Equal(t, "0,1,1,2,3,5,8,13,21", fib.Terms.String())
	assert.Equal(t, seq.PrefixHash(fib.Terms), fib.Invariants.PrefixHash)
}

func TestBuildIndexWithoutOptionalFiles(t *testing.T) {
	dir := t.TempDir()
	strippedPath := filepath.Join(dir, "stripped")
	require.NoError(t, os.WriteFile(strippedPath,
		[]byte("A000045 0,1,1,2,3,5,8\n"), 0644))

	stats, err := BuildIndex(context.Background(), Options{
		StrippedPath: strippedPath,
		DBPath:       filepath.Join(dir, "oeis.db"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Inserted)
}
