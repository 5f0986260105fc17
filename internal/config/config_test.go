package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Query.MinMatchLength)
	assert.Equal(t, 2, cfg.Query.MaxWildcards)
	assert.Equal(t, 64, cfg.Store.MaxStoredTerms)
	assert.Equal(t, 2*time.Second, cfg.Transform.MaxTime)
	assert.Equal(t, int64(200_000), cfg.Combination.MaxChecks)
	assert.Equal(t, 5*time.Second, cfg.Combination.MaxTime)
	assert.Equal(t, int64(12), cfg.Combination.MaxDenom)
	assert.Equal(t, 0.9, cfg.Similarity.MinCorr)
	assert.Equal(t, 30, cfg.Triple.BucketCap)
}

func TestProfiles(t *testing.T) {
	fast := DefaultConfig()
	require.NoError(t, fast.ApplyProfile(ProfileFast))
	assert.Equal(t, 1, fast.Transform.MaxDepth)
	assert.False(t, fast.Triple.Enabled)
	assert.False(t, fast.Combination.Rational)

	max := DefaultConfig()
	require.NoError(t, max.ApplyProfile(ProfileMax))
	assert.Equal(t, 3, max.Transform.MaxDepth)
	assert.GreaterOrEqual(t, max.Transform.MaxTime, 60*time.Second)
	assert.GreaterOrEqual(t, max.Combination.MaxChecks, int64(5_000_000))
	assert.GreaterOrEqual(t, max.Combination.MaxTime, 600*time.Second)
	assert.True(t, max.Triple.Enabled)
	assert.Contains(t, max.Transform.OperatorSet, "binomial")

	bad := DefaultConfig()
	assert.Error(t, bad.ApplyProfile("turbo"))
}

func TestValidateRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.MaxStoredTerms = 32
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Similarity.TopK = 500
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Combination.BucketSize = 1000
	assert.Error(t, cfg.Validate())
}

func TestResolveDerivesPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/oeis-test"
	cfg.Resolve()
	assert.Equal(t, filepath.Join("/tmp/oeis-test", "oeis.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join("/tmp/oeis-test", "raw", "stripped.gz"), cfg.Snapshot.StrippedPath)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
profile: deep
data_dir: /data/oeis
store:
  max_stored_terms: 128
combination:
  max_checks: 1000
  coeffs: [-2, -1, 1, 2]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/oeis", cfg.DataDir)
	assert.Equal(t, 128, cfg.Store.MaxStoredTerms)
	assert.Equal(t, int64(1000), cfg.Combination.MaxChecks)
	assert.Equal(t, []int64{-2, -1, 1, 2}, cfg.Combination.Coeffs)
	// Untouched fields keep defaults.
	assert.Equal(t, 3, cfg.Query.MinMatchLength)
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "/data/x"}`), 0644))
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/x", cfg.DataDir)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "config.toml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OEISMATCH_DB_PATH", "/env/oeis.db")
	t.Setenv("OEISMATCH_MAX_TERMS", "96")
	t.Setenv("OEISMATCH_TRANSFORM_MAX_TIME", "750ms")
	t.Setenv("OEISMATCH_COMBO_MAX_CHECKS", "12345")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	assert.Equal(t, "/env/oeis.db", cfg.Store.Path)
	assert.Equal(t, 96, cfg.Store.MaxStoredTerms)
	assert.Equal(t, 750*time.Millisecond, cfg.Transform.MaxTime)
	assert.Equal(t, int64(12345), cfg.Combination.MaxChecks)
}
