// Package config provides unified configuration for the matcher CLI and
// library, including the fast/deep/max profile presets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile selects a preset bundle of search limits.
type Profile string

const (
	ProfileFast Profile = "fast"
	ProfileDeep Profile = "deep"
	ProfileMax  Profile = "max"
)

// Config holds the unified configuration for the matcher.
type Config struct {
	// Profile applied on top of explicit settings: fast, deep, max
	Profile Profile `json:"profile" yaml:"profile"`

	// DataDir is the base directory for snapshot and index files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Snapshot holds raw dump locations and sync sources
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`

	// Store holds index database settings
	Store StoreConfig `json:"store" yaml:"store"`

	// Query holds query validation settings
	Query QueryConfig `json:"query" yaml:"query"`

	// Transform holds transform-engine settings
	Transform TransformConfig `json:"transform" yaml:"transform"`

	// Similarity holds similarity-ranker settings
	Similarity SimilarityConfig `json:"similarity" yaml:"similarity"`

	// Combination holds combination-solver settings
	Combination CombinationConfig `json:"combination" yaml:"combination"`

	// Triple holds three-component combination settings
	Triple TripleConfig `json:"triple" yaml:"triple"`
}

// SnapshotConfig holds raw OEIS dump locations and sync sources.
type SnapshotConfig struct {
	// StrippedPath is the local path of the stripped dump (.gz or plain)
	StrippedPath string `json:"stripped_path" yaml:"stripped_path"`

	// NamesPath is the local path of the names dump
	NamesPath string `json:"names_path" yaml:"names_path"`

	// KeywordsPath is the optional local path of the keywords dump
	KeywordsPath string `json:"keywords_path" yaml:"keywords_path"`

	// StrippedURL and NamesURL are the download sources for sync
	StrippedURL string `json:"stripped_url" yaml:"stripped_url"`
	NamesURL    string `json:"names_url" yaml:"names_url"`
	KeywordsURL string `json:"keywords_url" yaml:"keywords_url"`

	// S3 configures an optional S3 mirror used instead of HTTPS
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 mirror configuration for snapshot sync.
type S3Config struct {
	// Bucket is the S3 bucket name; empty disables the S3 source
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is an optional custom endpoint (MinIO etc.)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is the object key prefix holding the dumps
	Prefix string `json:"prefix" yaml:"prefix"`
}

// StoreConfig holds index database settings.
type StoreConfig struct {
	// Path is the SQLite index file
	Path string `json:"path" yaml:"path"`

	// MaxStoredTerms caps terms kept per record (>= 64)
	MaxStoredTerms int `json:"max_stored_terms" yaml:"max_stored_terms"`

	// BatchSize is the ingest insert batch size
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// QueryConfig holds query validation settings.
type QueryConfig struct {
	// MinMatchLength is the minimum overlap accepted
	MinMatchLength int `json:"min_match_length" yaml:"min_match_length"`

	// AllowSubsequence enables subsequence matching by default
	AllowSubsequence bool `json:"allow_subsequence" yaml:"allow_subsequence"`

	// MaxWildcards caps '?' positions per query
	MaxWildcards int `json:"max_wildcards" yaml:"max_wildcards"`

	// ExactLimit caps exact matches returned
	ExactLimit int `json:"exact_limit" yaml:"exact_limit"`

	// SnippetLen is the stored-sequence window attached to matches (0 = none)
	SnippetLen int `json:"snippet_len" yaml:"snippet_len"`
}

// TransformConfig holds transform-engine settings.
type TransformConfig struct {
	// MaxDepth is the chain depth cap
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// OperatorSet names enabled operators; empty means the basic set
	OperatorSet []string `json:"operator_set" yaml:"operator_set"`

	// ScaleValues and BetaValues parameterize scale/affine operators
	ScaleValues []int64 `json:"scale_values" yaml:"scale_values"`
	BetaValues  []int64 `json:"beta_values" yaml:"beta_values"`

	// ShiftValues parameterizes shift_forward/shift_back
	ShiftValues []int64 `json:"shift_values" yaml:"shift_values"`

	// DecimateValues parameterizes decimate(k)
	DecimateValues []int64 `json:"decimate_values" yaml:"decimate_values"`

	// MovsumWindows parameterizes movsum(k)
	MovsumWindows []int64 `json:"movsum_windows" yaml:"movsum_windows"`

	// MaxTime is the enumeration wall-clock cap
	MaxTime time.Duration `json:"max_time" yaml:"max_time"`

	// MaxChains caps the number of distinct chains evaluated
	MaxChains int `json:"max_chains" yaml:"max_chains"`

	// MinVariance drops near-constant transformed queries
	MinVariance float64 `json:"min_variance" yaml:"min_variance"`

	// Limit caps transform matches returned
	Limit int `json:"limit" yaml:"limit"`

	// Weights overrides per-operator complexity weights (name -> weight)
	Weights map[string]int `json:"weights" yaml:"weights"`
}

// SimilarityConfig holds similarity-ranker settings.
type SimilarityConfig struct {
	// MinCorr drops candidates with |rho| below this
	MinCorr float64 `json:"min_corr" yaml:"min_corr"`

	// MaxNMSE drops candidates with normalized MSE above this
	MaxNMSE float64 `json:"max_nmse" yaml:"max_nmse"`

	// TopK is the number of candidates returned (hard cap 200)
	TopK int `json:"top_k" yaml:"top_k"`
}

// CombinationConfig holds pair combination-solver settings.
type CombinationConfig struct {
	// BucketSize caps the candidate bucket (hard cap 200)
	BucketSize int `json:"bucket_size" yaml:"bucket_size"`

	// Coeffs is the integer coefficient set
	Coeffs []int64 `json:"coeffs" yaml:"coeffs"`

	// Rational enables the exact rational-elimination mode
	Rational bool `json:"rational" yaml:"rational"`

	// MaxDenom caps coefficient denominators in rational mode
	MaxDenom int64 `json:"max_denom" yaml:"max_denom"`

	// MaxCoeffNum caps coefficient numerators in rational mode
	MaxCoeffNum int64 `json:"max_coeff_num" yaml:"max_coeff_num"`

	// MaxShift and MaxShiftBack bound per-component shifts
	MaxShift     int `json:"max_shift" yaml:"max_shift"`
	MaxShiftBack int `json:"max_shift_back" yaml:"max_shift_back"`

	// ComponentTransforms names enabled per-component transforms
	ComponentTransforms []string `json:"component_transforms" yaml:"component_transforms"`

	// MaxChecks caps candidate-shift-coefficient combinations examined
	MaxChecks int64 `json:"max_checks" yaml:"max_checks"`

	// MaxTime is the wall-clock cap
	MaxTime time.Duration `json:"max_time" yaml:"max_time"`

	// Limit caps combination matches returned
	Limit int `json:"limit" yaml:"limit"`
}

// TripleConfig holds three-component combination settings.
type TripleConfig struct {
	// Enabled turns triple search on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BucketCap is the bucket size above which triples are skipped
	BucketCap int `json:"bucket_cap" yaml:"bucket_cap"`

	// MaxChecks and MaxTime bound the search
	MaxChecks int64         `json:"max_checks" yaml:"max_checks"`
	MaxTime   time.Duration `json:"max_time" yaml:"max_time"`

	// Limit caps triple matches returned
	Limit int `json:"limit" yaml:"limit"`
}

// DefaultConfig returns the default (deep-profile) configuration.
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileDeep,
		DataDir: "./data/oeismatch",
		Snapshot: SnapshotConfig{
			StrippedURL: "https://oeis.org/stripped.gz",
			NamesURL:    "https://oeis.org/names.gz",
		},
		Store: StoreConfig{
			MaxStoredTerms: 64,
			BatchSize:      5000,
		},
		Query: QueryConfig{
			MinMatchLength: 3,
			MaxWildcards:   2,
			ExactLimit:     10,
			SnippetLen:     20,
		},
		Transform: TransformConfig{
			MaxDepth:       2,
			ScaleValues:    []int64{-3, -2, -1, 2, 3},
			BetaValues:     []int64{-2, -1, 1, 2},
			ShiftValues:    []int64{1, 2},
			DecimateValues: []int64{2, 3},
			MovsumWindows:  []int64{2, 3},
			MaxTime:        2 * time.Second,
			MaxChains:      20000,
			MinVariance:    0,
			Limit:          20,
		},
		Similarity: SimilarityConfig{
			MinCorr: 0.9,
			MaxNMSE: 1.0,
			TopK:    100,
		},
		Combination: CombinationConfig{
			BucketSize:          60,
			Coeffs:              []int64{-5, -4, -3, -2, -1, 1, 2, 3, 4, 5},
			Rational:            true,
			MaxDenom:            12,
			MaxCoeffNum:         20,
			MaxShift:            2,
			MaxShiftBack:        0,
			ComponentTransforms: []string{"id", "diff", "partial_sum"},
			MaxChecks:           200_000,
			MaxTime:             5 * time.Second,
			Limit:               20,
		},
		Triple: TripleConfig{
			Enabled:   false,
			BucketCap: 30,
			MaxChecks: 300_000,
			MaxTime:   5 * time.Second,
			Limit:     10,
		},
	}
}

// ApplyProfile overwrites the search limits with a preset bundle.
func (c *Config) ApplyProfile(p Profile) error {
	switch p {
	case ProfileFast:
		c.Transform.MaxDepth = 1
		c.Transform.ScaleValues = []int64{-2, -1, 2}
		c.Transform.BetaValues = nil
		c.Transform.ShiftValues = []int64{1}
		c.Transform.DecimateValues = nil
		c.Transform.MovsumWindows = nil
		c.Transform.MaxTime = 500 * time.Millisecond
		c.Transform.Limit = 5
		c.Similarity.TopK = 20
		c.Combination.BucketSize = 20
		c.Combination.Coeffs = []int64{-2, -1, 1, 2}
		c.Combination.MaxShift = 0
		c.Combination.MaxChecks = 100_000
		c.Combination.MaxTime = time.Second
		c.Combination.Rational = false
		c.Triple.Enabled = false
	case ProfileDeep:
		// DefaultConfig is the deep profile.
	case ProfileMax:
		c.Transform.MaxDepth = 3
		c.Transform.ScaleValues = []int64{-5, -4, -3, -2, -1, 2, 3, 4, 5}
		c.Transform.BetaValues = []int64{-3, -2, -1, 1, 2, 3}
		c.Transform.ShiftValues = []int64{1, 2, 3, 4}
		c.Transform.DecimateValues = []int64{2, 3, 4}
		c.Transform.MovsumWindows = []int64{2, 3, 4}
		c.Transform.OperatorSet = AllOperators()
		c.Transform.MaxTime = 60 * time.Second
		c.Transform.Limit = 40
		c.Similarity.TopK = 200
		c.Combination.BucketSize = 200
		c.Combination.MaxShift = 3
		c.Combination.MaxShiftBack = 2
		c.Combination.MaxChecks = 5_000_000
		c.Combination.MaxTime = 600 * time.Second
		c.Triple.Enabled = true
		c.Triple.BucketCap = 60
		c.Triple.MaxChecks = 2_000_000
		c.Triple.MaxTime = 600 * time.Second
	default:
		return fmt.Errorf("invalid profile: %s (must be fast, deep, or max)", p)
	}
	c.Profile = p
	return nil
}

// AllOperators lists every operator name the transform engine knows,
// including the opt-in and exotic ones enabled by the max profile.
func AllOperators() []string {
	return []string{
		"scale", "affine", "shift_forward", "shift_back", "diff", "diff2",
		"partial_sum", "abs", "gcd_norm", "decimate", "reverse",
		"even_indexed", "odd_indexed", "movsum", "cumprod", "popcount",
		"digit_sum", "mod", "xor_index", "rle", "rle_decode", "concat_index",
		"log", "exp", "binomial", "euler", "mobius",
	}
}

// Resolve fills derived paths from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/oeismatch"
	}
	if c.Snapshot.StrippedPath == "" {
		c.Snapshot.StrippedPath = filepath.Join(c.DataDir, "raw", "stripped.gz")
	}
	if c.Snapshot.NamesPath == "" {
		c.Snapshot.NamesPath = filepath.Join(c.DataDir, "raw", "names.gz")
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "oeis.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileFast, ProfileDeep, ProfileMax, "":
	default:
		return fmt.Errorf("invalid profile: %s", c.Profile)
	}
	if c.Store.MaxStoredTerms < 64 {
		return fmt.Errorf("store.max_stored_terms must be >= 64, got %d", c.Store.MaxStoredTerms)
	}
	if c.Query.MinMatchLength < 1 {
		return fmt.Errorf("query.min_match_length must be >= 1, got %d", c.Query.MinMatchLength)
	}
	if c.Similarity.TopK > 200 {
		return fmt.Errorf("similarity.top_k must be <= 200, got %d", c.Similarity.TopK)
	}
	if c.Combination.BucketSize > 200 {
		return fmt.Errorf("combination.bucket_size must be <= 200, got %d", c.Combination.BucketSize)
	}
	if c.Combination.MaxDenom < 1 {
		return fmt.Errorf("combination.max_denom must be >= 1, got %d", c.Combination.MaxDenom)
	}
	return nil
}

// EnsureDirectories creates the data directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Snapshot.StrippedPath),
		filepath.Dir(c.Store.Path),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration overrides from environment variables.
// Environment variables use the OEISMATCH_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("OEISMATCH_PROFILE"); v != "" {
		cfg.Profile = Profile(v)
	}
	if v := os.Getenv("OEISMATCH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OEISMATCH_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("OEISMATCH_STRIPPED_PATH"); v != "" {
		cfg.Snapshot.StrippedPath = v
	}
	if v := os.Getenv("OEISMATCH_NAMES_PATH"); v != "" {
		cfg.Snapshot.NamesPath = v
	}
	if v := os.Getenv("OEISMATCH_KEYWORDS_PATH"); v != "" {
		cfg.Snapshot.KeywordsPath = v
	}
	if v := os.Getenv("OEISMATCH_S3_BUCKET"); v != "" {
		cfg.Snapshot.S3.Bucket = v
	}
	if v := os.Getenv("OEISMATCH_S3_REGION"); v != "" {
		cfg.Snapshot.S3.Region = v
	}
	if v := os.Getenv("OEISMATCH_S3_ENDPOINT"); v != "" {
		cfg.Snapshot.S3.Endpoint = v
	}
	if v := os.Getenv("OEISMATCH_MAX_TERMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxStoredTerms = n
		}
	}
	if v := os.Getenv("OEISMATCH_MIN_MATCH_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.MinMatchLength = n
		}
	}
	if v := os.Getenv("OEISMATCH_TRANSFORM_MAX_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transform.MaxTime = d
		}
	}
	if v := os.Getenv("OEISMATCH_COMBO_MAX_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Combination.MaxTime = d
		}
	}
	if v := os.Getenv("OEISMATCH_COMBO_MAX_CHECKS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Combination.MaxChecks = n
		}
	}
}
