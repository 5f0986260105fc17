// Package main implements the oeismatch CLI: snapshot sync, index build,
// and offline sequence matching against the local OEIS index.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahidz/oeis-offline-matcher/internal/config"
)

var (
	flagConfig  string
	flagProfile string
	flagDB      string
)

func main() {
	root := &cobra.Command{
		Use:           "oeismatch",
		Short:         "Offline matcher for integer sequences against a local OEIS snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML or JSON config file")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "search profile: fast, deep, max")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "path to the SQLite index")

	root.AddCommand(
		newSyncCmd(),
		newBuildCmd(),
		newStatsCmd(),
		newMatchCmd(),
		newTransformCmd(),
		newSimilarCmd(),
		newCombineCmd(),
		newAnalyzeCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Printf("oeismatch: %v", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: file, env, flags, profile.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flagConfig != "" {
		loaded, err := config.LoadFromFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	profile := cfg.Profile
	if flagProfile != "" {
		profile = config.Profile(flagProfile)
	}
	if profile != "" {
		if err := cfg.ApplyProfile(profile); err != nil {
			return nil, err
		}
	}
	if flagDB != "" {
		cfg.Store.Path = flagDB
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
