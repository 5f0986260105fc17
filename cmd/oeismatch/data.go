package main

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rahidz/oeis-offline-matcher/internal/ingest"
	"github.com/rahidz/oeis-offline-matcher/internal/snapshot"
	"github.com/rahidz/oeis-offline-matcher/internal/store"
)

func newSyncCmd() *cobra.Command {
	var (
		force   bool
		fromDir string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download the OEIS stripped/names/keywords dumps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			var src snapshot.Source
			tasks := []snapshot.Task{
				{Ref: cfg.Snapshot.StrippedURL, Dest: cfg.Snapshot.StrippedPath},
				{Ref: cfg.Snapshot.NamesURL, Dest: cfg.Snapshot.NamesPath},
				{Ref: cfg.Snapshot.KeywordsURL, Dest: cfg.Snapshot.KeywordsPath},
			}
			switch {
			case fromDir != "":
				src = &snapshot.FileSource{Root: fromDir}
				for i := range tasks {
					if tasks[i].Dest != "" {
						tasks[i].Ref = filepath.Base(tasks[i].Dest)
					}
				}
			case cfg.Snapshot.S3.Bucket != "":
				s3src, err := snapshot.NewS3Source(cmd.Context(), cfg.Snapshot.S3)
				if err != nil {
					return err
				}
				src = s3src
				for i := range tasks {
					if tasks[i].Dest != "" {
						tasks[i].Ref = filepath.Base(tasks[i].Dest)
					}
				}
			default:
				src = snapshot.NewHTTPSource()
			}

			statuses, err := snapshot.Sync(cmd.Context(), src, tasks, force)
			for _, st := range statuses {
				log.Printf("%s: %s (%d bytes)", st.Dest, st.Action, st.Bytes)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-download even if files exist")
	cmd.Flags().StringVar(&fromDir, "from-dir", "", "copy dumps from a local directory instead of downloading")
	return cmd
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the SQLite index from the downloaded dumps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			log.Printf("Building index at %s from %s", cfg.Store.Path, cfg.Snapshot.StrippedPath)
			stats, err := ingest.BuildIndex(cmd.Context(), ingest.Options{
				StrippedPath: cfg.Snapshot.StrippedPath,
				NamesPath:    cfg.Snapshot.NamesPath,
				KeywordsPath: cfg.Snapshot.KeywordsPath,
				DBPath:       cfg.Store.Path,
				MaxTerms:     cfg.Store.MaxStoredTerms,
				BatchSize:    cfg.Store.BatchSize,
			})
			if err != nil {
				return err
			}
			log.Printf("Indexed %d records (%d lines skipped)", stats.Inserted, stats.Skipped)
			return nil
		},
	}
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("records: %d\nmin length: %d\nmax length: %d\n",
				stats.Count, stats.MinLength, stats.MaxLength)
			return nil
		},
	}
}
