package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rahidz/oeis-offline-matcher/internal/analyze"
	"github.com/rahidz/oeis-offline-matcher/internal/config"
	"github.com/rahidz/oeis-offline-matcher/internal/render"
	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// openAndParse loads config, opens the store, and parses the query text.
func openAndParse(args []string, allowSubseq bool) (*config.Config, *store.SQLiteStore, seq.SequenceQuery, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, seq.SequenceQuery{}, err
	}
	query, err := seq.ParseQuery(strings.Join(args, " "), seq.ParseOptions{
		MinMatchLength:   cfg.Query.MinMatchLength,
		AllowSubsequence: allowSubseq || cfg.Query.AllowSubsequence,
		MaxWildcards:     cfg.Query.MaxWildcards,
	})
	if err != nil {
		return nil, nil, seq.SequenceQuery{}, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, seq.SequenceQuery{}, err
	}
	return cfg, st, query, nil
}

func runStages(cmd *cobra.Command, args []string, allowSubseq bool, stages analyze.Stages, show func(*seq.AnalysisResult)) error {
	cfg, st, query, err := openAndParse(args, allowSubseq)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := analyze.New(cfg, st, stages).Analyze(cmd.Context(), query)
	if err != nil {
		return err
	}
	show(result)
	return nil
}

func newMatchCmd() *cobra.Command {
	var subseq bool
	cmd := &cobra.Command{
		Use:   "match <terms>",
		Short: "Exact prefix (and optionally subsequence) match",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, args, subseq, analyze.Stages{Exact: true}, func(r *seq.AnalysisResult) {
				if len(r.ExactMatches) == 0 {
					fmt.Println("no matches")
					return
				}
				for _, m := range r.ExactMatches {
					fmt.Println(render.MatchLine(m))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&subseq, "subseq", false, "also match anywhere inside stored sequences")
	return cmd
}

func newTransformCmd() *cobra.Command {
	var subseq bool
	cmd := &cobra.Command{
		Use:   "transform <terms>",
		Short: "Search transform chains of the query against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, args, subseq, analyze.Stages{Transform: true}, func(r *seq.AnalysisResult) {
				if len(r.TransformMatches) == 0 {
					fmt.Println("no transform matches")
					return
				}
				for _, m := range r.TransformMatches {
					fmt.Println(render.MatchLine(m))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&subseq, "subseq", false, "also match anywhere inside stored sequences")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similar <terms>",
		Short: "Rank similar sequences by affine fit and correlation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, args, false, analyze.Stages{Similarity: true}, func(r *seq.AnalysisResult) {
				if len(r.Similarity) == 0 {
					fmt.Println("no similar sequences")
					return
				}
				for _, h := range r.Similarity {
					fmt.Println(render.SimilarityLine(h))
				}
			})
		},
	}
}

func newCombineCmd() *cobra.Command {
	var triples bool
	cmd := &cobra.Command{
		Use:   "combine <terms>",
		Short: "Search linear combinations of stored sequences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := analyze.Stages{Combinations: true, Triples: triples}
			return runStages(cmd, args, false, stages, func(r *seq.AnalysisResult) {
				if len(r.Combinations) == 0 && len(r.TripleCombinations) == 0 {
					fmt.Println("no combinations found")
					return
				}
				for _, m := range r.Combinations {
					fmt.Println(render.CombinationLine(m))
				}
				for _, m := range r.TripleCombinations {
					fmt.Println(render.CombinationLine(m))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&triples, "triples", false, "also search three-component combinations")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		subseq  bool
		triples bool
		asJSON  bool
		latex   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <terms>",
		Short: "Run the full pipeline: exact, transforms, similarity, combinations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := analyze.AllStages()
			stages.Triples = triples
			return runStages(cmd, args, subseq, stages, func(r *seq.AnalysisResult) {
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					enc.Encode(r)
					return
				}
				printSection("Exact matches", len(r.ExactMatches))
				for _, m := range r.ExactMatches {
					fmt.Println("  " + render.MatchLine(m))
				}
				printSection("Transform matches", len(r.TransformMatches))
				for _, m := range r.TransformMatches {
					fmt.Println("  " + render.MatchLine(m))
				}
				printSection("Similar sequences", len(r.Similarity))
				for _, h := range r.Similarity {
					fmt.Println("  " + render.SimilarityLine(h))
				}
				printSection("Combinations", len(r.Combinations)+len(r.TripleCombinations))
				for _, m := range append(r.Combinations, r.TripleCombinations...) {
					fmt.Println("  " + render.CombinationLine(m))
					if latex {
						fmt.Println("    " + render.LaTeX(m))
					}
				}
				fmt.Printf("\nrun %s, query length %d\n", r.Diagnostics.RunID, r.Diagnostics.QueryLength)
				stageNames := make([]string, 0, len(r.Diagnostics.Stages))
				for stage := range r.Diagnostics.Stages {
					stageNames = append(stageNames, stage)
				}
				sort.Strings(stageNames)
				for _, stage := range stageNames {
					d := r.Diagnostics.Stages[stage]
					fmt.Printf("  %-12s %5dms candidates=%d", stage, d.ElapsedMillis, d.CandidatesPostFilter)
					if d.Truncated {
						fmt.Printf(" truncated=%s", d.TruncatedBy)
					}
					fmt.Println()
				}
			})
		},
	}
	cmd.Flags().BoolVar(&subseq, "subseq", false, "also match anywhere inside stored sequences")
	cmd.Flags().BoolVar(&triples, "triples", false, "also search three-component combinations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full analysis result as JSON")
	cmd.Flags().BoolVar(&latex, "latex", false, "print LaTeX forms for combinations")
	return cmd
}

func printSection(title string, n int) {
	fmt.Printf("%s (%d):\n", title, n)
}
