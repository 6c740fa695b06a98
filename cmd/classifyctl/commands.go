package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kirillkom/prototype-classifier/internal/bootstrap"
	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/usecase"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/catalog"
	"github.com/kirillkom/prototype-classifier/internal/observability/logging"
)

type globalFlags struct {
	embedder   string
	categories string
	logLevel   string
}

func rootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "classifyctl",
		Short:         "Classify text against seven category prototypes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg := config.Load()
			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = flags.logLevel
			}
			slog.SetDefault(logging.NewJSONLoggerTo(stderr, "classifyctl", level))
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&flags.embedder, "embedder", "", "Embedder provider (ollama, hashing); defaults to EMBEDDER_PROVIDER")
	cmd.PersistentFlags().StringVar(&flags.categories, "categories", "", "Category catalog YAML; defaults to CATEGORIES_FILE")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		classifyCmd(&flags),
		propagateCmd(&flags),
		tableCmd(&flags),
		categoriesCmd(&flags),
	)
	return cmd
}

func (f *globalFlags) config() config.Config {
	cfg := config.Load()
	if f.embedder != "" {
		cfg.EmbedderProvider = f.embedder
	}
	if f.categories != "" {
		cfg.CategoriesFile = f.categories
	}
	cfg.CategoriesWatch = false
	return cfg
}

// propagator builds the table from the catalog override without touching
// the embedder.
func (f *globalFlags) propagator() (*usecase.PropagateUseCase, error) {
	table := domain.DefaultPropagationTable()
	if path := f.config().CategoriesFile; path != "" {
		cat, err := catalog.Load(path)
		if err != nil {
			return nil, err
		}
		if cat.Table != nil {
			table = *cat.Table
		}
	}
	return usecase.NewPropagateUseCase(table)
}

func classifyCmd(flags *globalFlags) *cobra.Command {
	var (
		output  string
		maxSize int
		minSize int
	)

	cmd := &cobra.Command{
		Use:   "classify [file|-]",
		Short: "Classify a file or standard input",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			c, err := bootstrap.NewStandalone(cmd.Context(), flags.config(), "classifyctl", prometheus.NewRegistry())
			if err != nil {
				return err
			}
			result, err := c.Classifier.Classify(cmd.Context(), domain.ClassifyRequest{
				Text:    text,
				Options: domain.ClassifyOptions{MaxChunkSize: maxSize, MinChunkSize: minSize},
			})
			if err != nil {
				return err
			}

			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return writeClassification(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().IntVar(&maxSize, "max-chunk-size", 0, "Maximum chunk length in characters")
	cmd.Flags().IntVar(&minSize, "min-chunk-size", 0, "Minimum chunk length in characters")
	return cmd
}

func propagateCmd(flags *globalFlags) *cobra.Command {
	var (
		start int
		chain []int
	)

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Run a chain of symbols through the propagation table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.propagator()
			if err != nil {
				return err
			}
			result, err := p.Propagate(cmd.Context(), domain.PropagationRequest{StartSymbol: start, Chain: chain})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, state := range result.Trace {
				fmt.Fprintf(out, "%d\t%s\n", i, formatState(state))
			}
			fmt.Fprintf(out, "final\t%s\n", formatState(domain.PropagationState{Sign: result.FinalSign, Symbol: result.FinalSymbol}))
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 1, "Start symbol (1..7)")
	cmd.Flags().IntSliceVar(&chain, "chain", nil, "Comma-separated input symbols")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func tableCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "table",
		Short: "Print and verify the propagation table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.propagator()
			if err != nil {
				return err
			}
			table := p.Table()

			out := cmd.OutOrStdout()
			fmt.Fprint(out, "T")
			for j := 1; j <= domain.CategoryCount; j++ {
				fmt.Fprintf(out, "\te%d", j)
			}
			fmt.Fprintln(out)
			for i := range table {
				fmt.Fprintf(out, "e%d", i+1)
				for _, entry := range table[i] {
					fmt.Fprintf(out, "\t%s", catalog.FormatEntry(entry))
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, "antisymmetric: ok")
			return nil
		},
	}
}

func categoriesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print the category catalog in effect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := domain.DefaultCategorySet()
			var table *domain.PropagationTable
			if path := flags.config().CategoriesFile; path != "" {
				cat, err := catalog.Load(path)
				if err != nil {
					return err
				}
				set, table = cat.Categories, cat.Table
			}
			return catalog.Encode(cmd.OutOrStdout(), set, table)
		},
	}
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(raw), nil
}

func writeClassification(w io.Writer, result *domain.ClassificationResult) error {
	fmt.Fprintf(w, "dominant\t%d %s\n", result.DominantIndex, result.DominantLabel)
	fmt.Fprintf(w, "confidence\t%.4f\n", result.Confidence)
	fmt.Fprintf(w, "coherence\t%d\n", result.CoherenceFlag)
	fmt.Fprintf(w, "covering\t%d\n", result.CoveringCount)
	fmt.Fprintf(w, "chunks\t%d processed, %d skipped\n", result.ChunksProcessed, result.ChunksSkipped)
	for _, r := range result.Ranking {
		fmt.Fprintf(w, "  %d %-16s p=%.4f cos=%.4f\n", r.Index, r.Label, r.Probability, r.Similarity)
	}
	if result.Narrative != nil {
		steps := make([]string, len(result.Narrative.Trace))
		for i, s := range result.Narrative.Trace {
			steps[i] = formatState(s)
		}
		fmt.Fprintf(w, "narrative\t%s\n", strings.Join(steps, " -> "))
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "warning\t%s\n", warning)
	}
	return nil
}

func formatState(s domain.PropagationState) string {
	sign := "+"
	if s.Sign < 0 {
		sign = "-"
	}
	if s.Symbol == domain.ScalarSymbol {
		return sign + "1"
	}
	return fmt.Sprintf("%se%d", sign, s.Symbol)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
