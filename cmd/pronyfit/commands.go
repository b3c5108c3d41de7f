package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/pronyfit/internal/config"
	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/dataset"
	"github.com/verte-zerg/pronyfit/internal/export"
	"github.com/verte-zerg/pronyfit/internal/fit"
	"github.com/verte-zerg/pronyfit/internal/generator"
	"github.com/verte-zerg/pronyfit/internal/historyui"
	"github.com/verte-zerg/pronyfit/internal/logger"
	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/stats"
)

var (
	synthKind    string
	synthTerms   int
	synthParams  string
	synthTMin    float64
	synthTMax    float64
	synthPoints  int
	synthNoise   float64
	synthSeed    int64
	synthShuffle bool
	synthOut     string

	historyKind  string
	historySince string
	historyLast  int
	historyPlain bool

	exportOut string
)

func newSynthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write synthetic data from a model",
		Args:  cobra.NoArgs,
		RunE:  runSynthCmd,
	}
	cmd.Flags().StringVarP(&synthKind, "kind", "k", defaultKind, "model kind")
	cmd.Flags().IntVarP(&synthTerms, "terms", "n", 1, "number of terms")
	cmd.Flags().StringVarP(&synthParams, "params", "p", "", "model parameters (comma separated)")
	cmd.Flags().Float64Var(&synthTMin, "tmin", -3, "first reduced time exponent (10^x)")
	cmd.Flags().Float64Var(&synthTMax, "tmax", 5, "last reduced time exponent (10^x)")
	cmd.Flags().IntVar(&synthPoints, "points", 40, "number of samples")
	cmd.Flags().Float64Var(&synthNoise, "noise", 0, "relative Gaussian noise")
	cmd.Flags().Int64Var(&synthSeed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().BoolVar(&synthShuffle, "shuffle", false, "shuffle the output rows")
	cmd.Flags().StringVarP(&synthOut, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runSynthCmd(cmd *cobra.Command, _ []string) error {
	kind, err := model.ParseKind(synthKind)
	if err != nil {
		return err
	}
	spec := model.Spec{Kind: kind}
	if kind.UsesTerms() {
		spec.Terms = synthTerms
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(synthParams) == "" {
		return fmt.Errorf("--params is required (%s takes %d values)", spec, spec.Arity())
	}
	params, err := parseFloats(synthParams)
	if err != nil {
		return fmt.Errorf("invalid --params: %w", err)
	}

	gen := generator.New()
	if cmd.Flags().Changed("seed") {
		gen = generator.NewSeeded(synthSeed)
	}
	samples, err := gen.Generate(generator.Request{
		Spec:    spec,
		Params:  params,
		MinExp:  synthTMin,
		MaxExp:  synthTMax,
		Points:  synthPoints,
		Noise:   synthNoise,
		Shuffle: synthShuffle,
	})
	if err != nil {
		return err
	}

	if synthOut == "" {
		return dataset.WriteCSV(cmd.OutOrStdout(), "tr", responseLabel(kind), samples)
	}
	f, err := os.Create(synthOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", synthOut, err)
	}
	if err := dataset.WriteCSV(f, "tr", responseLabel(kind), samples); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", synthOut, err)
	}
	logger.Info("wrote synthetic data", "path", synthOut, "samples", len(samples))
	return nil
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List model kinds and their default policies",
		Args:  cobra.NoArgs,
		RunE:  runKindsCmd,
	}
}

func runKindsCmd(cmd *cobra.Command, _ []string) error {
	headers := []string{"Kind", "Parameters", "Guess", "Bounds", "Algorithm"}
	rows := make([][]string, 0, len(model.AllKinds()))
	for _, kp := range fit.PolicyTable() {
		policy, err := fileCfg.PolicyFor(kp.Kind)
		if err != nil {
			return err
		}
		spec := model.Spec{Kind: kp.Kind, Terms: 1}
		m, err := curve.New(spec)
		if err != nil {
			return err
		}
		layout := strings.Join(m.ParamNames(), " ")
		if kp.Kind.UsesTerms() {
			layout += " (per term)"
		}
		rows = append(rows, []string{
			kp.Kind.String(),
			layout,
			policy.Guess.String(),
			policy.Bounds.String(),
			policy.Algorithm.String(),
		})
	}
	return stats.RenderTable(cmd.OutOrStdout(), headers, rows)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored fits",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyKind, "kind", "", "model kind filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N fits")
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print a summary instead of the browser")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	cfg := model.HistoryConfig{Kind: historyKind, Since: sinceTime, Last: historyLast}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if historyPlain {
		history, err := stats.BuildHistory(context.Background(), st, cfg)
		if err != nil {
			return fmt.Errorf("failed to load fits: %w", err)
		}
		w := cmd.OutOrStdout()
		if err := stats.RenderHistorySummary(w, history.Fits); err != nil {
			return err
		}
		if err := stats.RenderHistoryTable(w, history.Fits); err != nil {
			return err
		}
		return stats.RenderRSquaredTrend(w, history.Fits, terminalWidth(), 0, false)
	}

	ui := historyui.NewModel(st, cfg, configuredGrid())
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored fit",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	rec, err := loadRecord(args[0])
	if err != nil {
		return err
	}
	if err := stats.RenderRecord(cmd.OutOrStdout(), rec); err != nil {
		return err
	}
	return plotRecord(cmd, rec, configuredGrid())
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored fit as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	rec, err := loadRecord(args[0])
	if err != nil {
		return err
	}
	doc, err := export.FromRecord(rec, configuredGrid())
	if err != nil {
		return err
	}
	if exportOut == "" {
		return export.Write(cmd.OutOrStdout(), doc)
	}
	if err := export.WriteFile(exportOut, doc); err != nil {
		return err
	}
	logger.Info("wrote yaml", "path", exportOut)
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// configuredGrid is the [fit] grid from the config file or the default grid.
func configuredGrid() stats.Grid {
	grid := stats.DefaultGrid()
	if v := fileCfg.Fit.GridMin; v != nil {
		grid.MinExp = *v
	}
	if v := fileCfg.Fit.GridMax; v != nil {
		grid.MaxExp = *v
	}
	if v := fileCfg.Fit.GridPoints; v != nil {
		grid.Points = *v
	}
	return grid
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func defaultConfigTemplate() string {
	grid := stats.DefaultGrid()
	return fmt.Sprintf(`# pronyfit configuration
# Uncomment a value to enable it. CLI flags override config values.

[fit]
# kind = %q       # Model kind (see: pronyfit kinds)
# terms = %d                      # Prony or power-law terms
# time-column = %q                # Reduced time column (name or index)
# response-column = %q            # Response column (name or index)
# grid-min = %g                  # Synthetic curve start exponent
# grid-max = %g                   # Synthetic curve end exponent
# grid-points = %d               # Synthetic curve points
# plot = true                     # Terminal log-log plot
# save = true                     # Store fits in the history database

[solver]
# max-iterations = 0              # 0 selects 500*(n+1)
# ftol = 1e-10
# xtol = 1e-10
# gtol = 1e-10
# jacobian = "analytic"           # analytic or numeric

[log]
# level = "info"                  # debug, info, warn, error

# Per-kind policy overrides, e.g.:
# [policy.prony-modulus]
# initial-guess = "log-spaced"    # zeros, ones, log-spaced or a number
# guess = [1.0, 0.5, 0.0]         # explicit starting point
# lower = 0.0
# upper = inf
# algorithm = "trf"               # trf, dogbox, lm, nelder-mead
`,
		defaultKind,
		defaultTerms,
		defaultTimeCol,
		defaultResponseCol,
		grid.MinExp,
		grid.MaxExp,
		grid.Points,
	)
}
