// Package main provides the CLI entrypoint for pronyfit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/pronyfit/internal/config"
	"github.com/verte-zerg/pronyfit/internal/export"
	"github.com/verte-zerg/pronyfit/internal/fit"
	"github.com/verte-zerg/pronyfit/internal/logger"
	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/stats"
	"github.com/verte-zerg/pronyfit/internal/store"
)

const (
	defaultKind        = "prony-compliance"
	defaultTerms       = 4
	defaultTimeCol     = "0"
	defaultResponseCol = "1"
	defaultPlotHeight  = 14
)

var (
	dbPath     string
	logLevel   string
	configPath string
	fileCfg    config.FileConfig

	fitInput       string
	fitTimeCol     string
	fitResponseCol string
	fitKind        string
	fitTerms       int
	fitGridMin     float64
	fitGridMax     float64
	fitGridPoints  int
	fitPNG         string
	fitYAML        string
	fitPlot        bool
	fitSave        bool
	fitAlgorithm   string
	fitGuess       string
	fitLower       float64
	fitUpper       float64
	fitJacobian    string
	fitMaxIter     int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "pronyfit",
		Short:             "Fit Prony series and power-law models to viscoelastic data",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setup,
		RunE:              runFitCmd,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "fit history database (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: XDG config dir)")
	addFitFlags(rootCmd)

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a model to a data file",
		Args:  cobra.NoArgs,
		RunE:  runFitCmd,
	}
	addFitFlags(fitCmd)

	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(newSynthCmd())
	rootCmd.AddCommand(newKindsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func addFitFlags(cmd *cobra.Command) {
	grid := stats.DefaultGrid()
	cmd.Flags().StringVarP(&fitInput, "input", "i", "", "data file (csv, tsv or whitespace separated)")
	cmd.Flags().StringVar(&fitTimeCol, "time-col", defaultTimeCol, "reduced time column (name or index)")
	cmd.Flags().StringVar(&fitResponseCol, "response-col", defaultResponseCol, "response column (name or index)")
	cmd.Flags().StringVarP(&fitKind, "kind", "k", defaultKind, "model kind (see: pronyfit kinds)")
	cmd.Flags().IntVarP(&fitTerms, "terms", "n", defaultTerms, "number of Prony or power-law terms")
	cmd.Flags().Float64Var(&fitGridMin, "grid-min", grid.MinExp, "synthetic curve start exponent (10^x)")
	cmd.Flags().Float64Var(&fitGridMax, "grid-max", grid.MaxExp, "synthetic curve end exponent (10^x)")
	cmd.Flags().IntVar(&fitGridPoints, "grid-points", grid.Points, "synthetic curve points")
	cmd.Flags().StringVar(&fitPNG, "png", "", "write a log-log figure (png, svg or pdf)")
	cmd.Flags().StringVar(&fitYAML, "yaml", "", "write the fit as YAML")
	cmd.Flags().BoolVar(&fitPlot, "plot", true, "print a terminal log-log plot")
	cmd.Flags().BoolVar(&fitSave, "save", true, "store the fit in the history database")
	cmd.Flags().StringVar(&fitAlgorithm, "algorithm", "", "override the solver: trf, dogbox, lm, nelder-mead")
	cmd.Flags().StringVar(&fitGuess, "guess", "", "override the initial guess: zeros, ones, log-spaced, a number or a comma list")
	cmd.Flags().Float64Var(&fitLower, "lower", 0, "override the lower parameter bound")
	cmd.Flags().Float64Var(&fitUpper, "upper", 0, "override the upper parameter bound")
	cmd.Flags().StringVar(&fitJacobian, "jacobian", "", "jacobian mode: analytic or numeric")
	cmd.Flags().IntVar(&fitMaxIter, "max-iterations", 0, "solver iteration budget (0: automatic)")
}

func setup(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fileCfg = cfg

	level := logLevel
	if !cmd.Flags().Changed("log-level") && os.Getenv("PRONYFIT_LOG_LEVEL") == "" && cfg.Log.Level != nil {
		level = *cfg.Log.Level
	}
	logger.Configure(level, os.Stderr)
	return nil
}

func runFitCmd(cmd *cobra.Command, _ []string) error {
	applyStringConfig(cmd, "kind", &fitKind, fileCfg.Fit.Kind)
	applyIntConfig(cmd, "terms", &fitTerms, fileCfg.Fit.Terms)
	applyStringConfig(cmd, "time-col", &fitTimeCol, fileCfg.Fit.TimeColumn)
	applyStringConfig(cmd, "response-col", &fitResponseCol, fileCfg.Fit.ResponseColumn)
	applyFloatConfig(cmd, "grid-min", &fitGridMin, fileCfg.Fit.GridMin)
	applyFloatConfig(cmd, "grid-max", &fitGridMax, fileCfg.Fit.GridMax)
	applyIntConfig(cmd, "grid-points", &fitGridPoints, fileCfg.Fit.GridPoints)
	applyBoolConfig(cmd, "plot", &fitPlot, fileCfg.Fit.Plot)
	applyBoolConfig(cmd, "save", &fitSave, fileCfg.Fit.Save)

	if strings.TrimSpace(fitInput) == "" {
		return fmt.Errorf("--input is required")
	}
	req, err := buildFitRequest(cmd)
	if err != nil {
		return err
	}

	out, err := runFitPipeline(req)
	if err != nil {
		return err
	}
	if out.Result.Spec.Kind.LogResponse() {
		logger.Info("fitted against log10 of the response; R² is in log space", "kind", req.Spec.Kind.String())
	}

	w := cmd.OutOrStdout()
	if err := stats.RenderFit(w, out.Result, out.Evaluation, out.Names); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if fitPlot {
		if err := plotRecord(cmd, out.Record, req.Grid); err != nil {
			logger.Warn("failed to plot fit", "err", err)
		}
	}

	if fitSave {
		id, err := saveRecord(out.Record)
		if err != nil {
			return err
		}
		out.Record.ID = id
		logger.Info("saved fit", "id", id, "run", out.Record.RunID)
	}
	if fitPNG != "" {
		if err := writeFigure(fitPNG, out.Record, req.Grid); err != nil {
			return err
		}
		logger.Info("wrote figure", "path", fitPNG)
	}
	if fitYAML != "" {
		doc, err := export.FromRecord(out.Record, req.Grid)
		if err != nil {
			return err
		}
		if err := export.WriteFile(fitYAML, doc); err != nil {
			return err
		}
		logger.Info("wrote yaml", "path", fitYAML)
	}
	return nil
}

func buildFitRequest(cmd *cobra.Command) (fitRequest, error) {
	kind, err := model.ParseKind(fitKind)
	if err != nil {
		return fitRequest{}, err
	}
	spec := model.Spec{Kind: kind}
	if kind.UsesTerms() {
		spec.Terms = fitTerms
	}
	if err := spec.Validate(); err != nil {
		return fitRequest{}, err
	}

	policy, err := fileCfg.PolicyFor(kind)
	if err != nil {
		return fitRequest{}, err
	}
	if err := applyPolicyFlags(cmd, &policy); err != nil {
		return fitRequest{}, err
	}

	opts, err := fileCfg.Options()
	if err != nil {
		return fitRequest{}, fmt.Errorf("invalid [solver] section: %w", err)
	}
	if cmd.Flags().Changed("jacobian") {
		if opts.Jacobian, err = fit.ParseJacobian(fitJacobian); err != nil {
			return fitRequest{}, err
		}
	}
	if cmd.Flags().Changed("max-iterations") {
		opts.MaxIterations = fitMaxIter
	}

	grid := stats.Grid{MinExp: fitGridMin, MaxExp: fitGridMax, Points: fitGridPoints}
	if grid.Points < 2 || !(grid.MinExp < grid.MaxExp) {
		return fitRequest{}, fmt.Errorf("invalid synthetic grid 10^%g..10^%g with %d points", grid.MinExp, grid.MaxExp, grid.Points)
	}
	return fitRequest{
		Input:       fitInput,
		TimeCol:     fitTimeCol,
		ResponseCol: fitResponseCol,
		Spec:        spec,
		Policy:      policy,
		Options:     opts,
		Grid:        grid,
	}, nil
}

func applyPolicyFlags(cmd *cobra.Command, policy *fit.Policy) error {
	var pc config.PolicyConfig
	if cmd.Flags().Changed("algorithm") {
		pc.Algorithm = &fitAlgorithm
	}
	if cmd.Flags().Changed("guess") {
		values, isList, err := parseFloatList(fitGuess)
		if err != nil {
			return fmt.Errorf("invalid --guess: %w", err)
		}
		if isList {
			pc.Guess = values
		} else {
			pc.InitialGuess = &fitGuess
		}
	}
	if cmd.Flags().Changed("lower") {
		pc.Lower = &fitLower
	}
	if cmd.Flags().Changed("upper") {
		pc.Upper = &fitUpper
	}
	p, err := config.ApplyPolicy(*policy, pc)
	if err != nil {
		return err
	}
	*policy = p
	return nil
}

// parseFloatList parses "a,b,c". Input without a comma is not a list.
func parseFloatList(s string) ([]float64, bool, error) {
	if !strings.Contains(s, ",") {
		return nil, false, nil
	}
	out, err := parseFloats(s)
	return out, true, err
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func plotRecord(cmd *cobra.Command, rec model.FitRecord, grid stats.Grid) error {
	series, err := stats.RecordSeries(rec, grid)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s fit", rec.Spec)
	return stats.PlotLogLog(cmd.OutOrStdout(), title, series, 0, defaultPlotHeight)
}

func writeFigure(path string, rec model.FitRecord, grid stats.Grid) error {
	series, err := stats.RecordSeries(rec, grid)
	if err != nil {
		return err
	}
	fig := stats.Figure{
		Title:  fmt.Sprintf("%s (R² %s)", rec.Spec, strconv.FormatFloat(rec.RSquared, 'f', 6, 64)),
		XLabel: "reduced time",
		YLabel: responseLabel(rec.Spec.Kind),
		Series: series,
	}
	return stats.SaveLogLogPNG(path, fig)
}

func responseLabel(kind model.Kind) string {
	switch kind {
	case model.KindPronyModulus, model.KindSigmoid:
		return "modulus"
	default:
		return "compliance"
	}
}

func openStore() (*store.Store, error) {
	path := dbPath
	if path == "" {
		path = config.DefaultDBPath()
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logger.Warn("failed to close db", "err", err)
	}
}

func saveRecord(rec model.FitRecord) (int64, error) {
	st, err := openStore()
	if err != nil {
		return 0, err
	}
	defer closeStore(st)
	id, err := st.InsertFit(context.Background(), rec)
	if err != nil {
		return 0, fmt.Errorf("failed to save fit: %w", err)
	}
	return id, nil
}

func loadRecord(idArg string) (model.FitRecord, error) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return model.FitRecord{}, fmt.Errorf("invalid fit id %q", idArg)
	}
	st, err := openStore()
	if err != nil {
		return model.FitRecord{}, err
	}
	defer closeStore(st)
	rec, err := st.GetFit(context.Background(), id)
	if errors.Is(err, store.ErrNotFound) {
		return model.FitRecord{}, fmt.Errorf("no stored fit with id %d (see: pronyfit history --plain)", id)
	}
	if err != nil {
		return model.FitRecord{}, fmt.Errorf("failed to load fit: %w", err)
	}
	return rec, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}
