package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/config"
	"github.com/san-kum/orbits/internal/experiment"
	"github.com/san-kum/orbits/internal/export"
	"github.com/san-kum/orbits/internal/gui"
	"github.com/san-kum/orbits/internal/logging"
	"github.com/san-kum/orbits/internal/optim"
	"github.com/san-kum/orbits/internal/particle"
	"github.com/san-kum/orbits/internal/scenario"
	"github.com/san-kum/orbits/internal/sim"
	"github.com/san-kum/orbits/internal/storage"
	"github.com/san-kum/orbits/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbose    bool
	// Overrides; applied only when set on the command line.
	backend   string
	mode      string
	particles int
	seed      int64
	dt        float32
	substeps  int
	workers   int
	// Headless runs
	frames      int
	benchFrames int
	toggleEvery int
	sampleEvery int
	frameRate   int
	noSave      bool
	svgPath     string
	// Sweeps
	sweepDt       []float64
	sweepSubsteps []int
	sweepMetric   string
)

// The GL context belongs to the thread that created it.
func init() {
	runtime.LockOSThread()
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "orbits",
		Short:         "central-gravity particle simulator with switchable cpu and gpu backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				return nil
			}
			l, err := logging.New(true)
			if err != nil {
				return err
			}
			logging.SetLogger(l)
			return nil
		},
		RunE: runGUI,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".orbits", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "kernel", "gpu backend: cpu, kernel or shader")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", config.DefaultMode().String(), "initial mode: cpu or gpu")
	rootCmd.PersistentFlags().IntVarP(&particles, "particles", "n", config.DefaultParticles, "particle count")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed for the initial disc")
	rootCmd.PersistentFlags().Float32Var(&dt, "dt", config.DefaultDt, "time step per frame")
	rootCmd.PersistentFlags().IntVar(&substeps, "substeps", 0, "substeps per frame (0: backend default)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "cpu worker goroutines (0: one per cpu)")

	guiCmd := &cobra.Command{
		Use:   "gui",
		Short: "open the simulation window (default)",
		Args:  cobra.NoArgs,
		RunE:  runGUI,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation and save a report",
		Args:  cobra.NoArgs,
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&frames, "frames", 1000, "frames to run")
	runCmd.Flags().IntVar(&toggleEvery, "toggle-every", 0, "switch backends every k frames")
	runCmd.Flags().IntVar(&sampleEvery, "sample-every", 10, "metric sampling interval in frames")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not write a run report")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "write the final particle positions as svg")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "run a headless simulation in a terminal monitor",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	watchCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	scriptCmd := &cobra.Command{
		Use:   "script [file]",
		Short: "run a scripted scenario of frames and backend switches",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare frame times of the headless backends",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&benchFrames, "frames", 200, "frames per backend")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "search time step and substeps for the lowest drift",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().Float64SliceVar(&sweepDt, "dts", []float64{0.1, 0.25, 0.5}, "time steps to try")
	sweepCmd.Flags().IntSliceVar(&sweepSubsteps, "substep-values", []int{1, 2, 4}, "substep counts to try")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "radius_drift", "metric to minimise")
	sweepCmd.Flags().IntVar(&benchFrames, "frames", 200, "frames per trial")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "list compute backends and devices",
		Args:  cobra.NoArgs,
		RunE:  listDevices,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [metric]",
		Short: "plot a metric of a run",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "write the plotted metric as svg")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of the mean radius",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run report as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(guiCmd, runCmd, watchCmd, scriptCmd, benchCmd, sweepCmd, devicesCmd, presetsCmd, listCmd, plotCmd, analyzeCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: defaults, then the preset, then
// the config file, then flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
		if !flags.Changed("mode") && cfg.Kind() == compute.KindCPU {
			cfg.Mode = "cpu"
		}
	}
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("particles") {
		cfg.Particles = particles
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("substeps") {
		cfg.Substeps = substeps
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runName() string {
	if preset != "" {
		return preset
	}
	return "run"
}

func runGUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return gui.Run(ctx, cfg)
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry(true), experiment.Options{
		SampleEvery: sampleEvery,
		ToggleEvery: toggleEvery,
		Metrics:     true,
	})
	if err != nil {
		return err
	}
	defer exp.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %d particles on %s for %d frames...\n", cfg.Particles, exp.Context().Active().Name(), frames)
	result, err := exp.Run(ctx, frames)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("completed %d frames in %v (%.1f frames/s)\n", result.Frames, result.Elapsed, float64(result.Frames)/result.Elapsed.Seconds())
	if result.Switches > 0 {
		fmt.Printf("backend switches: %d\n", result.Switches)
	}

	if svgPath != "" {
		final := particle.New(cfg.Particles)
		if err := exp.Context().Snapshot(final); err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, []byte(export.StateSVG(final, cfg.MaxRadius*1.2, 1024)), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(storage.RunMetadata{
			Name:      runName(),
			Seed:      cfg.Seed,
			Particles: cfg.Particles,
			Backend:   cfg.Backend,
			Mode:      cfg.Mode,
			Dt:        cfg.Dt,
			Substeps:  cfg.EffectiveSubsteps(),
		}, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Println("\nmetrics:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Fprintf(w, "  %s\t%.6g\n", name, result.Metrics[name])
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	r := tui.NewCanvasRenderer(60, 24, cfg.MaxRadius*1.2)
	exp, err := experiment.New(cfg, experiment.NewRegistry(true), experiment.Options{Renderer: r})
	if err != nil {
		return err
	}
	defer exp.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return tui.Run(tui.NewModel(ctx, exp.Context(), r, frameRate))
}

func runScript(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	if sc.Preset != "" && !cmd.Flags().Changed("preset") {
		preset = sc.Preset
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if sc.Particles > 0 && !cmd.Flags().Changed("particles") {
		cfg.Particles = sc.Particles
	}
	if sc.Seed != 0 && !cmd.Flags().Changed("seed") {
		cfg.Seed = sc.Seed
	}

	reg := experiment.NewRegistry(true)
	exp, err := experiment.New(cfg, reg, experiment.Options{})
	if err != nil {
		return err
	}
	defer exp.Close()

	var reference *experiment.Experiment
	if sc.Compare {
		reference, err = experiment.New(cfg, reg, experiment.Options{})
		if err != nil {
			return err
		}
		defer reference.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}
	fmt.Println()

	var refCtx *sim.Context
	if reference != nil {
		refCtx = reference.Context()
	}
	report, err := scenario.Run(ctx, sc, exp.Context(), refCtx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tLABEL\tFRAMES\tMODE\tBACKEND\tTIME")
	for _, st := range report.Steps {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%v\n", st.Index, st.Label, st.Frames, st.Mode, st.Backend, st.Elapsed.Round(time.Microsecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d frames, %d switches in %v\n", report.Frames, report.Switches, report.Elapsed.Round(time.Millisecond))
	if sc.Compare {
		fmt.Printf("max divergence from single-backend run: %.3g\n", report.Divergence)
	}
	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if benchFrames <= 0 {
		return fmt.Errorf("frames must be positive")
	}

	reg := experiment.NewRegistry(true)
	fmt.Printf("benchmarking %d particles, %d frames\n\n", base.Particles, benchFrames)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tSUBSTEPS\tFRAMES\tTIME\tFRAME\tPARTICLES/SEC")

	for _, kind := range compute.Kinds() {
		cfg := *base
		cfg.Backend = string(kind)
		cfg.Mode = "gpu"
		if kind == compute.KindCPU {
			cfg.Mode = "cpu"
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", kind, err)
			continue
		}

		exp, err := experiment.New(&cfg, reg, experiment.Options{})
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", kind, err)
			continue
		}
		result, err := exp.Run(context.Background(), benchFrames)
		name := exp.Context().Active().Name()
		exp.Close()
		if err != nil {
			return err
		}

		perFrame := result.Elapsed / time.Duration(result.Frames)
		rate := float64(cfg.Particles*result.Frames) / result.Elapsed.Seconds()
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%v\t%.3g\n",
			name, cfg.EffectiveSubsteps(), result.Frames, result.Elapsed.Round(time.Millisecond), perFrame, rate)
	}

	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	substepValues := make([]float64, len(sweepSubsteps))
	for i, v := range sweepSubsteps {
		substepValues[i] = float64(v)
	}
	g := optim.NewGridSearch(
		[]string{optim.ParamDt, optim.ParamSubsteps},
		[][]float64{sweepDt, substepValues},
	)

	reg := experiment.NewRegistry(true)
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := *base
		if err := optim.Apply(&cfg, params); err != nil {
			return nil, err
		}
		return experiment.New(&cfg, reg, experiment.Options{SampleEvery: sampleEvery, Metrics: true})
	}

	ctx, cancel := signalContext()
	defer cancel()

	best, val, trials, err := g.Search(ctx, build, benchFrames, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DT\tSUBSTEPS\t%s\n", strings.ToUpper(sweepMetric))
	for _, t := range trials {
		if t.Err != nil {
			fmt.Fprintf(w, "%g\t%g\t%v\n", t.Params[optim.ParamDt], t.Params[optim.ParamSubsteps], t.Err)
			continue
		}
		fmt.Fprintf(w, "%g\t%g\t%.4g\n", t.Params[optim.ParamDt], t.Params[optim.ParamSubsteps], t.Value)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s: %.4g at", sweepMetric, val)
	for _, name := range optim.Names(best) {
		fmt.Printf(" %s=%g", name, best[name])
	}
	fmt.Println()
	return nil
}

func listDevices(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tAVAILABLE\tNOTE")
	fmt.Fprintln(w, "cpu\tyes\thost goroutines")
	if compute.OpenCLAvailable() {
		fmt.Fprintln(w, "kernel\tyes\topencl")
	} else {
		fmt.Fprintln(w, "kernel\tno\tbuild with -tags opencl; headless runs use the host kernel")
	}
	fmt.Fprintln(w, "shader\twindow\topengl 4.3 compute; headless runs use the host pipeline")
	if err := w.Flush(); err != nil {
		return err
	}

	devices, err := compute.ListDevices()
	if errors.Is(err, compute.ErrUnavailable) {
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("\nopencl devices:")
	for _, d := range devices {
		mark := " "
		if d.Selected {
			mark = "*"
		}
		fmt.Printf(" %s %s\n", mark, d)
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tPARTICLES\tBACKEND\tMODE\tDT\tSUBSTEPS\tLAYOUT")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%g\t%d\t%s\n",
			name, cfg.Particles, cfg.Backend, cfg.Mode, cfg.Dt, cfg.EffectiveSubsteps(), cfg.Layout)
	}
	return w.Flush()
}
