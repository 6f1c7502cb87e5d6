package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/orbits/internal/analysis"
	"github.com/san-kum/orbits/internal/export"
	"github.com/san-kum/orbits/internal/storage"
)

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tPARTICLES\tBACKEND\tMODE\tFRAMES\tSWITCHES\tFPS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%.1f\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Backend,
			run.Mode,
			run.Frames,
			run.Switches,
			run.FrameRate(),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("particles: %d on %s\n", meta.Particles, meta.Backend)
	fmt.Printf("samples: %d\n\n", len(samples))

	names := sortedKeys(samples[0].Values)
	if len(args) > 1 {
		names = []string{args[1]}
	}
	if svgPath != "" && len(names) != 1 {
		return fmt.Errorf("--svg needs a single metric")
	}

	for _, name := range names {
		data, times := storage.Series(samples, name)
		if len(data) == 0 {
			return fmt.Errorf("run %s has no metric %q", runID, name)
		}
		if svgPath != "" {
			if err := os.WriteFile(svgPath, []byte(export.SeriesSVG(times, data, 800, 300, "#b4b4b4")), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n\n", svgPath)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	radius, times := storage.Series(samples, "mean_radius")
	if len(radius) == 0 {
		return fmt.Errorf("run %s has no mean_radius samples", runID)
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("particles: %d, dt: %g, substeps: %d\n\n", meta.Particles, meta.Dt, meta.Substeps)

	sum := analysis.Summarize(radius)
	fmt.Printf("mean radius: %.4f (min %.4f, max %.4f, std %.2e)\n", sum.Mean, sum.Min, sum.Max, sum.Std)
	fmt.Printf("change over run: %.3g\n\n", sum.Change)

	interval := analysis.SampleInterval(times)
	peak, err := analysis.DominantFrequency(radius, interval)
	if err != nil {
		return err
	}

	_, power := analysis.Spectrum(radius, interval)
	graph := asciigraph.Plot(power[1:],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum (mean radius)"),
	)
	fmt.Println(graph)
	fmt.Println()

	fmt.Printf("dominant frequency: %.4g per time unit\n", peak.Frequency)
	if peak.Period > 0 {
		fmt.Printf("period: %.4g\n", peak.Period)
	}

	// The report does not record G and M; take them from the active configuration.
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	orbital := analysis.OrbitalFrequency(float64(cfg.Gravity), float64(cfg.Mass), sum.Mean)
	fmt.Printf("orbital frequency at mean radius: %.4g\n", orbital)

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, samples)
}
