// Package optim searches simulation parameters for the lowest metric value.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/orbits/internal/config"
	"github.com/san-kum/orbits/internal/experiment"
)

// Parameters understood by Apply.
const (
	ParamDt          = "dt"
	ParamSubsteps    = "substeps"
	ParamMinDistance = "min_distance"
	ParamParticles   = "particles"
)

// Trial is one evaluated point of the grid.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs frames frames for every combination of parameters and
// returns the combination with the smallest value of metricName. Trials
// that fail are recorded and skipped; Search fails only when ctx is done
// or no trial succeeded.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	frames int,
	metricName string,
) (map[string]float64, float64, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, fmt.Errorf("optim: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	var trials []Trial
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, frames, metricName, &trials); err != nil {
		return nil, 0, trials, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for _, t := range trials {
		if t.Err == nil && t.Value < best {
			best = t.Value
			bestParams = t.Params
		}
	}
	if bestParams == nil {
		return nil, 0, trials, errors.New("optim: no trial succeeded")
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	frames int,
	metricName string,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		trial := Trial{Params: current}
		trial.Value, trial.Err = evaluate(ctx, current, buildExperiment, frames, metricName)
		if errors.Is(trial.Err, context.Canceled) || errors.Is(trial.Err, context.DeadlineExceeded) {
			return trial.Err
		}
		*trials = append(*trials, trial)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, frames, metricName, trials); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(
	ctx context.Context,
	params map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	frames int,
	metricName string,
) (float64, error) {
	exp, err := buildExperiment(params)
	if err != nil {
		return 0, err
	}
	defer exp.Close()

	result, err := exp.Run(ctx, frames)
	if err != nil {
		return 0, err
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("optim: no metric %q", metricName)
	}
	if math.IsNaN(val) {
		return math.Inf(1), nil
	}
	return val, nil
}

// Apply copies params onto cfg.
func Apply(cfg *config.Config, params map[string]float64) error {
	for name, v := range params {
		switch name {
		case ParamDt:
			cfg.Dt = float32(v)
		case ParamSubsteps:
			cfg.Substeps = int(v)
		case ParamMinDistance:
			cfg.MinDistance = float32(v)
		case ParamParticles:
			cfg.Particles = int(v)
		default:
			return fmt.Errorf("optim: unknown parameter %q", name)
		}
	}
	return nil
}

// Names returns the parameter names of p in a stable order.
func Names(p map[string]float64) []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
