// Package sampler draws synthetic outcomes from a parameter ensemble and
// stacks them with the observed outcome for visual model checking.
package sampler

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"modelcheck/domain/core"
	"modelcheck/domain/family"
	"modelcheck/domain/model"
)

// Output selects how logit-normal draws are realized
type Output string

const (
	// OutputProportion keeps the back-transformed continuous proportion
	OutputProportion Output = "proportion"
	// OutputBinary realizes each proportion as a Bernoulli trial
	OutputBinary Output = "binary"
)

// ParseOutput accepts "", "proportion" and "binary"
func ParseOutput(s string) (Output, error) {
	switch Output(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputProportion:
		return OutputProportion, nil
	case OutputBinary:
		return OutputBinary, nil
	}
	return "", core.NewInputError("unknown output type %q", s)
}

// Options controls sampling
type Options struct {
	Output Output
}

// drawFunc produces one outcome for a natural-scale (location, dispersion)
type drawFunc func(loc, disp float64, opts Options, rng *rand.Rand) (float64, error)

var draws = map[family.Family]drawFunc{
	family.Normal:      drawNormal,
	family.LogNormal:   drawLogNormal,
	family.LogitNormal: drawLogitNormal,
	family.Logistic:    drawBernoulli,
	family.Poisson:     drawPoisson,
	family.NegBinomial: drawNegBinomial,
}

// Sample draws exactly one outcome per ensemble member. The returned rows
// hold every observed value (draw 0) first, followed by each synthetic draw
// in ensemble order.
func Sample(ens *model.Ensemble, fam family.Family, opts Options, rng *rand.Rand) (*model.PredictiveDraws, error) {
	if ens == nil {
		return nil, core.NewInputError("ensemble is required")
	}
	if rng == nil {
		return nil, core.NewInputError("random source is required")
	}
	if fam != ens.Family {
		return nil, core.NewInputError("ensemble was fitted as %s, cannot sample as %s", ens.Family, fam)
	}
	if len(ens.Members) != ens.NumObs*ens.NumDraws || len(ens.Observed) != ens.NumObs {
		return nil, core.NewInputError("ensemble is not rectangular: %d members for %d observations x %d draws", len(ens.Members), ens.NumObs, ens.NumDraws)
	}
	draw, ok := draws[fam]
	if !ok {
		return nil, core.NewSpecError(string(fam), "no sampler for family")
	}
	if opts.Output == "" {
		opts.Output = OutputProportion
	}

	rows := make([]model.Draw, 0, ens.NumObs*(ens.NumDraws+1))
	for i, y := range ens.Observed {
		rows = append(rows, model.Draw{Obs: i, Draw: 0, Source: model.SourceObserved, Value: y})
	}
	for _, m := range ens.Members {
		v, err := draw(m.Location, m.Dispersion, opts, rng)
		if err != nil {
			return nil, core.NewSamplingError(m.Obs, m.Draw+1, "%s: %v", fam, err)
		}
		rows = append(rows, model.Draw{Obs: m.Obs, Draw: m.Draw + 1, Source: model.SourceModel, Value: v})
	}

	return &model.PredictiveDraws{
		Family:   fam,
		Outcome:  ens.Outcome,
		NumObs:   ens.NumObs,
		NumDraws: ens.NumDraws,
		Rows:     rows,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkScale(loc, scale float64) error {
	if !finite(loc) {
		return fmt.Errorf("location %g is not finite", loc)
	}
	if !finite(scale) || scale <= 0 {
		return fmt.Errorf("scale %g must be positive", scale)
	}
	return nil
}

func drawNormal(loc, sd float64, _ Options, rng *rand.Rand) (float64, error) {
	if err := checkScale(loc, sd); err != nil {
		return 0, err
	}
	return distuv.Normal{Mu: loc, Sigma: sd, Src: rng}.Rand(), nil
}

func drawLogNormal(loc, sd float64, _ Options, rng *rand.Rand) (float64, error) {
	if err := checkScale(loc, sd); err != nil {
		return 0, err
	}
	return distuv.LogNormal{Mu: loc, Sigma: sd, Src: rng}.Rand(), nil
}

func drawLogitNormal(loc, sd float64, opts Options, rng *rand.Rand) (float64, error) {
	if err := checkScale(loc, sd); err != nil {
		return 0, err
	}
	p := family.Expit(distuv.Normal{Mu: loc, Sigma: sd, Src: rng}.Rand())
	if opts.Output == OutputBinary {
		return distuv.Bernoulli{P: p, Src: rng}.Rand(), nil
	}
	return p, nil
}

func drawBernoulli(p, _ float64, _ Options, rng *rand.Rand) (float64, error) {
	if !(p >= 0 && p <= 1) {
		return 0, fmt.Errorf("probability %g outside [0, 1]", p)
	}
	return distuv.Bernoulli{P: p, Src: rng}.Rand(), nil
}

func drawPoisson(rate, _ float64, _ Options, rng *rand.Rand) (float64, error) {
	if !finite(rate) || rate <= 0 {
		return 0, fmt.Errorf("rate %g must be positive", rate)
	}
	return distuv.Poisson{Lambda: rate, Src: rng}.Rand(), nil
}

// drawNegBinomial samples the Gamma-Poisson mixture with mean mu and
// variance mu + sigma*mu^2
func drawNegBinomial(mu, sigma float64, _ Options, rng *rand.Rand) (float64, error) {
	if !finite(mu) || mu <= 0 {
		return 0, fmt.Errorf("mean %g must be positive", mu)
	}
	if !finite(sigma) || sigma <= 0 {
		return 0, fmt.Errorf("dispersion %g must be positive", sigma)
	}
	shape := 1 / sigma
	lambda := distuv.Gamma{Alpha: shape, Beta: shape / mu, Src: rng}.Rand()
	if lambda <= 0 {
		// shape far below one can underflow the gamma draw
		return 0, nil
	}
	return distuv.Poisson{Lambda: lambda, Src: rng}.Rand(), nil
}
