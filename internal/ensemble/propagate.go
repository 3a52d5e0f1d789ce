// Package ensemble turns a fitted summary into draws of plausible parameter
// values, approximating the posterior under a diffuse prior by the sampling
// distribution of the estimates.
package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"modelcheck/domain/core"
	"modelcheck/domain/model"
)

// Propagate draws nDraws natural-scale (location, dispersion) pairs per
// observation:
//
//   - location: estimate + se * t(df) on the link scale, then back-transformed
//   - modeled dispersion: the same t approximation on the log scale, exponentiated
//   - residual dispersion: sigma_hat * sqrt(df / chi2(df)), a scaled inverse
//     chi-squared draw for the residual standard deviation
//
// The result is reproducible for a given rng state.
func Propagate(s *model.Summary, nDraws int, rng *rand.Rand) (*model.Ensemble, error) {
	if err := validate(s, nDraws); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, core.NewInputError("random source is required")
	}

	df := float64(s.ResidualDF)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df, Src: rng}
	chi := distuv.ChiSquared{K: df, Src: rng}
	fam := s.Family
	n := s.NumObs()

	members := make([]model.Member, 0, n*nDraws)
	for d := 0; d < nDraws; d++ {
		for i := 0; i < n; i++ {
			loc := s.Location[i] + s.LocationSE[i]*t.Rand()

			disp := 0.0
			switch {
			case !fam.HasDispersion():
			case s.DispersionModeled:
				disp = fam.NaturalDispersion(s.Dispersion[i] + s.DispersionSE[i]*t.Rand())
			default:
				disp = s.ResidualScale * math.Sqrt(df/chi.Rand())
			}

			m := model.Member{Obs: i, Draw: d, Location: fam.NaturalLocation(loc), Dispersion: disp}
			if math.IsNaN(m.Location) || math.IsInf(m.Location, 0) || math.IsNaN(m.Dispersion) || math.IsInf(m.Dispersion, 0) {
				return nil, core.NewNumericError("observation %d draw %d: non-finite parameter draw (location %g, dispersion %g)", i, d, m.Location, m.Dispersion)
			}
			members = append(members, m)
		}
	}

	return &model.Ensemble{
		Family:   fam,
		Outcome:  s.Outcome,
		Observed: append([]float64(nil), s.Observed...),
		NumObs:   n,
		NumDraws: nDraws,
		Members:  members,
	}, nil
}

func validate(s *model.Summary, nDraws int) error {
	if s == nil {
		return core.NewInputError("fitted summary is required")
	}
	if nDraws < 1 {
		return core.NewInputError("number of draws must be at least 1, got %d", nDraws)
	}
	if s.ResidualDF < 1 {
		return core.NewInputError("summary has %d residual degrees of freedom", s.ResidualDF)
	}
	n := s.NumObs()
	if n == 0 || len(s.LocationSE) != n || len(s.Observed) != n {
		return core.NewInputError("summary is not rectangular: %d locations, %d standard errors, %d observations", n, len(s.LocationSE), len(s.Observed))
	}
	if s.Family.HasDispersion() {
		if s.DispersionModeled && (len(s.Dispersion) != n || len(s.DispersionSE) != n) {
			return core.NewInputError("summary has %d dispersion estimates for %d observations", len(s.Dispersion), n)
		}
		if !s.DispersionModeled && !(s.ResidualScale > 0) {
			return core.NewNumericError("residual scale %g is not positive", s.ResidualScale)
		}
	}
	for i := 0; i < n; i++ {
		if !finite(s.Location[i]) || !finite(s.LocationSE[i]) || s.LocationSE[i] < 0 {
			return core.NewNumericError("observation %d: location %g with standard error %g", i, s.Location[i], s.LocationSE[i])
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
