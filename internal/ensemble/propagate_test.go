package ensemble

import (
	"math"
	"sort"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"modelcheck/domain/core"
	"modelcheck/domain/family"
	"modelcheck/domain/model"
	"modelcheck/internal/fit"
	"modelcheck/internal/testkit"
)

func handSummary(fam family.Family) *model.Summary {
	return &model.Summary{
		Family:        fam,
		Outcome:       "y",
		Observed:      []float64{1, 2},
		Location:      []float64{1, -0.5},
		LocationSE:    []float64{0.5, 0.25},
		ResidualScale: 2,
		ResidualDF:    10,
	}
}

func TestPropagateShape(t *testing.T) {
	s, err := fit.New(fit.DefaultOptions()).Fit("y ~ x", "", family.Normal, testkit.TwoGroupScenario())
	require.NoError(t, err)

	ens, err := Propagate(s, 5, testkit.NewRand(1))
	require.NoError(t, err)

	assert.Equal(t, 5, ens.NumObs)
	assert.Equal(t, 5, ens.NumDraws)
	assert.Len(t, ens.Members, 25)
	assert.Equal(t, s.Observed, ens.Observed)
	for d := 0; d < 5; d++ {
		for i := 0; i < 5; i++ {
			m := ens.At(i, d)
			assert.Equal(t, i, m.Obs)
			assert.Equal(t, d, m.Draw)
			assert.Greater(t, m.Dispersion, 0.0)
		}
	}
}

func TestPropagateIsReproducible(t *testing.T) {
	s := handSummary(family.Normal)
	a, err := Propagate(s, 20, testkit.NewRand(7))
	require.NoError(t, err)
	b, err := Propagate(s, 20, testkit.NewRand(7))
	require.NoError(t, err)
	c, err := Propagate(s, 20, testkit.NewRand(8))
	require.NoError(t, err)

	assert.Equal(t, a.Members, b.Members)
	assert.NotEqual(t, a.Members, c.Members)
}

func TestPropagateLocationFollowsStudentT(t *testing.T) {
	s := handSummary(family.Normal)
	const n = 20000
	ens, err := Propagate(s, n, testkit.NewRand(11))
	require.NoError(t, err)

	loc := make([]float64, n)
	sigma := make([]float64, n)
	for d := 0; d < n; d++ {
		loc[d] = ens.At(0, d).Location
		sigma[d] = ens.At(0, d).Dispersion
	}

	median, err := stats.Median(loc)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, median, 0.02)

	sort.Float64s(loc)
	ref := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 10}
	for _, p := range []float64{0.1, 0.9} {
		want := 1 + 0.5*ref.Quantile(p)
		got := stat.Quantile(p, stat.Empirical, loc, nil)
		assert.InDelta(t, want, got, 0.03, "quantile %g", p)
	}

	// sigma = s * sqrt(df / chi2(df)) is monotone decreasing in chi2
	chi := distuv.ChiSquared{K: 10}
	sigMedian, err := stats.Median(sigma)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Sqrt(10/chi.Quantile(0.5)), sigMedian, 0.03)
	assert.Greater(t, stat.Mean(sigma, nil), 2.0)
}

func TestPropagateBackTransforms(t *testing.T) {
	s := handSummary(family.Logistic)
	ens, err := Propagate(s, 200, testkit.NewRand(3))
	require.NoError(t, err)
	for _, m := range ens.Members {
		assert.True(t, m.Location > 0 && m.Location < 1)
		assert.Zero(t, m.Dispersion)
	}

	s = handSummary(family.Poisson)
	ens, err = Propagate(s, 200, testkit.NewRand(3))
	require.NoError(t, err)
	for _, m := range ens.Members {
		assert.Greater(t, m.Location, 0.0)
	}
}

func TestPropagateModeledDispersion(t *testing.T) {
	s := handSummary(family.Normal)
	s.DispersionModeled = true
	s.Dispersion = []float64{math.Log(3), 0}
	s.DispersionSE = []float64{0.01, 0.01}

	ens, err := Propagate(s, 500, testkit.NewRand(5))
	require.NoError(t, err)

	var d0, d1 []float64
	for d := 0; d < 500; d++ {
		d0 = append(d0, ens.At(0, d).Dispersion)
		d1 = append(d1, ens.At(1, d).Dispersion)
	}
	assert.InDelta(t, 3.0, stat.Mean(d0, nil), 0.05)
	assert.InDelta(t, 1.0, stat.Mean(d1, nil), 0.02)
}

func TestPropagateRejectsBadInput(t *testing.T) {
	rng := testkit.NewRand(1)

	_, err := Propagate(nil, 5, rng)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = Propagate(handSummary(family.Normal), 0, rng)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	s := handSummary(family.Normal)
	s.ResidualDF = 0
	_, err = Propagate(s, 5, rng)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	s = handSummary(family.Normal)
	s.LocationSE[0] = math.Inf(1)
	_, err = Propagate(s, 5, rng)
	assert.True(t, core.IsNumericError(err))

	s = handSummary(family.Normal)
	s.ResidualScale = 0
	_, err = Propagate(s, 5, rng)
	assert.True(t, core.IsNumericError(err))

	_, err = Propagate(handSummary(family.Normal), 5, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestPropagateOverflowIsNumericError(t *testing.T) {
	s := handSummary(family.Poisson)
	s.Location[0] = 800
	_, err := Propagate(s, 3, testkit.NewRand(1))
	assert.True(t, core.IsNumericError(err))
}
