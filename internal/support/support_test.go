package support

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/domain/core"
	"modelcheck/domain/family"
	"modelcheck/internal/fit"
	"modelcheck/internal/testkit"
)

func TestSinglePredictorSignMatchesLikelihoodImprovement(t *testing.T) {
	data := testkit.NewGenerator(testkit.DefaultGeneratorConfig()).Generate(family.Normal)

	res, err := NewEstimator(nil, nil).Estimate(data, Request{Outcome: "y", Predictors: []string{"x"}, Target: "x"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 1, res.WithTarget)
	assert.Equal(t, 1, res.WithoutTarget)

	f := fit.New(fit.DefaultOptions())
	with, err := f.Fit("y ~ x", "", family.Normal, data)
	require.NoError(t, err)
	without, err := f.Fit("y ~ 1", "", family.Normal, data)
	require.NoError(t, err)

	improvement := with.LogLik - without.LogLik
	assert.Greater(t, improvement, 0.0)
	assert.Equal(t, math.Signbit(improvement), math.Signbit(res.Score))
	assert.InDelta(t, improvement, res.Score, 1e-9)
}

func TestTwoPredictorsEnumerateEightModels(t *testing.T) {
	data := testkit.NewGenerator(testkit.DefaultGeneratorConfig()).Generate(family.Normal)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"main effect", "x", "x"},
		{"other main effect", "g", "g"},
		{"interaction", "x:g", "g:x"},
		{"interaction reversed", "g:x", "g:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewEstimator(nil, nil).Estimate(data, Request{Outcome: "y", Predictors: []string{"x", "g"}, Target: tt.target})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Target)
			assert.Len(t, res.Candidates, 8)
			assert.Equal(t, 4, res.WithTarget)
			assert.Equal(t, 4, res.WithoutTarget)
			assert.False(t, math.IsNaN(res.Score))
		})
	}

	// x drives y, so its support is strongly positive
	res, err := NewEstimator(nil, nil).Estimate(data, Request{Outcome: "y", Predictors: []string{"x", "g"}, Target: "x"})
	require.NoError(t, err)
	assert.Greater(t, res.Score, 10.0)
}

func TestTargetMatchingIsExact(t *testing.T) {
	data := testkit.NewGenerator(testkit.DefaultGeneratorConfig()).Generate(family.Normal)
	x, err := data.Numeric("x")
	require.NoError(t, err)
	x2 := make([]float64, len(x))
	for i, v := range x {
		x2[i] = math.Sin(7 * v)
	}
	require.NoError(t, data.AddNumeric("x2", x2))

	res, err := NewEstimator(nil, nil).Estimate(data, Request{Outcome: "y", Predictors: []string{"x", "x2"}, Target: "x"})
	require.NoError(t, err)
	for _, c := range res.Candidates {
		hasX := c.MeanSpec == "y ~ x" || c.MeanSpec == "y ~ x + x2" || c.MeanSpec == "y ~ x + x:x2" || c.MeanSpec == "y ~ x + x2 + x:x2"
		assert.Equal(t, hasX, c.HasTarget, c.MeanSpec)
	}
}

func TestLogPredictorIsPreprocessed(t *testing.T) {
	res, err := NewEstimator(nil, nil).Estimate(testkit.TwoGroupScenario(), Request{Outcome: "y", Predictors: []string{"log(x)"}, Target: "log(x)"})
	require.NoError(t, err)
	assert.Equal(t, "y ~ log_x", res.Candidates[1].MeanSpec)
	assert.False(t, math.IsInf(res.Score, 0))
}

func TestEstimateErrors(t *testing.T) {
	data := testkit.TwoGroupScenario()
	tests := []struct {
		name  string
		req   Request
		check func(error) bool
	}{
		{"no predictors", Request{Outcome: "y", Target: "x"}, isInput},
		{"three predictors", Request{Outcome: "y", Predictors: []string{"a", "b", "c"}, Target: "a"}, isInput},
		{"target not enumerated", Request{Outcome: "y", Predictors: []string{"x"}, Target: "xx"}, core.IsSpecificationError},
		{"interaction predictor", Request{Outcome: "y", Predictors: []string{"x:y"}, Target: "x"}, core.IsSpecificationError},
		{"duplicate predictors", Request{Outcome: "y", Predictors: []string{"x", "x"}, Target: "x"}, core.IsSpecificationError},
		{"unknown column", Request{Outcome: "y", Predictors: []string{"w"}, Target: "w"}, func(err error) bool { return err != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEstimator(nil, nil).Estimate(data, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func isInput(err error) bool {
	return errors.Is(err, core.ErrInvalidInput)
}

func TestScoreIsStable(t *testing.T) {
	s, err := Score([]float64{-10000, -10001}, []float64{-10003})
	require.NoError(t, err)
	want := math.Log(math.Exp(0)+math.Exp(-1)) + 3
	assert.InDelta(t, want, s, 1e-9)

	_, err = Score([]float64{math.NaN()}, []float64{-1})
	assert.True(t, core.IsNumericError(err))

	_, err = Score([]float64{math.Inf(-1)}, []float64{-1})
	assert.True(t, core.IsNumericError(err))

	_, err = Score(nil, []float64{-1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCausalSupportConvenience(t *testing.T) {
	score, err := CausalSupport(testkit.TwoGroupScenario(), Request{Outcome: "y", Predictors: []string{"x"}, Target: "x"})
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
}
