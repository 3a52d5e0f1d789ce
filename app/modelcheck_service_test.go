package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/adapters/rng"
	"modelcheck/domain/core"
	"modelcheck/domain/family"
	"modelcheck/domain/model"
	"modelcheck/internal/config"
	"modelcheck/internal/testkit"
)

func newService(seed int64) *ModelCheckService {
	cfg := config.Default().Model
	cfg.Seed = seed
	return NewModelCheckService(cfg, rng.New(), nil)
}

func TestRunTwoGroupScenario(t *testing.T) {
	data := testkit.TwoGroupScenario()
	res, err := newService(42).Run(context.Background(), data, CheckRequest{
		MeanSpec:       "y~x",
		DispersionSpec: "~1",
		Family:         family.Normal,
		Draws:          5,
	})
	require.NoError(t, err)

	assert.False(t, res.ID.String() == "")
	assert.Equal(t, int64(42), res.Seed)
	assert.Len(t, res.Summary.Location, 5)
	assert.Less(t, res.Summary.Location[0], res.Summary.Location[3])
	assert.Len(t, res.Predictive.Rows, 30)
	assert.Equal(t, 30, res.Long.NumRows())

	src, ok := res.Long.Column(model.ColumnSource)
	require.True(t, ok)
	counts := map[string]int{}
	for _, v := range src.Categorical {
		counts[v]++
	}
	assert.Equal(t, map[string]int{"observed": 5, "model": 25}, counts)

	// input is never modified
	assert.Equal(t, []string{"y", "x"}, data.Names())
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	req := CheckRequest{MeanSpec: "y ~ x", Family: family.Normal, Draws: 10, Seed: 7}
	svc := newService(0)

	a, err := svc.Run(context.Background(), testkit.TwoGroupScenario(), req)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), testkit.TwoGroupScenario(), req)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Predictive.Rows, b.Predictive.Rows)
}

func TestRunPreprocessesLogTerms(t *testing.T) {
	data := testkit.TwoGroupScenario()
	res, err := newService(1).Run(context.Background(), data, CheckRequest{MeanSpec: "y ~ log(x)", Family: family.Normal})
	require.NoError(t, err)

	assert.Equal(t, "y ~ log_x", res.Summary.MeanSpec)
	assert.True(t, res.Long.Has("log_x"))
	assert.False(t, data.Has("log_x"))
	// configured default draw count
	assert.Equal(t, 5, res.Predictive.NumDraws)
}

func TestRunReportsStage(t *testing.T) {
	collinear := testkit.TwoGroupScenario()
	require.NoError(t, collinear.AddNumeric("x2", []float64{0, 0, 0, 2, 2}))

	tests := []struct {
		name     string
		req      CheckRequest
		stage    core.Stage
		sentinel error
	}{
		{"malformed spec", CheckRequest{MeanSpec: "y ~ (x", Family: family.Normal}, core.StagePrepare, core.ErrInvalidSpecification},
		{"unknown column", CheckRequest{MeanSpec: "y ~ log(w)", Family: family.Normal}, core.StagePrepare, core.ErrInvalidSpecification},
		{"collinear design", CheckRequest{MeanSpec: "y ~ x + x2", Family: family.Normal}, core.StageFit, core.ErrFitFailure},
		{"non-count outcome", CheckRequest{MeanSpec: "y ~ x", Family: family.Logistic}, core.StageFit, core.ErrFitFailure},
		{"bad output type", CheckRequest{MeanSpec: "y ~ x", Family: family.Normal, Output: "counts"}, core.StageSample, core.ErrInvalidInput},
		{"negative draws", CheckRequest{MeanSpec: "y ~ x", Family: family.Normal, Draws: -1}, core.StagePropagate, core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newService(3).Run(context.Background(), collinear, tt.req)
			assert.Nil(t, res)
			require.Error(t, err)

			var se *core.StageError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.stage, se.Stage)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newService(3).Run(ctx, testkit.TwoGroupScenario(), CheckRequest{MeanSpec: "y ~ x", Family: family.Normal})
	assert.ErrorIs(t, err, context.Canceled)
}
