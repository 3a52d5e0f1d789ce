package app

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/adapters/rng"
	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/family"
	"modelcheck/internal/support"
	"modelcheck/internal/testkit"
)

type memReader struct {
	files map[string]*dataset.Dataset
	reads int
}

func (m *memReader) ReadFile(_ context.Context, path string) (*dataset.Dataset, error) {
	m.reads++
	d, ok := m.files[path]
	if !ok {
		return nil, core.NewInputError("no such file %s", path)
	}
	return d, nil
}

func (m *memReader) Read(context.Context, io.Reader, string) (*dataset.Dataset, error) {
	return nil, core.NewInputError("not supported")
}

const batchYAML = `
seed: 99
family: gaussian
concurrency: 2
jobs:
  - id: strong
    simulate: {n: 120, intercept: 1, slope: 3, sigma: 0.5}
    outcome: y
    predictors: [x]
    target: x
  - id: two-way
    simulate: {n: 120, intercept: 1, slope: 3, sigma: 0.5}
    outcome: y
    predictors: [x, g]
    target: "x:g"
  - id: from-file
    data: scenario.csv
    outcome: y
    predictors: [x]
    target: x
  - id: same-file
    data: scenario.csv
    outcome: y
    predictors: [x]
    target: nope
`

func TestParseCalibration(t *testing.T) {
	cfg, err := ParseCalibration(strings.NewReader(batchYAML))
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, family.Normal, cfg.Family)
	require.Len(t, cfg.Jobs, 4)
	assert.Equal(t, 120, cfg.Jobs[0].Simulate.N)
	assert.Equal(t, []string{"x", "g"}, cfg.Jobs[1].Predictors)
}

func TestParseCalibrationRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no jobs", "seed: 1\n"},
		{"unknown field", "seed: 1\nbogus: 2\njobs: [{id: a, data: f.csv}]\n"},
		{"missing id", "seed: 1\njobs: [{data: f.csv}]\n"},
		{"duplicate id", "seed: 1\njobs: [{id: a, data: f.csv}, {id: a, data: g.csv}]\n"},
		{"no source", "seed: 1\njobs: [{id: a}]\n"},
		{"unpinned simulation", "jobs: [{id: a, simulate: {n: 10}}]\n"},
		{"unknown family", "seed: 1\nfamily: gamma\njobs: [{id: a, data: f.csv}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCalibration(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestCalibratorRun(t *testing.T) {
	cfg, err := ParseCalibration(strings.NewReader(batchYAML))
	require.NoError(t, err)

	scenario := testkit.TwoGroupScenario()
	reader := &memReader{files: map[string]*dataset.Dataset{"/data/scenario.csv": scenario}}
	cal := NewStimulusCalibrator(support.NewEstimator(nil, nil), reader, rng.New(), 4, nil)

	report, err := cal.Run(context.Background(), cfg, "/data")
	require.NoError(t, err)
	require.Len(t, report.Results, 4)
	assert.Equal(t, 1, reader.reads)

	byID := map[core.JobID]JobResult{}
	for _, r := range report.Results {
		byID[r.ID] = r
	}
	assert.Empty(t, byID["strong"].Error)
	assert.Greater(t, byID["strong"].Score, 10.0)
	assert.Empty(t, byID["two-way"].Error)
	assert.Equal(t, 8, len(byID["two-way"].Support.Candidates))
	assert.Empty(t, byID["from-file"].Error)
	assert.Contains(t, byID["same-file"].Error, "causal_support")
	assert.Equal(t, 1, report.Failed)

	// reading the same file for several jobs never aliases the source
	assert.Equal(t, []string{"y", "x"}, scenario.Names())

	again, err := cal.Run(context.Background(), cfg, "/data")
	require.NoError(t, err)
	assert.Equal(t, report.Results[0].Score, again.Results[0].Score)
	assert.NotEqual(t, report.BatchID, again.BatchID)
}

func TestCalibratorFailsOnMissingFile(t *testing.T) {
	cfg, err := ParseCalibration(strings.NewReader(batchYAML))
	require.NoError(t, err)
	cal := NewStimulusCalibrator(support.NewEstimator(nil, nil), &memReader{}, rng.New(), 1, nil)
	_, err = cal.Run(context.Background(), cfg, "/elsewhere")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
