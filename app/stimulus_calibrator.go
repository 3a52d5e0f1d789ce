package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/family"
	"modelcheck/internal"
	"modelcheck/internal/support"
	"modelcheck/internal/testkit"
	"modelcheck/ports"
)

// CalibrationConfig is a YAML batch of causal-support jobs
type CalibrationConfig struct {
	Seed        int64            `yaml:"seed"`
	Family      family.Family    `yaml:"family,omitempty"`
	Concurrency int              `yaml:"concurrency,omitempty"`
	Jobs        []CalibrationJob `yaml:"jobs"`
}

// CalibrationJob scores one stimulus. The dataset is read from Data, or
// simulated from Simulate when Data is empty.
type CalibrationJob struct {
	ID             string                   `yaml:"id"`
	Data           string                   `yaml:"data,omitempty"`
	Simulate       *testkit.GeneratorConfig `yaml:"simulate,omitempty"`
	Outcome        string                   `yaml:"outcome"`
	Predictors     []string                 `yaml:"predictors"`
	Target         string                   `yaml:"target"`
	DispersionSpec string                   `yaml:"dispersion_spec,omitempty"`
	Family         family.Family            `yaml:"family,omitempty"`
}

// JobResult is the outcome of one job; Error is set instead of Support when
// the job failed
type JobResult struct {
	ID        core.JobID      `json:"id" yaml:"id"`
	Score     float64         `json:"score" yaml:"score"`
	Support   *support.Result `json:"support,omitempty" yaml:"-"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
	RuntimeMs int64           `json:"runtime_ms" yaml:"runtime_ms"`
}

// CalibrationReport collects every job result in configuration order
type CalibrationReport struct {
	BatchID core.BatchID `json:"batch_id" yaml:"batch_id"`
	Results []JobResult  `json:"results" yaml:"results"`
	Failed  int          `json:"failed" yaml:"failed"`
}

// ParseCalibration decodes and validates a calibration batch
func ParseCalibration(r io.Reader) (*CalibrationConfig, error) {
	var cfg CalibrationConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, core.NewInputError("calibration config: %v", err)
	}
	if len(cfg.Jobs) == 0 {
		return nil, core.NewInputError("calibration config has no jobs")
	}
	seen := make(map[string]bool, len(cfg.Jobs))
	for i, job := range cfg.Jobs {
		id, err := core.ParseJobID(job.ID)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		if seen[string(id)] {
			return nil, core.NewInputError("duplicate job id %q", id)
		}
		seen[string(id)] = true
		if (job.Data == "") == (job.Simulate == nil) {
			return nil, core.NewInputError("job %q must set exactly one of data or simulate", id)
		}
		if job.Simulate != nil && job.Simulate.Seed == 0 && cfg.Seed == 0 {
			return nil, core.NewInputError("job %q simulates a stimulus but neither the job nor the batch pins a seed", id)
		}
		if job.Family != "" {
			if cfg.Jobs[i].Family, err = family.Parse(string(job.Family)); err != nil {
				return nil, fmt.Errorf("job %q: %w", id, err)
			}
		}
	}
	if cfg.Family != "" {
		fam, err := family.Parse(string(cfg.Family))
		if err != nil {
			return nil, err
		}
		cfg.Family = fam
	}
	return &cfg, nil
}

// StimulusCalibrator scores calibration batches concurrently. Every job
// receives its own copy of the data.
type StimulusCalibrator struct {
	estimator   *support.Estimator
	reader      ports.DatasetReader
	rngPort     ports.RNGPort
	concurrency int
	logger      *internal.Logger
}

// NewStimulusCalibrator creates a calibrator running at most concurrency jobs at once
func NewStimulusCalibrator(estimator *support.Estimator, reader ports.DatasetReader, rngPort ports.RNGPort, concurrency int, logger *internal.Logger) *StimulusCalibrator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &StimulusCalibrator{
		estimator:   estimator,
		reader:      reader,
		rngPort:     rngPort,
		concurrency: concurrency,
		logger:      logger.With("calibrate"),
	}
}

// Run scores every job. Relative data paths resolve against baseDir. A job
// failure is recorded on its result; only a failure to load shared input or
// a cancelled context fails the whole batch.
func (c *StimulusCalibrator) Run(ctx context.Context, cfg *CalibrationConfig, baseDir string) (*CalibrationReport, error) {
	start := time.Now()
	sources, err := c.loadSources(ctx, cfg, baseDir)
	if err != nil {
		return nil, err
	}

	limit := c.concurrency
	if cfg.Concurrency > 0 {
		limit = cfg.Concurrency
	}

	report := &CalibrationReport{BatchID: core.NewBatchID(), Results: make([]JobResult, len(cfg.Jobs))}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, job := range cfg.Jobs {
		i, job := i, job
		g.Go(func() error {
			report.Results[i] = c.runJob(gCtx, cfg, job, sources)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range report.Results {
		if r.Error != "" {
			report.Failed++
			c.logger.Warn("batch %s job %s failed: %s", report.BatchID, r.ID, r.Error)
		}
	}
	c.logger.Info("batch %s scored %d jobs (%d failed) in %dms", report.BatchID, len(cfg.Jobs), report.Failed, time.Since(start).Milliseconds())
	return report, nil
}

func (c *StimulusCalibrator) loadSources(ctx context.Context, cfg *CalibrationConfig, baseDir string) (map[string]*dataset.Dataset, error) {
	sources := make(map[string]*dataset.Dataset)
	for _, job := range cfg.Jobs {
		if job.Data == "" || sources[job.Data] != nil {
			continue
		}
		if c.reader == nil {
			return nil, core.NewInputError("job %q reads %s but no dataset reader is configured", job.ID, job.Data)
		}
		path := job.Data
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := c.reader.ReadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", job.ID, err)
		}
		sources[job.Data] = data
	}
	return sources, nil
}

func (c *StimulusCalibrator) runJob(ctx context.Context, cfg *CalibrationConfig, job CalibrationJob, sources map[string]*dataset.Dataset) JobResult {
	start := time.Now()
	res := JobResult{ID: core.JobID(job.ID)}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	fam := job.Family
	if fam == "" {
		fam = cfg.Family
	}

	var data *dataset.Dataset
	if job.Simulate != nil {
		gen := *job.Simulate
		if gen.Seed == 0 {
			// derive from the batch seed so the stimulus is reproducible
			r, err := c.rngPort.Stream(ctx, "stimulus/"+job.ID, cfg.Seed)
			if err != nil {
				res.Error = err.Error()
				return res
			}
			gen.Seed = r.Uint64()
		}
		simFam := fam
		if simFam == "" {
			simFam = family.Normal
		}
		data = testkit.NewGenerator(gen).Generate(simFam)
	} else {
		data = sources[job.Data].Clone()
	}

	out, err := c.estimator.Estimate(data, support.Request{
		Outcome:        job.Outcome,
		Predictors:     job.Predictors,
		Target:         job.Target,
		DispersionSpec: job.DispersionSpec,
		Family:         fam,
	})
	res.RuntimeMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = core.WrapStage(core.StageSupport, job.Target, fam.String(), err).Error()
		return res
	}
	res.Score = out.Score
	res.Support = out
	c.logger.Debug("job %s support(%s) = %.4f", job.ID, out.Target, out.Score)
	return res
}
