package app

import (
	"context"
	"time"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/family"
	"modelcheck/domain/formula"
	"modelcheck/domain/model"
	"modelcheck/internal"
	"modelcheck/internal/config"
	"modelcheck/internal/ensemble"
	"modelcheck/internal/fit"
	"modelcheck/internal/preprocess"
	"modelcheck/internal/sampler"
	"modelcheck/ports"
)

// CheckRequest defines one visual model check
type CheckRequest struct {
	MeanSpec       string         `json:"mean_spec"`
	DispersionSpec string         `json:"dispersion_spec,omitempty"`
	Family         family.Family  `json:"family"`
	Draws          int            `json:"draws,omitempty"` // 0 uses the configured default
	Seed           int64          `json:"seed,omitempty"`  // 0 uses the configured seed
	Output         sampler.Output `json:"output,omitempty"`
}

// CheckResult is the complete output of a model check. Long is the
// long-format table handed to the visualization layer.
type CheckResult struct {
	ID          core.CheckID           `json:"id"`
	Fingerprint core.Fingerprint       `json:"fingerprint"`
	Seed        int64                  `json:"seed"`
	Summary     *model.Summary         `json:"summary"`
	Predictive  *model.PredictiveDraws `json:"predictive"`
	Long        *dataset.Dataset       `json:"-"`
	RuntimeMs   int64                  `json:"runtime_ms"`
}

// ModelCheckService composes prepare, fit, propagate and sample. Each call
// works on its own copy of the dataset, so concurrent calls may share input.
type ModelCheckService struct {
	prep    *preprocess.Preprocessor
	fitter  *fit.Fitter
	rngPort ports.RNGPort
	config  config.ModelConfig
	logger  *internal.Logger
}

// NewModelCheckService creates a model check service
func NewModelCheckService(cfg config.ModelConfig, rngPort ports.RNGPort, logger *internal.Logger) *ModelCheckService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ModelCheckService{
		prep:    preprocess.New(preprocess.WithZeroFudge(cfg.ZeroFudge)),
		fitter:  fit.New(fit.Options{MaxIter: cfg.MaxIter, Tolerance: cfg.Tolerance}),
		rngPort: rngPort,
		config:  cfg,
		logger:  logger.With("modelcheck"),
	}
}

// Fitter exposes the configured fitter for collaborators that score nested models
func (s *ModelCheckService) Fitter() *fit.Fitter { return s.fitter }

// Preprocessor exposes the configured preprocessor
func (s *ModelCheckService) Preprocessor() *preprocess.Preprocessor { return s.prep }

// Run executes the pipeline. A failure at any stage returns only a
// *core.StageError; no partial result is produced.
func (s *ModelCheckService) Run(ctx context.Context, data *dataset.Dataset, req CheckRequest) (*CheckResult, error) {
	start := time.Now()
	id := core.NewCheckID()

	fam := req.Family
	draws := req.Draws
	if draws == 0 {
		draws = s.config.Draws
	}
	seed := req.Seed
	if seed == 0 {
		seed = s.config.Seed
	}
	if data == nil {
		return nil, core.WrapStage(core.StagePrepare, req.MeanSpec, fam.String(), core.NewInputError("dataset is required"))
	}
	if draws < 1 {
		return nil, core.WrapStage(core.StagePropagate, req.MeanSpec, fam.String(), core.NewInputError("draws must be at least 1, got %d", draws))
	}
	output, err := sampler.ParseOutput(string(req.Output))
	if err != nil {
		return nil, core.WrapStage(core.StageSample, req.MeanSpec, fam.String(), err)
	}

	// prepare
	mean, err := formula.Parse(req.MeanSpec)
	if err != nil {
		return nil, core.WrapStage(core.StagePrepare, req.MeanSpec, fam.String(), err)
	}
	disp, err := formula.ParseDispersion(req.DispersionSpec)
	if err != nil {
		return nil, core.WrapStage(core.StagePrepare, req.DispersionSpec, fam.String(), err)
	}
	mean, disp, prepared, err := s.prep.PrepareModel(mean, disp, data)
	if err != nil {
		return nil, core.WrapStage(core.StagePrepare, req.MeanSpec, fam.String(), err)
	}
	s.logger.Debug("check %s prepared %q / %q", id, mean.String(), disp.String())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// fit
	summary, err := s.fitter.FitFormula(mean, disp, fam, prepared)
	if err != nil {
		return nil, core.WrapStage(core.StageFit, mean.String(), fam.String(), err)
	}
	s.logger.Debug("check %s fitted in %d iterations, loglik %.4f, df %d", id, summary.Iterations, summary.LogLik, summary.ResidualDF)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fingerprint := core.ComputeFingerprint(summary.MeanSpec, summary.DispersionSpec, fam.String(), draws, seed)

	// propagate
	propRNG, err := s.rngPort.Stream(ctx, "propagate", seed)
	if err != nil {
		return nil, err
	}
	ens, err := ensemble.Propagate(summary, draws, propRNG)
	if err != nil {
		return nil, core.WrapStage(core.StagePropagate, summary.MeanSpec, fam.String(), err)
	}

	// sample
	sampleRNG, err := s.rngPort.Stream(ctx, "sample", seed)
	if err != nil {
		return nil, err
	}
	pd, err := sampler.Sample(ens, fam, sampler.Options{Output: output}, sampleRNG)
	if err != nil {
		return nil, core.WrapStage(core.StageSample, summary.MeanSpec, fam.String(), err)
	}
	long, err := pd.LongFormat(prepared)
	if err != nil {
		return nil, core.WrapStage(core.StageSample, summary.MeanSpec, fam.String(), err)
	}

	elapsed := time.Since(start).Milliseconds()
	s.logger.Info("check %s family=%s n=%d draws=%d elapsed=%dms", id, fam, summary.NumObs(), draws, elapsed)

	return &CheckResult{
		ID:          id,
		Fingerprint: fingerprint,
		Seed:        seed,
		Summary:     summary,
		Predictive:  pd,
		Long:        long,
		RuntimeMs:   elapsed,
	}, nil
}
