// Package fit estimates the location and dispersion sub-models of a model
// specification by maximum likelihood and reports per-observation linear
// predictors with their standard errors.
package fit

import (
	"math"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/family"
	"modelcheck/domain/formula"
	"modelcheck/domain/model"
)

// Options controls the optimizers
type Options struct {
	MaxIter   int
	Tolerance float64
}

// DefaultOptions returns the iteration limit and tolerance used for
// interactive fits
func DefaultOptions() Options {
	return Options{MaxIter: 100, Tolerance: 1e-8}
}

// Fitter dispatches a (mean, dispersion, family) triple to the family's
// fitting routine
type Fitter struct {
	opts Options
}

// New creates a fitter; zero-valued options fall back to the defaults
func New(opts Options) *Fitter {
	def := DefaultOptions()
	if opts.MaxIter <= 0 {
		opts.MaxIter = def.MaxIter
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	return &Fitter{opts: opts}
}

// problem is a parsed fit request with its design matrices built
type problem struct {
	family family.Family
	mean   formula.Formula
	disp   formula.Formula
	y      []float64
	x      *design
	z      *design
}

type strategy func(pr *problem, opts Options) (*model.Summary, error)

var strategies = map[family.Family]strategy{
	family.Normal:      fitGaussianFamily,
	family.LogNormal:   fitGaussianFamily,
	family.LogitNormal: fitGaussianFamily,
	family.Logistic:    fitBinaryFamily,
	family.Poisson:     fitPoissonFamily,
	family.NegBinomial: fitNegBinFamily,
}

// Fit parses both specifications and fits them. Specifications must already
// be preprocessed if they contain log() terms over columns with zeros.
func (f *Fitter) Fit(meanSpec, dispersionSpec string, fam family.Family, data *dataset.Dataset) (*model.Summary, error) {
	mean, err := formula.Parse(meanSpec)
	if err != nil {
		return nil, err
	}
	disp, err := formula.ParseDispersion(dispersionSpec)
	if err != nil {
		return nil, err
	}
	return f.FitFormula(mean, disp, fam, data)
}

// FitFormula fits parsed formulas. The point estimate is deterministic for
// identical inputs.
func (f *Fitter) FitFormula(mean, disp formula.Formula, fam family.Family, data *dataset.Dataset) (*model.Summary, error) {
	fit, ok := strategies[fam]
	if !ok {
		return nil, core.NewSpecError(string(fam), "unknown distribution family")
	}
	if data == nil || data.NumRows() == 0 {
		return nil, core.NewInputError("dataset has no rows")
	}
	if mean.Outcome == nil {
		return nil, core.NewSpecError(mean.String(), "missing outcome")
	}
	if !fam.HasDispersion() && !disp.IsInterceptOnly() {
		return nil, core.NewSpecError(disp.String(), "family %s has no dispersion sub-model", fam)
	}

	y, err := outcomeValues(mean, data)
	if err != nil {
		return nil, err
	}
	x, err := buildDesign(mean, data)
	if err != nil {
		return nil, err
	}
	if err := checkRank(x); err != nil {
		return nil, err
	}
	pr := &problem{family: fam, mean: mean, disp: disp, y: y, x: x}
	if fam.HasDispersion() && !disp.IsInterceptOnly() {
		if pr.z, err = buildDesign(disp, data); err != nil {
			return nil, err
		}
		if err := checkRank(pr.z); err != nil {
			return nil, err
		}
	}
	if fam == family.NegBinomial && pr.z == nil {
		pr.z, _ = buildDesign(formula.Formula{Intercept: true}, data)
	}

	summary, err := fit(pr, f.opts)
	if err != nil {
		return nil, err
	}
	summary.Family = fam
	summary.MeanSpec = mean.String()
	if fam.HasDispersion() {
		summary.DispersionSpec = disp.String()
	}
	summary.Outcome = mean.Outcome.Column()
	summary.Observed = append([]float64(nil), y...)
	return summary, nil
}

func fitGaussianFamily(pr *problem, opts Options) (*model.Summary, error) {
	yt, jac, err := transformOutcome(pr.family, pr.y)
	if err != nil {
		return nil, err
	}
	var g *gaussianFit
	if pr.z == nil {
		g, err = fitGaussianResidual(yt, pr.x)
	} else {
		g, err = fitGaussianLocationScale(yt, pr.x, pr.z, opts)
	}
	if err != nil {
		return nil, err
	}

	s := &model.Summary{
		Location:          g.mean.eta,
		LocationSE:        g.mean.se,
		Dispersion:        g.disp.eta,
		DispersionSE:      g.disp.se,
		DispersionModeled: g.modeled,
		ResidualDF:        g.df,
		LogLik:            g.loglik + jac,
		MeanCoefficients:  coefficients(pr.x, g.mean),
		Iterations:        g.iterations,
	}
	if g.modeled {
		s.DispersionCoefficients = coefficients(pr.z, g.disp)
	} else {
		s.ResidualScale = g.sigma
	}
	return s, nil
}

func fitBinaryFamily(pr *problem, opts Options) (*model.Summary, error) {
	if err := checkBinary(pr.y); err != nil {
		return nil, err
	}
	return glmSummary(binomialVariant, pr, opts)
}

func fitPoissonFamily(pr *problem, opts Options) (*model.Summary, error) {
	if err := checkCounts(pr.y); err != nil {
		return nil, err
	}
	return glmSummary(poissonVariant, pr, opts)
}

func glmSummary(v glmVariant, pr *problem, opts Options) (*model.Summary, error) {
	g, err := fitIRLS(v, pr.y, pr.x, opts)
	if err != nil {
		return nil, err
	}
	return &model.Summary{
		Location:         g.mean.eta,
		LocationSE:       g.mean.se,
		ResidualDF:       g.df,
		LogLik:           g.loglik,
		MeanCoefficients: coefficients(pr.x, g.mean),
		Iterations:       g.iterations,
	}, nil
}

func fitNegBinFamily(pr *problem, opts Options) (*model.Summary, error) {
	if err := checkCounts(pr.y); err != nil {
		return nil, err
	}
	nb, err := fitNegBin(pr.y, pr.x, pr.z, opts)
	if err != nil {
		return nil, err
	}
	return &model.Summary{
		Location:               nb.mean.eta,
		LocationSE:             nb.mean.se,
		Dispersion:             nb.disp.eta,
		DispersionSE:           nb.disp.se,
		DispersionModeled:      true,
		ResidualDF:             nb.df,
		LogLik:                 nb.loglik,
		MeanCoefficients:       coefficients(pr.x, nb.mean),
		DispersionCoefficients: coefficients(pr.z, nb.disp),
		Iterations:             nb.iterations,
	}, nil
}

func coefficients(d *design, lf linearFit) []model.Coefficient {
	out := make([]model.Coefficient, len(d.names))
	for j, name := range d.names {
		v := lf.cov.At(j, j)
		se := 0.0
		if v > 0 {
			se = math.Sqrt(v)
		}
		out[j] = model.Coefficient{Term: name, Estimate: lf.beta[j], StdErr: se}
	}
	return out
}
