// Package support scores whether a predictor's effect is present by
// averaging the likelihood over every nested mean model built from one or two
// predictors.
package support

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/family"
	"modelcheck/domain/formula"
	"modelcheck/internal/fit"
	"modelcheck/internal/preprocess"
)

// Request names the outcome, one or two predictors, the term whose presence
// is being scored and an optional dispersion specification
type Request struct {
	Outcome        string        `json:"outcome" yaml:"outcome"`
	Predictors     []string      `json:"predictors" yaml:"predictors"`
	Target         string        `json:"target" yaml:"target"`
	DispersionSpec string        `json:"dispersion_spec,omitempty" yaml:"dispersion_spec,omitempty"`
	Family         family.Family `json:"family,omitempty" yaml:"family,omitempty"`
}

// Candidate is one enumerated nested model
type Candidate struct {
	MeanSpec  string  `json:"mean_spec"`
	HasTarget bool    `json:"has_target"`
	LogLik    float64 `json:"log_lik"`
}

// Result carries the score with the models that produced it
type Result struct {
	Score         float64     `json:"score"`
	Target        string      `json:"target"`
	WithTarget    int         `json:"with_target"`
	WithoutTarget int         `json:"without_target"`
	Candidates    []Candidate `json:"candidates"`
}

// Estimator fits nested models with a shared fitter and preprocessor
type Estimator struct {
	fitter *fit.Fitter
	prep   *preprocess.Preprocessor
}

// NewEstimator creates an estimator; nil arguments select the defaults
func NewEstimator(fitter *fit.Fitter, prep *preprocess.Preprocessor) *Estimator {
	if fitter == nil {
		fitter = fit.New(fit.DefaultOptions())
	}
	if prep == nil {
		prep = preprocess.New()
	}
	return &Estimator{fitter: fitter, prep: prep}
}

// CausalSupport scores req with the default estimator
func CausalSupport(data *dataset.Dataset, req Request) (float64, error) {
	res, err := NewEstimator(nil, nil).Estimate(data, req)
	if err != nil {
		return 0, err
	}
	return res.Score, nil
}

// Estimate enumerates the 2 (one predictor) or 8 (two predictors with their
// interaction) nested mean models, fits each and returns the log-odds that
// the target term belongs in the model under a uniform prior over them.
func (e *Estimator) Estimate(data *dataset.Dataset, req Request) (*Result, error) {
	fam := req.Family
	if fam == "" {
		fam = family.Normal
	}
	terms, err := candidateTerms(req.Predictors)
	if err != nil {
		return nil, err
	}
	target, err := formula.ParseTerm(req.Target)
	if err != nil {
		return nil, err
	}
	targetIdx := -1
	for i, t := range terms {
		if t.Key() == target.Key() {
			targetIdx = i
		}
	}
	if targetIdx < 0 {
		return nil, core.NewSpecError(req.Target, "target is not one of the enumerated terms %s", keys(terms))
	}
	outcome, err := formula.ParseTerm(req.Outcome)
	if err != nil || outcome.IsInteraction() {
		return nil, core.NewSpecError(req.Outcome, "outcome must be a single variable")
	}

	full := formula.Formula{Outcome: &outcome.Factors[0], Intercept: true, Terms: terms}
	disp, err := formula.ParseDispersion(req.DispersionSpec)
	if err != nil {
		return nil, err
	}
	// one prepared copy serves every nested model
	full, disp, prepared, err := e.prep.PrepareModel(full, disp, data)
	if err != nil {
		return nil, err
	}

	res := &Result{Target: target.Key()}
	var with, without []float64
	for mask := 0; mask < 1<<len(terms); mask++ {
		var sub []formula.Term
		for i := range terms {
			if mask&(1<<i) != 0 {
				sub = append(sub, full.Terms[i])
			}
		}
		mean := full.WithTerms(sub)
		s, err := e.fitter.FitFormula(mean, disp, fam, prepared)
		if err != nil {
			return nil, fmt.Errorf("nested model %q: %w", mean.String(), err)
		}
		has := mask&(1<<targetIdx) != 0
		res.Candidates = append(res.Candidates, Candidate{MeanSpec: mean.String(), HasTarget: has, LogLik: s.LogLik})
		if has {
			with = append(with, s.LogLik)
		} else {
			without = append(without, s.LogLik)
		}
	}

	score, err := Score(with, without)
	if err != nil {
		return nil, err
	}
	res.Score = score
	res.WithTarget = len(with)
	res.WithoutTarget = len(without)
	return res, nil
}

// Score returns the log posterior odds of the "with" partition against the
// "without" partition: the difference of the mean marginal likelihoods plus
// the log prior odds of the partition sizes.
func Score(with, without []float64) (float64, error) {
	if len(with) == 0 || len(without) == 0 {
		return 0, core.NewInputError("both partitions need at least one model, got %d and %d", len(with), len(without))
	}
	for _, ll := range append(append([]float64(nil), with...), without...) {
		if math.IsNaN(ll) || math.IsInf(ll, 1) {
			return 0, core.NewNumericError("log-likelihood %g is not usable", ll)
		}
	}
	kw, kwo := float64(len(with)), float64(len(without))
	mw := floats.LogSumExp(with) - math.Log(kw)
	mwo := floats.LogSumExp(without) - math.Log(kwo)
	score := mw - mwo + math.Log(kw/kwo)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, core.NewNumericError("causal support is not finite (with %g, without %g)", mw, mwo)
	}
	return score, nil
}

func candidateTerms(predictors []string) ([]formula.Term, error) {
	if len(predictors) < 1 || len(predictors) > 2 {
		return nil, core.NewInputError("causal support takes one or two predictors, got %d", len(predictors))
	}
	var terms []formula.Term
	for _, p := range predictors {
		t, err := formula.ParseTerm(p)
		if err != nil {
			return nil, err
		}
		if t.IsInteraction() {
			return nil, core.NewSpecError(p, "predictor must be a single variable")
		}
		terms = append(terms, t)
	}
	if len(terms) == 2 {
		if terms[0].Key() == terms[1].Key() {
			return nil, core.NewSpecError(predictors[1], "predictors must differ")
		}
		terms = append(terms, formula.Term{Factors: []formula.Factor{terms[0].Factors[0], terms[1].Factors[0]}})
	}
	return terms, nil
}

func keys(terms []formula.Term) string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Key()
	}
	return "[" + strings.Join(out, ", ") + "]"
}
