package model

import (
	"modelcheck/domain/family"
)

// Coefficient is one fitted regression coefficient on the link scale
type Coefficient struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
}

// TStat returns the Wald t statistic, zero when the standard error is zero
func (c Coefficient) TStat() float64 {
	if c.StdErr == 0 {
		return 0
	}
	return c.Estimate / c.StdErr
}

// Summary is the per-observation output of a model fit. Location and
// Dispersion hold linear predictors on their link scales.
type Summary struct {
	Family         family.Family `json:"family"`
	MeanSpec       string        `json:"mean_spec"`
	DispersionSpec string        `json:"dispersion_spec,omitempty"`
	Outcome        string        `json:"outcome"`

	// Observed holds the outcome exactly as it appears in the data
	Observed []float64 `json:"observed"`

	Location     []float64 `json:"location"`
	LocationSE   []float64 `json:"location_se"`
	Dispersion   []float64 `json:"dispersion,omitempty"`
	DispersionSE []float64 `json:"dispersion_se,omitempty"`

	// DispersionModeled is true when dispersion has its own fitted sub-model
	// with standard errors. When false and the family has a dispersion,
	// ResidualScale carries the residual standard deviation instead.
	DispersionModeled bool    `json:"dispersion_modeled"`
	ResidualScale     float64 `json:"residual_scale,omitempty"`

	ResidualDF int     `json:"residual_df"`
	LogLik     float64 `json:"log_lik"`

	MeanCoefficients       []Coefficient `json:"mean_coefficients"`
	DispersionCoefficients []Coefficient `json:"dispersion_coefficients,omitempty"`

	Iterations int `json:"iterations"`
}

// NumObs returns the number of fitted observations
func (s *Summary) NumObs() int {
	return len(s.Location)
}

// NumParams returns the number of estimated parameters
func (s *Summary) NumParams() int {
	n := len(s.MeanCoefficients) + len(s.DispersionCoefficients)
	if !s.DispersionModeled && s.Family.HasDispersion() {
		n++
	}
	return n
}

// Member is one ensemble draw of natural-scale parameters for one observation
type Member struct {
	Obs        int     `json:"obs"`
	Draw       int     `json:"draw"`
	Location   float64 `json:"location"`
	Dispersion float64 `json:"dispersion"`
}

// Ensemble is a rectangular set of parameter draws: every observation has
// exactly NumDraws members. Members are stored draw-major.
type Ensemble struct {
	Family   family.Family `json:"family"`
	Outcome  string        `json:"outcome"`
	Observed []float64     `json:"observed"`
	NumObs   int           `json:"num_obs"`
	NumDraws int           `json:"num_draws"`
	Members  []Member      `json:"members"`
}

// At returns the member for the given observation and zero-based draw
func (e *Ensemble) At(obs, draw int) Member {
	return e.Members[draw*e.NumObs+obs]
}

// Source labels whether a predictive row is real data or a synthetic draw
type Source string

const (
	SourceObserved Source = "observed"
	SourceModel    Source = "model"
)

// Draw is one value of the long-format predictive table. Observed rows carry
// Draw 0; synthetic rows are numbered from 1.
type Draw struct {
	Obs    int     `json:"obs"`
	Draw   int     `json:"draw"`
	Source Source  `json:"source"`
	Value  float64 `json:"value"`
}

// PredictiveDraws holds the observed rows followed by every synthetic draw,
// grouped by draw index
type PredictiveDraws struct {
	Family   family.Family `json:"family"`
	Outcome  string        `json:"outcome"`
	NumObs   int           `json:"num_obs"`
	NumDraws int           `json:"num_draws"`
	Rows     []Draw        `json:"rows"`
}

// Synthetic returns the model rows for one observation
func (p *PredictiveDraws) Synthetic(obs int) []float64 {
	out := make([]float64, 0, p.NumDraws)
	for _, r := range p.Rows {
		if r.Obs == obs && r.Source == SourceModel {
			out = append(out, r.Value)
		}
	}
	return out
}
