// Package family enumerates the supported distribution families and the
// link functions that map each family's natural parameters to the scale on
// which linear predictors are estimated.
package family

import (
	"math"
	"strings"

	"modelcheck/domain/core"
)

// Family selects the sampling distribution of the outcome
type Family string

const (
	Normal      Family = "normal"
	LogNormal   Family = "lognormal"
	LogitNormal Family = "logitnormal"
	Logistic    Family = "logistic"
	Poisson     Family = "poisson"
	NegBinomial Family = "negbinomial"
)

// All lists every supported family
var All = []Family{Normal, LogNormal, LogitNormal, Logistic, Poisson, NegBinomial}

var aliases = map[string]Family{
	"normal":            Normal,
	"gaussian":          Normal,
	"lognormal":         LogNormal,
	"log-normal":        LogNormal,
	"log_normal":        LogNormal,
	"logitnormal":       LogitNormal,
	"logit-normal":      LogitNormal,
	"logit_normal":      LogitNormal,
	"logistic":          Logistic,
	"binomial":          Logistic,
	"binary":            Logistic,
	"bernoulli":         Logistic,
	"poisson":           Poisson,
	"negbinomial":       NegBinomial,
	"negative-binomial": NegBinomial,
	"negative_binomial": NegBinomial,
	"negbin":            NegBinomial,
	"nb":                NegBinomial,
}

// Parse resolves a family name or common alias, case-insensitively
func Parse(name string) (Family, error) {
	f, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", core.NewSpecError(name, "unknown distribution family")
	}
	return f, nil
}

func (f Family) String() string {
	return string(f)
}

// HasDispersion reports whether the family carries a dispersion parameter
// that can have its own sub-model
func (f Family) HasDispersion() bool {
	switch f {
	case Normal, LogNormal, LogitNormal, NegBinomial:
		return true
	}
	return false
}

// IsGaussian reports whether the family is a Gaussian on some transformed scale
func (f Family) IsGaussian() bool {
	return f == Normal || f == LogNormal || f == LogitNormal
}

// LocationLink names the link applied to the location sub-model
func (f Family) LocationLink() string {
	switch f {
	case Logistic:
		return "logit"
	case Poisson, NegBinomial:
		return "log"
	}
	return "identity"
}

// DispersionLink names the link applied to the dispersion sub-model
func (f Family) DispersionLink() string {
	if f.HasDispersion() {
		return "log"
	}
	return ""
}

// NaturalLocation maps a location linear predictor to the parameter the
// family's sampler consumes. Gaussian families keep their Gaussian-scale mean;
// the outcome transform is applied at sampling time.
func (f Family) NaturalLocation(eta float64) float64 {
	switch f {
	case Logistic:
		return Expit(eta)
	case Poisson, NegBinomial:
		return math.Exp(eta)
	}
	return eta
}

// NaturalDispersion maps a log-scale dispersion predictor to its positive value
func (f Family) NaturalDispersion(eta float64) float64 {
	if !f.HasDispersion() {
		return 0
	}
	return math.Exp(eta)
}

// Expit is the logistic function, computed without overflow for large |x|
func Expit(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit is the inverse of Expit
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
