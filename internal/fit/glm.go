package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"modelcheck/domain/core"
	"modelcheck/domain/family"
)

// glmFit is a single-predictor GLM fitted by iteratively reweighted least squares
type glmFit struct {
	mean       linearFit
	mu         []float64
	df         int
	loglik     float64
	iterations int
}

// glmVariant supplies the family-specific pieces of IRLS on the canonical link
type glmVariant struct {
	start   func(y float64) float64
	linkinv func(eta float64) float64
	weight  func(mu float64) float64 // (dmu/deta)^2 / Var(mu); equals dmu/deta on the canonical link
	dev     func(y, mu float64) float64
	loglik  func(y, mu float64) float64
}

const muFloor = 1e-10

var binomialVariant = glmVariant{
	start:   func(y float64) float64 { return family.Logit((y + 0.5) / 2) },
	linkinv: family.Expit,
	weight: func(mu float64) float64 {
		return math.Max(mu*(1-mu), muFloor)
	},
	dev: func(y, mu float64) float64 {
		return -2 * binomialLogLik(y, mu)
	},
	loglik: binomialLogLik,
}

var poissonVariant = glmVariant{
	start:   func(y float64) float64 { return math.Log(y + 0.1) },
	linkinv: func(eta float64) float64 { return math.Exp(math.Min(eta, 700)) },
	weight: func(mu float64) float64 {
		return math.Max(mu, muFloor)
	},
	dev: func(y, mu float64) float64 {
		d := mu - y
		if y > 0 {
			d += y * math.Log(y/mu)
		}
		return 2 * d
	},
	loglik: poissonLogLik,
}

func binomialLogLik(y, mu float64) float64 {
	mu = math.Min(math.Max(mu, muFloor), 1-muFloor)
	return y*math.Log(mu) + (1-y)*math.Log1p(-mu)
}

func poissonLogLik(y, mu float64) float64 {
	lg, _ := math.Lgamma(y + 1)
	return y*math.Log(math.Max(mu, muFloor)) - mu - lg
}

func checkBinary(y []float64) error {
	for i, v := range y {
		if v != 0 && v != 1 {
			return core.NewFitError("logistic outcome must be 0 or 1, row %d is %g", i, v)
		}
	}
	return nil
}

func checkCounts(y []float64) error {
	for i, v := range y {
		if v < 0 || v != math.Trunc(v) {
			return core.NewFitError("count outcome must be a non-negative integer, row %d is %g", i, v)
		}
	}
	return nil
}

// fitIRLS fits a GLM by Fisher scoring, stopping when the relative change in
// deviance falls below opts.Tolerance
func fitIRLS(v glmVariant, y []float64, x *design, opts Options) (*glmFit, error) {
	n, p := x.rows(), x.cols()
	df := n - p
	if df <= 0 {
		return nil, core.NewFitError("no residual degrees of freedom (%d observations, %d coefficients)", n, p)
	}

	eta := make([]float64, n)
	mu := make([]float64, n)
	for i := range y {
		eta[i] = v.start(y[i])
		mu[i] = v.linkinv(eta[i])
	}

	w := make([]float64, n)
	z := make([]float64, n)
	devOld := math.Inf(1)
	var (
		beta      []float64
		inv       *mat.SymDense
		converged bool
		iter      int
	)
	for iter = 1; iter <= opts.MaxIter; iter++ {
		for i := range y {
			w[i] = v.weight(mu[i])
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}
		b, cov, err := wls(x.x, z, w)
		if err != nil {
			return nil, err
		}
		beta, inv = b, cov
		eta = predict(x.x, beta)
		dev := 0.0
		for i := range y {
			mu[i] = v.linkinv(eta[i])
			dev += v.dev(y[i], mu[i])
		}
		if math.IsNaN(dev) || math.IsInf(dev, 0) {
			return nil, core.NewFitError("deviance diverged at iteration %d", iter)
		}
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < opts.Tolerance {
			converged = true
			break
		}
		devOld = dev
	}
	if !converged {
		return nil, core.NewFitError("IRLS did not converge after %d iterations", opts.MaxIter)
	}

	ll := 0.0
	for i := range y {
		ll += v.loglik(y[i], mu[i])
	}
	return &glmFit{
		mean:       newLinearFit(x.x, beta, inv),
		mu:         mu,
		df:         df,
		loglik:     ll,
		iterations: iter,
	}, nil
}
