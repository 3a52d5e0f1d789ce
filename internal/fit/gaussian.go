package fit

import (
	"math"

	"github.com/montanaflynn/stats"

	"modelcheck/domain/core"
	"modelcheck/domain/family"
)

// gaussianFit is the result of a location-scale Gaussian fit on the
// transformed outcome scale
type gaussianFit struct {
	mean       linearFit
	disp       linearFit
	modeled    bool
	sigma      float64
	df         int
	loglik     float64
	iterations int
}

// transformOutcome maps y to the Gaussian scale of the family and returns the
// log-Jacobian of that transform
func transformOutcome(fam family.Family, y []float64) ([]float64, float64, error) {
	out := make([]float64, len(y))
	jac := 0.0
	for i, v := range y {
		switch fam {
		case family.LogNormal:
			if !(v > 0) {
				return nil, 0, core.NewNumericError("log-normal outcome must be positive, row %d is %g", i, v)
			}
			out[i] = math.Log(v)
			jac -= out[i]
		case family.LogitNormal:
			if !(v > 0 && v < 1) {
				return nil, 0, core.NewNumericError("logit-normal outcome must lie in (0, 1), row %d is %g", i, v)
			}
			out[i] = family.Logit(v)
			jac -= math.Log(v) + math.Log1p(-v)
		default:
			out[i] = v
		}
	}
	return out, jac, nil
}

// fitGaussianResidual fits the location by least squares and summarizes the
// scale by the residual standard deviation, for intercept-only dispersion
func fitGaussianResidual(y []float64, x *design) (*gaussianFit, error) {
	n, p := x.rows(), x.cols()
	beta, inv, err := wls(x.x, y, ones(n))
	if err != nil {
		return nil, err
	}
	mu := predict(x.x, beta)
	rss := 0.0
	for i := range y {
		r := y[i] - mu[i]
		rss += r * r
	}
	df := n - p
	if df <= 0 {
		return nil, core.NewFitError("no residual degrees of freedom (%d observations, %d coefficients)", n, p)
	}
	s2 := rss / float64(df)
	if s2 <= 0 || math.IsNaN(s2) {
		return nil, core.NewFitError("residual variance is zero: the model reproduces the outcome exactly")
	}

	sigma := math.Sqrt(s2)
	logSigma := math.Log(sigma)
	logSigmaSE := 1 / math.Sqrt(2*float64(df))
	disp := linearFit{eta: make([]float64, n), se: make([]float64, n)}
	for i := 0; i < n; i++ {
		disp.eta[i] = logSigma
		disp.se[i] = logSigmaSE
	}

	mle2 := rss / float64(n)
	return &gaussianFit{
		mean:       newLinearFit(x.x, beta, scaled(inv, s2)),
		disp:       disp,
		sigma:      sigma,
		df:         df,
		loglik:     -0.5 * float64(n) * (math.Log(2*math.Pi*mle2) + 1),
		iterations: 1,
	}, nil
}

// fitGaussianLocationScale maximizes the joint likelihood of a location
// sub-model (identity link) and a log-scale sub-model by alternating a
// weighted least-squares step for the location with a Fisher-scoring step
// for the log-scale, halving the scale step when the likelihood drops
func fitGaussianLocationScale(y []float64, x, z *design, opts Options) (*gaussianFit, error) {
	n, p, q := x.rows(), x.cols(), z.cols()
	df := n - p - q
	if df <= 0 {
		return nil, core.NewFitError("no residual degrees of freedom (%d observations, %d coefficients)", n, p+q)
	}

	beta, _, err := wls(x.x, y, ones(n))
	if err != nil {
		return nil, err
	}
	mu := predict(x.x, beta)
	resid := make([]float64, n)
	for i := range y {
		resid[i] = y[i] - mu[i]
	}
	sd, err := stats.StandardDeviationPopulation(resid)
	if err != nil || !(sd > 0) {
		return nil, core.NewFitError("residual variance is zero: the model reproduces the outcome exactly")
	}
	etaS := make([]float64, n)
	for i := range etaS {
		etaS[i] = math.Log(sd)
	}

	var (
		gamma     []float64
		converged bool
		iter      int
		llOld     = math.Inf(-1)
		w         = make([]float64, n)
		zs        = make([]float64, n)
	)
	for iter = 1; iter <= opts.MaxIter; iter++ {
		for i := range w {
			w[i] = math.Exp(-2 * etaS[i])
		}
		beta, _, err = wls(x.x, y, w)
		if err != nil {
			return nil, err
		}
		mu = predict(x.x, beta)

		for i := range zs {
			r := y[i] - mu[i]
			zs[i] = etaS[i] + 0.5*(r*r*w[i]-1)
		}
		full, _, err := wls(z.x, zs, ones(n))
		if err != nil {
			return nil, err
		}

		step := 1.0
		var ll float64
		for halving := 0; ; halving++ {
			cand := full
			if gamma != nil && step < 1 {
				cand = make([]float64, q)
				for j := range cand {
					cand[j] = gamma[j] + step*(full[j]-gamma[j])
				}
			}
			candEta := predict(z.x, cand)
			ll = gaussianLogLik(y, mu, candEta)
			if ll >= llOld || gamma == nil || halving >= 10 {
				gamma, etaS = cand, candEta
				break
			}
			step /= 2
		}
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return nil, core.NewFitError("likelihood diverged at iteration %d", iter)
		}
		if math.Abs(ll-llOld) < opts.Tolerance*(math.Abs(ll)+opts.Tolerance) {
			converged = true
			llOld = ll
			break
		}
		llOld = ll
	}
	if !converged {
		return nil, core.NewFitError("location-scale fit did not converge after %d iterations", opts.MaxIter)
	}

	for i := range w {
		w[i] = math.Exp(-2 * etaS[i])
	}
	beta, covBeta, err := wls(x.x, y, w)
	if err != nil {
		return nil, err
	}
	_, zInv, err := wls(z.x, zs, ones(n))
	if err != nil {
		return nil, err
	}
	mean := newLinearFit(x.x, beta, covBeta)

	return &gaussianFit{
		mean:       mean,
		disp:       newLinearFit(z.x, gamma, scaled(zInv, 0.5)),
		modeled:    true,
		df:         df,
		loglik:     gaussianLogLik(y, mean.eta, etaS),
		iterations: iter,
	}, nil
}

// gaussianLogLik is the Normal log-likelihood with per-row mean mu and
// log standard deviation etaS
func gaussianLogLik(y, mu, etaS []float64) float64 {
	ll := 0.0
	for i := range y {
		r := (y[i] - mu[i]) * math.Exp(-etaS[i])
		ll += -0.5*math.Log(2*math.Pi) - etaS[i] - 0.5*r*r
	}
	return ll
}
