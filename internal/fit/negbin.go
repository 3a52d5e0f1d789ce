package fit

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/optimize"

	"modelcheck/domain/core"
)

// Negative binomial with mean mu and dispersion sigma, Var = mu + sigma*mu^2,
// equivalently a Poisson whose rate is Gamma(1/sigma, sigma*mu) distributed

type negBinFit struct {
	mean       linearFit
	disp       linearFit
	df         int
	loglik     float64
	iterations int
}

// etaClamp bounds linear predictors inside exp so a line search cannot
// produce Inf
const etaClamp = 30

func clampEta(eta float64) float64 {
	return math.Max(-etaClamp, math.Min(etaClamp, eta))
}

func negBinLogLik(y, mu, sigma float64) float64 {
	r := 1 / sigma
	lgYR, _ := math.Lgamma(y + r)
	lgR, _ := math.Lgamma(r)
	lgY1, _ := math.Lgamma(y + 1)
	return lgYR - lgR - lgY1 - r*math.Log1p(mu/r) + y*(math.Log(mu)-math.Log(r+mu))
}

// negBinProblem evaluates the joint log-likelihood over theta = (beta, gamma)
type negBinProblem struct {
	y    []float64
	x, z *design
}

func (nb *negBinProblem) split(theta []float64) ([]float64, []float64) {
	p := nb.x.cols()
	return predict(nb.x.x, theta[:p]), predict(nb.z.x, theta[p:])
}

func (nb *negBinProblem) logLik(theta []float64) float64 {
	etaM, etaS := nb.split(theta)
	ll := 0.0
	for i, y := range nb.y {
		ll += negBinLogLik(y, math.Exp(clampEta(etaM[i])), math.Exp(clampEta(etaS[i])))
	}
	return ll
}

// grad writes the gradient of the log-likelihood into dst
func (nb *negBinProblem) grad(dst, theta []float64) {
	p, q := nb.x.cols(), nb.z.cols()
	etaM, etaS := nb.split(theta)
	for j := range dst {
		dst[j] = 0
	}
	for i, y := range nb.y {
		mu := math.Exp(clampEta(etaM[i]))
		r := math.Exp(-clampEta(etaS[i]))
		dEtaM := (y - mu) * r / (r + mu)
		dR := mathext.Digamma(y+r) - mathext.Digamma(r) - math.Log1p(mu/r) + (mu-y)/(r+mu)
		dEtaS := -r * dR

		xi := nb.x.x.RawRowView(i)
		zi := nb.z.x.RawRowView(i)
		for j := 0; j < p; j++ {
			dst[j] += dEtaM * xi[j]
		}
		for k := 0; k < q; k++ {
			dst[p+k] += dEtaS * zi[k]
		}
	}
}

// fitNegBin maximizes the joint likelihood of the log-mean and log-dispersion
// sub-models with BFGS, starting from a Poisson fit and a moment estimate of
// the dispersion. Standard errors come from a finite-difference Hessian of
// the analytic gradient.
func fitNegBin(y []float64, x, z *design, opts Options) (*negBinFit, error) {
	n, p, q := x.rows(), x.cols(), z.cols()
	df := n - p - q
	if df <= 0 {
		return nil, core.NewFitError("no residual degrees of freedom (%d observations, %d coefficients)", n, p+q)
	}

	start, err := fitIRLS(poissonVariant, y, x, opts)
	if err != nil {
		return nil, err
	}
	theta0 := make([]float64, p+q)
	copy(theta0, start.mean.beta)
	if z.hasIntercept() {
		theta0[p] = math.Log(momentDispersion(y))
	}

	nb := &negBinProblem{y: y, x: x, z: z}
	problem := optimize.Problem{
		Func: func(theta []float64) float64 { return -nb.logLik(theta) },
		Grad: func(dst, theta []float64) {
			nb.grad(dst, theta)
			for j := range dst {
				dst[j] = -dst[j]
			}
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: 1e-6,
		MajorIterations:   opts.MaxIter * 10,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Relative:   opts.Tolerance,
			Iterations: 25,
		},
	}
	result, err := optimize.Minimize(problem, theta0, settings, &optimize.BFGS{})
	if err != nil {
		return nil, core.NewFitError("negative binomial optimizer failed: %v", err)
	}
	switch result.Status {
	case optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge, optimize.Success:
	default:
		return nil, core.NewFitError("negative binomial optimizer stopped without converging: %v", result.Status)
	}
	theta := result.X

	k := p + q
	jac := mat.NewDense(k, k, nil)
	fd.Jacobian(jac, nb.grad, theta, &fd.JacobianSettings{Formula: fd.Central})
	info := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			info.SetSym(a, b, -0.5*(jac.At(a, b)+jac.At(b, a)))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, core.NewFitError("negative binomial information matrix is not positive definite")
	}
	cov := mat.NewSymDense(k, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, core.NewFitError("cannot invert negative binomial information matrix: %v", err)
	}

	return &negBinFit{
		mean:       newLinearFit(x.x, theta[:p], subSym(cov, 0, p)),
		disp:       newLinearFit(z.x, theta[p:], subSym(cov, p, k)),
		df:         df,
		loglik:     -result.F,
		iterations: result.Stats.MajorIterations,
	}, nil
}

// momentDispersion estimates sigma from (Var - mean) / mean^2, floored so the
// optimizer starts inside the overdispersed region
func momentDispersion(y []float64) float64 {
	m, err := stats.Mean(y)
	if err != nil || m <= 0 {
		return 1
	}
	v, err := stats.SampleVariance(y)
	if err != nil {
		return 1
	}
	return math.Max((v-m)/(m*m), 0.1)
}

func subSym(s *mat.SymDense, from, to int) *mat.SymDense {
	out := mat.NewSymDense(to-from, nil)
	for a := from; a < to; a++ {
		for b := a; b < to; b++ {
			out.SetSym(a-from, b-from, s.At(a, b))
		}
	}
	return out
}
