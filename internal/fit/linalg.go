package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"modelcheck/domain/core"
)

// linearFit is one fitted linear predictor with its coefficient covariance
type linearFit struct {
	beta []float64
	cov  *mat.SymDense
	eta  []float64
	se   []float64
}

// wls solves the weighted normal equations X'WX b = X'Wz and returns b
// together with (X'WX)^-1
func wls(x *mat.Dense, z, w []float64) ([]float64, *mat.SymDense, error) {
	n, p := x.Dims()
	xtwx := mat.NewSymDense(p, nil)
	xtwz := make([]float64, p)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		wi := w[i]
		for j := 0; j < p; j++ {
			xtwz[j] += wi * row[j] * z[i]
			for k := j; k < p; k++ {
				xtwx.SetSym(j, k, xtwx.At(j, k)+wi*row[j]*row[k])
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(xtwx); !ok {
		return nil, nil, core.NewFitError("weighted information matrix is not positive definite")
	}
	var b mat.VecDense
	if err := chol.SolveVecTo(&b, mat.NewVecDense(p, xtwz)); err != nil {
		return nil, nil, core.NewFitError("ill-conditioned normal equations: %v", err)
	}
	inv := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, nil, core.NewFitError("cannot invert information matrix: %v", err)
	}

	beta := make([]float64, p)
	for j := range beta {
		beta[j] = b.AtVec(j)
		if math.IsNaN(beta[j]) || math.IsInf(beta[j], 0) {
			return nil, nil, core.NewFitError("non-finite coefficient estimate")
		}
	}
	return beta, inv, nil
}

// predict returns X b
func predict(x *mat.Dense, beta []float64) []float64 {
	n, _ := x.Dims()
	var out mat.VecDense
	out.MulVec(x, mat.NewVecDense(len(beta), beta))
	eta := make([]float64, n)
	for i := range eta {
		eta[i] = out.AtVec(i)
	}
	return eta
}

// predictSE returns the standard error of each row's linear predictor,
// sqrt(x_i' V x_i)
func predictSE(x *mat.Dense, cov mat.Symmetric) []float64 {
	n, p := x.Dims()
	se := make([]float64, n)
	for i := 0; i < n; i++ {
		xi := mat.NewVecDense(p, x.RawRowView(i))
		v := mat.Inner(xi, cov, xi)
		if v < 0 {
			v = 0
		}
		se[i] = math.Sqrt(v)
	}
	return se
}

func newLinearFit(x *mat.Dense, beta []float64, cov *mat.SymDense) linearFit {
	return linearFit{
		beta: beta,
		cov:  cov,
		eta:  predict(x, beta),
		se:   predictSE(x, cov),
	}
}

func scaled(s *mat.SymDense, f float64) *mat.SymDense {
	out := mat.NewSymDense(s.SymmetricDim(), nil)
	out.ScaleSym(f, s)
	return out
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
