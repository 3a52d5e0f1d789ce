package fit

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/formula"
)

const interceptName = "(Intercept)"

// design is a model matrix with one named column per coefficient
type design struct {
	names []string
	x     *mat.Dense
}

func (d *design) rows() int {
	r, _ := d.x.Dims()
	return r
}

func (d *design) cols() int {
	_, c := d.x.Dims()
	return c
}

func (d *design) hasIntercept() bool {
	return len(d.names) > 0 && d.names[0] == interceptName
}

// buildDesign expands the right-hand side of f against data: numeric factors
// contribute one column, categorical factors are treatment-coded against their
// first level, and interactions multiply the codings of their factors
func buildDesign(f formula.Formula, data *dataset.Dataset) (*design, error) {
	spec := f.String()
	n := data.NumRows()
	var (
		names []string
		cols  [][]float64
	)
	if f.Intercept {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		names = append(names, interceptName)
		cols = append(cols, ones)
	}
	for _, term := range f.Terms {
		tn, tc, err := termColumns(spec, term, data)
		if err != nil {
			return nil, err
		}
		names = append(names, tn...)
		cols = append(cols, tc...)
	}
	if len(cols) == 0 {
		return nil, core.NewSpecError(spec, "model has no terms")
	}

	x := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		x.SetCol(j, c)
	}
	return &design{names: names, x: x}, nil
}

func termColumns(spec string, term formula.Term, data *dataset.Dataset) ([]string, [][]float64, error) {
	n := data.NumRows()
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	names := []string{""}
	cols := [][]float64{ones}

	for _, fac := range term.Factors {
		fn, fc, err := factorColumns(spec, fac, data)
		if err != nil {
			return nil, nil, err
		}
		var nextNames []string
		var nextCols [][]float64
		for a := range cols {
			for b := range fc {
				prod := make([]float64, n)
				for i := range prod {
					prod[i] = cols[a][i] * fc[b][i]
				}
				nextNames = append(nextNames, joinName(names[a], fn[b]))
				nextCols = append(nextCols, prod)
			}
		}
		names, cols = nextNames, nextCols
	}
	return names, cols, nil
}

func joinName(a, b string) string {
	if a == "" {
		return b
	}
	return a + ":" + b
}

func factorColumns(spec string, fac formula.Factor, data *dataset.Dataset) ([]string, [][]float64, error) {
	col, ok := data.Column(fac.Name)
	if !ok {
		return nil, nil, core.NewSpecError(spec, "unknown column %q", fac.Name)
	}

	if col.Kind == dataset.KindCategorical {
		if fac.Transform == formula.Log {
			return nil, nil, core.NewSpecError(spec, "log() of categorical column %q", fac.Name)
		}
		levels := col.Levels()
		if len(levels) < 2 {
			return nil, nil, core.NewFitError("factor %q needs at least two levels, found %d", fac.Name, len(levels))
		}
		var names []string
		var cols [][]float64
		for _, level := range levels[1:] {
			ind := make([]float64, len(col.Categorical))
			for i, v := range col.Categorical {
				if v == level {
					ind[i] = 1
				}
			}
			names = append(names, fac.Name+"["+level+"]")
			cols = append(cols, ind)
		}
		return names, cols, nil
	}

	vals, err := numericValues(spec, fac, col)
	if err != nil {
		return nil, nil, err
	}
	return []string{fac.String()}, [][]float64{vals}, nil
}

// numericValues returns a factor's values, evaluating an unresolved log()
// directly. Non-positive input to such a log is reported rather than
// allowed to reach the design matrix as -Inf.
func numericValues(spec string, fac formula.Factor, col *dataset.Column) ([]float64, error) {
	vals := make([]float64, len(col.Numeric))
	for i, v := range col.Numeric {
		if fac.Transform == formula.Log {
			if !(v > 0) || math.IsInf(v, 1) {
				return nil, core.NewNumericError("log(%s) at row %d: value %g is not positive; run the preprocessor first", fac.Name, i, v)
			}
			v = math.Log(v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, core.NewFitError("column %q has non-finite value at row %d", fac.Name, i)
		}
		vals[i] = v
	}
	return vals, nil
}

// outcomeValues returns the response column of a mean formula
func outcomeValues(f formula.Formula, data *dataset.Dataset) ([]float64, error) {
	spec := f.String()
	col, ok := data.Column(f.Outcome.Name)
	if !ok {
		return nil, core.NewSpecError(spec, "unknown outcome column %q", f.Outcome.Name)
	}
	if col.Kind != dataset.KindNumeric {
		return nil, core.NewSpecError(spec, "outcome %q must be numeric", f.Outcome.Name)
	}
	return numericValues(spec, *f.Outcome, col)
}

// checkRank rejects designs that cannot identify every coefficient: fewer
// rows than columns, all-zero columns (a factor level combination with no
// observations) and collinear predictors
func checkRank(d *design) error {
	n, p := d.x.Dims()
	if n <= p {
		return core.NewFitError("%d observations cannot identify %d coefficients", n, p)
	}

	var empty []string
	for j := 0; j < p; j++ {
		allZero := true
		for i := 0; i < n; i++ {
			if d.x.At(i, j) != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			empty = append(empty, d.names[j])
		}
	}
	if len(empty) > 0 {
		return core.NewFitError("rank-deficient design: no observations for %s", strings.Join(empty, ", "))
	}

	var svd mat.SVD
	if ok := svd.Factorize(d.x, mat.SVDNone); !ok {
		return core.NewFitError("singular value decomposition of the design failed")
	}
	s := svd.Values(nil)
	tol := s[0] * float64(n) * 1e-12
	rank := 0
	for _, v := range s {
		if v > tol {
			rank++
		}
	}
	if rank < p {
		return core.NewFitError("rank-deficient design: rank %d < %d columns (collinear predictors among %s)", rank, p, strings.Join(d.names, ", "))
	}
	return nil
}
