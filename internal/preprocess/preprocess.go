// Package preprocess resolves log(x) terms of a model specification to
// finite derived columns before fitting.
package preprocess

import (
	"math"
	"strings"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/formula"
)

// ZeroFudge is the value substituted for exact zeros before taking a log.
// It biases results slightly and must stay fixed for compatibility with
// prior analyses.
const ZeroFudge = 0.001

// Preprocessor rewrites log(x) factors to reference a derived log_x column
type Preprocessor struct {
	fudge float64
}

// Option configures a Preprocessor
type Option func(*Preprocessor)

// WithZeroFudge overrides the zero substitute
func WithZeroFudge(v float64) Option {
	return func(p *Preprocessor) {
		if v > 0 {
			p.fudge = v
		}
	}
}

// New creates a preprocessor using ZeroFudge unless overridden
func New(opts ...Option) *Preprocessor {
	p := &Preprocessor{fudge: ZeroFudge}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare rewrites spec with the default preprocessor
func Prepare(spec string, data *dataset.Dataset) (string, *dataset.Dataset, error) {
	return New().Prepare(spec, data)
}

// Prepare parses spec (mean or dispersion form), resolves every log(x) factor
// and returns the rewritten spec with a new dataset. The input dataset is
// never modified. A spec without log factors comes back in canonical form
// with an unchanged copy of the data.
func (p *Preprocessor) Prepare(spec string, data *dataset.Dataset) (string, *dataset.Dataset, error) {
	var (
		f   formula.Formula
		err error
	)
	if isDispersion(spec) {
		f, err = formula.ParseDispersion(spec)
	} else {
		f, err = formula.Parse(spec)
	}
	if err != nil {
		return "", nil, err
	}
	out := data.Clone()
	rewritten, err := p.apply(spec, f, out)
	if err != nil {
		return "", nil, err
	}
	return rewritten.String(), out, nil
}

// PrepareFormula resolves the log factors of an already parsed formula
func (p *Preprocessor) PrepareFormula(f formula.Formula, data *dataset.Dataset) (formula.Formula, *dataset.Dataset, error) {
	out := data.Clone()
	rewritten, err := p.apply(f.String(), f, out)
	if err != nil {
		return formula.Formula{}, nil, err
	}
	return rewritten, out, nil
}

// PrepareModel resolves the mean and dispersion formulas against one shared
// copy of the data
func (p *Preprocessor) PrepareModel(mean, dispersion formula.Formula, data *dataset.Dataset) (formula.Formula, formula.Formula, *dataset.Dataset, error) {
	out := data.Clone()
	m, err := p.apply(mean.String(), mean, out)
	if err != nil {
		return formula.Formula{}, formula.Formula{}, nil, err
	}
	d, err := p.apply(dispersion.String(), dispersion, out)
	if err != nil {
		return formula.Formula{}, formula.Formula{}, nil, err
	}
	return m, d, out, nil
}

func isDispersion(spec string) bool {
	s := strings.TrimSpace(spec)
	return s == "" || strings.HasPrefix(s, "~")
}

// apply mutates data, which must be a private copy
func (p *Preprocessor) apply(spec string, f formula.Formula, data *dataset.Dataset) (formula.Formula, error) {
	for _, fac := range f.LogFactors() {
		if err := p.resolve(spec, fac, data); err != nil {
			return formula.Formula{}, err
		}
	}
	return f.Map(func(x formula.Factor) formula.Factor {
		if x.Transform == formula.Log {
			return formula.Factor{Name: x.Column()}
		}
		return x
	}), nil
}

func (p *Preprocessor) resolve(spec string, fac formula.Factor, data *dataset.Dataset) error {
	col, ok := data.Column(fac.Name)
	if !ok {
		return core.NewSpecError(spec, "log(%s) references unknown column %q", fac.Name, fac.Name)
	}
	if col.Kind != dataset.KindNumeric {
		return core.NewSpecError(spec, "log(%s) references categorical column %q", fac.Name, fac.Name)
	}

	adjusted := make([]float64, len(col.Numeric))
	logged := make([]float64, len(col.Numeric))
	for i, v := range col.Numeric {
		if v == 0 {
			v = p.fudge
		}
		adjusted[i] = v
		if math.IsNaN(v) {
			logged[i] = math.NaN()
			continue
		}
		if v < 0 || math.IsInf(v, 0) {
			return core.NewNumericError("log(%s): row %d has value %g outside (0, inf)", fac.Name, i, v)
		}
		logged[i] = math.Log(v)
	}

	name := fac.Column()
	if existing, ok := data.Column(name); ok && !sameValues(existing, logged) {
		return core.NewSpecError(spec, "derived column %q collides with an existing column", name)
	}
	if err := data.SetNumeric(fac.Name, adjusted); err != nil {
		return err
	}
	return data.SetNumeric(name, logged)
}

func sameValues(c *dataset.Column, vals []float64) bool {
	if c.Kind != dataset.KindNumeric || len(c.Numeric) != len(vals) {
		return false
	}
	for i, v := range c.Numeric {
		if v != vals[i] && !(math.IsNaN(v) && math.IsNaN(vals[i])) {
			return false
		}
	}
	return true
}
