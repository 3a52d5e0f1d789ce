package model

import (
	"fmt"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
)

// Column names added to the long-format table
const (
	ColumnRow    = ".row"
	ColumnDraw   = ".draw"
	ColumnSource = ".source"
)

// LongFormat stacks the base dataset once per block of predictive rows:
// the observed block first, then one block per draw. The outcome column holds
// the observed or synthetic value; every other base column is replicated.
func (p *PredictiveDraws) LongFormat(base *dataset.Dataset) (*dataset.Dataset, error) {
	if base.NumRows() != p.NumObs {
		return nil, core.NewInputError("base dataset has %d rows, draws cover %d observations", base.NumRows(), p.NumObs)
	}
	for _, name := range []string{ColumnRow, ColumnDraw, ColumnSource} {
		if base.Has(name) {
			return nil, core.NewInputError("base dataset already has reserved column %q", name)
		}
	}
	if !base.Has(p.Outcome) {
		return nil, core.NewInputError("base dataset lacks outcome column %q", p.Outcome)
	}

	total := len(p.Rows)
	rowIdx := make([]float64, total)
	drawIdx := make([]float64, total)
	source := make([]string, total)
	outcome := make([]float64, total)
	for i, r := range p.Rows {
		rowIdx[i] = float64(r.Obs)
		drawIdx[i] = float64(r.Draw)
		source[i] = string(r.Source)
		outcome[i] = r.Value
	}

	out := dataset.New()
	for _, col := range base.Columns() {
		var err error
		switch {
		case col.Name == p.Outcome:
			err = out.AddNumeric(col.Name, outcome)
		case col.Kind == dataset.KindCategorical:
			vals := make([]string, total)
			for i, r := range p.Rows {
				vals[i] = col.Categorical[r.Obs]
			}
			err = out.AddCategorical(col.Name, vals)
		default:
			vals := make([]float64, total)
			for i, r := range p.Rows {
				vals[i] = col.Numeric[r.Obs]
			}
			err = out.AddNumeric(col.Name, vals)
		}
		if err != nil {
			return nil, fmt.Errorf("building long format: %w", err)
		}
	}
	if err := out.AddNumeric(ColumnRow, rowIdx); err != nil {
		return nil, err
	}
	if err := out.AddNumeric(ColumnDraw, drawIdx); err != nil {
		return nil, err
	}
	if err := out.AddCategorical(ColumnSource, source); err != nil {
		return nil, err
	}
	return out, nil
}
