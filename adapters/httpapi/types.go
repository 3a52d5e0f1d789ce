package httpapi

import (
	"encoding/json"
	"fmt"
	"math"

	"modelcheck/domain/core"
	"modelcheck/domain/dataset"
	"modelcheck/domain/family"
	"modelcheck/domain/model"
	"modelcheck/internal/support"
)

// ColumnPayload is one JSON column. Values must be all numbers (null is a
// missing value) or all strings.
type ColumnPayload struct {
	Name   string            `json:"name"`
	Values []json.RawMessage `json:"values"`
}

// DataPayload is a column-oriented dataset
type DataPayload struct {
	Columns []ColumnPayload `json:"columns"`
}

// ModelCheckRequest is the body of POST /v1/modelcheck
type ModelCheckRequest struct {
	Data           DataPayload `json:"data"`
	MeanSpec       string      `json:"mean_spec"`
	DispersionSpec string      `json:"dispersion_spec,omitempty"`
	Family         string      `json:"family"`
	Draws          int         `json:"draws,omitempty"`
	Seed           int64       `json:"seed,omitempty"`
	Output         string      `json:"output,omitempty"`
}

// ModelCheckResponse carries the fit and the long-format predictive table
type ModelCheckResponse struct {
	ID          core.CheckID     `json:"id"`
	Fingerprint core.Fingerprint `json:"fingerprint"`
	Seed        int64            `json:"seed"`
	Summary     *model.Summary   `json:"summary"`
	Long        DataPayload      `json:"long"`
	RuntimeMs   int64            `json:"runtime_ms"`
}

// CausalSupportRequest is the body of POST /v1/causal-support
type CausalSupportRequest struct {
	Data           DataPayload `json:"data"`
	Outcome        string      `json:"outcome"`
	Predictors     []string    `json:"predictors"`
	Target         string      `json:"target"`
	DispersionSpec string      `json:"dispersion_spec,omitempty"`
	Family         string      `json:"family,omitempty"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r CausalSupportRequest) toRequest() (support.Request, error) {
	req := support.Request{
		Outcome:        r.Outcome,
		Predictors:     r.Predictors,
		Target:         r.Target,
		DispersionSpec: r.DispersionSpec,
	}
	if r.Family != "" {
		fam, err := family.Parse(r.Family)
		if err != nil {
			return support.Request{}, err
		}
		req.Family = fam
	}
	return req, nil
}

// toDataset decodes each column as numeric when every value is a number or
// null, and as categorical when every value is a string
func (p DataPayload) toDataset() (*dataset.Dataset, error) {
	if len(p.Columns) == 0 {
		return nil, core.NewInputError("data has no columns")
	}
	d := dataset.New()
	for _, c := range p.Columns {
		nums, numErr := decodeNumbers(c.Values)
		var err error
		if numErr == nil {
			err = d.AddNumeric(c.Name, nums)
		} else {
			strs, strErr := decodeStrings(c.Values)
			if strErr != nil {
				return nil, core.NewInputError("column %q mixes numbers and strings", c.Name)
			}
			err = d.AddCategorical(c.Name, strs)
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func decodeNumbers(raw []json.RawMessage) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, r := range raw {
		var v *float64
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out, nil
}

func decodeStrings(raw []json.RawMessage) ([]string, error) {
	out := make([]string, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fromDataset encodes columns; NaN becomes null
func fromDataset(d *dataset.Dataset) (DataPayload, error) {
	out := DataPayload{Columns: make([]ColumnPayload, 0, d.NumColumns())}
	for _, c := range d.Columns() {
		col := ColumnPayload{Name: c.Name, Values: make([]json.RawMessage, c.Len())}
		for i := 0; i < c.Len(); i++ {
			var (
				raw []byte
				err error
			)
			switch {
			case c.Kind == dataset.KindCategorical:
				raw, err = json.Marshal(c.Categorical[i])
			case math.IsNaN(c.Numeric[i]) || math.IsInf(c.Numeric[i], 0):
				raw = []byte("null")
			default:
				raw, err = json.Marshal(c.Numeric[i])
			}
			if err != nil {
				return DataPayload{}, fmt.Errorf("encoding column %q: %w", c.Name, err)
			}
			col.Values[i] = raw
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}
