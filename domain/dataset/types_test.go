package dataset

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/domain/core"
)

func TestDatasetKeepsInsertionOrder(t *testing.T) {
	d := New()
	require.NoError(t, d.AddNumeric("y", []float64{1, 2, 3}))
	require.NoError(t, d.AddCategorical("g", []string{"b", "a", "b"}))
	require.NoError(t, d.AddNumeric("x", []float64{0, 1, 0}))

	assert.Equal(t, []string{"y", "g", "x"}, d.Names())
	assert.Equal(t, 3, d.NumRows())
	assert.Equal(t, 3, d.NumColumns())

	g, ok := d.Column("g")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, g.Levels())
}

func TestDatasetRejectsBadColumns(t *testing.T) {
	d := New()
	require.NoError(t, d.AddNumeric("y", []float64{1, 2}))

	err := d.AddNumeric("y", []float64{3, 4})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	err = d.AddNumeric("x", []float64{1})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	err = d.AddNumeric("", []float64{1, 2})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = d.Numeric("missing")
	assert.Error(t, err)
}

func TestNumericOnCategoricalFails(t *testing.T) {
	d, err := FromColumns([]string{"g"}, map[string]interface{}{"g": []string{"a"}})
	require.NoError(t, err)
	_, err = d.Numeric("g")
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	d, err := FromColumns([]string{"y", "g"}, map[string]interface{}{
		"y": []float64{1, 2},
		"g": []string{"a", "b"},
	})
	require.NoError(t, err)

	c := d.Clone()
	y, _ := c.Column("y")
	y.Numeric[0] = 99
	g, _ := c.Column("g")
	g.Categorical[0] = "z"
	require.NoError(t, c.SetNumeric("log_y", []float64{0, math.Log(2)}))

	orig, _ := d.Numeric("y")
	assert.Equal(t, 1.0, orig[0])
	og, _ := d.Column("g")
	assert.Equal(t, "a", og.Categorical[0])
	assert.False(t, d.Has("log_y"))
}

func TestSetNumericReplacesInPlace(t *testing.T) {
	d, err := FromColumns([]string{"x", "y"}, map[string]interface{}{
		"x": []float64{0, 1},
		"y": []float64{1, 2},
	})
	require.NoError(t, err)

	require.NoError(t, d.SetNumeric("x", []float64{0.001, 1}))
	assert.Equal(t, []string{"x", "y"}, d.Names())
	x, _ := d.Numeric("x")
	assert.Equal(t, []float64{0.001, 1}, x)

	assert.Error(t, d.SetNumeric("x", []float64{1}))
}

func TestFormatRendersMissingAsEmpty(t *testing.T) {
	c := &Column{Name: "y", Kind: KindNumeric, Numeric: []float64{1.5, math.NaN()}}
	assert.Equal(t, "1.5", c.Format(0))
	assert.Equal(t, "", c.Format(1))
}

func TestFromColumnsRejectsUnknownType(t *testing.T) {
	_, err := FromColumns([]string{"n"}, map[string]interface{}{"n": []int{1}})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}
