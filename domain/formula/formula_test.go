package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/domain/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec      string
		canonical string
		terms     []string
		intercept bool
	}{
		{"y~x", "y ~ x", []string{"x"}, true},
		{"y ~ x + z", "y ~ x + z", []string{"x", "z"}, true},
		{"y ~ a:b", "y ~ a:b", []string{"a:b"}, true},
		{"y ~ 1", "y ~ 1", nil, true},
		{"y ~ 1 + x", "y ~ x", []string{"x"}, true},
		{"y ~ 0 + x", "y ~ 0 + x", []string{"x"}, false},
		{"y ~ x - 1", "y ~ 0 + x", []string{"x"}, false},
		{"y ~ log(x)", "y ~ log(x)", []string{"log(x)"}, true},
		{"log(y) ~ x", "log(y) ~ x", []string{"x"}, true},
		{"y ~ a*b", "y ~ a + b + a:b", []string{"a", "b", "a:b"}, true},
		{"y ~ a + a + b:a + a:b", "y ~ a + b:a", []string{"a", "a:b"}, true},
		{"y~x.1 + x_2", "y ~ x.1 + x_2", []string{"x.1", "x_2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			f, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, f.String())
			assert.Equal(t, tt.intercept, f.Intercept)

			var keys []string
			for _, term := range f.Terms {
				keys = append(keys, term.Key())
			}
			assert.Equal(t, tt.terms, keys)

			reparsed, err := Parse(f.String())
			require.NoError(t, err)
			assert.Equal(t, f, reparsed)
		})
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"~ x",
		"y ~",
		"y ~ x +",
		"y ~ exp(x)",
		"y ~ log(log(x))",
		"y ~ log()",
		"y ~ 2",
		"y ~ x - z",
		"y ~ x $ z",
		"y ~ x ~ z",
	}
	for _, spec := range bad {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidSpecification)
		})
	}
}

func TestParseDispersion(t *testing.T) {
	f, err := ParseDispersion("")
	require.NoError(t, err)
	assert.True(t, f.IsInterceptOnly())
	assert.Nil(t, f.Outcome)

	f, err = ParseDispersion("~a+b")
	require.NoError(t, err)
	assert.Equal(t, "~ a + b", f.String())

	_, err = ParseDispersion("y ~ a")
	assert.ErrorIs(t, err, core.ErrInvalidSpecification)
}

func TestTermKeyMatchesExactly(t *testing.T) {
	ab, err := ParseTerm("a:b")
	require.NoError(t, err)
	ba, err := ParseTerm("b:a")
	require.NoError(t, err)
	assert.Equal(t, ab.Key(), ba.Key())

	f, err := Parse("y ~ ab + a_b + b")
	require.NoError(t, err)
	assert.False(t, f.HasTerm("a"))
	assert.True(t, f.HasTerm("b"))
	assert.False(t, f.HasTerm(ab.Key()))
}

func TestLogFactors(t *testing.T) {
	f, err := Parse("log(y) ~ log(x) + z + log(x):z")
	require.NoError(t, err)
	logs := f.LogFactors()
	require.Len(t, logs, 2)
	assert.Equal(t, "y", logs[0].Name)
	assert.Equal(t, "x", logs[1].Name)
	assert.Equal(t, "log_x", logs[1].Column())
}
