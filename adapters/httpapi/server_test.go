package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelcheck/adapters/rng"
	"modelcheck/app"
	"modelcheck/internal/config"
	"modelcheck/internal/support"
)

const scenarioData = `{"columns": [
	{"name": "y", "values": [1, 2, 3, 4, 5]},
	{"name": "x", "values": [0, 0, 0, 1, 1]},
	{"name": "g", "values": ["a", "b", "a", "b", "a"]}
]}`

func newTestServer() *Server {
	cfg := config.Default()
	cfg.Model.Seed = 11
	checks := app.NewModelCheckService(cfg.Model, rng.New(), nil)
	return NewServer(cfg.Server, checks, support.NewEstimator(checks.Fitter(), checks.Preprocessor()), nil)
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestModelCheckJSON(t *testing.T) {
	body := `{"data": ` + scenarioData + `, "mean_spec": "y ~ x", "dispersion_spec": "~1", "family": "normal", "draws": 5}`
	rec := post(t, newTestServer(), "/v1/modelcheck", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID      string      `json:"id"`
		Seed    int64       `json:"seed"`
		Summary struct {
			Location []float64 `json:"location"`
		} `json:"summary"`
		Long DataPayload `json:"long"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, int64(11), resp.Seed)
	assert.Len(t, resp.Summary.Location, 5)

	names := make([]string, len(resp.Long.Columns))
	for i, c := range resp.Long.Columns {
		names[i] = c.Name
		assert.Len(t, c.Values, 30)
	}
	assert.Equal(t, []string{"y", "x", "g", ".row", ".draw", ".source"}, names)
}

func TestModelCheckCSVAndHTML(t *testing.T) {
	body := `{"data": ` + scenarioData + `, "mean_spec": "y ~ x", "family": "gaussian"}`
	s := newTestServer()

	rec := post(t, s, "/v1/modelcheck?format=csv", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "y,x,g,.row,.draw,.source", lines[0])
	assert.Len(t, lines, 31)

	rec = post(t, s, "/v1/modelcheck?format=html", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")
}

func TestModelCheckErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"data":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", `{"bogus": 1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown family", `{"data": ` + scenarioData + `, "mean_spec": "y ~ x", "family": "gamma"}`, http.StatusBadRequest, "INVALID_SPECIFICATION"},
		{"bad spec", `{"data": ` + scenarioData + `, "mean_spec": "y ~ x +", "family": "normal"}`, http.StatusBadRequest, "INVALID_SPECIFICATION"},
		{"fit failure", `{"data": ` + scenarioData + `, "mean_spec": "y ~ x", "family": "logistic"}`, http.StatusUnprocessableEntity, "FIT_FAILURE"},
		{"mixed column", `{"data": {"columns": [{"name": "y", "values": [1, "a"]}]}, "mean_spec": "y ~ 1", "family": "normal"}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestServer(), "/v1/modelcheck", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			var e ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestCausalSupportEndpoint(t *testing.T) {
	body := `{"data": ` + scenarioData + `, "outcome": "y", "predictors": ["x", "g"], "target": "x"}`
	rec := post(t, newTestServer(), "/v1/causal-support", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res support.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "x", res.Target)
	assert.Len(t, res.Candidates, 8)
}

func TestCausalSupportRejectsUnknownTarget(t *testing.T) {
	body := `{"data": ` + scenarioData + `, "outcome": "y", "predictors": ["x"], "target": "g"}`
	rec := post(t, newTestServer(), "/v1/causal-support", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataPayloadNulls(t *testing.T) {
	var p DataPayload
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(`{"columns": [{"name": "x", "values": [1, null]}]}`)).Decode(&p))
	d, err := p.toDataset()
	require.NoError(t, err)
	x, err := d.Numeric("x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, x[0])

	back, err := fromDataset(d)
	require.NoError(t, err)
	assert.Equal(t, "null", string(back.Columns[0].Values[1]))
}
