// Package report renders fit summaries and causal-support results as
// Markdown, optionally converted to a standalone HTML page.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"modelcheck/domain/model"
	"modelcheck/internal/support"
)

// MaxObservationRows caps the per-observation predictive table
const MaxObservationRows = 25

// ModelCheck renders a fit summary and, when pd is non-nil, a predictive
// comparison for the first MaxObservationRows observations
func ModelCheck(s *model.Summary, pd *model.PredictiveDraws) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Model check: %s\n\n", s.MeanSpec)
	fmt.Fprintf(&b, "- Family: **%s**\n", s.Family)
	if s.DispersionSpec != "" {
		fmt.Fprintf(&b, "- Dispersion: `%s`\n", s.DispersionSpec)
	}
	fmt.Fprintf(&b, "- Observations: %d\n", s.NumObs())
	fmt.Fprintf(&b, "- Residual df: %d\n", s.ResidualDF)
	fmt.Fprintf(&b, "- Log-likelihood: %.4f\n", s.LogLik)
	if !s.DispersionModeled && s.Family.HasDispersion() {
		fmt.Fprintf(&b, "- Residual scale: %.4f\n", s.ResidualScale)
	}
	b.WriteString("\n## Location coefficients\n\n")
	writeCoefficients(&b, s.MeanCoefficients)
	if len(s.DispersionCoefficients) > 0 {
		b.WriteString("\n## Dispersion coefficients (log scale)\n\n")
		writeCoefficients(&b, s.DispersionCoefficients)
	}
	if pd != nil && pd.NumDraws > 0 {
		writePredictive(&b, pd)
	}
	return b.String()
}

// CausalSupport renders the nested models behind a support score
func CausalSupport(res *support.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Causal support for `%s`\n\n", res.Target)
	fmt.Fprintf(&b, "Score: **%.4f** (%d models with the term, %d without)\n\n", res.Score, res.WithTarget, res.WithoutTarget)
	b.WriteString("| Mean model | Contains term | Log-likelihood |\n|---|---|---:|\n")
	for _, c := range res.Candidates {
		mark := ""
		if c.HasTarget {
			mark = "yes"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %.4f |\n", c.MeanSpec, mark, c.LogLik)
	}
	return b.String()
}

// HTML converts Markdown to a complete HTML page
func HTML(md, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}

func writeCoefficients(b *strings.Builder, coefs []model.Coefficient) {
	b.WriteString("| Term | Estimate | Std. error | t |\n|---|---:|---:|---:|\n")
	for _, c := range coefs {
		fmt.Fprintf(b, "| `%s` | %.4f | %.4f | %.2f |\n", c.Term, c.Estimate, c.StdErr, c.TStat())
	}
}

func writePredictive(b *strings.Builder, pd *model.PredictiveDraws) {
	b.WriteString("\n## Observed vs. predictive draws\n\n")
	b.WriteString("| Row | Observed | Draw mean | 5% | 95% |\n|---:|---:|---:|---:|---:|\n")
	observed := make(map[int]float64, pd.NumObs)
	for _, r := range pd.Rows {
		if r.Source == model.SourceObserved {
			observed[r.Obs] = r.Value
		}
	}
	n := pd.NumObs
	if n > MaxObservationRows {
		n = MaxObservationRows
	}
	for i := 0; i < n; i++ {
		draws := pd.Synthetic(i)
		mean, _ := stats.Mean(draws)
		lo, _ := stats.Percentile(draws, 5)
		hi, _ := stats.Percentile(draws, 95)
		fmt.Fprintf(b, "| %d | %.4g | %.4g | %.4g | %.4g |\n", i, observed[i], mean, lo, hi)
	}
	if pd.NumObs > n {
		fmt.Fprintf(b, "\n%d more rows omitted.\n", pd.NumObs-n)
	}
}
