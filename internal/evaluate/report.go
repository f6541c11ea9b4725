package evaluate

import (
	"fmt"
	"io"
	"text/template"
)

// ReportData is everything rendered into an accuracy report. Threshold and Fusion are optional.
type ReportData struct {
	TrialID    string
	Tolerance  float64
	Comparison Comparison
	Threshold  *ThresholdFailures
	Fusion     *FusionAnalysis
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms":       func(s float64) float64 { return s * 1000 },
	"pct":      func(v float64) float64 { return v * 100 },
	"insights": Insights,
}).Parse(`# Gait Event Detection Accuracy Report
{{- if .TrialID}}

Trial: {{.TrialID}}, matching tolerance {{printf "%.0f" (ms .Tolerance)}} ms
{{- end}}

## Algorithm Performance Summary
{{range .Comparison.Performances}}
- **{{.Algorithm}}**: {{printf "%.1f" .Accuracy}}% accuracy
  - Precision: {{printf "%.3f" .Precision}} | Recall: {{printf "%.3f" .Recall}} | F1: {{printf "%.3f" .F1}}
  - Events: {{.Detected}}/{{.Expected}} detected
  - Processing: {{.ProcessingMs}}ms
{{- end}}
{{- with .Comparison.Improvements}}

## Performance Improvements
{{range .}}
- **{{.Improved}} vs {{.Baseline}}**: {{printf "%+.1f" .Percent}}%
{{- end}}
{{- end}}

## Constraint Adaptation Analysis
{{range .Comparison.Performances}}
- **{{.Algorithm}}**: {{printf "%.1f" (pct .Adaptation)}}% adaptation
{{- end}}
{{- with .Threshold}}

## Threshold Failure Analysis

- Left/right peak force ratio: {{printf "%.3f" .PeakRatio}}{{if .Severe}} (severe){{else if .Asymmetric}} (asymmetric){{end}}
- Missed events: left {{.MissedLeft}}, right {{.MissedRight}}
{{- range .Reasons}}
- {{.}}
{{- end}}
{{- end}}
{{- with .Fusion}}

## Fusion Analysis

- Sensor agreement rate: {{printf "%.1f" (pct .AgreementRate)}}%
- Events lost to rigid rules: {{.RigidRuleFailures}}
{{- range .Opportunities}}
- {{.}}
{{- end}}
{{- end}}

## Key Insights
{{range insights .Comparison}}
- {{.}}
{{- end}}
`))

// Report renders data as a markdown accuracy report.
func Report(w io.Writer, data ReportData) error {
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("error rendering report: %w", err)
	}
	return nil
}

// Insights summarizes a comparison whose performances run from the baseline detector to the most
// elaborate one.
func Insights(c Comparison) []string {
	p := c.Performances
	if len(p) == 0 {
		return []string{"No detectors were assessed."}
	}

	var out []string
	first, last := p[0], p[len(p)-1]

	if len(p) >= 2 && c.Improvement(first.Algorithm, p[1].Algorithm) > 10 {
		out = append(out, fmt.Sprintf("%s improves significantly on the force-only %s detector", p[1].Algorithm, first.Algorithm))
	}
	if len(p) >= 2 && c.Improvement(first.Algorithm, last.Algorithm) > 25 {
		out = append(out, fmt.Sprintf("%s adapts markedly better to the constrained gait than %s", last.Algorithm, first.Algorithm))
	}
	if len(p) >= 3 && c.Improvement(p[1].Algorithm, last.Algorithm) > 15 {
		out = append(out, fmt.Sprintf("adaptive thresholds in %s outperform the rigid rules of %s", last.Algorithm, p[1].Algorithm))
	}
	if last.Adaptation > first.Adaptation+0.2 {
		out = append(out, fmt.Sprintf("%s balances detection across both legs", last.Algorithm))
	}

	fast := true
	for _, perf := range p {
		fast = fast && perf.ProcessingMs < 500
	}
	if fast {
		out = append(out, "every detector processed the trial in under 500 ms")
	}
	if last.Accuracy > 90 {
		out = append(out, fmt.Sprintf("%s exceeds 90%% accuracy on the constrained trial", last.Algorithm))
	}

	if len(out) == 0 {
		return []string{"Analysis completed."}
	}
	return out
}
