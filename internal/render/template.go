package render

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/analytics"
	"github.com/dvloznov/txn-insights/internal/domain"
)

const (
	maxListedRows  = 10
	smallSample    = 10
	largeSample    = 100
	baseConfidence = 0.8
	minConfidence  = 0.6
	maxConfidence  = 0.98
)

var recommendations = map[domain.RiskLevel]string{
	domain.RiskHigh:   "Immediate action required. Review fraud detection and apply stricter verification.",
	domain.RiskMedium: "Monitor transactions closely and consider stronger checks for the riskiest groups.",
	domain.RiskLow:    "Current rates are acceptable. Keep monitoring with the existing controls.",
}

// Template renders explanations from the result alone. It never fails.
type Template struct{}

// NewTemplate returns the deterministic renderer.
func NewTemplate() *Template {
	return &Template{}
}

// Render implements Renderer.
func (t *Template) Render(_ context.Context, in Input) (string, error) {
	return t.render(in), nil
}

func (t *Template) render(in Input) string {
	res := in.Result
	if res.NoData {
		return res.Summary
	}

	insights := in.Insights
	if insights == nil {
		insights = Insights(in.Plan, res)
	}

	switch in.Intent {
	case domain.IntentComparative:
		return templateComparative(in.Plan, res, insights)
	case domain.IntentSegmentation:
		return templateSegmentation(in.Plan, res, insights)
	case domain.IntentRisk:
		return templateRisk(in.Plan, res, insights)
	default:
		return templateDescriptive(in.Plan, res, insights)
	}
}

func templateDescriptive(plan analytics.Plan, res analytics.Result, insights []string) string {
	var b strings.Builder
	o := res.Overall

	b.WriteString("**Descriptive Summary**\n\n")
	fmt.Fprintf(&b, "- **Total transactions analyzed:** %d\n", o.Count)
	fmt.Fprintf(&b, "- **Average transaction amount:** %s\n", analytics.FormatValue(domain.MetricMean, o.Mean))
	fmt.Fprintf(&b, "- **Median transaction amount:** %s\n", analytics.FormatValue(domain.MetricMedian, o.Median))
	fmt.Fprintf(&b, "- **Total transaction value:** %s\n", analytics.FormatValue(domain.MetricSum, o.Total))
	fmt.Fprintf(&b, "- **Failure rate:** %s\n", analytics.FormatValue(domain.MetricFailureRatio, o.FailureRatio))

	if res.GroupBy != "" {
		writeRows(&b, plan, res)
	}
	writeInsights(&b, insights, 3)
	return b.String()
}

func templateComparative(plan analytics.Plan, res analytics.Result, insights []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s Comparison**\n\n", title(analytics.DimensionLabel(res.GroupBy)))
	fmt.Fprintf(&b, "- **Scope:** `%s`\n", res.GroupBy)
	for _, r := range limit(res.Rows) {
		fmt.Fprintf(&b, "- **%s:** %s = %s; Transactions = %d\n",
			r.Group, analytics.MetricLabel(plan.Metric), analytics.FormatValue(plan.Metric, r.Value), r.Count)
	}
	writeInsights(&b, insights, 3)
	return b.String()
}

func templateSegmentation(plan analytics.Plan, res analytics.Result, insights []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**User Segmentation by %s**\n\n", title(analytics.DimensionLabel(res.GroupBy)))
	fmt.Fprintf(&b, "- **Total transactions analyzed:** %d\n", res.Overall.Count)
	writeInsights(&b, insights, 4)

	b.WriteString("\n**Segments:**\n")
	for _, r := range limit(res.Rows) {
		fmt.Fprintf(&b, "- %s: %d transactions, %s avg value\n",
			r.Group, r.Count, analytics.FormatValue(domain.MetricMean, r.Mean))
	}
	return b.String()
}

func templateRisk(plan analytics.Plan, res analytics.Result, insights []string) string {
	var b strings.Builder
	o := res.Overall
	level := overallRisk(plan, o)

	b.WriteString("**Risk Analysis Summary**\n\n")
	fmt.Fprintf(&b, "- **Fraud rate:** %s\n", analytics.FormatValue(domain.MetricFraudRatio, o.FraudRatio))
	fmt.Fprintf(&b, "- **Failure rate:** %s\n", analytics.FormatValue(domain.MetricFailureRatio, o.FailureRatio))
	fmt.Fprintf(&b, "- **Risk level:** %s\n", strings.ToUpper(string(level)))
	writeInsights(&b, insights, len(insights))

	if res.GroupBy != "" {
		fmt.Fprintf(&b, "\n**%s by %s:**\n", title(analytics.MetricLabel(plan.Metric)), analytics.DimensionLabel(res.GroupBy))
		for _, r := range limit(res.Rows) {
			fmt.Fprintf(&b, "- %s: %s (%d flagged of %d, %s)\n",
				r.Group, analytics.FormatValue(plan.Metric, r.Value), r.FraudCount, r.Count, r.RiskLevel)
		}
	}

	fmt.Fprintf(&b, "\n**Recommendation:** %s\n", recommendations[level])
	return b.String()
}

// Insights lists short deterministic observations about a result.
func Insights(plan analytics.Plan, res analytics.Result) []string {
	if res.NoData {
		return []string{res.Summary}
	}

	o := res.Overall
	out := []string{fmt.Sprintf("%d transactions matched the question.", o.Count)}

	if res.GroupBy != "" && len(res.Rows) > 1 {
		top, bottom := res.Rows[0], res.Rows[0]
		for _, r := range res.Rows[1:] {
			if r.Value.GreaterThan(top.Value) {
				top = r
			}
			if r.Value.LessThan(bottom.Value) {
				bottom = r
			}
		}
		label := analytics.MetricLabel(plan.Metric)
		out = append(out,
			fmt.Sprintf("%s has the highest %s at %s.", top.Group, label, analytics.FormatValue(plan.Metric, top.Value)),
			fmt.Sprintf("%s has the lowest %s at %s.", bottom.Group, label, analytics.FormatValue(plan.Metric, bottom.Value)),
		)
	}

	if plan.Intent == domain.IntentRisk {
		level := overallRisk(plan, o)
		out = append(out, fmt.Sprintf("Overall %s is %s, which is %s risk.",
			analytics.MetricLabel(riskMetric(plan)), analytics.FormatValue(riskMetric(plan), riskValue(plan, o)), level))
		var high []string
		for _, r := range res.Rows {
			if res.GroupBy != "" && r.RiskLevel == domain.RiskHigh {
				high = append(high, r.Group)
			}
		}
		if len(high) > 0 {
			out = append(out, "High risk: "+strings.Join(high, ", ")+".")
		}
	} else if o.FraudCount > 0 {
		out = append(out, fmt.Sprintf("%d transactions were flagged for fraud (%s).",
			o.FraudCount, analytics.FormatValue(domain.MetricFraudRatio, o.FraudRatio)))
	}

	if o.Count < smallSample {
		out = append(out, "The sample is small, so treat these figures with caution.")
	}
	return out
}

// Confidence scores how complete a result is, between 0.6 and 0.98.
func Confidence(res analytics.Result) float64 {
	score := baseConfidence
	switch n := res.Overall.Count; {
	case n > largeSample:
		score += 0.1
	case n < smallSample:
		score -= 0.2
	}
	if len(res.Rows) > 1 {
		score += 0.05
	}
	score = min(maxConfidence, max(minConfidence, score))
	return math.Round(score*100) / 100
}

func riskMetric(plan analytics.Plan) domain.Metric {
	if plan.Metric == domain.MetricFailureRatio {
		return domain.MetricFailureRatio
	}
	return domain.MetricFraudRatio
}

func overallRisk(plan analytics.Plan, o analytics.Row) domain.RiskLevel {
	if riskMetric(plan) == domain.MetricFailureRatio {
		return analytics.FailureRisk(o.FailureRatio)
	}
	return analytics.FraudRisk(o.FraudRatio)
}

func riskValue(plan analytics.Plan, o analytics.Row) decimal.Decimal {
	if riskMetric(plan) == domain.MetricFailureRatio {
		return o.FailureRatio
	}
	return o.FraudRatio
}

func writeRows(b *strings.Builder, plan analytics.Plan, res analytics.Result) {
	fmt.Fprintf(b, "\n**%s by %s:**\n", title(analytics.MetricLabel(plan.Metric)), analytics.DimensionLabel(res.GroupBy))
	for _, r := range limit(res.Rows) {
		fmt.Fprintf(b, "- %s: %s (%d transactions)\n", r.Group, analytics.FormatValue(plan.Metric, r.Value), r.Count)
	}
}

func writeInsights(b *strings.Builder, insights []string, n int) {
	if len(insights) == 0 {
		return
	}
	b.WriteString("\n**Key insights:**\n")
	for _, s := range insights[:min(n, len(insights))] {
		fmt.Fprintf(b, "- %s\n", s)
	}
}

func limit(rows []analytics.Row) []analytics.Row {
	return rows[:min(maxListedRows, len(rows))]
}

func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var _ Renderer = (*Template)(nil)
