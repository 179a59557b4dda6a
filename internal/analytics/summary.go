package analytics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// FormatValue renders a metric value for people: ratios as percentages,
// amounts in rupees, counts as integers.
func FormatValue(metric domain.Metric, v decimal.Decimal) string {
	switch {
	case metric.IsRatio():
		return v.Mul(hundred).StringFixed(2) + "%"
	case metric == domain.MetricCount:
		return v.Round(0).String()
	default:
		return "₹" + v.StringFixed(2)
	}
}

// MetricLabel is the human name of a metric.
func MetricLabel(metric domain.Metric) string {
	switch metric {
	case domain.MetricMean:
		return "average amount"
	case domain.MetricSum:
		return "total amount"
	case domain.MetricMedian:
		return "median amount"
	case domain.MetricFraudRatio:
		return "fraud rate"
	case domain.MetricFailureRatio:
		return "failure rate"
	default:
		return "transaction count"
	}
}

// DimensionLabel is the human name of a dimension.
func DimensionLabel(d domain.Dimension) string {
	return strings.ReplaceAll(string(d), "_", " ")
}

// Summarize is a one-line deterministic description of a result.
func Summarize(plan Plan, res Result) string {
	if res.NoData {
		return "No transactions match the selected filters."
	}

	label := MetricLabel(plan.Metric)
	if res.GroupBy == "" || len(res.Rows) == 0 {
		return fmt.Sprintf("%s is %s across %d transactions.",
			capitalize(label), FormatValue(plan.Metric, res.Overall.Value), res.Overall.Count)
	}

	top, bottom := res.Rows[0], res.Rows[0]
	for _, r := range res.Rows[1:] {
		if r.Value.GreaterThan(top.Value) {
			top = r
		}
		if r.Value.LessThan(bottom.Value) {
			bottom = r
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s by %s across %d transactions in %d groups",
		capitalize(label), DimensionLabel(res.GroupBy), res.Overall.Count, res.Groups)
	if res.Groups > len(res.Rows) {
		fmt.Fprintf(&b, " (top %d shown)", len(res.Rows))
	}
	fmt.Fprintf(&b, ": highest %s (%s)", top.Group, FormatValue(plan.Metric, top.Value))
	if bottom.Group != top.Group {
		fmt.Fprintf(&b, ", lowest %s (%s)", bottom.Group, FormatValue(plan.Metric, bottom.Value))
	}
	b.WriteString(".")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
