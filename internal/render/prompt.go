package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/txn-insights/internal/analytics"
)

const promptHistoryTurns = 3

// BuildPrompt assembles the instructions and data a language model needs to
// explain one turn. Only the structured result is given as data, so the
// model cannot invent figures that were not computed.
func BuildPrompt(in Input) (string, error) {
	result, err := json.MarshalIndent(promptResult(in.Result), "", "  ")
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: marshal result: %w", err)
	}
	insights, err := json.Marshal(in.Insights)
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: marshal insights: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a financial data analyst. Based on the analysis results below, ")
	b.WriteString("give a clear, concise and actionable answer to the user's question.\n\n")

	if turns := in.History; len(turns) > 0 {
		b.WriteString("Earlier questions in this conversation:\n")
		for _, t := range turns[max(0, len(turns)-promptHistoryTurns):] {
			b.WriteString("- " + t.RawQuery + "\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User question: %s\n", in.Query)
	fmt.Fprintf(&b, "Intent: %s\n", in.Intent)
	if keys := in.Entities.Keys(); len(keys) > 0 {
		b.WriteString("Resolved context:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  - %s: %s\n", k, in.Entities.Get(k))
		}
	}
	fmt.Fprintf(&b, "Summary: %s\n", in.Result.Summary)
	fmt.Fprintf(&b, "Key insights: %s\n", insights)
	fmt.Fprintf(&b, "Detailed analysis:\n%s\n\n", result)

	b.WriteString("Rules:\n")
	b.WriteString("- Answer the question directly in the first sentence.\n")
	b.WriteString("- Use only the figures given above. Do not estimate or invent numbers.\n")
	b.WriteString("- Add supporting statistics and one recommendation based on the data.\n")
	b.WriteString("- Keep it short and readable for non-technical stakeholders.\n")
	b.WriteString("- Amounts are in Indian rupees (₹). Ratios are fractions of transactions.\n")
	return b.String(), nil
}

type promptRow struct {
	Group     string `json:"group,omitempty"`
	Count     int64  `json:"count"`
	Value     string `json:"value"`
	Mean      string `json:"mean_amount"`
	FraudRate string `json:"fraud_rate"`
	RiskLevel string `json:"risk_level,omitempty"`
}

type promptPayload struct {
	GroupBy string      `json:"group_by,omitempty"`
	Metric  string      `json:"metric"`
	Groups  int         `json:"groups"`
	Overall promptRow   `json:"overall"`
	Rows    []promptRow `json:"rows,omitempty"`
}

func promptResult(res analytics.Result) promptPayload {
	conv := func(r analytics.Row) promptRow {
		return promptRow{
			Group:     r.Group,
			Count:     r.Count,
			Value:     analytics.FormatValue(res.Metric, r.Value),
			Mean:      r.Mean.StringFixed(2),
			FraudRate: r.FraudRatio.StringFixed(4),
			RiskLevel: string(r.RiskLevel),
		}
	}

	p := promptPayload{
		GroupBy: string(res.GroupBy),
		Metric:  string(res.Metric),
		Groups:  res.Groups,
		Overall: conv(res.Overall),
	}
	if res.GroupBy != "" {
		for _, r := range limit(res.Rows) {
			p.Rows = append(p.Rows, conv(r))
		}
	}
	return p
}

// cleanModelText strips Markdown code fences a model sometimes wraps its
// answer in.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = strings.TrimSpace(s[idx+1:])
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
