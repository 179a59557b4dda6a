package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/analytics"
	"github.com/dvloznov/txn-insights/internal/domain"
)

type mockCompleter struct {
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	prompts      []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.CompleteFunc(ctx, prompt)
}

type mockRenderer struct {
	RenderFunc func(ctx context.Context, in Input) (string, error)
}

func (m *mockRenderer) Render(ctx context.Context, in Input) (string, error) {
	return m.RenderFunc(ctx, in)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func riskInput() Input {
	delhi := analytics.Row{Group: "Delhi", Count: 40, FraudCount: 4, FraudRatio: dec("0.1"), Value: dec("0.1"), Mean: dec("500"), RiskLevel: domain.RiskHigh}
	goa := analytics.Row{Group: "Goa", Count: 80, FraudCount: 1, FraudRatio: dec("0.0125"), Value: dec("0.0125"), Mean: dec("250"), RiskLevel: domain.RiskLow}
	plan := analytics.Plan{Intent: domain.IntentRisk, GroupBy: domain.DimensionState, Metric: domain.MetricFraudRatio}
	res := analytics.Result{
		GroupBy: domain.DimensionState,
		Metric:  domain.MetricFraudRatio,
		Rows:    []analytics.Row{delhi, goa},
		Overall: analytics.Row{Count: 120, FraudCount: 5, FraudRatio: dec("0.041667"), Value: dec("0.041667")},
		Groups:  2,
		Summary: "Fraud rate by state across 120 transactions in 2 groups.",
	}
	return Input{
		Query:    "fraud rate by state",
		Intent:   domain.IntentRisk,
		Entities: domain.EntitySet{Metric: domain.MetricFraudRatio, ComparisonDimension: domain.DimensionState},
		Plan:     plan,
		Result:   res,
		History:  []domain.ConversationTurn{{RawQuery: "how many transactions in Delhi"}},
	}
}

func TestInsights(t *testing.T) {
	in := riskInput()

	got := Insights(in.Plan, in.Result)

	want := []string{
		"120 transactions matched the question.",
		"Delhi has the highest fraud rate at 10.00%.",
		"Goa has the lowest fraud rate at 1.25%.",
		"Overall fraud rate is 4.17%, which is medium risk.",
		"High risk: Delhi.",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Insights =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestInsights_NoData(t *testing.T) {
	res := analytics.Result{NoData: true, Summary: "No transactions match the selected filters."}

	got := Insights(analytics.Plan{}, res)

	if len(got) != 1 || got[0] != res.Summary {
		t.Errorf("Insights = %v, want only the summary", got)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name  string
		count int64
		rows  int
		want  float64
	}{
		{"large grouped", 500, 3, 0.95},
		{"large single", 500, 1, 0.9},
		{"medium", 50, 1, 0.8},
		{"small sample", 5, 1, 0.6},
		{"no data", 0, 0, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analytics.Result{Overall: analytics.Row{Count: tt.count}, Rows: make([]analytics.Row, tt.rows)}
			if got := Confidence(res); got != tt.want {
				t.Errorf("Confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplate_PerIntent(t *testing.T) {
	in := riskInput()

	tests := []struct {
		name   string
		intent domain.Intent
		want   []string
	}{
		{"risk", domain.IntentRisk, []string{"**Risk Analysis Summary**", "- **Risk level:** MEDIUM", "Delhi: 10.00%", "**Recommendation:** Monitor"}},
		{"comparative", domain.IntentComparative, []string{"**State Comparison**", "- **Goa:** fraud rate = 1.25%; Transactions = 80"}},
		{"segmentation", domain.IntentSegmentation, []string{"**User Segmentation by State**", "- Delhi: 40 transactions, ₹500.00 avg value"}},
		{"descriptive", domain.IntentDescriptive, []string{"**Descriptive Summary**", "- **Total transactions analyzed:** 120"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := in
			in.Intent = tt.intent
			in.Plan.Intent = tt.intent

			got, err := NewTemplate().Render(context.Background(), in)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestTemplate_NoDataUsesSummary(t *testing.T) {
	in := Input{Intent: domain.IntentRisk, Result: analytics.Result{NoData: true, Summary: "No transactions match the selected filters."}}

	got, _ := NewTemplate().Render(context.Background(), in)

	if got != in.Result.Summary {
		t.Errorf("Render = %q, want %q", got, in.Result.Summary)
	}
}

func TestBuildPrompt(t *testing.T) {
	in := riskInput()
	in.Insights = Insights(in.Plan, in.Result)

	got, err := BuildPrompt(in)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	for _, want := range []string{
		"User question: fraud rate by state",
		"Intent: risk",
		"  - comparison_dimension: state",
		"- how many transactions in Delhi",
		`"group": "Delhi"`,
		"Use only the figures given above",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestLLM_Render(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		replyErr error
		want     string
		wantErr  bool
	}{
		{name: "plain text", reply: "Delhi is the riskiest state.", want: "Delhi is the riskiest state."},
		{name: "fenced", reply: "```markdown\nDelhi is the riskiest state.\n```", want: "Delhi is the riskiest state."},
		{name: "empty reply", reply: "  ", wantErr: true},
		{name: "api error", replyErr: errors.New("quota exceeded"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockCompleter{CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
				return tt.reply, tt.replyErr
			}}

			got, err := NewLLM("test", c).Render(context.Background(), riskInput())

			if tt.wantErr {
				if !errors.Is(err, domain.ErrRendererUnavailable) {
					t.Errorf("err = %v, want ErrRendererUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
			if len(c.prompts) != 1 || !strings.Contains(c.prompts[0], "fraud rate by state") {
				t.Errorf("unexpected prompts %v", c.prompts)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	in := riskInput()
	want, _ := NewTemplate().Render(context.Background(), in)

	t.Run("primary succeeds", func(t *testing.T) {
		f := NewFallback("mock", &mockRenderer{RenderFunc: func(ctx context.Context, in Input) (string, error) {
			return "model text", nil
		}}, 0, zerolog.Nop())

		got, err := f.Render(context.Background(), in)
		if err != nil || got != "model text" {
			t.Errorf("Render = %q, %v", got, err)
		}
	})

	t.Run("primary fails", func(t *testing.T) {
		f := NewFallback("mock", &mockRenderer{RenderFunc: func(ctx context.Context, in Input) (string, error) {
			return "", domain.ErrRendererUnavailable
		}}, 0, zerolog.Nop())

		got, err := f.Render(context.Background(), in)
		if err != nil {
			t.Fatalf("Render returned error %v", err)
		}
		if got != want {
			t.Errorf("Render = %q, want template output", got)
		}
	})

	t.Run("timeout is applied", func(t *testing.T) {
		f := NewFallback("mock", &mockRenderer{RenderFunc: func(ctx context.Context, in Input) (string, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("primary called without a deadline")
			}
			<-ctx.Done()
			return "", ctx.Err()
		}}, 1, zerolog.Nop())

		got, err := f.Render(context.Background(), in)
		if err != nil || got != want {
			t.Errorf("Render = %q, %v; want template output", got, err)
		}
	})
}

func TestNew(t *testing.T) {
	r, err := New(context.Background(), Options{Kind: KindTemplate}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.(*Template); !ok {
		t.Errorf("New(template) = %T, want *Template", r)
	}

	if _, err := New(context.Background(), Options{Kind: KindOpenAI}, zerolog.Nop()); err == nil {
		t.Error("expected an error for openai without a key")
	}
	if _, err := New(context.Background(), Options{Kind: "carrier-pigeon"}, zerolog.Nop()); err == nil {
		t.Error("expected an error for an unknown renderer")
	}
}
