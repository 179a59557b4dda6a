package analytics

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
)

const (
	// UnknownGroup labels rows whose grouping field is empty.
	UnknownGroup = "Unknown"

	ratioPlaces  = 6
	amountPlaces = 2
	ctxCheck     = 4096
)

// Row is the aggregate of one group, or of all filtered rows.
type Row struct {
	Group        string           `json:"group,omitempty"`
	Count        int64            `json:"count"`
	Total        decimal.Decimal  `json:"total"`
	Mean         decimal.Decimal  `json:"mean"`
	Median       decimal.Decimal  `json:"median"`
	FraudCount   int64            `json:"fraud_count"`
	FraudRatio   decimal.Decimal  `json:"fraud_ratio"`
	FailedCount  int64            `json:"failed_count"`
	FailureRatio decimal.Decimal  `json:"failure_ratio"`
	Value        decimal.Decimal  `json:"value"`
	RiskLevel    domain.RiskLevel `json:"risk_level,omitempty"`
}

// Result is the structured answer to a plan.
type Result struct {
	GroupBy domain.Dimension `json:"group_by,omitempty"`
	Metric  domain.Metric    `json:"metric"`
	Rows    []Row            `json:"rows"`
	Overall Row              `json:"overall"`
	// Groups is the number of groups before top-N truncation.
	Groups  int    `json:"groups"`
	NoData  bool   `json:"no_data"`
	Summary string `json:"summary"`
}

// Execute aggregates rows according to plan. Time windows are resolved
// against now. An empty filtered set is a NoData result, not an error.
func Execute(ctx context.Context, plan Plan, rows iter.Seq2[domain.TransactionRecord, error], now time.Time) (Result, error) {
	filter, err := plan.RowFilter(now)
	if err != nil {
		return Result{}, fmt.Errorf("Execute: compiling filters: %w", err)
	}

	overall := &accumulator{}
	groups := make(map[string]*accumulator)

	seen := 0
	for rec, err := range rows {
		if err != nil {
			return Result{}, fmt.Errorf("Execute: reading rows: %w", err)
		}
		seen++
		if seen%ctxCheck == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("Execute: %w", err)
			}
		}
		if !filter.Match(rec) {
			continue
		}

		overall.add(rec)
		if plan.GroupBy != "" {
			key := GroupKey(plan.GroupBy, rec)
			acc, ok := groups[key]
			if !ok {
				acc = &accumulator{}
				groups[key] = acc
			}
			acc.add(rec)
		}
	}

	res := Result{GroupBy: plan.GroupBy, Metric: plan.Metric, Rows: []Row{}}
	if overall.count == 0 {
		res.NoData = true
		res.Overall = zeroRow()
		res.Summary = Summarize(plan, res)
		return res, nil
	}

	tag := plan.Intent == domain.IntentRisk
	res.Overall = overall.row("", plan.Metric, tag)

	if plan.GroupBy == "" {
		res.Rows = append(res.Rows, res.Overall)
		res.Groups = 1
	} else {
		for key, acc := range groups {
			res.Rows = append(res.Rows, acc.row(key, plan.Metric, tag))
		}
		res.Groups = len(res.Rows)
		res.Rows = order(res.Rows, plan)
	}

	res.Summary = Summarize(plan, res)
	return res, nil
}

// order sorts groups by name, or by value descending with name as the
// tie-break when the plan is ranked, then truncates to TopN.
func order(rows []Row, plan Plan) []Row {
	sort.Slice(rows, func(i, j int) bool {
		if plan.Ranked() {
			if c := rows[i].Value.Cmp(rows[j].Value); c != 0 {
				return c > 0
			}
		}
		return rows[i].Group < rows[j].Group
	})
	if plan.Ranked() && len(rows) > plan.TopN {
		rows = rows[:plan.TopN]
	}
	return rows
}

// GroupKey returns the value of dimension d for rec.
func GroupKey(d domain.Dimension, rec domain.TransactionRecord) string {
	var v string
	switch d {
	case domain.DimensionCategory:
		v = rec.Category
	case domain.DimensionDeviceType:
		v = rec.DeviceType
	case domain.DimensionNetworkType:
		v = rec.NetworkType
	case domain.DimensionState:
		v = rec.Region
	case domain.DimensionAgeGroup:
		v = rec.AgeGroup
	case domain.DimensionTransactionType:
		v = rec.TransactionType
	case domain.DimensionBank:
		v = rec.Bank
	case domain.DimensionStatus:
		v = string(rec.Status)
	case domain.DimensionHourOfDay:
		if rec.Timestamp.IsZero() {
			return UnknownGroup
		}
		return fmt.Sprintf("%02d", rec.Timestamp.Hour())
	case domain.DimensionDayOfWeek:
		if rec.Timestamp.IsZero() {
			return UnknownGroup
		}
		return rec.Timestamp.Weekday().String()
	}
	if strings.TrimSpace(v) == "" {
		return UnknownGroup
	}
	return v
}

type accumulator struct {
	count   int64
	total   decimal.Decimal
	amounts []decimal.Decimal
	fraud   int64
	failed  int64
}

func (a *accumulator) add(rec domain.TransactionRecord) {
	a.count++
	a.total = a.total.Add(rec.Amount)
	a.amounts = append(a.amounts, rec.Amount)
	if rec.FraudFlag {
		a.fraud++
	}
	if rec.Failed() {
		a.failed++
	}
}

func (a *accumulator) row(group string, metric domain.Metric, tag bool) Row {
	n := decimal.NewFromInt(a.count)
	r := Row{
		Group:        group,
		Count:        a.count,
		Total:        a.total,
		Mean:         a.total.DivRound(n, amountPlaces),
		Median:       median(a.amounts),
		FraudCount:   a.fraud,
		FraudRatio:   decimal.NewFromInt(a.fraud).DivRound(n, ratioPlaces),
		FailedCount:  a.failed,
		FailureRatio: decimal.NewFromInt(a.failed).DivRound(n, ratioPlaces),
	}
	r.Value = r.valueOf(metric)
	if tag {
		r.RiskLevel = riskOf(metric, r)
	}
	return r
}

func (r Row) valueOf(metric domain.Metric) decimal.Decimal {
	switch metric {
	case domain.MetricMean:
		return r.Mean
	case domain.MetricSum:
		return r.Total
	case domain.MetricMedian:
		return r.Median
	case domain.MetricFraudRatio:
		return r.FraudRatio
	case domain.MetricFailureRatio:
		return r.FailureRatio
	default:
		return decimal.NewFromInt(r.Count)
	}
}

func median(amounts []decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), amounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).DivRound(decimal.NewFromInt(2), amountPlaces)
}

func zeroRow() Row {
	return Row{
		Total:        decimal.Zero,
		Mean:         decimal.Zero,
		Median:       decimal.Zero,
		FraudRatio:   decimal.Zero,
		FailureRatio: decimal.Zero,
		Value:        decimal.Zero,
	}
}
