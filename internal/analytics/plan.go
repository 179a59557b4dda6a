// Package analytics compiles a resolved question into a query plan and
// aggregates transaction rows according to it.
package analytics

import (
	"fmt"
	"time"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// Plan is the deterministic aggregation a turn compiles to. It is derived
// per turn and never persisted.
type Plan struct {
	Intent  domain.Intent    `json:"intent"`
	Filters domain.EntitySet `json:"filters"`
	GroupBy domain.Dimension `json:"group_by,omitempty"`
	Metric  domain.Metric    `json:"metric"`
	TopN    int              `json:"top_n,omitempty"`
}

// PlanOption adjusts a plan after defaults are applied.
type PlanOption func(*Plan)

// WithTopN keeps only the n highest groups. n <= 0 disables ranking.
func WithTopN(n int) PlanOption {
	return func(p *Plan) {
		if n > 0 {
			p.TopN = n
		}
	}
}

// DefaultMetric is used when the question names none.
func DefaultMetric(intent domain.Intent) domain.Metric {
	if intent == domain.IntentRisk {
		return domain.MetricFraudRatio
	}
	return domain.MetricCount
}

// BuildPlan compiles intent and resolved entities into a plan.
//
// The grouping key is the explicit comparison dimension when present.
// Otherwise comparative questions group by device type (network type when a
// device is already fixed) and segmentation questions by age group.
func BuildPlan(intent domain.Intent, entities domain.EntitySet, opts ...PlanOption) Plan {
	p := Plan{
		Intent:  intent,
		Filters: entities.Filters(),
		GroupBy: entities.ComparisonDimension,
		Metric:  entities.Metric,
	}

	if p.Metric == "" {
		p.Metric = DefaultMetric(intent)
	}

	if p.GroupBy == "" {
		switch intent {
		case domain.IntentComparative:
			p.GroupBy = domain.DimensionDeviceType
			if entities.DeviceType != "" {
				p.GroupBy = domain.DimensionNetworkType
			}
		case domain.IntentSegmentation:
			p.GroupBy = domain.DimensionAgeGroup
		}
	}

	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// RowFilter compiles the plan's filters against now.
func (p Plan) RowFilter(now time.Time) (domain.RowFilter, error) {
	f := domain.RowFilter{
		Category:    p.Filters.Category,
		DeviceType:  p.Filters.DeviceType,
		NetworkType: p.Filters.NetworkType,
		Region:      p.Filters.Region,
		AgeGroup:    p.Filters.AgeGroup,
	}
	if p.Filters.TimeWindow != "" {
		from, to, hours, err := ResolveWindow(p.Filters.TimeWindow, now)
		if err != nil {
			return domain.RowFilter{}, fmt.Errorf("RowFilter: %w", err)
		}
		f.From, f.To, f.Hours = from, to, hours
	}
	return f, nil
}

// Ranked reports whether groups are sorted by value and truncated.
func (p Plan) Ranked() bool {
	return p.TopN > 0 && p.GroupBy != ""
}
