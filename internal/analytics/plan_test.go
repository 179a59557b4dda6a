package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/txn-insights/internal/domain"
)

func TestBuildPlan(t *testing.T) {
	tests := []struct {
		name     string
		intent   domain.Intent
		entities domain.EntitySet
		opts     []PlanOption
		want     Plan
	}{
		{
			name:     "risk defaults to fraud ratio",
			intent:   domain.IntentRisk,
			entities: domain.EntitySet{ComparisonDimension: domain.DimensionState},
			want: Plan{
				Intent:  domain.IntentRisk,
				GroupBy: domain.DimensionState,
				Metric:  domain.MetricFraudRatio,
			},
		},
		{
			name:     "descriptive defaults to count and no grouping",
			intent:   domain.IntentDescriptive,
			entities: domain.EntitySet{Category: "Food"},
			want: Plan{
				Intent:  domain.IntentDescriptive,
				Filters: domain.EntitySet{Category: "Food"},
				Metric:  domain.MetricCount,
			},
		},
		{
			name:     "explicit metric kept",
			intent:   domain.IntentDescriptive,
			entities: domain.EntitySet{Category: "Food", Metric: domain.MetricMean},
			want: Plan{
				Intent:  domain.IntentDescriptive,
				Filters: domain.EntitySet{Category: "Food"},
				Metric:  domain.MetricMean,
			},
		},
		{
			name:   "comparative groups by device",
			intent: domain.IntentComparative,
			want: Plan{
				Intent:  domain.IntentComparative,
				GroupBy: domain.DimensionDeviceType,
				Metric:  domain.MetricCount,
			},
		},
		{
			name:     "comparative with fixed device groups by network",
			intent:   domain.IntentComparative,
			entities: domain.EntitySet{DeviceType: "iOS"},
			want: Plan{
				Intent:  domain.IntentComparative,
				Filters: domain.EntitySet{DeviceType: "iOS"},
				GroupBy: domain.DimensionNetworkType,
				Metric:  domain.MetricCount,
			},
		},
		{
			name:   "segmentation groups by age",
			intent: domain.IntentSegmentation,
			want: Plan{
				Intent:  domain.IntentSegmentation,
				GroupBy: domain.DimensionAgeGroup,
				Metric:  domain.MetricCount,
			},
		},
		{
			name:     "explicit dimension beats intent default",
			intent:   domain.IntentSegmentation,
			entities: domain.EntitySet{ComparisonDimension: domain.DimensionBank, TimeWindow: "today"},
			opts:     []PlanOption{WithTopN(3)},
			want: Plan{
				Intent:  domain.IntentSegmentation,
				Filters: domain.EntitySet{TimeWindow: "today"},
				GroupBy: domain.DimensionBank,
				Metric:  domain.MetricCount,
				TopN:    3,
			},
		},
		{
			name:   "non-positive top n ignored",
			intent: domain.IntentDescriptive,
			opts:   []PlanOption{WithTopN(0)},
			want: Plan{
				Intent: domain.IntentDescriptive,
				Metric: domain.MetricCount,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPlan(tt.intent, tt.entities, tt.opts...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildPlan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildPlan_Deterministic(t *testing.T) {
	entities := domain.EntitySet{Region: "Delhi", Metric: domain.MetricMedian, ComparisonDimension: domain.DimensionHourOfDay}
	first := BuildPlan(domain.IntentSegmentation, entities, WithTopN(5))
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, BuildPlan(domain.IntentSegmentation, entities, WithTopN(5))); diff != "" {
			t.Fatalf("plan changed between calls:\n%s", diff)
		}
	}
}

func TestResolveWindow(t *testing.T) {
	// a Wednesday
	now := time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		from, to time.Time
	}{
		{"today", day(3, 6), day(3, 7)},
		{"yesterday", day(3, 5), day(3, 6)},
		{"this_week", day(3, 4), day(3, 11)},
		{"last_week", day(2, 26), day(3, 4)},
		{"this_month", day(3, 1), day(4, 1)},
		{"last_month", day(2, 1), day(3, 1)},
		{"this_year", day(1, 1), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, hours, err := ResolveWindow(tt.name, now)
			if err != nil {
				t.Fatalf("ResolveWindow: %v", err)
			}
			if hours != nil {
				t.Errorf("unexpected hour range %+v", hours)
			}
			if !from.Equal(tt.from) || !to.Equal(tt.to) {
				t.Errorf("got [%s, %s), want [%s, %s)", from, to, tt.from, tt.to)
			}
		})
	}
}

func TestResolveWindow_Dayparts(t *testing.T) {
	_, _, hours, err := ResolveWindow("night", time.Now())
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	for _, h := range []int{21, 23, 0, 4} {
		if !hours.Contains(h) {
			t.Errorf("night should contain %02d:00", h)
		}
	}
	for _, h := range []int{5, 12, 20} {
		if hours.Contains(h) {
			t.Errorf("night should not contain %02d:00", h)
		}
	}
}

func TestResolveWindow_Unknown(t *testing.T) {
	if _, _, _, err := ResolveWindow("next_decade", time.Now()); err == nil {
		t.Error("expected error for unknown window")
	}
}
