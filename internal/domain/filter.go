package domain

import (
	"strings"
	"time"
)

// HourRange selects hours of the day in [From, To). It wraps past midnight
// when From > To, so {21, 5} means 21:00 to 04:59.
type HourRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether hour falls in the range.
func (h HourRange) Contains(hour int) bool {
	if h.From <= h.To {
		return hour >= h.From && hour < h.To
	}
	return hour >= h.From || hour < h.To
}

// RowFilter is the conjunction of equality and time constraints a row must
// satisfy. Zero fields place no constraint.
type RowFilter struct {
	Category    string     `json:"category,omitempty"`
	DeviceType  string     `json:"device_type,omitempty"`
	NetworkType string     `json:"network_type,omitempty"`
	Region      string     `json:"region,omitempty"`
	AgeGroup    string     `json:"age_group,omitempty"`
	From        time.Time  `json:"from,omitzero"`
	To          time.Time  `json:"to,omitzero"`
	Hours       *HourRange `json:"hours,omitempty"`
}

// Match reports whether r satisfies every present constraint.
func (f RowFilter) Match(r TransactionRecord) bool {
	if !eq(f.Category, r.Category) ||
		!eq(f.DeviceType, r.DeviceType) ||
		!eq(f.NetworkType, r.NetworkType) ||
		!eq(f.Region, r.Region) ||
		!eq(f.AgeGroup, r.AgeGroup) {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.Timestamp.Before(f.To) {
		return false
	}
	if f.Hours != nil && !f.Hours.Contains(r.Timestamp.Hour()) {
		return false
	}
	return true
}

func eq(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}
