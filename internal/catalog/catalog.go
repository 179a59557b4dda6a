// Package catalog holds the static vocabulary the query parser recognises:
// filter values per entity kind, time references, and the phrase table that
// maps grouping words ("age group", "states") to canonical dimensions.
package catalog

import (
	"sort"
	"strings"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// Kind is the family a vocabulary term belongs to.
type Kind string

const (
	KindCategory   Kind = "category"
	KindDevice     Kind = "device_type"
	KindNetwork    Kind = "network_type"
	KindRegion     Kind = "region"
	KindAgeGroup   Kind = "age_group"
	KindTimeWindow Kind = "time_window"
)

// Kinds lists vocabulary kinds in scan order.
var Kinds = []Kind{KindCategory, KindDevice, KindNetwork, KindRegion, KindAgeGroup, KindTimeWindow}

// Key returns the EntitySet key a term of this kind fills.
func (k Kind) Key() domain.EntityKey {
	switch k {
	case KindCategory:
		return domain.KeyCategory
	case KindDevice:
		return domain.KeyDeviceType
	case KindNetwork:
		return domain.KeyNetworkType
	case KindRegion:
		return domain.KeyRegion
	case KindAgeGroup:
		return domain.KeyAgeGroup
	case KindTimeWindow:
		return domain.KeyTimeWindow
	}
	return ""
}

// Dimension returns the grouping dimension over the same field, if any.
func (k Kind) Dimension() (domain.Dimension, bool) {
	switch k {
	case KindCategory:
		return domain.DimensionCategory, true
	case KindDevice:
		return domain.DimensionDeviceType, true
	case KindNetwork:
		return domain.DimensionNetworkType, true
	case KindRegion:
		return domain.DimensionState, true
	case KindAgeGroup:
		return domain.DimensionAgeGroup, true
	}
	return "", false
}

// Term is one recognisable value with the surface phrases that denote it.
// Phrases are stored as lower-case token sequences.
type Term struct {
	Kind      Kind
	Canonical string
	Phrases   [][]string
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	terms      []Term
	dimensions map[string]domain.Dimension
	// dimension phrases as token slices, longest first
	dimPhrases [][]string
}

var (
	categories = []string{
		"Food", "Entertainment", "Travel", "Shopping", "Utilities",
		"Healthcare", "Education", "Bills", "Downloads", "Other",
	}
	devices  = []string{"iOS", "Android", "Web"}
	networks = []string{"WiFi", "4G", "5G", "3G"}
	states   = []string{
		"Maharashtra", "Karnataka", "Delhi", "Tamil Nadu", "Telangana",
		"Gujarat", "Rajasthan", "Punjab", "West Bengal", "Uttar Pradesh",
		"Andhra Pradesh", "Haryana", "Madhya Pradesh", "Bihar", "Odisha",
	}
	ageGroups = []string{"13-18", "18-25", "25-35", "35-45", "45-55", "55+"}

	aliases = map[string][]string{
		"iOS":  {"iphone"},
		"WiFi": {"wi-fi", "wi fi"},
		"Food": {"dining"},
	}

	timeWindows = []struct {
		canonical string
		phrases   []string
	}{
		{"today", []string{"today"}},
		{"yesterday", []string{"yesterday"}},
		{"this_week", []string{"this week"}},
		{"this_month", []string{"this month"}},
		{"this_year", []string{"this year"}},
		{"last_week", []string{"last week", "past week"}},
		{"last_month", []string{"last month", "past month"}},
		{"morning", []string{"morning", "mornings"}},
		{"afternoon", []string{"afternoon", "afternoons"}},
		{"evening", []string{"evening", "evenings"}},
		{"night", []string{"night", "nights", "late night"}},
	}

	dimensionPhrases = map[string]domain.Dimension{
		"category":            domain.DimensionCategory,
		"categories":          domain.DimensionCategory,
		"merchant category":   domain.DimensionCategory,
		"merchant categories": domain.DimensionCategory,
		"device":              domain.DimensionDeviceType,
		"devices":             domain.DimensionDeviceType,
		"device type":         domain.DimensionDeviceType,
		"device types":        domain.DimensionDeviceType,
		"platform":            domain.DimensionDeviceType,
		"platforms":           domain.DimensionDeviceType,
		"network":             domain.DimensionNetworkType,
		"networks":            domain.DimensionNetworkType,
		"network type":        domain.DimensionNetworkType,
		"network types":       domain.DimensionNetworkType,
		"state":               domain.DimensionState,
		"states":              domain.DimensionState,
		"region":              domain.DimensionState,
		"regions":             domain.DimensionState,
		"age":                 domain.DimensionAgeGroup,
		"ages":                domain.DimensionAgeGroup,
		"age group":           domain.DimensionAgeGroup,
		"age groups":          domain.DimensionAgeGroup,
		"age bracket":         domain.DimensionAgeGroup,
		"transaction type":    domain.DimensionTransactionType,
		"transaction types":   domain.DimensionTransactionType,
		"payment type":        domain.DimensionTransactionType,
		"type":                domain.DimensionTransactionType,
		"types":               domain.DimensionTransactionType,
		"bank":                domain.DimensionBank,
		"banks":               domain.DimensionBank,
		"status":              domain.DimensionStatus,
		"statuses":            domain.DimensionStatus,
		"hour":                domain.DimensionHourOfDay,
		"hours":               domain.DimensionHourOfDay,
		"hour of day":         domain.DimensionHourOfDay,
		"time of day":         domain.DimensionHourOfDay,
		"day":                 domain.DimensionDayOfWeek,
		"days":                domain.DimensionDayOfWeek,
		"day of week":         domain.DimensionDayOfWeek,
		"weekday":             domain.DimensionDayOfWeek,
		"weekdays":            domain.DimensionDayOfWeek,
	}
)

// Default returns the catalog for the payments dataset.
func Default() *Catalog {
	c := &Catalog{dimensions: make(map[string]domain.Dimension, len(dimensionPhrases))}

	add := func(kind Kind, values []string) {
		for _, v := range values {
			phrases := [][]string{tokens(v)}
			for _, a := range aliases[v] {
				phrases = append(phrases, tokens(a))
			}
			c.terms = append(c.terms, Term{Kind: kind, Canonical: v, Phrases: phrases})
		}
	}
	add(KindCategory, categories)
	add(KindDevice, devices)
	add(KindNetwork, networks)
	add(KindRegion, states)
	add(KindAgeGroup, ageGroups)

	for _, tw := range timeWindows {
		t := Term{Kind: KindTimeWindow, Canonical: tw.canonical}
		for _, p := range tw.phrases {
			t.Phrases = append(t.Phrases, tokens(p))
		}
		c.terms = append(c.terms, t)
	}

	for phrase, dim := range dimensionPhrases {
		c.dimensions[phrase] = dim
		c.dimPhrases = append(c.dimPhrases, tokens(phrase))
	}
	sort.Slice(c.dimPhrases, func(i, j int) bool {
		if len(c.dimPhrases[i]) != len(c.dimPhrases[j]) {
			return len(c.dimPhrases[i]) > len(c.dimPhrases[j])
		}
		return strings.Join(c.dimPhrases[i], " ") < strings.Join(c.dimPhrases[j], " ")
	})

	return c
}

// Terms returns every vocabulary term in scan order.
func (c *Catalog) Terms() []Term {
	return c.terms
}

// Values returns the canonical values of one kind in catalog order.
func (c *Catalog) Values(kind Kind) []string {
	var out []string
	for _, t := range c.terms {
		if t.Kind == kind {
			out = append(out, t.Canonical)
		}
	}
	return out
}

// Dimension maps a grouping phrase ("age group", "states") to its canonical dimension.
func (c *Catalog) Dimension(phrase string) (domain.Dimension, bool) {
	d, ok := c.dimensions[strings.Join(tokens(phrase), " ")]
	return d, ok
}

// MatchDimension resolves the longest dimension phrase that is a prefix of words.
// It returns the dimension and the number of words consumed.
func (c *Catalog) MatchDimension(words []string) (domain.Dimension, int, bool) {
	for _, p := range c.dimPhrases {
		if hasPrefix(words, p) {
			return c.dimensions[strings.Join(p, " ")], len(p), true
		}
	}
	return "", 0, false
}

// MatchDimensionSuffix resolves the longest dimension phrase that ends words,
// as in "<age group> wise".
func (c *Catalog) MatchDimensionSuffix(words []string) (domain.Dimension, int, bool) {
	for _, p := range c.dimPhrases {
		if len(p) <= len(words) && hasPrefix(words[len(words)-len(p):], p) {
			return c.dimensions[strings.Join(p, " ")], len(p), true
		}
	}
	return "", 0, false
}

// Dimensions lists every canonical dimension with the phrases that denote it.
func (c *Catalog) Dimensions() map[domain.Dimension][]string {
	out := make(map[domain.Dimension][]string)
	for _, p := range c.dimPhrases {
		phrase := strings.Join(p, " ")
		d := c.dimensions[phrase]
		out[d] = append(out[d], phrase)
	}
	for d := range out {
		sort.Strings(out[d])
	}
	return out
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func hasPrefix(words, prefix []string) bool {
	if len(prefix) > len(words) {
		return false
	}
	for i := range prefix {
		if words[i] != prefix[i] {
			return false
		}
	}
	return true
}
