package domain

// EntitySet holds at most one resolved value per entity key. An empty
// field means the key is absent.
type EntitySet struct {
	Category            string    `json:"category,omitempty"`
	DeviceType          string    `json:"device_type,omitempty"`
	NetworkType         string    `json:"network_type,omitempty"`
	Region              string    `json:"region,omitempty"`
	AgeGroup            string    `json:"age_group,omitempty"`
	Metric              Metric    `json:"metric,omitempty"`
	ComparisonDimension Dimension `json:"comparison_dimension,omitempty"`
	TimeWindow          string    `json:"time_window,omitempty"`
}

// EntityKey names one slot of an EntitySet.
type EntityKey string

const (
	KeyCategory            EntityKey = "category"
	KeyDeviceType          EntityKey = "device_type"
	KeyNetworkType         EntityKey = "network_type"
	KeyRegion              EntityKey = "region"
	KeyAgeGroup            EntityKey = "age_group"
	KeyMetric              EntityKey = "metric"
	KeyComparisonDimension EntityKey = "comparison_dimension"
	KeyTimeWindow          EntityKey = "time_window"
)

// Overlay returns a copy of e in which every key present in top replaces
// the value in e. Keys absent from top are kept.
func (e EntitySet) Overlay(top EntitySet) EntitySet {
	out := e
	if top.Category != "" {
		out.Category = top.Category
	}
	if top.DeviceType != "" {
		out.DeviceType = top.DeviceType
	}
	if top.NetworkType != "" {
		out.NetworkType = top.NetworkType
	}
	if top.Region != "" {
		out.Region = top.Region
	}
	if top.AgeGroup != "" {
		out.AgeGroup = top.AgeGroup
	}
	if top.Metric != "" {
		out.Metric = top.Metric
	}
	if top.ComparisonDimension != "" {
		out.ComparisonDimension = top.ComparisonDimension
	}
	if top.TimeWindow != "" {
		out.TimeWindow = top.TimeWindow
	}
	return out
}

// Filters returns the subset of keys that constrain rows, i.e. everything
// except metric and comparison_dimension.
func (e EntitySet) Filters() EntitySet {
	e.Metric = ""
	e.ComparisonDimension = ""
	return e
}

// Get returns the value stored under key, or "" when absent.
func (e EntitySet) Get(key EntityKey) string {
	switch key {
	case KeyCategory:
		return e.Category
	case KeyDeviceType:
		return e.DeviceType
	case KeyNetworkType:
		return e.NetworkType
	case KeyRegion:
		return e.Region
	case KeyAgeGroup:
		return e.AgeGroup
	case KeyMetric:
		return string(e.Metric)
	case KeyComparisonDimension:
		return string(e.ComparisonDimension)
	case KeyTimeWindow:
		return e.TimeWindow
	}
	return ""
}

// Set stores value under key. Unknown keys are ignored.
func (e *EntitySet) Set(key EntityKey, value string) {
	switch key {
	case KeyCategory:
		e.Category = value
	case KeyDeviceType:
		e.DeviceType = value
	case KeyNetworkType:
		e.NetworkType = value
	case KeyRegion:
		e.Region = value
	case KeyAgeGroup:
		e.AgeGroup = value
	case KeyMetric:
		e.Metric = Metric(value)
	case KeyComparisonDimension:
		e.ComparisonDimension = Dimension(value)
	case KeyTimeWindow:
		e.TimeWindow = value
	}
}

// AllKeys is the fixed key space in a stable order.
var AllKeys = []EntityKey{
	KeyCategory, KeyDeviceType, KeyNetworkType, KeyRegion, KeyAgeGroup,
	KeyMetric, KeyComparisonDimension, KeyTimeWindow,
}

// Keys lists the keys that are present.
func (e EntitySet) Keys() []EntityKey {
	var keys []EntityKey
	for _, k := range AllKeys {
		if e.Get(k) != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsEmpty reports whether no key is present.
func (e EntitySet) IsEmpty() bool {
	return e == EntitySet{}
}
