package domain

// Intent is the analytical purpose of a question. Exactly one per turn.
type Intent string

const (
	IntentDescriptive  Intent = "descriptive"
	IntentComparative  Intent = "comparative"
	IntentSegmentation Intent = "segmentation"
	IntentRisk         Intent = "risk"
)

// Intents lists every intent in classification priority order.
var Intents = []Intent{IntentRisk, IntentComparative, IntentSegmentation, IntentDescriptive}

// Metric is the aggregation computed per group.
type Metric string

const (
	MetricCount        Metric = "count"
	MetricMean         Metric = "mean"
	MetricSum          Metric = "sum"
	MetricMedian       Metric = "median"
	MetricFraudRatio   Metric = "fraud_ratio"
	MetricFailureRatio Metric = "failure_ratio"
)

// IsRatio reports whether the metric is a fraction of rows rather than an amount.
func (m Metric) IsRatio() bool {
	return m == MetricFraudRatio || m == MetricFailureRatio
}

// Dimension is a field results can be grouped by.
type Dimension string

const (
	DimensionCategory        Dimension = "merchant_category"
	DimensionDeviceType      Dimension = "device_type"
	DimensionNetworkType     Dimension = "network_type"
	DimensionState           Dimension = "state"
	DimensionAgeGroup        Dimension = "age_group"
	DimensionTransactionType Dimension = "transaction_type"
	DimensionBank            Dimension = "bank"
	DimensionStatus          Dimension = "status"
	DimensionHourOfDay       Dimension = "hour_of_day"
	DimensionDayOfWeek       Dimension = "day_of_week"
)

// RiskLevel is a qualitative bucket derived from a fraud or failure ratio.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)
