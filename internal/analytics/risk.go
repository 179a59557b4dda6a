package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
)

var (
	fraudMedium   = decimal.RequireFromString("0.02")
	fraudHigh     = decimal.RequireFromString("0.05")
	failureMedium = decimal.RequireFromString("0.01")
	failureHigh   = decimal.RequireFromString("0.03")
)

// FraudRisk buckets a fraud ratio: below 2% low, up to 5% medium, above high.
func FraudRisk(ratio decimal.Decimal) domain.RiskLevel {
	return bucket(ratio, fraudMedium, fraudHigh)
}

// FailureRisk buckets a failure ratio: below 1% low, up to 3% medium, above high.
func FailureRisk(ratio decimal.Decimal) domain.RiskLevel {
	return bucket(ratio, failureMedium, failureHigh)
}

func bucket(ratio, medium, high decimal.Decimal) domain.RiskLevel {
	switch {
	case ratio.LessThan(medium):
		return domain.RiskLow
	case ratio.LessThanOrEqual(high):
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// riskOf tags a row by the ratio the plan is about; fraud unless the plan
// asks for failures.
func riskOf(metric domain.Metric, r Row) domain.RiskLevel {
	if metric == domain.MetricFailureRatio {
		return FailureRisk(r.FailureRatio)
	}
	return FraudRisk(r.FraudRatio)
}
