package ingest

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/catalog"
	"github.com/dvloznov/txn-insights/internal/domain"
)

// DefaultSyntheticDays is how far back generated timestamps reach.
const DefaultSyntheticDays = 90

const (
	minAmount = 100
	maxAmount = 50000
)

var (
	baseAmounts = map[string]float64{
		"Food": 500, "Entertainment": 2000, "Travel": 5000, "Shopping": 3000,
		"Utilities": 1500, "Healthcare": 4000, "Education": 8000, "Bills": 2000,
		"Downloads": 500, "Other": 2000,
	}
	fraudChance = map[string]float64{
		"Shopping": 0.08, "Downloads": 0.06, "Other": 0.05, "Entertainment": 0.04, "Travel": 0.03,
	}
	failureChance = map[string]float64{
		"5G": 0.01, "WiFi": 0.02, "4G": 0.03, "3G": 0.05,
	}
	transactionTypes = []string{"P2P", "P2M", "Bill Payment", "Recharge"}
	banks            = []string{"SBI", "HDFC", "ICICI", "Axis", "PNB", "Kotak", "IndusInd", "Yes Bank"}
)

// SyntheticOptions controls Generate.
type SyntheticOptions struct {
	Rows int
	Seed int64
	// End is the latest possible timestamp; zero means now.
	End  time.Time
	Days int
}

// Generate builds a reproducible dataset: the same options always yield the
// same rows. Amounts vary by category, fraud is likelier in some categories
// and failures on slower networks.
func Generate(opts SyntheticOptions) []domain.TransactionRecord {
	if opts.End.IsZero() {
		opts.End = time.Now().UTC()
	}
	if opts.Days <= 0 {
		opts.Days = DefaultSyntheticDays
	}

	c := catalog.Default()
	var (
		categories = c.Values(catalog.KindCategory)
		states     = c.Values(catalog.KindRegion)
		devices    = c.Values(catalog.KindDevice)
		networks   = c.Values(catalog.KindNetwork)
		ageGroups  = c.Values(catalog.KindAgeGroup)
	)

	r := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)^0x9e3779b97f4a7c15))
	pick := func(values []string) string { return values[r.IntN(len(values))] }

	start := opts.End.Add(-time.Duration(opts.Days) * 24 * time.Hour)
	span := opts.End.Sub(start)

	out := make([]domain.TransactionRecord, 0, opts.Rows)
	for i := range opts.Rows {
		category := pick(categories)
		network := pick(networks)

		base := baseAmounts[category]
		if base == 0 {
			base = 2000
		}
		amount := min(maxAmount, max(minAmount, base+r.NormFloat64()*base*0.3))

		fraud := fraudChance[category]
		if fraud == 0 {
			fraud = 0.02
		}
		failure := failureChance[network]
		if failure == 0 {
			failure = 0.02
		}

		status := domain.TxStatusSuccess
		switch {
		case r.Float64() < failure:
			status = domain.TxStatusFailed
		case r.Float64() < 0.05:
			status = domain.TxStatusPending
		}

		out = append(out, domain.TransactionRecord{
			ID:              fmt.Sprintf("TXN%010d", i+1),
			Timestamp:       start.Add(time.Duration(r.Int64N(int64(span)))).Truncate(time.Second),
			TransactionType: pick(transactionTypes),
			Category:        category,
			Amount:          decimal.NewFromFloat(amount).Round(2),
			Status:          status,
			AgeGroup:        pick(ageGroups),
			Region:          pick(states),
			Bank:            pick(banks),
			DeviceType:      pick(devices),
			NetworkType:     network,
			FraudFlag:       r.Float64() < fraud,
			MerchantID:      fmt.Sprintf("M%04d", 1000+r.IntN(9000)),
			Latitude:        8 + r.Float64()*27,
			Longitude:       68 + r.Float64()*29,
		})
	}
	return out
}
