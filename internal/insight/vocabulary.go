package insight

import (
	"github.com/dvloznov/txn-insights/internal/catalog"
	"github.com/dvloznov/txn-insights/internal/domain"
)

// Vocabulary lists what questions can refer to.
type Vocabulary struct {
	Categories  []string                      `json:"categories"`
	Devices     []string                      `json:"devices"`
	Networks    []string                      `json:"networks"`
	States      []string                      `json:"states"`
	AgeGroups   []string                      `json:"age_groups"`
	TimeWindows []string                      `json:"time_windows"`
	Dimensions  map[domain.Dimension][]string `json:"dimensions"`
	Intents     []domain.Intent               `json:"intent_types"`
}

// ExampleQuery is a sample question with the intent it classifies as.
type ExampleQuery struct {
	Query  string        `json:"query"`
	Intent domain.Intent `json:"intent"`
}

var examples = []ExampleQuery{
	{Query: "What's the average transaction amount for Food?", Intent: domain.IntentDescriptive},
	{Query: "Compare transaction amounts between iOS and Android users", Intent: domain.IntentComparative},
	{Query: "Show me transaction patterns by age group", Intent: domain.IntentSegmentation},
	{Query: "What's the fraud rate for Entertainment?", Intent: domain.IntentRisk},
	{Query: "Top 3 states by fraud rate", Intent: domain.IntentRisk},
	{Query: "How many transactions in Maharashtra this month?", Intent: domain.IntentDescriptive},
}

// Vocabulary returns the catalog the service parses questions with.
func (s *Service) Vocabulary() Vocabulary {
	return Vocabulary{
		Categories:  s.catalog.Values(catalog.KindCategory),
		Devices:     s.catalog.Values(catalog.KindDevice),
		Networks:    s.catalog.Values(catalog.KindNetwork),
		States:      s.catalog.Values(catalog.KindRegion),
		AgeGroups:   s.catalog.Values(catalog.KindAgeGroup),
		TimeWindows: s.catalog.Values(catalog.KindTimeWindow),
		Dimensions:  s.catalog.Dimensions(),
		Intents:     domain.Intents,
	}
}

// ExampleQueries returns sample questions for new users.
func (s *Service) ExampleQueries() []ExampleQuery {
	out := make([]ExampleQuery, len(examples))
	copy(out, examples)
	return out
}
