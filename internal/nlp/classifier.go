package nlp

import "github.com/dvloznov/txn-insights/internal/domain"

// Classification is the outcome of intent classification.
type Classification struct {
	Intent domain.Intent `json:"intent"`
	// Matched is false when no keyword fired and Intent is the fallback.
	Matched bool   `json:"matched"`
	Keyword string `json:"keyword,omitempty"`
}

var intentKeywords = map[domain.Intent][]string{
	domain.IntentRisk: {
		"fraud", "fraudulent", "frauds", "risk", "risky", "failure", "failures", "failed",
		"flagged", "suspicious", "anomaly", "anomalies", "unusual",
	},
	domain.IntentComparative: {
		"compare", "compared", "comparison", "vs", "versus", "difference", "between",
		"better", "worse", "more than", "less than",
	},
	domain.IntentSegmentation: {
		"by", "breakdown", "broken down", "segment", "segments", "segmentation",
		"group", "groups", "demographic", "demographics", "wise", "per", "each",
	},
	domain.IntentDescriptive: {
		"average", "mean", "total", "sum", "count", "median", "how much", "how many",
		"highest", "lowest", "trend", "distribution",
	},
}

// Classifier maps text to an intent by keyword priority:
// risk, then comparative, then segmentation, then descriptive.
type Classifier struct {
	rules []rule[domain.Intent]
}

// NewClassifier builds the priority-ordered keyword table.
func NewClassifier() *Classifier {
	c := &Classifier{}
	for _, intent := range domain.Intents {
		c.rules = append(c.rules, rules(intent, intentKeywords[intent]...)...)
	}
	return c
}

// Classify never fails; text without any keyword is descriptive.
func (c *Classifier) Classify(text string) Classification {
	return c.classifyTokens(Tokenize(text))
}

func (c *Classifier) classifyTokens(words []string) Classification {
	if r, ok := firstMatch(c.rules, words); ok {
		return Classification{Intent: r.result, Matched: true, Keyword: r.phrase.String()}
	}
	return Classification{Intent: domain.IntentDescriptive}
}
