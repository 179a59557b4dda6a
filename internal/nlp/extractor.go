package nlp

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dvloznov/txn-insights/internal/catalog"
	"github.com/dvloznov/txn-insights/internal/domain"
)

// DefaultTopN is used when a question says "top" or "highest" without a number.
const DefaultTopN = 5

// Extraction is the partial understanding of a single question.
type Extraction struct {
	Entities domain.EntitySet `json:"entities"`
	// TopN is 0 unless the question asked for a ranking.
	TopN int `json:"top_n,omitempty"`
	// DimensionPhrase is the surface text that set ComparisonDimension.
	DimensionPhrase string `json:"dimension_phrase,omitempty"`
	// Unresolved holds grouping phrases whose word is not in the catalog.
	Unresolved []string `json:"unresolved,omitempty"`
	// Mentions lists the distinct catalog values seen per kind, in text order.
	Mentions map[catalog.Kind][]string `json:"-"`
	// Cleared lists filter keys the text turned into a grouping ("iOS vs
	// Android"). A follow-up must not inherit them.
	Cleared []domain.EntityKey `json:"cleared,omitempty"`

	words []string
	// token span [start, end) of the dimension phrase
	dimStart, dimEnd int
}

type dimensionPattern struct {
	name  string
	lead  phrase
	trail phrase
	// loose patterns often precede ordinary words, so misses are not reported
	loose bool
}

// Checked in order; the first that resolves sets the dimension.
var dimensionPatterns = []dimensionPattern{
	{name: "<D> wise", trail: newPhrase("wise")},
	{name: "by <D>", lead: newPhrase("by")},
	{name: "broken down by <D>", lead: newPhrase("broken down by")},
	{name: "for each <D>", lead: newPhrase("for each")},
	{name: "per <D>", lead: newPhrase("per")},
	{name: "each <D>", lead: newPhrase("each")},
	{name: "across <D>", lead: newPhrase("across"), loose: true},
	{name: "which <D>", lead: newPhrase("which"), loose: true},
}

var metricRules = concat(
	rules(domain.MetricFraudRatio, "fraud rate", "fraud rates", "fraud ratio", "fraud percentage"),
	rules(domain.MetricFailureRatio, "failure rate", "failure rates", "failure ratio", "decline rate"),
	rules(domain.MetricMean, "average", "mean", "avg"),
	rules(domain.MetricMedian, "median"),
	rules(domain.MetricSum, "total", "sum"),
	rules(domain.MetricCount, "count", "how many", "number of"),
	rules(domain.MetricFraudRatio, "fraud", "frauds", "fraudulent"),
	rules(domain.MetricFailureRatio, "failure", "failures", "failed"),
)

var rankingWords = []string{"highest", "worst", "riskiest", "hotspot", "hotspots"}

var comparisonCues = []phrase{
	newPhrase("vs"), newPhrase("versus"), newPhrase("compare"), newPhrase("compared"),
	newPhrase("comparison"), newPhrase("between"), newPhrase("difference"),
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// optional determiners skipped between a lead word and the dimension
var determiners = map[string]bool{"the": true, "their": true, "sender": true}

// rankingWindow is how many qualifier words ("fraud", "risky") may sit
// between "top N" and the dimension it ranks.
const rankingWindow = 3

// words that end the qualifier run after "top N"
var rankingStops = map[string]bool{
	"in": true, "for": true, "on": true, "from": true, "during": true,
	"with": true, "by": true, "per": true, "of": true,
}

// Extractor finds catalog values, a grouping dimension, a metric and a ranking
// request in free text. It is stateless and safe for concurrent use.
type Extractor struct {
	catalog *catalog.Catalog
}

// NewExtractor returns an extractor over the given vocabulary.
func NewExtractor(c *catalog.Catalog) *Extractor {
	return &Extractor{catalog: c}
}

// Extract never fails; text it cannot understand yields fewer entities.
func (e *Extractor) Extract(text string, intent domain.Intent) Extraction {
	words := Tokenize(text)
	ext := Extraction{words: words}

	e.scanVocabulary(words, &ext)
	e.scanDimension(words, &ext)

	if r, ok := firstMatch(metricRules, words); ok {
		ext.Entities.Metric = r.result
	}

	n, from, after := topN(words)
	ext.TopN = n
	if n > 0 && after >= 0 && ext.Entities.ComparisonDimension == "" {
		e.rankedDimension(words, from, after, &ext)
	}

	if ext.Entities.ComparisonDimension == "" && (intent == domain.IntentComparative || hasAny(words, comparisonCues)) {
		e.compareMentions(&ext)
	}

	return ext
}

type hit struct {
	start, width int
	value        string
}

// scanVocabulary fills filter keys. Within one kind the match starting
// latest wins; on equal start the longer phrase wins.
func (e *Extractor) scanVocabulary(words []string, ext *Extraction) {
	hits := make(map[catalog.Kind][]hit)
	for _, term := range e.catalog.Terms() {
		for _, p := range term.Phrases {
			for _, i := range phrase(p).index(words) {
				hits[term.Kind] = append(hits[term.Kind], hit{start: i, width: len(p), value: term.Canonical})
			}
		}
	}

	ext.Mentions = make(map[catalog.Kind][]string, len(hits))
	for kind, hs := range hits {
		sort.SliceStable(hs, func(i, j int) bool {
			if hs[i].start != hs[j].start {
				return hs[i].start < hs[j].start
			}
			return hs[i].width < hs[j].width
		})
		ext.Entities.Set(kind.Key(), hs[len(hs)-1].value)

		seen := make(map[string]bool)
		for _, h := range hs {
			if !seen[h.value] {
				seen[h.value] = true
				ext.Mentions[kind] = append(ext.Mentions[kind], h.value)
			}
		}
	}
}

func (e *Extractor) scanDimension(words []string, ext *Extraction) {
	for _, p := range dimensionPatterns {
		if len(p.trail) > 0 {
			for _, i := range p.trail.index(words) {
				if dim, width, ok := e.catalog.MatchDimensionSuffix(words[:i]); ok {
					ext.setDimension(dim, strings.Join(words[i-width:i+len(p.trail)], " "), i-width, i+len(p.trail))
					return
				}
				if i > 0 {
					ext.Unresolved = append(ext.Unresolved, words[i-1]+" "+p.trail.String())
				}
			}
			continue
		}

		for _, i := range p.lead.index(words) {
			after := i + len(p.lead)
			start := skipDeterminers(words, after)
			if dim, width, ok := e.catalog.MatchDimension(words[start:]); ok {
				ext.setDimension(dim, strings.Join(words[i:start+width], " "), i, start+width)
				return
			}
			if start < len(words) && !p.loose {
				ext.Unresolved = append(ext.Unresolved, p.lead.String()+" "+words[start])
			}
		}
	}
}

// rankedDimension finds the dimension a "top N" ranks, skipping up to
// rankingWindow qualifier words: "top 3 fraud categories".
func (e *Extractor) rankedDimension(words []string, from, after int, ext *Extraction) {
	start := after
	for skipped := 0; skipped <= rankingWindow; skipped++ {
		start = skipDeterminers(words, start)
		if start >= len(words) {
			return
		}
		if dim, width, ok := e.catalog.MatchDimension(words[start:]); ok {
			ext.setDimension(dim, strings.Join(words[from:start+width], " "), from, start+width)
			return
		}
		if rankingStops[words[start]] {
			return
		}
		start++
	}
}

// compareMentions turns "iOS vs Android" into a grouping over device_type.
func (e *Extractor) compareMentions(ext *Extraction) {
	for _, kind := range catalog.Kinds {
		values := ext.Mentions[kind]
		if len(values) < 2 {
			continue
		}
		dim, ok := kind.Dimension()
		if !ok {
			continue
		}
		ext.Entities.Set(kind.Key(), "")
		ext.Cleared = append(ext.Cleared, kind.Key())
		ext.Entities.ComparisonDimension = dim
		ext.DimensionPhrase = strings.Join(values, " vs ")
		return
	}
}

func (ext *Extraction) setDimension(dim domain.Dimension, surface string, start, end int) {
	ext.Entities.ComparisonDimension = dim
	ext.DimensionPhrase = surface
	ext.dimStart, ext.dimEnd = start, end
}

// topN returns the requested ranking size and the token span of the ranking
// words. The span is -1, -1 when the ranking came from a bare adjective.
func topN(words []string) (n, from, after int) {
	for i, w := range words {
		if rest, ok := strings.CutPrefix(w, "top-"); ok {
			if n := parseCount(rest); n > 0 {
				return n, i, i + 1
			}
		}
		if w != "top" {
			continue
		}
		if i+1 < len(words) {
			if n := parseCount(words[i+1]); n > 0 {
				return n, i, i + 2
			}
		}
		return DefaultTopN, i, i + 1
	}
	for _, w := range words {
		for _, r := range rankingWords {
			if w == r {
				return DefaultTopN, -1, -1
			}
		}
	}
	return 0, -1, -1
}

func parseCount(s string) int {
	if n, ok := numberWords[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func skipDeterminers(words []string, i int) int {
	for i < len(words) && determiners[words[i]] {
		i++
	}
	return i
}

func hasAny(words []string, phrases []phrase) bool {
	for _, p := range phrases {
		if p.in(words) {
			return true
		}
	}
	return false
}

func concat[T any](groups ...[]rule[T]) []rule[T] {
	var out []rule[T]
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
