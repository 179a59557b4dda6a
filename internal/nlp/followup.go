package nlp

import "github.com/dvloznov/txn-insights/internal/domain"

// CueDimensionOnly is reported when a bare grouping phrase ("by state?")
// marked the turn as a follow-up.
const CueDimensionOnly = "<dimension only>"

var followupCues = []phrase{
	newPhrase("how about"),
	newPhrase("what about"),
	newPhrase("compare with"),
	newPhrase("compared to"),
	newPhrase("vs"),
	newPhrase("versus"),
	newPhrase("what else"),
	newPhrase("any other"),
	newPhrase("break it down"),
	newPhrase("more details"),
	newPhrase("same for"),
	newPhrase("and for"),
}

// words that may surround a bare grouping phrase without adding meaning
var fillerWords = map[string]bool{
	"and": true, "now": true, "then": true, "the": true, "show": true, "me": true,
	"it": true, "please": true, "just": true, "ok": true, "okay": true, "so": true,
	"also": true, "instead": true, "same": true, "but": true, "can": true, "you": true,
	"what": true, "whats": true, "is": true, "are": true, "a": true, "an": true,
	"split": true, "break": true, "broken": true, "down": true, "again": true,
	"that": true, "do": true, "of": true, "on": true, "with": true,
}

// Resolution is the entity set and intent a turn is executed with.
type Resolution struct {
	Intent   domain.Intent    `json:"intent"`
	Entities domain.EntitySet `json:"entities"`
	FollowUp bool             `json:"follow_up"`
	Cue      string           `json:"cue,omitempty"`
	// TopN is the ranking size, 0 when the turn is not a ranking.
	TopN int `json:"top_n,omitempty"`
}

// Resolver decides whether a turn continues the previous one and merges
// entities accordingly.
type Resolver struct {
	cues []phrase
}

// NewResolver returns a resolver with the standard cue library.
func NewResolver() *Resolver {
	return &Resolver{cues: followupCues}
}

// Resolve merges a fresh extraction with the session's prior state.
//
// A turn is a follow-up when a cue matches and the session already has a
// turn. Follow-ups start from the session's resolved entities and overlay
// every key the new text states. Other turns use the fresh entities as is.
// A follow-up whose text carries no intent keyword keeps the prior intent.
// Keys the text turned into a grouping are dropped rather than inherited,
// and a follow-up that keeps the prior grouping keeps its ranking size too.
func (r *Resolver) Resolve(text string, ext Extraction, cls Classification, prior domain.Session) Resolution {
	res := Resolution{Intent: cls.Intent, Entities: ext.Entities, TopN: ext.TopN}

	last, ok := prior.LastTurn()
	if !ok {
		return res
	}

	cue, found := r.cue(text, ext)
	if !found {
		return res
	}

	res.FollowUp = true
	res.Cue = cue
	res.Entities = prior.Resolved.Overlay(ext.Entities)
	for _, key := range ext.Cleared {
		res.Entities.Set(key, "")
	}
	if res.TopN == 0 && ext.Entities.ComparisonDimension == "" &&
		res.Entities.ComparisonDimension == last.Entities.ComparisonDimension {
		res.TopN = last.TopN
	}
	if !cls.Matched {
		res.Intent = last.Intent
	}
	return res
}

// IsFollowUpCue reports whether text carries a follow-up cue, ignoring history.
func (r *Resolver) IsFollowUpCue(text string, ext Extraction) bool {
	_, ok := r.cue(text, ext)
	return ok
}

func (r *Resolver) cue(text string, ext Extraction) (string, bool) {
	words := ext.words
	if words == nil {
		words = Tokenize(text)
	}
	for _, c := range r.cues {
		if c.in(words) {
			return c.String(), true
		}
	}
	if dimensionOnly(words, ext) {
		return CueDimensionOnly, true
	}
	return "", false
}

// dimensionOnly reports whether everything outside the grouping phrase is filler.
func dimensionOnly(words []string, ext Extraction) bool {
	if ext.dimEnd <= ext.dimStart {
		return false
	}
	for i, w := range words {
		if i >= ext.dimStart && i < ext.dimEnd {
			continue
		}
		if !fillerWords[w] {
			return false
		}
	}
	return true
}
