package nlp

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/txn-insights/internal/domain"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Show fraud rate by state", []string{"show", "fraud", "rate", "by", "state"}},
		{"What's the fraud rate for each state?", []string{"whats", "the", "fraud", "rate", "for", "each", "state"}},
		{"State-wise count", []string{"state", "wise", "count"}},
		{"Users aged 55+ on Wi-Fi", []string{"users", "aged", "55+", "on", "wi-fi"}},
		{"18-25, iOS!", []string{"18-25", "ios"}},
		{"  -- ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name        string
		text        string
		wantIntent  domain.Intent
		wantMatched bool
	}{
		{"risk beats segmentation", "Show fraud rate by state", domain.IntentRisk, true},
		{"risk from failed", "state-wise failed transactions", domain.IntentRisk, true},
		{"comparative", "Compare iOS vs Android", domain.IntentComparative, true},
		{"comparative beats descriptive", "Is average spend higher on 5G versus 4G", domain.IntentComparative, true},
		{"segmentation beats descriptive", "Average amount by age group", domain.IntentSegmentation, true},
		{"segmentation wise", "age group wise volume", domain.IntentSegmentation, true},
		{"descriptive keyword", "What is the average transaction amount", domain.IntentDescriptive, true},
		{"how many", "How many payments happened today", domain.IntentDescriptive, true},
		{"fallback", "How about Entertainment?", domain.IntentDescriptive, false},
		{"empty", "", domain.IntentDescriptive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Intent != tt.wantIntent {
				t.Errorf("Classify(%q).Intent = %q, want %q", tt.text, got.Intent, tt.wantIntent)
			}
			if got.Matched != tt.wantMatched {
				t.Errorf("Classify(%q).Matched = %v, want %v", tt.text, got.Matched, tt.wantMatched)
			}
			if got.Matched && got.Keyword == "" {
				t.Errorf("Classify(%q) matched without a keyword", tt.text)
			}
		})
	}
}

func TestClassify_KeywordsAreWholeWords(t *testing.T) {
	c := NewClassifier()

	// "bypass" contains "by" and "summary" contains "sum"
	got := c.Classify("bypass summary")
	if got.Matched {
		t.Errorf("expected no keyword match, got %+v", got)
	}
}
