package search

import (
	"sort"
	"strings"

	"github.com/humanmade/blockindex/pkg/blocks"
)

// Scoring weights. Whole-phrase hits in the title count most, per-term
// content hits least.
const (
	weightTitlePhrase   = 5.0
	weightContentPhrase = 2.5
	weightTitleTerm     = 2.0
	weightContentTerm   = 0.5
)

// phraseTermThreshold is the minimum term count before the joined phrase
// is scored in addition to the individual terms.
const phraseTermThreshold = 2

// NormalizeKeywords turns raw keyword input into scoring terms: diacritics
// are stripped, one leading "/" is removed, surrounding space is trimmed
// and the rest splits on single spaces. Empty input yields no terms.
func NormalizeKeywords(input string) []string {
	s := blocks.Deburr(input)
	s = strings.TrimPrefix(s, "/")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}

// matchesTerms reports whether a block satisfies every term rule: plain
// terms must appear in the title or content, "-" prefixed terms must
// appear in neither. Matching is a case-insensitive substring test.
func matchesTerms(b BlockResult, terms []string) bool {
	title := strings.ToLower(b.Title.Raw)
	content := strings.ToLower(b.Content.Raw)

	for _, term := range terms {
		if excluded, ok := strings.CutPrefix(term, "-"); ok {
			if excluded == "" {
				continue
			}
			needle := strings.ToLower(excluded)
			if strings.Contains(title, needle) || strings.Contains(content, needle) {
				return false
			}
			continue
		}

		needle := strings.ToLower(term)
		if !strings.Contains(title, needle) && !strings.Contains(content, needle) {
			return false
		}
	}
	return true
}

// Filter keeps blocks in the given category (0 means any) that satisfy
// every term rule. No category and no terms passes everything through.
func Filter(results []BlockResult, categoryID int64, terms []string) []BlockResult {
	if categoryID == 0 && len(terms) == 0 {
		return results
	}

	kept := make([]BlockResult, 0, len(results))
	for _, b := range results {
		if categoryID != 0 && !containsID(b.Categories, categoryID) {
			continue
		}
		if !matchesTerms(b, terms) {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Score computes a block's relevance for the given terms. Hits are
// case-insensitive non-overlapping substring counts. Exclusion terms do
// not contribute to the score.
func Score(b BlockResult, terms []string) float64 {
	title := strings.ToLower(b.Title.Raw)
	content := strings.ToLower(b.Content.Raw)

	score := 0.0

	if len(terms) > phraseTermThreshold {
		phrase := strings.ToLower(strings.Join(terms, " "))
		score += float64(strings.Count(title, phrase)) * weightTitlePhrase
		score += float64(strings.Count(content, phrase)) * weightContentPhrase
	}

	for _, term := range terms {
		if strings.HasPrefix(term, "-") || term == "" {
			continue
		}
		needle := strings.ToLower(term)
		score += float64(strings.Count(title, needle)) * weightTitleTerm
		score += float64(strings.Count(content, needle)) * weightContentTerm
	}
	return score
}

// Rank sorts blocks by relevance score descending; ties break toward the
// newer (higher) ID. Each block is scored once before sorting.
func Rank(results []BlockResult, terms []string) []BlockResult {
	type scored struct {
		block BlockResult
		score float64
	}

	items := make([]scored, len(results))
	for i, b := range results {
		items[i] = scored{block: b, score: Score(b, terms)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].block.ID > items[j].block.ID
	})

	ranked := make([]BlockResult, len(items))
	for i, it := range items {
		ranked[i] = it.block
	}
	return ranked
}
