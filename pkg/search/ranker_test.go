package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func result(id int64, title, content string, categories ...int64) BlockResult {
	return BlockResult{
		ID:         id,
		Title:      RawText{Raw: title},
		Content:    RawText{Raw: content},
		Categories: categories,
	}
}

func TestNormalizeKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single term", "hero", []string{"hero"}},
		{"multiple terms", "hero banner footer", []string{"hero", "banner", "footer"}},
		{"leading slash stripped once", "/hero banner", []string{"hero", "banner"}},
		{"only one slash stripped", "//hero", []string{"/hero"}},
		{"surrounding space trimmed", "  hero banner  ", []string{"hero", "banner"}},
		{"diacritics stripped", "café crème", []string{"cafe", "creme"}},
		{"exclusions preserved", "hero -footer", []string{"hero", "-footer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKeywords(tt.input))
		})
	}
}

func TestScore(t *testing.T) {
	t.Run("per-term weights", func(t *testing.T) {
		b := result(1, "Hero banner hero", "The hero image")
		// "hero": 2 title hits * 2 + 1 content hit * 0.5
		assert.Equal(t, 4.5, Score(b, []string{"hero"}))
	})

	t.Run("case insensitive", func(t *testing.T) {
		b := result(1, "HERO", "hErO")
		assert.Equal(t, 2.5, Score(b, []string{"Hero"}))
	})

	t.Run("phrase bonus above two terms", func(t *testing.T) {
		b := result(1, "big red button", "press the big red button")
		terms := []string{"big", "red", "button"}
		// phrase: 1 title * 5 + 1 content * 2.5
		// terms: 3 title hits * 2 + 3 content hits * 0.5
		assert.Equal(t, 5.0+2.5+6.0+1.5, Score(b, terms))
	})

	t.Run("no phrase bonus at two terms", func(t *testing.T) {
		b := result(1, "big red", "big red")
		terms := []string{"big", "red"}
		// terms only: 2 title hits * 2 + 2 content hits * 0.5
		assert.Equal(t, 5.0, Score(b, terms))
	})

	t.Run("exclusion terms do not score", func(t *testing.T) {
		b := result(1, "hero", "")
		assert.Equal(t, 2.0, Score(b, []string{"hero", "-footer"}))
	})

	t.Run("no terms scores zero", func(t *testing.T) {
		b := result(1, "hero", "hero")
		assert.Equal(t, 0.0, Score(b, nil))
	})
}

func TestFilter(t *testing.T) {
	all := []BlockResult{
		result(1, "Hero banner", "large hero", 10),
		result(2, "Footer", "site footer", 10, 20),
		result(3, "Sidebar", "hero sidebar", 20),
	}

	t.Run("no filters passes through", func(t *testing.T) {
		assert.Equal(t, all, Filter(all, 0, nil))
	})

	t.Run("category filter", func(t *testing.T) {
		got := Filter(all, 20, nil)
		assert.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].ID)
		assert.Equal(t, int64(3), got[1].ID)
	})

	t.Run("term must match title or content", func(t *testing.T) {
		got := Filter(all, 0, []string{"hero"})
		assert.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int64(3), got[1].ID)
	})

	t.Run("exclusion removes matches", func(t *testing.T) {
		got := Filter(all, 0, []string{"hero", "-sidebar"})
		assert.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ID)
	})

	t.Run("category and terms combine", func(t *testing.T) {
		got := Filter(all, 20, []string{"hero"})
		assert.Len(t, got, 1)
		assert.Equal(t, int64(3), got[0].ID)
	})

	t.Run("bare exclusion dash is ignored", func(t *testing.T) {
		got := Filter(all, 0, []string{"-"})
		assert.Len(t, got, 3)
	})
}

func TestRank(t *testing.T) {
	t.Run("orders by score descending", func(t *testing.T) {
		items := []BlockResult{
			result(1, "nothing", "relevant hero mention"),
			result(2, "hero", "hero"),
			result(3, "hero hero", ""),
		}

		ranked := Rank(items, []string{"hero"})
		assert.Equal(t, int64(3), ranked[0].ID) // 4.0
		assert.Equal(t, int64(2), ranked[1].ID) // 2.5
		assert.Equal(t, int64(1), ranked[2].ID) // 0.5
	})

	t.Run("ties break toward higher ID", func(t *testing.T) {
		items := []BlockResult{
			result(5, "hero", ""),
			result(9, "hero", ""),
			result(7, "hero", ""),
		}

		ranked := Rank(items, []string{"hero"})
		assert.Equal(t, int64(9), ranked[0].ID)
		assert.Equal(t, int64(7), ranked[1].ID)
		assert.Equal(t, int64(5), ranked[2].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Rank(nil, []string{"hero"}))
	})
}
