package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

func passage(id, content string, score float64) datatypes.RetrievedPassage {
	return datatypes.RetrievedPassage{
		Content:  content,
		Source:   "docs/" + id + ".md",
		Metadata: map[string]interface{}{"id": id},
		Score:    score,
	}
}

func TestMergePassages_DisjointSetsSortedByScore(t *testing.T) {
	similar := []datatypes.RetrievedPassage{passage("a", "vector hit", 0.82)}
	keyword := []datatypes.RetrievedPassage{passage("b", "bm25 hit", 1.4)}

	merged := mergePassages(similar, keyword)

	assert.Len(t, merged, 2)
	assert.Equal(t, "b", merged[0].Metadata["id"])
	assert.Equal(t, "a", merged[1].Metadata["id"])
}

func TestMergePassages_DeduplicatesById(t *testing.T) {
	similar := []datatypes.RetrievedPassage{passage("a", "same chunk", 0.9)}
	keyword := []datatypes.RetrievedPassage{passage("a", "same chunk", 2.1)}

	merged := mergePassages(similar, keyword)

	assert.Len(t, merged, 1)
	// The similarity copy wins; the keyword duplicate is dropped.
	assert.InDelta(t, 0.9, merged[0].Score, 0.001)
}

func TestMergePassages_DeduplicatesByContentWhenIdMissing(t *testing.T) {
	similar := []datatypes.RetrievedPassage{{Content: "same text", Score: 0.8}}
	keyword := []datatypes.RetrievedPassage{{Content: "same text", Score: 1.1}}

	merged := mergePassages(similar, keyword)

	assert.Len(t, merged, 1)
}

func TestMergePassages_EmptyInputs(t *testing.T) {
	assert.Empty(t, mergePassages(nil, nil))

	only := []datatypes.RetrievedPassage{passage("a", "x", 0.5)}
	assert.Equal(t, only, mergePassages(only, nil))
	assert.Equal(t, only, mergePassages(nil, only))
}

func TestMergePassages_StableForEqualScores(t *testing.T) {
	similar := []datatypes.RetrievedPassage{passage("a", "x", 0.7)}
	keyword := []datatypes.RetrievedPassage{passage("b", "y", 0.7)}

	merged := mergePassages(similar, keyword)

	assert.Len(t, merged, 2)
	// Equal scores keep insertion order: similarity leg first.
	assert.Equal(t, "a", merged[0].Metadata["id"])
	assert.Equal(t, "b", merged[1].Metadata["id"])
}

func TestConfigValidate_Corrections(t *testing.T) {
	got := Config{Strategy: "psychic", SimilarityK: 0, KeywordK: -1}.Validate()

	assert.Equal(t, StrategyHybrid, got.Strategy)
	assert.Equal(t, 1, got.SimilarityK)
	assert.Equal(t, 1, got.KeywordK)
}

func TestConfigValidate_KeepsValidValues(t *testing.T) {
	in := Config{Strategy: StrategySimilarity, SimilarityK: 5, KeywordK: 2}
	assert.Equal(t, in, in.Validate())
}
