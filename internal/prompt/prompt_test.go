package prompt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

func TestBuildShapesAreJSON(t *testing.T) {
	words := []models.Term{
		{Word: "SOLANA", Description: "A layer one chain"},
		{Word: "VALIDATOR", Description: "Votes on blocks"},
	}

	cases := map[models.PuzzleType][]string{
		models.TypeWordSearch: {"title", "content", "words", "hints", "partialWords", "solution"},
		models.TypeAnagram:    {"title", "content", "solution", "hints", "explanation"},
		models.TypeQuiz:       {"title", "content", "solution", "options", "explanation", "hints"},
	}

	for typ, keys := range cases {
		t.Run(string(typ), func(t *testing.T) {
			shape, text := Build(Request{
				Type:       typ,
				Topic:      "Proof of History",
				Difficulty: models.DifficultyMedium,
				Words:      words,
				GridSize:   10,
			})

			var parsed map[string]any
			require.NoError(t, json.Unmarshal([]byte(shape), &parsed), shape)
			for _, k := range keys {
				assert.Contains(t, parsed, k)
			}

			assert.Contains(t, text, shape)
			assert.Contains(t, text, "Proof of History")
			assert.Contains(t, text, "medium")
		})
	}
}

func TestBuildWordSearchListsWordsVerbatim(t *testing.T) {
	shape, text := Build(Request{
		Type:       models.TypeWordSearch,
		Topic:      "Solana",
		Difficulty: models.DifficultyEasy,
		Words:      []models.Term{{Word: "SLOT"}, {Word: "EPOCH"}},
		GridSize:   10,
	})

	var parsed struct {
		Words []string `json:"words"`
	}
	require.NoError(t, json.Unmarshal([]byte(shape), &parsed))
	assert.Equal(t, []string{"SLOT", "EPOCH"}, parsed.Words)
	assert.Contains(t, text, "10x10")
}

func TestBuildContext(t *testing.T) {
	_, text := Build(Request{Type: models.TypeQuiz, Topic: "x", Difficulty: models.DifficultyHard})
	assert.Contains(t, text, NoContext)

	_, text = Build(Request{
		Type:       models.TypeQuiz,
		Topic:      "x",
		Difficulty: models.DifficultyHard,
		Context:    []models.Source{{Content: "  Solana uses Proof of History.  ", Similarity: 0.9}},
	})
	assert.NotContains(t, text, NoContext)
	assert.Contains(t, text, "[1] Solana uses Proof of History.")
}

func TestSystemInstruction(t *testing.T) {
	for _, typ := range models.PuzzleTypes {
		assert.Contains(t, SystemInstruction(typ), "JSON")
	}
}
