// Package prompt builds the instructions sent to the generation backend.
package prompt

import (
	"fmt"
	"strings"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

// NoContext is used in place of retrieved snippets when none are available
const NoContext = "No additional context is available; rely on general knowledge of the topic."

// Request describes the puzzle to ask for
type Request struct {
	Type       models.PuzzleType
	Topic      string
	Difficulty models.Difficulty
	Context    []models.Source
	// Words are the terms to hide (wordsearch) or the candidates to pick
	// from (anagram). Ignored for quizzes.
	Words    []models.Term
	GridSize int
}

const wordSearchShape = `{
  "title": "A catchy title for the puzzle",
  "content": "One sentence telling the player what the hidden words have in common",
  "words": [%s],
  "hints": ["One short hint per word, in the same order as words"],
  "partialWords": ["Each word with every other letter replaced by _"],
  "solution": "%s"
}`

const anagramShape = `{
  "title": "A catchy title for the puzzle",
  "content": "The scrambled letters of the solution, uppercase, no spaces",
  "solution": "THE ORIGINAL TERM, UPPERCASE",
  "hints": ["Hint 1", "Hint 2"],
  "explanation": "What the term means and why it matters"
}`

const quizShape = `{
  "title": "A catchy title for the question",
  "content": "The question text",
  "solution": "The correct option, copied exactly from options",
  "options": ["Option A", "Option B", "Option C", "Option D"],
  "explanation": "Why the correct option is right",
  "hints": ["Hint 1"]
}`

// Build returns the JSON response shape for req.Type and the full prompt text
// embedding it.
func Build(req Request) (shape string, text string) {
	shape = Shape(req)

	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s %s puzzle about %q.\n\n", req.Difficulty, req.Type, req.Topic)

	b.WriteString("Context:\n")
	if len(req.Context) == 0 {
		b.WriteString(NoContext)
		b.WriteString("\n")
	} else {
		for i, src := range req.Context {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(src.Content))
		}
	}
	b.WriteString("\n")

	switch req.Type {
	case models.TypeWordSearch:
		b.WriteString("The words below are already hidden in a ")
		fmt.Fprintf(&b, "%dx%d letter grid. Do not add, remove or change any word. ", req.GridSize, req.GridSize)
		b.WriteString("Return them verbatim in \"words\" and write one hint per word.\n")
		for _, t := range req.Words {
			fmt.Fprintf(&b, "- %s: %s\n", t.Word, t.Description)
		}
	case models.TypeAnagram:
		b.WriteString("Pick exactly one of these terms as the solution:\n")
		for _, t := range req.Words {
			fmt.Fprintf(&b, "- %s: %s\n", t.Word, t.Description)
		}
		b.WriteString("\"content\" must use exactly the same letters as \"solution\", ")
		b.WriteString("each letter as many times, and must not equal \"solution\".\n")
	case models.TypeQuiz:
		b.WriteString("Write one multiple-choice question with four distinct options. ")
		b.WriteString("Exactly one option is correct and \"solution\" must repeat it exactly.\n")
	}

	b.WriteString("\nRespond with JSON only, matching this structure exactly:\n")
	b.WriteString(shape)
	b.WriteString("\n")

	return shape, b.String()
}

// Shape returns the JSON template the backend must follow for req
func Shape(req Request) string {
	switch req.Type {
	case models.TypeWordSearch:
		quoted := make([]string, len(req.Words))
		for i, t := range req.Words {
			quoted[i] = fmt.Sprintf("%q", t.Word)
		}
		return fmt.Sprintf(wordSearchShape, strings.Join(quoted, ", "), strings.Join(wordList(req.Words), ", "))
	case models.TypeAnagram:
		return anagramShape
	case models.TypeQuiz:
		return quizShape
	}
	return "{}"
}

// SystemInstruction returns the system message for puzzles of type t
func SystemInstruction(t models.PuzzleType) string {
	base := "You are a puzzle generator that creates educational puzzles about blockchain " +
		"and cryptocurrency topics, with a focus on Solana. Use the provided context to keep " +
		"puzzles accurate. Always respond with a single valid JSON object that matches the " +
		"requested structure exactly, without markdown fences or commentary."

	switch t {
	case models.TypeWordSearch:
		return base + " For word searches the grid is built for you; only describe the given words."
	case models.TypeAnagram:
		return base + " For anagrams the scrambled letters must be a true permutation of the answer."
	case models.TypeQuiz:
		return base + " For quizzes avoid trivia that was likely asked before and vary the question style."
	}
	return base
}

func wordList(terms []models.Term) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Word
	}
	return out
}
