package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PuzzleType identifies the kind of challenge a puzzle holds
type PuzzleType string

const (
	TypeWordSearch PuzzleType = "wordsearch"
	TypeAnagram    PuzzleType = "anagram"
	TypeQuiz       PuzzleType = "quiz"
)

// PuzzleTypes lists every supported puzzle type
var PuzzleTypes = []PuzzleType{TypeWordSearch, TypeAnagram, TypeQuiz}

// Valid reports whether t is a supported puzzle type
func (t PuzzleType) Valid() bool {
	switch t {
	case TypeWordSearch, TypeAnagram, TypeQuiz:
		return true
	}
	return false
}

// DefaultTimeLimit returns the time limit in seconds used when the
// generation backend does not provide one
func (t PuzzleType) DefaultTimeLimit() int {
	switch t {
	case TypeWordSearch:
		return 300
	case TypeAnagram:
		return 120
	case TypeQuiz:
		return 60
	}
	return 0
}

// Difficulty is the puzzle difficulty level
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a supported difficulty
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// DefaultPoints returns the points awarded for solving a puzzle of this difficulty
func (d Difficulty) DefaultPoints() int {
	switch d {
	case DifficultyHard:
		return 100
	case DifficultyMedium:
		return 75
	default:
		return 50
	}
}

// Details is the type-specific part of a puzzle. Exactly one variant exists
// per PuzzleType.
type Details interface {
	PuzzleType() PuzzleType
}

// WordSearchDetails carries the letter grid and the words hidden in it
type WordSearchDetails struct {
	Grid         [][]string `json:"grid"`
	Words        []string   `json:"words"`
	PartialWords []string   `json:"partialWords,omitempty"`
	DroppedWords []string   `json:"droppedWords,omitempty"`
}

func (WordSearchDetails) PuzzleType() PuzzleType { return TypeWordSearch }

// AnagramDetails carries the explanation of the scrambled term
type AnagramDetails struct {
	Explanation string `json:"explanation,omitempty"`
	Category    string `json:"category,omitempty"`
}

func (AnagramDetails) PuzzleType() PuzzleType { return TypeAnagram }

// QuizDetails carries the answer options of a multiple-choice question
type QuizDetails struct {
	Options     []string `json:"options"`
	Explanation string   `json:"explanation"`
}

func (QuizDetails) PuzzleType() PuzzleType { return TypeQuiz }

// Source is a knowledge-base snippet used as generation context
type Source struct {
	Content    string         `json:"content" db:"content"`
	Similarity float64        `json:"similarity" db:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"`
}

// Puzzle is one generated challenge
type Puzzle struct {
	ID         int64
	UUID       string
	GameID     int64
	Type       PuzzleType
	Title      string
	Content    string
	Solution   string
	Difficulty Difficulty
	Hints      []string
	TimeLimit  *int
	Points     int
	Topic      string
	Details    Details
	Sources    []Source
	IsActive   bool
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CheckAnswer compares an answer against the solution ignoring case and
// surrounding whitespace. Word searches are solved by listing every hidden
// word, in any order, separated by commas or spaces. Anagram answers also
// ignore inner whitespace.
func (p *Puzzle) CheckAnswer(answer string) bool {
	switch d := p.Details.(type) {
	case WordSearchDetails:
		found := strings.FieldsFunc(strings.ToUpper(answer), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
		if len(found) != len(d.Words) {
			return false
		}
		want := make(map[string]int, len(d.Words))
		for _, w := range d.Words {
			want[strings.ToUpper(w)]++
		}
		for _, w := range found {
			if want[w] == 0 {
				return false
			}
			want[w]--
		}
		return true
	case AnagramDetails:
		return strings.EqualFold(stripSpace(answer), stripSpace(p.Solution))
	}
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(p.Solution))
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// metadataDoc is the layout of the metadata JSONB column
type metadataDoc struct {
	GeneratedBy     string     `json:"generatedBy"`
	PuzzleType      PuzzleType `json:"puzzleType"`
	Topic           string     `json:"topic,omitempty"`
	RelevantContent []Source   `json:"relevantContent"`

	Grid         [][]string `json:"grid,omitempty"`
	Words        []string   `json:"words,omitempty"`
	PartialWords []string   `json:"partialWords,omitempty"`
	DroppedWords []string   `json:"droppedWords,omitempty"`
	Options      []string   `json:"options,omitempty"`
	Explanation  string     `json:"explanation,omitempty"`
	Category     string     `json:"category,omitempty"`
}

// EncodeMetadata serializes the type-specific details and the generation
// provenance into the metadata document stored alongside the puzzle
func EncodeMetadata(p *Puzzle) ([]byte, error) {
	doc := metadataDoc{
		GeneratedBy:     "ai",
		PuzzleType:      p.Type,
		Topic:           p.Topic,
		RelevantContent: p.Sources,
	}
	if doc.RelevantContent == nil {
		doc.RelevantContent = []Source{}
	}

	switch d := p.Details.(type) {
	case WordSearchDetails:
		doc.Grid = d.Grid
		doc.Words = d.Words
		doc.PartialWords = d.PartialWords
		doc.DroppedWords = d.DroppedWords
	case AnagramDetails:
		doc.Explanation = d.Explanation
		doc.Category = d.Category
	case QuizDetails:
		doc.Options = d.Options
		doc.Explanation = d.Explanation
	case nil:
		return nil, fmt.Errorf("puzzle details are missing")
	default:
		return nil, fmt.Errorf("unsupported puzzle details %T", d)
	}

	if d := p.Details; d.PuzzleType() != p.Type {
		return nil, fmt.Errorf("details of type %s do not match puzzle type %s", d.PuzzleType(), p.Type)
	}

	return json.Marshal(doc)
}

// DecodeMetadata restores the type-specific details, sources and topic of a
// puzzle from its metadata document
func DecodeMetadata(t PuzzleType, data []byte) (Details, []Source, string, error) {
	var doc metadataDoc
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, "", fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	var details Details
	switch t {
	case TypeWordSearch:
		details = WordSearchDetails{
			Grid:         doc.Grid,
			Words:        doc.Words,
			PartialWords: doc.PartialWords,
			DroppedWords: doc.DroppedWords,
		}
	case TypeAnagram:
		details = AnagramDetails{Explanation: doc.Explanation, Category: doc.Category}
	case TypeQuiz:
		details = QuizDetails{Options: doc.Options, Explanation: doc.Explanation}
	default:
		return nil, nil, "", fmt.Errorf("unknown puzzle type %q", t)
	}

	return details, doc.RelevantContent, doc.Topic, nil
}

// puzzleWire is the JSON shape of a puzzle. Metadata is the durable source of
// the details; grid, words, options and explanation are flattened copies.
type puzzleWire struct {
	ID         int64           `json:"id"`
	UUID       string          `json:"uuid,omitempty"`
	GameID     int64           `json:"gameId"`
	Type       PuzzleType      `json:"type"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Solution   string          `json:"solution"`
	Difficulty Difficulty      `json:"difficulty"`
	Hints      []string        `json:"hints"`
	TimeLimit  *int            `json:"timeLimit"`
	Points     int             `json:"points"`
	Metadata   json.RawMessage `json:"metadata"`
	IsActive   bool            `json:"isActive"`
	DeletedAt  *time.Time      `json:"deletedAt"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`

	Grid        [][]string `json:"grid,omitempty"`
	Words       []string   `json:"words,omitempty"`
	Options     []string   `json:"options,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (p Puzzle) MarshalJSON() ([]byte, error) {
	metadata, err := EncodeMetadata(&p)
	if err != nil {
		return nil, err
	}

	w := puzzleWire{
		ID:         p.ID,
		UUID:       p.UUID,
		GameID:     p.GameID,
		Type:       p.Type,
		Title:      p.Title,
		Content:    p.Content,
		Solution:   p.Solution,
		Difficulty: p.Difficulty,
		Hints:      p.Hints,
		TimeLimit:  p.TimeLimit,
		Points:     p.Points,
		Metadata:   metadata,
		IsActive:   p.IsActive,
		DeletedAt:  p.DeletedAt,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if w.Hints == nil {
		w.Hints = []string{}
	}

	switch d := p.Details.(type) {
	case WordSearchDetails:
		w.Grid = d.Grid
		w.Words = d.Words
	case QuizDetails:
		w.Options = d.Options
		w.Explanation = d.Explanation
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Puzzle) UnmarshalJSON(data []byte) error {
	var w puzzleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	details, sources, topic, err := DecodeMetadata(w.Type, w.Metadata)
	if err != nil {
		return err
	}

	*p = Puzzle{
		ID:         w.ID,
		UUID:       w.UUID,
		GameID:     w.GameID,
		Type:       w.Type,
		Title:      w.Title,
		Content:    w.Content,
		Solution:   w.Solution,
		Difficulty: w.Difficulty,
		Hints:      w.Hints,
		TimeLimit:  w.TimeLimit,
		Points:     w.Points,
		Topic:      topic,
		Details:    details,
		Sources:    sources,
		IsActive:   w.IsActive,
		DeletedAt:  w.DeletedAt,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
	return nil
}

// PuzzleFilter narrows puzzle listings
type PuzzleFilter struct {
	Type       PuzzleType
	Difficulty Difficulty
	GameID     int64
	ActiveOnly bool
	Limit      int
	Offset     int
}

// CreatePuzzleRequest is the body of a puzzle creation request
type CreatePuzzleRequest struct {
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Type       PuzzleType `json:"type"`
	GameID     int64      `json:"gameId"`
}
