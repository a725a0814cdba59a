package generator

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/terra-clan/puzzle-engine/internal/grid"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/prompt"
	"github.com/terra-clan/puzzle-engine/internal/wordbank"
)

// backendResponse is the union of the fields any puzzle type may return
type backendResponse struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Solution     string   `json:"solution"`
	Hints        []string `json:"hints"`
	Words        []string `json:"words"`
	PartialWords []string `json:"partialWords"`
	Options      []string `json:"options"`
	Explanation  string   `json:"explanation"`
	Points       int      `json:"points"`
	TimeLimit    int      `json:"timeLimit"`
}

func (g *Generator) wordSearch(ctx context.Context, req Request, sources []models.Source) (*Payload, error) {
	terms, err := g.words.PickWords(ctx, g.cfg.WordsPerPuzzle)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, &GenerationError{Attempts: 0, Err: ErrNoWords}
	}

	byWord := make(map[string]models.Term, len(terms))
	words := make([]string, 0, len(terms))
	for _, t := range terms {
		w := grid.Normalize(t.Word)
		byWord[w] = t
		words = append(words, w)
	}

	result := g.buildGrid(words)
	if warn := result.Warning(); warn != nil {
		slog.Warn("word search grid dropped words", "dropped", warn.Dropped)
	}
	placed := result.Words()
	if len(placed) == 0 {
		return nil, &GenerationError{Attempts: 0, Err: ErrNoWords}
	}

	hidden := make([]models.Term, len(placed))
	for i, w := range placed {
		t := byWord[w]
		t.Word = w
		hidden[i] = t
	}

	pr := prompt.Request{
		Type:       req.Type,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Context:    sources,
		Words:      hidden,
		GridSize:   g.cfg.GridSize,
	}

	return g.attempt(ctx, req, func(ctx context.Context) (*Payload, error) {
		var resp backendResponse
		if err := g.complete(ctx, pr, &resp); err != nil {
			return nil, err
		}
		if err := validateWordSearch(resp, result.Grid, placed, g.cfg.GridSize); err != nil {
			return nil, err
		}

		content := resp.Content
		if content == "" {
			content = "Find all the hidden words in the grid."
		}
		return &Payload{
			Title:     resp.Title,
			Content:   content,
			Solution:  strings.Join(placed, ","),
			Hints:     resp.Hints,
			Points:    resp.Points,
			TimeLimit: resp.TimeLimit,
			Details: models.WordSearchDetails{
				Grid:         result.Grid,
				Words:        placed,
				PartialWords: resp.PartialWords,
				DroppedWords: result.Dropped,
			},
		}, nil
	})
}

// validateWordSearch checks the server grid and that the backend echoed every
// hidden word
func validateWordSearch(resp backendResponse, cells [][]string, required []string, size int) error {
	if resp.Title == "" {
		return invalid("title is missing")
	}
	if err := grid.Validate(cells, size); err != nil {
		return invalid("%v", err)
	}

	echoed := make(map[string]bool, len(resp.Words))
	for _, w := range resp.Words {
		echoed[grid.Normalize(w)] = true
	}
	for _, w := range required {
		if !echoed[w] {
			return invalid("word %s missing from response", w)
		}
		if _, ok := grid.Find(cells, w); !ok {
			return invalid("word %s not found in grid", w)
		}
	}
	return nil
}

func (g *Generator) anagram(ctx context.Context, req Request, sources []models.Source) (*Payload, error) {
	candidates, err := g.words.PickWords(ctx, g.cfg.AnagramCandidates)
	if err != nil {
		return nil, err
	}
	byWord := make(map[string]models.Term, len(candidates))
	for _, t := range candidates {
		byWord[normalizeLetters(t.Word)] = t
	}

	pr := prompt.Request{
		Type:       req.Type,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Context:    sources,
		Words:      candidates,
	}

	tries := 0
	return g.attempt(ctx, req, func(ctx context.Context) (*Payload, error) {
		tries++
		var resp backendResponse
		if err := g.complete(ctx, pr, &resp); err != nil {
			return nil, err
		}
		if err := validateAnagram(resp); err != nil {
			// on the final attempt a bad scramble is replaced with our own
			if tries < g.cfg.Attempts || resp.Title == "" || normalizeLetters(resp.Solution) == "" {
				return nil, err
			}
			resp.Content = g.scramble(normalizeLetters(resp.Solution))
			if err := validateAnagram(resp); err != nil {
				return nil, err
			}
			slog.Info("replaced backend scramble", "solution", normalizeLetters(resp.Solution))
		}

		details := models.AnagramDetails{Explanation: resp.Explanation}
		if t, ok := byWord[normalizeLetters(resp.Solution)]; ok {
			details.Category = t.Category
			if details.Explanation == "" {
				details.Explanation = t.Description
			}
		}

		return &Payload{
			Title:     resp.Title,
			Content:   normalizeLetters(resp.Content),
			Solution:  normalizeLetters(resp.Solution),
			Hints:     resp.Hints,
			Points:    resp.Points,
			TimeLimit: resp.TimeLimit,
			Details:   details,
		}, nil
	})
}

// validateAnagram requires content to be a true permutation of the solution.
// Case and whitespace are ignored.
func validateAnagram(resp backendResponse) error {
	content := normalizeLetters(resp.Content)
	solution := normalizeLetters(resp.Solution)

	switch {
	case resp.Title == "":
		return invalid("title is missing")
	case solution == "":
		return invalid("solution is missing")
	case len(content) != len(solution):
		return invalid("scramble length %d differs from solution length %d", len(content), len(solution))
	case sortLetters(content) != sortLetters(solution):
		return invalid("scramble %q is not a permutation of %q", content, solution)
	case content == solution:
		return invalid("scramble equals the solution")
	}
	return nil
}

func (g *Generator) quiz(ctx context.Context, req Request, sources []models.Source) (*Payload, error) {
	pr := prompt.Request{
		Type:       req.Type,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Context:    sources,
	}

	var payload *Payload
	for round := 1; ; round++ {
		var err error
		payload, err = g.attempt(ctx, req, func(ctx context.Context) (*Payload, error) {
			var resp backendResponse
			if err := g.complete(ctx, pr, &resp); err != nil {
				return nil, err
			}
			if err := validateQuiz(resp); err != nil {
				return nil, err
			}
			return &Payload{
				Title:     resp.Title,
				Content:   strings.TrimSpace(resp.Content),
				Solution:  strings.TrimSpace(resp.Solution),
				Hints:     resp.Hints,
				Points:    resp.Points,
				TimeLimit: resp.TimeLimit,
				Details: models.QuizDetails{
					Options:     trimAll(resp.Options),
					Explanation: resp.Explanation,
				},
			}, nil
		})
		if err != nil {
			return nil, err
		}

		key := normalizeQuestion(payload.Content)
		if !g.questions.Contains(key) {
			break
		}
		if round >= g.cfg.QuizDuplicateBudget {
			slog.Warn("duplicate quiz question accepted after regeneration budget",
				"rounds", round,
				"topic", req.Topic,
			)
			break
		}
		slog.Info("duplicate quiz question, regenerating", "round", round, "topic", req.Topic)
	}

	if err := g.questions.Add(ctx, normalizeQuestion(payload.Content)); err != nil {
		return nil, err
	}
	return payload, nil
}

// validateQuiz requires a question with at least two options including the
// solution
func validateQuiz(resp backendResponse) error {
	solution := strings.TrimSpace(resp.Solution)
	switch {
	case strings.TrimSpace(resp.Content) == "":
		return invalid("question is missing")
	case solution == "":
		return invalid("solution is missing")
	case strings.TrimSpace(resp.Explanation) == "":
		return invalid("explanation is missing")
	case len(resp.Options) < 2:
		return invalid("need at least 2 options, got %d", len(resp.Options))
	}
	for _, opt := range resp.Options {
		if strings.TrimSpace(opt) == solution {
			return nil
		}
	}
	return invalid("solution %q is not among the options", solution)
}

func (g *Generator) scramble(word string) string {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return wordbank.Scramble(word, g.rng)
}

func normalizeLetters(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

func sortLetters(s string) string {
	r := []rune(s)
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return string(r)
}

func normalizeQuestion(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
