package wordbank

import (
	"math/rand/v2"
)

const scrambleTries = 10

// Scramble permutes the letters of word. The result differs from word
// whenever word holds at least two distinct letters.
func Scramble(word string, rng *rand.Rand) string {
	letters := []rune(word)
	if len(letters) < 2 {
		return word
	}

	for i := 0; i < scrambleTries; i++ {
		rng.Shuffle(len(letters), func(a, b int) {
			letters[a], letters[b] = letters[b], letters[a]
		})
		if string(letters) != word {
			return string(letters)
		}
	}

	// letters == word here; swap the first letter with one that differs
	for i := 1; i < len(letters); i++ {
		if letters[i] != letters[0] {
			letters[0], letters[i] = letters[i], letters[0]
			return string(letters)
		}
	}
	return word
}
