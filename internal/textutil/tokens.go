package textutil

import (
	"math"
	"regexp"
	"unicode/utf8"
)

var wordSeparators = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokenize folds text and splits it into words of at least two runes.
// Underscores, dashes and dots separate words, so "cam_01-final" yields
// "cam", "01" and "final".
func Tokenize(text string) []string {
	words := make([]string, 0, 4)
	for _, word := range wordSeparators.Split(Fold(text), -1) {
		if utf8.RuneCountInString(word) >= 2 {
			words = append(words, word)
		}
	}
	return words
}

// tokenBag is a term-frequency vector over the words of a file stem.
type tokenBag map[string]float64

func newTokenBag(text string) tokenBag {
	bag := make(tokenBag)
	for _, word := range Tokenize(text) {
		bag[word]++
	}
	return bag
}

func (b tokenBag) magnitude() float64 {
	var sum float64
	for _, n := range b {
		sum += n * n
	}
	return math.Sqrt(sum)
}

// TokenCosine returns the cosine of the word-frequency vectors of a and b.
// Word order is ignored; texts without any word score 0.
func TokenCosine(a, b string) float64 {
	bagA, bagB := newTokenBag(a), newTokenBag(b)
	magA, magB := bagA.magnitude(), bagB.magnitude()
	if magA == 0 || magB == 0 {
		return 0
	}
	var dot float64
	for word, n := range bagA {
		dot += n * bagB[word]
	}
	return dot / (magA * magB)
}
