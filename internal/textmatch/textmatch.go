// Package textmatch scores lexical overlap between short texts.
package textmatch

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)
)

// TokenSet returns the distinct lowercase words of s.
func TokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// Overlap counts the distinct words of text that appear in set.
func Overlap(set map[string]struct{}, text string) int {
	n := 0
	for t := range TokenSet(text) {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

// Ochiai is |A∩B| / sqrt(|A||B|) over the word sets of a and b.
func Ochiai(a, b string) float64 {
	as, bs := TokenSet(a), TokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for t := range as {
		if _, ok := bs[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(as))*float64(len(bs)))
}

// Sentences splits text on terminal punctuation, trimming each piece.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// BestSentence returns the index of the sentence sharing the most words with
// query, or -1 when nothing overlaps.
func BestSentence(sentences []string, query string) int {
	q := TokenSet(query)
	best, bestScore := -1, 0
	for i, s := range sentences {
		if score := Overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
