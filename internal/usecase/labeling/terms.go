package labeling

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and for with that this from have has had was were are been being not but
		you your our their they them its into onto over under about after before than then
		when what which who whom will would should could can may might must shall also just
		only very more most some such each other any all one two use used using via per
		there here where why how because while these those upon out off too
	`) {
		stopwords[w] = struct{}{}
	}
}

// TopTerms returns the n most frequent content words across texts.
// Words shorter than three letters, numbers and stopwords are ignored;
// ties go to the alphabetically smaller word.
func TopTerms(texts []string, n int) []string {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, w := range tokenize(t) {
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-_")
		if len([]rune(f)) < 3 || !hasLetter(f) {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
