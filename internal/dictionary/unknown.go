package dictionary

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Unknown returns the vocabulary words absent from every given dictionary,
// sorted. These are the words needing pronunciation guesses from an
// external grapheme-to-phoneme model.
func Unknown(vocabulary []string, dicts ...*Dictionary) []string {
	var missing []string
	for _, word := range vocabulary {
		known := false
		for _, d := range dicts {
			if d != nil && d.Contains(word) {
				known = true
				break
			}
		}
		if !known {
			missing = append(missing, strings.ToLower(word))
		}
	}
	sort.Strings(missing)
	return missing
}

// Suggestion is a known dictionary word proposed as a likely intended
// spelling of an unknown word.
type Suggestion struct {
	Word  string
	Score float64
}

// defaultSuggestThreshold is the minimum Jaro-Winkler score for a
// phonetically matching dictionary word to be suggested.
const defaultSuggestThreshold = 0.80

// Suggest proposes up to max known words that an unknown word was likely a
// misspelling of, to help authors fix typos before invoking a
// pronunciation guesser. Candidates are filtered by Double Metaphone code
// overlap, then ranked by Jaro-Winkler similarity; ties break
// alphabetically so output is deterministic.
func Suggest(unknown string, max int, dicts ...*Dictionary) []Suggestion {
	if max <= 0 || unknown == "" {
		return nil
	}
	lower := strings.ToLower(unknown)
	primary, secondary := matchr.DoubleMetaphone(lower)

	var candidates []Suggestion
	for _, d := range dicts {
		if d == nil {
			continue
		}
		for _, word := range d.Words() {
			p, s := matchr.DoubleMetaphone(word)
			if !codesOverlap(primary, secondary, p, s) {
				continue
			}
			score := matchr.JaroWinkler(lower, word, false)
			if score >= defaultSuggestThreshold {
				candidates = append(candidates, Suggestion{Word: word, Score: score})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Word < candidates[j].Word
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// codesOverlap reports whether either metaphone code of the unknown word
// matches either code of the candidate. Empty codes never match.
func codesOverlap(p1, s1, p2, s2 string) bool {
	for _, a := range []string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || (s2 != "" && a == s2) {
			return true
		}
	}
	return false
}
