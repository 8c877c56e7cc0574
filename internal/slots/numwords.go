// Package slots resolves named slot references to their ordered value
// lists. Values come from static lists (slot files), a small set of builtin
// slots, or external value-generating programs run once per training pass.
// Every value is itself a grammar fragment, so slot values may carry
// alternatives and tags of their own.
package slots

import "strings"

var numUnits = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var numTens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

var ordinalUnits = []string{
	"zeroth", "first", "second", "third", "fourth", "fifth", "sixth",
	"seventh", "eighth", "ninth", "tenth", "eleventh", "twelfth",
	"thirteenth", "fourteenth", "fifteenth", "sixteenth", "seventeenth",
	"eighteenth", "nineteenth",
}

var ordinalTens = []string{
	"", "", "twentieth", "thirtieth", "fortieth", "fiftieth", "sixtieth",
	"seventieth", "eightieth", "ninetieth",
}

// NumberWords renders n as lowercase English words, one token per word,
// joined with single spaces ("twenty one", "minus three hundred five").
// The rendering is deterministic and is the single renderer used wherever
// integers become corpus tokens.
func NumberWords(n int) string {
	if n < 0 {
		return "minus " + NumberWords(-n)
	}
	if n < 20 {
		return numUnits[n]
	}

	var parts []string
	scales := []struct {
		value int
		name  string
	}{
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	}
	for _, s := range scales {
		if n >= s.value {
			parts = append(parts, NumberWords(n/s.value), s.name)
			n %= s.value
		}
	}
	if n >= 100 {
		parts = append(parts, numUnits[n/100], "hundred")
		n %= 100
	}
	if n >= 20 {
		parts = append(parts, numTens[n/10])
		n %= 10
		if n > 0 {
			parts = append(parts, numUnits[n])
		}
	} else if n > 0 || len(parts) == 0 {
		parts = append(parts, numUnits[n])
	}
	return strings.Join(parts, " ")
}

// OrdinalWords renders n as an English ordinal ("first", "twenty second").
// Negative values render their cardinal magnitude prefixed with "minus".
func OrdinalWords(n int) string {
	if n < 0 {
		return "minus " + OrdinalWords(-n)
	}
	if n < 20 {
		return ordinalUnits[n]
	}
	if n < 100 {
		if n%10 == 0 {
			return ordinalTens[n/10]
		}
		return numTens[n/10] + " " + ordinalUnits[n%10]
	}
	// Large ordinals: cardinal prefix with an ordinal final word.
	head := n - n%100
	if n%100 == 0 {
		words := strings.Fields(NumberWords(n))
		last := words[len(words)-1]
		words[len(words)-1] = last + "th" // hundredth, thousandth, millionth
		return strings.Join(words, " ")
	}
	return NumberWords(head) + " " + OrdinalWords(n%100)
}
