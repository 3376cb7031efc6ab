// Package classifier provides the novelty/English detection contract used
// by the compliance gateway to decide whether an outbound message requires
// protocol registration and report coverage, or passes through freely as
// English prose.
package classifier

import "strings"

// Classifier is a pure, deterministic, side-effect-free predicate over
// message content. Replaceable with entropy-, compression-, or
// model-based implementations; any replacement must preserve the
// contract documented on IsEnglish.
type Classifier interface {
	// IsEnglish returns true iff text should be treated as ordinary
	// English prose rather than novel-language (compressed/symbolic)
	// content. English-looking prose of two or more words must return
	// true; tokenized key=value or bar-delimited payloads must return
	// false.
	IsEnglish(text string) bool
}

// HeuristicClassifier is the default Classifier: a cheap heuristic on
// ASCII-letter fraction, token count, and a digit+delimiter guard against
// compressed encodings like "X9|st=17".
type HeuristicClassifier struct{}

// New returns the default heuristic classifier.
func New() HeuristicClassifier { return HeuristicClassifier{} }

// IsEnglish implements Classifier.
func (HeuristicClassifier) IsEnglish(text string) bool {
	if text == "" {
		return false
	}

	letters, spaces, total := 0, 0, 0
	for _, r := range text {
		total++
		switch {
		case r == ' ':
			spaces++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		}
	}
	if total == 0 {
		return false
	}
	asciiFraction := float64(letters+spaces) / float64(total)
	if asciiFraction < 0.85 {
		return false
	}

	tokens := strings.Fields(text)
	if len(tokens) < 2 && len(text) >= 16 {
		return false
	}

	for _, tok := range tokens {
		if hasDigitAndDelimiter(tok) {
			return false
		}
	}

	return true
}

// hasDigitAndDelimiter reports whether tok contains at least one ASCII
// digit together with a '|' or '=' — a cheap guard against encodings like
// "X9|st=17" or "rt=2".
func hasDigitAndDelimiter(tok string) bool {
	hasDigit, hasDelim := false, false
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '|' || r == '=':
			hasDelim = true
		}
	}
	return hasDigit && hasDelim
}
