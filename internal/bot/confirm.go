package bot

import (
	"slices"
	"strings"
)

// Decision is the classification of a user reply during the
// confirmation phase.
type Decision int

const (
	// Ambiguous: no decision; re-prompt without consuming the turn.
	Ambiguous Decision = iota
	// Affirm: submit the pending ticket.
	Affirm
	// Reject: discard the pending ticket.
	Reject
)

var (
	affirmWords = []string{"yes", "y", "ok", "okay", "confirm", "submit", "send", "create"}
	rejectWords = []string{"no", "n", "cancel", "abort", "stop"}
)

// Classify maps a free-text reply to a confirmation decision by
// case-insensitive substring match. The affirmative set is checked
// first, so a reply containing words from both sets affirms. That
// tie-break is inherited behavior; see DESIGN.md before changing it.
//
// The one-letter shorthands "y" and "n" match only as standalone
// words, otherwise nearly every sentence would count as a decision.
func Classify(input string) Decision {
	lower := strings.ToLower(strings.TrimSpace(input))
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r < 'a' || r > 'z'
	})

	matches := func(w string) bool {
		if len(w) == 1 {
			return slices.Contains(words, w)
		}
		return strings.Contains(lower, w)
	}

	for _, w := range affirmWords {
		if matches(w) {
			return Affirm
		}
	}
	for _, w := range rejectWords {
		if matches(w) {
			return Reject
		}
	}
	return Ambiguous
}
