package ticket

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Sentinel is the literal marker the LLM emits before a ticket payload.
// Its presence in a reply means "a structured ticket follows".
const Sentinel = "READY_TO_CREATE_TICKET"

// payloadRe finds the first one-element JSON array after the word "json".
// Non-greedy so trailing prose after the payload is ignored; (?s) lets
// the payload span lines.
var payloadRe = regexp.MustCompile(`(?s)json\s*(\[\{.*?\}\])`)

// Outcome classifies an extraction attempt.
type Outcome int

const (
	// Found means a valid draft was extracted.
	Found Outcome = iota
	// NotFound means the reply carries no payload; treat it as plain text.
	NotFound
	// Malformed means a payload was present but did not parse. The
	// caller should log the error and fall back to plain text.
	Malformed
)

// HasSentinel reports whether the reply contains the ticket marker.
func HasSentinel(reply string) bool {
	return strings.Contains(reply, Sentinel)
}

// Extract scans an LLM reply for a sentinel-delimited ticket payload and
// parses the first element of the JSON array into a Draft. The error is
// non-nil only when the outcome is Malformed.
func Extract(reply string) (*Draft, Outcome, error) {
	m := payloadRe.FindStringSubmatch(reply)
	if m == nil {
		return nil, NotFound, nil
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(m[1]), &drafts); err != nil {
		return nil, Malformed, err
	}
	if len(drafts) == 0 {
		return nil, NotFound, nil
	}
	return &drafts[0], Found, nil
}

// SummaryBefore returns the human-readable portion of a reply preceding
// the sentinel, trimmed. If the sentinel is absent the whole reply is
// returned.
func SummaryBefore(reply string) string {
	before, _, _ := strings.Cut(reply, Sentinel)
	return strings.TrimSpace(before)
}
