package classifier

import (
	"context"
	"strings"
)

// NotIdentified is the sentinel returned when no sector could be
// determined. Callers route to their default sector on this value.
const NotIdentified = "not_identified"

// Classifier suggests a sector for a piece of client text.
//
// Contract: Identify never fails. Any underlying error (network, model,
// malformed answer) is converted to NotIdentified; the caller must not
// need to distinguish failure from low confidence.
type Classifier interface {
	Identify(ctx context.Context, text string, candidates []string) string
}

// Disabled is the no-op classifier used when no API key is configured.
// Every message falls back to the default sector.
type Disabled struct{}

func (Disabled) Identify(ctx context.Context, text string, candidates []string) string {
	return NotIdentified
}

// matchCandidate maps a raw model answer onto one of the candidates.
// Only a case-insensitive exact match counts; anything else (prose,
// hedging, an invented sector) is NotIdentified.
func matchCandidate(answer string, candidates []string) string {
	answer = strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), `"'.`))
	if answer == "" {
		return NotIdentified
	}
	for _, c := range candidates {
		if strings.EqualFold(c, answer) {
			return c
		}
	}
	return NotIdentified
}
