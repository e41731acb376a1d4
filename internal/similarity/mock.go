package similarity

import (
	"context"
	"strings"

	"github.com/civicpulse/backend/internal/models"
)

// MockClassifier is the keyless-dev and test stand-in. It answers in the same
// raw-text convention the real model is prompted for, so the full parse path
// stays exercised. Deterministic: token overlap against each candidate.
type MockClassifier struct{}

func (MockClassifier) Classify(ctx context.Context, description string, candidates []models.NearbyIssue) (string, error) {
	var matches []string
	for _, c := range candidates {
		if tokenOverlap(description, c.Description) >= 0.6 {
			matches = append(matches, c.ID)
		}
	}
	if len(matches) == 0 {
		return "no", nil
	}
	return "yes: " + strings.Join(matches, ", "), nil
}

// tokenOverlap is the fraction of the shorter description's words present in
// the other one. Crude, but stable for tests and local runs.
func tokenOverlap(a, b string) float64 {
	aw := strings.Fields(strings.ToLower(a))
	bw := strings.Fields(strings.ToLower(b))
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	if len(bw) < len(aw) {
		aw, bw = bw, aw
	}
	set := make(map[string]struct{}, len(bw))
	for _, w := range bw {
		set[w] = struct{}{}
	}
	hits := 0
	for _, w := range aw {
		if _, ok := set[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(aw))
}
