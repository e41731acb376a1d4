package dedup

import "strings"

// Verdict is the validated outcome of a similarity classification. The raw
// classifier response is never consumed as structured data; ParseVerdict is
// the only way to obtain one.
type Verdict struct {
	Similar bool
	IDs     []string
}

var NotSimilar = Verdict{}

// ParseVerdict normalizes a free-text classifier response into a Verdict.
// The expected convention is a leading "no", or a leading "yes" followed by a
// delimiter and comma-separated candidate ids, but the convention is not
// trusted: extracted ids are intersected with the ids that were actually
// offered, and anything unparseable degrades to NotSimilar rather than an
// error. Pure function, safe to re-run on the same input.
func ParseVerdict(raw string, offered []string) Verdict {
	s := strings.ToLower(strings.TrimSpace(raw))

	if strings.HasPrefix(s, "no") {
		return NotSimilar
	}
	if !strings.HasPrefix(s, "yes") {
		return NotSimilar
	}

	rest := strings.TrimPrefix(s, "yes")
	rest = strings.TrimLeft(rest, ":-. \t\n")

	allowed := make(map[string]struct{}, len(offered))
	for _, id := range offered {
		allowed[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}

	var ids []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(rest, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		// Hallucinated ids are dropped, not trusted.
		if _, ok := allowed[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, canonicalID(id, offered))
	}

	if len(ids) == 0 {
		// An affirmative answer referencing no real candidate is a no-match.
		return NotSimilar
	}
	return Verdict{Similar: true, IDs: ids}
}

// canonicalID maps a lowercased match back to the id as it was offered, so
// callers always see ids in their own universe's spelling.
func canonicalID(lower string, offered []string) string {
	for _, id := range offered {
		if strings.ToLower(strings.TrimSpace(id)) == lower {
			return strings.TrimSpace(id)
		}
	}
	return lower
}
