package similarity

import (
	"fmt"
	"strings"

	"github.com/civicpulse/backend/internal/models"
)

// BuildPrompt lists candidates in their original order with their real ids so
// the response convention ("no" or "yes: <id>, <id>") maps back unambiguously.
func BuildPrompt(description string, candidates []models.NearbyIssue) string {
	var list strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&list, "%d. (ID: %s) %s\n", i+1, c.ID, c.Description)
	}

	return fmt.Sprintf(`You are given one new issue description and a list of existing nearby issue descriptions.
If the new issue is about the same or very similar to ANY of the nearby issues, reply with:
"no" OR "yes" followed by the IDs of the similar issues.

Examples of valid responses:
- no
- yes: 12, 15
- yes: 7

New issue:
%q

Nearby issues:
%s`, description, list.String())
}
