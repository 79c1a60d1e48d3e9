package analysis

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/site-harvester/internal/harvest"
)

const commonRules = `You extract structured business information from website content.
Rules:
- Prefer information the site states explicitly over inference.
- Never fabricate details. If a field is not supported by the content, use null for scalars and [] for lists.
- Keep summaries short and factual, in the site's own terms.
- Respond with a single JSON object and nothing else.`

// BuildPrompt assembles the system and user messages for one analysis call.
func BuildPrompt(category Category, content string) harvest.Prompt {
	var schema strings.Builder
	schema.WriteString(commonRules)
	schema.WriteString("\n\nReturn a JSON object with these fields:\n")
	for _, f := range category.Fields() {
		fmt.Fprintf(&schema, "- %s (%s): %s\n", f.Name, f.Kind, f.Description)
	}

	user := fmt.Sprintf("Business category: %s\n\nWebsite content:\n\n%s", category, content)
	return harvest.Prompt{System: strings.TrimRight(schema.String(), "\n"), User: user}
}
