package detection

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// BuildPrompt asks for every enabled category and custom keyword on one page image
func BuildPrompt(settings redaction.Settings) string {
	categories := make([]string, 0, len(settings.Categories))
	for _, c := range settings.Categories {
		categories = append(categories, string(c))
	}

	var b strings.Builder
	b.WriteString("Analyze this document image for Personal Identifiable Information (PII).\n")
	if len(categories) > 0 {
		fmt.Fprintf(&b, "Identify the following categories: %s.", strings.Join(categories, ", "))
	} else {
		b.WriteString("Do not report any PII category on its own.")
	}
	if len(settings.CustomKeywords) > 0 {
		fmt.Fprintf(&b, " Additionally, specifically look for these keywords: %s.", strings.Join(settings.CustomKeywords, ", "))
	}
	b.WriteString("\n\n")
	b.WriteString("For each detected PII, provide the exact text, the category, and a precise bounding box ")
	b.WriteString("[ymin, xmin, ymax, xmax] normalized to 0-1000.\n")
	b.WriteString("Ensure the bounding boxes strictly cover only the sensitive text.\n")
	fmt.Fprintf(&b, "Use one of these category labels: %s.\n\n", strings.Join(categoryLabels(), ", "))
	b.WriteString(`Return the results as a JSON array of objects shaped like {"text": "...", "category": "...", "box_2d": [ymin, xmin, ymax, xmax]}. `)
	b.WriteString("Return [] when nothing is found. Do not add any other text.")
	return b.String()
}

func categoryLabels() []string {
	labels := make([]string, 0, len(redaction.AllCategories))
	for _, c := range redaction.AllCategories {
		labels = append(labels, string(c))
	}
	return labels
}
