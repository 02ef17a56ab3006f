package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adpulse-io/insight-engine/pkg/models"
)

// ImpactAssessmentSystemMessage frames the model as a marketing analyst
// producing strict JSON.
const ImpactAssessmentSystemMessage = `You are a marketing performance analyst.
You respond with a single JSON object and no surrounding prose.`

// ElementGroupContext is one visual element group with its aggregated
// performance, handed to the model for impact assessment.
type ElementGroupContext struct {
	ElementType    models.ElementType
	Description    string
	CampaignCount  int
	AvgPerformance map[string]float64
}

// BuildImpactAssessmentPrompt creates the prompt asking the model to judge
// how a recurring visual element relates to campaign performance and what to
// do about it.
func BuildImpactAssessmentPrompt(group ElementGroupContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Visual Element Impact Assessment\n\n")
	prompt.WriteString(fmt.Sprintf("Element type: %s\n", group.ElementType))
	if group.Description != "" {
		prompt.WriteString(fmt.Sprintf("Observed as: %s\n", group.Description))
	}
	prompt.WriteString(fmt.Sprintf("Seen in %d campaign(s)\n\n", group.CampaignCount))

	prompt.WriteString("## Average Performance of Campaigns Containing This Element\n\n")
	keys := make([]string, 0, len(group.AvgPerformance))
	for k := range group.AvgPerformance {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prompt.WriteString(fmt.Sprintf("- %s: %.4f\n", k, group.AvgPerformance[k]))
	}

	prompt.WriteString("\n## Task\n\n")
	prompt.WriteString("Assess whether this element plausibly helps or hurts performance and give one actionable recommendation.\n\n")
	prompt.WriteString("Respond with JSON exactly in this shape:\n")
	prompt.WriteString("{\n")
	prompt.WriteString(`  "impact": "<one sentence on the likely performance impact>",` + "\n")
	prompt.WriteString(`  "recommendation": "<one concrete, testable suggestion>"` + "\n")
	prompt.WriteString("}\n")

	return prompt.String()
}
