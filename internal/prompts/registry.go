// -----------------------------------------------------------------------
// Prompt registry - maps the twelve WCAG analysis axes to their templates
// -----------------------------------------------------------------------

package prompts

import (
	"fmt"
	"strings"
)

// DataPlaceholder is the single substitution point every template carries.
const DataPlaceholder = "{WEBSITE_ANALYSIS_DATA}"

// Axis describes one WCAG 2.1 analysis module.
type Axis struct {
	Key   string // module name, e.g. "1_1_text_alternatives"
	Title string // human-readable guideline title
}

// axes lists the twelve modules in guideline order. The dispatcher fans out
// over this list; the reducer keys its per-axis map by Axis.Key.
var axes = []Axis{
	{Key: "1_1_text_alternatives", Title: "1.1 Text Alternatives"},
	{Key: "1_2_time_based_media", Title: "1.2 Time-based Media"},
	{Key: "1_3_adaptable", Title: "1.3 Adaptable"},
	{Key: "1_4_distinguishable", Title: "1.4 Distinguishable"},
	{Key: "2_1_keyboard", Title: "2.1 Keyboard Accessible"},
	{Key: "2_2_enough_time", Title: "2.2 Enough Time"},
	{Key: "2_3_seizures", Title: "2.3 Seizures and Physical Reactions"},
	{Key: "2_4_navigable", Title: "2.4 Navigable"},
	{Key: "3_1_readable", Title: "3.1 Readable"},
	{Key: "3_2_predictable", Title: "3.2 Predictable"},
	{Key: "3_3_input_assistance", Title: "3.3 Input Assistance"},
	{Key: "4_1_compatible", Title: "4.1 Compatible"},
}

// Axes returns the twelve analysis axes in guideline order.
func Axes() []Axis {
	out := make([]Axis, len(axes))
	copy(out, axes)
	return out
}

// ModuleNames returns the axis keys in guideline order.
func ModuleNames() []string {
	names := make([]string, len(axes))
	for i, a := range axes {
		names[i] = a.Key
	}
	return names
}

// IsValidModule reports whether name is a known axis key.
func IsValidModule(name string) bool {
	for _, a := range axes {
		if a.Key == name {
			return true
		}
	}
	return false
}

// AxisTitle returns the guideline title for an axis key, or the key itself
// when unknown.
func AxisTitle(name string) string {
	for _, a := range axes {
		if a.Key == name {
			return a.Title
		}
	}
	return name
}

// BuildPrompt loads the template for the given axis and substitutes the
// extracted website data into its placeholder.
func BuildPrompt(moduleName, analysisData string) (string, error) {
	if !IsValidModule(moduleName) {
		return "", fmt.Errorf("unknown analysis module: %s", moduleName)
	}

	raw, err := GetTemplate("prompt_" + moduleName + ".md")
	if err != nil {
		return "", fmt.Errorf("failed to load template for %s: %w", moduleName, err)
	}

	template := string(raw)
	if !strings.Contains(template, DataPlaceholder) {
		return "", fmt.Errorf("template for %s has no data placeholder", moduleName)
	}

	return strings.ReplaceAll(template, DataPlaceholder, analysisData), nil
}

// SystemPrompt returns the provider system message for an axis. It pins the
// model to the axis and mandates the analysis_result output contract.
func SystemPrompt(moduleName string) string {
	title := AxisTitle(moduleName)
	return fmt.Sprintf(`You are a WCAG 2.1 accessibility expert specialized in guideline %s.

Analyze ONLY guideline %s. Ignore issues belonging to other guidelines entirely, even when you notice them.

Respond with a single JSON object and nothing else, in this structure:
{
  "analysis_result": {
    "summary": {
      "overall_assessment": "balanced assessment covering strengths and problems",
      "compliance_level": "AAA/AA/A/PARTIAL/NONE",
      "score": 0-100
    },
    "criteria_evaluation": [
      {
        "criterion_id": "X.X.X",
        "name": "criterion name",
        "status": "PASSED/FAILED/PARTIAL/WARNING",
        "finding": "what was found",
        "impact": "effect on users",
        "examples": ["example 1"],
        "recommendation": "specific remediation",
        "severity": "CRITICAL/MAJOR/MODERATE/MINOR"
      }
    ],
    "priority_actions": {
      "immediate": [
        {
          "title": "action title",
          "description": "details",
          "effort": "HIGH/MEDIUM/LOW",
          "affected_criteria": ["X.X.X"]
        }
      ],
      "short_term": [],
      "long_term": []
    }
  }
}`, title, title)
}
