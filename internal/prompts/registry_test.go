package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleNames_TwelveAxesInGuidelineOrder(t *testing.T) {
	names := ModuleNames()
	require.Len(t, names, 12)
	assert.Equal(t, "1_1_text_alternatives", names[0])
	assert.Equal(t, "4_1_compatible", names[11])
}

func TestIsValidModule(t *testing.T) {
	assert.True(t, IsValidModule("2_4_navigable"))
	assert.False(t, IsValidModule("5_1_unknown"))
	assert.False(t, IsValidModule(""))
}

func TestBuildPrompt_SubstitutesData(t *testing.T) {
	for _, name := range ModuleNames() {
		prompt, err := BuildPrompt(name, "EXTRACTED-DATA-MARKER")
		require.NoError(t, err, "axis %s", name)
		assert.Contains(t, prompt, "EXTRACTED-DATA-MARKER", "axis %s", name)
		assert.NotContains(t, prompt, DataPlaceholder, "axis %s", name)
	}
}

func TestBuildPrompt_UnknownModule(t *testing.T) {
	_, err := BuildPrompt("not_an_axis", "data")
	require.Error(t, err)
}

func TestSystemPrompt_PinsAxisAndContract(t *testing.T) {
	sys := SystemPrompt("3_1_readable")
	assert.Contains(t, sys, "3.1 Readable")
	assert.Contains(t, sys, "analysis_result")
	assert.Contains(t, sys, "criteria_evaluation")
}

func TestTemplates_MandateOutputRubric(t *testing.T) {
	for _, name := range ModuleNames() {
		raw, err := GetTemplate("prompt_" + name + ".md")
		require.NoError(t, err, "axis %s", name)
		text := string(raw)
		assert.True(t, strings.Contains(text, "Scoring rubric"), "axis %s", name)
		assert.True(t, strings.Count(text, DataPlaceholder) == 1, "axis %s", name)
	}
}
