// -----------------------------------------------------------------------
// Result schema - canonicalizes model output, including the German legacy
// key set emitted by older prompt generations
// -----------------------------------------------------------------------

package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/percipio/internal/models"
)

// ParseAnalysisResult parses repaired model output into the canonical
// result structure. Accepts the analysis_result wrapper, the bare canonical
// object, and the legacy German schema; validates required fields; coerces
// out-of-range scores into 0..100.
func ParseAnalysisResult(jsonText string) (*models.AnalysisResult, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParseFailed, err)
	}

	// Unwrap {"analysis_result": {...}} when present
	if inner, ok := envelope["analysis_result"]; ok {
		if err := json.Unmarshal(inner, &envelope); err != nil {
			return nil, fmt.Errorf("%w: invalid analysis_result wrapper: %v", models.ErrParseFailed, err)
		}
	}

	var result *models.AnalysisResult
	if _, legacy := envelope["gesamtbewertung"]; legacy {
		result = canonicalizeLegacy(envelope)
	} else {
		result = &models.AnalysisResult{}
		if raw, ok := envelope["summary"]; ok {
			if err := json.Unmarshal(raw, &result.Summary); err != nil {
				return nil, fmt.Errorf("%w: invalid summary: %v", models.ErrParseFailed, err)
			}
		}
		if raw, ok := envelope["criteria_evaluation"]; ok {
			if err := json.Unmarshal(raw, &result.CriteriaEvaluation); err != nil {
				return nil, fmt.Errorf("%w: invalid criteria_evaluation: %v", models.ErrParseFailed, err)
			}
		}
		if raw, ok := envelope["priority_actions"]; ok {
			// Tolerate malformed buckets; they are optional
			_ = json.Unmarshal(raw, &result.PriorityActions)
		}
	}

	if err := validateResult(result); err != nil {
		return nil, err
	}
	coerceResult(result)
	return result, nil
}

func validateResult(r *models.AnalysisResult) error {
	if strings.TrimSpace(r.Summary.ComplianceLevel) == "" {
		return fmt.Errorf("%w: missing summary.compliance_level", models.ErrParseFailed)
	}
	if strings.TrimSpace(r.Summary.OverallAssessment) == "" {
		return fmt.Errorf("%w: missing summary.overall_assessment", models.ErrParseFailed)
	}
	if len(r.CriteriaEvaluation) == 0 {
		return fmt.Errorf("%w: missing criteria_evaluation", models.ErrParseFailed)
	}
	return nil
}

func coerceResult(r *models.AnalysisResult) {
	if r.Summary.Score < 0 {
		r.Summary.Score = 0
	}
	if r.Summary.Score > 100 {
		r.Summary.Score = 100
	}
	r.Summary.ComplianceLevel = strings.ToUpper(strings.TrimSpace(r.Summary.ComplianceLevel))
	for i := range r.CriteriaEvaluation {
		r.CriteriaEvaluation[i].Status = strings.ToUpper(strings.TrimSpace(r.CriteriaEvaluation[i].Status))
	}
}

// Legacy German schema:
//
//	gesamtbewertung: { score, status, kritische_probleme }
//	zusammenfassung: overall assessment text
//	detailbewertung: [ { kriterium, name, bewertung, befund, auswirkung,
//	                     empfehlung, beispiele, schweregrad } ]
//	priorisierte_massnahmen: { sofort | kurzfristig | langfristig }
type legacyOverall struct {
	Score           int    `json:"score"`
	Status          string `json:"status"`
	ComplianceLevel string `json:"compliance_level"`
}

type legacyCriterion struct {
	Kriterium   string   `json:"kriterium"`
	Name        string   `json:"name"`
	Bewertung   string   `json:"bewertung"`
	Befund      string   `json:"befund"`
	Auswirkung  string   `json:"auswirkung"`
	Empfehlung  string   `json:"empfehlung"`
	Beispiele   []string `json:"beispiele"`
	Schweregrad string   `json:"schweregrad"`
}

type legacyAction struct {
	Titel               string   `json:"titel"`
	Title               string   `json:"title"`
	Beschreibung        string   `json:"beschreibung"`
	Aufwand             string   `json:"aufwand"`
	BetroffeneKriterien []string `json:"betroffene_kriterien"`
}

type legacyActions struct {
	Sofort      []legacyAction `json:"sofort"`
	Sofortige   []legacyAction `json:"sofortige_massnahmen"`
	Kurzfristig []legacyAction `json:"kurzfristig"`
	Langfristig []legacyAction `json:"langfristig"`
}

func canonicalizeLegacy(envelope map[string]json.RawMessage) *models.AnalysisResult {
	result := &models.AnalysisResult{}

	var overall legacyOverall
	if raw, ok := envelope["gesamtbewertung"]; ok {
		_ = json.Unmarshal(raw, &overall)
	}
	result.Summary.Score = overall.Score
	result.Summary.ComplianceLevel = legacyComplianceLevel(overall)

	var assessment string
	if raw, ok := envelope["zusammenfassung"]; ok {
		_ = json.Unmarshal(raw, &assessment)
	}
	result.Summary.OverallAssessment = assessment

	var details []legacyCriterion
	if raw, ok := envelope["detailbewertung"]; ok {
		_ = json.Unmarshal(raw, &details)
	}
	for _, d := range details {
		result.CriteriaEvaluation = append(result.CriteriaEvaluation, models.CriterionEvaluation{
			CriterionID:    d.Kriterium,
			Name:           d.Name,
			Status:         legacyStatus(d.Bewertung),
			Finding:        d.Befund,
			Impact:         d.Auswirkung,
			Recommendation: d.Empfehlung,
			Examples:       d.Beispiele,
			Severity:       d.Schweregrad,
		})
	}

	var actions legacyActions
	if raw, ok := envelope["priorisierte_massnahmen"]; ok {
		_ = json.Unmarshal(raw, &actions)
	}
	result.PriorityActions.Immediate = convertLegacyActions(append(actions.Sofort, actions.Sofortige...))
	result.PriorityActions.ShortTerm = convertLegacyActions(actions.Kurzfristig)
	result.PriorityActions.LongTerm = convertLegacyActions(actions.Langfristig)

	return result
}

func convertLegacyActions(in []legacyAction) []models.PriorityAction {
	var out []models.PriorityAction
	for _, a := range in {
		title := a.Titel
		if title == "" {
			title = a.Title
		}
		out = append(out, models.PriorityAction{
			Title:            title,
			Description:      a.Beschreibung,
			Effort:           a.Aufwand,
			AffectedCriteria: a.BetroffeneKriterien,
		})
	}
	return out
}

func legacyStatus(bewertung string) string {
	switch strings.ToUpper(strings.TrimSpace(bewertung)) {
	case "ERFUELLT", "ERFÜLLT":
		return models.CriterionPassed
	case "TEILWEISE":
		return models.CriterionPartial
	case "WARNUNG":
		return models.CriterionWarning
	case "NICHT_ERFUELLT", "NICHT_ERFÜLLT":
		return models.CriterionFailed
	default:
		return strings.ToUpper(strings.TrimSpace(bewertung))
	}
}

func legacyComplianceLevel(overall legacyOverall) string {
	if overall.ComplianceLevel != "" {
		return overall.ComplianceLevel
	}
	switch strings.ToUpper(strings.TrimSpace(overall.Status)) {
	case "GRÜN", "GRUEN":
		return models.ComplianceAA
	case "GELB":
		return models.CompliancePartial
	case "ROT":
		return models.ComplianceNone
	}
	// Fall back to the numeric thresholds
	switch {
	case overall.Score >= 98:
		return models.ComplianceAAA
	case overall.Score >= 80:
		return models.ComplianceAA
	case overall.Score >= 65:
		return models.ComplianceA
	case overall.Score >= 40:
		return models.CompliancePartial
	default:
		return models.ComplianceNone
	}
}
