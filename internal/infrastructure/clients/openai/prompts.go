package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
)

const symptomAnalysisSystemPrompt = `You are a clinical coding assistant for a Brazilian primary care platform. Given a list of symptoms, return ONLY valid JSON with this schema:
{
  "possible_diagnoses": [
    {
      "name": string (diagnosis name in Portuguese, as it appears in CID-10),
      "code": string (CID-10 code such as "J11" or "A09.9", empty when unsure),
      "confidence": number (0 to 1)
    }
  ]
}
Return at most 5 diagnoses ordered by confidence. Do not include treatment advice.`

const maxPossibleDiagnoses = 5

type symptomAnalysisPayload struct {
	PossibleDiagnoses []entities.PossibleDiagnosis `json:"possible_diagnoses"`
}

func buildSymptomAnalysisUserPrompt(req entities.SymptomAnalysisRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(req.Symptoms, ", "))
	if req.PatientAge != nil {
		fmt.Fprintf(&b, "Patient age: %d\n", *req.PatientAge)
	}
	if req.PatientGender != "" {
		fmt.Fprintf(&b, "Patient gender: %s\n", req.PatientGender)
	}
	return b.String()
}

// stripCodeFence removes a markdown fence around the model output
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func parseSymptomAnalysisPayload(data []byte) (*entities.SymptomAnalysis, error) {
	var payload symptomAnalysisPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse symptom analysis payload: %w", err)
	}

	diagnoses := make([]entities.PossibleDiagnosis, 0, len(payload.PossibleDiagnoses))
	for _, d := range payload.PossibleDiagnoses {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			continue
		}
		d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
		if d.Confidence < 0 {
			d.Confidence = 0
		} else if d.Confidence > 1 {
			d.Confidence = 1
		}
		diagnoses = append(diagnoses, d)
		if len(diagnoses) == maxPossibleDiagnoses {
			break
		}
	}
	return &entities.SymptomAnalysis{PossibleDiagnoses: diagnoses}, nil
}
