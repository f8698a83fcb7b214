package entities

// SymptomAnalysisRequest is sent to the optional AI analysis provider
type SymptomAnalysisRequest struct {
	Symptoms      []string `json:"symptoms"`
	PatientAge    *int     `json:"patient_age,omitempty"`
	PatientGender string   `json:"patient_gender,omitempty"`
}

// PossibleDiagnosis is one candidate returned by the AI provider
type PossibleDiagnosis struct {
	Name       string  `json:"name"`
	Code       string  `json:"code,omitempty"`
	Confidence float64 `json:"confidence"`
}

// SymptomAnalysis is the AI provider's answer
type SymptomAnalysis struct {
	PossibleDiagnoses []PossibleDiagnosis `json:"possible_diagnoses"`
}
