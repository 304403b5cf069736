package models

import (
	"encoding/json"
	"strings"
)

// Severity is the ordinal risk label produced by the analysis.
type Severity string

const (
	SeverityLow    Severity = "Baixo"
	SeverityMedium Severity = "Médio"
	SeverityHigh   Severity = "Alto"
)

// Rank orders severities from 1 (low) to 3 (high). Unknown labels rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known labels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// UnmarshalJSON accepts the canonical labels plus common variants the model
// emits (unaccented, lowercase, English). Anything else is kept verbatim so
// validation can reject it.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "baixo", "baixa", "low":
		*s = SeverityLow
	case "médio", "medio", "média", "media", "medium":
		*s = SeverityMedium
	case "alto", "alta", "high":
		*s = SeverityHigh
	default:
		*s = Severity(raw)
	}
	return nil
}

// PlantingWindow is the recommended sowing period inside the forecast range.
type PlantingWindow struct {
	Recommendation string `json:"recomendacao" jsonschema_description:"Recomendação textual da janela de plantio"`
	StartDate      string `json:"data_inicio" jsonschema_description:"Data de início no formato YYYY-MM-DD"`
	EndDate        string `json:"data_fim" jsonschema_description:"Data de fim no formato YYYY-MM-DD"`
}

// Risk is one climate risk identified for the crop.
type Risk struct {
	Name        string   `json:"risco" jsonschema_description:"Nome curto do risco"`
	Description string   `json:"descricao" jsonschema_description:"Descrição do risco"`
	Severity    Severity `json:"severidade" jsonschema:"enum=Baixo,enum=Médio,enum=Alto"`
}

// Analysis is the agronomic risk analysis returned by the generative model.
// JSON keys follow the Portuguese contract the model is instructed to use.
type Analysis struct {
	ClimateAnalysis string          `json:"analise_climatica" jsonschema_description:"Comparação da previsão com o clima ideal da cultura"`
	PlantingWindow  *PlantingWindow `json:"janela_plantio"`
	Risks           []Risk          `json:"analise_risco" jsonschema:"maxItems=3"`
	PracticalAdvice string          `json:"sugestao_pratica" jsonschema_description:"Sugestão acionável de resiliência climática"`
	OverallSummary  string          `json:"resumo_geral" jsonschema_description:"Conclusão curta de 1 a 2 frases"`
}

// CropCommentary is the sustainability commentary generated for a crop.
type CropCommentary struct {
	ClimateImpact        string   `json:"impacto_climatico" jsonschema_description:"Parágrafo curto sobre o impacto do cultivo no clima"`
	Vulnerabilities      []string `json:"vulnerabilidades" jsonschema:"minItems=2,maxItems=3"`
	SustainablePractices []string `json:"praticas_sustentaveis" jsonschema:"minItems=2,maxItems=3"`
}

// Prediction is the response body of a prediction request.
type Prediction struct {
	Location string        `json:"location"`
	Forecast []ForecastDay `json:"forecast"`
	Analysis Analysis      `json:"analysis"`
	Crop     Crop          `json:"crop"`
}

// CropInfo is the response body of a crop info request.
type CropInfo struct {
	Crop       Crop           `json:"crop"`
	Commentary CropCommentary `json:"commentary"`
}
