package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/agroclima-service/internal/models"
)

const validReply = `Claro! Segue a análise:
` + "```json" + `
{
  "analise_climatica": "Temperaturas dentro da faixa ideal para a soja.",
  "janela_plantio": {"recomendacao": "Plantar após as chuvas do dia 3.", "data_inicio": "2024-03-03", "data_fim": "2024-03-08"},
  "analise_risco": [
    {"risco": "Estresse hídrico", "descricao": "Poucos dias de chuva no fim do período.", "severidade": "Medio"},
    {"risco": "Calor excessivo", "descricao": "Máximas acima de 34 °C.", "severidade": "alto"}
  ],
  "sugestao_pratica": "Use cobertura morta para reter umidade.",
  "resumo_geral": "Condições favoráveis com atenção à umidade do solo."
}
` + "```" + `
Boa safra!`

func soy() models.Crop {
	return models.Crop{ID: 7, Name: "Soja", IdealClimate: "tropical", IdealSoil: "Latossolo", Description: "Leguminosa"}
}

func days(n int) []models.ForecastDay {
	out := make([]models.ForecastDay, n)
	for i := range out {
		out[i] = models.ForecastDay{Date: fmt.Sprintf("2024-03-%02d", i+1), TempMax: 31, TempMin: 19.5, Precip: 1.25}
	}
	return out
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"embedded", "Here is the result: {\"a\":1} done", `{"a":1}`, nil},
		{"bare", `{"a":1}`, `{"a":1}`, nil},
		{"nested keeps outer span", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, nil},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`, nil},
		{"no braces", "sem json aqui", "", ErrNoJSONObject},
		{"only open", "{ incompleto", "", ErrNoJSONObject},
		{"reversed", "} antes {", "", ErrNoJSONObject},
		{"empty", "", "", ErrNoJSONObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAnalysis_Valid(t *testing.T) {
	a, err := ParseAnalysis(validReply)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ClimateAnalysis)
	require.NotNil(t, a.PlantingWindow)
	assert.Equal(t, "2024-03-03", a.PlantingWindow.StartDate)
	require.Len(t, a.Risks, 2)
	assert.Equal(t, models.SeverityMedium, a.Risks[0].Severity)
	assert.Equal(t, models.SeverityHigh, a.Risks[1].Severity)
	assert.NotEmpty(t, a.PracticalAdvice)
	assert.NotEmpty(t, a.OverallSummary)
}

func TestParseAnalysis_SerializesCanonicalKeys(t *testing.T) {
	a, err := ParseAnalysis(validReply)
	require.NoError(t, err)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"analise_climatica", "janela_plantio", "analise_risco", "sugestao_pratica", "resumo_geral"} {
		assert.Contains(t, m, k)
	}
	assert.Contains(t, string(m["analise_risco"]), `"Médio"`)
}

func TestParseAnalysis_NoObject(t *testing.T) {
	_, err := ParseAnalysis("Desculpe, não consigo ajudar.")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestParseAnalysis_MalformedJSON(t *testing.T) {
	_, err := ParseAnalysis(`resposta: {"analise_climatica": "ok", } fim`)
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestParseAnalysis_SchemaViolations(t *testing.T) {
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"analise_climatica": "ok",
			"janela_plantio":    map[string]interface{}{"recomendacao": "r", "data_inicio": "2024-03-01", "data_fim": "2024-03-05"},
			"analise_risco":     []map[string]interface{}{{"risco": "Geada", "descricao": "d", "severidade": "Baixo"}},
			"sugestao_pratica":  "s",
			"resumo_geral":      "g",
		}
	}
	tests := []struct {
		name   string
		mutate func(m map[string]interface{})
	}{
		{"missing climate", func(m map[string]interface{}) { delete(m, "analise_climatica") }},
		{"missing window", func(m map[string]interface{}) { delete(m, "janela_plantio") }},
		{"window without recommendation", func(m map[string]interface{}) {
			m["janela_plantio"] = map[string]interface{}{"data_inicio": "2024-03-01"}
		}},
		{"window reversed", func(m map[string]interface{}) {
			m["janela_plantio"] = map[string]interface{}{"recomendacao": "r", "data_inicio": "2024-03-09", "data_fim": "2024-03-01"}
		}},
		{"missing risks", func(m map[string]interface{}) { delete(m, "analise_risco") }},
		{"unknown severity", func(m map[string]interface{}) {
			m["analise_risco"] = []map[string]interface{}{{"risco": "Geada", "descricao": "d", "severidade": "Crítico"}}
		}},
		{"unnamed risk", func(m map[string]interface{}) {
			m["analise_risco"] = []map[string]interface{}{{"risco": " ", "descricao": "d", "severidade": "Alto"}}
		}},
		{"missing advice", func(m map[string]interface{}) { m["sugestao_pratica"] = "" }},
		{"missing summary", func(m map[string]interface{}) { delete(m, "resumo_geral") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			b, err := json.Marshal(m)
			require.NoError(t, err)

			_, err = ParseAnalysis(string(b))
			assert.ErrorIs(t, err, ErrInvalidAnalysis)
		})
	}
}

func TestValidate_NonISODatesPassThrough(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"day first", "15/10/2025", "20/10/2025"},
		{"day first reversed", "20/10/2025", "15/10/2025"},
		{"mixed formats", "2025-10-20", "15/10/2025"},
		{"free text", "início de outubro", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := models.Analysis{
				ClimateAnalysis: "ok",
				PlantingWindow:  &models.PlantingWindow{Recommendation: "r", StartDate: tt.start, EndDate: tt.end},
				Risks:           []models.Risk{},
				PracticalAdvice: "s",
				OverallSummary:  "g",
			}
			require.NoError(t, Validate(&a))
			assert.Equal(t, tt.start, a.PlantingWindow.StartDate)
			assert.Equal(t, tt.end, a.PlantingWindow.EndDate)
		})
	}
}

func TestParseAnalysis_KeepsDayFirstDates(t *testing.T) {
	reply := `{"analise_climatica": "ok",
 "janela_plantio": {"recomendacao": "r", "data_inicio": "15/10/2025", "data_fim": "22/10/2025"},
 "analise_risco": [], "sugestao_pratica": "s", "resumo_geral": "g"}`

	a, err := ParseAnalysis(reply)
	require.NoError(t, err)
	assert.Equal(t, "15/10/2025", a.PlantingWindow.StartDate)
	assert.Equal(t, "22/10/2025", a.PlantingWindow.EndDate)
}

func TestValidate_EmptyRisksAllowed(t *testing.T) {
	a := models.Analysis{
		ClimateAnalysis: "ok",
		PlantingWindow:  &models.PlantingWindow{Recommendation: "sem janela favorável"},
		Risks:           []models.Risk{},
		PracticalAdvice: "s",
		OverallSummary:  "g",
	}
	assert.NoError(t, Validate(&a))
}

func TestValidate_CapsRisksAtThree(t *testing.T) {
	risk := models.Risk{Name: "r", Description: "d", Severity: models.SeverityLow}
	a := models.Analysis{
		ClimateAnalysis: "ok",
		PlantingWindow:  &models.PlantingWindow{Recommendation: "r"},
		Risks:           []models.Risk{risk, risk, risk, risk, risk},
		PracticalAdvice: "s",
		OverallSummary:  "g",
	}
	require.NoError(t, Validate(&a))
	assert.Len(t, a.Risks, 3)
}

func TestParseCommentary(t *testing.T) {
	reply := `Resposta: {"impacto_climatico": "Emissões moderadas.", "vulnerabilidades": ["Seca", " ", "Calor", "Pragas", "Geada"], "praticas_sustentaveis": ["Plantio direto"]}`
	c, err := ParseCommentary(reply)
	require.NoError(t, err)
	assert.Equal(t, "Emissões moderadas.", c.ClimateImpact)
	assert.Equal(t, []string{"Seca", "Calor", "Pragas"}, c.Vulnerabilities)
	assert.Equal(t, []string{"Plantio direto"}, c.SustainablePractices)
}

func TestParseCommentary_Invalid(t *testing.T) {
	_, err := ParseCommentary(`{"impacto_climatico": "", "vulnerabilidades": ["a"], "praticas_sustentaveis": ["b"]}`)
	assert.ErrorIs(t, err, ErrInvalidAnalysis)

	_, err = ParseCommentary(`{"impacto_climatico": "x", "vulnerabilidades": [], "praticas_sustentaveis": ["b"]}`)
	assert.ErrorIs(t, err, ErrInvalidAnalysis)

	_, err = ParseCommentary("nada")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestBuildRiskPrompt(t *testing.T) {
	p, err := BuildRiskPrompt(-23.3045, -51.1696, soy(), days(20))
	require.NoError(t, err)

	assert.Contains(t, p, "Latitude -23.3045, Longitude -51.1696")
	assert.Contains(t, p, "**Cultura Selecionada:** Soja.")
	assert.Contains(t, p, "Clima Ideal: tropical")
	assert.Contains(t, p, `{"data":"2024-03-01","temp_max":31,"temp_min":19.5,"chuva_mm":1.25}`)
	assert.Contains(t, p, `"2024-03-15"`)
	assert.NotContains(t, p, `"2024-03-16"`)
	assert.Contains(t, p, "Próximos 15 Dias")
	assert.Contains(t, p, `"resumo_geral": "texto do resumo"`)
	assert.Contains(t, p, `"$schema"`)
}

func TestBuildRiskPrompt_ZeroCoordinatesAndFewDays(t *testing.T) {
	crop := soy()
	crop.IdealSoil = ""
	p, err := BuildRiskPrompt(0, 0, crop, days(3))
	require.NoError(t, err)
	assert.Contains(t, p, "Latitude 0, Longitude 0")
	assert.Contains(t, p, "Próximos 3 Dias")
	assert.Contains(t, p, "Solo Ideal (Referência): não informado")
}

func TestBuildCropPrompt(t *testing.T) {
	p := BuildCropPrompt(soy())
	assert.Contains(t, p, `Analise a cultura de "Soja"`)
	assert.Contains(t, p, "Descrição: Leguminosa")
	assert.Contains(t, p, `"praticas_sustentaveis": ["ponto 1", "ponto 2"]`)
	assert.True(t, strings.Contains(p, "impacto_climatico"))
}

func TestSchemaFor_Analysis(t *testing.T) {
	var schema struct {
		Type       string                     `json:"type"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(SchemaFor(&models.Analysis{})), &schema))

	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"analise_climatica", "janela_plantio", "analise_risco", "sugestao_pratica", "resumo_geral"}, schema.Required)
	assert.Contains(t, string(schema.Properties["analise_risco"]), `"maxItems": 3`)
	assert.Contains(t, string(schema.Properties["analise_risco"]), "Médio")
}
