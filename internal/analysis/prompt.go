// Package analysis builds the prompts sent to the generative model and turns
// its free-text replies into validated documents.
package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/kjstillabower/agroclima-service/internal/models"
)

// MaxPromptDays is the number of forecast days included in the risk prompt.
const MaxPromptDays = 15

const riskReplySkeleton = `{
  "analise_climatica": "texto da análise",
  "janela_plantio": { "recomendacao": "texto", "data_inicio": "YYYY-MM-DD", "data_fim": "YYYY-MM-DD" },
  "analise_risco": [ { "risco": "Nome", "descricao": "Descrição", "severidade": "Baixo|Médio|Alto" } ],
  "sugestao_pratica": "texto da sugestão",
  "resumo_geral": "texto do resumo"
}`

const cropReplySkeleton = `{
  "impacto_climatico": "texto",
  "vulnerabilidades": ["ponto 1", "ponto 2"],
  "praticas_sustentaveis": ["ponto 1", "ponto 2"]
}`

var (
	analysisSchema   = SchemaFor(&models.Analysis{})
	commentarySchema = SchemaFor(&models.CropCommentary{})
)

// promptDay is the compact day shape the model sees.
type promptDay struct {
	Date    string  `json:"data"`
	TempMax float64 `json:"temp_max"`
	TempMin float64 `json:"temp_min"`
	RainMM  float64 `json:"chuva_mm"`
}

// SchemaFor renders the JSON Schema of v, inlined and closed to extra keys.
func SchemaFor(v interface{}) string {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	b, err := json.MarshalIndent(r.Reflect(v), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BuildRiskPrompt asks for the five-part risk analysis of crop at the given
// coordinates, using at most MaxPromptDays of the forecast.
func BuildRiskPrompt(lat, lon float64, crop models.Crop, days []models.ForecastDay) (string, error) {
	if len(days) > MaxPromptDays {
		days = days[:MaxPromptDays]
	}
	compact := make([]promptDay, len(days))
	for i, d := range days {
		compact[i] = promptDay{Date: d.Date, TempMax: d.TempMax, TempMin: d.TempMin, RainMM: d.Precip}
	}
	forecastJSON, err := json.Marshal(compact)
	if err != nil {
		return "", fmt.Errorf("marshal forecast for prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString("Você é um engenheiro agrônomo especialista em análise de risco climático, focado na ODS 13.\n")
	b.WriteString("Sua tarefa é fornecer uma análise profissional e concisa para um agricultor, baseada na previsão do tempo.\n\n")
	fmt.Fprintf(&b, "**Localização:** Latitude %s, Longitude %s.\n", formatCoord(lat), formatCoord(lon))
	fmt.Fprintf(&b, "**Cultura Selecionada:** %s.\n", crop.Name)
	b.WriteString("**Requisitos da Cultura:**\n")
	fmt.Fprintf(&b, "- Clima Ideal: %s\n", orUnknown(crop.IdealClimate))
	fmt.Fprintf(&b, "- Solo Ideal (Referência): %s\n\n", orUnknown(crop.IdealSoil))
	fmt.Fprintf(&b, "**Dados de Previsão do Tempo (Próximos %d Dias):**\n%s\n\n", len(compact), forecastJSON)
	b.WriteString("**Sua Análise Deve Conter:**\n")
	b.WriteString("1. **Análise das Condições Climáticas:** Compare a previsão do tempo com o clima ideal para a cultura. Destaque os períodos favoráveis e desfavoráveis.\n")
	b.WriteString("2. **Recomendação de Plantio:** Com base na previsão de chuva e temperatura, identifique a melhor \"janela de plantio\" dentro do período previsto.\n")
	b.WriteString("3. **Análise de Risco Climático:** Identifique até 3 riscos principais (ex: estresse hídrico, risco de geada, calor excessivo, erosão por chuvas intensas). Atribua um nível de severidade (Baixo, Médio, Alto).\n")
	b.WriteString("4. **Sugestão Prática (ODS 13):** Forneça uma sugestão acionável focada em resiliência climática.\n")
	b.WriteString("5. **Resumo Geral:** Uma conclusão curta (1-2 frases).\n\n")
	b.WriteString("**Formato da Resposta (Obrigatório):**\n")
	b.WriteString("Responda APENAS com um objeto JSON válido.\n")
	b.WriteString(riskReplySkeleton)
	b.WriteString("\n\nO objeto deve obedecer a este JSON Schema:\n")
	b.WriteString(analysisSchema)
	b.WriteString("\n")
	return b.String(), nil
}

// BuildCropPrompt asks for the sustainability commentary of crop.
func BuildCropPrompt(crop models.Crop) string {
	var b strings.Builder
	b.WriteString("Você é um especialista em agronomia e sustentabilidade, focado na ODS 13 (Ação Contra a Mudança Global do Clima).\n")
	fmt.Fprintf(&b, "Analise a cultura de %q e gere um resumo conciso para um agricultor.\n\n", crop.Name)
	b.WriteString("**Informações da Cultura:**\n")
	fmt.Fprintf(&b, "- Descrição: %s\n", orUnknown(crop.Description))
	fmt.Fprintf(&b, "- Solo Ideal: %s\n\n", orUnknown(crop.IdealSoil))
	b.WriteString("**Sua Análise Deve Conter (em formato JSON):**\n")
	fmt.Fprintf(&b, "1. **impacto_climatico:** Um parágrafo curto sobre o impacto geral do cultivo de %s no clima.\n", crop.Name)
	fmt.Fprintf(&b, "2. **vulnerabilidades:** Liste em 2 ou 3 pontos como as mudanças climáticas afetam a produção de %s.\n", crop.Name)
	fmt.Fprintf(&b, "3. **praticas_sustentaveis:** Liste em 2 ou 3 pontos práticas agrícolas sustentáveis para o cultivo de %s.\n\n", crop.Name)
	b.WriteString("**Formato da Resposta (Obrigatório):**\n")
	b.WriteString("Responda APENAS com um objeto JSON válido.\n")
	b.WriteString(cropReplySkeleton)
	b.WriteString("\n\nO objeto deve obedecer a este JSON Schema:\n")
	b.WriteString(commentarySchema)
	b.WriteString("\n")
	return b.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "não informado"
	}
	return s
}
