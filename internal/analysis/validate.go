package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/agroclima-service/internal/models"
)

// ErrInvalidAnalysis is returned when a decoded reply is missing required
// content or carries values outside the contract.
var ErrInvalidAnalysis = errors.New("invalid analysis")

const (
	maxRisks   = 3
	maxBullets = 3
	dateLayout = "2006-01-02"
)

// Validate checks the five analysis sections. Extra risks beyond three are
// dropped, keeping the order the model gave.
func Validate(a *models.Analysis) error {
	if strings.TrimSpace(a.ClimateAnalysis) == "" {
		return fmt.Errorf("%w: analise_climatica is empty", ErrInvalidAnalysis)
	}
	if a.PlantingWindow == nil {
		return fmt.Errorf("%w: janela_plantio is missing", ErrInvalidAnalysis)
	}
	if err := validateWindow(a.PlantingWindow); err != nil {
		return err
	}
	if a.Risks == nil {
		return fmt.Errorf("%w: analise_risco is missing", ErrInvalidAnalysis)
	}
	if len(a.Risks) > maxRisks {
		a.Risks = a.Risks[:maxRisks]
	}
	for i, r := range a.Risks {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: analise_risco[%d].risco is empty", ErrInvalidAnalysis, i)
		}
		if !r.Severity.Valid() {
			return fmt.Errorf("%w: analise_risco[%d].severidade %q", ErrInvalidAnalysis, i, r.Severity)
		}
	}
	if strings.TrimSpace(a.PracticalAdvice) == "" {
		return fmt.Errorf("%w: sugestao_pratica is empty", ErrInvalidAnalysis)
	}
	if strings.TrimSpace(a.OverallSummary) == "" {
		return fmt.Errorf("%w: resumo_geral is empty", ErrInvalidAnalysis)
	}
	return nil
}

// validateWindow requires a recommendation. Dates are optional and passed
// through as the model wrote them; only a YYYY-MM-DD pair that ends before it
// starts is rejected.
func validateWindow(w *models.PlantingWindow) error {
	if strings.TrimSpace(w.Recommendation) == "" {
		return fmt.Errorf("%w: janela_plantio.recomendacao is empty", ErrInvalidAnalysis)
	}
	start, startErr := time.Parse(dateLayout, strings.TrimSpace(w.StartDate))
	end, endErr := time.Parse(dateLayout, strings.TrimSpace(w.EndDate))
	if startErr == nil && endErr == nil && end.Before(start) {
		return fmt.Errorf("%w: janela_plantio ends before it starts", ErrInvalidAnalysis)
	}
	return nil
}

// ValidateCommentary requires an impact paragraph and at least one bullet in
// each list. Blank bullets are dropped and lists are capped at three.
func ValidateCommentary(c *models.CropCommentary) error {
	if strings.TrimSpace(c.ClimateImpact) == "" {
		return fmt.Errorf("%w: impacto_climatico is empty", ErrInvalidAnalysis)
	}
	c.Vulnerabilities = cleanBullets(c.Vulnerabilities)
	if len(c.Vulnerabilities) == 0 {
		return fmt.Errorf("%w: vulnerabilidades is empty", ErrInvalidAnalysis)
	}
	c.SustainablePractices = cleanBullets(c.SustainablePractices)
	if len(c.SustainablePractices) == 0 {
		return fmt.Errorf("%w: praticas_sustentaveis is empty", ErrInvalidAnalysis)
	}
	return nil
}

func cleanBullets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxBullets {
			break
		}
	}
	return out
}
