package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/agroclima-service/internal/models"
	"github.com/kjstillabower/agroclima-service/internal/observability"
)

var (
	// ErrNoJSONObject means the reply has no '{' ... '}' span.
	ErrNoJSONObject = errors.New("no JSON object in model reply")
	// ErrMalformedJSON means the span was found but does not parse.
	ErrMalformedJSON = errors.New("malformed JSON in model reply")
)

// ExtractObject returns the substring from the first '{' to the last '}'
// inclusive. It does not check that the result parses.
func ExtractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return strings.TrimSpace(text[start : end+1]), nil
}

// ParseAnalysis extracts, decodes and validates a risk analysis reply.
func ParseAnalysis(text string) (models.Analysis, error) {
	var a models.Analysis
	if err := decode(text, &a); err != nil {
		return models.Analysis{}, err
	}
	if err := Validate(&a); err != nil {
		observability.AIExtractionFailuresTotal.WithLabelValues("schema").Inc()
		return models.Analysis{}, err
	}
	return a, nil
}

// ParseCommentary extracts, decodes and validates a crop commentary reply.
func ParseCommentary(text string) (models.CropCommentary, error) {
	var c models.CropCommentary
	if err := decode(text, &c); err != nil {
		return models.CropCommentary{}, err
	}
	if err := ValidateCommentary(&c); err != nil {
		observability.AIExtractionFailuresTotal.WithLabelValues("schema").Inc()
		return models.CropCommentary{}, err
	}
	return c, nil
}

func decode(text string, v interface{}) error {
	obj, err := ExtractObject(text)
	if err != nil {
		observability.AIExtractionFailuresTotal.WithLabelValues("no_object").Inc()
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		observability.AIExtractionFailuresTotal.WithLabelValues("invalid_json").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}
