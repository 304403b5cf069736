package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrMissingFields is returned when lat, lon or the crop id is absent.
var ErrMissingFields = errors.New("lat, lon and crop id are required")

// ErrCoordinatesOutOfRange is returned when |lat| > 90 or |lon| > 180.
var ErrCoordinatesOutOfRange = errors.New("coordinates out of range")

// ErrInvalidField is returned when a field is present but not a usable number,
// or when the body is not a JSON object.
var ErrInvalidField = errors.New("invalid field")

// ErrInvalidID is returned when a path identifier is not a positive integer.
var ErrInvalidID = errors.New("invalid id")

// MaxBodyBytes bounds the prediction request body.
const MaxBodyBytes = 1 << 16

// PredictionRequest is a validated prediction input.
type PredictionRequest struct {
	Lat    float64
	Lon    float64
	CropID int
}

// number accepts a JSON number or a numeric string. Null and "" count as absent.
type number struct {
	set   bool
	value float64
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrInvalidField, s)
		}
		return n.assign(v)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %s is not a number", ErrInvalidField, data)
	}
	return n.assign(v)
}

func (n *number) assign(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: non-finite number", ErrInvalidField)
	}
	n.set, n.value = true, v
	return nil
}

type predictionBody struct {
	Lat       number `json:"lat"`
	Lon       number `json:"lon"`
	CropID    number `json:"cropId"`
	SementeID number `json:"sementeId"`
}

// ParsePredictionRequest decodes and validates a prediction body. The crop id
// may be sent as cropId or sementeId. Zero is a valid coordinate.
func ParsePredictionRequest(r io.Reader) (PredictionRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return PredictionRequest{}, fmt.Errorf("read body: %w", err)
	}
	if len(raw) > MaxBodyBytes {
		return PredictionRequest{}, fmt.Errorf("%w: body too large", ErrInvalidField)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return PredictionRequest{}, ErrMissingFields
	}

	var body predictionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		if errors.Is(err, ErrInvalidField) {
			return PredictionRequest{}, err
		}
		return PredictionRequest{}, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	crop := body.CropID
	if !crop.set {
		crop = body.SementeID
	}
	if !body.Lat.set || !body.Lon.set || !crop.set {
		return PredictionRequest{}, ErrMissingFields
	}
	if math.Abs(body.Lat.value) > 90 || math.Abs(body.Lon.value) > 180 {
		return PredictionRequest{}, fmt.Errorf("%w: lat=%v lon=%v", ErrCoordinatesOutOfRange, body.Lat.value, body.Lon.value)
	}
	if crop.value != math.Trunc(crop.value) || crop.value <= 0 || crop.value > math.MaxInt32 {
		return PredictionRequest{}, fmt.Errorf("%w: crop id %v", ErrInvalidField, crop.value)
	}

	return PredictionRequest{Lat: body.Lat.value, Lon: body.Lon.value, CropID: int(crop.value)}, nil
}

// ParseID parses a positive integer path parameter.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}
