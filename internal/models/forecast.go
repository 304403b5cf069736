package models

// ForecastDay mirrors a Visual Crossing timeline day. Field names are kept
// as the provider sends them so chart clients can read them directly.
type ForecastDay struct {
	Date        string  `json:"datetime"`
	Epoch       int64   `json:"datetimeEpoch"`
	TempMax     float64 `json:"tempmax"`
	TempMin     float64 `json:"tempmin"`
	Temp        float64 `json:"temp"`
	Precip      float64 `json:"precip"`
	PrecipProb  float64 `json:"precipprob"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windspeed"`
	Conditions  string  `json:"conditions,omitempty"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
}

// Forecast is a multi-day forecast for one coordinate pair.
type Forecast struct {
	ResolvedAddress string        `json:"resolvedAddress"`
	Days            []ForecastDay `json:"days"`
}
