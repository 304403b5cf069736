package models

// State is a Brazilian federative unit.
type State struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

// Municipality is a city with the coordinates used for forecasts.
type Municipality struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CropSummary is the list projection of a crop.
type CropSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Crop is the full reference row for a crop (semente).
type Crop struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	ScientificName  string `json:"scientificName"`
	Description     string `json:"description"`
	IdealClimate    string `json:"idealClimate"`
	IdealSoil       string `json:"idealSoil"`
	FertilizerNotes string `json:"fertilizerNotes"`
}

// PricePoint is one quote of a crop's bag price in BRL.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PriceSeries is the quote history for one crop, oldest first.
type PriceSeries struct {
	CropID   int          `json:"cropId"`
	CropName string       `json:"cropName"`
	Prices   []PricePoint `json:"prices"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId"`
}
