package models

// GreenCoverReport is the response body for GET /city/{city}/green.
type GreenCoverReport struct {
	City                 string  `json:"city"`
	Location             Point   `json:"location"`
	AvgNDVI              float64 `json:"avg_ndvi"`
	GreenCoverPercentage float64 `json:"green_cover_percentage"`
	DataSource           string  `json:"data_source"`
}

// HeatMapReport is the response body for GET /city/{city}/heatmap.
type HeatMapReport struct {
	City          string  `json:"city"`
	Location      Point   `json:"location"`
	AvgLSTCelsius float64 `json:"avg_lst_celsius"`
	DataSource    string  `json:"data_source"`
}

// Capability describes one declared analysis kind.
type Capability struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Implemented bool   `json:"implemented"`
}

// Capabilities is the response body for GET /capabilities. Clients must treat
// it as the authoritative list of analysis kinds rather than hardcoding one.
type Capabilities struct {
	Kinds []Capability `json:"kinds"`
}
