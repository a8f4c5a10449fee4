package types

import "github.com/google/uuid"

// City matches the cities table structure. The dataset is read-only for the
// lifetime of the process.
type City struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Region      string    `json:"region"`
	Description string    `json:"description"`
	MonthlyCost int64     `json:"monthly_cost"` // KRW
	Rating      float64   `json:"rating"`
	NomadsNow   int       `json:"nomads_now"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// CityListResponse is the payload of GET /api/v1/cities.
type CityListResponse struct {
	Cities  []City   `json:"cities"`
	Count   int      `json:"count"`
	Query   string   `json:"q"`
	Region  string   `json:"region"`
	Sort    string   `json:"sort"`
	Regions []string `json:"regions"`
}
