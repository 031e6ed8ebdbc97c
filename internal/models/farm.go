package models

import "time"

type FarmProfile struct {
	FarmID         string          `json:"farmId"`
	OwnerID        string          `json:"ownerId"`
	Name           string          `json:"name"`
	Location       string          `json:"location"`
	Region         string          `json:"region,omitempty"`
	Coordinates    *Coordinates    `json:"coordinates,omitempty"`
	Boundary       *GeoJSONPolygon `json:"boundary,omitempty"`
	BoundaryWKT    string          `json:"boundaryWkt,omitempty"`
	AreaHectares   float64         `json:"areaHectares"`
	SoilType       string          `json:"soilType"`
	SoilPH         float64         `json:"soilPh,omitempty"`
	IrrigationType string          `json:"irrigationType,omitempty"`
	Crops          []string        `json:"crops"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// LocationQuery is what the weather provider is asked for. Coordinates win
// over the free-text location when both are known.
func (p *FarmProfile) LocationQuery() string {
	if p.Location != "" {
		return p.Location
	}
	if p.Coordinates != nil {
		return FormatCoordinates(*p.Coordinates)
	}
	return ""
}
