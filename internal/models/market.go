package models

import "time"

type MarketPriceSample struct {
	Crop          string     `json:"crop"`
	Region        string     `json:"region"`
	CurrentPrice  float64    `json:"currentPrice"`
	PreviousPrice float64    `json:"previousPrice"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"changePercent"`
	Unit          string     `json:"unit"`
	Timestamp     time.Time  `json:"timestamp"`
	Source        DataSource `json:"source"`
}

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendStable  Trend = "stable"
)

type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type MarketTrend struct {
	Crop          string       `json:"crop"`
	Timeframe     string       `json:"timeframe"`
	Series        []PricePoint `json:"series"`
	Trend         Trend        `json:"trend"`
	ChangePercent float64      `json:"changePercent"`
	Volatility    float64      `json:"volatility"`
	Average       float64      `json:"average"`
	High          float64      `json:"high"`
	Low           float64      `json:"low"`
	Source        DataSource   `json:"source"`
}

type SupplyStatus string

const (
	SupplySurplus  SupplyStatus = "surplus"
	SupplyDeficit  SupplyStatus = "deficit"
	SupplyBalanced SupplyStatus = "balanced"
)

type DemandSupplyAnalysis struct {
	Crop       string       `json:"crop"`
	Production float64      `json:"production"` // thousand tonnes
	Demand     float64      `json:"demand"`
	Ratio      float64      `json:"ratio"`
	Status     SupplyStatus `json:"status"`
	Outlook    string       `json:"outlook"`
	Source     DataSource   `json:"source"`
}
