package models

import "time"

// WeatherWarning is one condition derived from agronomic indices that is
// worth pushing to a farm's subscribers.
type WeatherWarning struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// AdvisoryRun reports what a farm advisory pass sent.
type AdvisoryRun struct {
	FarmID          string           `json:"farmId"`
	Warnings        []WeatherWarning `json:"warnings"`
	AlertRecipients int              `json:"alertRecipients"`
	AdvisoryCrop    string           `json:"advisoryCrop,omitempty"`
	AdvisorySent    bool             `json:"advisorySent"`
	Skipped         []string         `json:"skipped,omitempty"`
	WeatherSource   DataSource       `json:"weatherSource,omitempty"`
	RanAt           time.Time        `json:"ranAt"`
}
