package model

import "time"

// Location is a plain lat/lon pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SymptomReport is a community symptom report.
// Only the severity is computed here, storing the report is up to the caller.
type SymptomReport struct {
	ID        string          `json:"report_id"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Location  *Location       `json:"location,omitempty"`
	Symptoms  map[string]bool `json:"symptoms"`
	Severity  Risk            `json:"severity"`
	Verified  bool            `json:"verified"`
}
