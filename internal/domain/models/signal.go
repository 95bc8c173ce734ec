package models

import "time"

// Signal is a scored observation. Signals are append-only.
type Signal struct {
	ID          string        `json:"id"`
	AssetSymbol string        `json:"asset_symbol"`
	Type        Kind          `json:"type"`
	Strength    int           `json:"strength"`  // 0..100
	Magnitude   float64       `json:"magnitude"` // original observation magnitude
	Description string        `json:"description"`
	Sources     []SourceCount `json:"sources,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

type SignalQuery struct {
	Assets []string
	Limit  int
	Offset int
}
