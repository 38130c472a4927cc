package entities

import "time"

// DoseEntry is the canonical record of one administration. Amount is always
// stored in milligrams.
type DoseEntry struct {
	Substance string    `json:"substance"`
	Amount    float64   `json:"amount"`
	Route     string    `json:"route"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}
