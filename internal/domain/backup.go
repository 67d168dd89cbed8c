package domain

import "time"

// Backup is the exported backup file format: one JSON document holding every
// collection. Restoring re-inserts every document through the repository's
// create path, so documents receive new store ids and re-importing the same
// backup twice duplicates content.
type Backup struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	CreatedBy   string             `json:"createdBy"`
	Version     string             `json:"version"`
	Collections map[Kind][]RawItem `json:"collections"`
}
