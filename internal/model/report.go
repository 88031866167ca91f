package model

import "time"

// RowError is one bounded error sample from ingestion.
type RowError struct {
	FileName  string `json:"file_name"`
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason"`
}

// FileReport summarizes one file within an upload.
type FileReport struct {
	FileName      string `json:"file_name"`
	TotalRows     int    `json:"total_rows"`
	Inserted      int    `json:"inserted"`
	Skipped       int    `json:"skipped"`
	WarningsCount int    `json:"warnings_count"`
}

// UploadSummary is the aggregate result of one ingestion batch.
type UploadSummary struct {
	UploadID       string       `json:"upload_id"`
	Files          []FileReport `json:"files"`
	Errors         []RowError   `json:"errors,omitempty"` // capped sample
	Inserted       int          `json:"inserted"`
	Invalid        int          `json:"invalid"`
	Duplicates     int          `json:"duplicates"`
	TotalProcessed int          `json:"total_processed"`
}

// Upload is one registered ingestion batch.
type Upload struct {
	ID         string    `json:"id"`
	Label      string    `json:"label,omitempty"`
	FileCount  int       `json:"file_count"`
	Inserted   int       `json:"inserted"`
	Invalid    int       `json:"invalid"`
	Duplicates int       `json:"duplicates"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventSummary holds grouped counts for an upload under a filter.
type EventSummary struct {
	Total           int               `json:"total"`
	Duplicates      int               `json:"duplicates"`
	ByEventType     map[string]int    `json:"by_event_type"`
	ByDirection     map[string]int    `json:"by_direction"`
	DistinctParties int               `json:"distinct_parties"`
	FirstSeen       *time.Time        `json:"first_seen,omitempty"`
	LastSeen        *time.Time        `json:"last_seen,omitempty"`
}
