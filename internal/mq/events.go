package mq

import "time"

// ReadingEvent is published after an ingested reading is committed.
type ReadingEvent struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	WaterLevel  float64   `json:"water_level"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Created     bool      `json:"created"`
	RequestID   string    `json:"request_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// SyncEvent is published after a sync run is committed.
type SyncEvent struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	TotalFetched int       `json:"total_fetched"`
	FinishedAt   time.Time `json:"finished_at"`
}

// IngestMessage is a raw reading delivered on the ingest queue. Reading
// fields mirror the HTTP ingest body.
type IngestMessage struct {
	RequestID  string    `json:"request_id"`
	ReceivedAt time.Time `json:"received_at"`
	Timestamp  string    `json:"timestamp"`
	DeviceID   string    `json:"device_id"`
	WaterLevel *float64  `json:"water_level"`
	Location   *string   `json:"location,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
}
