package model

import "time"

// Record is one entry of the append-only session log
type Record struct {
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord stamps a record with the current local time
func NewRecord(speaker, message string) Record {
	return Record{
		Speaker:   speaker,
		Message:   message,
		Timestamp: time.Now(),
	}
}
