package models

import "time"

type SyncTask struct {
	ID            int64
	TaskType      string
	ReservationID int64
	Payload       string
	Status        string
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	NextRetryAt   *time.Time
}
