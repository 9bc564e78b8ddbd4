package models

import "time"

// DayAvailability lists the still-free slots of one table on one date.
type DayAvailability struct {
	Date      time.Time `json:"date"`
	TableID   int64     `json:"table_id"`
	FreeSlots []string  `json:"free_slots"`
}
