package models

import "time"

type Reservation struct {
	ID           int64     `json:"id"`
	TableID      int64     `json:"table_id"`
	TableName    string    `json:"table_name"`
	Date         time.Time `json:"date"`
	Slot         string    `json:"slot"`
	PartySize    int64     `json:"party_size"`
	GuestName    string    `json:"guest_name"`
	GuestContact string    `json:"guest_contact"`
	CreatedAt    time.Time `json:"created_at"`
}

// DateKey is the canonical day representation used in storage and maps.
func (r *Reservation) DateKey() string {
	return r.Date.Format("2006-01-02")
}
