package models

import "time"

type Table struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Capacity  int64     `yaml:"capacity" json:"capacity"`
	Room      string    `yaml:"room" json:"room"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}
