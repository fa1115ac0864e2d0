package model

import (
	"time"
)

type Base struct {
	ID        string    `json:"id"` // uuid
	CreatedAt time.Time `json:"created_at"`
}
