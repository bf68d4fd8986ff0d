package model

import "time"

type Backup struct {
	ID        string    `json:"id" db:"id"`
	ServiceID string    `json:"service_id" db:"service_id"`
	Bucket    string    `json:"bucket" db:"bucket"`
	Key       string    `json:"key" db:"key"`
	Size      int64     `json:"size" db:"size"`
	Status    string    `json:"status" db:"status"`
	Error     string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
