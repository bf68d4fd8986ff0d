package model

import "time"

// Deployment is the durable record of one provisioning attempt for a service.
type Deployment struct {
	ID        string    `json:"id" db:"id"`
	ServiceID string    `json:"service_id" db:"service_id"`
	JobID     string    `json:"job_id,omitempty" db:"job_id"`
	Status    string    `json:"status" db:"status"`
	Logs      []string  `json:"logs" db:"logs"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
