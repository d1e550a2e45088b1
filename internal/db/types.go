package db

import (
	"time"

	"github.com/google/uuid"
)

// Run is a stored comparison job.
type Run struct {
	ID          uuid.UUID      `json:"id"`
	Group       string         `json:"group"`
	Build       string         `json:"build"`
	Mode        string         `json:"mode"`
	Status      string         `json:"status"`
	Error       *string        `json:"error,omitempty"`
	Total       int            `json:"total"`
	Counts      map[string]int `json:"counts"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Unit is a stored unit result.
type Unit struct {
	RunID       uuid.UUID `json:"run_id"`
	Campaign    string    `json:"campaign"`
	Size        string    `json:"size"`
	Type        string    `json:"type"`
	Score       *float64  `json:"score"`
	Level       string    `json:"level"`
	Pairs       []byte    `json:"pairs,omitempty"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	Error       *string   `json:"error,omitempty"`
	ElapsedMS   int64     `json:"elapsed_ms"`
}
