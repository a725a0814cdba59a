package models

import "time"

// Resource is a crawled document stored in the knowledge base
type Resource struct {
	ID        int64          `json:"id" db:"id"`
	Content   string         `json:"content" db:"content"`
	Metadata  map[string]any `json:"metadata" db:"metadata"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// Chunk is an embedded slice of a resource
type Chunk struct {
	Content   string
	Embedding []float32
}
