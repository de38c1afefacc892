package model

// Envelope is the response wrapper used by every backend endpoint.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Status    int    `json:"status,omitempty"`
	Data      T      `json:"data"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}
