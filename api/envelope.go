package api

// Envelope is the response shape of every endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Empty is used for endpoints that neither take nor return a payload.
type Empty struct{}
