package api

import "time"

// GrowthQuery is the query string of the growth endpoint. Both dates are
// optional and inclusive.
type GrowthQuery struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Breaker   string    `json:"breaker,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
