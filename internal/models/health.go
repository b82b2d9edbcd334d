package models

import "time"

// HealthResponse reports the API status and its dependencies.
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"1h23m"`
}

// ServiceInfo describes the state of one dependency.
type ServiceInfo struct {
	Status    string    `json:"status" example:"healthy"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}
