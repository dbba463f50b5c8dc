// Package models defines the core data structures shared by the vault, the
// broker, the identity services and the HTTP transport.
package models

import (
	"encoding/json"
	"time"
)

// Approver is an operator allowed to decide pending requests. Approvers
// authenticate with client certificates issued at registration.
type Approver struct {
	// Login is the certificate Common Name.
	Login string `json:"login" db:"login"`
	// CreatedAt is the registration time.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Request is the transport-agnostic envelope sent by callers.
type Request struct {
	Method  OperationType   `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope returned for every Request.
type Response struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	// Code carries the machine-readable error code next to Error.
	Code string `json:"code,omitempty"`
}
