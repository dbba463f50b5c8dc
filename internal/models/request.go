package models

import (
	"encoding/json"
	"time"
)

// RequestStatus is the approval state of a pending request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// Decision is what an approval surface reports back for a request.
type Decision string

const (
	DecisionApprove Decision = "APPROVED"
	DecisionReject  Decision = "REJECTED"
)

// Valid reports whether d is one of the two accepted decisions.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// PendingRequestSummary is the read-only view of a pending request handed to
// approval surfaces. The payload holds only caller-supplied public parameters.
type PendingRequestSummary struct {
	ID        string          `json:"id"`
	Type      RequestType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Origin    string          `json:"urlOrigin"`
	CreatedAt time.Time       `json:"createdAt"`
	Status    RequestStatus   `json:"status"`
	Abandoned bool            `json:"abandoned,omitempty"`
	Settled   bool            `json:"settled,omitempty"`
}

// PendingRequestFilter narrows a List call. Zero values match everything.
type PendingRequestFilter struct {
	Status RequestStatus
	Type   RequestType
	Origin string
	// IncludeSettled also returns settled tombstones.
	IncludeSettled bool
}

// Match reports whether s passes the filter.
func (f PendingRequestFilter) Match(s PendingRequestSummary) bool {
	if !f.IncludeSettled && s.Settled {
		return false
	}
	if f.Status != "" && f.Status != s.Status {
		return false
	}
	if f.Type != "" && f.Type != s.Type {
		return false
	}
	if f.Origin != "" && f.Origin != s.Origin {
		return false
	}
	return true
}

// DecisionRequest is the body an approval surface posts for a request.
type DecisionRequest struct {
	Decision Decision        `json:"decision"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NotificationEvent names what happened to a pending request.
type NotificationEvent string

const (
	EventRequestCreated NotificationEvent = "request.created"
	EventRequestSettled NotificationEvent = "request.settled"
)

// Notification tells approval surfaces that a pending request changed.
type Notification struct {
	Event   NotificationEvent     `json:"event"`
	Request PendingRequestSummary `json:"request"`
}
