package models

import "fmt"

// Status is the lifecycle state of a conversation. A conversation starts
// pending and moves to exactly one of the terminal states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusAccepted, StatusDeclined, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusCancelled
}

// CanTransitionTo reports whether the edge s -> next is legal. The only
// legal edges are pending -> accepted|declined|cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending || !next.Valid() {
		return false
	}
	return next != StatusPending
}

// Role is the user type shown in chat previews.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleTenant, RoleLandlord:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}
