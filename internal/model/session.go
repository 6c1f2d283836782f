// Package model contains the session and object records shared across packages.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change would move a record
// backwards or sideways in its lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// SessionStatus describes the lifecycle of a batch request. Declaring it as a
// named string type keeps status values from mixing with arbitrary strings.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

func (s SessionStatus) String() string { return string(s) }

// Terminal reports whether no further transitions can occur.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// ValidateTransition checks that moving from s to target only ever advances.
func (s SessionStatus) ValidateTransition(target SessionStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("%w: session %s -> %s", ErrInvalidTransition, s, target)
	}
	return nil
}

func (s SessionStatus) isValidTransition(target SessionStatus) bool {
	switch s {
	case SessionPending:
		return target == SessionProcessing || target == SessionFailed
	case SessionProcessing:
		return target == SessionCompleted || target == SessionFailed
	default:
		return false
	}
}

// Session is one batch request covering a fixed list of input identifiers.
type Session struct {
	ID               string        `json:"id"`
	CreatedAt        time.Time     `json:"createdAt"`
	Status           SessionStatus `json:"status"`
	InputIDs         []string      `json:"inputIds"`
	TotalObjects     int           `json:"totalObjects"`
	CompletedObjects int           `json:"completedObjects"`
}

// Descriptor returns the short form handed back when a session is started.
func (s *Session) Descriptor() SessionDescriptor {
	return SessionDescriptor{ID: s.ID, Status: s.Status, TotalObjects: s.TotalObjects}
}

// Progress returns the completed share in percent, clamped to [0, 100].
func (s *Session) Progress() float64 {
	if s.TotalObjects <= 0 {
		return 0
	}
	p := float64(s.CompletedObjects) / float64(s.TotalObjects) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// SessionDescriptor is returned by StartSession before any processing happens.
type SessionDescriptor struct {
	ID           string        `json:"id"`
	Status       SessionStatus `json:"status"`
	TotalObjects int           `json:"totalObjects"`
}

// SessionPatch is a partial update. Nil fields are left untouched.
type SessionPatch struct {
	Status           *SessionStatus
	CompletedObjects *int
}
