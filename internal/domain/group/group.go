// Package group defines the issue group entity hydrated from the relational store.
package group

import "time"

// Status is the triage state of a group.
type Status int

const (
	// StatusUnresolved marks an open group.
	StatusUnresolved Status = 0
	// StatusResolved marks a resolved group.
	StatusResolved Status = 1
	// StatusIgnored marks a muted group.
	StatusIgnored Status = 2
)

// Group is an aggregated issue: mutable triage state lives in the relational
// store, event history in the analytical store.
type Group struct {
	ID             int64
	ProjectID      int64
	Status         Status
	AssigneeID     *int64
	FirstReleaseID *int64
	FirstSeen      time.Time
	LastSeen       time.Time
	ActiveAt       time.Time
	TimesSeen      int64
}
