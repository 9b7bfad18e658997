package models

import (
	dErrors "medledger/pkg/domain-errors"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	// StatusActive is the only birth status. Historical schema called the
	// same state "valid"; ParseBatchStatus accepts both spellings.
	StatusActive BatchStatus = "active"

	// StatusSuspended pauses a batch pending investigation. Reversible.
	StatusSuspended BatchStatus = "suspended"

	// StatusRecalled is absorbing: once recalled, no explicit transition is
	// ever accepted again.
	StatusRecalled BatchStatus = "recalled"

	// StatusExpired is reachable only through the expiry check, never by an
	// explicit update. Terminal.
	StatusExpired BatchStatus = "expired"
)

// explicitTransitions is the strict transition table for authorized status
// updates. Expired is deliberately absent as a target: it has exactly one
// entry path, the expiry check.
var explicitTransitions = map[BatchStatus]map[BatchStatus]bool{
	StatusActive: {
		StatusSuspended: true,
		StatusRecalled:  true,
	},
	StatusSuspended: {
		StatusActive:   true,
		StatusRecalled: true,
	},
	StatusRecalled: {},
	StatusExpired:  {},
}

// CanTransitionTo reports whether an explicit update from s to target is
// legal.
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	return explicitTransitions[s][target]
}

// IsTerminal reports whether no explicit transition leaves s.
func (s BatchStatus) IsTerminal() bool {
	return len(explicitTransitions[s]) == 0
}

func (s BatchStatus) String() string { return string(s) }

// ParseBatchStatus validates an externally supplied status value. "valid" is
// accepted as an alias for "active" to serve clients of the older schema.
func ParseBatchStatus(raw string) (BatchStatus, error) {
	switch raw {
	case "active", "valid":
		return StatusActive, nil
	case "suspended":
		return StatusSuspended, nil
	case "recalled":
		return StatusRecalled, nil
	case "expired":
		return StatusExpired, nil
	default:
		return "", dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidBatchStatus,
			"unknown batch status: "+raw)
	}
}
