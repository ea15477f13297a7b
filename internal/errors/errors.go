// Package errors defines the outcome taxonomy for inbound actions. Every
// rejection a handler surfaces to a user wraps one of these sentinels, so
// callers can tell policy rejections apart from protocol misuse.
package errors

import (
	"errors"
)

var (
	// ErrPolicyViolation covers blacklisted text, self-targeted confessions
	// and other content-policy rejections. No state is mutated.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrIllegalTransition covers reveal/game actions attempted from a wrong
	// state or by a wrong actor. No state is mutated.
	ErrIllegalTransition = errors.New("illegal transition")

	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDelivery marks a collaborator send failure. Already-persisted state
	// is never rolled back because of it.
	ErrDelivery = errors.New("delivery failed")
)
