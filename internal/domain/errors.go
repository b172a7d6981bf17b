package domain

import "errors"

var (
	// ErrPoolExhausted means the catalog holds fewer questions than one assignment needs.
	// It is a server configuration problem, not something the participant can retry.
	ErrPoolExhausted = errors.New("question pool exhausted")
	// ErrNoActiveAssignment is returned when a submission has no assignment for the current epoch.
	ErrNoActiveAssignment = errors.New("no active assignment for current epoch")
	// ErrUnknownQuestion indicates a submitted question id is outside the current assignment.
	ErrUnknownQuestion = errors.New("question not in current assignment")
	// ErrQuestionNotFound indicates the catalog has no question with the requested id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidSession is returned for an empty or oversized session id.
	ErrInvalidSession = errors.New("invalid session id")
	// ErrInvalidDisplayName is returned for an empty or oversized display name.
	ErrInvalidDisplayName = errors.New("invalid display name")
	// ErrInvalidQuestion marks a catalog entry that breaks the question invariants.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrConcurrentUpdate is returned when a store gives up retrying a contended session.
	ErrConcurrentUpdate = errors.New("session updated concurrently")
)
