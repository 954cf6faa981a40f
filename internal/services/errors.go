package services

import "errors"

// Sentinel errors for the pedagogy services. Check with errors.Is.
var (
	ErrProfileNotFound = errors.New("learner profile not found")
	ErrChunkNotFound   = errors.New("chunk not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
	ErrSessionLocked   = errors.New("session is owned by another instance")
)
