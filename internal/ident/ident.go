// Package ident abstracts unique-id generation so repositories and
// tests can choose between real UUIDs and deterministic sequences.
package ident

import "github.com/google/uuid"

// Generator mints unique identifiers for persisted rows and sessions.
type Generator interface {
	NewID() string
}

// UUID generates random (version 4) UUID strings.
type UUID struct{}

// NewID returns a new random UUID in its canonical string form.
func (UUID) NewID() string {
	return uuid.New().String()
}
