// Package uuid generates crawl run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDs so run ids sort by start time.
type Generator struct{}

// New creates a Generator.
func New() Generator {
	return Generator{}
}

// NewRunID returns a UUIDv7.
func (Generator) NewRunID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}
