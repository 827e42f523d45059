// Package uuid provides run ID generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// Generator creates UUID v7 strings, which sort by creation time.
type Generator struct{}

var _ crawler.IDGenerator = Generator{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
