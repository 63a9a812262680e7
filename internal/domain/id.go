package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ItemID identifies a task or issue. IDs are UUIDv7 so that lexical order
// follows creation order.
type ItemID string

// NewItemID returns a fresh time-ordered identifier.
func NewItemID() ItemID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		return ItemID(uuid.NewString())
	}
	return ItemID(id.String())
}

// Validate checks that the id is a well-formed UUID.
func (i ItemID) Validate() error {
	if i == "" {
		return fmt.Errorf("item ID cannot be empty")
	}
	if _, err := uuid.Parse(string(i)); err != nil {
		return fmt.Errorf("item ID %q is not a UUID: %w", string(i), err)
	}
	return nil
}

// IsZero reports whether the id is unset.
func (i ItemID) IsZero() bool {
	return i == ""
}

// String returns the string representation
func (i ItemID) String() string {
	return string(i)
}
