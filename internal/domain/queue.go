package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned by Update when no item has the given id.
	ErrItemNotFound = errors.New("item not found in queue")
	// ErrDuplicateID is returned by Add when an item with the same id exists.
	ErrDuplicateID = errors.New("duplicate item id")
)

// Item is the constraint for queue elements.
type Item[T any] interface {
	ItemID() ItemID
	ItemStatus() Status
	Clone() T
}

// Queue is an ordered, append-only collection of work items with unique ids.
// Completed items stay in the queue for history; nothing is ever removed.
type Queue[T Item[T]] struct {
	items []T
}

type (
	TaskQueue          = Queue[Task]
	PlannedTaskQueue   = Queue[PlannedTask]
	IssuesQueue        = Queue[Issue]
	PlannedIssuesQueue = Queue[PlannedIssue]
)

// NewQueue builds a queue from items, rejecting duplicates.
func NewQueue[T Item[T]](items ...T) (*Queue[T], error) {
	q := &Queue[T]{}
	if err := q.Extend(items...); err != nil {
		return nil, err
	}
	return q, nil
}

// Add appends item, preserving insertion order.
func (q *Queue[T]) Add(item T) error {
	if err := item.ItemID().Validate(); err != nil {
		return err
	}
	if _, ok := q.index(item.ItemID()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ItemID())
	}
	q.items = append(q.items, item)
	return nil
}

// Extend appends items in order. It stops at the first duplicate id; items
// before it are kept.
func (q *Queue[T]) Extend(items ...T) error {
	for _, item := range items {
		if err := q.Add(item); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces the item with the same id in place.
func (q *Queue[T]) Update(item T) error {
	i, ok := q.index(item.ItemID())
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ItemID())
	}
	q.items[i] = item
	return nil
}

// Next returns the earliest-inserted item whose status is not terminal.
func (q *Queue[T]) Next() (T, bool) {
	for _, item := range q.items {
		if !item.ItemStatus().IsTerminal() {
			return item.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// HasPending reports whether Next would return an item.
func (q *Queue[T]) HasPending() bool {
	_, ok := q.Next()
	return ok
}

// Find returns the item with the given id.
func (q *Queue[T]) Find(id ItemID) (T, bool) {
	if i, ok := q.index(id); ok {
		return q.items[i].Clone(), true
	}
	var zero T
	return zero, false
}

// Position returns the 1-based position of id, or 0 when absent.
func (q *Queue[T]) Position(id ItemID) int {
	if i, ok := q.index(id); ok {
		return i + 1
	}
	return 0
}

// Items returns a deep copy of all items in order.
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.items))
	for i, item := range q.items {
		out[i] = item.Clone()
	}
	return out
}

// Len returns the number of items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// CountDone returns the number of items in DONE.
func (q *Queue[T]) CountDone() int {
	n := 0
	for _, item := range q.items {
		if item.ItemStatus() == StatusDone {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the queue.
func (q *Queue[T]) Clone() *Queue[T] {
	if q == nil {
		return &Queue[T]{}
	}
	return &Queue[T]{items: q.Items()}
}

func (q *Queue[T]) index(id ItemID) (int, bool) {
	for i, item := range q.items {
		if item.ItemID() == id {
			return i, true
		}
	}
	return -1, false
}

// MarshalJSON encodes the queue as a JSON array.
func (q *Queue[T]) MarshalJSON() ([]byte, error) {
	if q == nil || q.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q.items)
}

// UnmarshalJSON decodes a JSON array, rejecting duplicate ids.
func (q *Queue[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	q.items = nil
	return q.Extend(items...)
}
