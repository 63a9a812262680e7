package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle status of a single work item (task, planned task,
// issue or planned issue).
type Status string

const (
	StatusNone       Status = "NONE"
	StatusNew        Status = "NEW"
	StatusAwaiting   Status = "AWAITING"
	StatusResponded  Status = "RESPONDED"
	StatusInProgress Status = "INPROGRESS"
	// StatusTestsGenerated marks a planned item whose tests exist but whose code
	// has not been written yet.
	StatusTestsGenerated Status = "TESTS_GENERATED"
	StatusAbandoned      Status = "ABANDONED"
	StatusDone           Status = "DONE"
)

var allStatuses = []Status{
	StatusNone, StatusNew, StatusAwaiting, StatusResponded,
	StatusInProgress, StatusTestsGenerated, StatusAbandoned, StatusDone,
}

// AllStatuses returns every item status in declaration order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus parses the upper-case status name.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks that the status is one of the known values.
func (s Status) Validate() error {
	for _, known := range allStatuses {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("invalid status %q, want one of %v", string(s), AllStatuses())
}

// String returns the string representation
func (s Status) String() string {
	if s == "" {
		return string(StatusNone)
	}
	return string(s)
}

// IsTerminal reports whether the queue should skip the item: DONE, ABANDONED
// and NONE items carry no remaining work.
func (s Status) IsTerminal() bool {
	switch s {
	case "", StatusNone, StatusDone, StatusAbandoned:
		return true
	default:
		return false
	}
}

// UnmarshalJSON rejects unknown statuses. The empty string is the zero value
// of an unset item and decodes as is.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PStatus is the project-level phase driven by the supervisor.
type PStatus string

const (
	PStatusNone       PStatus = "NONE"
	PStatusReceived   PStatus = "RECEIVED"
	PStatusNew        PStatus = "NEW"
	PStatusInitial    PStatus = "INITIAL"
	PStatusExecuting  PStatus = "EXECUTING"
	PStatusMonitoring PStatus = "MONITORING"
	PStatusReviewing  PStatus = "REVIEWING"
	PStatusResolving  PStatus = "RESOLVING"
	PStatusHalted     PStatus = "HALTED"
	PStatusDone       PStatus = "DONE"
)

var allPStatuses = []PStatus{
	PStatusNone, PStatusReceived, PStatusNew, PStatusInitial, PStatusExecuting,
	PStatusMonitoring, PStatusReviewing, PStatusResolving, PStatusHalted, PStatusDone,
}

// AllPStatuses returns every project phase in declaration order.
func AllPStatuses() []PStatus {
	out := make([]PStatus, len(allPStatuses))
	copy(out, allPStatuses)
	return out
}

// ParsePStatus parses the upper-case phase name.
func ParsePStatus(value string) (PStatus, error) {
	p := PStatus(value)
	for _, known := range allPStatuses {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q, want one of %v", value, AllPStatuses())
}

// UnmarshalJSON rejects unknown phases. The empty string decodes as is.
func (p *PStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = ""
		return nil
	}
	parsed, err := ParsePStatus(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// String returns the string representation
func (p PStatus) String() string {
	if p == "" {
		return string(PStatusNone)
	}
	return string(p)
}

// Track identifies which current-item pointers a phase is allowed to touch.
type Track int

const (
	TrackNone Track = iota
	TrackTask
	TrackIssue
)

func (t Track) String() string {
	switch t {
	case TrackTask:
		return "task"
	case TrackIssue:
		return "issue"
	default:
		return "none"
	}
}

// Track returns the task track for NEW, INITIAL, EXECUTING and MONITORING and
// the issue track for REVIEWING and RESOLVING.
func (p PStatus) Track() Track {
	switch p {
	case PStatusNew, PStatusInitial, PStatusExecuting, PStatusMonitoring:
		return TrackTask
	case PStatusReviewing, PStatusResolving:
		return TrackIssue
	default:
		return TrackNone
	}
}
