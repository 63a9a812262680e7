package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusNone:      true,
		StatusDone:      true,
		StatusAbandoned: true,
	}
	for _, s := range AllStatuses() {
		assert.Equal(t, terminal[s], s.IsTerminal(), s.String())
	}
	assert.True(t, Status("").IsTerminal())
	assert.Equal(t, "NONE", Status("").String())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("TESTS_GENERATED")
	require.NoError(t, err)
	assert.Equal(t, StatusTestsGenerated, s)

	_, err = ParseStatus("in-progress")
	assert.ErrorContains(t, err, "INPROGRESS")
}

func TestStatusDecodeRejectsUnknown(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"task_id": "x", "task_status": "FINISHED"}`), &task)
	assert.ErrorContains(t, err, `invalid status "FINISHED"`)

	require.NoError(t, json.Unmarshal([]byte(`{"task_status": "TESTS_GENERATED"}`), &task))
	assert.Equal(t, StatusTestsGenerated, task.Status)

	var unset Status = StatusDone
	require.NoError(t, json.Unmarshal([]byte(`""`), &unset))
	assert.Equal(t, Status(""), unset)
}

func TestPStatusDecodeRejectsUnknown(t *testing.T) {
	var p PStatus
	assert.ErrorContains(t, json.Unmarshal([]byte(`"running"`), &p), `invalid project status "running"`)
	assert.Error(t, json.Unmarshal([]byte(`3`), &p))

	for _, want := range AllPStatuses() {
		data, err := json.Marshal(want)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &p))
		assert.Equal(t, want, p)
	}
	require.NoError(t, json.Unmarshal([]byte(`""`), &p))
	assert.Equal(t, PStatus(""), p)
}

func TestPStatusTrack(t *testing.T) {
	tests := []struct {
		phase PStatus
		want  Track
	}{
		{PStatusNone, TrackNone},
		{PStatusReceived, TrackNone},
		{PStatusNew, TrackTask},
		{PStatusInitial, TrackTask},
		{PStatusExecuting, TrackTask},
		{PStatusMonitoring, TrackTask},
		{PStatusReviewing, TrackIssue},
		{PStatusResolving, TrackIssue},
		{PStatusHalted, TrackNone},
		{PStatusDone, TrackNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.phase.Track(), tt.phase.String())
	}
}

func TestParsePStatus(t *testing.T) {
	for _, p := range AllPStatuses() {
		got, err := ParsePStatus(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePStatus("running")
	assert.Error(t, err)
}

func TestItemIDIsTimeOrdered(t *testing.T) {
	a := NewItemID()
	b := NewItemID()
	require.NoError(t, a.Validate())
	require.NoError(t, b.Validate())
	assert.Less(t, a.String(), b.String())
	assert.Error(t, ItemID("").Validate())
	assert.Error(t, ItemID("task-1").Validate())
}

func TestRequirementsMarkdown(t *testing.T) {
	doc := RequirementsDocument{
		ProjectSummary: "A todo API.",
		FileStructure:  "cmd/\ninternal/",
	}
	md := doc.Markdown()

	assert.Contains(t, md, "# Project Requirements Document")
	assert.Contains(t, md, "## Project Summary\n\nA todo API.")
	assert.Contains(t, md, "## File Structure")
	assert.NotContains(t, md, "## Code Standards")
	assert.False(t, doc.IsEmpty())
	assert.True(t, RequirementsDocument{}.IsEmpty())
}

func TestIssueDetails(t *testing.T) {
	issue := NewIssue("api/handler.go", 42, "nil map write", "initialise the map")
	details := issue.Details()

	assert.Contains(t, details, "Issue: nil map write")
	assert.Contains(t, details, "Line: 42")
	assert.Contains(t, details, "Suggestions:\ninitialise the map")

	planned := NewPlannedIssue(issue, "initialise map in constructor", false)
	assert.Equal(t, issue.ID, planned.ParentIssueID)
	assert.Equal(t, "api/handler.go", planned.FilePath)
	assert.NotEqual(t, issue.ID, planned.ID)
}
