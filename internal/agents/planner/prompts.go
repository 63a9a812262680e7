package planner

import (
	"fmt"

	"github.com/felixgeelhaar/genpod/internal/agents"
)

const systemPrompt = `You are the planner of a software team. You break deliverables into small work packages that one developer can finish in a single sitting. Do not assume anything; ask when information is missing.`

func backlogPrompt(deliverable, context string) string {
	return fmt.Sprintf(`List the work packages needed to complete this deliverable, in the order they should be done.

%s%s`, agents.Section("Deliverable", deliverable), agents.Section("Context", context))
}

func workPackagePrompt(backlog, deliverable, context string) string {
	return fmt.Sprintf(`Write the detailed technical requirements for one work package of the deliverable.
Focus on implementation: files, APIs, data types and acceptance criteria that can be tested.
If critical information is missing, set only "question" to a single detailed question covering everything you need.

%s%s%s`,
		agents.Section("Work package", backlog),
		agents.Section("Deliverable", deliverable),
		agents.Section("Context", context),
	)
}

func segregationPrompt(workPackage string) string {
	return fmt.Sprintf(`Decide whether this work requires writing new functions (as opposed to configuration, documentation or scaffolding only).

%s`, workPackage)
}

func issueSegregationPrompt(details, content string) string {
	return fmt.Sprintf(`Decide whether resolving this issue requires writing new functions.

%s%s`, agents.Section("Issue", details), agents.Section("Current file content", content))
}
