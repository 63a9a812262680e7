package coder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/domain"
)

const systemPrompt = `You are a senior developer. You write complete, compiling source files that follow the project's standards. Never leave placeholders.`

type work struct {
	kind        string
	description string
	testCode    map[string]string
	signatures  map[string][]string
	fileContent string
}

func generatePrompt(w work, in Input, feedback string) string {
	doc := in.RequirementsDocument

	var b strings.Builder
	fmt.Fprintf(&b, "Implement the %s below in the project %q. Reply with the files to write and the commands to run.\n\n", w.kind, in.ProjectName)
	b.WriteString(agents.Section(strings.ToUpper(w.kind[:1])+w.kind[1:], w.description))
	b.WriteString(agents.Section("File structure", doc.FileStructure))
	b.WriteString(agents.Section("Code standards", doc.CodeStandards))
	b.WriteString(agents.Section("License terms", doc.LicenseTerms))
	b.WriteString(agents.Section("Function signatures to implement", renderSignatures(w.signatures)))
	b.WriteString(agents.Section("Unit tests the code must pass", renderFiles(w.testCode)))
	b.WriteString(agents.Section("Current file content", w.fileContent))
	b.WriteString(agents.Section("Your previous attempt failed", feedback))
	return b.String()
}

func renderSignatures(sigs map[string][]string) string {
	var b strings.Builder
	for _, path := range sortedKeys(sigs) {
		fmt.Fprintf(&b, "%s:\n", path)
		for _, s := range sigs[path] {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	return b.String()
}

func renderFiles(files map[string]string) string {
	var b strings.Builder
	for _, path := range sortedKeys(files) {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", path, files[path])
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func workFor(in Input) work {
	if in.ProjectStatus == domain.PStatusResolving {
		p := in.PlannedIssue
		return work{kind: "issue fix", description: p.Details(), testCode: p.TestCode, signatures: p.FunctionSignatures}
	}
	p := in.PlannedTask
	return work{kind: "work package", description: p.Description, testCode: p.TestCode, signatures: p.FunctionSignatures}
}
