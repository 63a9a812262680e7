package domain

import (
	"fmt"
	"strings"
)

// RequirementsDocument is the architect's output that every later agent reads.
type RequirementsDocument struct {
	ProjectSummary     string `json:"project_summary"`
	SystemArchitecture string `json:"system_architecture"`
	FileStructure      string `json:"file_structure"`
	MicroserviceDesign string `json:"microservice_design"`
	TasksSummary       string `json:"tasks_summary"`
	CodeStandards      string `json:"code_standards"`
	ImplementationPlan string `json:"implementation_plan"`
	LicenseTerms       string `json:"license_terms"`
}

// IsEmpty reports whether no section has content.
func (d RequirementsDocument) IsEmpty() bool {
	return d == RequirementsDocument{}
}

// Markdown renders the document, skipping empty sections.
func (d RequirementsDocument) Markdown() string {
	sections := []struct{ title, body string }{
		{"Project Summary", d.ProjectSummary},
		{"System Architecture", d.SystemArchitecture},
		{"File Structure", d.FileStructure},
		{"Microservice Design", d.MicroserviceDesign},
		{"Tasks Summary", d.TasksSummary},
		{"Code Standards", d.CodeStandards},
		{"Implementation Plan", d.ImplementationPlan},
		{"License Terms", d.LicenseTerms},
	}

	var b strings.Builder
	b.WriteString("# Project Requirements Document\n")
	for _, s := range sections {
		body := strings.TrimSpace(s.body)
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.title, body)
	}
	return b.String()
}
