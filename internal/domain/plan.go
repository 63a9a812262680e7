package domain

import "slices"

// GeneratedFile is a file the coder wrote into the project.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Command is a shell command the coder ran, relative to the project root.
type Command struct {
	Command string `json:"command"`
	Dir     string `json:"dir,omitempty"`
}

// CodeGenerationPlan records what the coder produced for one planned item.
type CodeGenerationPlan struct {
	ItemID   ItemID          `json:"item_id"`
	Summary  string          `json:"summary"`
	Files    []GeneratedFile `json:"files"`
	Commands []Command       `json:"commands,omitempty"`
}

// Paths returns the paths of the generated files in order.
func (p CodeGenerationPlan) Paths() []string {
	out := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, f.Path)
	}
	return out
}

// Clone returns a deep copy.
func (p CodeGenerationPlan) Clone() CodeGenerationPlan {
	p.Files = slices.Clone(p.Files)
	p.Commands = slices.Clone(p.Commands)
	return p
}
