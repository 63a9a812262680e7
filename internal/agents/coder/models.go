package coder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/domain"
)

type codePlan struct {
	Summary  string                 `json:"summary"`
	Files    []domain.GeneratedFile `json:"files" jsonschema:"description=Complete contents of every file to create or replace"`
	Commands []domain.Command       `json:"commands,omitempty" jsonschema:"description=Commands to run after writing the files, e.g. to fetch dependencies or build"`
}

func (p *codePlan) Validate() error {
	if len(p.Files) == 0 && len(p.Commands) == 0 {
		return fmt.Errorf("the plan must contain files or commands")
	}
	for i, f := range p.Files {
		path := strings.TrimSpace(f.Path)
		if path == "" {
			return fmt.Errorf("file %d has no path", i)
		}
		if filepath.IsAbs(path) || strings.HasPrefix(filepath.Clean(path), "..") {
			return fmt.Errorf("file path %q must be relative to the project root", f.Path)
		}
		p.Files[i].Path = path
	}
	for i, c := range p.Commands {
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("command %d is empty", i)
		}
	}
	return nil
}
