// Package pipelinefile parses a declarative YAML description of a
// Pipeline's tasks, for callers (notably the CLI front-end) who would
// rather describe a pipeline as data than build it up with AddTask calls.
package pipelinefile

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the conventional name of a pipeline file. Load does
// not fall back to it; it always reads the path it is given.
const DefaultFileName = "pipeline.yaml"

// File is the top-level shape of a pipeline description.
type File struct {
	// Version is the file format version; "1" or an empty value is
	// accepted, anything else is rejected by Load.
	Version string `yaml:"version"`

	// Tasks maps a task's name to its definition. Name uniqueness is
	// enforced by YAML map keys themselves.
	Tasks map[string]Task `yaml:"tasks"`
}

// Task describes one task's commands and its dependencies, each expressed
// as a flat argv list (program followed by arguments) rather than a shell
// string, so no shell-quoting ambiguity can creep into a checked-in file.
type Task struct {
	// Commands is the ordered list of argv lists this task runs.
	Commands [][]string `yaml:"commands"`

	// Requires names other tasks in the same file that must complete
	// before this one is launched.
	Requires []string `yaml:"requires"`

	// Cwd is a per-task working directory as written in the file. It is
	// parsed but not applied: `execengine run` runs every task's commands
	// in the pipeline's working directory (its -cwd flag).
	Cwd string `yaml:"cwd,omitempty"`
}

// Load reads and parses a pipeline file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("pipelinefile: read %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, xerrors.Errorf("pipelinefile: parse %q: %w", path, err)
	}
	if f.Version != "" && f.Version != "1" {
		return nil, xerrors.Errorf("pipelinefile: %q: unsupported version %q", path, f.Version)
	}
	for name, t := range f.Tasks {
		for _, req := range t.Requires {
			if _, ok := f.Tasks[req]; !ok {
				return nil, xerrors.Errorf("pipelinefile: %q: task %q requires unknown task %q", path, name, req)
			}
		}
	}
	return &f, nil
}
