// Package analysis loads analysis definitions: text files listing, one per
// line, a structure name and a metric code separated by a colon.
//
//	PTV:VOL
//	PTV:D2cc
//	Heart:V30Gy
//
// Blank lines are ignored, as are lines starting with '#' that contain no
// colon. A line such as "#1 PTV:VOL" is a target named "#1 PTV".
package analysis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrConfigNotFound is returned when a named definition does not exist.
	ErrConfigNotFound = errors.New("analysis definition not found")
	// ErrMalformedDefinition is wrapped by MalformedDefinitionError.
	ErrMalformedDefinition = errors.New("malformed analysis definition")
)

// MalformedDefinitionError reports the first invalid line of a definition.
type MalformedDefinitionError struct {
	Line int
	Text string
}

func (e *MalformedDefinitionError) Error() string {
	return fmt.Sprintf("line %d: expected STRUCTURE:METRIC, got %q", e.Line, e.Text)
}

func (e *MalformedDefinitionError) Unwrap() error {
	return ErrMalformedDefinition
}

// Target is one structure with its requested metric codes, in file order.
// Duplicate codes are kept.
type Target struct {
	Name    string
	Metrics []string
}

// Definition is an ordered list of targets.
type Definition struct {
	Name    string
	Targets []Target
}

// Add appends code to the target called name, creating the target at the
// end of the list on first use.
func (d *Definition) Add(name, code string) {
	for i := range d.Targets {
		if d.Targets[i].Name == name {
			d.Targets[i].Metrics = append(d.Targets[i].Metrics, code)
			return
		}
	}
	d.Targets = append(d.Targets, Target{Name: name, Metrics: []string{code}})
}

// Metrics returns the metric codes of the target called name.
func (d *Definition) Metrics(name string) []string {
	for _, t := range d.Targets {
		if t.Name == name {
			return t.Metrics
		}
	}
	return nil
}

// MetricCount returns the number of requested metrics over all targets.
func (d *Definition) MetricCount() int {
	n := 0
	for _, t := range d.Targets {
		n += len(t.Metrics)
	}
	return n
}

// Parse reads a definition. Each line is split on its first colon. The
// structure name is kept verbatim and the metric code is trimmed; both must
// be non-empty.
func Parse(r io.Reader) (*Definition, error) {
	def := &Definition{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if isComment(raw) {
			continue
		}

		name, code, ok := strings.Cut(raw, ":")
		code = strings.TrimSpace(code)
		if !ok || name == "" || code == "" {
			return nil, &MalformedDefinitionError{Line: lineNo, Text: raw}
		}
		def.Add(name, code)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return def, nil
}

// isComment reports whether line carries no target.
func isComment(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	return strings.HasPrefix(line, "#") && !strings.Contains(line, ":")
}
