package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the file extension of definition files.
const Extension = ".txt"

// Loader reads definitions from a directory, addressed by file name
// without extension.
type Loader struct {
	Dir string
}

// Path returns the file path of the definition called name.
func (l Loader) Path(name string) string {
	return filepath.Join(l.Dir, name+Extension)
}

// Load reads and parses the definition called name.
func (l Loader) Load(name string) (*Definition, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}
	f, err := os.Open(l.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, l.Path(name))
		}
		return nil, fmt.Errorf("failed to open definition %s: %w", name, err)
	}
	defer f.Close()

	def, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", name, err)
	}
	def.Name = name
	return def, nil
}

// List returns the names of the available definitions, sorted.
func (l Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s", ErrConfigNotFound, l.Dir)
		}
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	var names []string
	for _, e := range entries {
		// Load opens <name>.txt, so only that exact extension is listed
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Extension))
	}
	sort.Strings(names)
	return names, nil
}

// Default returns the first available definition name.
func (l Loader) Default() (string, error) {
	names, err := l.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no definitions in %s", ErrConfigNotFound, l.Dir)
	}
	return names[0], nil
}
