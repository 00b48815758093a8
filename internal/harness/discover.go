package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a filter matches no scenario.
type ScenarioNotFoundError struct {
	Dir    string
	Filter string
}

func (e *ScenarioNotFoundError) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("no scenarios found in %s", e.Dir)
	}
	return fmt.Sprintf("no scenario matching %q in %s", e.Filter, e.Dir)
}

// FindScenarios lists the .yaml and .yml files in dir, sorted by name.
// A non-empty filter keeps only files whose base name contains it.
// Subdirectories are not searched.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" && !strings.Contains(strings.TrimSuffix(name, ext), filter) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}

	if len(files) == 0 {
		return nil, &ScenarioNotFoundError{Dir: dir, Filter: filter}
	}
	sort.Strings(files)
	return files, nil
}
