// Package testdata embeds recorded classifier traces used by tests and the
// replay tool.
package testdata

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed traces/*.csv
var tracesFS embed.FS

// Trace returns the contents of the named trace, without the .csv suffix.
func Trace(name string) ([]byte, error) {
	data, err := tracesFS.ReadFile("traces/" + name + ".csv")
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", name, err)
	}
	return data, nil
}

// Traces lists the embedded trace names in sorted order.
func Traces() []string {
	entries, err := fs.ReadDir(tracesFS, "traces")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(names)
	return names
}
