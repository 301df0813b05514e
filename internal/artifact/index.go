package artifact

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// IndexFileName is the name of the daily slice index.
const IndexFileName = "index.txt"

// Index tracks the daily slice files of a run and rewrites the index file
// every time one is added. The file lists names newest first.
type Index struct {
	path string

	mu    sync.Mutex
	names []string
}

// NewIndex creates an empty index stored at path.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// Add records name and rewrites the index file.
func (x *Index) Add(name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.names = append(x.names, name)
	sort.Sort(sort.Reverse(sort.StringSlice(x.names)))

	if err := os.WriteFile(x.path, []byte(strings.Join(x.names, "\n")), 0o644); err != nil {
		return fmt.Errorf("write index %s: %w", x.path, err)
	}
	return nil
}

// Names returns the recorded names, newest first.
func (x *Index) Names() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.names...)
}

// ReadIndex loads the names listed in an index file.
func ReadIndex(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
