// Package resolve orders folders so parents are written before children and
// tracks the source-to-destination uid mapping built during a run.
package resolve

import (
	"fmt"
	"sync"

	"github.com/rlggyp/grafana-exim/internal/client"
)

// CycleError reports a folder whose parent chain loops back on itself. The
// source data is corrupted; folder ordering cannot proceed.
type CycleError struct {
	UID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("folder %s is part of a parent cycle", e.UID)
}

// Levels groups folders by hierarchy depth, roots first. Folders within one
// level keep their original listing order. A parent uid that does not appear
// in the listing counts as depth zero: the parent may already exist on the
// destination, and a dangling reference must not block the rest.
func Levels(folders []client.Folder) ([][]client.Folder, error) {
	byUID := make(map[string]client.Folder, len(folders))
	for _, f := range folders {
		byUID[f.UID] = f
	}

	maxDepth := 0
	depths := make(map[string]int, len(folders))
	for _, f := range folders {
		depth := 0
		cur := f
		for cur.ParentUID != "" {
			parent, ok := byUID[cur.ParentUID]
			if !ok {
				break
			}
			depth++
			if depth > len(folders) {
				return nil, &CycleError{UID: f.UID}
			}
			cur = parent
		}
		depths[f.UID] = depth
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	levels := make([][]client.Folder, maxDepth+1)
	for _, f := range folders {
		d := depths[f.UID]
		levels[d] = append(levels[d], f)
	}
	return levels, nil
}

// OrderFolders returns folders sorted by depth ascending, so every parent
// precedes its children. Ties are broken by original listing order.
func OrderFolders(folders []client.Folder) ([]client.Folder, error) {
	levels, err := Levels(folders)
	if err != nil {
		return nil, err
	}
	ordered := make([]client.Folder, 0, len(folders))
	for _, level := range levels {
		ordered = append(ordered, level...)
	}
	return ordered, nil
}

// Map is the identifier map for one migration run: source uid to destination
// uid. Folder write workers record entries concurrently.
type Map struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMap returns an empty identifier map.
func NewMap() *Map {
	return &Map{m: make(map[string]string)}
}

// Record stores the destination uid assigned to a source entity.
func (m *Map) Record(sourceUID, destUID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[sourceUID] = destUID
}

// Resolve looks up the destination uid for a source uid. ok is false when no
// mapping exists yet; callers fall back to root placement rather than fail.
func (m *Map) Resolve(sourceUID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dest, ok := m.m[sourceUID]
	return dest, ok
}

// Len returns the number of recorded mappings.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}
