// Package snapshot persists an exported content tree as directories of
// per-entity JSON files: folders/<uid>.json, dashboards/<uid>.json and
// datasources/<uid>.json under a base directory.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rlggyp/grafana-exim/internal/client"
	"github.com/rlggyp/grafana-exim/internal/engine"
)

const (
	foldersDir     = "folders"
	dashboardsDir  = "dashboards"
	datasourcesDir = "datasources"
)

// Store reads and writes snapshots under one base directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes every entity in the snapshot as its own JSON file. Entities
// without a uid cannot be addressed idempotently and are skipped.
func (s *Store) Save(snap *engine.Snapshot) error {
	for _, f := range snap.Folders {
		if err := s.writeEntity(foldersDir, f.UID, f); err != nil {
			return err
		}
	}
	for _, d := range snap.Dashboards {
		if err := s.writeEntity(dashboardsDir, d.UID, d); err != nil {
			return err
		}
	}
	for _, ds := range snap.Datasources {
		if err := s.writeEntity(datasourcesDir, ds.UID, ds); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a snapshot back. A missing class directory is an empty class,
// not an error, so partial exports import cleanly.
func (s *Store) Load() (*engine.Snapshot, error) {
	snap := &engine.Snapshot{}

	if err := readEntities(filepath.Join(s.dir, foldersDir), &snap.Folders); err != nil {
		return nil, err
	}
	if err := readEntities(filepath.Join(s.dir, dashboardsDir), &snap.Dashboards); err != nil {
		return nil, err
	}
	if err := readEntities(filepath.Join(s.dir, datasourcesDir), &snap.Datasources); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) writeEntity(class, uid string, entity any) error {
	if uid == "" {
		return nil
	}
	// The uid becomes a file name; one with separators or dot segments would
	// escape the class directory.
	if strings.ContainsAny(uid, `/\`) || uid == "." || uid == ".." {
		return fmt.Errorf("%s uid %q is not a valid file name", class, uid)
	}
	dir := filepath.Join(s.dir, class)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", class, err)
	}
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s %s: %w", class, uid, err)
	}
	path := filepath.Join(dir, uid+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readEntities[T client.Folder | client.Dashboard | client.Datasource](dir string, out *[]T) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		*out = append(*out, entity)
	}
	return nil
}
