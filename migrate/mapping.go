package migrate

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

// MappingEntry links one source-org object to the object it became in a
// target org.  There is at most one entry per (source org, source GUID,
// target org) triple; re-import refreshes the entry in place.
type MappingEntry struct {
	SourceOrg  string    `yaml:"source-org"`
	SourceGUID GUID      `yaml:"source-guid"`
	TargetOrg  string    `yaml:"target-org"`
	TargetGUID GUID      `yaml:"target-guid"`
	Type       string    `yaml:"type"`
	SyncedHash string    `yaml:"last-synced-hash"`
	SyncedAt   time.Time `yaml:"last-synced-at"`
}

type mappingKey struct {
	sourceOrg  string
	sourceGUID GUID
	targetOrg  string
}

// MappingStore is the durable GUID mapping table.  It is loaded
// wholesale at start and flushed atomically after every upsert, so a
// crash loses at most the entry being written.  One writer per run;
// concurrent runs against the same file must be serialized externally.
type MappingStore struct {
	path string

	mu      sync.Mutex
	entries map[mappingKey]MappingEntry
}

// mappingFile is the on-disk shape: a flat, human-reviewable list.
type mappingFile struct {
	Mappings []MappingEntry `yaml:"mappings"`
}

// MappingFilePath names the mapping file for an org pair, under the
// store's guid-mappings folder.
func MappingFilePath(storePath string, sourceOrg string, targetOrg string) string {
	return path.Join(storePath, "guid-mappings", fmt.Sprintf("%s-%s.yaml", sourceOrg, targetOrg))
}

// LoadMappingStore reads the mapping file at filePath.  A missing file
// is a valid empty store; this is every org pair's first run.
func LoadMappingStore(filePath string) (*MappingStore, error) {
	store := &MappingStore{
		path:    filePath,
		entries: map[mappingKey]MappingEntry{},
	}

	source, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("migrate: couldn't read mapping file %s: %w", filePath, err)
	}

	var parsed mappingFile
	if err := yaml.Unmarshal(source, &parsed); err != nil {
		return nil, fmt.Errorf("migrate: couldn't parse mapping file %s: %w", filePath, err)
	}

	for _, entry := range parsed.Mappings {
		key := mappingKey{entry.SourceOrg, entry.SourceGUID, entry.TargetOrg}
		if _, ok := store.entries[key]; ok {
			return nil, fmt.Errorf("migrate: duplicate mapping for %s/%s -> %s in %s",
				entry.SourceOrg, entry.SourceGUID, entry.TargetOrg, filePath)
		}
		store.entries[key] = entry
	}

	return store, nil
}

// Lookup returns the entry for the key triple, if one exists.
func (s *MappingStore) Lookup(sourceOrg string, sourceGUID GUID, targetOrg string) (MappingEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[mappingKey{sourceOrg, sourceGUID, targetOrg}]
	return entry, ok
}

// Upsert replaces any prior entry with the same key triple and flushes
// the whole table to disk before returning.
func (s *MappingStore) Upsert(entry MappingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mappingKey{entry.SourceOrg, entry.SourceGUID, entry.TargetOrg}
	previous, hadPrevious := s.entries[key]
	s.entries[key] = entry

	if err := s.flushLocked(); err != nil {
		// keep the in-memory table consistent with what's on disk.
		if hadPrevious {
			s.entries[key] = previous
		} else {
			delete(s.entries, key)
		}
		return err
	}

	return nil
}

// All returns every entry, sorted for stable listings.
func (s *MappingStore) All() []MappingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedLocked()
}

// Len reports the number of entries.
func (s *MappingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *MappingStore) sortedLocked() []MappingEntry {
	entries := maps.Values(s.entries)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.SourceOrg != b.SourceOrg {
			return a.SourceOrg < b.SourceOrg
		}
		if a.TargetOrg != b.TargetOrg {
			return a.TargetOrg < b.TargetOrg
		}
		return a.SourceGUID < b.SourceGUID
	})
	return entries
}

// flushLocked writes the table to a temp file and renames it over the
// real one, so a crash mid-write never clobbers prior entries.
func (s *MappingStore) flushLocked() error {
	marshalled, err := yaml.Marshal(mappingFile{Mappings: s.sortedLocked()})
	if err != nil {
		return fmt.Errorf("migrate: couldn't marshal mapping table: %w", err)
	}

	directory := path.Dir(s.path)
	if err := os.MkdirAll(directory, 0750); err != nil {
		return fmt.Errorf("migrate: couldn't create directory %s: %w", directory, err)
	}

	tmp, err := os.CreateTemp(directory, ".mapping-*.yaml")
	if err != nil {
		return fmt.Errorf("migrate: couldn't create temp mapping file: %w", err)
	}

	if _, err := tmp.Write(marshalled); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("migrate: couldn't write temp mapping file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("migrate: couldn't close temp mapping file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("migrate: couldn't replace mapping file %s: %w", s.path, err)
	}

	return nil
}
