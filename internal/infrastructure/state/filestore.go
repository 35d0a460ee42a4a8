package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// FileStore keeps the delivery record in a single JSON file replaced atomically.
// It holds no lock: every commit reloads the file first, so concurrent
// writers adding different keys never drop each other's entries.
type FileStore struct {
	path string

	// rename is swapped in tests to simulate a crash before the replace.
	rename func(oldpath, newpath string) error
}

var _ ports.Store = (*FileStore)(nil)

// NewFileStore binds a store to path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, rename: os.Rename}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

type fileRecord struct {
	LastRunDate *string  `json:"last_run_date"`
	PostedIDs   []string `json:"posted_ids"`
	SeenLinks   []string `json:"seen_links"`
}

// Load never fails: a missing, unreadable or malformed file yields an empty record.
func (s *FileStore) Load() domain.Record {
	record := domain.NewRecord()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return record
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return record
	}

	if v, ok := fields["last_run_date"]; ok {
		var date *string
		if json.Unmarshal(v, &date) == nil {
			record.LastRunDate = date
		}
	}
	for _, id := range stringList(fields["posted_ids"]) {
		record.Add(domain.DedupKey{Value: id})
	}
	for _, link := range stringList(fields["seen_links"]) {
		record.Add(domain.DedupKey{Value: link, LinkOnly: true})
	}

	return record
}

// stringList decodes the string elements of a JSON array. Non-string elements are
// skipped; a value that is not an array yields nothing.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	values := make([]string, 0, len(elems))
	for _, elem := range elems {
		var v string
		if json.Unmarshal(elem, &v) == nil {
			values = append(values, v)
		}
	}
	return values
}

// Save replaces the file with record: temp file in the same directory, fsync, rename.
// On failure the temp file is removed best-effort and the target is left untouched.
func (s *FileStore) Save(record domain.Record) error {
	payload := fileRecord{
		LastRunDate: record.LastRunDate,
		PostedIDs:   record.Posted(),
		SeenLinks:   record.Seen(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp_state_*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := s.rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	committed = true

	return nil
}

// MarkAndSave reloads the latest record, adds key and saves only if something changed.
func (s *FileStore) MarkAndSave(key domain.DedupKey) (domain.Record, error) {
	current := s.Load()
	if !current.Add(key) {
		return current, nil
	}
	if err := s.Save(current); err != nil {
		return current, fmt.Errorf("commit %s: %w", key.Value, err)
	}
	return current, nil
}
