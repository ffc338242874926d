package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"ragbot/internal/domain"
)

// Store is the in-memory document store backed by a single JSON file.
// Readers share the lock; loading, appending and persisting are exclusive.
type Store struct {
	mu        sync.RWMutex
	path      string
	records   []domain.Record
	ids       map[string]int
	dimension int
}

// AppendResult reports how a batch append went.
type AppendResult struct {
	Added    int
	Rejected []*domain.ValidationError
}

func New(path string) *Store {
	return &Store{path: path, ids: make(map[string]int)}
}

func (s *Store) Path() string { return s.path }

// Load replaces the in-memory records with the persisted ones.
func (s *Store) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, &domain.NotFoundError{Path: s.path}
		}
		return 0, fmt.Errorf("read document store: %w", err)
	}
	var records []domain.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return 0, fmt.Errorf("decode document store %s: %w", s.path, err)
	}

	ids := make(map[string]int, len(records))
	dimension := 0
	for i, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("document store %s: record %d: %w", s.path, i, domain.NewValidationError("", "empty id"))
		}
		if _, dup := ids[r.ID]; dup {
			return 0, fmt.Errorf("document store %s: %w", s.path, domain.NewValidationError(r.ID, "duplicate id"))
		}
		if len(r.Embedding) == 0 {
			return 0, fmt.Errorf("document store %s: %w", s.path, domain.NewValidationError(r.ID, "missing embedding"))
		}
		if dimension == 0 {
			dimension = len(r.Embedding)
		} else if len(r.Embedding) != dimension {
			return 0, fmt.Errorf("document store %s: record %q: %w", s.path, r.ID,
				&domain.DimensionMismatchError{Expected: dimension, Got: len(r.Embedding)})
		}
		ids[r.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.ids = ids
	s.dimension = dimension
	return len(records), nil
}

// Append adds records in order. Invalid records are skipped and reported;
// a dimensionality mismatch among the valid ones rejects the whole batch
// before anything is added. Numeric metadata is stored as json.Number so it
// reads back unchanged after Persist and Load.
func (s *Store) Append(records []domain.Record) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res AppendResult
	accepted := make([]domain.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	dimension := s.dimension
	for _, r := range records {
		verr := s.validate(r)
		if verr == nil {
			if _, dup := seen[r.ID]; dup {
				verr = domain.NewValidationError(r.ID, "duplicate id")
			}
		}
		if verr != nil {
			res.Rejected = append(res.Rejected, verr)
			continue
		}
		if dimension == 0 {
			dimension = len(r.Embedding)
		} else if len(r.Embedding) != dimension {
			return AppendResult{}, &domain.DimensionMismatchError{Expected: dimension, Got: len(r.Embedding)}
		}
		seen[r.ID] = struct{}{}
		r.Meta = normalizeMeta(r.Meta)
		accepted = append(accepted, r)
	}

	for _, r := range accepted {
		s.ids[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	res.Added = len(accepted)
	if len(s.records) > 0 {
		s.dimension = dimension
	}
	return res, nil
}

func (s *Store) validate(r domain.Record) *domain.ValidationError {
	switch {
	case r.ID == "":
		return domain.NewValidationError("", "empty id")
	case strings.TrimSpace(r.Content) == "":
		return domain.NewValidationError(r.ID, "empty content")
	case len(r.Embedding) == 0:
		return domain.NewValidationError(r.ID, "missing embedding")
	}
	if _, dup := s.ids[r.ID]; dup {
		return domain.NewValidationError(r.ID, "duplicate id")
	}
	for k, v := range r.Meta {
		if !isScalar(v) {
			return domain.NewValidationError(r.ID, "metadata %q is not a scalar (%T)", k, v)
		}
		if f, ok := asFloat(v); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return domain.NewValidationError(r.ID, "metadata %q is not a finite number", k)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// normalizeMeta copies meta with every number converted to json.Number.
func normalizeMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = normalizeNumber(v)
	}
	return out
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int8:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int16:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int64:
		return json.Number(strconv.FormatInt(n, 10))
	case uint:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint8:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint16:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint32:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint64:
		return json.Number(strconv.FormatUint(n, 10))
	case float32:
		return json.Number(strconv.FormatFloat(float64(n), 'g', -1, 32))
	case float64:
		return json.Number(strconv.FormatFloat(n, 'g', -1, 64))
	}
	return v
}

// All returns every record in insertion order.
func (s *Store) All() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.ids[id]
	if !ok {
		return domain.Record{}, false
	}
	return s.records[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension is the embedding size shared by all records, 0 while empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Reset drops all in-memory records. The file is untouched until Persist.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.ids = make(map[string]int)
	s.dimension = 0
}

// Persist writes all records to the store file atomically.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.records
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document store: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace document store: %w", err)
	}
	return nil
}
