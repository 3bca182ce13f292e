package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"

	"github.com/satishbabariya/salesreport/query"
)

// Store is the persistent tier behind the in-memory cache. Load returns
// nil, nil for an unknown fingerprint.
type Store interface {
	Load(fp query.Fingerprint) (*Entry, error)
	Save(fp query.Fingerprint, e *Entry) error
	Delete(fp query.Fingerprint) error
	DeleteTagged(table string) (int, error)
	Purge() error
}

const envelopeExt = ".json"

// envelopeFormat is written into every envelope. Envelopes whose format does
// not satisfy readableFormats are discarded on load.
const envelopeFormat = "1.1"

var readableFormats = version.MustConstraints(version.NewConstraint(">= 1.0, < 2.0"))

// envelope is the on-disk form of an Entry.
type envelope struct {
	Format      string        `json:"format"`
	Fingerprint string        `json:"fingerprint"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
	Tags        []string      `json:"tags,omitempty"`
	Rows        query.Rows    `json:"rows"`
}

// DiskStore keeps one JSON envelope per fingerprint in a directory. Row
// values come back as JSON types: numbers as json.Number, times as strings.
type DiskStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewDiskStore creates dir on fs if needed and returns a store rooted there.
func NewDiskStore(fs afero.Fs, dir string) (*DiskStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &DiskStore{fs: fs, dir: dir}, nil
}

func (s *DiskStore) path(fp query.Fingerprint) string {
	return filepath.Join(s.dir, fp.String()+envelopeExt)
}

// Load reads the envelope for fp.
func (s *DiskStore) Load(fp query.Fingerprint) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read(s.path(fp))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !readable(env.Format) {
		if err := s.remove(s.path(fp)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &Entry{Rows: env.Rows, CreatedAt: env.CreatedAt, TTL: env.TTL, Tags: env.Tags}, nil
}

func readable(format string) bool {
	v, err := version.NewVersion(format)
	if err != nil {
		return false
	}
	return readableFormats.Check(v)
}

func (s *DiskStore) read(path string) (*envelope, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &env, nil
}

// Save writes the envelope for fp, replacing any previous one.
func (s *DiskStore) Save(fp query.Fingerprint, e *Entry) error {
	data, err := json.Marshal(envelope{
		Format:      envelopeFormat,
		Fingerprint: fp.String(),
		CreatedAt:   e.CreatedAt,
		TTL:         e.TTL,
		Tags:        e.Tags,
		Rows:        e.Rows,
	})
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", fp.Short(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(fp) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write entry %s: %w", fp.Short(), err)
	}
	if err := s.fs.Rename(tmp, s.path(fp)); err != nil {
		return fmt.Errorf("commit entry %s: %w", fp.Short(), err)
	}
	return nil
}

// Delete removes the envelope for fp. A missing envelope is not an error.
func (s *DiskStore) Delete(fp query.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(s.path(fp))
}

func (s *DiskStore) remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DeleteTagged removes every envelope tagged with table.
func (s *DiskStore) DeleteTagged(table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.list()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		env, err := s.read(path)
		if err != nil {
			return removed, err
		}
		if !slices.Contains(env.Tags, table) {
			continue
		}
		if err := s.remove(path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Purge removes every envelope.
func (s *DiskStore) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.list()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := s.remove(path); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiskStore) list() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir %s: %w", s.dir, err)
	}
	var paths []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), envelopeExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, info.Name()))
	}
	return paths, nil
}
