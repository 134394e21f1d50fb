package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	inmemdb "github.com/redinnovafp/backend/storage/database/inmem"
)

// Version is the schema version written to every storage file.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported storage version")
	ErrMalformed          = errors.New("malformed storage file")

	groups = []string{inmemdb.MeetingStorage, inmemdb.FormStorage, inmemdb.AppStorage}
)

type (
	envelope struct {
		Version int         `json:"version"`
		State   interface{} `json:"state"`
	}

	// Store persists an in-memory database as one versioned JSON file per storage group.
	Store struct {
		mu  sync.Mutex // serializes writes
		dir string
		db  *inmemdb.DB
	}
)

// Open loads the storage files found in dir into a new in-memory database.
// The database is saved back to dir after every mutation.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	s := &Store{dir: dir, db: inmemdb.Open()}
	for _, group := range groups {
		if err := s.load(group); err != nil {
			return nil, errors.Wrap(err, group)
		}
	}
	s.db.OnChange = s.save
	return s, nil
}

func (s *Store) DB() *inmemdb.DB { return s.db }

func (s *Store) path(group string) string {
	return filepath.Join(s.dir, group+".json")
}

func (s *Store) load(group string) error {
	data, err := os.ReadFile(s.path(group))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "reading storage file")
	}

	version := gjson.GetBytes(data, "version")
	if !version.Exists() || !gjson.GetBytes(data, "state").IsObject() {
		return ErrMalformed
	}
	if version.Int() > Version {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", version.Int())
	}
	state := []byte(gjson.GetBytes(data, "state").Raw)

	switch group {
	case inmemdb.MeetingStorage:
		var st inmemdb.MeetingState
		if err = json.Unmarshal(state, &st); err == nil {
			s.db.RestoreMeetingState(st)
		}
	case inmemdb.FormStorage:
		var st inmemdb.FormState
		if err = json.Unmarshal(state, &st); err == nil {
			s.db.RestoreFormState(st)
		}
	case inmemdb.AppStorage:
		var st inmemdb.AppState
		if err = json.Unmarshal(state, &st); err == nil {
			s.db.RestoreAppState(st)
		}
	}
	if err != nil {
		return errors.Wrap(err, "decoding storage state")
	}
	return nil
}

func (s *Store) save(group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := envelope{Version: Version}
	switch group {
	case inmemdb.MeetingStorage:
		env.State = s.db.MeetingState()
	case inmemdb.FormStorage:
		env.State = s.db.FormState()
	case inmemdb.AppStorage:
		env.State = s.db.AppState()
	default:
		return errors.Errorf("unknown storage group %q", group)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding storage state")
	}
	return writeFile(s.path(group), data)
}

// Flush saves every storage group.
func (s *Store) Flush() error {
	for _, group := range groups {
		if err := s.save(group); err != nil {
			return errors.Wrap(err, group)
		}
	}
	return nil
}

// writeFile replaces path with data through a temp file rename.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	return nil
}
