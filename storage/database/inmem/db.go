package inmemdb

import (
	"sort"
	"sync"

	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

// Storage groups, each one is persisted as a unit by the local store.
const (
	MeetingStorage = "meeting-storage"
	FormStorage    = "form-storage"
	AppStorage     = "app-storage"
)

type (
	DB struct {
		user        *table[user.User]
		meeting     *table[meeting.Meeting]
		invitation  *table[meeting.Invitation]
		message     *table[message.Message]
		form        *table[form.Form]
		response    *table[form.Response]
		template    *table[form.ReportTemplate] // by form id
		report      *table[form.Report]
		observation *table[observatory.Entry]
		singleton   *singletons

		// OnChange is called after every mutation with the storage group that changed.
		OnChange func(group string) error
	}

	singletons struct {
		mu          sync.RWMutex
		settings    *settings.AppSettings
		observatory *observatory.Config
	}

	table[T any] struct {
		mu   sync.RWMutex
		rows map[string]T
	}
)

func Open() *DB {
	return &DB{
		user:        newTable[user.User](),
		meeting:     newTable[meeting.Meeting](),
		invitation:  newTable[meeting.Invitation](),
		message:     newTable[message.Message](),
		form:        newTable[form.Form](),
		response:    newTable[form.Response](),
		template:    newTable[form.ReportTemplate](),
		report:      newTable[form.Report](),
		observation: newTable[observatory.Entry](),
		singleton:   &singletons{},
	}
}

func (db *DB) changed(group string) error {
	if db.OnChange == nil {
		return nil
	}
	return db.OnChange(group)
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

// insert stores row, it reports false when id is taken.
func (t *table[T]) insert(id string, row T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; ok {
		return false
	}
	t.rows[id] = row
	return true
}

// update replaces row, it reports false when id is unknown.
func (t *table[T]) update(id string, row T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = row
	return true
}

func (t *table[T]) upsert(id string, row T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = row
}

func (t *table[T]) delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rows[id]
	delete(t.rows, id)
	return ok
}

func (t *table[T]) deleteWhere(match func(T) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int
	for id, row := range t.rows {
		if match(row) {
			delete(t.rows, id)
			n++
		}
	}
	return n
}

// filter returns the matching rows ordered by id, a nil match returns them all.
func (t *table[T]) filter(match func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.rows))
	for id, row := range t.rows {
		if match == nil || match(row) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	rows := make([]T, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.rows[id])
	}
	return rows
}

func (t *table[T]) replace(rows []T, key func(T) string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[string]T, len(rows))
	for _, row := range rows {
		t.rows[key(row)] = row
	}
}
