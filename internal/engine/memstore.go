package engine

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"

	"github.com/juju/errors"
)

// MemStore is a thread-safe in-memory document store that writes each
// collection to disk in the background after every change.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [collection][id]record
	data      map[string]map[string]Record
	seq       uint64
	gen       uint64
	persister *Persistence
	wg        sync.WaitGroup
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string]map[string]Record, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]Record)
	}
	m := &MemStore{
		data:      initialData,
		persister: p,
	}
	for _, docs := range initialData {
		for id, rec := range docs {
			rec.ID = id
			docs[id] = rec
			if rec.Seq > m.seq {
				m.seq = rec.Seq
			}
		}
	}
	return m
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

func (m *MemStore) Get(collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[collection][id]
	if !ok {
		return nil, errors.NotFoundf("document %q in %s", id, collection)
	}
	return bytes.Clone(rec.Doc), nil
}

func (m *MemStore) List(collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.data[collection]
	list := make([]Record, 0, len(docs))
	for _, rec := range docs {
		rec.Doc = bytes.Clone(rec.Doc)
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}

func (m *MemStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}

func (m *MemStore) Insert(collection, id string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return errors.NotValidf("document %q", id)
	}

	m.mu.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]Record)
	}
	if _, exists := m.data[collection][id]; exists {
		m.mu.Unlock()
		return errors.AlreadyExistsf("document %q in %s", id, collection)
	}
	m.seq++
	m.data[collection][id] = Record{ID: id, Seq: m.seq, Doc: bytes.Clone(doc)}
	gen, snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.persist(collection, gen, snapshot)
	return nil
}

func (m *MemStore) Update(collection, id string, fn MutateFunc) (json.RawMessage, error) {
	m.mu.Lock()
	rec, ok := m.data[collection][id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.NotFoundf("document %q in %s", id, collection)
	}

	updated, err := fn(bytes.Clone(rec.Doc))
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if !json.Valid(updated) {
		m.mu.Unlock()
		return nil, errors.NotValidf("updated document %q", id)
	}
	rec.Doc = bytes.Clone(updated)
	m.data[collection][id] = rec
	gen, snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.persist(collection, gen, snapshot)
	return updated, nil
}

func (m *MemStore) Delete(collection, id string) error {
	m.mu.Lock()
	if _, ok := m.data[collection][id]; !ok {
		m.mu.Unlock()
		return errors.NotFoundf("document %q in %s", id, collection)
	}
	delete(m.data[collection], id)
	gen, snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.persist(collection, gen, snapshot)
	return nil
}

// snapshotLocked copies a collection's record map for background saving.
// Document bytes are never mutated in place, so the records can be shared.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) snapshotLocked(collection string) (uint64, map[string]Record) {
	m.gen++
	current := m.data[collection]
	snapshot := make(map[string]Record, len(current))
	for id, rec := range current {
		snapshot[id] = rec
	}
	return m.gen, snapshot
}

func (m *MemStore) persist(collection string, gen uint64, snapshot map[string]Record) {
	if m.persister == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.persister.SaveCollection(collection, gen, snapshot); err != nil {
			logger.WithError(err).WithField("collection", collection).Error("could not persist collection")
		}
	}()
}
