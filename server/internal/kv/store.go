package kv

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"downpour/server/internal/job"
)

const sessionFile = "session.dat"

// In-memory thread-safe registry of jobs with optional session persistence.
type Store struct {
	table map[string]*job.Job
	mu    sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		table: make(map[string]*job.Job),
	}
}

// Get a job pointer given its id
func (m *Store) Get(id string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.table[id]
	if !ok {
		return nil, errors.New("no job found for the given key")
	}

	return entry, nil
}

// Store a job pointer and return its id
func (m *Store) Set(j *job.Job) string {
	m.mu.Lock()
	m.table[j.Id()] = j
	m.mu.Unlock()

	return j.Id()
}

// Removes a job from the registry, given its id
func (m *Store) Delete(id string) {
	m.mu.Lock()
	delete(m.table, id)
	m.mu.Unlock()
}

func (m *Store) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.table))
	for id := range m.table {
		keys = append(keys, id)
	}

	return keys
}

// All returns a snapshot of every stored job, oldest first.
func (m *Store) All() []job.Snapshot {
	m.mu.RLock()
	snapshots := make([]job.Snapshot, 0, len(m.table))
	for _, j := range m.table {
		snapshots = append(snapshots, j.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(snapshots, func(i, k int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[k].CreatedAt)
	})

	return snapshots
}

type session struct {
	Jobs []job.Snapshot
}

// Persist the registry in a single session file
func (m *Store) Persist(dir string) error {
	fd, err := os.Create(filepath.Join(dir, sessionFile))
	if err != nil {
		return errors.Join(errors.New("failed to persist session"), err)
	}
	defer fd.Close()

	if err := gob.NewEncoder(fd).Encode(session{Jobs: m.All()}); err != nil {
		return errors.Join(errors.New("failed to persist session"), err)
	}

	return nil
}

// Restore a persisted session. Jobs that were not in a terminal state
// are handed to resubmit in their original submission order.
func (m *Store) Restore(dir string, resubmit func(*job.Job)) error {
	fd, err := os.Open(filepath.Join(dir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer fd.Close()

	var s session
	if err := gob.NewDecoder(fd).Decode(&s); err != nil {
		return err
	}

	for _, snap := range s.Jobs {
		restored := job.Restore(snap)
		m.Set(restored)

		if !restored.State().Terminal() {
			resubmit(restored)
		}
	}

	return nil
}
