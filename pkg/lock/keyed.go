package lock

import (
	"sort"
	"sync"
)

// KeyedMutex serialises critical sections per string key. The batch
// orchestrator holds the keys for every party touched by a row across the
// whole check-then-write sequence, so two concurrent batches cannot both pass
// an admission check for the same student, instructor or class day before
// either one writes.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex returns an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyEntry)}
}

// Lock acquires every key and returns the release function. Keys are
// deduplicated and acquired in sorted order so overlapping key sets taken by
// concurrent callers cannot deadlock.
func (k *KeyedMutex) Lock(keys ...string) (release func()) {
	unique := dedupeSorted(keys)

	entries := make([]*keyEntry, 0, len(unique))
	k.mu.Lock()
	for _, key := range unique {
		e, ok := k.entries[key]
		if !ok {
			e = &keyEntry{}
			k.entries[key] = e
		}
		e.refs++
		entries = append(entries, e)
	}
	k.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(entries) - 1; i >= 0; i-- {
				entries[i].mu.Unlock()
			}
			k.mu.Lock()
			for i, key := range unique {
				entries[i].refs--
				if entries[i].refs == 0 {
					delete(k.entries, key)
				}
			}
			k.mu.Unlock()
		})
	}
}

func dedupeSorted(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	unique := sorted[:1]
	for _, key := range sorted[1:] {
		if key != unique[len(unique)-1] {
			unique = append(unique, key)
		}
	}
	return unique
}
