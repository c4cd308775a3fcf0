package services

import (
	"sort"
	"sync"

	"gamification-engine/models"
)

// KeyedLocks serializes balance-affecting operations per entity. Every
// operation acquires the locks of all entities it touches in sorted key order,
// so two operations on overlapping entity sets can never deadlock or
// interleave their read-modify-write cycles.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *KeyedLocks) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Acquire locks all keys in sorted order and returns a release func that
// unlocks them in reverse. Duplicate keys are collapsed.
func (l *KeyedLocks) Acquire(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		m := l.lockFor(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func subjectLockKey(subject models.Subject) string {
	return string(subject.SubjectKind()) + ":" + subject.SubjectID()
}

func playerLockKey(id string) string { return string(models.SubjectPlayer) + ":" + id }
func offerLockKey(id string) string  { return "offer:" + id }
