// Package selection keeps each user's in-progress ticket choice. Selections
// are session state: never persisted, cleared on purchase, explicit clear,
// or after sitting idle past the configured TTL.
package selection

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	numbers map[string]struct{}
	touched time.Time
}

type Store struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]*entry
}

func NewStore() *Store {
	return &Store{
		byUser: make(map[uuid.UUID]*entry),
	}
}

// Add puts number into the user's selection. Adding twice is a no-op.
func (s *Store) Add(userID uuid.UUID, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok {
		e = &entry{numbers: make(map[string]struct{})}
		s.byUser[userID] = e
	}
	e.numbers[number] = struct{}{}
	e.touched = time.Now()
}

// Remove drops number from the user's selection if present.
func (s *Store) Remove(userID uuid.UUID, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok {
		return
	}
	delete(e.numbers, number)
	if len(e.numbers) == 0 {
		delete(s.byUser, userID)
		return
	}
	e.touched = time.Now()
}

// Contains reports whether number is in the user's selection.
func (s *Store) Contains(userID uuid.UUID, number string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok {
		return false
	}
	_, ok = e.numbers[number]
	return ok
}

// Numbers returns the user's selection sorted by ticket number. Reading
// counts as activity: a user watching their cart keeps it alive.
func (s *Store) Numbers(userID uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok {
		return []string{}
	}
	e.touched = time.Now()

	numbers := make([]string, 0, len(e.numbers))
	for n := range e.numbers {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	return numbers
}

// Clear empties the user's selection unconditionally.
func (s *Store) Clear(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byUser, userID)
}

// Len returns the size of the user's selection.
func (s *Store) Len(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byUser[userID]
	if !ok {
		return 0
	}
	return len(e.numbers)
}

// PruneIdle drops every selection untouched for longer than maxIdle and
// returns how many users were evicted. Abandoned carts would otherwise
// accumulate forever since logout is client-side.
func (s *Store) PruneIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for userID, e := range s.byUser {
		if e.touched.Before(cutoff) {
			delete(s.byUser, userID)
			evicted++
		}
	}

	return evicted
}
