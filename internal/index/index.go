// Package index holds the word -> course inverted index built during a crawl
// and its pipe-delimited serialized form.
package index

import (
	"sort"
	"sync"
)

// Entry is one (word, course) membership of the index.
type Entry struct {
	Word     string
	CourseID int
}

// Index maps each word to the set of courses whose title or description
// contains it. It only grows.
type Index struct {
	mu    sync.RWMutex
	words map[string]map[int]struct{}
	pairs int
}

// New creates an empty index
func New() *Index {
	return &Index{
		words: make(map[string]map[int]struct{}),
	}
}

// Merge records that word occurs for courseID. Merging the same pair twice is
// a no-op.
func (x *Index) Merge(word string, courseID int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.merge(word, courseID)
}

// MergeAll merges every word of one contribution under a single lock.
func (x *Index) MergeAll(words []string, courseID int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, word := range words {
		x.merge(word, courseID)
	}
}

func (x *Index) merge(word string, courseID int) {
	courses, exists := x.words[word]
	if !exists {
		courses = make(map[int]struct{})
		x.words[word] = courses
	}
	if _, dup := courses[courseID]; dup {
		return
	}
	courses[courseID] = struct{}{}
	x.pairs++
}

// Courses returns the sorted course identifiers indexed under word.
func (x *Index) Courses(word string) []int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	courses := x.words[word]
	ids := make([]int, 0, len(courses))
	for id := range courses {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Contains reports whether courseID is indexed under word.
func (x *Index) Contains(word string, courseID int) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.words[word][courseID]
	return ok
}

// Len returns the number of distinct words.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.words)
}

// Pairs returns the number of (word, course) memberships.
func (x *Index) Pairs() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.pairs
}

// Entries returns every membership sorted by word, then course identifier.
func (x *Index) Entries() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	words := make([]string, 0, len(x.words))
	for word := range x.words {
		words = append(words, word)
	}
	sort.Strings(words)

	entries := make([]Entry, 0, x.pairs)
	for _, word := range words {
		ids := make([]int, 0, len(x.words[word]))
		for id := range x.words[word] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			entries = append(entries, Entry{Word: word, CourseID: id})
		}
	}
	return entries
}
