// Package clientcache stores a polling client's last validated
// response per URL, so a restarted poller can resume conditional
// requests with the validator it already holds instead of re-fetching
// everything.
package clientcache

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Entry is one cached conditional exchange: the response body last
// received for a URL together with the validator that identifies it.
type Entry struct {
	URL       string
	ETag      string
	Body      []byte
	FetchedAt time.Time
}

// CacheProvider is an interface for the client-side conditional cache.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the cached entry for the given URL, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	Get(url string) (Entry, bool, error)
	// Put stores the entry, replacing any previous one for the same URL.
	Put(Entry) error
	// Purge removes the cache entry for the given URL.
	Purge(url string)
	// Has checks if the specified URL exists in the cache.
	Has(url string) bool
}

type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) SQLiteCache {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS client_cache (
		url TEXT PRIMARY KEY,
		etag TEXT,
		body BLOB,
		fetched_at INTEGER
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteCache) Get(url string) (Entry, bool, error) {
	entry := Entry{URL: url}
	var fetchedAt int64
	err := s.db.QueryRow(
		"SELECT etag, body, fetched_at FROM client_cache WHERE url = ?", url,
	).Scan(&entry.ETag, &entry.Body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry.FetchedAt = time.Unix(fetchedAt, 0)
	return entry, true, nil
}

func (s SQLiteCache) Put(entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO client_cache
		(url, etag, body, fetched_at) VALUES (?, ?, ?, ?)`,
		entry.URL, entry.ETag, entry.Body, entry.FetchedAt.Unix())
	return err
}

func (s SQLiteCache) Purge(url string) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM client_cache WHERE url = ?", url)
	if err != nil {
		panic(err)
	}
}

func (s SQLiteCache) Has(url string) bool {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM client_cache WHERE url = ?", url).Scan(&one)
	return err == nil
}

// MemoryCache is a map-backed provider for tests and one-shot runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (m *MemoryCache) Get(url string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[url]
	if !ok {
		return Entry{}, false, nil
	}
	// hand out a copy, like the SQLite provider does
	entry.Body = append([]byte(nil), entry.Body...)
	return entry, true, nil
}

func (m *MemoryCache) Put(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Body = append([]byte(nil), entry.Body...)
	m.entries[entry.URL] = entry
	return nil
}

func (m *MemoryCache) Purge(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, url)
}

func (m *MemoryCache) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[url]
	return ok
}
