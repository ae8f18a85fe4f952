// Package testutil provides shared test helpers for state databases, output
// directories and fixture records.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/source"
	"github.com/starford/sitesmith/internal/state"
	"github.com/starford/sitesmith/internal/storage"
)

// TestDB creates a temporary state database that is automatically cleaned up.
func TestDB(t *testing.T) *state.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sitesmith-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := state.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestOutput creates a temporary output directory with a storage.Provider.
func TestOutput(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// SeedRecords adds n records named <collection>-1 … <collection>-n to m,
// edited one minute apart starting at base.
func SeedRecords(m *source.Memory, collection string, n int, base time.Time) {
	m.AddCollection(collection)
	for i := range n {
		m.Put(collection, models.Record{
			ID:           fmt.Sprintf("%s-%d", collection, i+1),
			Title:        fmt.Sprintf("%s %d", collection, i+1),
			LastEditedAt: base.Add(time.Duration(i) * time.Minute),
			Properties:   map[string]any{"Name": fmt.Sprintf("%s %d", collection, i+1), "Order": i + 1},
		})
	}
}

// Clock is a settable time source safe for concurrent use.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a Clock reading t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}
