package source

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
)

// Memory is an in-process Source. It backs demo runs and tests.
type Memory struct {
	mu          sync.Mutex
	collections map[string][]models.Record
	failures    map[string]error
	writeErr    error
	writes      []Write
	created     map[string][]Fields
	now         func() time.Time
}

// NewMemory returns an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]models.Record),
		failures:    make(map[string]error),
		created:     make(map[string][]Fields),
		now:         time.Now,
	}
}

// SetClock sets the time source used to stamp written records.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// AddCollection registers an empty collection.
func (m *Memory) AddCollection(collectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collectionID]; !ok {
		m.collections[collectionID] = nil
	}
}

// Put inserts or replaces a record in a collection.
func (m *Memory) Put(collectionID string, rec models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Properties = maps.Clone(rec.Properties)
	recs := m.collections[collectionID]
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			return
		}
	}
	m.collections[collectionID] = append(recs, rec)
}

// Edit changes one property of a record and bumps its edit time.
func (m *Memory) Edit(recordID, key string, value any, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, recs := range m.collections {
		for i := range recs {
			if recs[i].ID != recordID {
				continue
			}
			props := maps.Clone(recs[i].Properties)
			if props == nil {
				props = make(map[string]any)
			}
			props[key] = value
			recs[i].Properties = props
			recs[i].LastEditedAt = at
			return nil
		}
	}
	return fmt.Errorf("source: record %s: %w", recordID, apperr.ErrNotFound)
}

// Delete removes a record from whichever collection holds it.
func (m *Memory) Delete(recordID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, recs := range m.collections {
		for i := range recs {
			if recs[i].ID == recordID {
				m.collections[id] = append(recs[:i:i], recs[i+1:]...)
				return
			}
		}
	}
}

// Fail makes every query against collectionID return err until cleared
// with a nil err.
func (m *Memory) Fail(collectionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, collectionID)
		return
	}
	m.failures[collectionID] = err
}

// FailWrites makes WriteStatus return err until cleared with a nil err.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns every WriteStatus call received, in order.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

// Created returns the field sets passed to CreateRecord for a collection.
func (m *Memory) Created(collectionID string) []Fields {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Fields(nil), m.created[collectionID]...)
}

func (m *Memory) QueryRecords(ctx context.Context, collectionID string, q Query) (RecordPage, error) {
	if err := ctx.Err(); err != nil {
		return RecordPage{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[collectionID]; err != nil {
		return RecordPage{}, err
	}
	recs, ok := m.collections[collectionID]
	if !ok {
		return RecordPage{}, fmt.Errorf("source: collection %s: %w", collectionID, apperr.ErrUnknownCollection)
	}

	var matched []models.Record
	for _, r := range recs {
		if !q.EditedAtOrAfter.IsZero() && r.LastEditedAt.Before(q.EditedAtOrAfter) {
			continue
		}
		r.Properties = maps.Clone(r.Properties)
		matched = append(matched, r)
	}

	offset := 0
	if q.PageToken != "" {
		n, err := strconv.Atoi(q.PageToken)
		if err != nil || n < 0 {
			return RecordPage{}, fmt.Errorf("source: invalid page token %q", q.PageToken)
		}
		offset = n
	}
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := min(offset+size, len(matched))
	page := RecordPage{Records: matched[offset:end]}
	if end < len(matched) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// WriteStatus records the write and applies it to the stored record, bumping
// its edit time the way a real source does.
func (m *Memory) WriteStatus(ctx context.Context, recordID string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, Write{RecordID: recordID, Fields: maps.Clone(fields)})
	for _, recs := range m.collections {
		for i := range recs {
			if recs[i].ID != recordID {
				continue
			}
			props := maps.Clone(recs[i].Properties)
			if props == nil {
				props = make(map[string]any)
			}
			for k, v := range fields {
				props[k] = v
			}
			recs[i].Properties = props
			recs[i].LastEditedAt = m.now()
			return nil
		}
	}
	return nil
}

func (m *Memory) CreateRecord(ctx context.Context, collectionID string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collectionID]; !ok {
		return "", fmt.Errorf("source: collection %s: %w", collectionID, apperr.ErrUnknownCollection)
	}
	id := uuid.NewString()
	m.created[collectionID] = append(m.created[collectionID], maps.Clone(fields))
	m.collections[collectionID] = append(m.collections[collectionID], models.Record{
		ID:           id,
		LastEditedAt: m.now(),
		Properties:   map[string]any(maps.Clone(fields)),
	})
	return id, nil
}
