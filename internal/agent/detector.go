// Package agent watches the content source for edits and drives at most one
// build per detection cycle, writing the outcome back to the source.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/checksum"
	"github.com/starford/sitesmith/internal/metrics"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/source"
	"github.com/starford/sitesmith/internal/state"
)

// editGranularity is the precision of source edit timestamps.
const editGranularity = time.Minute

// Collection is a tracked collection of the content source.
type Collection struct {
	// Name labels changes and snapshot rows, e.g. "pages".
	Name string
	// ID is the collection's id in the content source.
	ID string
	// Owned lists properties the agent writes itself. They are left out of
	// the record hash together with the edit time, so a write-back does not
	// register as an edit.
	Owned []string
}

// SiteCollection returns the sites collection. Its Status and Domain
// properties are owned by the Reporter.
func SiteCollection(id string) Collection {
	return Collection{Name: "sites", ID: id, Owned: []string{propStatus, propDomain}}
}

// PageCollection returns the pages collection. Its Status and SEO fields are
// written back after a published build.
func PageCollection(id string) Collection {
	return Collection{Name: "pages", ID: id, Owned: []string{propStatus, propSEOTitle, propSEODescription}}
}

// DetectorOptions tune a Detector. Zero values select defaults.
type DetectorOptions struct {
	// Concurrency bounds parallel collection queries. Default 1.
	Concurrency int
	PageSize    int
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// CollectionError records a collection that could not be processed.
type CollectionError struct {
	Collection string
	Err        error
}

func (e CollectionError) Error() string { return e.Collection + ": " + e.Err.Error() }
func (e CollectionError) Unwrap() error { return e.Err }

// Detection is the outcome of one detection pass.
type Detection struct {
	// Changes are ordered by collection, then by source order.
	Changes []models.Change
	// Baselined names collections that had no cursor and were snapshotted
	// instead of diffed.
	Baselined []string
	Failed    []CollectionError
}

// Detector diffs the content source against a persisted snapshot.
type Detector struct {
	src         source.Source
	store       state.Store
	collections []Collection
	concurrency int
	pageSize    int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewDetector returns a Detector over the given collections.
func NewDetector(src source.Source, store state.Store, collections []Collection, opts DetectorOptions) *Detector {
	d := &Detector{
		src:         src,
		store:       store,
		collections: append([]Collection(nil), collections...),
		concurrency: opts.Concurrency,
		pageSize:    opts.PageSize,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if d.concurrency < 1 {
		d.concurrency = 1
	}
	if d.pageSize <= 0 {
		d.pageSize = source.DefaultPageSize
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Collections returns the tracked collections.
func (d *Detector) Collections() []Collection {
	return append([]Collection(nil), d.collections...)
}

type collectionResult struct {
	changes   []models.Change
	baselined bool
	err       error
}

// forEach runs fn for every collection with bounded concurrency and returns
// the results in collection order. A failing collection never cancels its
// siblings; only ctx does.
func (d *Detector) forEach(ctx context.Context, fn func(context.Context, Collection) collectionResult) ([]collectionResult, error) {
	results := make([]collectionResult, len(d.collections))
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, col := range d.collections {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = fn(ctx, col)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

func (d *Detector) collect(results []collectionResult, det *Detection) {
	for i, r := range results {
		name := d.collections[i].Name
		if r.err != nil {
			err := r.err
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %w", apperr.ErrTransient, err)
			}
			det.Failed = append(det.Failed, CollectionError{Collection: name, Err: err})
			d.metrics.CollectionError(name)
			d.logger.Warn("collection check failed", "collection", name, "error", r.err)
			continue
		}
		if r.baselined {
			det.Baselined = append(det.Baselined, name)
		}
		for _, c := range r.changes {
			d.metrics.Change(c.Collection, string(c.Type))
		}
		det.Changes = append(det.Changes, r.changes...)
	}
}

// Snapshot queries every collection in full and records the hash of each
// record as the new baseline. No changes are reported.
func (d *Detector) Snapshot(ctx context.Context) (Detection, error) {
	var det Detection
	results, err := d.forEach(ctx, d.baseline)
	d.collect(results, &det)
	d.updateTracked()
	return det, err
}

// Resume baselines only collections that have never been checked, leaving
// the persisted snapshot of the others in place so edits made while the
// process was down are still detected.
func (d *Detector) Resume(ctx context.Context) (Detection, error) {
	var det Detection
	results, err := d.forEach(ctx, func(ctx context.Context, col Collection) collectionResult {
		_, ok, err := d.store.Cursor(col.Name)
		if err != nil {
			return collectionResult{err: err}
		}
		if ok {
			return collectionResult{}
		}
		return d.baseline(ctx, col)
	})
	d.collect(results, &det)
	d.updateTracked()
	return det, err
}

func (d *Detector) baseline(ctx context.Context, col Collection) collectionResult {
	now := d.now()
	recs, err := source.QueryAll(ctx, d.src, col.ID, source.Query{PageSize: d.pageSize})
	if err != nil {
		return collectionResult{err: err}
	}
	entries := make([]state.Entry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, entryFor(col, r))
	}
	if err := d.store.Commit(col.Name, entries, nil, now); err != nil {
		return collectionResult{err: err}
	}
	d.logger.Info("collection snapshotted", "collection", col.Name, "records", len(entries))
	return collectionResult{baselined: true}
}

// Detect queries each collection for records edited at or after its last
// check and classifies them against the snapshot. A collection that has
// never been checked is baselined instead. The snapshot and cursor of a
// collection are only advanced when its query and commit both succeed.
func (d *Detector) Detect(ctx context.Context) (Detection, error) {
	var det Detection
	results, err := d.forEach(ctx, d.detectCollection)
	d.collect(results, &det)
	d.updateTracked()
	return det, err
}

func (d *Detector) detectCollection(ctx context.Context, col Collection) collectionResult {
	since, ok, err := d.store.Cursor(col.Name)
	if err != nil {
		return collectionResult{err: err}
	}
	if !ok {
		return d.baseline(ctx, col)
	}

	// Captured before the query so an edit landing mid-query is picked up
	// by the next cycle's inclusive filter.
	now := d.now()
	// Sources may report edit times rounded down to the minute, so an edit
	// made after the cursor can carry an earlier timestamp. Re-returned
	// records are absorbed by the hash check.
	since = since.Truncate(editGranularity)
	recs, err := source.QueryAll(ctx, d.src, col.ID, source.Query{EditedAtOrAfter: since, PageSize: d.pageSize})
	if err != nil {
		return collectionResult{err: err}
	}
	known, err := d.store.Hashes(col.Name)
	if err != nil {
		return collectionResult{err: err}
	}

	var changes []models.Change
	seen := make(map[string]int, len(recs))
	entries := make([]state.Entry, 0, len(recs))
	for _, r := range recs {
		e := entryFor(col, r)
		if i, dup := seen[r.ID]; dup {
			entries[i] = e
			continue
		}
		seen[r.ID] = len(entries)
		entries = append(entries, e)

		var kind models.ChangeType
		prev, tracked := known[r.ID]
		switch {
		case !tracked:
			kind = models.ChangeCreated
		case prev != e.Hash:
			kind = models.ChangeUpdated
		default:
			continue
		}
		changes = append(changes, models.Change{
			Type:       kind,
			Collection: col.Name,
			ExternalID: r.ID,
			Title:      r.Title,
			LastEdited: r.LastEditedAt,
			ObservedAt: now,
		})
	}

	if err := d.store.Commit(col.Name, entries, nil, now); err != nil {
		return collectionResult{err: err}
	}
	return collectionResult{changes: changes}
}

// Reconcile lists every collection in full and reports snapshot entries that
// no longer exist in the source as deleted, removing them from the snapshot.
func (d *Detector) Reconcile(ctx context.Context) (Detection, error) {
	var det Detection
	results, err := d.forEach(ctx, func(ctx context.Context, col Collection) collectionResult {
		now := d.now()
		known, err := d.store.Hashes(col.Name)
		if err != nil {
			return collectionResult{err: err}
		}
		recs, err := source.QueryAll(ctx, d.src, col.ID, source.Query{PageSize: d.pageSize})
		if err != nil {
			return collectionResult{err: err}
		}
		present := make(map[string]struct{}, len(recs))
		for _, r := range recs {
			present[r.ID] = struct{}{}
		}

		var removed []string
		var changes []models.Change
		for id := range known {
			if _, ok := present[id]; ok {
				continue
			}
			removed = append(removed, id)
		}
		slices.Sort(removed)
		for _, id := range removed {
			changes = append(changes, models.Change{
				Type:       models.ChangeDeleted,
				Collection: col.Name,
				ExternalID: id,
				ObservedAt: now,
			})
		}
		if len(removed) > 0 {
			if err := d.store.Commit(col.Name, nil, removed, time.Time{}); err != nil {
				return collectionResult{err: err}
			}
		}
		return collectionResult{changes: changes}
	})
	d.collect(results, &det)
	d.updateTracked()
	return det, err
}

func (d *Detector) updateTracked() {
	if d.metrics == nil {
		return
	}
	if n, err := d.store.Count(); err == nil {
		d.metrics.Tracked(n)
	}
}

func entryFor(col Collection, r models.Record) state.Entry {
	hash := checksum.Record(r.LastEditedAt, r.Properties)
	if len(col.Owned) > 0 {
		props := maps.Clone(r.Properties)
		for _, name := range col.Owned {
			delete(props, name)
		}
		hash = checksum.Record(time.Time{}, props)
	}
	return state.Entry{
		RecordID:   r.ID,
		Title:      r.Title,
		Hash:       hash,
		LastEdited: r.LastEditedAt,
	}
}
