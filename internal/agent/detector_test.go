package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/source"
	"github.com/starford/sitesmith/internal/state"
	"github.com/starford/sitesmith/internal/testutil"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	src   *source.Memory
	db    *state.DB
	clock *testutil.Clock
	det   *Detector
}

func newFixture(t *testing.T, collections ...string) *fixture {
	t.Helper()
	f := &fixture{
		src:   source.NewMemory(),
		db:    testutil.TestDB(t),
		clock: testutil.NewClock(t0),
	}
	f.src.SetClock(f.clock.Now)
	var cols []Collection
	for _, c := range collections {
		f.src.AddCollection(c)
		cols = append(cols, Collection{Name: c, ID: c})
	}
	f.det = NewDetector(f.src, f.db, cols, DetectorOptions{
		Concurrency: 2,
		PageSize:    3,
		Logger:      testutil.Logger(),
		Now:         f.clock.Now,
	})
	return f
}

func TestDetect_SingleEditYieldsOneUpdate(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 10, t0.Add(-time.Hour))
	ctx := context.Background()

	snap, err := f.det.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Changes) != 0 {
		t.Fatalf("snapshot reported %d changes", len(snap.Changes))
	}
	if n, _ := f.db.Count(); n != 10 {
		t.Fatalf("tracked %d records, want 10", n)
	}

	edited := f.clock.Advance(time.Minute)
	if err := f.src.Edit("pages-7", "Name", "Renamed", edited); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Minute)

	det, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(det.Changes) != 1 {
		t.Fatalf("got %d changes, want 1: %+v", len(det.Changes), det.Changes)
	}
	c := det.Changes[0]
	if c.Type != models.ChangeUpdated || c.ExternalID != "pages-7" || c.Collection != "pages" {
		t.Errorf("unexpected change %+v", c)
	}
}

func TestDetect_Idempotent(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 4, t0.Add(-time.Hour))
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	// Edit lands exactly on the cursor and the clock stands still, so the
	// inclusive filter returns it on every pass.
	if err := f.src.Edit("pages-2", "Name", "x", t0); err != nil {
		t.Fatal(err)
	}
	first, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Changes) != 1 {
		t.Fatalf("first pass: got %d changes, want 1", len(first.Changes))
	}
	second, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Changes) != 0 {
		t.Fatalf("second pass: got %+v, want no changes", second.Changes)
	}
}

func TestDetect_MinuteRoundedEditTimes(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 3, t0.Add(-time.Hour))
	ctx := context.Background()

	f.clock.Set(t0.Add(10 * time.Second))
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(t0.Add(20 * time.Second))
	if _, err := f.det.Detect(ctx); err != nil {
		t.Fatal(err)
	}

	// Edited at 09:00:30 but reported as 09:00:00, before the 09:00:20
	// cursor.
	if err := f.src.Edit("pages-2", "Name", "Renamed", t0.Add(30*time.Second).Truncate(time.Minute)); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(t0.Add(90 * time.Second))
	det, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(det.Changes) != 1 || det.Changes[0].ExternalID != "pages-2" || det.Changes[0].Type != models.ChangeUpdated {
		t.Fatalf("changes = %+v, want one update of pages-2", det.Changes)
	}

	f.clock.Set(t0.Add(100 * time.Second))
	again, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Changes) != 0 {
		t.Errorf("re-returned record reported again: %+v", again.Changes)
	}
}

func TestDetect_CreatedAndCollapsedEdits(t *testing.T) {
	f := newFixture(t, "sections")
	testutil.SeedRecords(f.src, "sections", 2, t0.Add(-time.Hour))
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	at := f.clock.Advance(time.Minute)
	f.src.Put("sections", models.Record{ID: "sections-new", Title: "New", LastEditedAt: at})
	for i := range 3 {
		if err := f.src.Edit("sections-1", "Order", 10+i, at.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	f.clock.Advance(time.Minute)

	det, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(det.Changes) != 2 {
		t.Fatalf("got %d changes, want 2: %+v", len(det.Changes), det.Changes)
	}
	kinds := map[string]models.ChangeType{}
	for _, c := range det.Changes {
		kinds[c.ExternalID] = c.Type
	}
	if kinds["sections-1"] != models.ChangeUpdated || kinds["sections-new"] != models.ChangeCreated {
		t.Errorf("unexpected classification: %v", kinds)
	}
}

func TestDetect_BaselinesUncheckedCollections(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 3, t0.Add(-time.Hour))

	det, err := f.det.Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(det.Changes) != 0 {
		t.Fatalf("baseline pass reported changes: %+v", det.Changes)
	}
	if len(det.Baselined) != 1 || det.Baselined[0] != "pages" {
		t.Fatalf("Baselined = %v, want [pages]", det.Baselined)
	}
}

func TestDetect_PartialFailure(t *testing.T) {
	f := newFixture(t, "pages", "team")
	testutil.SeedRecords(f.src, "pages", 3, t0.Add(-time.Hour))
	testutil.SeedRecords(f.src, "team", 3, t0.Add(-time.Hour))
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	at := f.clock.Advance(time.Minute)
	_ = f.src.Edit("pages-1", "Name", "p", at)
	_ = f.src.Edit("team-2", "Name", "t", at)
	f.src.Fail("team", errors.New("502 bad gateway"))
	f.clock.Advance(time.Minute)

	det, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(det.Changes) != 1 || det.Changes[0].ExternalID != "pages-1" {
		t.Fatalf("healthy collection not detected: %+v", det.Changes)
	}
	if len(det.Failed) != 1 || det.Failed[0].Collection != "team" {
		t.Fatalf("Failed = %+v, want team", det.Failed)
	}
	if !errors.Is(det.Failed[0], apperr.ErrTransient) {
		t.Errorf("collection failure should wrap ErrTransient: %v", det.Failed[0].Err)
	}

	// The failed collection keeps its cursor, so the edit is still seen.
	f.src.Fail("team", nil)
	f.clock.Advance(time.Minute)
	det, err = f.det.Detect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(det.Changes) != 1 || det.Changes[0].ExternalID != "team-2" {
		t.Fatalf("missed edit after recovery: %+v", det.Changes)
	}
}

func TestReconcile_ReportsDeletions(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 5, t0.Add(-time.Hour))
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	f.src.Delete("pages-3")
	f.src.Delete("pages-1")

	det, err := f.det.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(det.Changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(det.Changes))
	}
	if det.Changes[0].ExternalID != "pages-1" || det.Changes[1].ExternalID != "pages-3" {
		t.Errorf("unexpected deletions: %+v", det.Changes)
	}
	for _, c := range det.Changes {
		if c.Type != models.ChangeDeleted {
			t.Errorf("type = %s, want deleted", c.Type)
		}
	}

	again, _ := f.det.Reconcile(ctx)
	if len(again.Changes) != 0 {
		t.Errorf("deletions reported twice: %+v", again.Changes)
	}
}

func TestResume_KeepsExistingSnapshot(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 3, t0.Add(-time.Hour))
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	// Edit while "down", then resume: the edit must not be absorbed.
	at := f.clock.Advance(time.Minute)
	_ = f.src.Edit("pages-3", "Name", "offline edit", at)
	res, err := f.det.Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Baselined) != 0 {
		t.Fatalf("Resume re-baselined %v", res.Baselined)
	}
	f.clock.Advance(time.Minute)
	det, _ := f.det.Detect(ctx)
	if len(det.Changes) != 1 || det.Changes[0].ExternalID != "pages-3" {
		t.Fatalf("offline edit lost: %+v", det.Changes)
	}
}

func TestDetect_OrderIsStableAcrossCollections(t *testing.T) {
	f := newFixture(t, "sites", "pages", "sections", "team")
	for _, c := range []string{"sites", "pages", "sections", "team"} {
		testutil.SeedRecords(f.src, c, 2, t0.Add(-time.Hour))
	}
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	at := f.clock.Advance(time.Minute)
	for _, id := range []string{"team-1", "sites-2", "sections-1", "pages-2"} {
		_ = f.src.Edit(id, "Name", "x", at)
	}
	f.clock.Advance(time.Minute)

	det, err := f.det.Detect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sites-2", "pages-2", "sections-1", "team-1"}
	if len(det.Changes) != len(want) {
		t.Fatalf("got %d changes, want %d", len(det.Changes), len(want))
	}
	for i, id := range want {
		if det.Changes[i].ExternalID != id {
			t.Errorf("change %d = %s, want %s", i, det.Changes[i].ExternalID, id)
		}
	}
}
