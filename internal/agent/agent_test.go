package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/source"
	"github.com/starford/sitesmith/internal/testutil"
)

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type buildRecorder struct {
	mu    sync.Mutex
	calls [][]models.Change
	err   error
	panic bool
}

func (b *buildRecorder) build(_ context.Context, changes []models.Change) (models.BuildResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, changes)
	if b.panic {
		panic("template exploded")
	}
	if b.err != nil {
		return models.BuildResult{}, b.err
	}
	return models.BuildResult{
		ID:        "r1",
		Files:     []string{"index.html", "about.html"},
		DeployURL: "https://acme.github.io/site/",
		Pages:     []models.PageUpdate{{PageID: "pages-1", Status: models.StatusPublished}},
	}, nil
}

func (b *buildRecorder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func newAgent(t *testing.T, f *fixture, b *buildRecorder) *Agent {
	t.Helper()
	f.src.AddCollection("build-log")
	rep := NewReporter(f.src, ReporterOptions{
		SiteID:   "site-1",
		BuildLog: "build-log",
		Logger:   testutil.Logger(),
		Now:      f.clock.Now,
	})
	return New(f.det, b.build, Options{
		Interval: time.Hour,
		Reporter: rep,
		Logger:   testutil.Logger(),
		Now:      f.clock.Now,
	})
}

func siteStatuses(m *source.Memory) []string {
	var out []string
	for _, w := range m.Writes() {
		if w.RecordID != "site-1" {
			continue
		}
		if s, ok := w.Fields["Status"].(source.Select); ok {
			out = append(out, string(s))
		}
	}
	return out
}

func TestCheckOnce_OneBuildPerCycle(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 6, t0.Add(-time.Hour))
	b := &buildRecorder{}
	a := newAgent(t, f, b)
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	at := f.clock.Advance(time.Minute)
	for _, id := range []string{"pages-1", "pages-3", "pages-5"} {
		_ = f.src.Edit(id, "Name", "edited", at)
	}
	f.clock.Advance(time.Minute)

	cycle, err := a.CheckOnce(ctx)
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if b.count() != 1 {
		t.Fatalf("build called %d times, want 1", b.count())
	}
	if len(b.calls[0]) != 3 {
		t.Errorf("build got %d changes, want 3", len(b.calls[0]))
	}
	if cycle.Build == nil || cycle.Build.Status != models.StatusPublished {
		t.Fatalf("cycle build = %+v", cycle.Build)
	}

	got := siteStatuses(f.src)
	if strings.Join(got, ",") != "Building,Published" {
		t.Errorf("site statuses = %v, want Building,Published", got)
	}
	var domain source.URL
	for _, w := range f.src.Writes() {
		if v, ok := w.Fields["Domain"].(source.URL); ok {
			domain = v
		}
	}
	if domain != "https://acme.github.io/site/" {
		t.Errorf("Domain = %q", domain)
	}

	logs := f.src.Created("build-log")
	if len(logs) != 1 || logs[0]["Build Status"] != source.Select("Published") {
		t.Fatalf("build log = %+v", logs)
	}
	if logs[0]["Files Count"] != source.Number(2) {
		t.Errorf("Files Count = %v", logs[0]["Files Count"])
	}

	builds, _ := f.db.RecentBuilds(5)
	if len(builds) != 1 || builds[0].Changes != 3 {
		t.Errorf("local build log = %+v", builds)
	}
	if last, ok := a.LastCycle(); !ok || last.Number != 1 {
		t.Errorf("LastCycle = %+v, %v", last, ok)
	}
	if a.State() != StateIdle {
		t.Errorf("state after CheckOnce = %s, want idle", a.State())
	}
}

func TestCheckOnce_NoChangesNoBuild(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 3, t0.Add(-time.Hour))
	b := &buildRecorder{}
	a := newAgent(t, f, b)
	ctx := context.Background()

	// First pass baselines, second finds nothing.
	for range 2 {
		cycle, err := a.CheckOnce(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(cycle.Changes) != 0 || cycle.Build != nil {
			t.Fatalf("unexpected cycle %+v", cycle)
		}
		f.clock.Advance(time.Minute)
	}
	if b.count() != 0 {
		t.Fatalf("build called %d times", b.count())
	}
	if len(f.src.Writes()) != 0 {
		t.Errorf("no status should be written without a build: %+v", f.src.Writes())
	}
}

func TestCheckOnce_BuildFailureIsWrittenBack(t *testing.T) {
	for _, tc := range []struct {
		name string
		b    *buildRecorder
		want string
	}{
		{"error", &buildRecorder{err: errors.New("render: missing template")}, "missing template"},
		{"panic", &buildRecorder{panic: true}, "template exploded"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "pages")
			testutil.SeedRecords(f.src, "pages", 2, t0.Add(-time.Hour))
			a := newAgent(t, f, tc.b)
			ctx := context.Background()
			if _, err := f.det.Snapshot(ctx); err != nil {
				t.Fatal(err)
			}
			_ = f.src.Edit("pages-2", "Name", "x", f.clock.Advance(time.Minute))
			f.clock.Advance(time.Minute)

			cycle, err := a.CheckOnce(ctx)
			if err != nil {
				t.Fatalf("build failure must not fail the cycle: %v", err)
			}
			if cycle.Build == nil || cycle.Build.Status != models.StatusFailed {
				t.Fatalf("cycle build = %+v", cycle.Build)
			}
			if got := siteStatuses(f.src); strings.Join(got, ",") != "Building,Failed" {
				t.Errorf("site statuses = %v", got)
			}
			logs := f.src.Created("build-log")
			if len(logs) != 1 {
				t.Fatalf("build log entries = %d", len(logs))
			}
			msg, _ := logs[0]["Error"].(source.Text)
			if !strings.Contains(string(msg), tc.want) {
				t.Errorf("Error = %q, want it to mention %q", msg, tc.want)
			}
		})
	}
}

func TestCheckOnce_WriteBackFailureIsTolerated(t *testing.T) {
	f := newFixture(t, "pages")
	testutil.SeedRecords(f.src, "pages", 2, t0.Add(-time.Hour))
	b := &buildRecorder{}
	a := newAgent(t, f, b)
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	_ = f.src.Edit("pages-1", "Name", "x", f.clock.Advance(time.Minute))
	f.clock.Advance(time.Minute)
	f.src.FailWrites(errors.New("429 too many requests"))

	cycle, err := a.CheckOnce(ctx)
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if cycle.Build == nil || cycle.Build.Status != models.StatusPublished {
		t.Fatalf("build outcome should not depend on write-back: %+v", cycle.Build)
	}
}

func TestCheckOnce_SiteEditBuildsOnceAndWriteBackIsIgnored(t *testing.T) {
	clock := testutil.NewClock(t0)
	src := source.NewMemory()
	src.SetClock(clock.Now)
	src.AddCollection("sites-db")
	src.Put("sites-db", models.Record{
		ID:           "site-1",
		Title:        "Acme",
		LastEditedAt: t0.Add(-time.Hour),
		Properties:   map[string]any{"Site Name": "Acme", "Theme": "light", "Status": "Draft"},
	})
	f := &fixture{src: src, db: testutil.TestDB(t), clock: clock}
	f.det = NewDetector(src, f.db, []Collection{SiteCollection("sites-db")}, DetectorOptions{
		Logger: testutil.Logger(),
		Now:    clock.Now,
	})
	b := &buildRecorder{}
	a := newAgent(t, f, b)
	ctx := context.Background()
	if _, err := f.det.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}

	if err := src.Edit("site-1", "Theme", "dark", clock.Advance(time.Minute)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	cycle, err := a.CheckOnce(ctx)
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if b.count() != 1 || len(cycle.Changes) != 1 || cycle.Changes[0].Collection != "sites" {
		t.Fatalf("builds = %d, changes = %+v", b.count(), cycle.Changes)
	}

	// The Building and Published write-backs landed on the site record.
	recs, err := source.QueryAll(ctx, src, "sites-db", source.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Properties["Status"] != source.Select(models.StatusPublished) || !recs[0].LastEditedAt.Equal(clock.Now()) {
		t.Fatalf("site record after write-back = %+v", recs[0])
	}

	clock.Advance(time.Minute)
	cycle, err = a.CheckOnce(ctx)
	if err != nil {
		t.Fatalf("CheckOnce: %v", err)
	}
	if len(cycle.Changes) != 0 || b.count() != 1 {
		t.Errorf("write-back re-triggered: changes = %+v, builds = %d", cycle.Changes, b.count())
	}
}

func TestRun_PollsAndStops(t *testing.T) {
	src := source.NewMemory()
	testutil.SeedRecords(src, "pages", 3, time.Now().Add(-time.Hour))
	det := NewDetector(src, testutil.TestDB(t), []Collection{{Name: "pages", ID: "pages"}},
		DetectorOptions{Logger: testutil.Logger()})
	b := &buildRecorder{}
	a := New(det, b.build, Options{Interval: 20 * time.Millisecond, Logger: testutil.Logger()})

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		return a.State() == StatePolling
	}, "agent never reached polling")
	if err := a.Run(context.Background()); err == nil {
		t.Error("second Run should fail while running")
	}

	_ = src.Edit("pages-2", "Name", "live edit", time.Now())
	eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		return b.count() == 1
	}, "edit never triggered a build")

	a.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the polling sleep")
	}
	if a.Running() {
		t.Error("agent still reports running")
	}
	if b.count() != 1 {
		t.Errorf("build called %d times, want 1", b.count())
	}
}

func TestSafeBuild_WrapsErrBuild(t *testing.T) {
	f := newFixture(t, "pages")
	a := New(f.det, (&buildRecorder{panic: true}).build, Options{Logger: testutil.Logger()})
	_, err := a.safeBuild(context.Background(), nil)
	if !errors.Is(err, apperr.ErrBuild) {
		t.Fatalf("expected ErrBuild, got %v", err)
	}
}
