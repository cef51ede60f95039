package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/obridge/internal/apperr"
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/settings"
	"github.com/starford/obridge/internal/storage"
	"github.com/starford/obridge/internal/testutil"
)

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) Notify(m string) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func testService(t *testing.T, files map[string]string) (*Service, *storage.FS, *recorder) {
	t.Helper()
	_, store := testutil.TestVault(t, files)
	st, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	svc, err := NewService(store, testutil.TestDB(t), st, rec, testutil.Logger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, rec
}

func TestBridge_ScanAndLink(t *testing.T) {
	svc, store, rec := testService(t, map[string]string{
		"Apple.md": "A fruit.\n",
		"Pie.md":   "---\naliases: [Apple Pie]\n---\n",
		"Notes.md": "I like Apple Pie and Apple today.\nApple again.",
	})
	ctx := context.Background()

	rep, err := svc.Bridge(ctx)
	if err != nil {
		t.Fatalf("Bridge: %v", err)
	}
	if rep.Kind != KindBridge || rep.ID == "" || rep.Records != 1 || rep.Links != 3 || rep.Substitutions != 2 {
		t.Errorf("report = %+v", rep)
	}
	if got := testutil.ReadFile(t, store, "Notes.md"); got != "I like [[Pie|Apple Pie]] and [[Apple]] today.\n[[Apple]] again." {
		t.Errorf("Notes.md = %q", got)
	}

	msgs := rec.all()
	if len(msgs) != 2 || msgs[0] != "Scan complete!" || msgs[1] != "Bridging complete! 2 links added." {
		t.Errorf("notifications = %v", msgs)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil || len(snap) != 1 || snap[0].Name != "Pie" {
		t.Errorf("snapshot = %+v, err = %v", snap, err)
	}
	runs, err := svc.Runs(ctx, 10)
	if err != nil || len(runs) != 1 || runs[0].ID != rep.ID {
		t.Errorf("runs = %+v, err = %v", runs, err)
	}
}

func TestLink_UsesPersistedSnapshot(t *testing.T) {
	svc, store, _ := testService(t, map[string]string{
		"Dessert.md": "---\naliases: [Apple Pie]\n---\n",
		"Notes.md":   "Apple Pie",
	})
	ctx := context.Background()

	rep, err := svc.Link(ctx, LinkOptions{})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if rep.Links != 0 {
		t.Errorf("link before scan should only know bare names: %+v", rep)
	}

	if _, err := svc.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	preview, err := svc.Link(ctx, LinkOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if preview.Links != 1 || testutil.ReadFile(t, store, "Notes.md") != "Apple Pie" {
		t.Errorf("dry run: %+v", preview)
	}
	if _, err := svc.Link(ctx, LinkOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ReadFile(t, store, "Notes.md"); got != "[[Dessert|Apple Pie]]" {
		t.Errorf("Notes.md = %q", got)
	}
}

func TestRun_InFlightGuard(t *testing.T) {
	svc, _, _ := testService(t, nil)
	svc.running.Store(true)
	if _, err := svc.Bridge(context.Background()); !errors.Is(err, apperr.ErrRunInProgress) {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}
	svc.running.Store(false)
	if _, err := svc.Bridge(context.Background()); err != nil {
		t.Errorf("Bridge after guard release: %v", err)
	}
}

func TestExcludeFileAndDirectory(t *testing.T) {
	svc, _, rec := testService(t, map[string]string{
		"notes/Secret.md": "x",
	})
	ctx := context.Background()

	res, err := svc.Exclude(ctx, "notes/Secret.md")
	if err != nil {
		t.Fatalf("Exclude: %v", err)
	}
	if !res.Changed || res.Message != "Excluded Secret from oBridge." {
		t.Errorf("result = %+v", res)
	}
	res, _ = svc.Exclude(ctx, "notes/Secret.md")
	if res.Changed || res.Message != "File: Secret is already excluded from oBridge." {
		t.Errorf("second result = %+v", res)
	}

	res, err = svc.Exclude(ctx, "notes")
	if err != nil {
		t.Fatalf("Exclude dir: %v", err)
	}
	if !res.Changed || res.Entry.Kind != models.KindDirectory || res.Message != "Excluded notes from oBridge." {
		t.Errorf("dir result = %+v", res)
	}

	cur := svc.Settings()
	if !cur.IsExcludedFile("Secret") || !cur.IsExcludedDir("notes/x.md") {
		t.Errorf("settings = %+v", cur)
	}
	stored, _ := svc.settings.Load()
	if !stored.IsExcludedFile("Secret") {
		t.Error("exclusion not persisted")
	}
	if len(rec.all()) != 3 {
		t.Errorf("notifications = %v", rec.all())
	}

	res, err = svc.Unexclude(ctx, "notes/Secret.md")
	if err != nil || !res.Changed {
		t.Errorf("Unexclude: %+v %v", res, err)
	}
}

func TestExclude_MissingPath(t *testing.T) {
	svc, _, _ := testService(t, nil)
	if _, err := svc.Exclude(context.Background(), "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetFlagsAndSelfSetting(t *testing.T) {
	svc, store, _ := testService(t, map[string]string{
		"Note.md": "---\naliases: [Note-alt]\n---\nNote here.\n",
	})
	ctx := context.Background()

	if err := svc.SetFlags(ctx, models.KindFile, "Missing", true, true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetFlags missing: %v", err)
	}
	if err := svc.SetAddAliasToSelf(ctx, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Bridge(ctx); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ReadFile(t, store, "Note.md"); got != "---\naliases: [Note-alt]\n---\n[[Note]] here.\n" {
		t.Errorf("Note.md = %q", got)
	}

	if _, err := svc.Exclude(ctx, "Note.md"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetFlags(ctx, models.KindFile, "Note", true, false); err != nil {
		t.Fatal(err)
	}
	e, ok := svc.Settings().Lookup(models.KindFile, "Note")
	if !ok || !e.CanLinkFromOutside || e.CanBeLinked {
		t.Errorf("rule = %+v", e)
	}
}

func TestReplaceSettings_Validates(t *testing.T) {
	svc, _, _ := testService(t, nil)
	bad := settings.Default()
	bad.ExcludeFile("A")
	bad.ExcludedFiles = append(bad.ExcludedFiles, bad.ExcludedFiles[0])
	if _, err := svc.ReplaceSettings(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}

	good := settings.Default()
	good.AddAliasToSelf = true
	got, err := svc.ReplaceSettings(context.Background(), good)
	if err != nil || !got.AddAliasToSelf {
		t.Errorf("ReplaceSettings: %+v %v", got, err)
	}
}

type runRecorder struct {
	recorder
	runs []models.Run
}

func (r *runRecorder) RunFinished(run models.Run) {
	r.mu.Lock()
	r.runs = append(r.runs, run)
	r.mu.Unlock()
}

func TestRunListenerThroughMulti(t *testing.T) {
	_, store := testutil.TestVault(t, map[string]string{"A.md": "x"})
	st, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	rec := &runRecorder{}
	svc, err := NewService(store, testutil.TestDB(t), st, Multi{LogNotifier{Logger: testutil.Logger()}, rec}, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}

	rep, err := svc.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.runs) != 1 || rec.runs[0].ID != rep.ID || rec.runs[0].Kind != KindScan {
		t.Errorf("runs = %+v", rec.runs)
	}
	if msgs := rec.all(); len(msgs) != 1 || msgs[0] != "Scan complete!" {
		t.Errorf("notifications = %v", msgs)
	}
}

func TestLink_NoticeCountsAliasPairs(t *testing.T) {
	svc, _, rec := testService(t, map[string]string{
		"Apple.md": "A fruit.\n",
		"Notes.md": "Apple, Apple and Apple.",
	})
	ctx := context.Background()

	preview, err := svc.Link(ctx, LinkOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	rep, err := svc.Link(ctx, LinkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Substitutions != 1 || rep.Links != 3 || preview.Substitutions != 1 {
		t.Errorf("report = %+v, preview = %+v", rep, preview)
	}
	msgs := rec.all()
	want := []string{"Preview complete! 1 links would be added.", "Bridging complete! 1 links added."}
	if len(msgs) != 2 || msgs[0] != want[0] || msgs[1] != want[1] {
		t.Errorf("notifications = %v, want %v", msgs, want)
	}
}

func TestExclude_PathOutsideVault(t *testing.T) {
	svc, _, _ := testService(t, nil)
	if _, err := svc.Exclude(context.Background(), "../x.md"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("Exclude err = %v, want ErrInvalidPath", err)
	}
	if _, err := svc.Unexclude(context.Background(), "../x"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("Unexclude err = %v, want ErrInvalidPath", err)
	}
}

func TestUnexclude_RemovedEntries(t *testing.T) {
	svc, store, _ := testService(t, map[string]string{
		"old/Gone.md": "x",
	})
	ctx := context.Background()

	if _, err := svc.Exclude(ctx, "old/Gone.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Exclude(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(store.Root(), "old")); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Unexclude(ctx, "old/Gone.md")
	if err != nil || !res.Changed || res.Entry.Kind != models.KindFile {
		t.Errorf("unexclude removed file: %+v, %v", res, err)
	}
	res, err = svc.Unexclude(ctx, "old")
	if err != nil || !res.Changed || res.Entry.Kind != models.KindDirectory {
		t.Errorf("unexclude removed dir: %+v, %v", res, err)
	}
	cur := svc.Settings()
	if len(cur.ExcludedFiles) != 0 || len(cur.ExcludedDirs) != 0 {
		t.Errorf("rules left: %+v", cur)
	}

	if _, err := svc.Unexclude(ctx, "old/Gone.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second unexclude err = %v, want ErrNotFound", err)
	}
}
